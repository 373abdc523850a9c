package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the collector error taxonomy.
var (
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrTransport     = errors.New("delivery failed")
	ErrAdapterStop   = errors.New("adapter stop failed")
)

// ConfigurationError reports the first failed configuration check.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hawkeye: %s %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("hawkeye: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfigInvalid
}

// TransportError reports a non-success response status or a network failure.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Status != "" {
			return fmt.Sprintf("delivery failed: HTTP %s", e.Status)
		}
		return fmt.Sprintf("delivery failed: HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %v", e.Err)
	}
	return ErrTransport.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// AdapterStopError wraps a failure raised while stopping one signal adapter.
type AdapterStopError struct {
	Adapter string
	Err     error
}

func (e *AdapterStopError) Error() string {
	return fmt.Sprintf("stop adapter %s: %v", e.Adapter, e.Err)
}

func (e *AdapterStopError) Unwrap() error {
	return e.Err
}

func (e *AdapterStopError) Is(target error) bool {
	return target == ErrAdapterStop
}

// IsConfigurationError reports whether err is a configuration failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

// IsTransportError reports whether err is a delivery failure.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrTransport)
}
