package policy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// DefaultDisallowedKeys lists metadata keys that indicate personal data.
var DefaultDisallowedKeys = []string{
	"email",
	"password",
	"creditcard",
	"credit_card",
	"cardnumber",
	"ssn",
	"social_security",
	"phone",
	"phonenumber",
	"address",
	"zipcode",
	"postalcode",
}

// ValueRule replaces matches of Pattern inside string metadata values.
type ValueRule struct {
	Name        string
	Pattern     string
	Replacement string
}

// DefaultValueRules covers email addresses and long digit runs that look like
// card numbers.
func DefaultValueRules() []ValueRule {
	return []ValueRule{
		{
			Name:    "email",
			Pattern: `(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		},
		{
			Name:    "card",
			Pattern: `\b[0-9]{13,19}\b`,
		},
	}
}

type compiledRule struct {
	expr        *regexp.Regexp
	replacement string
}

// PIIScrubber removes disallowed metadata keys and redacts matching string
// values. It never rejects a signal.
type PIIScrubber struct {
	keys  map[string]struct{}
	rules []compiledRule
}

// NewPIIScrubber builds a scrubber. Key matching is case-insensitive. A nil
// keys slice selects DefaultDisallowedKeys.
func NewPIIScrubber(keys []string, rules []ValueRule) (*PIIScrubber, error) {
	if keys == nil {
		keys = DefaultDisallowedKeys
	}

	s := &PIIScrubber{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.keys[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}

	for _, rule := range rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return nil, fmt.Errorf("policy: value rule name is required")
		}
		expr, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("policy: invalid pattern for rule %s: %w", name, err)
		}
		replacement := rule.Replacement
		if replacement == "" {
			replacement = fmt.Sprintf("[REDACTED:%s]", name)
		}
		s.rules = append(s.rules, compiledRule{expr: expr, replacement: replacement})
	}

	return s, nil
}

// DefaultPIIScrubber returns a scrubber with the default keys and value rules.
func DefaultPIIScrubber() *PIIScrubber {
	s, err := NewPIIScrubber(nil, DefaultValueRules())
	if err != nil {
		panic(err)
	}
	return s
}

// Admit implements Filter.
func (s *PIIScrubber) Admit(_ context.Context, sig domain.Signal) (domain.Signal, bool) {
	if len(sig.Metadata) == 0 {
		return sig, true
	}

	var out map[string]any
	for k, v := range sig.Metadata {
		if _, blocked := s.keys[strings.ToLower(k)]; blocked {
			if out == nil {
				out = cloneMetadata(sig.Metadata)
			}
			delete(out, k)
			continue
		}

		str, ok := v.(string)
		if !ok {
			continue
		}
		if redacted := s.redact(str); redacted != str {
			if out == nil {
				out = cloneMetadata(sig.Metadata)
			}
			out[k] = redacted
		}
	}

	if out != nil {
		sig.Metadata = out
	}
	return sig, true
}

func (s *PIIScrubber) redact(value string) string {
	for _, rule := range s.rules {
		value = rule.expr.ReplaceAllString(value, rule.replacement)
	}
	return value
}
