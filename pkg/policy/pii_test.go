package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

func TestPIIScrubberRemovesDisallowedKeys(t *testing.T) {
	scrubber := DefaultPIIScrubber()
	original := map[string]any{
		"Email":     "x",
		"PASSWORD":  "y",
		"clientX":   10,
		"zipcode":   "12345",
		"fieldName": "name",
	}

	got, ok := scrubber.Admit(context.Background(), domain.Signal{EventType: domain.EventClick, Metadata: original})

	require.True(t, ok)
	assert.Equal(t, map[string]any{"clientX": 10, "fieldName": "name"}, got.Metadata)
	assert.Len(t, original, 5, "input metadata must not be mutated")
}

func TestPIIScrubberRedactsValues(t *testing.T) {
	scrubber := DefaultPIIScrubber()

	got, ok := scrubber.Admit(context.Background(), domain.Signal{Metadata: map[string]any{
		"message": "failed for jane@example.com",
		"note":    "card 4111111111111111 declined",
		"count":   3,
	}})

	require.True(t, ok)
	assert.Equal(t, "failed for [REDACTED:email]", got.Metadata["message"])
	assert.Equal(t, "card [REDACTED:card] declined", got.Metadata["note"])
	assert.Equal(t, 3, got.Metadata["count"])
}

func TestPIIScrubberLeavesCleanSignalUntouched(t *testing.T) {
	scrubber := DefaultPIIScrubber()
	meta := map[string]any{"scrollY": 400}

	got, ok := scrubber.Admit(context.Background(), domain.Signal{Metadata: meta})

	require.True(t, ok)
	meta["marker"] = true
	assert.Equal(t, true, got.Metadata["marker"], "clean signals keep their original map")

	got, ok = scrubber.Admit(context.Background(), domain.Signal{})
	require.True(t, ok)
	assert.Nil(t, got.Metadata)
}

func TestNewPIIScrubberValidatesRules(t *testing.T) {
	_, err := NewPIIScrubber(nil, []ValueRule{{Pattern: "x"}})
	assert.Error(t, err)

	_, err = NewPIIScrubber(nil, []ValueRule{{Name: "bad", Pattern: "("}})
	assert.Error(t, err)

	s, err := NewPIIScrubber([]string{"Token"}, nil)
	require.NoError(t, err)
	got, _ := s.Admit(context.Background(), domain.Signal{Metadata: map[string]any{"token": "t", "email": "e"}})
	assert.Equal(t, map[string]any{"email": "e"}, got.Metadata)
}

func TestChain(t *testing.T) {
	var calls []string
	mark := func(name string, admit bool) Filter {
		return FilterFunc(func(_ context.Context, sig domain.Signal) (domain.Signal, bool) {
			calls = append(calls, name)
			return sig, admit
		})
	}

	_, ok := Chain(mark("a", true), nil, mark("b", false), mark("c", true)).Admit(context.Background(), domain.Signal{})

	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, calls)

	_, ok = Chain().Admit(context.Background(), domain.Signal{})
	assert.True(t, ok)
}
