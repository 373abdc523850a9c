package policy

import (
	"context"

	"github.com/polisai/hawkeye-go/pkg/domain"
)

// Filter admits, rewrites or rejects a raw signal.
//
// Implementations must not mutate the metadata map of the signal they
// receive; rewrites return a copy.
type Filter interface {
	Admit(ctx context.Context, sig domain.Signal) (domain.Signal, bool)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(ctx context.Context, sig domain.Signal) (domain.Signal, bool)

// Admit calls f.
func (f FilterFunc) Admit(ctx context.Context, sig domain.Signal) (domain.Signal, bool) {
	return f(ctx, sig)
}

type chain []Filter

// Chain runs filters in order and stops at the first rejection. Nil filters
// are skipped.
func Chain(filters ...Filter) Filter {
	out := make(chain, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}

func (c chain) Admit(ctx context.Context, sig domain.Signal) (domain.Signal, bool) {
	for _, f := range c {
		var ok bool
		sig, ok = f.Admit(ctx, sig)
		if !ok {
			return sig, false
		}
	}
	return sig, true
}

func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
