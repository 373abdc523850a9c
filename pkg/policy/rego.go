package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/hawkeye-go/pkg/domain"
	"github.com/polisai/hawkeye-go/pkg/telemetry"
)

// DefaultEntrypoint is the decision path evaluated when none is configured.
const DefaultEntrypoint = "hawkeye/admission/decision"

// RegoOptions control RegoFilter construction.
type RegoOptions struct {
	// Entrypoint is the decision path (e.g. "hawkeye/admission/decision").
	Entrypoint string
	// Modules maps module names to Rego v1 source.
	Modules map[string]string
	Logger  *slog.Logger
}

// RegoFilter evaluates an OPA decision for every signal. The decision must be
// an object of the form {"allow": bool, "drop_keys": [string]}. Undefined
// decisions and evaluation errors admit the signal unchanged.
type RegoFilter struct {
	query      rego.PreparedEvalQuery
	entrypoint string
	logger     *slog.Logger
}

// NewRegoFilter compiles the modules and prepares the decision query.
func NewRegoFilter(ctx context.Context, opts RegoOptions) (*RegoFilter, error) {
	if len(opts.Modules) == 0 {
		return nil, errors.New("policy: rego filter requires at least one module")
	}

	entry := strings.Trim(strings.TrimSpace(opts.Entrypoint), "/")
	if entry == "" {
		entry = DefaultEntrypoint
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	regoOpts := []func(*rego.Rego){
		rego.Query("data." + strings.ReplaceAll(entry, "/", ".")),
	}
	for name, src := range opts.Modules {
		module, err := ast.ParseModuleWithOpts(name, src, ast.ParserOptions{RegoVersion: ast.RegoV1})
		if err != nil {
			return nil, fmt.Errorf("parse rego module %q: %w", name, err)
		}
		regoOpts = append(regoOpts, rego.ParsedModule(module))
	}

	prepared, err := rego.New(regoOpts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rego modules: %w", err)
	}

	return &RegoFilter{query: prepared, entrypoint: entry, logger: logger}, nil
}

// LoadRegoFilter reads a single Rego module from path.
func LoadRegoFilter(ctx context.Context, path, entrypoint string, logger *slog.Logger) (*RegoFilter, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rego module: %w", err)
	}
	return NewRegoFilter(ctx, RegoOptions{
		Entrypoint: entrypoint,
		Modules:    map[string]string{path: string(src)},
		Logger:     logger,
	})
}

// Admit implements Filter.
func (f *RegoFilter) Admit(ctx context.Context, sig domain.Signal) (domain.Signal, bool) {
	decision, err := f.evaluate(ctx, sig)
	if err != nil {
		f.logger.Debug("admission policy failed; admitting signal",
			"entrypoint", f.entrypoint,
			"event_type", sig.EventType,
			"error", err,
		)
		return sig, true
	}

	dropped := 0
	if len(decision.dropKeys) > 0 && len(sig.Metadata) > 0 {
		meta := cloneMetadata(sig.Metadata)
		for _, k := range decision.dropKeys {
			if _, ok := meta[k]; ok {
				delete(meta, k)
				dropped++
			}
		}
		sig.Metadata = meta
	}

	telemetry.RecordAdmission(trace.SpanFromContext(ctx), sig.EventType, decision.allow, dropped)
	return sig, decision.allow
}

type admission struct {
	allow    bool
	dropKeys []string
}

func (f *RegoFilter) evaluate(ctx context.Context, sig domain.Signal) (admission, error) {
	input, err := signalInput(sig)
	if err != nil {
		return admission{}, err
	}

	results, err := f.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return admission{}, fmt.Errorf("opa decision: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return admission{allow: true}, nil
	}

	payload, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return admission{}, fmt.Errorf("opa decision: unexpected result type %T", results[0].Expressions[0].Value)
	}

	out := admission{allow: true}
	if raw, present := payload["allow"]; present {
		allow, ok := raw.(bool)
		if !ok {
			return admission{}, fmt.Errorf("opa decision: allow must be a boolean, got %T", raw)
		}
		out.allow = allow
	}

	if raw, present := payload["drop_keys"]; present {
		list, ok := raw.([]any)
		if !ok {
			return admission{}, fmt.Errorf("opa decision: drop_keys must be an array, got %T", raw)
		}
		for _, item := range list {
			if key, ok := item.(string); ok {
				out.dropKeys = append(out.dropKeys, key)
			}
		}
	}

	return out, nil
}

// signalInput converts a signal to the generic map OPA expects, keeping the
// wire field names.
func signalInput(sig domain.Signal) (map[string]any, error) {
	raw, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return input, nil
}
