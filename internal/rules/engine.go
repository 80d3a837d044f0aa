package rules

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("kestrel-rules")

// Engine is the rule-evaluation entry point. It is stateless between
// calls: every invocation parses the supplied configuration, dispatches
// to the matching schema path, and returns a normalized hit set.
// Repeated calls with identical inputs yield identical output.
type Engine struct {
	env *cel.Env
}

// NewEngine creates a screening engine.
func NewEngine() (*Engine, error) {
	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{env: env}, nil
}

// Apply evaluates the transaction table against a raw configuration
// document. A nil configuration is treated as an empty modern spec. The
// result always exposes the standard six-column hit schema, as a non-nil
// (possibly empty) slice in rule-evaluation order.
func (e *Engine) Apply(ctx context.Context, t *ledger.Table, raw map[string]any) ([]domain.Hit, error) {
	ctx, span := tracer.Start(ctx, "rules.Apply",
		trace.WithAttributes(attribute.Int("transactions", t.Len())),
	)
	defer span.End()

	if !t.HasTxnID() {
		return nil, fmt.Errorf("%w: txn_id", domain.ErrMissingColumn)
	}

	spec, err := ParseRuleSpec(raw)
	if err != nil {
		return nil, err
	}

	hits, err := e.ApplySpec(ctx, t, spec)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// ApplySpec evaluates an already-parsed rule spec.
func (e *Engine) ApplySpec(ctx context.Context, t *ledger.Table, spec *domain.RuleSpec) ([]domain.Hit, error) {
	if !t.HasTxnID() {
		return nil, fmt.Errorf("%w: txn_id", domain.ErrMissingColumn)
	}

	var hits []domain.Hit
	switch spec.Kind {
	case domain.RuleSpecLegacy:
		hits = evaluateLegacy(t, spec.Legacy)

	case domain.RuleSpecModern:
		compiled, err := compileCustomRules(e.env, spec.Modern.CustomRules)
		if err != nil {
			return nil, err
		}
		hits = evaluateModern(t, spec.Modern, compiled)

	default:
		return nil, fmt.Errorf("%w: unknown rule spec kind %q", domain.ErrConfig, spec.Kind)
	}

	return normalizeHits(hits), nil
}

// normalizeHits guarantees both paths return the same shape: a non-nil
// slice whose rows all carry the fixed six-column schema. Struct fields
// that a path does not populate are already null pointers.
func normalizeHits(hits []domain.Hit) []domain.Hit {
	if hits == nil {
		return []domain.Hit{}
	}
	return hits
}
