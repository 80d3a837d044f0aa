package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
)

// compiledCustomRule holds a pre-compiled CEL program for one custom
// expression rule.
type compiledCustomRule struct {
	rule    domain.CustomRule
	program cel.Program
}

// newCELEnv declares the per-transaction variables custom expressions
// may reference.
func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("currency", cel.StringType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("country_src", cel.StringType),
		cel.Variable("country_dst", cel.StringType),
		cel.Variable("channel", cel.StringType),
		cel.Variable("kyc_verified", cel.BoolType),
		cel.Variable("pep_flag", cel.BoolType),
	)
}

// compileCustomRules compiles every custom rule up front; a broken
// expression is a configuration error, surfaced before evaluation.
func compileCustomRules(env *cel.Env, defs []domain.CustomRule) ([]*compiledCustomRule, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	out := make([]*compiledCustomRule, 0, len(defs))
	for _, def := range defs {
		ast, issues := env.Compile(def.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("%w: custom rule %s: %v", domain.ErrConfig, def.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("%w: custom rule %s: expression must return bool, got %s",
				domain.ErrConfig, def.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("%w: custom rule %s: %v", domain.ErrConfig, def.ID, err)
		}
		out = append(out, &compiledCustomRule{rule: def, program: program})
	}
	return out, nil
}

// evaluateCustomRules runs each compiled expression against every row.
// Per-row evaluation errors degrade to non-matches, like every other
// malformed-row condition in the modern path.
func evaluateCustomRules(t *ledger.Table, compiled []*compiledCustomRule) []domain.Hit {
	var hits []domain.Hit
	for _, cr := range compiled {
		for i := 0; i < t.Len(); i++ {
			txn := t.Txn(i)
			activation := map[string]any{
				"tx":           map[string]any(t.Row(i)),
				"amount":       txn.Amount,
				"currency":     txn.Currency,
				"customer_id":  txn.CustomerID,
				"country_src":  txn.CountrySrc,
				"country_dst":  txn.CountryDst,
				"channel":      txn.Channel,
				"kyc_verified": txn.KYCVerified,
				"pep_flag":     txn.PEPFlag,
			}

			out, _, err := cr.program.Eval(activation)
			if err != nil {
				continue
			}
			if matched, ok := out.(types.Bool); ok && bool(matched) {
				hit := domain.NewDetectorHit(txn.TxnID, cr.rule.ID, cr.rule.Severity, "custom expression matched")
				if cr.rule.Description != "" {
					hit.RuleDescription = &cr.rule.Description
				}
				hits = append(hits, hit)
			}
		}
	}
	return hits
}
