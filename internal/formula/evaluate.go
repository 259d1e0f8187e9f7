package formula

import (
	"context"
	"fmt"
	"maps"
	"math"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Tolerance is the largest difference between an engine value and a rule
// value that is still considered agreement.
const Tolerance = 0.01

// Result is the outcome of one derivation pass.
type Result struct {
	// Values is the full working set: observed values, base parameters and
	// every rule output.
	Values map[string]float64
	// Applied lists the rules that fired, in evaluation order.
	Applied []string
	// Skipped lists the rules that did not fire because an input was unknown.
	Skipped     []string
	Divergences []model.Divergence
}

// Evaluate runs the compiled rules against the values read from the engine.
// The working set starts as observed overlaid by base. A rule fires only if
// all of its inputs are known, and its value replaces the working entry.
func Evaluate(ctx context.Context, c *Compiled, base, observed map[string]float64) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("rules_version", c.version)

	working := make(map[string]float64, len(observed)+len(base))
	maps.Copy(working, observed)
	maps.Copy(working, base)

	res := Result{Values: working}
	funcs := functions(observed)

	for _, r := range c.rules {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		missing := ""
		vars := make(map[string]cty.Value, len(r.Inputs))
		for _, in := range r.Inputs {
			v, ok := working[in]
			if !ok {
				missing = in
				break
			}
			vars[in] = cty.NumberFloatVal(v)
		}
		if missing != "" {
			logger.Debug("Rule skipped, input unknown.", "rule", r.Output, "input", missing)
			res.Skipped = append(res.Skipped, r.Output)
			continue
		}

		value, err := evalNumber(r.Expr, &hcl.EvalContext{Variables: vars, Functions: funcs})
		if err != nil {
			return res, fmt.Errorf("rule %q: %w", r.Output, err)
		}

		if r.Flagged {
			logger.Warn("Flagged rule applied; verify the result.", "rule", r.Output, "value", value, "note", r.Note)
		}
		if prev, ok := observed[r.Output]; ok && math.Abs(prev-value) > Tolerance {
			logger.Info("Engine value diverges from rule; using rule value.", "variable", r.Output, "observed", prev, "derived", value)
			res.Divergences = append(res.Divergences, model.Divergence{Name: r.Output, Observed: prev, Derived: value})
		}

		working[r.Output] = value
		res.Applied = append(res.Applied, r.Output)
		logger.Debug("Rule applied.", "rule", r.Output, "value", value)
	}
	return res, nil
}

func evalNumber(expr hcl.Expression, evalCtx *hcl.EvalContext) (float64, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}
	val, err := convert.Convert(val, cty.Number)
	if err != nil {
		return 0, fmt.Errorf("result is not a number: %w", err)
	}
	if val.IsNull() || !val.IsKnown() {
		return 0, fmt.Errorf("result is null or unknown")
	}
	f, _ := val.AsBigFloat().Float64()
	return f, nil
}
