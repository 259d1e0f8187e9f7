package memsession

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/paramcascade/internal/hclexpr"
	"github.com/vk/paramcascade/internal/session"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

func values(vars []session.Variable) map[string]float64 {
	out := make(map[string]float64, len(vars))
	for _, v := range vars {
		out[v.Name] = v.Value
	}
	return out
}

// recompute re-evaluates every formula variable once, in table order. Later
// variables see the values written by earlier ones in the same pass.
func recompute(st *DocumentState) {
	for i := range st.Variables {
		v := &st.Variables[i]
		if val, ok := evaluate(v.Expression, values(st.Variables)); ok {
			v.Value = val
		}
	}
}

// evaluate computes a formula expression against the given values. It
// reports false for literals, link-like text and anything it cannot evaluate.
func evaluate(expr string, vals map[string]float64) (float64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || strings.ContainsAny(expr, `\|`) {
		return 0, false
	}
	parsed, diags := hclexpr.ParseFormula(expr, "expression")
	if diags.HasErrors() {
		return 0, false
	}
	names := hclexpr.RootNames(parsed)
	if len(names) == 0 {
		return 0, false
	}
	vars := make(map[string]cty.Value, len(names))
	for _, n := range names {
		v, ok := vals[n]
		if !ok {
			return 0, false
		}
		vars[n] = cty.NumberFloatVal(v)
	}
	out, diags := parsed.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() {
		return 0, false
	}
	out, err := convert.Convert(out, cty.Number)
	if err != nil || out.IsNull() || !out.IsKnown() {
		return 0, false
	}
	f, _ := out.AsBigFloat().Float64()
	return f, true
}
