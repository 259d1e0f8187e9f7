package hclexpr_test

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/hclexpr"
	"github.com/zclconf/go-cty/cty"
)

// parseExpr is a test helper to quickly get an hcl.Expression from a string.
func parseExpr(t *testing.T, exprStr string) hcl.Expression {
	t.Helper()
	expr, diags := hclexpr.Parse(exprStr, "test.hcl")
	require.False(t, diags.HasErrors(), "Expression parsing failed: %s", diags.Error())
	return expr
}

func TestRootNames(t *testing.T) {
	testCases := []struct {
		name  string
		exprs []string
		want  []string
	}{
		{name: "single reference", exprs: []string{"A1 - 5"}, want: []string{"A1"}},
		{name: "first appearance order", exprs: []string{"B1 - 2*B2 - 6.9"}, want: []string{"B1", "B2"}},
		{name: "dedup across expressions", exprs: []string{"H - A2", "A2 - 1.5"}, want: []string{"H", "A2"}},
		{name: "instance scoped name", exprs: []string{"v1398_B3 + 1"}, want: []string{"v1398_B3"}},
		{name: "literal", exprs: []string{"42"}, want: nil},
		{name: "function arguments", exprs: []string{"max(A1, A3) - 20"}, want: []string{"A1", "A3"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var exprs []hcl.Expression
			for _, src := range tc.exprs {
				exprs = append(exprs, parseExpr(t, src))
			}
			assert.Equal(t, tc.want, hclexpr.RootNames(exprs...))
		})
	}
}

func TestCalledFunctions(t *testing.T) {
	exprs := []hcl.Expression{
		parseExpr(t, `observed_diff("A1", "A3", 20)`),
		parseExpr(t, `max(A1, floor(A2)) > 0 ? abs(B1) : 0`),
		parseExpr(t, `A1 - 5`),
		nil,
	}

	assert.Equal(t, []string{"abs", "floor", "max", "observed_diff"}, hclexpr.CalledFunctions(exprs...))
}

func TestTraversalKey(t *testing.T) {
	expr := parseExpr(t, "doc.vars[0].A1")
	vars := expr.Variables()
	require.Len(t, vars, 1)
	assert.Equal(t, "doc.vars[0].A1", hclexpr.TraversalKey(vars[0]))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, diags := hclexpr.Parse(`C:\parts\a.m3d|A1`, "test.hcl")
	assert.True(t, diags.HasErrors())
}

func TestParseFormula(t *testing.T) {
	testCases := []struct {
		src       string
		wantNorm  string
		wantRoots []string
	}{
		{src: "A1-20", wantNorm: "A1 - 20", wantRoots: []string{"A1"}},
		{src: "H-A2", wantNorm: "H - A2", wantRoots: []string{"H", "A2"}},
		{src: "B1-2*B2-6.9", wantNorm: "B1 - 2 * B2 - 6.9", wantRoots: []string{"B1", "B2"}},
		{src: "(A1+A3)/2", wantNorm: "(A1 + A3) / 2", wantRoots: []string{"A1", "A3"}},
		{src: "A1*-2", wantNorm: "A1 * -2", wantRoots: []string{"A1"}},
		{src: "A1 - 5", wantNorm: "A1 - 5", wantRoots: []string{"A1"}},
		{src: `observed_diff("A-1", "A3", 20)`, wantNorm: `observed_diff("A-1", "A3", 20)`, wantRoots: nil},
		{src: "42", wantNorm: "42", wantRoots: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			assert.Equal(t, tc.wantNorm, hclexpr.NormalizeFormula(tc.src))

			expr, diags := hclexpr.ParseFormula(tc.src, "formula")
			require.False(t, diags.HasErrors(), diags.Error())
			assert.Equal(t, tc.wantRoots, hclexpr.RootNames(expr))
		})
	}
}

func TestParseFormula_Evaluates(t *testing.T) {
	expr, diags := hclexpr.ParseFormula("A1-20", "formula")
	require.False(t, diags.HasErrors())

	v, diags := expr.Value(&hcl.EvalContext{Variables: map[string]cty.Value{"A1": cty.NumberIntVal(140)}})

	require.False(t, diags.HasErrors())
	got, _ := v.AsBigFloat().Float64()
	assert.Equal(t, 120.0, got)
}
