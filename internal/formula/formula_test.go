package formula

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/hcl_adapter"
	"github.com/vk/paramcascade/internal/hclexpr"
	"github.com/vk/paramcascade/internal/model"
)

func defaultCompiled(t *testing.T) *Compiled {
	t.Helper()
	family, err := hcl_adapter.NewLoader().Load(context.Background())
	require.NoError(t, err)
	c, err := Compile(FromConfig(family.Rules))
	require.NoError(t, err)
	return c
}

func rule(t *testing.T, output, src string) Rule {
	t.Helper()
	expr, diags := hclexpr.Parse(src, output+".hcl")
	require.False(t, diags.HasErrors(), diags.Error())
	return Rule{Output: output, Expr: expr, Inputs: hclexpr.RootNames(expr)}
}

func TestCompile_DefaultTableOrder(t *testing.T) {
	c := defaultCompiled(t)
	assert.Equal(t, "zvd-1", c.Version())
	assert.Equal(t, []string{"A1", "A4", "A3", "B3", "B4", "B5", "B6", "A5"}, c.Order())
}

func TestCompile(t *testing.T) {
	t.Run("dependency declared later runs first", func(t *testing.T) {
		c, err := Compile(Table{Rules: []Rule{
			rule(t, "B", "A + 1"),
			rule(t, "C", "H * 2"),
			rule(t, "A", "H - 1"),
		}})
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A", "B"}, c.Order())
	})

	t.Run("self reference reads the previous value", func(t *testing.T) {
		c, err := Compile(Table{Rules: []Rule{rule(t, "A", "A + 1")}})
		require.NoError(t, err)
		assert.Equal(t, []string{"A"}, c.Order())
	})

	t.Run("cycle is rejected", func(t *testing.T) {
		_, err := Compile(Table{Version: "bad", Rules: []Rule{
			rule(t, "X", "Y + 1"),
			rule(t, "Y", "X + 1"),
		}})
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("unknown function is rejected", func(t *testing.T) {
		_, err := Compile(Table{Rules: []Rule{rule(t, "X", `upper("a")`)}})
		assert.ErrorContains(t, err, `unknown function "upper"`)
	})

	t.Run("unspaced formula name is rejected", func(t *testing.T) {
		_, err := Compile(Table{Rules: []Rule{rule(t, "B5", "B1-4")}})
		assert.ErrorContains(t, err, `rule "B5" reads "B1-4"`)
	})

	t.Run("normalized formula compiles", func(t *testing.T) {
		expr, diags := hclexpr.ParseFormula("B1-4", "B5.hcl")
		require.False(t, diags.HasErrors())
		c, err := Compile(Table{Rules: []Rule{{Output: "B5", Expr: expr, Inputs: hclexpr.RootNames(expr)}}})
		require.NoError(t, err)
		assert.Equal(t, []string{"B5"}, c.Order())
	})

	t.Run("duplicate output is rejected", func(t *testing.T) {
		_, err := Compile(Table{Rules: []Rule{rule(t, "X", "1"), rule(t, "X", "2")}})
		assert.ErrorContains(t, err, "duplicate rule")
	})
}

func TestEvaluate_DefaultTable(t *testing.T) {
	c := defaultCompiled(t)
	base := model.Params{H: 160, B1: 350, L1: 2600}.Values()

	testCases := []struct {
		name     string
		observed map[string]float64
		want     map[string]float64
		skipped  []string
	}{
		{
			name:     "full template",
			observed: map[string]float64{"A1": 70, "A2": 20, "A3": 59.5, "B2": 40, "C7": 12},
			want: map[string]float64{
				"A1": 140, "A4": 135, "A3": 129.5,
				"B3": 263.1, "B4": 267.5, "B5": 346, "B6": 290, "A5": 18.5,
				"H": 160, "B1": 350, "L1": 2600, "C7": 12,
			},
		},
		{
			name:     "A3 absent uses the fallback offset",
			observed: map[string]float64{"A2": 20, "B2": 40},
			want:     map[string]float64{"A1": 140, "A3": 120, "A4": 135},
		},
		{
			name:     "without A2 the observed A1 is kept",
			observed: map[string]float64{"A1": 88},
			want:     map[string]float64{"A1": 88, "A4": 83, "A3": 68, "B5": 346},
			skipped:  []string{"A1", "B3", "B4", "A5"},
		},
		{
			name:     "without A1 or A2 only B1 rules fire",
			observed: map[string]float64{},
			want:     map[string]float64{"B5": 346, "B6": 290},
			skipped:  []string{"A1", "A4", "A3", "B3", "B4", "A5"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			res, err := Evaluate(context.Background(), c, base, tc.observed)

			// --- Assert ---
			require.NoError(t, err)
			for name, want := range tc.want {
				require.Contains(t, res.Values, name)
				assert.InDelta(t, want, res.Values[name], 1e-9, name)
			}
			if tc.skipped != nil {
				assert.Equal(t, tc.skipped, res.Skipped)
			}
		})
	}
}

func TestEvaluate_Divergences(t *testing.T) {
	c := defaultCompiled(t)
	base := model.Params{H: 160, B1: 350, L1: 2600}.Values()
	observed := map[string]float64{
		"A2": 20,
		"A1": 140.005, // within tolerance
		"B5": 300,     // stale
	}

	res, err := Evaluate(context.Background(), c, base, observed)

	require.NoError(t, err)
	require.Len(t, res.Divergences, 1)
	assert.Equal(t, model.Divergence{Name: "B5", Observed: 300, Derived: 346}, res.Divergences[0])
	assert.Equal(t, float64(346), res.Values["B5"], "rule value wins")
}

func TestEvaluate_Functions(t *testing.T) {
	c, err := Compile(Table{Rules: []Rule{
		rule(t, "M", "max(H, 10, B1)"),
		rule(t, "N", "min(H, 10)"),
		rule(t, "F", "floor(H / 7) + ceil(0.2) + abs(-2)"),
		rule(t, "O", `observed_or("Z", 5) + observed_or("Q", 1)`),
		rule(t, "D", `observed_diff("Z", "Q", 3)`),
	}})
	require.NoError(t, err)

	res, err := Evaluate(context.Background(), c, map[string]float64{"H": 100, "B1": 300}, map[string]float64{"Z": 9})

	require.NoError(t, err)
	assert.Equal(t, float64(300), res.Values["M"])
	assert.Equal(t, float64(10), res.Values["N"])
	assert.Equal(t, float64(14+1+2), res.Values["F"])
	assert.Equal(t, float64(10), res.Values["O"])
	assert.Equal(t, float64(3), res.Values["D"])
}

func TestEvaluate_NonNumericResult(t *testing.T) {
	c, err := Compile(Table{Rules: []Rule{rule(t, "S", `"text"`)}})
	require.NoError(t, err)

	_, err = Evaluate(context.Background(), c, nil, nil)

	assert.ErrorContains(t, err, `rule "S"`)
}

func TestEvaluate_Cancelled(t *testing.T) {
	c := defaultCompiled(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, c, nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
}
