package formula

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// FunctionNames lists the functions rule expressions may call.
func FunctionNames() []string {
	return []string{"observed_diff", "observed_or", "max", "min", "abs", "floor", "ceil"}
}

// functions builds the function table for one evaluation. The observed_*
// functions read the values as reported by the CAD engine before any rule
// fired, never the working set.
func functions(observed map[string]float64) map[string]function.Function {
	return map[string]function.Function{
		"observed_diff": observedDiffFunc(observed),
		"observed_or":   observedOrFunc(observed),
		"max":           stdlib.MaxFunc,
		"min":           stdlib.MinFunc,
		"abs":           stdlib.AbsoluteFunc,
		"floor":         stdlib.FloorFunc,
		"ceil":          stdlib.CeilFunc,
	}
}

// observedDiffFunc returns observed[a] - observed[b] when both were read,
// otherwise fallback.
func observedDiffFunc(observed map[string]float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "a", Type: cty.String},
			{Name: "b", Type: cty.String},
			{Name: "fallback", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			a, okA := observed[args[0].AsString()]
			b, okB := observed[args[1].AsString()]
			if !okA || !okB {
				return args[2], nil
			}
			return cty.NumberFloatVal(a - b), nil
		},
	})
}

// observedOrFunc returns observed[name] when it was read, otherwise fallback.
func observedOrFunc(observed map[string]float64) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "name", Type: cty.String},
			{Name: "fallback", Type: cty.Number},
		},
		Type: function.StaticReturnType(cty.Number),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			if v, ok := observed[args[0].AsString()]; ok {
				return cty.NumberFloatVal(v), nil
			}
			return args[1], nil
		},
	})
}
