// Package propagate pushes base dimensions into the assembly, reads back and
// re-derives the dependent values, and copies them into the part files
// without disturbing formulas the parts compute themselves.
package propagate

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/formula"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/session"
)

// WriteBase writes H, B1 and L1 into the open assembly: the numeric value,
// the literal expression text and the External flag. A missing variable is
// recorded and the remaining ones are still written. A lost connection or
// cancellation aborts.
func WriteBase(ctx context.Context, s session.Session, p *session.Pacer, h session.Handle, params model.Params) (int, model.Errors, error) {
	logger := ctxlog.FromContext(ctx)
	var errs model.Errors
	values := params.Values()
	written := 0

	for _, name := range model.BaseNames {
		v := values[name]
		expr := FormatLiteral(v)
		external := true
		upd := session.VariableUpdate{Value: &v, Expression: &expr, External: &external}

		if err := s.SetVariable(ctx, h, name, upd); err != nil {
			if session.IsFatal(err) {
				return written, errs, err
			}
			kind := session.ErrorKind(err, model.KindOther)
			logger.Warn("Base variable not written.", "variable", name, "error", err)
			errs.Add(kind, name, err)
			continue
		}
		written++
		logger.Info("Base variable written.", "variable", name, "value", expr)
		if err := p.Wait(ctx, session.PauseWrite); err != nil {
			return written, errs, err
		}
	}
	return written, errs, nil
}

// ReadAndDerive reads every variable of the converged assembly and evaluates
// the rule table against it.
func ReadAndDerive(ctx context.Context, s session.Session, h session.Handle, params model.Params, rules *formula.Compiled) (formula.Result, error) {
	logger := ctxlog.FromContext(ctx)

	vars, err := s.ListVariables(ctx, h)
	if err != nil {
		return formula.Result{}, fmt.Errorf("read assembly variables: %w", err)
	}
	observed := make(map[string]float64, len(vars))
	var external []string
	for _, v := range vars {
		observed[v.Name] = v.Value
		if v.External {
			external = append(external, v.Name)
		}
	}
	logger.Info("Assembly variables read.", "count", len(vars), "external", external)

	res, err := formula.Evaluate(ctx, rules, params.Values(), observed)
	if err != nil {
		return res, fmt.Errorf("derive variables: %w", err)
	}
	logger.Info("Derived variables computed.", "applied", res.Applied, "skipped", res.Skipped, "divergences", len(res.Divergences))
	return res, nil
}

// PartResult summarises the writes into one part.
type PartResult struct {
	// Touched lists the variables written, in write order.
	Touched []string
	// Formulas lists the variables whose formula was refreshed in place.
	Formulas []string
	Errors   model.Errors
}

// Updated reports whether any field of the part was written.
func (r PartResult) Updated() bool { return len(r.Touched) > 0 }

// WritePart copies derived values into the open part. Only variables that
// already exist in the part are written and instance-scoped names are left
// alone. Links are replaced by the literal value, formulas are cleared and
// restored verbatim so the engine re-evaluates them, and literals are
// overwritten. Every written variable is marked External. Literal writes go
// first so refreshed formulas see the new values.
func WritePart(ctx context.Context, s session.Session, p *session.Pacer, h session.Handle, path string, derived map[string]float64) (PartResult, error) {
	logger := ctxlog.FromContext(ctx).With("path", path)
	var res PartResult

	vars, err := s.ListVariables(ctx, h)
	if err != nil {
		return res, fmt.Errorf("read part variables: %w", err)
	}

	existing := make(map[string]session.Variable, len(vars))
	for _, v := range vars {
		existing[v.Name] = v
	}

	var literals, formulas []session.Variable
	names := make([]string, 0, len(derived))
	for name := range derived {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if IsInstanceScoped(name) {
			continue
		}
		v, ok := existing[name]
		if !ok {
			continue
		}
		if ClassifyExpression(v.Expression) == Formula {
			formulas = append(formulas, v)
		} else {
			literals = append(literals, v)
		}
	}

	external := true
	for _, v := range literals {
		value := derived[v.Name]
		expr := FormatLiteral(value)
		upd := session.VariableUpdate{Value: &value, Expression: &expr, External: &external}
		if err := s.SetVariable(ctx, h, v.Name, upd); err != nil {
			if session.IsFatal(err) {
				return res, err
			}
			logger.Warn("Part variable not written.", "variable", v.Name, "error", err)
			res.Errors.Add(session.ErrorKind(err, model.KindPartUpdate), path+":"+v.Name, err)
			continue
		}
		logger.Debug("Part variable written.", "variable", v.Name, "old", v.Value, "new", value, "kind", ClassifyExpression(v.Expression))
		res.Touched = append(res.Touched, v.Name)
		if err := p.Wait(ctx, session.PauseWrite); err != nil {
			return res, err
		}
	}

	for _, v := range formulas {
		if err := refreshFormula(ctx, s, h, v); err != nil {
			if session.IsFatal(err) {
				return res, err
			}
			logger.Warn("Formula not refreshed.", "variable", v.Name, "error", err)
			res.Errors.Add(session.ErrorKind(err, model.KindPartUpdate), path+":"+v.Name, err)
			continue
		}
		logger.Debug("Formula refreshed.", "variable", v.Name, "expression", v.Expression)
		res.Touched = append(res.Touched, v.Name)
		res.Formulas = append(res.Formulas, v.Name)
		if err := p.Wait(ctx, session.PauseWrite); err != nil {
			return res, err
		}
	}

	return res, nil
}

// refreshFormula clears and restores an expression. The no-op edit forces
// the engine to evaluate it against the values just written.
func refreshFormula(ctx context.Context, s session.Session, h session.Handle, v session.Variable) error {
	if err := s.SetVariable(ctx, h, v.Name, session.SetExpression("")); err != nil {
		return err
	}
	if err := s.SetVariable(ctx, h, v.Name, session.SetExpression(v.Expression)); err != nil {
		return err
	}
	return s.SetVariable(ctx, h, v.Name, session.SetExternal(true))
}
