package cascade

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/formula"
	"github.com/vk/paramcascade/internal/metrics"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/propagate"
	"github.com/vk/paramcascade/internal/session"
)

// Propagate pushes the base parameters into the project at root and cascades
// the derived values into its parts. The pass succeeds when the assembly took
// at least one base variable and no step had to stop early.
func (o *Orchestrator) Propagate(ctx context.Context, root string, params model.Params) model.PropagationReport {
	ctx = ctxlog.With(ctx, "pass", metrics.PassPropagate)
	logger := ctxlog.FromContext(ctx)
	started := time.Now()

	var report model.PropagationReport
	if err := params.Validate(); err != nil {
		report.Errors.Add(model.KindOther, "", err)
		o.Metrics.RecordPropagation(report, time.Since(started))
		return report
	}

	runID := o.begin(ctx, metrics.PassPropagate, root, "", params)
	logger.Info("Propagation started.", "root", root, "run_id", runID, "H", params.H, "B1", params.B1, "L1", params.L1)

	var lost model.Errors
	attempt := 0
	err := session.Retry(ctx, o.Factory, o.Attempts, func(ctx context.Context, s session.Session) error {
		if attempt > 0 {
			lost = append(lost, report.Errors...)
		}
		attempt++
		var err error
		report, err = o.propagate(ctx, s, root, params)
		return err
	})
	report.Errors = append(lost, report.Errors...)
	recordFailure(&report.Errors, err)
	report.Success = err == nil && report.AssemblyVarsUpdated > 0
	report.RunID = runID

	logger.Info("Propagation finished.",
		"success", report.Success,
		"assembly_vars", report.AssemblyVarsUpdated,
		"parts", report.PartsUpdated,
		"part_vars", report.TotalVarsInParts,
		"errors", len(report.Errors))
	o.Metrics.RecordPropagation(report, time.Since(started))
	o.finish(ctx, runID, report.Success, report)
	return report
}

// propagate is one attempt of the pass on one session.
func (o *Orchestrator) propagate(ctx context.Context, s session.Session, root string, params model.Params) (model.PropagationReport, error) {
	logger := ctxlog.FromContext(ctx)
	var report model.PropagationReport

	p, err := project.Scan(root)
	if err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), root, err)
		return report, err
	}
	if err := closeAll(ctx, s, o.Pacer); err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), "", err)
		return report, err
	}

	res, err := o.updateAssembly(ctx, s, p.Assembly, params, &report)
	if err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), p.Assembly, err)
		return report, err
	}
	report.Derived = derivedOnly(res, params)
	report.Divergences = res.Divergences

	for _, part := range p.Parts {
		if err := ctx.Err(); err != nil {
			report.Errors.Add(model.KindCancelled, "", err)
			return report, err
		}
		if o.Excluder.Excluded(part) {
			logger.Debug("Part excluded from propagation.", "path", part)
			continue
		}
		if err := o.updatePart(ctx, s, part, res.Values, &report); err != nil {
			if session.IsFatal(err) {
				report.Errors.Add(session.ErrorKind(err, model.KindOther), part, err)
				return report, err
			}
			logger.Warn("Part skipped.", "path", part, "error", err)
			report.Errors.Add(model.KindPartUpdate, part, err)
		}
	}

	if err := o.refreshAssembly(ctx, s, p.Assembly); err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), p.Assembly, err)
		if session.IsFatal(err) {
			return report, err
		}
	}
	return report, nil
}

// updateAssembly writes the base parameters, converges the assembly and
// derives the working set from it.
func (o *Orchestrator) updateAssembly(ctx context.Context, s session.Session, path string, params model.Params, report *model.PropagationReport) (formula.Result, error) {
	var res formula.Result
	err := session.WithDocument(ctx, s, o.Pacer, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		written, errs, err := propagate.WriteBase(ctx, s, o.Pacer, h, params)
		report.AssemblyVarsUpdated = written
		report.Errors = append(report.Errors, errs...)
		if err != nil {
			return err
		}
		if err := session.Converge(ctx, s, o.Pacer, h, o.Cycles); err != nil {
			return err
		}
		if res, err = propagate.ReadAndDerive(ctx, s, h, params, o.Rules); err != nil {
			return err
		}
		return session.SaveAndWait(ctx, s, o.Pacer, h)
	})
	return res, err
}

// updatePart copies the working set into one part. Parts matching the reopen
// keywords are closed and opened again so that values read at open time
// pick up the new dimensions.
func (o *Orchestrator) updatePart(ctx context.Context, s session.Session, path string, values map[string]float64, report *model.PropagationReport) error {
	logger := ctxlog.FromContext(ctx).With("path", path)
	light := o.Pacer.Light()

	var res propagate.PartResult
	err := session.WithDocument(ctx, s, light, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		var err error
		if res, err = propagate.WritePart(ctx, s, light, h, path, values); err != nil {
			return err
		}
		if !res.Updated() {
			return nil
		}
		if err := session.Converge(ctx, s, light, h, 1); err != nil {
			return err
		}
		return session.SaveAndWait(ctx, s, light, h)
	})
	report.Errors = append(report.Errors, res.Errors...)
	if err != nil {
		return err
	}
	if !res.Updated() {
		logger.Debug("Part has no matching variables.")
		return nil
	}
	report.PartsUpdated++
	report.TotalVarsInParts += len(res.Touched)
	logger.Info("Part updated.", "variables", len(res.Touched), "formulas", len(res.Formulas))

	if !o.Reopen.Match(filepath.Base(path)) {
		return nil
	}
	logger.Info("Reopening part to re-evaluate open-time formulas.")
	if err := o.Pacer.Wait(ctx, session.PauseReopen); err != nil {
		return err
	}
	return session.WithDocument(ctx, s, light, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		if err := session.Converge(ctx, s, light, h, o.Cycles); err != nil {
			return err
		}
		return session.SaveAndWait(ctx, s, light, h)
	})
}

// refreshAssembly reopens the assembly so it picks up the changed parts.
func (o *Orchestrator) refreshAssembly(ctx context.Context, s session.Session, path string) error {
	ctxlog.FromContext(ctx).Info("Refreshing assembly geometry.", "path", path)
	return session.WithDocument(ctx, s, o.Pacer, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		if err := session.Converge(ctx, s, o.Pacer, h, o.Cycles); err != nil {
			return err
		}
		return session.SaveAndWait(ctx, s, o.Pacer, h)
	})
}

// derivedOnly keeps the base parameters and the rule outputs of a working set.
func derivedOnly(res formula.Result, params model.Params) map[string]float64 {
	out := params.Values()
	for _, name := range res.Applied {
		if v, ok := res.Values[name]; ok {
			out[name] = v
		}
	}
	return out
}

// recordFailure adds err to errs unless a failure of the same kind is
// already there.
func recordFailure(errs *model.Errors, err error) {
	if err == nil {
		return
	}
	kind := session.ErrorKind(err, model.KindOther)
	if errs.Has(kind) {
		return
	}
	errs.Add(kind, "", fmt.Errorf("pass stopped: %w", err))
}
