package cascade

import (
	"context"
	"time"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/metrics"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

// Designate assigns designations to the project at root and renames its
// files. See designate.Engine for the rules.
func (o *Orchestrator) Designate(ctx context.Context, root string, req designate.Request) model.DesignationReport {
	ctx = ctxlog.With(ctx, "pass", metrics.PassDesignate)
	started := time.Now()

	var report model.DesignationReport
	if err := validateRequest(req, o.Family.Prefixes); err != nil {
		report.Errors.Add(model.KindOther, "", err)
		o.Metrics.RecordDesignation(report, time.Since(started))
		return report
	}

	runID := o.begin(ctx, metrics.PassDesignate, root, req.Prefix, req.Params)
	o.designer.OnRename = o.onRename(ctx, runID)
	defer func() { o.designer.OnRename = nil }()

	var lost model.Errors
	attempt := 0
	err := session.Retry(ctx, o.Factory, o.Attempts, func(ctx context.Context, s session.Session) error {
		if attempt > 0 {
			lost = append(lost, report.Errors...)
		}
		attempt++
		p, err := project.Scan(root)
		if err != nil {
			report = model.DesignationReport{}
			report.Errors.Add(session.ErrorKind(err, model.KindOther), root, err)
			return err
		}
		if err := closeAll(ctx, s, o.Pacer); err != nil {
			report = model.DesignationReport{}
			report.Errors.Add(session.ErrorKind(err, model.KindOther), "", err)
			return err
		}
		report, err = o.designer.Run(ctx, s, p, req)
		return err
	})
	report.Errors = append(lost, report.Errors...)
	recordFailure(&report.Errors, err)
	report.RunID = runID

	o.Metrics.RecordDesignation(report, time.Since(started))
	o.finish(ctx, runID, report.Success, report)
	return report
}

// LabelFlatPatterns renames the exported flat patterns of the project at
// root to carry their part's sequence number and quantity.
func (o *Orchestrator) LabelFlatPatterns(ctx context.Context, root, order string) model.FlatPatternReport {
	ctx = ctxlog.With(ctx, "pass", metrics.PassFlatPattern)
	started := time.Now()

	runID := o.begin(ctx, metrics.PassFlatPattern, root, "", model.Params{})
	o.labeler.OnRename = o.onRename(ctx, runID)
	defer func() { o.labeler.OnRename = nil }()

	var report model.FlatPatternReport
	var lost model.Errors
	attempt := 0
	err := session.Retry(ctx, o.Factory, o.Attempts, func(ctx context.Context, s session.Session) error {
		if attempt > 0 {
			lost = append(lost, report.Errors...)
		}
		attempt++
		p, err := project.Scan(root)
		if err != nil {
			report = model.FlatPatternReport{}
			report.Errors.Add(session.ErrorKind(err, model.KindOther), root, err)
			return err
		}
		report, err = o.labeler.Run(ctx, s, p, order)
		return err
	})
	report.Errors = append(lost, report.Errors...)
	recordFailure(&report.Errors, err)
	if err != nil {
		report.Success = false
	}
	report.RunID = runID

	o.Metrics.RecordFlatPatterns(report, time.Since(started))
	o.finish(ctx, runID, report.Success, report)
	return report
}

// Reports collects the outcome of a full run.
type Reports struct {
	Propagation  model.PropagationReport `json:"propagation"`
	Designation  model.DesignationReport `json:"designation"`
	Drawings     model.DrawingReport     `json:"drawings"`
	FlatPatterns model.FlatPatternReport `json:"flat_patterns"`
}

// Success reports whether every pass succeeded.
func (r Reports) Success() bool {
	return r.Propagation.Success && r.Designation.Success && r.Drawings.Success && r.FlatPatterns.Success
}

// Errors returns the errors of every pass in run order.
func (r Reports) Errors() model.Errors {
	var all model.Errors
	all = append(all, r.Propagation.Errors...)
	all = append(all, r.Designation.Errors...)
	all = append(all, r.Drawings.Errors...)
	all = append(all, r.FlatPatterns.Errors...)
	return all
}

// All runs propagation, designation, drawing refresh and flat-pattern
// labelling in that order. A pass that reports errors does not stop the
// next one; cancellation does.
func (o *Orchestrator) All(ctx context.Context, root string, req designate.Request) Reports {
	var r Reports
	r.Propagation = o.Propagate(ctx, root, req.Params)
	if ctx.Err() != nil {
		return r
	}
	r.Designation = o.Designate(ctx, root, req)
	if ctx.Err() != nil {
		return r
	}
	r.Drawings = o.RefreshDrawings(ctx, root)
	if ctx.Err() != nil {
		return r
	}
	r.FlatPatterns = o.LabelFlatPatterns(ctx, root, req.Order)
	return r
}

func validateRequest(req designate.Request, prefixes []string) error {
	if err := req.Params.Validate(); err != nil {
		return err
	}
	return model.ValidatePrefix(req.Prefix, prefixes)
}
