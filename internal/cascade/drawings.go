package cascade

import (
	"context"
	"path/filepath"
	"time"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/metrics"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

// RefreshDrawings opens every drawing of the project at root, rebuilds it
// against the current models and saves it. Assembly drawings get a second
// rebuild after a longer settle because their views depend on every part.
func (o *Orchestrator) RefreshDrawings(ctx context.Context, root string) model.DrawingReport {
	ctx = ctxlog.With(ctx, "pass", metrics.PassDrawings)
	started := time.Now()

	runID := o.begin(ctx, metrics.PassDrawings, root, "", model.Params{})

	var report model.DrawingReport
	var lost model.Errors
	attempt := 0
	err := session.Retry(ctx, o.Factory, o.Attempts, func(ctx context.Context, s session.Session) error {
		if attempt > 0 {
			lost = append(lost, report.Errors...)
		}
		attempt++
		var err error
		report, err = o.refreshDrawings(ctx, s, root)
		return err
	})
	report.Errors = append(lost, report.Errors...)
	recordFailure(&report.Errors, err)
	report.Success = err == nil && report.Failed == 0
	report.RunID = runID

	o.Metrics.RecordDrawings(report, time.Since(started))
	o.finish(ctx, runID, report.Success, report)
	return report
}

func (o *Orchestrator) refreshDrawings(ctx context.Context, s session.Session, root string) (model.DrawingReport, error) {
	logger := ctxlog.FromContext(ctx)
	var report model.DrawingReport

	p, err := project.Scan(root)
	if err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), root, err)
		return report, err
	}
	if err := closeAll(ctx, s, o.Pacer); err != nil {
		report.Errors.Add(session.ErrorKind(err, model.KindOther), "", err)
		return report, err
	}

	var assemblyKeywords designate.Keywords
	if ad := o.Family.AssemblyDrawing; ad != nil {
		assemblyKeywords = designate.NewKeywords(ad.Keywords...)
	}

	logger.Info("Refreshing drawings.", "count", len(p.Drawings))
	for _, path := range p.Drawings {
		if err := ctx.Err(); err != nil {
			report.Errors.Add(model.KindCancelled, "", err)
			return report, err
		}
		assembly := assemblyKeywords.Match(filepath.Base(path))
		if err := o.refreshDrawing(ctx, s, path, assembly); err != nil {
			if session.IsFatal(err) {
				report.Errors.Add(session.ErrorKind(err, model.KindOther), path, err)
				return report, err
			}
			logger.Warn("Drawing not refreshed.", "path", path, "error", err)
			report.Errors.Add(session.ErrorKind(err, model.KindOther), path, err)
			report.Failed++
			continue
		}
		report.Updated++
	}
	logger.Info("Drawings refreshed.", "updated", report.Updated, "failed", report.Failed)
	return report, nil
}

func (o *Orchestrator) refreshDrawing(ctx context.Context, s session.Session, path string, assembly bool) error {
	return session.WithDocument(ctx, s, o.Pacer, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		if err := s.Rebuild(ctx, h, session.StageDocument); err != nil {
			return err
		}
		if err := o.Pacer.Wait(ctx, session.PauseRebuildDocument); err != nil {
			return err
		}
		if assembly {
			ctxlog.FromContext(ctx).Debug("Rebuilding assembly drawing again.", "path", path)
			if err := o.Pacer.Wait(ctx, session.PauseReopen); err != nil {
				return err
			}
			if err := s.Rebuild(ctx, h, session.StageDocument); err != nil {
				return err
			}
			if err := o.Pacer.Wait(ctx, session.PauseRebuildDocument); err != nil {
				return err
			}
		}
		return session.SaveAndWait(ctx, s, o.Pacer, h)
	})
}
