package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/model"
)

// ErrRunFailed means a pass finished without success. Its report has
// already been written to the output.
var ErrRunFailed = errors.New("run did not succeed")

// Run executes the configured command and writes its report as JSON to the
// app's output.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	cfg := a.config
	req := designate.Request{Params: cfg.Params, Prefix: cfg.Prefix, Order: cfg.Order}
	o := a.orchestrator

	var (
		report  any
		success bool
		errs    model.Errors
	)
	switch cfg.Command {
	case CommandPropagate:
		r := o.Propagate(ctx, cfg.ProjectRoot, cfg.Params)
		report, success, errs = r, r.Success, r.Errors
	case CommandDesignate:
		r := o.Designate(ctx, cfg.ProjectRoot, req)
		report, success, errs = r, r.Success, r.Errors
	case CommandDrawings:
		r := o.RefreshDrawings(ctx, cfg.ProjectRoot)
		report, success, errs = r, r.Success, r.Errors
	case CommandFlatPatterns:
		r := o.LabelFlatPatterns(ctx, cfg.ProjectRoot, cfg.Order)
		report, success, errs = r, r.Success, r.Errors
	case CommandAll:
		r := o.All(ctx, cfg.ProjectRoot, req)
		report, success, errs = r, r.Success(), r.Errors()
	case CommandHistory:
		return a.history(ctx)
	default:
		return fmt.Errorf("unknown command %q", cfg.Command)
	}

	for _, e := range errs {
		a.logger.Warn("Run error.", "kind", e.Kind, "path", e.Path, "message", e.Message)
	}
	if err := a.writeJSON(report); err != nil {
		return err
	}
	a.logger.Info("Run finished.", "command", cfg.Command, "success", success, "errors", len(errs))
	if !success {
		return fmt.Errorf("%s: %w", cfg.Command, ErrRunFailed)
	}
	return nil
}

// history prints the most recent journaled passes.
func (a *App) history(ctx context.Context) error {
	runs, err := a.journal.Runs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to read run journal: %w", err)
	}
	return a.writeJSON(runs)
}

func (a *App) writeJSON(v any) error {
	enc := json.NewEncoder(a.outW)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
