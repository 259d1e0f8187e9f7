// Package cascade sequences the passes of a re-parameterization run against
// the CAD application: variable propagation, designation assignment, drawing
// refresh and flat-pattern labelling.
//
// Every pass acquires a fresh session, closes whatever the application still
// has open, and walks the project one document at a time. Nothing here runs
// concurrently: the CAD application has a single active document and its
// calls return before their effects are visible, so each call is followed by
// the settle delay of its class. A lost connection restarts the pass on a new
// session; any other failure is recorded in the pass report and the pass
// carries on wherever that is safe.
package cascade

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/formula"
	"github.com/vk/paramcascade/internal/journal"
	"github.com/vk/paramcascade/internal/metrics"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/propagate"
	"github.com/vk/paramcascade/internal/quantity"
	"github.com/vk/paramcascade/internal/session"
)

// DefaultAttempts is how many sessions a pass may use before giving up.
const DefaultAttempts = 2

// Orchestrator runs passes over project directories. Passes share the
// engines' rename hooks, so an orchestrator runs one pass at a time.
type Orchestrator struct {
	Family   *config.Family
	Factory  session.Factory
	Pacer    *session.Pacer
	Rules    *formula.Compiled
	Excluder *propagate.Excluder
	// Reopen selects parts that are closed, reopened and rebuilt again after
	// their first save.
	Reopen   designate.Keywords
	Cycles   int
	Attempts int
	Journal  *journal.Journal
	Metrics  *metrics.Recorder

	designer *designate.Engine
	labeler  *quantity.Labeler
}

// New builds an orchestrator for a product family. The pacer uses the
// family's timing at scale 1.
func New(f *config.Family, factory session.Factory) (*Orchestrator, error) {
	if f == nil {
		return nil, fmt.Errorf("product family is required")
	}
	rules, err := formula.Compile(formula.FromConfig(f.Rules))
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	delays := make(map[session.Pause]time.Duration)
	cycles := 3
	if f.Timing != nil {
		for k, v := range f.Timing.Delays {
			delays[session.Pause(k)] = v
		}
		if f.Timing.Cycles > 0 {
			cycles = f.Timing.Cycles
		}
	}

	o := &Orchestrator{
		Family:   f,
		Factory:  factory,
		Rules:    rules,
		Excluder: propagate.NewExcluder(f.Exclude...),
		Reopen:   designate.NewKeywords(f.ReopenKeywords...),
		Cycles:   cycles,
		Attempts: DefaultAttempts,
	}
	o.SetPacer(session.NewPacer(delays, 1))
	return o, nil
}

// SetPacer replaces the pacer of the orchestrator and of its engines.
func (o *Orchestrator) SetPacer(p *session.Pacer) {
	o.Pacer = p
	o.designer = designate.NewEngine(o.Family, p)
	o.labeler = quantity.NewLabeler(o.Family, p)
}

// onRename returns the rename observer of one journaled run.
func (o *Orchestrator) onRename(ctx context.Context, runID string) func(from, to string) {
	return func(from, to string) {
		o.Metrics.RecordRename(strings.ToLower(filepath.Ext(to)))
		if err := o.Journal.RecordRename(context.WithoutCancel(ctx), runID, from, to); err != nil {
			ctxlog.FromContext(ctx).Warn("Rename not journaled.", "from", from, "to", to, "error", err)
		}
	}
}

// begin opens a journal entry. Journal failures never stop a pass.
func (o *Orchestrator) begin(ctx context.Context, kind, root, prefix string, params model.Params) string {
	id, err := o.Journal.Begin(ctx, kind, root, prefix, params)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Run not journaled.", "pass", kind, "error", err)
	}
	return id
}

func (o *Orchestrator) finish(ctx context.Context, runID string, success bool, report any) {
	if err := o.Journal.Finish(context.WithoutCancel(ctx), runID, success, report); err != nil {
		ctxlog.FromContext(ctx).Warn("Run result not journaled.", "run_id", runID, "error", err)
	}
}

// closeAll releases documents left open by an earlier run.
func closeAll(ctx context.Context, s session.Session, p *session.Pacer) error {
	if err := s.CloseAll(ctx); err != nil {
		return fmt.Errorf("close open documents: %w", err)
	}
	return p.Wait(ctx, session.PauseClose)
}
