package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/fsutil"
	"github.com/vk/paramcascade/internal/model"
)

// Rename is one planned file move.
type Rename struct {
	From string
	To   string
}

// Renamer collects renames while documents are open and executes them once
// every document is closed. Execution is two-phase: all sources first move
// to temporary names, then to their targets, so swaps and chains never
// clobber each other.
type Renamer struct {
	planned []Rename
	// OnRename is called after every completed rename.
	OnRename func(from, to string)
}

// Plan records a rename. Identical paths are ignored.
func (r *Renamer) Plan(from, to string) {
	if from == to {
		return
	}
	r.planned = append(r.planned, Rename{From: from, To: to})
}

// Planned returns the recorded renames.
func (r *Renamer) Planned() []Rename {
	return append([]Rename(nil), r.planned...)
}

// Len returns the number of recorded renames.
func (r *Renamer) Len() int { return len(r.planned) }

// Execute performs the planned renames and returns those that completed. A
// target that already exists and is not itself being renamed is treated as
// stale: it is deleted and a RenameCollision is recorded. Failures of single
// renames are recorded and the rest continue.
func (r *Renamer) Execute(ctx context.Context) ([]Rename, model.Errors) {
	logger := ctxlog.FromContext(ctx)
	var errs model.Errors

	type staged struct {
		Rename
		tmp string
	}
	var stage []staged
	targets := make(map[string]bool)
	stuck := make(map[string]bool)

	for i, rn := range r.planned {
		if targets[rn.To] {
			errs.Addf(model.KindRenameCollision, rn.To, "two files planned onto the same name; %s left in place", filepath.Base(rn.From))
			continue
		}
		tmp := filepath.Join(filepath.Dir(rn.From), fmt.Sprintf(".paramcascade-%d-%s", i, filepath.Base(rn.From)))
		if err := os.Rename(rn.From, tmp); err != nil {
			logger.Warn("Rename failed.", "from", rn.From, "error", err)
			errs.Add(model.KindOther, rn.From, fmt.Errorf("rename: %w", err))
			stuck[rn.From] = true
			continue
		}
		targets[rn.To] = true
		stage = append(stage, staged{Rename: rn, tmp: tmp})
	}

	var done []Rename
	for _, st := range stage {
		if stuck[st.To] {
			errs.Addf(model.KindOther, st.To, "target is a file that could not be moved; %s left in place", filepath.Base(st.From))
			restore(st.tmp, st.From, &errs)
			continue
		}
		if fsutil.Exists(st.To) {
			logger.Warn("Rename target exists and is stale; removing it.", "target", st.To)
			if err := os.Remove(st.To); err != nil {
				errs.Add(model.KindRenameCollision, st.To, fmt.Errorf("remove stale target: %w", err))
				restore(st.tmp, st.From, &errs)
				continue
			}
			errs.Addf(model.KindRenameCollision, st.To, "stale file replaced by %s", filepath.Base(st.From))
		}
		if err := os.Rename(st.tmp, st.To); err != nil {
			errs.Add(model.KindOther, st.From, fmt.Errorf("rename: %w", err))
			restore(st.tmp, st.From, &errs)
			continue
		}
		logger.Info("File renamed.", "from", filepath.Base(st.From), "to", filepath.Base(st.To))
		done = append(done, st.Rename)
		if r.OnRename != nil {
			r.OnRename(st.From, st.To)
		}
	}

	r.planned = nil
	return done, errs
}

func restore(tmp, original string, errs *model.Errors) {
	if err := os.Rename(tmp, original); err != nil {
		errs.Add(model.KindOther, original, fmt.Errorf("restore after failed rename: %w", err))
	}
}
