package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/paramcascade/internal/ctxlog"
)

// CloseMode selects how WithDocument closes a document after a successful body.
type CloseMode int

const (
	// CloseDiscard closes without saving.
	CloseDiscard CloseMode = iota
	// CloseSave asks the engine to save once more while closing.
	CloseSave
)

// WithDocument opens path, runs fn against it and always closes it again.
// The close runs on a context detached from cancellation so that a cancelled
// run still releases the CAD application's file lock. When fn fails the
// document is closed without saving.
func WithDocument(ctx context.Context, s Session, p *Pacer, path string, mode CloseMode, fn func(ctx context.Context, h Handle) error) (err error) {
	logger := ctxlog.FromContext(ctx).With("path", path)

	h, err := s.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	logger.Debug("Document opened.", "handle", h)

	defer func() {
		closeCtx := context.WithoutCancel(ctx)
		saveFirst := mode == CloseSave && err == nil
		if cerr := s.Close(closeCtx, h, saveFirst); cerr != nil {
			logger.Warn("Failed to close document.", "error", cerr)
			if err == nil {
				err = fmt.Errorf("close %s: %w", path, cerr)
			}
		}
		// The close delay is not skipped on cancellation: the engine needs it
		// to actually release the file.
		_ = p.Wait(closeCtx, PauseClose)
	}()

	if err = p.Wait(ctx, PauseOpen); err != nil {
		return err
	}
	return fn(ctx, h)
}

// Converge drives the "update, rebuild model, rebuild document" cycle the
// given number of times. Writing a variable does not make the engine
// recompute its dependents; only these repeated, time-spaced cycles do.
func Converge(ctx context.Context, s Session, p *Pacer, h Handle, cycles int) error {
	logger := ctxlog.FromContext(ctx)
	steps := []struct {
		stage RebuildStage
		pause Pause
	}{
		{StageUpdate, PauseUpdate},
		{StageModel, PauseRebuildModel},
		{StageDocument, PauseRebuildDocument},
	}

	for cycle := 1; cycle <= cycles; cycle++ {
		logger.Debug("Rebuild cycle.", "cycle", cycle, "of", cycles)
		for _, st := range steps {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Rebuild(ctx, h, st.stage); err != nil {
				return fmt.Errorf("rebuild cycle %d (%s): %w", cycle, st.stage, err)
			}
			if err := p.Wait(ctx, st.pause); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveAndWait saves a document and waits for the save to settle.
func SaveAndWait(ctx context.Context, s Session, p *Pacer, h Handle) error {
	if err := s.Save(ctx, h); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return p.Wait(ctx, PauseSave)
}

// Retry runs step against a freshly acquired session. When the step fails
// with ErrConnection the session is dropped and the step is run again on a
// new connection, up to attempts times in total. The session is always
// disconnected before Retry returns.
func Retry(ctx context.Context, f Factory, attempts int, step func(ctx context.Context, s Session) error) error {
	logger := ctxlog.FromContext(ctx)
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s, err := f.Acquire(ctx)
		if err != nil {
			lastErr = fmt.Errorf("acquire session: %w", errors.Join(ErrConnection, err))
			logger.Warn("Failed to acquire CAD session.", "attempt", attempt, "error", err)
			continue
		}

		lastErr = step(ctx, s)
		if derr := s.Disconnect(context.WithoutCancel(ctx)); derr != nil {
			logger.Debug("Disconnect failed.", "error", derr)
		}

		if lastErr == nil || !errors.Is(lastErr, ErrConnection) {
			return lastErr
		}
		logger.Warn("CAD session lost, retrying with a fresh connection.", "attempt", attempt, "error", lastErr)
	}
	return lastErr
}
