package session

import (
	"context"
	"time"
)

// Pause names a class of settle delay. The CAD engine returns from its calls
// before their effects are visible in the document, so every call is followed
// by a fixed stall of the matching class.
type Pause string

const (
	PauseOpen            Pause = "open"
	PauseWrite           Pause = "write"
	PauseUpdate          Pause = "update"
	PauseRebuildModel    Pause = "rebuild_model"
	PauseRebuildDocument Pause = "rebuild_document"
	PauseSave            Pause = "save"
	PauseClose           Pause = "close"
	PauseReopen          Pause = "reopen"
)

// DefaultDelays are the settle delays used against a real CAD application.
func DefaultDelays() map[Pause]time.Duration {
	return map[Pause]time.Duration{
		PauseOpen:            time.Second,
		PauseWrite:           100 * time.Millisecond,
		PauseUpdate:          time.Second,
		PauseRebuildModel:    2 * time.Second,
		PauseRebuildDocument: 2 * time.Second,
		PauseSave:            time.Second,
		PauseClose:           time.Second,
		PauseReopen:          2 * time.Second,
	}
}

// Pacer inserts the settle delays. A nil Pacer, or one with Scale 0, never
// sleeps but still honours cancellation.
type Pacer struct {
	Delays map[Pause]time.Duration
	// Scale multiplies every delay; 1 is the configured timing.
	Scale float64
}

// NewPacer returns a pacer over the given delays. Missing pauses fall back to
// DefaultDelays.
func NewPacer(delays map[Pause]time.Duration, scale float64) *Pacer {
	merged := DefaultDelays()
	for k, v := range delays {
		merged[k] = v
	}
	return &Pacer{Delays: merged, Scale: scale}
}

// NoDelay returns a pacer that never sleeps.
func NoDelay() *Pacer {
	return &Pacer{Scale: 0}
}

// Duration returns the effective delay for a pause.
func (p *Pacer) Duration(pause Pause) time.Duration {
	if p == nil || p.Scale <= 0 {
		return 0
	}
	return time.Duration(float64(p.Delays[pause]) * p.Scale)
}

// Light returns a pacer with halved delays, used for single parts which
// rebuild faster than the assembly.
func (p *Pacer) Light() *Pacer {
	if p == nil {
		return nil
	}
	return &Pacer{Delays: p.Delays, Scale: p.Scale / 2}
}

// Wait stalls for the pause's delay or until ctx is done.
func (p *Pacer) Wait(ctx context.Context, pause Pause) error {
	d := p.Duration(pause)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
