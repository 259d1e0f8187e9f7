package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/vk/paramcascade/internal/session"
)

// Instrument wraps a factory so that every acquired session reports its
// calls.
func Instrument(f session.Factory) session.Factory {
	return session.FactoryFunc(func(ctx context.Context) (session.Session, error) {
		s, err := f.Acquire(ctx)
		if err != nil {
			SessionsAcquired.WithLabelValues("failure").Inc()
			return nil, err
		}
		SessionsAcquired.WithLabelValues("success").Inc()
		return &instrumented{inner: s}, nil
	})
}

type instrumented struct {
	inner session.Session
}

var _ session.Session = (*instrumented)(nil)

func observe(method string, start time.Time, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, session.ErrConnection):
		status = "connection"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	default:
		status = "error"
	}
	SessionCallsTotal.WithLabelValues(method, status).Inc()
	SessionCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Open(ctx context.Context, path string) (session.Handle, error) {
	start := time.Now()
	h, err := i.inner.Open(ctx, path)
	observe("Open", start, err)
	return h, err
}

func (i *instrumented) ActiveDocument(ctx context.Context) (session.Handle, error) {
	start := time.Now()
	h, err := i.inner.ActiveDocument(ctx)
	observe("ActiveDocument", start, err)
	return h, err
}

func (i *instrumented) Rebuild(ctx context.Context, h session.Handle, stage session.RebuildStage) error {
	start := time.Now()
	err := i.inner.Rebuild(ctx, h, stage)
	observe("Rebuild", start, err)
	return err
}

func (i *instrumented) Save(ctx context.Context, h session.Handle) error {
	start := time.Now()
	err := i.inner.Save(ctx, h)
	observe("Save", start, err)
	return err
}

func (i *instrumented) Close(ctx context.Context, h session.Handle, saveFirst bool) error {
	start := time.Now()
	err := i.inner.Close(ctx, h, saveFirst)
	observe("Close", start, err)
	return err
}

func (i *instrumented) CloseAll(ctx context.Context) error {
	start := time.Now()
	err := i.inner.CloseAll(ctx)
	observe("CloseAll", start, err)
	return err
}

func (i *instrumented) ListVariables(ctx context.Context, h session.Handle) ([]session.Variable, error) {
	start := time.Now()
	vars, err := i.inner.ListVariables(ctx, h)
	observe("ListVariables", start, err)
	return vars, err
}

func (i *instrumented) SetVariable(ctx context.Context, h session.Handle, name string, upd session.VariableUpdate) error {
	start := time.Now()
	err := i.inner.SetVariable(ctx, h, name, upd)
	observe("SetVariable", start, err)
	return err
}

func (i *instrumented) ListInstances(ctx context.Context, h session.Handle) ([]session.Instance, error) {
	start := time.Now()
	in, err := i.inner.ListInstances(ctx, h)
	observe("ListInstances", start, err)
	return in, err
}

func (i *instrumented) SetInstanceDesignation(ctx context.Context, h session.Handle, index int, designation string) error {
	start := time.Now()
	err := i.inner.SetInstanceDesignation(ctx, h, index, designation)
	observe("SetInstanceDesignation", start, err)
	return err
}

func (i *instrumented) Properties(ctx context.Context, h session.Handle) (session.Properties, error) {
	start := time.Now()
	p, err := i.inner.Properties(ctx, h)
	observe("Properties", start, err)
	return p, err
}

func (i *instrumented) SetProperties(ctx context.Context, h session.Handle, props session.Properties) error {
	start := time.Now()
	err := i.inner.SetProperties(ctx, h, props)
	observe("SetProperties", start, err)
	return err
}

func (i *instrumented) Disconnect(ctx context.Context) error {
	start := time.Now()
	err := i.inner.Disconnect(ctx)
	observe("Disconnect", start, err)
	return err
}
