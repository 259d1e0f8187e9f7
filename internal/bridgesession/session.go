// Package bridgesession reaches a CAD application through a socket.io
// automation bridge. Every session call is a "call" event carrying an id,
// a method name and parameters; the bridge answers with a "result" event
// carrying the same id.
package bridgesession

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/session"
)

// DefaultCallTimeout bounds one bridge call when the config sets none.
const DefaultCallTimeout = 60 * time.Second

// conn is the part of a socket.io client the session needs.
type conn interface {
	Emit(event string, payload any)
	Disconnect()
}

type reply struct {
	res result
	err error
}

// Session implements session.Session over one socket.io connection.
type Session struct {
	conn    conn
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan reply
	dropped error
}

var _ session.Session = (*Session)(nil)

func newSession(c conn, timeout time.Duration) *Session {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Session{conn: c, timeout: timeout, pending: make(map[string]chan reply)}
}

// onResult is the listener of the "result" event.
func (s *Session) onResult(args ...any) {
	if len(args) == 0 {
		return
	}
	res, err := decodeResult(args[0])
	if err != nil {
		// Without an id the reply cannot be routed; the caller times out.
		return
	}
	s.mu.Lock()
	ch, ok := s.pending[res.ID]
	delete(s.pending, res.ID)
	s.mu.Unlock()
	if ok {
		ch <- reply{res: res}
	}
}

// onDisconnect fails every pending call and every later one, then releases
// the connection. The release runs outside the socket's event dispatch.
func (s *Session) onDisconnect(args ...any) {
	reason := "connection closed"
	if len(args) > 0 {
		reason = fmt.Sprint(args[0])
	}
	s.fail(fmt.Errorf("bridge disconnected (%s): %w", reason, session.ErrConnection))
	go s.conn.Disconnect()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dropped == nil {
		s.dropped = err
	}
	for id, ch := range s.pending {
		ch <- reply{err: err}
		delete(s.pending, id)
	}
}

// invoke sends one call and decodes the reply data into out, if out is not nil.
func (s *Session) invoke(ctx context.Context, method string, params map[string]any, out any) error {
	id := uuid.NewString()
	ch := make(chan reply, 1)

	s.mu.Lock()
	if s.dropped != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", method, s.dropped)
	}
	s.pending[id] = ch
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Bridge call.", "method", method, "id", id)
	s.conn.Emit(eventCall, call{ID: id, Method: method, Params: params})

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.forget(id)
		return ctx.Err()
	case <-timer.C:
		s.forget(id)
		return fmt.Errorf("%s: no reply after %s: %w", method, s.timeout, session.ErrConnection)
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("%s: %w", method, r.err)
		}
		if !r.res.OK {
			return r.res.err(method)
		}
		if out == nil || len(r.res.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(r.res.Data, out); err != nil {
			return fmt.Errorf("%s: decode reply: %w", method, err)
		}
		return nil
	}
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *Session) Open(ctx context.Context, path string) (session.Handle, error) {
	var d handleData
	if err := s.invoke(ctx, "open", map[string]any{"path": path}, &d); err != nil {
		return "", err
	}
	return session.Handle(d.Handle), nil
}

func (s *Session) ActiveDocument(ctx context.Context) (session.Handle, error) {
	var d handleData
	if err := s.invoke(ctx, "active_document", nil, &d); err != nil {
		return "", err
	}
	if d.Handle == "" {
		return "", session.ErrNoActiveDocument
	}
	return session.Handle(d.Handle), nil
}

func (s *Session) Rebuild(ctx context.Context, h session.Handle, stage session.RebuildStage) error {
	name, ok := stageNames[stage]
	if !ok {
		return fmt.Errorf("rebuild: unknown stage %d", stage)
	}
	return s.invoke(ctx, "rebuild", map[string]any{"handle": string(h), "stage": name}, nil)
}

func (s *Session) Save(ctx context.Context, h session.Handle) error {
	return s.invoke(ctx, "save", map[string]any{"handle": string(h)}, nil)
}

func (s *Session) Close(ctx context.Context, h session.Handle, saveFirst bool) error {
	return s.invoke(ctx, "close", map[string]any{"handle": string(h), "save": saveFirst}, nil)
}

func (s *Session) CloseAll(ctx context.Context) error {
	return s.invoke(ctx, "close_all", nil, nil)
}

func (s *Session) ListVariables(ctx context.Context, h session.Handle) ([]session.Variable, error) {
	var d variablesData
	if err := s.invoke(ctx, "list_variables", map[string]any{"handle": string(h)}, &d); err != nil {
		return nil, err
	}
	out := make([]session.Variable, 0, len(d.Variables))
	for _, v := range d.Variables {
		out = append(out, session.Variable{Name: v.Name, Value: v.Value, Expression: v.Expression, External: v.External})
	}
	return out, nil
}

func (s *Session) SetVariable(ctx context.Context, h session.Handle, name string, upd session.VariableUpdate) error {
	params := map[string]any{"handle": string(h), "name": name}
	if upd.Value != nil {
		params["value"] = *upd.Value
	}
	if upd.Expression != nil {
		params["expression"] = *upd.Expression
	}
	if upd.External != nil {
		params["external"] = *upd.External
	}
	return s.invoke(ctx, "set_variable", params, nil)
}

func (s *Session) ListInstances(ctx context.Context, h session.Handle) ([]session.Instance, error) {
	var d instancesData
	if err := s.invoke(ctx, "list_instances", map[string]any{"handle": string(h)}, &d); err != nil {
		return nil, err
	}
	out := make([]session.Instance, 0, len(d.Instances))
	for _, in := range d.Instances {
		out = append(out, session.Instance{Index: in.Index, Name: in.Name, Designation: in.Designation, SourceFile: in.SourceFile})
	}
	return out, nil
}

func (s *Session) SetInstanceDesignation(ctx context.Context, h session.Handle, index int, designation string) error {
	return s.invoke(ctx, "set_instance_designation",
		map[string]any{"handle": string(h), "index": index, "designation": designation}, nil)
}

func (s *Session) Properties(ctx context.Context, h session.Handle) (session.Properties, error) {
	var d propertiesData
	if err := s.invoke(ctx, "properties", map[string]any{"handle": string(h)}, &d); err != nil {
		return session.Properties{}, err
	}
	return session.Properties{Designation: d.Designation, Name: d.Name}, nil
}

func (s *Session) SetProperties(ctx context.Context, h session.Handle, props session.Properties) error {
	return s.invoke(ctx, "set_properties",
		map[string]any{"handle": string(h), "designation": props.Designation, "name": props.Name}, nil)
}

// Disconnect closes the socket. Pending and later calls fail with
// session.ErrConnection.
func (s *Session) Disconnect(ctx context.Context) error {
	s.fail(fmt.Errorf("session disconnected: %w", session.ErrConnection))
	s.conn.Disconnect()
	ctxlog.FromContext(ctx).Debug("Bridge session disconnected.")
	return nil
}
