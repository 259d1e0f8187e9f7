package memsession

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vk/paramcascade/internal/session"
)

type openDoc struct {
	doc     *document
	path    string
	working DocumentState
}

// Session is one connection to a World. It is not safe for concurrent use,
// matching the single-threaded CAD application it simulates.
type Session struct {
	world   *World
	id      int
	calls   int
	dropped bool
	seq     int
	open    map[session.Handle]*openDoc
	order   []session.Handle
}

var _ session.Session = (*Session)(nil)

// begin checks the connection, records the call and returns with the world
// lock held; the caller must unlock.
func (s *Session) begin(method, file, arg string) error {
	w := s.world
	w.mu.Lock()
	if s.dropped {
		return fmt.Errorf("%s: %w", method, session.ErrConnection)
	}
	s.calls++
	if w.opts.DropAfter > 0 && s.calls > w.opts.DropAfter {
		s.dropped = true
		return fmt.Errorf("%s: connection dropped: %w", method, session.ErrConnection)
	}
	w.record(Call{Session: s.id, Method: method, File: file, Arg: arg})
	return nil
}

func (s *Session) lookup(h session.Handle) (*openDoc, error) {
	od, ok := s.open[h]
	if !ok {
		return nil, fmt.Errorf("handle %q: %w", h, session.ErrInvalidHandle)
	}
	return od, nil
}

func (s *Session) fileOf(h session.Handle) string {
	if od, ok := s.open[h]; ok {
		return filepath.Base(od.path)
	}
	return string(h)
}

// Open implements session.Session.
func (s *Session) Open(ctx context.Context, path string) (session.Handle, error) {
	file := filepath.Base(path)
	w := s.world
	if err := s.begin("Open", file, ""); err != nil {
		w.mu.Unlock()
		return "", err
	}
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ferr, ok := w.opts.FailOpen[file]; ok {
		return "", fmt.Errorf("open %s: %w: %v", file, session.ErrOpenFailed, ferr)
	}

	key, err := readKey(w.resolve(path))
	if err != nil {
		return "", err
	}
	doc, ok := w.docs[key]
	if !ok {
		return "", fmt.Errorf("open %s: unknown document: %w", file, session.ErrOpenFailed)
	}

	for h, od := range s.open {
		if od.doc == doc {
			s.activate(h)
			return h, nil
		}
	}

	s.seq++
	h := session.Handle(fmt.Sprintf("s%d:%d", s.id, s.seq))
	s.open[h] = &openDoc{doc: doc, path: path, working: cloneState(doc.state)}
	s.activate(h)
	w.open[key]++
	return h, nil
}

func (s *Session) activate(h session.Handle) {
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.order = append(s.order, h)
}

// ActiveDocument implements session.Session.
func (s *Session) ActiveDocument(ctx context.Context) (session.Handle, error) {
	w := s.world
	if err := s.begin("ActiveDocument", "", ""); err != nil {
		w.mu.Unlock()
		return "", err
	}
	defer w.mu.Unlock()
	if len(s.order) == 0 {
		return "", session.ErrNoActiveDocument
	}
	return s.order[len(s.order)-1], nil
}

// Rebuild implements session.Session.
func (s *Session) Rebuild(ctx context.Context, h session.Handle, stage session.RebuildStage) error {
	w := s.world
	if err := s.begin("Rebuild", s.fileOf(h), stage.String()); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	w.rebuilds++
	if w.rebuilds <= w.opts.LazyRebuilds {
		return nil
	}
	recompute(&od.working)
	return nil
}

// Save implements session.Session.
func (s *Session) Save(ctx context.Context, h session.Handle) error {
	w := s.world
	if err := s.begin("Save", s.fileOf(h), ""); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	od.doc.state = cloneState(od.working)
	return nil
}

// Close implements session.Session.
func (s *Session) Close(ctx context.Context, h session.Handle, saveFirst bool) error {
	w := s.world
	if err := s.begin("Close", s.fileOf(h), strconv.FormatBool(saveFirst)); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	if saveFirst {
		od.doc.state = cloneState(od.working)
	}
	s.release(h, od)
	return nil
}

func (s *Session) release(h session.Handle, od *openDoc) {
	delete(s.open, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	w := s.world
	if w.open[od.doc.key] > 0 {
		w.open[od.doc.key]--
	}
}

// CloseAll implements session.Session. It closes every document open in the
// application, including those left behind by earlier sessions.
func (s *Session) CloseAll(ctx context.Context) error {
	w := s.world
	if err := s.begin("CloseAll", "", ""); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()
	for h, od := range s.open {
		s.release(h, od)
	}
	clear(w.open)
	return nil
}

// ListVariables implements session.Session.
func (s *Session) ListVariables(ctx context.Context, h session.Handle) ([]session.Variable, error) {
	w := s.world
	if err := s.begin("ListVariables", s.fileOf(h), ""); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	out := make([]session.Variable, len(od.working.Variables))
	copy(out, od.working.Variables)
	return out, nil
}

// SetVariable implements session.Session.
func (s *Session) SetVariable(ctx context.Context, h session.Handle, name string, upd session.VariableUpdate) error {
	w := s.world
	if err := s.begin("SetVariable", s.fileOf(h), name); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	if ferr, ok := w.opts.FailSet[name]; ok {
		return fmt.Errorf("set %s: %w", name, ferr)
	}

	idx := -1
	for i, v := range od.working.Variables {
		if v.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%s in %s: %w", name, filepath.Base(od.path), session.ErrVariableNotFound)
	}

	v := &od.working.Variables[idx]
	if upd.Value != nil {
		v.Value = *upd.Value
	}
	if upd.Expression != nil {
		v.Expression = *upd.Expression
		if n, err := strconv.ParseFloat(strings.TrimSpace(v.Expression), 64); err == nil {
			v.Value = n
		} else if val, ok := evaluate(v.Expression, values(od.working.Variables)); ok {
			v.Value = val
		}
	}
	if upd.External != nil {
		v.External = *upd.External
	}
	return nil
}

// ListInstances implements session.Session.
func (s *Session) ListInstances(ctx context.Context, h session.Handle) ([]session.Instance, error) {
	w := s.world
	if err := s.begin("ListInstances", s.fileOf(h), ""); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return nil, err
	}
	out := make([]session.Instance, len(od.working.Instances))
	copy(out, od.working.Instances)
	return out, nil
}

// SetInstanceDesignation implements session.Session.
func (s *Session) SetInstanceDesignation(ctx context.Context, h session.Handle, index int, designation string) error {
	w := s.world
	if err := s.begin("SetInstanceDesignation", s.fileOf(h), fmt.Sprintf("%d=%s", index, designation)); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(od.working.Instances) {
		return fmt.Errorf("instance index %d out of range (%d instances)", index, len(od.working.Instances))
	}
	od.working.Instances[index].Designation = designation
	return nil
}

// Properties implements session.Session.
func (s *Session) Properties(ctx context.Context, h session.Handle) (session.Properties, error) {
	w := s.world
	if err := s.begin("Properties", s.fileOf(h), ""); err != nil {
		w.mu.Unlock()
		return session.Properties{}, err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return session.Properties{}, err
	}
	return session.Properties{Designation: od.working.Marking, Name: od.working.Name}, nil
}

// SetProperties implements session.Session.
func (s *Session) SetProperties(ctx context.Context, h session.Handle, props session.Properties) error {
	w := s.world
	if err := s.begin("SetProperties", s.fileOf(h), props.Designation); err != nil {
		w.mu.Unlock()
		return err
	}
	defer w.mu.Unlock()

	od, err := s.lookup(h)
	if err != nil {
		return err
	}
	od.working.Marking = props.Designation
	od.working.Name = props.Name
	return nil
}

// Disconnect implements session.Session. Documents left open stay open in
// the application until a later session closes them.
func (s *Session) Disconnect(ctx context.Context) error {
	w := s.world
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record(Call{Session: s.id, Method: "Disconnect"})
	s.open = make(map[session.Handle]*openDoc)
	s.order = nil
	s.dropped = true
	return nil
}
