package memsession

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/session"
)

const keyPrefix = "memsession:"

// Options configures fault injection and recompute behaviour.
type Options struct {
	// FailOpen maps a file name to the error returned when it is opened.
	FailOpen map[string]error
	// FailSet maps a variable name to the error returned when it is written.
	FailSet map[string]error
	// DropAfter, when positive, makes every session lose its connection after
	// that many calls.
	DropAfter int
	// FailAcquire makes the first N acquisitions fail.
	FailAcquire int
	// LazyRebuilds makes the first N rebuilds of the world no-ops.
	LazyRebuilds int
}

// Call is one recorded session call.
type Call struct {
	Session int
	Method  string
	// File is the base name of the document the call targeted, if any.
	File string
	Arg  string
}

// DocumentState is a snapshot of a document's content.
type DocumentState struct {
	Marking   string
	Name      string
	Variables []session.Variable
	Instances []session.Instance
}

type document struct {
	key   string
	state DocumentState
}

// World is the simulated CAD application: a set of documents shared by every
// session acquired from it.
type World struct {
	mu       sync.Mutex
	root     string
	opts     Options
	docs     map[string]*document
	calls    []Call
	sessions int
	acquired int
	rebuilds int
	// open maps a document key to the number of sessions holding it open.
	open map[string]int
}

// NewWorld creates a world rooted at the project directory and writes one
// backing file per fixture document.
func NewWorld(root string, fx *config.Fixture, opts Options) (*World, error) {
	w := &World{
		root: root,
		opts: opts,
		docs: make(map[string]*document),
		open: make(map[string]int),
	}
	if fx == nil {
		return w, nil
	}
	for _, d := range fx.Documents {
		if err := w.AddDocument(d); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// AddDocument materialises one document under the world's root.
func (w *World) AddDocument(d *config.DocumentFixture) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := fmt.Sprintf("doc-%03d", len(w.docs)+1)
	state := DocumentState{Marking: d.Marking, Name: d.Name}
	for _, v := range d.Variables {
		state.Variables = append(state.Variables, session.Variable{
			Name: v.Name, Value: v.Value, Expression: v.Expression, External: v.External,
		})
	}
	for i, in := range d.Instances {
		state.Instances = append(state.Instances, session.Instance{
			Index: i, Name: in.Name, Designation: in.Designation, SourceFile: in.Source,
		})
	}

	path := filepath.Join(w.root, d.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", d.File, err)
	}
	if err := os.WriteFile(path, []byte(keyPrefix+key+"\n"), 0o644); err != nil {
		return fmt.Errorf("write backing file %s: %w", d.File, err)
	}
	w.docs[key] = &document{key: key, state: state}
	return nil
}

// Acquire returns a fresh session. It implements session.Factory.
func (w *World) Acquire(ctx context.Context) (session.Session, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.acquired++
	if w.acquired <= w.opts.FailAcquire {
		return nil, fmt.Errorf("acquire %d: %w", w.acquired, session.ErrConnection)
	}
	w.sessions++
	ctxlog.FromContext(ctx).Debug("In-memory CAD session acquired.", "session", w.sessions)
	return &Session{world: w, id: w.sessions, open: make(map[session.Handle]*openDoc)}, nil
}

// Calls returns a copy of the call log.
func (w *World) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.calls)
}

// CallCount counts recorded calls of a method.
func (w *World) CallCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (w *World) ResetCalls() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = nil
}

// OpenDocuments returns how many documents are currently held open by any session.
func (w *World) OpenDocuments() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, c := range w.open {
		n += c
	}
	return n
}

// Snapshot returns the persisted state of the document backing path.
func (w *World) Snapshot(path string) (DocumentState, error) {
	key, err := readKey(w.resolve(path))
	if err != nil {
		return DocumentState{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.docs[key]
	if !ok {
		return DocumentState{}, fmt.Errorf("%s: %w", path, session.ErrOpenFailed)
	}
	return cloneState(d.state), nil
}

// Variable returns one persisted variable of the document backing path.
func (w *World) Variable(path, name string) (session.Variable, bool) {
	st, err := w.Snapshot(path)
	if err != nil {
		return session.Variable{}, false
	}
	for _, v := range st.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return session.Variable{}, false
}

func (w *World) resolve(path string) string {
	if filepath.IsAbs(path) || w.root == "" {
		return path
	}
	return filepath.Join(w.root, path)
}

// record appends to the call log; the caller holds w.mu.
func (w *World) record(c Call) {
	w.calls = append(w.calls, c)
}

func readKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%s: %w", path, session.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w: %v", path, session.ErrOpenFailed, err)
	}
	line := string(bytes.TrimSpace(data))
	if !strings.HasPrefix(line, keyPrefix) {
		return "", fmt.Errorf("%s is not a simulated document: %w", path, session.ErrOpenFailed)
	}
	return strings.TrimPrefix(line, keyPrefix), nil
}

func cloneState(s DocumentState) DocumentState {
	return DocumentState{
		Marking:   s.Marking,
		Name:      s.Name,
		Variables: slices.Clone(s.Variables),
		Instances: slices.Clone(s.Instances),
	}
}
