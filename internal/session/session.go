// Package session defines the Document Session contract: the opaque
// capability used to open, rebuild, save and close CAD documents and to read
// and write their variables and assembly instances. It abstracts away whether
// the CAD application is simulated in memory or reached through a bridge.
package session

import (
	"context"
	"path/filepath"
	"strings"
)

// Handle identifies an open document within one session.
type Handle string

// Kind is the document type, derived from the file extension.
type Kind int

const (
	KindUnknown Kind = iota
	KindAssembly
	KindPart
	KindDrawing
)

// File extensions of the CAD documents.
const (
	ExtAssembly = ".a3d"
	ExtPart     = ".m3d"
	ExtDrawing  = ".cdw"
)

// KindOf infers the document kind from a path.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtAssembly:
		return KindAssembly
	case ExtPart:
		return KindPart
	case ExtDrawing:
		return KindDrawing
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case KindAssembly:
		return "assembly"
	case KindPart:
		return "part"
	case KindDrawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Variable is one named entry of a document's variable table.
type Variable struct {
	Name       string
	Value      float64
	Expression string
	// External marks the variable as settable from outside the document.
	External bool
}

// VariableUpdate carries the fields to change; nil fields are left untouched.
type VariableUpdate struct {
	Value      *float64
	Expression *string
	External   *bool
}

// SetValue returns an update that writes a numeric value.
func SetValue(v float64) VariableUpdate { return VariableUpdate{Value: &v} }

// SetExpression returns an update that writes expression text.
func SetExpression(expr string) VariableUpdate { return VariableUpdate{Expression: &expr} }

// SetExternal returns an update that writes the External flag.
func SetExternal(external bool) VariableUpdate { return VariableUpdate{External: &external} }

// Instance is one placement of a component inside an assembly, as enumerated
// by the CAD engine. Index is its position in that enumeration.
type Instance struct {
	Index       int
	Name        string
	Designation string
	SourceFile  string
}

// Properties are the top-level marking (designation) and descriptive name of
// an open document.
type Properties struct {
	Designation string
	Name        string
}

// RebuildStage selects which recompute the CAD engine performs.
type RebuildStage int

const (
	// StageUpdate pushes pending variable edits into the model.
	StageUpdate RebuildStage = iota
	// StageModel rebuilds the part/assembly model.
	StageModel
	// StageDocument rebuilds the whole document, including sketches.
	StageDocument
)

func (s RebuildStage) String() string {
	switch s {
	case StageUpdate:
		return "update"
	case StageModel:
		return "rebuild-model"
	case StageDocument:
		return "rebuild-document"
	default:
		return "unknown"
	}
}

// Session is a connection to a single CAD application instance. It supports
// one active document at a time; calls are strictly sequential.
type Session interface {
	// Open opens a document and makes it active. Fails with ErrNotFound or ErrOpenFailed.
	Open(ctx context.Context, path string) (Handle, error)
	// ActiveDocument returns the currently active document.
	ActiveDocument(ctx context.Context) (Handle, error)
	Rebuild(ctx context.Context, h Handle, stage RebuildStage) error
	Save(ctx context.Context, h Handle) error
	Close(ctx context.Context, h Handle, saveFirst bool) error
	// CloseAll closes every open document without saving.
	CloseAll(ctx context.Context) error

	ListVariables(ctx context.Context, h Handle) ([]Variable, error)
	// SetVariable updates an existing variable. Fails with ErrVariableNotFound
	// if the document has no variable of that name; it never creates one.
	SetVariable(ctx context.Context, h Handle, name string, upd VariableUpdate) error

	// ListInstances enumerates assembly instances in the engine's natural order.
	ListInstances(ctx context.Context, h Handle) ([]Instance, error)
	SetInstanceDesignation(ctx context.Context, h Handle, index int, designation string) error

	Properties(ctx context.Context, h Handle) (Properties, error)
	SetProperties(ctx context.Context, h Handle, props Properties) error

	// Disconnect releases the connection. Handles become invalid.
	Disconnect(ctx context.Context) error
}

// Factory obtains sessions. Every Acquire must return a fresh connection;
// handles from a previous session are never reused.
type Factory interface {
	Acquire(ctx context.Context) (Session, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context) (Session, error)

// Acquire calls f.
func (f FactoryFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }
