package session

import (
	"context"
	"errors"

	"github.com/vk/paramcascade/internal/model"
)

var (
	// ErrConnection means the CAD application could not be reached or dropped the connection.
	ErrConnection = errors.New("cad session connection failed")
	// ErrNotFound means a document path does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrOpenFailed means the document exists but the CAD application refused to open it.
	ErrOpenFailed = errors.New("document open failed")
	// ErrVariableNotFound means the document has no variable of the requested name.
	ErrVariableNotFound = errors.New("variable not found")
	// ErrNoActiveDocument means no document is open.
	ErrNoActiveDocument = errors.New("no active document")
	// ErrInvalidHandle means the handle does not belong to an open document of this session.
	ErrInvalidHandle = errors.New("invalid document handle")
)

// ErrorKind maps a session error onto the report taxonomy. fallback is used
// for errors that carry no session-level meaning.
func ErrorKind(err error, fallback model.ErrorKind) model.ErrorKind {
	switch {
	case err == nil:
		return fallback
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.KindCancelled
	case errors.Is(err, ErrConnection):
		return model.KindConnection
	case errors.Is(err, ErrNotFound):
		return model.KindDocumentNotFound
	case errors.Is(err, ErrVariableNotFound):
		return model.KindVariableNotFound
	default:
		return fallback
	}
}

// IsFatal reports whether err should stop a run rather than be recorded
// and skipped: a lost connection or a cancelled context.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
