// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the error taxonomy carried by run reports.
//
// Why report errors as data?
//
// The CAD application is an external, stateful process. A run touches dozens of
// files and any one of them may fail to open or save. Aborting on the first
// failure would leave the project half-updated with no record of what happened,
// so each pass collects RunErrors and keeps going wherever the taxonomy allows.
package model

import "fmt"

// ErrorKind classifies a failure recorded during a run.
type ErrorKind string

const (
	// KindConnection means no document session could be obtained. Fatal to the run.
	KindConnection ErrorKind = "ConnectionFailure"
	// KindDocumentNotFound is fatal to the enclosing step (e.g. missing assembly).
	KindDocumentNotFound ErrorKind = "DocumentNotFound"
	// KindVariableNotFound skips a single variable; the step continues.
	KindVariableNotFound ErrorKind = "VariableNotFound"
	// KindPartUpdate skips a single part; the remaining parts continue.
	KindPartUpdate ErrorKind = "PartUpdateFailure"
	// KindRenameCollision records a stale rename target that was removed.
	KindRenameCollision ErrorKind = "RenameCollision"
	// KindAmbiguousMatch is a flat-pattern match with zero or several best candidates.
	KindAmbiguousMatch ErrorKind = "AmbiguousMatch"
	// KindCancelled marks a run stopped by the operator between two steps.
	KindCancelled ErrorKind = "Cancelled"
	// KindOther is anything that does not fit the taxonomy above.
	KindOther ErrorKind = "Error"
)

// Fatal reports whether a failure of this kind ends the enclosing step.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindConnection, KindDocumentNotFound, KindCancelled:
		return true
	default:
		return false
	}
}

// RunError is a single recorded failure.
type RunError struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path,omitempty"`
	Message string    `json:"message"`
}

// String renders the error the way it is shown to the operator.
func (e RunError) String() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, e.Message)
}

// Errors is the ordered error list of a report.
type Errors []RunError

// Add appends a failure. A nil err is ignored.
func (e *Errors) Add(kind ErrorKind, path string, err error) {
	if err == nil {
		return
	}
	*e = append(*e, RunError{Kind: kind, Path: path, Message: err.Error()})
}

// Addf appends a formatted failure.
func (e *Errors) Addf(kind ErrorKind, path, format string, args ...any) {
	*e = append(*e, RunError{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether at least one error of the given kind was recorded.
func (e Errors) Has(kind ErrorKind) bool {
	for _, re := range e {
		if re.Kind == kind {
			return true
		}
	}
	return false
}

// Strings renders every error verbatim, in recording order.
func (e Errors) Strings() []string {
	out := make([]string, 0, len(e))
	for _, re := range e {
		out = append(out, re.String())
	}
	return out
}
