// Package memsession provides a deterministic, in-memory implementation of
// the session.Session and session.Factory interfaces. It stands in for the
// CAD application in tests and in dry runs driven by an HCL fixture.
//
// # Documents on disk
//
// Every simulated document is backed by a real file in the project
// directory. The file only holds a document key; the document content
// (variables, instances, marking, name) lives in memory. Opening a path reads
// the key from the file, so renaming or deleting files on disk behaves the
// way it would against the real application.
//
// # Working and persisted copies
//
// Opening a document copies its persisted state into a working copy. Edits
// touch only the working copy until Save. Closing without saving discards
// them, which lets tests observe that a failed step leaves files untouched.
//
// # Recompute
//
// A Rebuild re-evaluates every formula variable once, in table order, against
// the document's current values. Like the real engine, a single rebuild does
// not settle chains of formulas; repeated cycles do. LazyRebuilds makes the
// first rebuilds no-ops to simulate an engine that ignores them. Writing a
// formula expression evaluates that single variable immediately.
//
// # Fault injection and inspection
//
// Options can fail specific opens or variable writes, drop the connection
// after a number of calls, or fail the first acquisitions. The World records
// every call so tests can assert ordering and counts.
package memsession
