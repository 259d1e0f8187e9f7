// Package app wires one run of the tool: it loads the product family, picks
// the CAD session backend (a live bridge or an in-memory fixture), builds the
// orchestrator and dispatches the selected command. It knows nothing about
// flags or exit codes.
package app
