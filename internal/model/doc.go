// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the small set of types shared by every pass of a
// re-parameterization run: the operator's base parameters, the error taxonomy,
// and the per-pass report records.
//
// # Core Concepts
//
//   - Params: the three base dimensions (H, B1, L1) in millimetres. They are
//     supplied by the operator, written once at the start of propagation and
//     never derived.
//
//   - RunError / Errors: every public operation of the engine reports failures
//     as data instead of returning them. A RunError carries a Kind from a closed
//     taxonomy so callers can tell a fatal connection loss from a skipped part.
//
//   - Reports: one record per pass (propagation, designation, drawing refresh,
//     flat-pattern labelling). Partial success is a first-class outcome; a
//     report with Success=true may still carry errors.
//
// Nothing in this package talks to the CAD session or the file system. It is
// the leaf every other package may import.
package model
