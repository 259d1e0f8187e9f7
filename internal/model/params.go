// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the operator-supplied base parameters and the designation
// stems derived from them.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// Base parameter names as they appear in the assembly's variable table.
const (
	ParamH  = "H"
	ParamB1 = "B1"
	ParamL1 = "L1"
)

// BaseNames lists the base parameters in the order they are written.
var BaseNames = []string{ParamH, ParamB1, ParamL1}

// Params holds the three top-level dimensions, in millimetres.
type Params struct {
	H  int
	B1 int
	L1 int
}

// Validate checks that every dimension is a positive integer.
func (p Params) Validate() error {
	var bad []string
	if p.H <= 0 {
		bad = append(bad, fmt.Sprintf("H=%d", p.H))
	}
	if p.B1 <= 0 {
		bad = append(bad, fmt.Sprintf("B1=%d", p.B1))
	}
	if p.L1 <= 0 {
		bad = append(bad, fmt.Sprintf("L1=%d", p.L1))
	}
	if len(bad) > 0 {
		return fmt.Errorf("base parameters must be positive: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Values returns the base parameters keyed by variable name.
func (p Params) Values() map[string]float64 {
	return map[string]float64{
		ParamH:  float64(p.H),
		ParamB1: float64(p.B1),
		ParamL1: float64(p.L1),
	}
}

// FullName is the designation stem that includes the length: {prefix}.{H}.{B1}.{L1}.
// It names the assembly itself and the single housing identity.
func (p Params) FullName(prefix string) string {
	return fmt.Sprintf("%s.%d.%d.%d", prefix, p.H, p.B1, p.L1)
}

// ShortName is the designation stem without the length: {prefix}.{H}.{B1}.
func (p Params) ShortName(prefix string) string {
	return fmt.Sprintf("%s.%d.%d", prefix, p.H, p.B1)
}

// ValidatePrefix checks a project prefix against the configured product lines.
func ValidatePrefix(prefix string, allowed []string) error {
	if prefix == "" {
		return fmt.Errorf("project prefix is required")
	}
	if len(allowed) > 0 && !slices.Contains(allowed, prefix) {
		return fmt.Errorf("unknown project prefix %q (allowed: %s)", prefix, strings.Join(allowed, ", "))
	}
	return nil
}
