// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the structured report returned by each pass.
package model

// Divergence records a derived variable whose value as read from the CAD
// engine disagrees with the value recomputed from the rule table.
type Divergence struct {
	Name     string  `json:"name"`
	Observed float64 `json:"observed"`
	Derived  float64 `json:"derived"`
}

// PropagationReport is the outcome of a variable propagation pass.
type PropagationReport struct {
	RunID               string             `json:"run_id,omitempty"`
	Success             bool               `json:"success"`
	AssemblyVarsUpdated int                `json:"assembly_vars_updated"`
	PartsUpdated        int                `json:"parts_updated"`
	TotalVarsInParts    int                `json:"total_vars_in_parts"`
	Derived             map[string]float64 `json:"derived,omitempty"`
	Divergences         []Divergence       `json:"divergences,omitempty"`
	Errors              Errors             `json:"errors"`
}

// Binding ties a part file to the designation resolved for it.
type Binding struct {
	SourceFile  string `json:"source_file"`
	Designation string `json:"designation"`
	Name        string `json:"name"`
	Seq         int    `json:"seq"`
	Category    string `json:"category"`
	// Orphan marks a part present on disk but absent from the assembly; its
	// designation is synthesized from the file's own sequence number.
	Orphan bool `json:"orphan,omitempty"`
}

// DesignationReport is the outcome of a designation assignment pass.
type DesignationReport struct {
	RunID            string    `json:"run_id,omitempty"`
	Success          bool      `json:"success"`
	AssemblyRenamed  bool      `json:"assembly_renamed"`
	PartsRenamed     int       `json:"parts_renamed"`
	DrawingsRenamed  int       `json:"drawings_renamed"`
	InstancesUpdated int       `json:"instances_updated"`
	Bindings         []Binding `json:"bindings,omitempty"`
	Errors           Errors    `json:"errors"`
}

// DrawingReport is the outcome of a drawing refresh pass.
type DrawingReport struct {
	RunID   string `json:"run_id,omitempty"`
	Success bool   `json:"success"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
	Errors  Errors `json:"errors"`
}

// FlatPatternReport is the outcome of labelling exported flat patterns.
type FlatPatternReport struct {
	RunID   string `json:"run_id,omitempty"`
	Success bool   `json:"success"`
	Renamed int    `json:"renamed"`
	Skipped int    `json:"skipped"`
	Errors  Errors `json:"errors"`
}
