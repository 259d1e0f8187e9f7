// This file contains the gohcl schema structs for family and fixture files.
// They mirror the HCL syntax one to one; translation into the
// format-agnostic config model happens in translate_model.go.

package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Families  []*Family   `hcl:"family,block"`
	Documents []*Document `hcl:"document,block"`
	Remain    hcl.Body    `hcl:",remain"`
}

// Family is the HCL schema for a `family` block.
type Family struct {
	Name            string           `hcl:"name,label"`
	Prefixes        []string         `hcl:"prefixes"`
	ReservedPrefix  *string          `hcl:"reserved_prefix,optional"`
	Exclude         []string         `hcl:"exclude,optional"`
	ReopenKeywords  []string         `hcl:"reopen_keywords,optional"`
	AssemblyDrawing *AssemblyDrawing `hcl:"assembly_drawing,block"`
	Categories      []*Category      `hcl:"category,block"`
	FlatPattern     *FlatPattern     `hcl:"flat_pattern,block"`
	Timing          *Timing          `hcl:"timing,block"`
	Rules           *Rules           `hcl:"rules,block"`
}

// AssemblyDrawing is the HCL schema for an `assembly_drawing` block.
type AssemblyDrawing struct {
	Keywords       []string `hcl:"keywords"`
	PrimaryKeyword *string  `hcl:"primary_keyword,optional"`
	PrimarySuffix  *string  `hcl:"primary_suffix,optional"`
}

// Category is the HCL schema for a `category` block.
type Category struct {
	Name         string   `hcl:"name,label"`
	Kind         string   `hcl:"kind"`
	Keywords     []string `hcl:"keywords"`
	LengthOffset *int     `hcl:"length_offset,optional"`
}

// FlatPattern is the HCL schema for a `flat_pattern` block.
type FlatPattern struct {
	StripWords   []string `hcl:"strip_words,optional"`
	SkipParts    []string `hcl:"skip_parts,optional"`
	MinWordRunes *int     `hcl:"min_word_runes,optional"`
	Aliases      []*Alias `hcl:"alias,block"`
}

// Alias is the HCL schema for an `alias` block.
type Alias struct {
	From string  `hcl:"from,label"`
	Part *string `hcl:"part,optional"`
	Skip *bool   `hcl:"skip,optional"`
}

// Timing is the HCL schema for a `timing` block.
type Timing struct {
	Cycles *int              `hcl:"cycles,optional"`
	Delays map[string]string `hcl:"delays,optional"`
}

// Rules is the HCL schema for a `rules` block.
type Rules struct {
	Version string  `hcl:"version,label"`
	Rules   []*Rule `hcl:"rule,block"`
}

// Rule is the HCL schema for a `rule` block. The value expression is kept
// unevaluated.
type Rule struct {
	Output  string         `hcl:"output,label"`
	Value   hcl.Expression `hcl:"value"`
	Flagged *bool          `hcl:"flagged,optional"`
	Note    *string        `hcl:"note,optional"`
}

// Document is the HCL schema for a fixture `document` block.
type Document struct {
	File      string      `hcl:"file,label"`
	Marking   *string     `hcl:"marking,optional"`
	Name      *string     `hcl:"name,optional"`
	Variables []*Variable `hcl:"variable,block"`
	Instances []*Instance `hcl:"instance,block"`
}

// Variable is the HCL schema for a fixture `variable` block.
type Variable struct {
	Name       string   `hcl:"name,label"`
	Value      *float64 `hcl:"value,optional"`
	Expression *string  `hcl:"expression,optional"`
	External   *bool    `hcl:"external,optional"`
}

// Instance is the HCL schema for a fixture `instance` block.
type Instance struct {
	Name        string  `hcl:"name"`
	Designation *string `hcl:"designation,optional"`
	Source      string  `hcl:"source"`
}
