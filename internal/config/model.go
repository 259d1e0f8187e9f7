package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// CategoryKind separates the component categories that change the
// designation rule.
type CategoryKind string

const (
	KindHousing   CategoryKind = "housing"
	KindPurchased CategoryKind = "purchased"
)

// Family is the unified representation of one product family.
type Family struct {
	Name string
	// Prefixes are the product-line tags a run may choose from.
	Prefixes []string
	// ReservedPrefix marks auxiliary instances that are never numbered.
	ReservedPrefix string
	// Exclude holds gitignore-style patterns for part files skipped by propagation.
	Exclude []string
	// ReopenKeywords select parts that need a close and reopen after the first save.
	ReopenKeywords []string

	AssemblyDrawing *AssemblyDrawing
	Categories      []*Category
	FlatPattern     *FlatPattern
	Timing          *Timing
	Rules           *RuleSet
}

// AssemblyDrawing describes how assembly-level drawings are recognised.
type AssemblyDrawing struct {
	Keywords       []string
	PrimaryKeyword string
	PrimarySuffix  string
}

// Category is one named component category.
type Category struct {
	Name     string
	Kind     CategoryKind
	Keywords []string
	// LengthOffset, when set, rewrites the length field of a purchased
	// component's designation to L1 minus this offset.
	LengthOffset *int
}

// FlatPattern holds the DXF to part matching rules.
type FlatPattern struct {
	StripWords   []string
	SkipParts    []string
	MinWordRunes int
	// Aliases are checked in declaration order, most specific first.
	Aliases []*Alias
}

// Alias maps a DXF key phrase to a part key phrase, or drops the file.
type Alias struct {
	From string
	To   string
	Skip bool
}

// Timing holds the settle delays, keyed by pause name, and the number of
// convergence cycles.
type Timing struct {
	Cycles int
	Delays map[string]time.Duration
}

// RuleSet is a versioned table of derived-variable rules.
type RuleSet struct {
	Version string
	Rules   []*RuleDefinition
}

// RuleDefinition is one derived-variable rule. Value stays unevaluated until
// the formula package binds it to the values of a run.
type RuleDefinition struct {
	Output  string
	Value   hcl.Expression
	Flagged bool
	Note    string
}

// --- Simulated CAD world ---

// Fixture is a set of documents keyed by file name.
type Fixture struct {
	Documents []*DocumentFixture
}

// DocumentFixture is the content of one CAD document.
type DocumentFixture struct {
	File      string
	Marking   string
	Name      string
	Variables []*VariableFixture
	Instances []*InstanceFixture
}

// VariableFixture is one entry of a document's variable table.
type VariableFixture struct {
	Name       string
	Value      float64
	Expression string
	External   bool
}

// InstanceFixture is one placement inside an assembly.
type InstanceFixture struct {
	Name        string
	Designation string
	Source      string
}
