package propagate

import (
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// Excluder matches part file names against gitignore-style patterns. Matched
// parts are auxiliary and receive no propagated values.
type Excluder struct {
	gi *ignore.GitIgnore
}

// NewExcluder compiles the patterns. An empty list excludes nothing.
func NewExcluder(patterns ...string) *Excluder {
	if len(patterns) == 0 {
		return &Excluder{}
	}
	return &Excluder{gi: ignore.CompileIgnoreLines(patterns...)}
}

// Excluded reports whether the file at path is excluded. Only the base name
// is matched.
func (e *Excluder) Excluded(path string) bool {
	if e == nil || e.gi == nil {
		return false
	}
	return e.gi.MatchesPath(filepath.Base(path))
}
