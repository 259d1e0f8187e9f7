package designate

import (
	"strings"

	"golang.org/x/text/cases"
)

// Keywords is a set of phrases matched as case-insensitive substrings.
type Keywords struct {
	folded []string
}

// NewKeywords folds the phrases once. Empty phrases are dropped.
func NewKeywords(words ...string) Keywords {
	k := Keywords{folded: make([]string, 0, len(words))}
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			k.folded = append(k.folded, Fold(w))
		}
	}
	return k
}

// Match reports whether name contains any of the phrases.
func (k Keywords) Match(name string) bool {
	_, ok := k.First(name)
	return ok
}

// First returns the first phrase, in declaration order, that name contains.
func (k Keywords) First(name string) (string, bool) {
	folded := Fold(name)
	for _, w := range k.folded {
		if strings.Contains(folded, w) {
			return w, true
		}
	}
	return "", false
}

// Empty reports whether the set holds no phrase.
func (k Keywords) Empty() bool { return len(k.folded) == 0 }

// Fold returns the case-folded form used for every keyword comparison.
// Cyrillic names from the CAD engine arrive in mixed case.
func Fold(s string) string {
	return cases.Fold().String(s)
}
