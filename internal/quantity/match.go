package quantity

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/project"
)

var (
	// ErrNoCandidate means no part file matches a flat pattern.
	ErrNoCandidate = errors.New("no matching part")
	// ErrAmbiguous means several part files match equally well.
	ErrAmbiguous = errors.New("several parts match equally well")
)

// Rank orders match quality; lower is better.
type Rank int

const (
	// RankExact means both names carry the same significant words.
	RankExact Rank = 1
	// RankSubset means the flat pattern's words are a subset of the part's.
	RankSubset Rank = 2
)

// Candidate is a part file a flat pattern may belong to.
type Candidate struct {
	Path string
	// Seq is the sequence prefix exactly as written in the file name.
	Seq  string
	Name string
	Rank Rank
}

// Match is the outcome of matching one flat pattern.
type Match struct {
	// Key is the normalised phrase the part names were compared against.
	Key string
	// Skip is set when an alias drops the file.
	Skip bool
	Part Candidate
	// Tied lists every candidate sharing the best rank when there is more than one.
	Tied []Candidate
}

type alias struct {
	words []string
	to    string
	skip  bool
}

// Matcher finds the part file that a flat pattern was exported from, by
// comparing their names.
type Matcher struct {
	strip     []string
	skipParts designate.Keywords
	minRunes  int
	aliases   []alias
}

// NewMatcher builds a matcher from the family's flat pattern rules.
func NewMatcher(fp *config.FlatPattern) *Matcher {
	m := &Matcher{minRunes: 4}
	if fp == nil {
		return m
	}
	if fp.MinWordRunes > 0 {
		m.minRunes = fp.MinWordRunes
	}
	for _, w := range fp.StripWords {
		m.strip = append(m.strip, designate.Fold(w))
	}
	m.skipParts = designate.NewKeywords(fp.SkipParts...)
	for _, a := range fp.Aliases {
		if a == nil {
			continue
		}
		m.aliases = append(m.aliases, alias{
			words: strings.Fields(designate.Fold(a.From)),
			to:    designate.Fold(a.To),
			skip:  a.Skip,
		})
	}
	return m
}

// Key normalises a flat pattern file name: strip words are removed, then the
// first alias whose words all occur in the name replaces it.
func (m *Matcher) Key(dxfName string) (key string, skip bool) {
	base := filepath.Base(dxfName)
	key = designate.Fold(strings.TrimSuffix(base, filepath.Ext(base)))
	for _, w := range m.strip {
		key = strings.ReplaceAll(key, w, "")
	}
	key = strings.Trim(key, " -")

	words := strings.Fields(key)
	for _, a := range m.aliases {
		if !containsAll(words, a.words) {
			continue
		}
		if a.skip {
			return key, true
		}
		return a.to, false
	}
	return key, false
}

// Match picks the best part for a flat pattern among the given part files.
// On a tie the first candidate in file order is returned together with
// ErrAmbiguous.
func (m *Matcher) Match(dxfName string, parts []string) (Match, error) {
	key, skip := m.Key(dxfName)
	res := Match{Key: key, Skip: skip}
	if skip {
		return res, nil
	}
	want := m.significant(key)

	var best []Candidate
	for _, part := range parts {
		if m.skipParts.Match(filepath.Base(part)) {
			continue
		}
		seq, name, ok := partName(part)
		if !ok {
			continue
		}
		rank, ok := m.rank(want, m.significant(designate.Fold(name)))
		if !ok {
			continue
		}
		c := Candidate{Path: part, Seq: seq, Name: name, Rank: rank}
		switch {
		case len(best) == 0 || rank < best[0].Rank:
			best = []Candidate{c}
		case rank == best[0].Rank:
			best = append(best, c)
		}
	}

	switch len(best) {
	case 0:
		return res, ErrNoCandidate
	case 1:
		res.Part = best[0]
		return res, nil
	default:
		res.Part = best[0]
		res.Tied = best
		return res, ErrAmbiguous
	}
}

func (m *Matcher) rank(want, have []string) (Rank, bool) {
	if len(want) == 0 {
		return 0, false
	}
	if slices.Equal(want, have) {
		return RankExact, true
	}
	if containsAll(have, want) {
		return RankSubset, true
	}
	return 0, false
}

// significant returns the sorted, distinct words long enough to count.
func (m *Matcher) significant(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) >= m.minRunes {
			out = append(out, w)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// partName splits a part file name into its sequence prefix and the
// description without any trailing order number.
func partName(path string) (seq, name string, ok bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	before, after, found := strings.Cut(stem, " - ")
	if !found {
		return "", "", false
	}
	if _, _, ok := project.ParseName(base); !ok {
		return "", "", false
	}
	if i := strings.Index(after, "("); i >= 0 {
		after = after[:i]
	}
	return strings.TrimSpace(before), strings.TrimSpace(after), true
}

func containsAll(set, words []string) bool {
	for _, w := range words {
		if !slices.Contains(set, w) {
			return false
		}
	}
	return true
}
