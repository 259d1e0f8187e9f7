package designate

import (
	"github.com/vk/paramcascade/internal/config"
)

// CategoryKind selects the designation rule of a component.
type CategoryKind int

const (
	// Standard components get the short designation {prefix}.{H}.{B1}.{seq}.
	Standard CategoryKind = iota
	// Housing components get the full designation including L1.
	Housing
	// Purchased components keep the designation they arrive with.
	Purchased
)

func (k CategoryKind) String() string {
	switch k {
	case Housing:
		return "housing"
	case Purchased:
		return "purchased"
	default:
		return "standard"
	}
}

// Category is the resolved category of one component identity.
type Category struct {
	Kind CategoryKind
	// Name is the configured category name; empty for Standard.
	Name string
	// LengthOffset, when set on a purchased category, makes its part marking
	// carry L1 minus the offset in its length field.
	LengthOffset *int
}

// Label names the category in reports.
func (c Category) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Kind.String()
}

type classEntry struct {
	cat      Category
	keywords Keywords
}

// Classifier maps component names onto categories. Purchased categories are
// checked before housing ones; within a kind the declaration order wins.
type Classifier struct {
	entries []classEntry
}

// NewClassifier builds a classifier from the family's categories.
func NewClassifier(categories []*config.Category) *Classifier {
	c := &Classifier{}
	for _, kind := range []config.CategoryKind{config.KindPurchased, config.KindHousing} {
		for _, cat := range categories {
			if cat == nil || cat.Kind != kind {
				continue
			}
			entry := classEntry{
				cat:      Category{Name: cat.Name, LengthOffset: cat.LengthOffset},
				keywords: NewKeywords(cat.Keywords...),
			}
			if kind == config.KindPurchased {
				entry.cat.Kind = Purchased
			} else {
				entry.cat.Kind = Housing
			}
			c.entries = append(c.entries, entry)
		}
	}
	return c
}

// Classify resolves the category of a component name. It is pure: the same
// name always yields the same category.
func (c *Classifier) Classify(name string) Category {
	if c == nil {
		return Category{Kind: Standard}
	}
	for _, e := range c.entries {
		if e.keywords.Match(name) {
			return e.cat
		}
	}
	return Category{Kind: Standard}
}
