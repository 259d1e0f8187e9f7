package designate

import (
	"regexp"
	"strings"
)

var trailingParen = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// StripOrder removes a trailing parenthetical from a descriptive name.
func StripOrder(name string) string {
	return strings.TrimSpace(trailingParen.ReplaceAllString(name, ""))
}

// WithOrder replaces any trailing parenthetical with "(order)". An empty
// order leaves the name untouched.
func WithOrder(name, order string) string {
	order = strings.TrimSpace(order)
	if order == "" {
		return name
	}
	return StripOrder(name) + " (" + order + ")"
}
