package propagate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ExprKind classifies a variable's expression text.
type ExprKind int

const (
	// Literal is an empty expression or a plain number.
	Literal ExprKind = iota
	// Formula is an expression the CAD engine computes from other variables.
	Formula
	// Hyperlink is a reference into another document.
	Hyperlink
)

func (k ExprKind) String() string {
	switch k {
	case Formula:
		return "formula"
	case Hyperlink:
		return "hyperlink"
	default:
		return "literal"
	}
}

var instanceScoped = regexp.MustCompile(`^[A-Za-z]\d+_`)

// IsInstanceScoped reports whether a variable name denotes a value of one
// placed copy of a part inside the assembly (for example v1398_B3). Such
// variables are never overwritten.
func IsInstanceScoped(name string) bool {
	return instanceScoped.MatchString(name)
}

// ClassifyExpression decides how an existing expression is treated when a
// new value is written. Text containing a backslash or a pipe is a link into
// another document. Text containing an arithmetic operator, a conditional
// or an "if" is a formula. A plain number, negative ones included, is a
// literal.
func ClassifyExpression(expr string) ExprKind {
	e := strings.TrimSpace(expr)
	if e == "" {
		return Literal
	}
	if strings.ContainsAny(e, `\|`) {
		return Hyperlink
	}
	if _, err := strconv.ParseFloat(e, 64); err == nil {
		return Literal
	}
	if strings.ContainsAny(e, "+-*/?") || strings.Contains(e, "if") {
		return Formula
	}
	return Literal
}

// FormatLiteral renders a value as the literal expression text the CAD
// engine stores, without binary floating point noise.
func FormatLiteral(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}
