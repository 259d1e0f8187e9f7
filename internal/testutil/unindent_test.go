package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnindent(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank lines only", "\n\n", ""},
		{"flat", "a\nb", "a\nb\n"},
		{"indented", "\n\t\tdocument \"x\" {\n\t\t  name = \"y\"\n\t\t}\n\t", "document \"x\" {\n  name = \"y\"\n}\n"},
		{"blank line inside", "\n  a\n\n  b\n", "a\n\nb\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Unindent(tc.in))
		})
	}
}
