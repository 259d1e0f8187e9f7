package designate

import (
	"strings"

	"github.com/vk/paramcascade/internal/session"
)

// Numbering maps component identity names to sequence numbers.
type Numbering struct {
	seq   map[string]int
	names []string
}

// Seq returns the number of an identity.
func (n Numbering) Seq(name string) (int, bool) {
	s, ok := n.seq[strings.TrimSpace(name)]
	return s, ok
}

// Names lists the identities in numbering order.
func (n Numbering) Names() []string { return n.names }

// Len is the number of distinct identities.
func (n Numbering) Len() int { return len(n.names) }

// Skipped reports whether an instance with this designation is auxiliary and
// takes no part in numbering.
func Skipped(designation, reserved string) bool {
	d := strings.TrimSpace(designation)
	return d == "" || (reserved != "" && strings.HasPrefix(d, reserved))
}

// Number assigns 1, 2, 3... to identity names in first-seen order. The
// result depends on the order of instances, which must be the order the CAD
// engine enumerates them in.
func Number(instances []session.Instance, reserved string) Numbering {
	n := Numbering{seq: make(map[string]int)}
	for _, in := range instances {
		if Skipped(in.Designation, reserved) {
			continue
		}
		name := strings.TrimSpace(in.Name)
		if _, ok := n.seq[name]; ok {
			continue
		}
		n.names = append(n.names, name)
		n.seq[name] = len(n.names)
	}
	return n
}
