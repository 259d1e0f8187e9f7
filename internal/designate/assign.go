package designate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

// Scheme carries everything the assignment rule depends on.
type Scheme struct {
	Prefix     string
	Params     model.Params
	Reserved   string
	Classifier *Classifier
}

// Full is the assembly designation {prefix}.{H}.{B1}.{L1}.
func (s Scheme) Full() string { return s.Params.FullName(s.Prefix) }

// Short is the designation stem {prefix}.{H}.{B1}.
func (s Scheme) Short() string { return s.Params.ShortName(s.Prefix) }

// Designation applies the rule to one identity. current is returned as is
// for purchased components.
func (s Scheme) Designation(cat Category, seq int, current string) string {
	switch cat.Kind {
	case Purchased:
		return strings.TrimSpace(current)
	case Housing:
		return fmt.Sprintf("%s.%03d", s.Full(), seq)
	default:
		return fmt.Sprintf("%s.%03d", s.Short(), seq)
	}
}

// Assignment is the resolved designation of one instance.
type Assignment struct {
	Instance    session.Instance
	Seq         int
	Category    Category
	Designation string
	// Changed is set when Designation differs from the current one.
	Changed bool
}

// Assign numbers the instances and resolves every designation. Skipped
// instances produce no assignment.
func Assign(instances []session.Instance, s Scheme) (Numbering, []Assignment) {
	numbering := Number(instances, s.Reserved)
	cats := make(map[string]Category, numbering.Len())

	var out []Assignment
	for _, in := range instances {
		if Skipped(in.Designation, s.Reserved) {
			continue
		}
		name := strings.TrimSpace(in.Name)
		seq, _ := numbering.Seq(name)
		cat, ok := cats[name]
		if !ok {
			cat = s.Classifier.Classify(name)
			cats[name] = cat
		}
		d := s.Designation(cat, seq, in.Designation)
		out = append(out, Assignment{
			Instance:    in,
			Seq:         seq,
			Category:    cat,
			Designation: d,
			Changed:     d != strings.TrimSpace(in.Designation),
		})
	}
	return numbering, out
}

// Bindings ties each source file to the first assignment that uses it.
func Bindings(assignments []Assignment) []model.Binding {
	seen := make(map[string]bool)
	var out []model.Binding
	for _, a := range assignments {
		src := strings.TrimSpace(a.Instance.SourceFile)
		if src == "" {
			continue
		}
		file := project.BaseName(src)
		if seen[file] {
			continue
		}
		seen[file] = true
		out = append(out, model.Binding{
			SourceFile:  file,
			Designation: a.Designation,
			Name:        strings.TrimSpace(a.Instance.Name),
			Seq:         a.Seq,
			Category:    a.Category.Label(),
		})
	}
	return out
}

// AdjustLength rewrites the length field of a purchased component's
// designation, e.g. "120.300.2000 Теплообменник" with L1=2600 and offset
// 300 becomes "120.300.2300 Теплообменник". The designation is returned
// unchanged unless it has at least two words and the first one has exactly
// three dot-separated fields.
func AdjustLength(designation string, l1, offset int) string {
	words := strings.Fields(designation)
	if len(words) < 2 {
		return designation
	}
	fields := strings.Split(words[0], ".")
	if len(fields) != 3 {
		return designation
	}
	fields[2] = strconv.Itoa(l1 - offset)
	return strings.Join(fields, ".") + " " + strings.Join(words[1:], " ")
}
