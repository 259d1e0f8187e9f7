// Package formula re-derives dependent CAD variables from the product's
// rule table. The CAD engine does not reliably recompute every formula cell
// after a base dimension changes, so the same relationships are evaluated
// here as a compensating control and compared with what the engine reports.
package formula

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/dag"
	"github.com/vk/paramcascade/internal/hclexpr"
)

// Rule derives one variable from already-known values.
type Rule struct {
	Output string
	Expr   hcl.Expression
	// Inputs are the root variable names the expression reads.
	Inputs  []string
	Flagged bool
	Note    string
}

// Table is a versioned, declaration-ordered list of rules.
type Table struct {
	Version string
	Rules   []Rule
}

// FromConfig builds a table from a loaded rule set.
func FromConfig(rs *config.RuleSet) Table {
	t := Table{}
	if rs == nil {
		return t
	}
	t.Version = rs.Version
	for _, def := range rs.Rules {
		t.Rules = append(t.Rules, Rule{
			Output:  def.Output,
			Expr:    def.Value,
			Inputs:  hclexpr.RootNames(def.Value),
			Flagged: def.Flagged,
			Note:    def.Note,
		})
	}
	return t
}

// Compiled is a rule table in evaluation order.
type Compiled struct {
	version string
	rules   []Rule
}

// Compile orders the rules so every rule runs after the rules producing its
// inputs. Rules with no mutual dependency keep their declaration order.
func Compile(t Table) (*Compiled, error) {
	g := dag.New()
	byOutput := make(map[string]Rule, len(t.Rules))

	for _, r := range t.Rules {
		if r.Output == "" {
			return nil, fmt.Errorf("rule table %q: rule with empty output", t.Version)
		}
		if r.Expr == nil {
			return nil, fmt.Errorf("rule table %q: rule %q has no expression", t.Version, r.Output)
		}
		if _, dup := byOutput[r.Output]; dup {
			return nil, fmt.Errorf("rule table %q: duplicate rule for %q", t.Version, r.Output)
		}
		for _, in := range r.Inputs {
			if strings.Contains(in, "-") {
				return nil, fmt.Errorf("rule %q reads %q: separate formula operators with spaces", r.Output, in)
			}
		}
		for _, fn := range hclexpr.CalledFunctions(r.Expr) {
			if !slices.Contains(FunctionNames(), fn) {
				return nil, fmt.Errorf("rule %q calls unknown function %q", r.Output, fn)
			}
		}
		byOutput[r.Output] = r
		g.AddNode(r.Output)
	}

	for _, r := range t.Rules {
		for _, in := range r.Inputs {
			// A rule reading its own output reads the value from before the pass.
			if in == r.Output || !g.Has(in) {
				continue
			}
			if err := g.AddEdge(in, r.Output); err != nil {
				return nil, fmt.Errorf("rule table %q: %w", t.Version, err)
			}
		}
	}

	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("rule table %q: %w", t.Version, err)
	}

	c := &Compiled{version: t.Version, rules: make([]Rule, 0, len(order))}
	for _, id := range order {
		c.rules = append(c.rules, byOutput[id])
	}
	return c, nil
}

// Version returns the rule table version.
func (c *Compiled) Version() string { return c.version }

// Order returns the rule outputs in evaluation order.
func (c *Compiled) Order() []string {
	out := make([]string, len(c.rules))
	for i, r := range c.rules {
		out[i] = r.Output
	}
	return out
}

// Rules returns the rules in evaluation order.
func (c *Compiled) Rules() []Rule {
	return slices.Clone(c.rules)
}
