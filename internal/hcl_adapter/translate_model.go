// This file contains the logic for translating HCL schema structs into the
// format-agnostic configuration model defined in the config package.

package hcl_adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/hclexpr"
)

const (
	defaultCycles       = 3
	defaultMinWordRunes = 4
)

// translateFamily converts the HCL family schema into the agnostic model and
// validates it. files holds the parsed sources, keyed by file name.
func (l *Loader) translateFamily(ctx context.Context, s *Family, files map[string]*hcl.File) (*config.Family, error) {
	logger := ctxlog.FromContext(ctx).With("family", s.Name)

	if len(s.Prefixes) == 0 {
		return nil, fmt.Errorf("family %q: at least one prefix is required", s.Name)
	}

	f := &config.Family{
		Name:           s.Name,
		Prefixes:       s.Prefixes,
		ReservedPrefix: deref(s.ReservedPrefix, "-"),
		Exclude:        s.Exclude,
		ReopenKeywords: s.ReopenKeywords,
	}

	if s.AssemblyDrawing != nil {
		f.AssemblyDrawing = &config.AssemblyDrawing{
			Keywords:       s.AssemblyDrawing.Keywords,
			PrimaryKeyword: deref(s.AssemblyDrawing.PrimaryKeyword, ""),
			PrimarySuffix:  deref(s.AssemblyDrawing.PrimarySuffix, ""),
		}
	} else {
		f.AssemblyDrawing = &config.AssemblyDrawing{}
	}

	seenCategory := make(map[string]bool)
	for _, c := range s.Categories {
		if seenCategory[c.Name] {
			return nil, fmt.Errorf("family %q: duplicate category %q", s.Name, c.Name)
		}
		seenCategory[c.Name] = true

		kind := config.CategoryKind(c.Kind)
		switch kind {
		case config.KindHousing, config.KindPurchased:
		default:
			return nil, fmt.Errorf("family %q, category %q: unknown kind %q", s.Name, c.Name, c.Kind)
		}
		if len(c.Keywords) == 0 {
			return nil, fmt.Errorf("family %q, category %q: keywords must not be empty", s.Name, c.Name)
		}
		f.Categories = append(f.Categories, &config.Category{
			Name:         c.Name,
			Kind:         kind,
			Keywords:     c.Keywords,
			LengthOffset: c.LengthOffset,
		})
	}

	f.FlatPattern = translateFlatPattern(s.FlatPattern)

	timing, err := translateTiming(s.Timing)
	if err != nil {
		return nil, fmt.Errorf("family %q: %w", s.Name, err)
	}
	f.Timing = timing

	rules, err := translateRules(s.Rules, files)
	if err != nil {
		return nil, fmt.Errorf("family %q: %w", s.Name, err)
	}
	f.Rules = rules

	logger.Debug("Family translated.", "rules_version", rules.Version, "aliases", len(f.FlatPattern.Aliases))
	return f, nil
}

func translateFlatPattern(s *FlatPattern) *config.FlatPattern {
	fp := &config.FlatPattern{MinWordRunes: defaultMinWordRunes}
	if s == nil {
		return fp
	}
	fp.StripWords = s.StripWords
	fp.SkipParts = s.SkipParts
	fp.MinWordRunes = deref(s.MinWordRunes, defaultMinWordRunes)
	for _, a := range s.Aliases {
		fp.Aliases = append(fp.Aliases, &config.Alias{
			From: a.From,
			To:   deref(a.Part, ""),
			Skip: deref(a.Skip, false),
		})
	}
	return fp
}

func translateTiming(s *Timing) (*config.Timing, error) {
	t := &config.Timing{Cycles: defaultCycles, Delays: make(map[string]time.Duration)}
	if s == nil {
		return t, nil
	}
	t.Cycles = deref(s.Cycles, defaultCycles)
	if t.Cycles < 1 {
		return nil, fmt.Errorf("timing: cycles must be at least 1, got %d", t.Cycles)
	}
	for name, raw := range s.Delays {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("timing: delay %q: %w", name, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("timing: delay %q must not be negative", name)
		}
		t.Delays[name] = d
	}
	return t, nil
}

func translateRules(s *Rules, files map[string]*hcl.File) (*config.RuleSet, error) {
	if s == nil {
		return &config.RuleSet{}, nil
	}
	rs := &config.RuleSet{Version: s.Version}
	seen := make(map[string]bool)
	for _, r := range s.Rules {
		if seen[r.Output] {
			return nil, fmt.Errorf("rules %q: duplicate rule for %q", s.Version, r.Output)
		}
		seen[r.Output] = true
		value, err := formulaValue(r.Value, files)
		if err != nil {
			return nil, fmt.Errorf("rules %q, rule %q: %w", s.Version, r.Output, err)
		}
		rs.Rules = append(rs.Rules, &config.RuleDefinition{
			Output:  r.Output,
			Value:   value,
			Flagged: deref(r.Flagged, false),
			Note:    deref(r.Note, ""),
		})
	}
	return rs, nil
}

// formulaValue re-reads a rule value written as unspaced CAD formula text.
// HCL takes "B1-4" for the single name "B1-4", so any reference containing
// '-' is parsed again from its source with the operators spaced out.
func formulaValue(expr hcl.Expression, files map[string]*hcl.File) (hcl.Expression, error) {
	dashed := false
	for _, name := range hclexpr.RootNames(expr) {
		if strings.Contains(name, "-") {
			dashed = true
			break
		}
	}
	if !dashed {
		return expr, nil
	}

	rng := expr.Range()
	f, ok := files[rng.Filename]
	if !ok {
		return nil, fmt.Errorf("%s: expression source not available", rng)
	}
	parsed, diags := hclexpr.ParseFormula(string(rng.SliceBytes(f.Bytes)), rng.Filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %w", rng, diags)
	}
	return parsed, nil
}

// translateFixture converts fixture documents into the agnostic model.
func (l *Loader) translateFixture(docs []*Document) *config.Fixture {
	fx := &config.Fixture{}
	for _, d := range docs {
		doc := &config.DocumentFixture{
			File:    d.File,
			Marking: deref(d.Marking, ""),
			Name:    deref(d.Name, ""),
		}
		for _, v := range d.Variables {
			doc.Variables = append(doc.Variables, &config.VariableFixture{
				Name:       v.Name,
				Value:      deref(v.Value, 0),
				Expression: deref(v.Expression, ""),
				External:   deref(v.External, false),
			})
		}
		for _, in := range d.Instances {
			doc.Instances = append(doc.Instances, &config.InstanceFixture{
				Name:        in.Name,
				Designation: deref(in.Designation, ""),
				Source:      in.Source,
			})
		}
		fx.Documents = append(fx.Documents, doc)
	}
	return fx
}
