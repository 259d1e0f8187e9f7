package quantity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

// Labeler renames exported flat patterns to
// "{seq} - {name} {qty}шт ({order}).dxf".
type Labeler struct {
	Pacer    *session.Pacer
	Matcher  *Matcher
	Resolver *Resolver
	OnRename func(from, to string)
}

// NewLabeler builds a labeler from a product family.
func NewLabeler(f *config.Family, p *session.Pacer) *Labeler {
	return &Labeler{
		Pacer:    p,
		Matcher:  NewMatcher(f.FlatPattern),
		Resolver: &Resolver{Pacer: p, Reserved: f.ReservedPrefix},
	}
}

// Label formats the target file name of a flat pattern.
func Label(seq, name string, qty int, order string) string {
	label := fmt.Sprintf("%s - %s %dшт", seq, name, qty)
	if order = strings.TrimSpace(order); order != "" {
		label += " (" + order + ")"
	}
	return label + project.ExtFlatPattern
}

// Run labels every flat pattern of the project. Files that cannot be
// matched are reported and left alone; nothing aborts the pass except a
// lost connection or cancellation, which are returned as the error.
func (l *Labeler) Run(ctx context.Context, s session.Session, p *project.Project, order string) (model.FlatPatternReport, error) {
	logger := ctxlog.FromContext(ctx)
	var report model.FlatPatternReport

	if len(p.FlatPatterns) == 0 {
		report.Errors.Addf(model.KindOther, filepath.Join(p.Root, project.FlatPatternDir), "no flat patterns found")
		return report, nil
	}
	logger.Info("Labelling flat patterns.", "files", len(p.FlatPatterns), "order", order)

	renames := &project.Renamer{OnRename: l.OnRename}
	for _, dxf := range p.FlatPatterns {
		if err := ctx.Err(); err != nil {
			report.Errors.Add(model.KindCancelled, "", err)
			return report, err
		}
		target, ok, err := l.label(ctx, s, p, dxf, order, &report)
		if err != nil {
			report.Errors.Add(session.ErrorKind(err, model.KindOther), dxf, err)
			return report, err
		}
		if !ok {
			report.Skipped++
			continue
		}
		renames.Plan(dxf, target)
	}

	done, errs := renames.Execute(ctx)
	report.Errors = append(report.Errors, errs...)
	report.Renamed = len(done)
	report.Success = report.Renamed > 0 || len(report.Errors) == 0
	logger.Info("Flat patterns labelled.", "renamed", report.Renamed, "skipped", report.Skipped, "errors", len(report.Errors))
	return report, nil
}

// label resolves the target name of one flat pattern. ok is false when the
// file is to be left alone; err is set only for fatal failures.
func (l *Labeler) label(ctx context.Context, s session.Session, p *project.Project, dxf, order string, report *model.FlatPatternReport) (string, bool, error) {
	logger := ctxlog.FromContext(ctx).With("path", dxf)

	m, err := l.Matcher.Match(dxf, p.Parts)
	ambiguous := errors.Is(err, ErrAmbiguous)
	switch {
	case m.Skip:
		logger.Info("Flat pattern skipped by alias.", "key", m.Key)
		return "", false, nil
	case errors.Is(err, ErrNoCandidate):
		logger.Warn("No part found for flat pattern.", "key", m.Key)
		report.Errors.Addf(model.KindAmbiguousMatch, dxf, "no part matches %q", m.Key)
		return "", false, nil
	case ambiguous:
		var names []string
		for _, c := range m.Tied {
			names = append(names, filepath.Base(c.Path))
		}
		logger.Warn("Several parts match flat pattern, using the first with quantity 1.", "key", m.Key, "candidates", names)
		report.Errors.Addf(model.KindAmbiguousMatch, dxf, "%d parts match %q equally well: %s; using %s, quantity 1",
			len(m.Tied), m.Key, strings.Join(names, ", "), filepath.Base(m.Part.Path))
	}
	logger.Debug("Flat pattern matched.", "part", filepath.Base(m.Part.Path), "rank", int(m.Part.Rank))

	qty := 1
	if ambiguous {
		target := filepath.Join(filepath.Dir(dxf), Label(m.Part.Seq, m.Part.Name, qty, order))
		logger.Info("Flat pattern labelled.", "to", filepath.Base(target), "quantity", qty)
		return target, true, nil
	}

	marking, err := l.marking(ctx, s, m.Part.Path)
	switch {
	case err != nil && session.IsFatal(err):
		return "", false, err
	case err != nil:
		logger.Warn("Part marking not read, quantity set to 1.", "part", m.Part.Path, "error", err)
		report.Errors.Add(model.KindPartUpdate, m.Part.Path, err)
	case strings.TrimSpace(marking) == "":
		logger.Warn("Part has no marking, quantity set to 1.", "part", m.Part.Path)
	default:
		qty, err = l.Resolver.Quantity(ctx, s, p.Assembly, marking)
		if err != nil {
			if session.IsFatal(err) {
				return "", false, err
			}
			logger.Warn("Quantity not resolved, using 1.", "designation", marking, "error", err)
			report.Errors.Add(session.ErrorKind(err, model.KindOther), p.Assembly, err)
		}
	}

	target := filepath.Join(filepath.Dir(dxf), Label(m.Part.Seq, m.Part.Name, qty, order))
	logger.Info("Flat pattern labelled.", "to", filepath.Base(target), "quantity", qty)
	return target, true, nil
}

// marking reads the top-level designation of a part without saving it.
func (l *Labeler) marking(ctx context.Context, s session.Session, part string) (string, error) {
	var marking string
	err := session.WithDocument(ctx, s, l.Pacer.Light(), part, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		props, err := s.Properties(ctx, h)
		if err != nil {
			return err
		}
		marking = props.Designation
		return nil
	})
	return marking, err
}
