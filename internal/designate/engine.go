package designate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/fsutil"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

// Request holds the operator inputs of one designation pass.
type Request struct {
	Params model.Params
	Prefix string
	// Order is appended to every part name when not empty.
	Order string
}

// Engine assigns designations to the assembly, its instances and its part
// files, then renames the files to match.
type Engine struct {
	Pacer      *session.Pacer
	Classifier *Classifier
	// Reserved prefixes auxiliary instances that are never numbered.
	Reserved string
	Drawings config.AssemblyDrawing
	// InstanceOrder, when set, reorders the instances before numbering.
	InstanceOrder func([]session.Instance) []session.Instance
	// OnRename observes every executed file rename.
	OnRename func(from, to string)
}

// NewEngine builds an engine from a product family.
func NewEngine(f *config.Family, p *session.Pacer) *Engine {
	e := &Engine{Pacer: p, Classifier: NewClassifier(f.Categories), Reserved: f.ReservedPrefix}
	if f.AssemblyDrawing != nil {
		e.Drawings = *f.AssemblyDrawing
	}
	return e
}

// run is the mutable state of a single pass.
type run struct {
	*Engine
	s      session.Session
	proj   *project.Project
	req    Request
	scheme Scheme
	report model.DesignationReport
}

// Run executes the pass. The report is always returned; the error is set
// only when the pass had to stop early: the assembly is missing, the
// connection was lost, or ctx was cancelled.
func (e *Engine) Run(ctx context.Context, s session.Session, p *project.Project, req Request) (model.DesignationReport, error) {
	logger := ctxlog.FromContext(ctx)
	r := &run{
		Engine: e,
		s:      s,
		proj:   p,
		req:    req,
		scheme: Scheme{Prefix: req.Prefix, Params: req.Params, Reserved: e.Reserved, Classifier: e.Classifier},
	}
	logger.Info("Designation pass started.", "full", r.scheme.Full(), "short", r.scheme.Short(), "order", req.Order)

	err := r.execute(ctx)
	if err != nil {
		r.report.Errors.Add(session.ErrorKind(err, model.KindOther), "", err)
	}
	r.report.Success = r.report.AssemblyRenamed || r.report.PartsRenamed > 0 || r.report.DrawingsRenamed > 0
	logger.Info("Designation pass finished.",
		"assembly_renamed", r.report.AssemblyRenamed,
		"parts_renamed", r.report.PartsRenamed,
		"drawings_renamed", r.report.DrawingsRenamed,
		"instances_updated", r.report.InstancesUpdated,
		"errors", len(r.report.Errors),
	)
	return r.report, err
}

func (r *run) execute(ctx context.Context) error {
	if r.proj == nil || r.proj.Assembly == "" {
		return project.ErrAssemblyNotFound
	}
	if !fsutil.Exists(r.proj.Assembly) {
		return fmt.Errorf("%s: %w", r.proj.Assembly, project.ErrAssemblyNotFound)
	}
	if err := r.designateAssembly(ctx); err != nil {
		return err
	}
	skipped, err := r.designateInstances(ctx)
	if err != nil {
		return err
	}
	r.bindOrphans(ctx, skipped)

	parts := &project.Renamer{OnRename: r.OnRename}
	if err := r.updateParts(ctx, parts); err != nil {
		return err
	}
	return r.renameFiles(ctx, parts)
}

// designateAssembly renames the assembly file to {full}.a3d and writes the
// full designation into its marking.
func (r *run) designateAssembly(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	full := r.scheme.Full()

	target := r.proj.Path(full + session.ExtAssembly)
	if filepath.Base(r.proj.Assembly) != filepath.Base(target) {
		rn := &project.Renamer{OnRename: r.OnRename}
		rn.Plan(r.proj.Assembly, target)
		done, errs := rn.Execute(ctx)
		r.report.Errors = append(r.report.Errors, errs...)
		if len(done) == 1 {
			logger.Info("Assembly file renamed.", "from", filepath.Base(r.proj.Assembly), "to", filepath.Base(target))
			r.proj.Assembly = target
		} else {
			logger.Warn("Assembly file not renamed, continuing with the old name.", "path", r.proj.Assembly)
		}
	}

	err := session.WithDocument(ctx, r.s, r.Pacer, r.proj.Assembly, session.CloseSave, func(ctx context.Context, h session.Handle) error {
		props, err := r.s.Properties(ctx, h)
		if err != nil {
			return fmt.Errorf("read assembly marking: %w", err)
		}
		if err := r.s.SetProperties(ctx, h, session.Properties{Designation: full, Name: props.Name}); err != nil {
			return fmt.Errorf("write assembly marking: %w", err)
		}
		if err := session.Converge(ctx, r.s, r.Pacer, h, 1); err != nil {
			return err
		}
		if err := session.SaveAndWait(ctx, r.s, r.Pacer, h); err != nil {
			return err
		}
		logger.Info("Assembly marking written.", "from", props.Designation, "to", full)
		return nil
	})
	switch {
	case err == nil:
		r.report.AssemblyRenamed = true
		return nil
	case errors.Is(err, session.ErrNotFound), session.IsFatal(err):
		return err
	default:
		logger.Error("Assembly marking not written.", "error", err)
		r.report.Errors.Add(model.KindOther, r.proj.Assembly, err)
		return nil
	}
}

// designateInstances numbers the assembly's instances, writes the changed
// designations and records the file bindings. It returns the source files
// of skipped instances.
func (r *run) designateInstances(ctx context.Context) (map[string]bool, error) {
	logger := ctxlog.FromContext(ctx)
	skipped := make(map[string]bool)

	err := session.WithDocument(ctx, r.s, r.Pacer, r.proj.Assembly, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
		instances, err := r.s.ListInstances(ctx, h)
		if err != nil {
			return fmt.Errorf("list instances: %w", err)
		}
		if r.InstanceOrder != nil {
			instances = r.InstanceOrder(instances)
		}
		for _, in := range instances {
			if Skipped(in.Designation, r.Reserved) && in.SourceFile != "" {
				skipped[project.BaseName(in.SourceFile)] = true
			}
		}

		numbering, assignments := Assign(instances, r.scheme)
		logger.Info("Instances numbered.", "instances", len(instances), "identities", numbering.Len())
		for _, name := range numbering.Names() {
			seq, _ := numbering.Seq(name)
			logger.Debug("Identity.", "seq", fmt.Sprintf("%03d", seq), "name", name)
		}

		for _, a := range assignments {
			if !a.Changed {
				continue
			}
			if err := r.s.SetInstanceDesignation(ctx, h, a.Instance.Index, a.Designation); err != nil {
				if session.IsFatal(err) {
					return err
				}
				logger.Warn("Instance designation not written.", "index", a.Instance.Index, "name", a.Instance.Name, "error", err)
				r.report.Errors.Add(model.KindPartUpdate, a.Instance.Name, err)
				continue
			}
			r.report.InstancesUpdated++
			logger.Info("Instance designated.", "index", a.Instance.Index, "name", a.Instance.Name,
				"from", a.Instance.Designation, "to", a.Designation)
			if err := r.Pacer.Wait(ctx, session.PauseWrite); err != nil {
				return err
			}
		}
		r.report.Bindings = Bindings(assignments)

		if r.report.InstancesUpdated == 0 {
			return nil
		}
		if err := r.s.Rebuild(ctx, h, session.StageDocument); err != nil {
			return fmt.Errorf("rebuild assembly: %w", err)
		}
		if err := r.Pacer.Wait(ctx, session.PauseRebuildDocument); err != nil {
			return err
		}
		return session.SaveAndWait(ctx, r.s, r.Pacer, h)
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || session.IsFatal(err) {
			return nil, err
		}
		logger.Error("Instance designations not updated.", "error", err)
		r.report.Errors.Add(model.KindOther, r.proj.Assembly, err)
	}
	return skipped, nil
}

// bindOrphans gives part files that no instance references a designation
// built from their own file sequence.
func (r *run) bindOrphans(ctx context.Context, skipped map[string]bool) {
	logger := ctxlog.FromContext(ctx)
	bound := make(map[string]bool, len(r.report.Bindings))
	for _, b := range r.report.Bindings {
		bound[b.SourceFile] = true
	}

	for _, part := range r.proj.Parts {
		file := filepath.Base(part)
		if bound[file] || skipped[file] {
			continue
		}
		if r.Reserved != "" && strings.HasPrefix(file, r.Reserved) {
			logger.Debug("Auxiliary part left alone.", "path", part)
			continue
		}
		seq, desc, ok := project.ParseName(file)
		if !ok {
			logger.Warn("Part is not in the assembly and has no sequence number.", "path", part)
			r.report.Errors.Addf(model.KindPartUpdate, part, "not referenced by the assembly and not named \"{seq} - {description}\"")
			continue
		}
		cat := r.Classifier.Classify(desc)
		if cat.Kind == Purchased {
			logger.Debug("Purchased part not in the assembly left alone.", "path", part)
			continue
		}
		b := model.Binding{
			SourceFile:  file,
			Designation: r.scheme.Designation(cat, seq, ""),
			Name:        desc,
			Seq:         seq,
			Category:    cat.Label(),
			Orphan:      true,
		}
		logger.Info("Part not referenced by the assembly bound from its file name.", "path", part, "designation", b.Designation)
		r.report.Bindings = append(r.report.Bindings, b)
	}
}

// updateParts writes marking and name into every bound part and plans the
// part renames.
func (r *run) updateParts(ctx context.Context, renames *project.Renamer) error {
	logger := ctxlog.FromContext(ctx)
	light := r.Pacer.Light()

	for _, b := range r.report.Bindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, ok := r.proj.FindPart(b.SourceFile)
		if !ok {
			logger.Warn("Bound part file not found.", "file", b.SourceFile)
			r.report.Errors.Addf(model.KindPartUpdate, b.SourceFile, "part file not found")
			continue
		}
		cat := r.Classifier.Classify(b.Name)

		err := session.WithDocument(ctx, r.s, light, path, session.CloseDiscard, func(ctx context.Context, h session.Handle) error {
			props, err := r.s.Properties(ctx, h)
			if err != nil {
				return fmt.Errorf("read properties: %w", err)
			}
			next := session.Properties{Designation: b.Designation, Name: WithOrder(props.Name, r.req.Order)}
			if cat.Kind == Purchased && cat.LengthOffset != nil {
				next.Designation = AdjustLength(props.Designation, r.req.Params.L1, *cat.LengthOffset)
			}
			if err := r.s.SetProperties(ctx, h, next); err != nil {
				return fmt.Errorf("write properties: %w", err)
			}
			logger.Info("Part designated.", "path", path, "marking_from", props.Designation, "marking_to", next.Designation, "name", next.Name)
			if err := session.Converge(ctx, r.s, light, h, 1); err != nil {
				return err
			}
			return session.SaveAndWait(ctx, r.s, light, h)
		})
		if err != nil {
			if session.IsFatal(err) {
				return err
			}
			logger.Error("Part not designated.", "path", path, "error", err)
			r.report.Errors.Add(model.KindPartUpdate, path, err)
			continue
		}

		r.report.PartsRenamed++
		target := filepath.Join(filepath.Dir(path), project.FormatName(b.Seq, project.Description(path), session.ExtPart))
		renames.Plan(path, target)
	}
	return nil
}

// renameFiles runs once every document is closed: part files first, then
// drawings, which follow the part renames that actually happened.
func (r *run) renameFiles(ctx context.Context, parts *project.Renamer) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Renaming part files.", "planned", parts.Len())
	done, errs := parts.Execute(ctx)
	r.report.Errors = append(r.report.Errors, errs...)
	if err := ctx.Err(); err != nil {
		return err
	}

	drawings := &project.Renamer{OnRename: r.OnRename}
	r.planDrawings(drawings, done)
	logger.Info("Renaming drawings.", "planned", drawings.Len())
	renamed, errs := drawings.Execute(ctx)
	r.report.Errors = append(r.report.Errors, errs...)
	r.report.DrawingsRenamed = len(renamed)
	return nil
}

func (r *run) planDrawings(renames *project.Renamer, partRenames []project.Rename) {
	bySeq := make(map[int]int)
	byDesc := make(map[string]int)
	for _, rn := range partRenames {
		oldSeq, desc, okOld := project.ParseName(rn.From)
		newSeq, _, okNew := project.ParseName(rn.To)
		if !okNew {
			continue
		}
		byDesc[Fold(desc)] = newSeq
		if okOld {
			bySeq[oldSeq] = newSeq
		}
	}

	full := r.scheme.Full()
	assemblyLevel := NewKeywords(r.Drawings.Keywords...)
	var asmDrawings []string
	for _, d := range r.proj.Drawings {
		seq, desc, ok := project.ParseName(d)
		if ok {
			newSeq, found := byDesc[Fold(desc)]
			if !found {
				newSeq, found = bySeq[seq]
			}
			if found && newSeq != seq {
				renames.Plan(d, filepath.Join(filepath.Dir(d), project.FormatName(newSeq, desc, session.ExtDrawing)))
			}
			continue
		}
		if assemblyLevel.Match(filepath.Base(d)) {
			asmDrawings = append(asmDrawings, d)
		}
	}

	primary := r.primaryDrawing(asmDrawings)
	for _, d := range asmDrawings {
		stem := full
		if d == primary {
			stem += r.Drawings.PrimarySuffix
		}
		name := stem + " - " + project.Description(d) + session.ExtDrawing
		renames.Plan(d, filepath.Join(filepath.Dir(d), name))
	}
}

// primaryDrawing picks the single true assembly drawing: the first one whose
// name carries the primary keyword, else the first assembly-level drawing.
func (r *run) primaryDrawing(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	if r.Drawings.PrimaryKeyword != "" {
		kw := NewKeywords(r.Drawings.PrimaryKeyword)
		for _, d := range candidates {
			if kw.Match(filepath.Base(d)) {
				return d
			}
		}
	}
	return candidates[0]
}
