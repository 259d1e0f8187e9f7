// Package project models a convector project directory: one top assembly,
// its part and drawing files named "{seq} - {description}.{ext}", and the
// exported flat patterns under DXF/.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vk/paramcascade/internal/fsutil"
	"github.com/vk/paramcascade/internal/session"
)

// FlatPatternDir is the folder holding exported flat patterns.
const FlatPatternDir = "DXF"

// ExtFlatPattern is the flat pattern file extension.
const ExtFlatPattern = ".dxf"

var (
	// ErrAssemblyNotFound means the project directory holds no assembly.
	ErrAssemblyNotFound = fmt.Errorf("assembly: %w", session.ErrNotFound)
	// ErrMultipleAssemblies means the top assembly is ambiguous.
	ErrMultipleAssemblies = errors.New("more than one assembly in project")
)

// Project lists the files of one project directory, each sorted by name.
type Project struct {
	Root         string
	Assembly     string
	Parts        []string
	Drawings     []string
	FlatPatterns []string
}

// Scan reads the project layout from root.
func Scan(root string) (*Project, error) {
	assemblies, err := fsutil.ListByExtension(root, session.ExtAssembly)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	switch len(assemblies) {
	case 0:
		return nil, fmt.Errorf("scan %s: %w", root, ErrAssemblyNotFound)
	case 1:
	default:
		return nil, fmt.Errorf("scan %s: %w: %d found", root, ErrMultipleAssemblies, len(assemblies))
	}

	p := &Project{Root: root, Assembly: assemblies[0]}
	if p.Parts, err = fsutil.ListByExtension(root, session.ExtPart); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if p.Drawings, err = fsutil.ListByExtension(root, session.ExtDrawing); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if p.FlatPatterns, err = fsutil.ListByExtension(filepath.Join(root, FlatPatternDir), ExtFlatPattern); err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return p, nil
}

// Path joins a file name onto the project root.
func (p *Project) Path(name string) string {
	return filepath.Join(p.Root, name)
}

// FindPart returns the part whose base name equals name.
func (p *Project) FindPart(name string) (string, bool) {
	for _, part := range p.Parts {
		if filepath.Base(part) == name {
			return part, true
		}
	}
	return "", false
}

// BaseName returns the last element of a path written with either '/' or
// '\' separators. The CAD application reports Windows paths, which
// filepath.Base leaves whole on other hosts.
func BaseName(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

var seqName = regexp.MustCompile(`^(\d+) - (.+)$`)

// ParseName splits "{seq} - {description}.{ext}" into its parts. The
// extension is dropped from the description.
func ParseName(fileName string) (seq int, description string, ok bool) {
	base := filepath.Base(fileName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	m := seqName.FindStringSubmatch(stem)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return n, strings.TrimSpace(m[2]), true
}

// Description returns the description part of a file name, or the whole
// stem when the name does not follow the "{seq} - " convention.
func Description(fileName string) string {
	if _, desc, ok := ParseName(fileName); ok {
		return desc
	}
	base := filepath.Base(fileName)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if _, after, found := strings.Cut(stem, " - "); found {
		return strings.TrimSpace(after)
	}
	return stem
}

// FormatName builds "{seq} - {description}{ext}" with a three digit sequence.
func FormatName(seq int, description, ext string) string {
	return fmt.Sprintf("%03d - %s%s", seq, description, ext)
}
