package hcl_adapter

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/ctxlog"
	"github.com/vk/paramcascade/internal/fsutil"
)

//go:embed default_family.hcl
var defaultFamily []byte

// DefaultFamilyFile is the diagnostic name of the built-in family.
const DefaultFamilyFile = "default_family.hcl"

// Loader is the HCL-specific implementation of the config.Loader and
// config.FixtureLoader interfaces.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file under paths and translates the single family
// block found into the config model. With no paths the embedded default
// family is loaded.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Family, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	parser := hclparse.NewParser()
	var roots []fileRoot

	if len(paths) == 0 {
		root, err := l.parseBytes(parser, defaultFamily, DefaultFamilyFile)
		if err != nil {
			return nil, err
		}
		roots = append(roots, *root)
	} else {
		hclFiles, err := l.findAllHCLFiles(paths)
		if err != nil {
			return nil, err
		}
		logger.Debug("Discovered HCL files.", "count", len(hclFiles))
		for _, file := range hclFiles {
			root, err := l.parseFile(parser, file)
			if err != nil {
				return nil, err
			}
			roots = append(roots, *root)
		}
	}

	var found []*Family
	for _, root := range roots {
		found = append(found, root.Families...)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no family block found in %v", paths)
	case 1:
	default:
		return nil, fmt.Errorf("expected exactly one family block, found %d", len(found))
	}

	family, err := l.translateFamily(ctx, found[0], parser.Files())
	if err != nil {
		return nil, err
	}
	logger.Debug("HCL loading complete.",
		"family", family.Name,
		"prefixes", len(family.Prefixes),
		"categories", len(family.Categories),
		"rules", len(family.Rules.Rules),
	)
	return family, nil
}

// LoadFixture parses a simulated CAD world from a single HCL file.
func (l *Loader) LoadFixture(ctx context.Context, path string) (*config.Fixture, error) {
	root, err := l.parseFile(hclparse.NewParser(), path)
	if err != nil {
		return nil, err
	}
	fixture := l.translateFixture(root.Documents)
	ctxlog.FromContext(ctx).Debug("Fixture loaded.", "path", path, "documents", len(fixture.Documents))
	return fixture, nil
}

// ParseFixture parses a simulated CAD world from source bytes.
func (l *Loader) ParseFixture(src []byte, filename string) (*config.Fixture, error) {
	root, err := l.parseBytes(hclparse.NewParser(), src, filename)
	if err != nil {
		return nil, err
	}
	return l.translateFixture(root.Documents), nil
}

func (l *Loader) parseFile(parser *hclparse.Parser, file string) (*fileRoot, error) {
	hclFile, diags := parser.ParseHCLFile(file)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
	}
	return l.decode(hclFile, file)
}

func (l *Loader) parseBytes(parser *hclparse.Parser, src []byte, filename string) (*fileRoot, error) {
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return l.decode(hclFile, filename)
}

func (l *Loader) decode(hclFile *hcl.File, filename string) (*fileRoot, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &root, nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl files found.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // It's not an error if a configured path doesn't exist.
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
			for _, p := range found {
				if _, wasSeen := seen[p]; !wasSeen {
					allFiles = append(allFiles, p)
					seen[p] = struct{}{}
				}
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, wasSeen := seen[path]; !wasSeen {
				allFiles = append(allFiles, path)
				seen[path] = struct{}{}
			}
		}
	}
	return allFiles, nil
}
