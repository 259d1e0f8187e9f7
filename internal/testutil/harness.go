package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/app"
	"github.com/vk/paramcascade/internal/hcl_adapter"
)

// Well-known names inside the harness directory.
const (
	FixtureFile = "world.hcl"
	FamilyFile  = "family.hcl"
	ProjectDir  = "project"
	JournalFile = "runs.db"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	// Root is the project directory the run worked on.
	Root string
	// Journal is the path of the run journal.
	Journal string
}

// RunProject provides a standardized harness for running integration tests
// using a default background context.
func RunProject(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()
	return RunProjectWithContext(context.Background(), t, files, cfg)
}

// RunProjectWithContext writes files into a temporary directory, points cfg
// at them and runs the app. files must hold FixtureFile; FamilyFile is
// optional. Unset fields of cfg default to a quiet, delay-free run.
func RunProjectWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(Unindent(content)), 0o644))
	}

	root := filepath.Join(tmpDir, ProjectDir)
	require.NoError(t, os.MkdirAll(root, 0o755))
	cfg.ProjectRoot = root
	cfg.FixturePath = filepath.Join(tmpDir, FixtureFile)
	if _, ok := files[FamilyFile]; ok {
		cfg.FamilyPath = filepath.Join(tmpDir, FamilyFile)
	}
	if cfg.JournalPath == "" {
		cfg.JournalPath = filepath.Join(tmpDir, JournalFile)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	logBuffer := &app.SafeBuffer{}
	result := &HarnessResult{Root: root, Journal: cfg.JournalPath}

	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		result.App = app.NewApp(logBuffer, &cfg, hcl_adapter.NewLoader())
	}()
	if panicErr != nil {
		result.LogOutput = logBuffer.String()
		result.Err = fmt.Errorf("application startup panicked | %v", panicErr)
		return result
	}
	t.Cleanup(func() { _ = result.App.Close() })

	result.Err = result.App.Run(ctx)
	result.LogOutput = logBuffer.String()

	if os.Getenv("PARAMCASCADE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
	}
	return result
}
