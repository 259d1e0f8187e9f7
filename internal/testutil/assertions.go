package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the run's log contains the given message.
func AssertLogged(t *testing.T, result *HarnessResult, message string) {
	t.Helper()
	require.True(t,
		strings.Contains(result.LogOutput, message),
		"expected log message %q was not found in logs", message,
	)
}

// AssertFiles checks that every name exists under the project directory.
func AssertFiles(t *testing.T, result *HarnessResult, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := os.Stat(filepath.Join(result.Root, name))
		require.NoError(t, err, "expected project file %q", name)
	}
}

// AssertNoFiles checks that none of the names exist under the project directory.
func AssertNoFiles(t *testing.T, result *HarnessResult, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := os.Stat(filepath.Join(result.Root, name))
		require.True(t, os.IsNotExist(err), "project file %q should not exist", name)
	}
}
