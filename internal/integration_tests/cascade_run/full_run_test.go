package integration_tests

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/app"
	"github.com/vk/paramcascade/internal/journal"
	"github.com/vk/paramcascade/internal/testutil"
)

// TestFullRun verifies that the "all" command re-parameterizes, designates,
// refreshes and labels a whole project.
func TestFullRun(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{testutil.FixtureFile: convectorHCL}
	cfg := app.Config{Command: app.CommandAll, Params: params, Prefix: "ZVD.LITE", Order: "З-17"}

	// --- Act ---
	result := testutil.RunProject(t, files, cfg)

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertLogged(t, result, "Propagation finished.")
	testutil.AssertLogged(t, result, "Designation pass finished.")
	testutil.AssertLogged(t, result, "Drawings refreshed.")
	testutil.AssertLogged(t, result, "Flat patterns labelled.")

	testutil.AssertFiles(t, result,
		"ZVD.LITE.160.350.2600.a3d",
		"001 - Корпус короба.m3d",
		"002 - Распорка.m3d",
		"003 - Теплообменник.m3d",
		"-Крепеж.m3d",
		"001 - Корпус короба.cdw",
		"ZVD.LITE.160.350.2600 СБ - Сборочный чертеж.cdw",
		"DXF/001 - Корпус короба 1шт (З-17).dxf",
		"DXF/002 - Распорка 2шт (З-17).dxf",
	)
	testutil.AssertNoFiles(t, result,
		"ZVD.LITE.90.260.1000.a3d",
		"004 - Корпус короба.m3d",
		"004 - Корпус короба.cdw",
	)

	w := result.App.World()
	assert.Zero(t, w.OpenDocuments())

	housing, err := w.Snapshot(filepath.Join(result.Root, "001 - Корпус короба.m3d"))
	require.NoError(t, err)
	assert.Equal(t, "ZVD.LITE.160.350.2600.001", housing.Marking)
	assert.Equal(t, "Корпус короба (З-17)", housing.Name)
	require.Len(t, housing.Variables, 1)
	assert.Equal(t, 140.0, housing.Variables[0].Value)

	hx, err := w.Snapshot(filepath.Join(result.Root, "003 - Теплообменник.m3d"))
	require.NoError(t, err)
	assert.Equal(t, "120.300.2300 Теплообменник", hx.Marking)

	fastener, ok := w.Variable(filepath.Join(result.Root, "-Крепеж.m3d"), "B5")
	require.True(t, ok)
	assert.Equal(t, 256.0, fastener.Value, "auxiliary parts are excluded from propagation")

	j, err := journal.Open(result.Journal)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	for _, r := range runs {
		require.NotNil(t, r.Success, r.Kind)
		assert.True(t, *r.Success, r.Kind)
	}
}
