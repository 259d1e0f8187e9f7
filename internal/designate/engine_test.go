package designate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/designate"
	"github.com/vk/paramcascade/internal/memsession"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/session"
)

var testRequest = designate.Request{
	Params: model.Params{H: 160, B1: 350, L1: 2600},
	Prefix: "ZVD.LITE",
	Order:  "З-17",
}

func testFamily() *config.Family {
	offset := 300
	return &config.Family{
		ReservedPrefix: "-",
		AssemblyDrawing: &config.AssemblyDrawing{
			Keywords:       []string{"конвектор", "сборочный"},
			PrimaryKeyword: "сборочный",
			PrimarySuffix:  " СБ",
		},
		Categories: []*config.Category{
			{Name: "housing", Kind: config.KindHousing, Keywords: []string{"короба"}},
			{Name: "heat_exchanger", Kind: config.KindPurchased, Keywords: []string{"теплообменник"}, LengthOffset: &offset},
		},
	}
}

func convectorFixture() *config.Fixture {
	return &config.Fixture{Documents: []*config.DocumentFixture{
		{
			File:    "ZVD.LITE.90.260.1000.a3d",
			Marking: "ZVD.LITE.90.260.1000",
			Name:    "Конвектор",
			Instances: []*config.InstanceFixture{
				{Name: "Корпус короба", Designation: "ZVD.LITE.90.260.1000.004", Source: `C:\Проекты\ZVD\004 - Корпус короба.m3d`},
				{Name: "Стенка торцевая", Designation: "ZVD.LITE.90.260.003", Source: "003 - Стенка торцевая.m3d"},
				{Name: "Стенка торцевая", Designation: "ZVD.LITE.90.260.003", Source: "003 - Стенка торцевая.m3d"},
				{Name: "Крепеж", Designation: "-", Source: `C:\Проекты\ZVD\010 - Крепеж.m3d`},
				{Name: "Теплообменник", Designation: "120.300.700 Теплообменник", Source: `C:\Проекты\ZVD\005 - Теплообменник.m3d`},
				{Name: "Распорка", Designation: "", Source: "006 - Распорка.m3d"},
			},
		},
		{File: "004 - Корпус короба.m3d", Marking: "ZVD.LITE.90.260.1000.004", Name: "Корпус короба (З-11)"},
		{File: "003 - Стенка торцевая.m3d", Marking: "ZVD.LITE.90.260.003", Name: "Стенка торцевая"},
		{File: "010 - Крепеж.m3d", Marking: "-", Name: "Крепеж"},
		{File: "005 - Теплообменник.m3d", Marking: "120.300.700 Теплообменник", Name: "Теплообменник"},
		{File: "006 - Распорка.m3d", Marking: "", Name: "Распорка"},
		{File: "007 - Накладка.m3d", Marking: "", Name: "Накладка"},
	}}
}

func setupProject(t *testing.T, fx *config.Fixture, opts memsession.Options, drawings ...string) (*memsession.World, string) {
	t.Helper()
	root := t.TempDir()
	w, err := memsession.NewWorld(root, fx, opts)
	require.NoError(t, err)
	for _, d := range drawings {
		require.NoError(t, os.WriteFile(filepath.Join(root, d), nil, 0o644))
	}
	return w, root
}

func runEngine(t *testing.T, w *memsession.World, root string, e *designate.Engine) (model.DesignationReport, error) {
	t.Helper()
	ctx := context.Background()
	p, err := project.Scan(root)
	require.NoError(t, err)
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	defer s.Disconnect(ctx)
	return e.Run(ctx, s, p, testRequest)
}

func TestEngineRun(t *testing.T) {
	// --- Arrange ---
	w, root := setupProject(t, convectorFixture(), memsession.Options{},
		"004 - Корпус короба.cdw",
		"003 - Стенка торцевая.cdw",
		"ZVD.LITE.90.260.1000 - Конвектор с естественной конвекцией.cdw",
		"Сборочный чертеж.cdw",
	)
	var journal []project.Rename
	e := designate.NewEngine(testFamily(), session.NoDelay())
	e.OnRename = func(from, to string) { journal = append(journal, project.Rename{From: from, To: to}) }

	// --- Act ---
	report, err := runEngine(t, w, root, e)

	// --- Assert ---
	require.NoError(t, err)
	assert.Empty(t, report.Errors.Strings())
	assert.True(t, report.Success)
	assert.True(t, report.AssemblyRenamed)
	assert.Equal(t, 3, report.InstancesUpdated)
	assert.Equal(t, 4, report.PartsRenamed)
	assert.Equal(t, 4, report.DrawingsRenamed)
	assert.Zero(t, w.OpenDocuments())

	asm, err := w.Snapshot("ZVD.LITE.160.350.2600.a3d")
	require.NoError(t, err)
	assert.Equal(t, "ZVD.LITE.160.350.2600", asm.Marking)
	var designations []string
	for _, in := range asm.Instances {
		designations = append(designations, in.Designation)
	}
	assert.Equal(t, []string{
		"ZVD.LITE.160.350.2600.001",
		"ZVD.LITE.160.350.002",
		"ZVD.LITE.160.350.002",
		"-",
		"120.300.700 Теплообменник",
		"",
	}, designations)

	housing, err := w.Snapshot("001 - Корпус короба.m3d")
	require.NoError(t, err)
	assert.Equal(t, "ZVD.LITE.160.350.2600.001", housing.Marking)
	assert.Equal(t, "Корпус короба (З-17)", housing.Name)

	wall, err := w.Snapshot("002 - Стенка торцевая.m3d")
	require.NoError(t, err)
	assert.Equal(t, "ZVD.LITE.160.350.002", wall.Marking)

	hx, err := w.Snapshot("003 - Теплообменник.m3d")
	require.NoError(t, err)
	assert.Equal(t, "120.300.2300 Теплообменник", hx.Marking)

	orphan, err := w.Snapshot("007 - Накладка.m3d")
	require.NoError(t, err)
	assert.Equal(t, "ZVD.LITE.160.350.007", orphan.Marking)

	aux, err := w.Snapshot("010 - Крепеж.m3d")
	require.NoError(t, err)
	assert.Equal(t, "-", aux.Marking, "reserved parts are never touched")

	for _, name := range []string{
		"001 - Корпус короба.cdw",
		"002 - Стенка торцевая.cdw",
		"ZVD.LITE.160.350.2600 - Конвектор с естественной конвекцией.cdw",
		"ZVD.LITE.160.350.2600 СБ - Сборочный чертеж.cdw",
		"006 - Распорка.m3d",
	} {
		assert.FileExists(t, filepath.Join(root, name))
	}

	for _, b := range report.Bindings {
		assert.NotEqual(t, "010 - Крепеж.m3d", b.SourceFile)
		assert.NotEqual(t, "006 - Распорка.m3d", b.SourceFile)
	}
	// assembly + 3 parts + 4 drawings
	assert.Len(t, journal, 8)
}

func TestEngineRunTwiceWritesNoInstances(t *testing.T) {
	w, root := setupProject(t, convectorFixture(), memsession.Options{})
	e := designate.NewEngine(testFamily(), session.NoDelay())
	_, err := runEngine(t, w, root, e)
	require.NoError(t, err)
	w.ResetCalls()

	report, err := runEngine(t, w, root, e)

	require.NoError(t, err)
	assert.Zero(t, report.InstancesUpdated)
	assert.Zero(t, w.CallCount("SetInstanceDesignation"))
	assert.True(t, report.AssemblyRenamed)
}

func TestEngineInstanceOrderHook(t *testing.T) {
	w, root := setupProject(t, convectorFixture(), memsession.Options{})
	e := designate.NewEngine(testFamily(), session.NoDelay())
	e.InstanceOrder = func(in []session.Instance) []session.Instance {
		out := make([]session.Instance, 0, len(in))
		for i := len(in) - 1; i >= 0; i-- {
			out = append(out, in[i])
		}
		return out
	}

	report, err := runEngine(t, w, root, e)

	require.NoError(t, err)
	asm, err := w.Snapshot("ZVD.LITE.160.350.2600.a3d")
	require.NoError(t, err)
	// Reversed: Теплообменник=1, Стенка торцевая=2, Корпус короба=3.
	assert.Equal(t, "ZVD.LITE.160.350.2600.003", asm.Instances[0].Designation)
	assert.Equal(t, "ZVD.LITE.160.350.002", asm.Instances[1].Designation)
	assert.FileExists(t, filepath.Join(root, "001 - Теплообменник.m3d"))
	assert.True(t, report.Success)
}

func TestEngineMissingAssembly(t *testing.T) {
	ctx := context.Background()
	w, root := setupProject(t, nil, memsession.Options{})
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	e := designate.NewEngine(testFamily(), session.NoDelay())

	report, err := e.Run(ctx, s, &project.Project{Root: root, Assembly: filepath.Join(root, "gone.a3d")}, testRequest)

	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.False(t, report.Success)
	assert.True(t, report.Errors.Has(model.KindDocumentNotFound))
}

func TestEnginePartFailureIsSkipped(t *testing.T) {
	w, root := setupProject(t, convectorFixture(), memsession.Options{
		FailOpen: map[string]error{"003 - Стенка торцевая.m3d": assert.AnError},
	})
	e := designate.NewEngine(testFamily(), session.NoDelay())

	report, err := runEngine(t, w, root, e)

	require.NoError(t, err)
	assert.True(t, report.Errors.Has(model.KindPartUpdate))
	assert.Equal(t, 3, report.PartsRenamed)
	assert.FileExists(t, filepath.Join(root, "003 - Стенка торцевая.m3d"))
	assert.FileExists(t, filepath.Join(root, "001 - Корпус короба.m3d"))
	assert.Zero(t, w.OpenDocuments())
}

func TestEngineConnectionLossAborts(t *testing.T) {
	w, root := setupProject(t, convectorFixture(), memsession.Options{DropAfter: 12})
	e := designate.NewEngine(testFamily(), session.NoDelay())

	report, err := runEngine(t, w, root, e)

	assert.ErrorIs(t, err, session.ErrConnection)
	assert.True(t, report.Errors.Has(model.KindConnection))
}
