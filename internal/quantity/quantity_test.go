package quantity_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/hcl_adapter"
	"github.com/vk/paramcascade/internal/memsession"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/project"
	"github.com/vk/paramcascade/internal/quantity"
	"github.com/vk/paramcascade/internal/session"
)

func defaultFamily(t *testing.T) *config.Family {
	t.Helper()
	f, err := hcl_adapter.NewLoader().Load(context.Background())
	require.NoError(t, err)
	return f
}

func TestCount(t *testing.T) {
	var instances []session.Instance
	for range 4 {
		instances = append(instances, session.Instance{Designation: "X.001"})
	}
	instances = append(instances,
		session.Instance{Designation: "X.002"},
		session.Instance{Designation: " X.002 "},
		session.Instance{Designation: ""},
		session.Instance{Designation: "-X.001"},
	)

	testCases := []struct {
		designation string
		want        int
	}{
		{"X.001", 4},
		{"X.002", 2},
		{"X.003", 1},
		{"", 1},
	}
	for _, tc := range testCases {
		t.Run(tc.designation, func(t *testing.T) {
			assert.Equal(t, tc.want, quantity.Count(instances, tc.designation, "-"))
		})
	}
}

func TestMatcher(t *testing.T) {
	m := quantity.NewMatcher(defaultFamily(t).FlatPattern)
	parts := []string{
		"/p/001 - Корпус короба (З-11).m3d",
		"/p/002 - Стенка торцевая.m3d",
		"/p/003 - Стенка.m3d",
		"/p/004 - Накладка.m3d",
		"/p/005 - Теплообменник.m3d",
		"/p/006 - Распорка.m3d",
		"/p/007 - Крышка декоративная левая.m3d",
		"/p/008 - Крышка декоративная правая.m3d",
		"/p/Без номера.m3d",
	}

	testCases := []struct {
		dxf      string
		wantSkip bool
		wantPart string
		wantName string
		wantRank quantity.Rank
		wantErr  error
	}{
		{dxf: "Развертка корпуса короба.dxf", wantPart: "001 - Корпус короба (З-11).m3d", wantName: "Корпус короба", wantRank: quantity.RankExact},
		{dxf: "Развертка стенки торцевой.dxf", wantPart: "002 - Стенка торцевая.m3d", wantRank: quantity.RankExact},
		{dxf: "Развертка стенки.dxf", wantPart: "003 - Стенка.m3d", wantRank: quantity.RankExact},
		{dxf: "Развертка распорки.dxf", wantPart: "006 - Распорка.m3d", wantRank: quantity.RankExact},
		{dxf: "Развертка укороченной распорки.dxf", wantSkip: true},
		{dxf: "Развертка накладки.dxf", wantErr: quantity.ErrNoCandidate},
		{dxf: "Развертка теплообменника.dxf", wantErr: quantity.ErrNoCandidate},
		{dxf: "Развертка крышки декоративной.dxf", wantPart: "007 - Крышка декоративная левая.m3d", wantRank: quantity.RankSubset, wantErr: quantity.ErrAmbiguous},
		{dxf: "Развертка.dxf", wantErr: quantity.ErrNoCandidate},
	}
	for _, tc := range testCases {
		t.Run(tc.dxf, func(t *testing.T) {
			got, err := m.Match(tc.dxf, parts)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantSkip, got.Skip)
			if tc.wantPart == "" {
				return
			}
			assert.Equal(t, tc.wantPart, filepath.Base(got.Part.Path))
			assert.Equal(t, tc.wantRank, got.Part.Rank)
			if tc.wantName != "" {
				assert.Equal(t, tc.wantName, got.Part.Name)
			}
		})
	}
}

func TestMatcherPrefersExactOverSubset(t *testing.T) {
	m := quantity.NewMatcher(&config.FlatPattern{})
	parts := []string{"010 - Планка длинная.m3d", "011 - Планка.m3d"}

	got, err := m.Match("Планка.dxf", parts)

	require.NoError(t, err)
	assert.Equal(t, "011 - Планка.m3d", got.Part.Path)
	assert.Equal(t, "011", got.Part.Seq)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "006 - Стенка торц 2шт (А-180925-1801).dxf", quantity.Label("006", "Стенка торц", 2, "А-180925-1801"))
	assert.Equal(t, "006 - Стенка торц 1шт.dxf", quantity.Label("006", "Стенка торц", 1, " "))
}

func TestLabelerRun(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	root := t.TempDir()
	fx := &config.Fixture{Documents: []*config.DocumentFixture{
		{
			File: "Z.a3d",
			Instances: []*config.InstanceFixture{
				{Name: "Корпус короба", Designation: "Z.001"},
				{Name: "Стенка торцевая", Designation: "Z.002"},
				{Name: "Стенка торцевая", Designation: "Z.002"},
				{Name: "Стенка", Designation: "Z.003"},
				{Name: "Стенка", Designation: "Z.003"},
				{Name: "Стенка", Designation: "Z.003"},
				{Name: "Стенка", Designation: "Z.003"},
				{Name: "Крепеж", Designation: "-"},
				{Name: "Крышка декоративная левая", Designation: "Z.005"},
				{Name: "Крышка декоративная левая", Designation: "Z.005"},
			},
		},
		{File: "001 - Корпус короба.m3d", Marking: "Z.001"},
		{File: "002 - Стенка торцевая.m3d", Marking: "Z.002"},
		{File: "003 - Стенка.m3d", Marking: "Z.003"},
		{File: "004 - Накладка.m3d", Marking: "Z.004"},
		{File: "005 - Крышка декоративная левая.m3d", Marking: "Z.005"},
		{File: "006 - Крышка декоративная правая.m3d", Marking: "Z.006"},
	}}
	w, err := memsession.NewWorld(root, fx, memsession.Options{})
	require.NoError(t, err)
	dxfDir := filepath.Join(root, project.FlatPatternDir)
	require.NoError(t, os.MkdirAll(dxfDir, 0o755))
	for _, name := range []string{
		"Развертка корпуса короба.dxf",
		"Развертка крышки декоративной.dxf",
		"Развертка стенки торцевой.dxf",
		"Развертка стенки.dxf",
		"Развертка укороченной распорки.dxf",
		"Развертка уголка.dxf",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dxfDir, name), nil, 0o644))
	}
	p, err := project.Scan(root)
	require.NoError(t, err)
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	l := quantity.NewLabeler(defaultFamily(t), session.NoDelay())

	// --- Act ---
	report, err := l.Run(ctx, s, p, "З-17")

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 4, report.Renamed)
	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Errors, 2)
	for _, e := range report.Errors {
		assert.Equal(t, model.KindAmbiguousMatch, e.Kind)
	}
	for _, name := range []string{
		"001 - Корпус короба 1шт (З-17).dxf",
		"005 - Крышка декоративная левая 1шт (З-17).dxf",
		"002 - Стенка торцевая 2шт (З-17).dxf",
		"003 - Стенка 4шт (З-17).dxf",
		"Развертка укороченной распорки.dxf",
		"Развертка уголка.dxf",
	} {
		assert.FileExists(t, filepath.Join(dxfDir, name))
	}
	assert.Zero(t, w.OpenDocuments())
}

func TestLabelerRunWithoutFlatPatterns(t *testing.T) {
	l := quantity.NewLabeler(defaultFamily(t), session.NoDelay())

	report, err := l.Run(context.Background(), nil, &project.Project{Root: t.TempDir()}, "")

	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Len(t, report.Errors, 1)
}
