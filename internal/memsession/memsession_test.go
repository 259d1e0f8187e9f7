package memsession

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/config"
	"github.com/vk/paramcascade/internal/session"
)

func newTestWorld(t *testing.T, opts Options) (*World, string) {
	t.Helper()
	root := t.TempDir()
	fx := &config.Fixture{Documents: []*config.DocumentFixture{
		{
			File:    "asm.a3d",
			Marking: "OLD",
			Variables: []*config.VariableFixture{
				{Name: "H", Value: 90, Expression: "90"},
				{Name: "A2", Value: 20, Expression: "20"},
				{Name: "A1", Value: 70, Expression: "H-A2"},
				{Name: "A4", Value: 65, Expression: "A1-5"},
			},
			Instances: []*config.InstanceFixture{
				{Name: "Стенка", Designation: "X.001", Source: "001 - Стенка.m3d"},
			},
		},
		{
			File: "001 - Стенка.m3d",
			Name: "Стенка",
			Variables: []*config.VariableFixture{
				{Name: "A1", Value: 70, Expression: `C:\asm.a3d|A1`},
				{Name: "A3", Value: 50, Expression: "A1-20"},
			},
		},
	}}
	w, err := NewWorld(root, fx, opts)
	require.NoError(t, err)
	return w, root
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown path is not found", func(t *testing.T) {
		w, root := newTestWorld(t, Options{})
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		_, err = s.Open(ctx, filepath.Join(root, "missing.m3d"))

		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("foreign file fails to open", func(t *testing.T) {
		w, root := newTestWorld(t, Options{})
		path := filepath.Join(root, "foreign.m3d")
		require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		_, err = s.Open(ctx, path)

		assert.ErrorIs(t, err, session.ErrOpenFailed)
	})

	t.Run("injected failure", func(t *testing.T) {
		w, root := newTestWorld(t, Options{FailOpen: map[string]error{"asm.a3d": errors.New("locked")}})
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		_, err = s.Open(ctx, filepath.Join(root, "asm.a3d"))

		assert.ErrorIs(t, err, session.ErrOpenFailed)
		assert.ErrorContains(t, err, "locked")
	})

	t.Run("document follows its file across renames", func(t *testing.T) {
		w, root := newTestWorld(t, Options{})
		renamed := filepath.Join(root, "ZVD.a3d")
		require.NoError(t, os.Rename(filepath.Join(root, "asm.a3d"), renamed))
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		h, err := s.Open(ctx, renamed)
		require.NoError(t, err)
		props, err := s.Properties(ctx, h)
		require.NoError(t, err)

		assert.Equal(t, "OLD", props.Designation)
	})

	t.Run("reopening returns the same handle", func(t *testing.T) {
		w, root := newTestWorld(t, Options{})
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		h1, err := s.Open(ctx, filepath.Join(root, "asm.a3d"))
		require.NoError(t, err)
		h2, err := s.Open(ctx, filepath.Join(root, "asm.a3d"))
		require.NoError(t, err)

		assert.Equal(t, h1, h2)
		assert.Equal(t, 1, w.OpenDocuments())
	})
}

func TestWorkingCopy(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{})
	asm := filepath.Join(root, "asm.a3d")
	s, err := w.Acquire(ctx)
	require.NoError(t, err)

	h, err := s.Open(ctx, asm)
	require.NoError(t, err)
	require.NoError(t, s.SetVariable(ctx, h, "H", session.SetValue(160)))
	require.NoError(t, s.Close(ctx, h, false))

	v, ok := w.Variable(asm, "H")
	require.True(t, ok)
	assert.Equal(t, float64(90), v.Value, "unsaved edit is discarded")

	h, err = s.Open(ctx, asm)
	require.NoError(t, err)
	require.NoError(t, s.SetVariable(ctx, h, "H", session.SetValue(160)))
	require.NoError(t, s.Close(ctx, h, true))

	v, _ = w.Variable(asm, "H")
	assert.Equal(t, float64(160), v.Value, "close with save persists")
	assert.Equal(t, 0, w.OpenDocuments())
}

func TestRebuildConvergesOverCycles(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{})
	asm := filepath.Join(root, "asm.a3d")
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	h, err := s.Open(ctx, asm)
	require.NoError(t, err)

	require.NoError(t, s.SetVariable(ctx, h, "H", session.SetValue(160)))
	vars, err := s.ListVariables(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, float64(70), vars[2].Value, "writing a value does not recompute dependents")

	require.NoError(t, s.Rebuild(ctx, h, session.StageUpdate))
	vars, err = s.ListVariables(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, float64(140), vars[2].Value)
	assert.Equal(t, float64(135), vars[3].Value)
}

func TestLazyRebuilds(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{LazyRebuilds: 2})
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	h, err := s.Open(ctx, filepath.Join(root, "asm.a3d"))
	require.NoError(t, err)
	require.NoError(t, s.SetVariable(ctx, h, "H", session.SetValue(160)))

	require.NoError(t, s.Rebuild(ctx, h, session.StageUpdate))
	require.NoError(t, s.Rebuild(ctx, h, session.StageModel))
	vars, _ := s.ListVariables(ctx, h)
	assert.Equal(t, float64(70), vars[2].Value)

	require.NoError(t, s.Rebuild(ctx, h, session.StageDocument))
	vars, _ = s.ListVariables(ctx, h)
	assert.Equal(t, float64(140), vars[2].Value)
}

func TestSetVariable(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{FailSet: map[string]error{"A4": errors.New("read-only")}})
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	h, err := s.Open(ctx, filepath.Join(root, "001 - Стенка.m3d"))
	require.NoError(t, err)

	t.Run("never creates variables", func(t *testing.T) {
		err := s.SetVariable(ctx, h, "B5", session.SetValue(346))
		assert.ErrorIs(t, err, session.ErrVariableNotFound)
		vars, _ := s.ListVariables(ctx, h)
		assert.Len(t, vars, 2)
	})

	t.Run("literal expression sets the value", func(t *testing.T) {
		require.NoError(t, s.SetVariable(ctx, h, "A1", session.SetExpression("140")))
		vars, _ := s.ListVariables(ctx, h)
		assert.Equal(t, float64(140), vars[0].Value)
		assert.Equal(t, "140", vars[0].Expression)
	})

	t.Run("formula expression is evaluated on write", func(t *testing.T) {
		require.NoError(t, s.SetVariable(ctx, h, "A3", session.SetExpression("")))
		require.NoError(t, s.SetVariable(ctx, h, "A3", session.SetExpression("A1-20")))
		vars, _ := s.ListVariables(ctx, h)
		assert.Equal(t, float64(120), vars[1].Value)
	})

	t.Run("external flag", func(t *testing.T) {
		require.NoError(t, s.SetVariable(ctx, h, "A3", session.SetExternal(true)))
		vars, _ := s.ListVariables(ctx, h)
		assert.True(t, vars[1].External)
	})
}

func TestInstancesAndProperties(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{})
	asm := filepath.Join(root, "asm.a3d")
	s, err := w.Acquire(ctx)
	require.NoError(t, err)
	h, err := s.Open(ctx, asm)
	require.NoError(t, err)

	require.NoError(t, s.SetInstanceDesignation(ctx, h, 0, "X.009"))
	assert.Error(t, s.SetInstanceDesignation(ctx, h, 5, "X.010"))
	require.NoError(t, s.SetProperties(ctx, h, session.Properties{Designation: "NEW", Name: "Конвектор"}))
	require.NoError(t, s.Save(ctx, h))
	require.NoError(t, s.Close(ctx, h, false))

	st, err := w.Snapshot(asm)
	require.NoError(t, err)
	assert.Equal(t, "X.009", st.Instances[0].Designation)
	assert.Equal(t, "NEW", st.Marking)
	assert.Equal(t, "Конвектор", st.Name)
	assert.Equal(t, 2, w.CallCount("SetInstanceDesignation"), "rejected calls are still recorded")
}

func TestConnectionFaults(t *testing.T) {
	ctx := context.Background()

	t.Run("drop after N calls", func(t *testing.T) {
		w, root := newTestWorld(t, Options{DropAfter: 1})
		s, err := w.Acquire(ctx)
		require.NoError(t, err)

		h, err := s.Open(ctx, filepath.Join(root, "asm.a3d"))
		require.NoError(t, err)
		_, err = s.ListVariables(ctx, h)
		assert.ErrorIs(t, err, session.ErrConnection)
		_, err = s.ListVariables(ctx, h)
		assert.ErrorIs(t, err, session.ErrConnection)

		fresh, err := w.Acquire(ctx)
		require.NoError(t, err)
		_, err = fresh.ListVariables(ctx, h)
		assert.ErrorIs(t, err, session.ErrInvalidHandle, "handles never survive a reconnect")
	})

	t.Run("failed acquisitions", func(t *testing.T) {
		w, _ := newTestWorld(t, Options{FailAcquire: 1})
		_, err := w.Acquire(ctx)
		assert.ErrorIs(t, err, session.ErrConnection)
		_, err = w.Acquire(ctx)
		assert.NoError(t, err)
	})

	t.Run("close all releases documents of earlier sessions", func(t *testing.T) {
		w, root := newTestWorld(t, Options{})
		s1, err := w.Acquire(ctx)
		require.NoError(t, err)
		_, err = s1.Open(ctx, filepath.Join(root, "asm.a3d"))
		require.NoError(t, err)
		require.NoError(t, s1.Disconnect(ctx))
		assert.Equal(t, 1, w.OpenDocuments())

		s2, err := w.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, s2.CloseAll(ctx))
		assert.Equal(t, 0, w.OpenDocuments())
	})
}

func TestActiveDocument(t *testing.T) {
	ctx := context.Background()
	w, root := newTestWorld(t, Options{})
	s, err := w.Acquire(ctx)
	require.NoError(t, err)

	_, err = s.ActiveDocument(ctx)
	assert.ErrorIs(t, err, session.ErrNoActiveDocument)

	h1, err := s.Open(ctx, filepath.Join(root, "asm.a3d"))
	require.NoError(t, err)
	h2, err := s.Open(ctx, filepath.Join(root, "001 - Стенка.m3d"))
	require.NoError(t, err)

	active, err := s.ActiveDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, h2, active)

	require.NoError(t, s.Close(ctx, h2, false))
	active, err = s.ActiveDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, h1, active)
}

func TestEvaluate(t *testing.T) {
	vals := map[string]float64{"H": 160, "A2": 20, "A1": 140}
	testCases := []struct {
		expr   string
		want   float64
		wantOK bool
	}{
		{expr: "A1-20", want: 120, wantOK: true},
		{expr: "H-A2", want: 140, wantOK: true},
		{expr: "A1 - 20", want: 120, wantOK: true},
		{expr: "(H-A2)/2", want: 70, wantOK: true},
		{expr: "B1-4", wantOK: false},
		{expr: "42", wantOK: false},
		{expr: `C:\asm.a3d|A1`, wantOK: false},
		{expr: "", wantOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, ok := evaluate(tc.expr, vals)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
