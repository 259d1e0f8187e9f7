package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/paramcascade/internal/memsession"
	"github.com/vk/paramcascade/internal/model"
	"github.com/vk/paramcascade/internal/session"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	partsBefore := testutil.ToFloat64(PartsUpdated)
	okBefore := testutil.ToFloat64(PassesTotal.WithLabelValues(PassPropagate, "success"))
	kindBefore := testutil.ToFloat64(RunErrorsTotal.WithLabelValues(PassPropagate, string(model.KindVariableNotFound)))

	r.RecordPropagation(model.PropagationReport{
		Success:      true,
		PartsUpdated: 4,
		Errors:       model.Errors{{Kind: model.KindVariableNotFound, Message: "B2"}},
	}, time.Second)

	assert.Equal(t, partsBefore+4, testutil.ToFloat64(PartsUpdated))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(PassesTotal.WithLabelValues(PassPropagate, "success")))
	assert.Equal(t, kindBefore+1, testutil.ToFloat64(RunErrorsTotal.WithLabelValues(PassPropagate, string(model.KindVariableNotFound))))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.RecordPropagation(model.PropagationReport{}, 0)
		r.RecordDesignation(model.DesignationReport{}, 0)
		r.RecordDrawings(model.DrawingReport{}, 0)
		r.RecordFlatPatterns(model.FlatPatternReport{}, 0)
		r.RecordRename(".m3d")
	})
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	w, err := memsession.NewWorld(t.TempDir(), nil, memsession.Options{FailAcquire: 1})
	require.NoError(t, err)
	f := Instrument(w)
	failedBefore := testutil.ToFloat64(SessionsAcquired.WithLabelValues("failure"))
	openErrBefore := testutil.ToFloat64(SessionCallsTotal.WithLabelValues("Open", "error"))
	closeAllBefore := testutil.ToFloat64(SessionCallsTotal.WithLabelValues("CloseAll", "ok"))

	_, err = f.Acquire(ctx)
	require.ErrorIs(t, err, session.ErrConnection)
	s, err := f.Acquire(ctx)
	require.NoError(t, err)
	_, err = s.Open(ctx, "missing.a3d")
	require.Error(t, err)
	require.NoError(t, s.CloseAll(ctx))

	assert.Equal(t, failedBefore+1, testutil.ToFloat64(SessionsAcquired.WithLabelValues("failure")))
	assert.Equal(t, openErrBefore+1, testutil.ToFloat64(SessionCallsTotal.WithLabelValues("Open", "error")))
	assert.Equal(t, closeAllBefore+1, testutil.ToFloat64(SessionCallsTotal.WithLabelValues("CloseAll", "ok")))
}
