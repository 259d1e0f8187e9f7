// Package metrics provides Prometheus metrics for re-parameterization runs
// and the CAD session calls they make.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vk/paramcascade/internal/model"
)

var (
	// Pass metrics
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_passes_total",
			Help: "Total number of passes run",
		},
		[]string{"pass", "status"},
	)

	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paramcascade_pass_duration_seconds",
			Help:    "Wall time of a pass, settle delays included",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"pass"},
	)

	RunErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_run_errors_total",
			Help: "Errors recorded in pass reports",
		},
		[]string{"pass", "kind"},
	)

	// Document metrics
	PartsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paramcascade_parts_updated_total",
			Help: "Part files that received propagated variables",
		},
	)

	VariablesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_variables_written_total",
			Help: "Variables written, by document kind",
		},
		[]string{"document"},
	)

	InstancesUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paramcascade_instances_updated_total",
			Help: "Assembly instances whose designation was rewritten",
		},
	)

	RenamesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_renames_total",
			Help: "Files renamed, by extension",
		},
		[]string{"ext"},
	)

	// Session metrics
	SessionsAcquired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_sessions_acquired_total",
			Help: "CAD session acquisitions",
		},
		[]string{"status"},
	)

	SessionCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paramcascade_session_calls_total",
			Help: "Calls made to the CAD session",
		},
		[]string{"method", "status"},
	)

	SessionCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paramcascade_session_call_duration_seconds",
			Help:    "Duration of CAD session calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// Pass names used as label values.
const (
	PassPropagate   = "propagate"
	PassDesignate   = "designate"
	PassDrawings    = "drawings"
	PassFlatPattern = "flat_patterns"
)

// Recorder records the outcome of passes. A nil Recorder records nothing.
type Recorder struct{}

// NewRecorder returns a recorder backed by the default registry.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) pass(name string, success bool, errs model.Errors, d time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	PassesTotal.WithLabelValues(name, status).Inc()
	PassDuration.WithLabelValues(name).Observe(d.Seconds())
	for _, e := range errs {
		RunErrorsTotal.WithLabelValues(name, string(e.Kind)).Inc()
	}
}

// RecordPropagation records a propagation report.
func (r *Recorder) RecordPropagation(rep model.PropagationReport, d time.Duration) {
	if r == nil {
		return
	}
	r.pass(PassPropagate, rep.Success, rep.Errors, d)
	PartsUpdated.Add(float64(rep.PartsUpdated))
	VariablesWritten.WithLabelValues("assembly").Add(float64(rep.AssemblyVarsUpdated))
	VariablesWritten.WithLabelValues("part").Add(float64(rep.TotalVarsInParts))
}

// RecordDesignation records a designation report.
func (r *Recorder) RecordDesignation(rep model.DesignationReport, d time.Duration) {
	if r == nil {
		return
	}
	r.pass(PassDesignate, rep.Success, rep.Errors, d)
	InstancesUpdated.Add(float64(rep.InstancesUpdated))
}

// RecordDrawings records a drawing refresh report.
func (r *Recorder) RecordDrawings(rep model.DrawingReport, d time.Duration) {
	if r == nil {
		return
	}
	r.pass(PassDrawings, rep.Success, rep.Errors, d)
}

// RecordFlatPatterns records a flat pattern labelling report.
func (r *Recorder) RecordFlatPatterns(rep model.FlatPatternReport, d time.Duration) {
	if r == nil {
		return
	}
	r.pass(PassFlatPattern, rep.Success, rep.Errors, d)
}

// RecordRename counts one executed rename.
func (r *Recorder) RecordRename(ext string) {
	if r == nil {
		return
	}
	RenamesTotal.WithLabelValues(ext).Inc()
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
