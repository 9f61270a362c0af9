package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	t.Parallel()

	m, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	// Registering the same metric names again against the same instance's
	// registry must fail, proving the first New() call actually registered them.
	dup := prometheus.NewCounter(prometheus.CounterOpts{Name: "journal_transcription_retries_total"})
	err = m.registry.Register(dup)
	assert.Error(t, err, "duplicate metric name should be rejected by the registry")
}

func TestRecordStageDurationObserves(t *testing.T) {
	t.Parallel()

	m, err := New(nil)
	require.NoError(t, err)

	m.RecordStageDuration("transcribing", 1500*time.Millisecond)

	families, err := m.registry.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() != "journal_stage_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "stage" && l.GetValue() == "transcribing" {
					found = true
					assert.Equal(t, uint64(1), metric.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	assert.True(t, found, "expected a transcribing stage sample")
}

func TestSetQueueDepthAndEntryOutcome(t *testing.T) {
	t.Parallel()

	m, err := New(nil)
	require.NoError(t, err)

	m.SetQueueDepth(3)
	m.RecordEntryOutcome("quick-note", "completed")
	m.RecordEntryOutcome("daily-reflection", "failed")
	m.IncTranscriptionRetry()
	m.IncRunTick()

	families, err := m.registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	t.Parallel()

	m, err := New(nil)
	require.NoError(t, err)
	m.SetQueueDepth(1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "journal_queue_depth")
}
