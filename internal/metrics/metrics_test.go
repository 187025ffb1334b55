package metrics

import (
	"errors"
	"go-batch-harness/internal/models"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome(models.Outcome{Kind: models.KindSuccess, Elapsed: 100 * time.Millisecond})
	m.ObserveOutcome(models.Outcome{Kind: models.KindTimeout, Orphaned: true, Elapsed: 2 * time.Second})
	m.ObserveOutcome(models.Outcome{Kind: models.KindTimeout, Orphaned: true, Elapsed: 2 * time.Second})
	m.ObserveOutcome(models.Outcome{Kind: models.KindFailure})

	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("Success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("Timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("Exception")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.orphans))
}

func TestExecutingAndBatches(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetExecuting(true)
	require.Equal(t, 1.0, testutil.ToFloat64(m.executing))
	m.SetExecuting(false)
	require.Equal(t, 0.0, testutil.ToFloat64(m.executing))

	m.BatchSettled(nil)
	m.BatchSettled(errors.New("boom"))
	m.BatchSettled(nil)
	require.Equal(t, 2.0, testutil.ToFloat64(m.batches.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.batches.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ObserveOutcome(models.Outcome{Kind: models.KindSuccess})
		m.SetExecuting(true)
		m.BatchSettled(nil)
	})
}

func TestRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveOutcome(models.Outcome{Kind: models.KindSuccess})
	m.BatchSettled(nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{
		"harness_unit_outcomes_total",
		"harness_unit_orphans_total",
		"harness_batch_executing",
		"harness_unit_duration_seconds",
		"harness_batches_total",
	} {
		require.True(t, found[name], "metric %q not registered", name)
	}
}
