package catalog

import (
	"context"
	"go-batch-harness/internal/models"
	"go-batch-harness/internal/units"
	"go-batch-harness/internal/worker"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewCatalogValidation(t *testing.T) {
	f := units.NewFetcher(nil, "http://127.0.0.1")

	_, err := NewCatalog(time.Second, 0, f)
	require.Error(t, err)
	_, err = NewCatalog(time.Second, 2*time.Second, f)
	require.Error(t, err)
	_, err = NewCatalog(time.Second, time.Millisecond, nil)
	require.Error(t, err)

	c, err := NewCatalog(time.Second, time.Millisecond, f)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestBatchShape(t *testing.T) {
	c, err := NewCatalog(time.Second, time.Millisecond, units.NewFetcher(nil, "http://127.0.0.1"))
	require.NoError(t, err)

	batch := c.Batch()
	require.Len(t, batch, 5)
	for i, u := range batch {
		require.Equal(t, "task"+string(rune('1'+i)), u.Name)
		require.True(t, strings.HasPrefix(u.Payload, "test"+string(rune('1'+i))+" "), u.Payload)
		require.NotNil(t, u.Run)
	}
}

func TestDemoBatchReport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := NewCatalog(5*time.Second, 10*time.Millisecond, units.NewFetcher(ts.Client(), ts.URL))
	require.NoError(t, err)

	exec := worker.NewBatchExecutor(worker.NewRunner(nil))
	report, err := exec.ExecuteAll(context.Background(), c.Batch(), 300*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 5, report.Total())

	counts := report.Counts()
	require.Equal(t, 2, counts[models.KindTimeout])
	require.Equal(t, 1, counts[models.KindFailure])
	require.Equal(t, 2, counts[models.KindSuccess])

	var lines []string
	for _, l := range report.Lines() {
		lines = append(lines, strings.TrimSuffix(l, " possibly still running"))
	}
	require.ElementsMatch(t, []string{
		"  * [Timeout: task1 (Timeout)]",
		"  * [Timeout: task2 (Timeout)]",
		"  * [Exception: task4 (run4 crashed)]",
	}, lines)
}
