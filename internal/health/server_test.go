package health

import (
	"context"
	"encoding/json"
	"go-batch-harness/internal/metrics"
	"go-batch-harness/internal/models"
	"go-batch-harness/internal/worker"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status StatusProvider) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(":0", status, reg, logger), reg
}

func getHealth(t *testing.T, url string) healthResponse {
	t.Helper()
	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthzReportsExecuting(t *testing.T) {
	exec := worker.NewBatchExecutor(worker.NewRunner(nil))
	srv, _ := newTestServer(t, exec)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body := getHealth(t, ts.URL)
	require.Equal(t, "ok", body.Status)
	require.False(t, body.Executing)
	require.Equal(t, "idle", body.State)

	release := make(chan struct{})
	started := make(chan struct{})
	unit := models.WorkUnit{
		Name: "blocker",
		Run: func(ctx context.Context, payload string) (models.Result, error) {
			close(started)
			<-release
			return models.Result{IsOk: true}, nil
		},
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = exec.ExecuteAll(context.Background(), []models.WorkUnit{unit}, 5*time.Second)
	}()
	<-started

	body = getHealth(t, ts.URL)
	require.True(t, body.Executing)
	require.Equal(t, "running", body.State)

	close(release)
	<-done
	body = getHealth(t, ts.URL)
	require.False(t, body.Executing)
	require.Equal(t, "settled", body.State)
}

func TestMetricsEndpoint(t *testing.T) {
	exec := worker.NewBatchExecutor(worker.NewRunner(nil))
	srv, reg := newTestServer(t, exec)
	m := metrics.New(reg)
	m.SetExecuting(true)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "harness_batch_executing 1"), string(raw))
}

func TestRunStopsOnCancel(t *testing.T) {
	exec := worker.NewBatchExecutor(worker.NewRunner(nil))
	srv, _ := newTestServer(t, exec)
	srv.addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
