package telemetry

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
)

func TestRegistry_ObservesRuns(t *testing.T) {
	r := NewRegistry()
	at := time.Now()

	r.RunStarted(orchestration.Run{})
	require.Equal(t, 1.0, testutil.ToFloat64(r.InFlight))

	r.RunFinished(orchestration.Run{State: orchestration.Succeeded, Output: transform.Output{StatusCode: 200}, StartedAt: at, StoppedAt: at.Add(time.Second)})
	r.RunFinished(orchestration.Run{State: orchestration.Succeeded, Output: transform.Output{StatusCode: 400}, StartedAt: at, StoppedAt: at})
	r.RunFinished(orchestration.Run{State: orchestration.Failed, Cause: orchestration.ErrTimeout, StartedAt: at, StoppedAt: at})

	require.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.RunErrors.WithLabelValues("States.Timeout")))

	r.EntrySkipped()
	r.EntryProcessed(100, 40)
	require.Equal(t, 1.0, testutil.ToFloat64(r.Entries.WithLabelValues("skipped")))
	require.Equal(t, 100.0, testutil.ToFloat64(r.BytesRead))
	require.Equal(t, 40.0, testutil.ToFloat64(r.BytesWritten))
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.RunFinished(orchestration.Run{State: orchestration.Failed, Cause: errors.New("x")})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `csvflow_runs_total{result="failed"} 1`), string(body))
}
