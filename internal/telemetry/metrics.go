package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"csvflow/internal/orchestration"
	"csvflow/internal/transform"
)

// Registry owns the process metrics. It observes runs and worker entries.
type Registry struct {
	reg *prometheus.Registry

	Runs         *prometheus.CounterVec // result=succeeded|rejected|failed
	RunErrors    *prometheus.CounterVec // error_name
	InFlight     prometheus.Gauge
	RunDuration  prometheus.Histogram
	Entries      *prometheus.CounterVec // result=processed|skipped
	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "csvflow_runs_total"}, []string{"result"})
	runErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "csvflow_run_errors_total"}, []string{"error_name"})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{Name: "csvflow_runs_in_flight"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "csvflow_run_duration_seconds",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "csvflow_entries_total"}, []string{"result"})
	read := prometheus.NewCounter(prometheus.CounterOpts{Name: "csvflow_source_bytes_total"})
	written := prometheus.NewCounter(prometheus.CounterOpts{Name: "csvflow_destination_bytes_total"})

	r.MustRegister(runs, runErrors, inFlight, duration, entries, read, written)
	return &Registry{
		reg:          r,
		Runs:         runs,
		RunErrors:    runErrors,
		InFlight:     inFlight,
		RunDuration:  duration,
		Entries:      entries,
		BytesRead:    read,
		BytesWritten: written,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

/*──────── orchestration.Observer ───────*/

func (r *Registry) RunStarted(orchestration.Run) { r.InFlight.Inc() }

func (r *Registry) RunFinished(run orchestration.Run) {
	r.InFlight.Dec()
	r.RunDuration.Observe(run.StoppedAt.Sub(run.StartedAt).Seconds())
	switch {
	case run.State == orchestration.Failed:
		r.Runs.WithLabelValues("failed").Inc()
		r.RunErrors.WithLabelValues(run.ErrorName()).Inc()
	case run.Output.StatusCode != transform.StatusOK:
		r.Runs.WithLabelValues("rejected").Inc()
	default:
		r.Runs.WithLabelValues("succeeded").Inc()
	}
}

/*──────── transform.Observer ───────*/

func (r *Registry) EntrySkipped() { r.Entries.WithLabelValues("skipped").Inc() }

func (r *Registry) EntryProcessed(bytesIn, bytesOut int) {
	r.Entries.WithLabelValues("processed").Inc()
	r.BytesRead.Add(float64(bytesIn))
	r.BytesWritten.Add(float64(bytesOut))
}

/*──────── exposition ───────*/

// Expose serves /metrics on port until ctx is cancelled.
func (r *Registry) Expose(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
