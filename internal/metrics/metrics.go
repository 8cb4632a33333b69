package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts finished task runs by kind and outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbench_runs_total",
			Help: "Total number of finished task runs",
		},
		[]string{"kind", "outcome"},
	)

	// RunsInProgress tracks runs currently executing, per kind.
	RunsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "detbench_runs_in_progress",
			Help: "Number of task runs currently in progress",
		},
		[]string{"kind"},
	)

	// RunDuration tracks wall-clock duration of a task run in seconds.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detbench_run_duration_seconds",
			Help:    "Task run duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		},
		[]string{"kind"},
	)

	// RunsRejected counts start requests refused because a run of the same kind was active.
	RunsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbench_runs_rejected_total",
			Help: "Start requests rejected while a run of the same kind was active",
		},
		[]string{"kind"},
	)

	// InferenceLatency tracks per-image benchmark inference latency.
	InferenceLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detbench_inference_latency_seconds",
			Help:    "Per-image inference latency measured by the benchmark",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
}
