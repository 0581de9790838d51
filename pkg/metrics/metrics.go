// Package metrics exports automation run counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/stageflow/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stageflow_automation_runs_total",
			Help: "Total number of finished automation runs by status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stageflow_automation_run_duration_seconds",
			Help:    "Automation run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
	)

	NodeRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stageflow_node_runs_total",
			Help: "Total number of finished node runs by node type and status",
		},
		[]string{"type", "status"},
	)

	RunsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stageflow_automation_runs_reaped_total",
			Help: "Total number of stale runs failed by the reaper",
		},
	)
)

// ObserveRun records a finished run.
func ObserveRun(status models.RunStatus, took time.Duration) {
	RunsTotal.WithLabelValues(string(status)).Inc()
	RunDuration.Observe(took.Seconds())
}

func ObserveNode(nodeType string, status models.NodeStatus) {
	NodeRunsTotal.WithLabelValues(nodeType, string(status)).Inc()
}

func ObserveReaped() {
	RunsReapedTotal.Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "failed to stop metrics server", "error", err)
		}
	}()

	logger.InfoContext(ctx, "serving metrics", "addr", addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
