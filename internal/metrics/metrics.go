// Package metrics provides Prometheus metrics for the sharebox daemon.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sharebox/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("metrics")

	// Materialization metrics
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_fetches_total",
			Help: "Total placeholder content fetches",
		},
		[]string{"status"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sharebox_fetch_duration_seconds",
			Help:    "Time spent retrieving placeholder content",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		},
	)

	finalizesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_finalizes_total",
			Help: "Total dirty files handed to the backing store",
		},
		[]string{"status"},
	)

	// Sync metrics
	syncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_sync_cycles_total",
			Help: "Total sync cycles by outcome",
		},
		[]string{"result"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sharebox_sync_duration_seconds",
			Help:    "Sync cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	conflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharebox_conflicts_total",
			Help: "Conflicts detected during sync",
		},
		[]string{"kind"},
	)

	entriesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sharebox_entries",
			Help: "Number of file entries held in the lookup table",
		},
	)
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFetch records one content fetch.
func RecordFetch(duration time.Duration, success bool) {
	fetchDuration.Observe(duration.Seconds())
	fetchesTotal.WithLabelValues(status(success)).Inc()
}

// RecordFinalize records one hand-over of a dirty file.
func RecordFinalize(success bool) {
	finalizesTotal.WithLabelValues(status(success)).Inc()
}

// RecordSync records a finished sync cycle. result is the final scheduler
// outcome ("ok", "conflict", "failed").
func RecordSync(result string, duration time.Duration) {
	syncCyclesTotal.WithLabelValues(result).Inc()
	syncDuration.Observe(duration.Seconds())
}

// RecordConflict records one conflicted path.
func RecordConflict(kind string) {
	conflictsTotal.WithLabelValues(kind).Inc()
}

// SetEntries sets the current lookup table size.
func SetEntries(n int) {
	entriesTracked.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
