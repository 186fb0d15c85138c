package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_lookups_total",
			Help: "Total number of price/image lookups by outcome",
		},
		[]string{"domain", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricescout_fetch_duration_seconds",
			Help:    "Duration of upstream search page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"domain"},
	)

	GateDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_bot_gate_detections_total",
			Help: "Total number of anti-bot interstitials detected",
		},
		[]string{"domain", "marker"},
	)

	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_breaker_rejections_total",
			Help: "Total number of lookups short-circuited by the circuit breaker",
		},
		[]string{"key"},
	)

	BatchJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricescout_batch_jobs_total",
			Help: "Total number of batch jobs by terminal status",
		},
		[]string{"status"},
	)
)

// RecordLookup tallies a finished lookup. Outcome is either "ok" or an error
// code from the lookup taxonomy.
func RecordLookup(domain, outcome string) {
	LookupsTotal.WithLabelValues(domain, outcome).Inc()
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv *http.Server
}

// Start begins listening on the given port in the background.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
