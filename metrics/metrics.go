// Package metrics provides Prometheus instrumentation for the bot.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// RoutesTotal counts classified messages by route.
	RoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ceniza",
			Name:      "routes_total",
			Help:      "Total messages classified by the intent router, by route.",
		},
		[]string{"route"},
	)

	// ModerationActionsTotal counts moderation actions by type and outcome.
	ModerationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ceniza",
			Name:      "moderation_actions_total",
			Help:      "Moderation actions by type and outcome (prompted, denied, executed, failed).",
		},
		[]string{"type", "outcome"},
	)

	// ConfirmationsTotal counts confirmation button results.
	ConfirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ceniza",
			Name:      "confirmations_total",
			Help:      "Confirmation interactions by result (confirmed, cancelled, invalid).",
		},
		[]string{"result"},
	)

	// UsageConsumedTotal counts premium image quota decisions.
	UsageConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ceniza",
			Name:      "usage_consumed_total",
			Help:      "Premium image quota decisions by kind and whether they were granted.",
		},
		[]string{"kind", "granted"},
	)

	// CompletionDuration observes completion latency by purpose.
	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ceniza",
			Name:      "completion_duration_seconds",
			Help:      "Language model completion latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"purpose"},
	)

	// ImagesTotal counts image requests by model and outcome.
	ImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ceniza",
			Name:      "images_total",
			Help:      "Image generation and edit requests by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	// PendingConfirmations tracks confirmations awaiting a click. The memory
	// store updates it on every change; the Redis store when the scheduler
	// sweeps.
	PendingConfirmations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ceniza",
		Name:      "pending_confirmations",
		Help:      "Confirmation records currently awaiting confirmation.",
	})
)

func init() {
	prometheus.MustRegister(
		RoutesTotal,
		ModerationActionsTotal,
		ConfirmationsTotal,
		UsageConsumedTotal,
		CompletionDuration,
		ImagesTotal,
		PendingConfirmations,
	)
}

// Router builds the HTTP routes exposed by the metrics server.
func Router(log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	log.Debug("metrics routes registered")
	return r
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Router(log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
