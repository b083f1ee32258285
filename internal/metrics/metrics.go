package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds poll loop instrumentation. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cycleDur      prometheus.Histogram
	cursor        prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwwatcher_cycles_total", Help: "Poll cycles by outcome and error kind",
		}, []string{"outcome", "kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hwwatcher_notifications_total", Help: "Chat notifications by result",
		}, []string{"result"}),
		cycleDur: f.NewHistogram(prometheus.HistogramOpts{
			Name: "hwwatcher_cycle_duration_seconds", Help: "Poll cycle duration",
			Buckets: prometheus.DefBuckets,
		}),
		cursor: f.NewGauge(prometheus.GaugeOpts{
			Name: "hwwatcher_cursor_timestamp_seconds", Help: "Current from_date cursor",
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome, kind string, took time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome, kind).Inc()
	m.cycleDur.Observe(took.Seconds())
}

// ObserveNotification records a delivery attempt.
func (m *Metrics) ObserveNotification(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

// SetCursor exposes the current fetch cursor.
func (m *Metrics) SetCursor(ts int64) {
	if m == nil {
		return
	}
	m.cursor.Set(float64(ts))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log := logger.With().Str("component", "metrics").Logger()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
