// Package metrics exposes the scan loop's Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/algotradingios/Trading-Polymarket-Framework/internal/logger"
)

// Registry holds every metric the loop records. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg *prometheus.Registry

	Cycles         prometheus.Counter
	CycleDuration  prometheus.Histogram
	Markets        *prometheus.CounterVec
	Regimes        *prometheus.CounterVec
	ScreenFailures *prometheus.CounterVec
	Cascades       *prometheus.CounterVec
	Signals        *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TrackedMarkets prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polyfade_cycles_total",
			Help: "Completed scan cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polyfade_cycle_duration_seconds",
			Help:    "Wall time of one scan cycle",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		Markets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_markets_total",
			Help: "Instruments seen per cycle by book availability",
		}, []string{"book"}),
		Regimes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_regime_total",
			Help: "Regime classifications",
		}, []string{"regime"}),
		ScreenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_screen_failures_total",
			Help: "Screening failures by family and reason",
		}, []string{"family", "reason"}),
		Cascades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_cascade_outcomes_total",
			Help: "Cascade detector outcomes",
		}, []string{"outcome"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_signals_total",
			Help: "Routed signals by strategy",
		}, []string{"strategy"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polyfade_provider_errors_total",
			Help: "Market data provider failures by operation",
		}, []string{"op"}),
		TrackedMarkets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "polyfade_tracked_markets",
			Help: "Instruments with a rolling baseline",
		}),
	}
	r.reg.MustRegister(
		r.Cycles,
		r.CycleDuration,
		r.Markets,
		r.Regimes,
		r.ScreenFailures,
		r.Cascades,
		r.Signals,
		r.ProviderErrors,
		r.TrackedMarkets,
		collectors.NewGoCollector(),
	)
	return r
}

func (r *Registry) ObserveCycle(d time.Duration, tracked int) {
	if r == nil {
		return
	}
	r.Cycles.Inc()
	r.CycleDuration.Observe(d.Seconds())
	r.TrackedMarkets.Set(float64(tracked))
}

func (r *Registry) ObserveMarket(okBook bool) {
	if r == nil {
		return
	}
	label := "missing"
	if okBook {
		label = "ok"
	}
	r.Markets.WithLabelValues(label).Inc()
}

func (r *Registry) ObserveRegime(regime string) {
	if r == nil {
		return
	}
	r.Regimes.WithLabelValues(regime).Inc()
}

func (r *Registry) ObserveScreenFailure(family, reason string) {
	if r == nil {
		return
	}
	r.ScreenFailures.WithLabelValues(family, reason).Inc()
}

func (r *Registry) ObserveCascade(outcome string) {
	if r == nil {
		return
	}
	r.Cascades.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveSignal(strategy string) {
	if r == nil {
		return
	}
	r.Signals.WithLabelValues(strategy).Inc()
}

func (r *Registry) ObserveProviderError(op string) {
	if r == nil {
		return
	}
	r.ProviderErrors.WithLabelValues(op).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Serve runs a metrics endpoint on addr until ctx is cancelled.
func (r *Registry) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown: %v", err)
		}
	}()

	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
