// Package telemetry exports link activity as Prometheus metrics and MQTT
// status messages. Both are session observers and never block the loop.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/session"
)

// Metrics counts cycles, resets and failsafe entries
type Metrics struct {
	registry  *prometheus.Registry
	cycles    *prometheus.CounterVec
	state     prometheus.Gauge
	resets    prometheus.Counter
	failsafes prometheus.Counter
	profile   *prometheus.GaugeVec
}

// NewMetrics registers the receiver metrics plus the Go runtime collectors
// on a private registry
func NewMetrics(profileName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brickrx_cycles_total",
			Help: "Control cycles by outcome.",
		}, []string{"outcome"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "brickrx_link_state",
			Help: "Current link state: 0=failsafe, 1=active, 2=binding.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brickrx_session_resets_total",
			Help: "Radio session resets.",
		}),
		failsafes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brickrx_failsafe_entries_total",
			Help: "Transitions into failsafe.",
		}),
		profile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "brickrx_profile_info",
			Help: "Vehicle profile in use.",
		}, []string{"profile"}),
	}

	m.registry.MustRegister(
		m.cycles, m.state, m.resets, m.failsafes, m.profile,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.state.Set(float64(protocol.LinkStateFailsafe))
	m.profile.WithLabelValues(profileName).Set(1)
	return m
}

var _ session.Observer = (*Metrics)(nil)

// OnTransition tracks the link state gauge
func (m *Metrics) OnTransition(from, to protocol.LinkState, at time.Time) {
	m.state.Set(float64(to))
	if to == protocol.LinkStateFailsafe {
		m.failsafes.Inc()
	}
}

// OnCycle counts the outcome and any session reset it caused
func (m *Metrics) OnCycle(outcome session.Outcome, at time.Time) {
	m.cycles.WithLabelValues(outcome.String()).Inc()
	if outcome.Resets() {
		m.resets.Inc()
	}
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
