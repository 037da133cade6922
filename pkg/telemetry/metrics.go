package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the fleet service.
type Metrics struct {
	config MetricsConfig

	// Lifecycle metrics
	serversCreated  *prometheus.CounterVec
	actionsApplied  *prometheus.CounterVec
	serversByStatus *prometheus.GaugeVec

	// Provider metrics
	providerCalls    *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerErrors   *prometheus.CounterVec

	// Sweep metrics
	sweepsTotal      *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	driftCorrections *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// When metrics are disabled a no-op instance is returned.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		serversCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "servers_created_total",
				Help:      "Total number of server create requests",
			},
			[]string{"instance_type", "outcome"},
		),
		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_applied_total",
				Help:      "Total number of control actions applied",
			},
			[]string{"action", "outcome"},
		),
		serversByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "servers_by_status",
				Help:      "Current number of server records by status",
			},
			[]string{"status"},
		),

		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Total number of provider API calls",
			},
			[]string{"operation"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Duration of provider API calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Total number of provider API errors",
			},
			[]string{"operation", "kind"},
		),

		sweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Total number of reconciliation sweep passes",
			},
			[]string{"outcome"},
		),
		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Duration of reconciliation sweep passes in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		driftCorrections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_corrections_total",
				Help:      "Total number of records corrected by the sweeper",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.serversCreated,
		m.actionsApplied,
		m.serversByStatus,
		m.providerCalls,
		m.providerDuration,
		m.providerErrors,
		m.sweepsTotal,
		m.sweepDuration,
		m.driftCorrections,
	)

	return m, nil
}

// RecordServerCreated records a create request and its outcome
// ("accepted", "provisioned", "failed", "rejected").
func (m *Metrics) RecordServerCreated(instanceType, outcome string) {
	if m.serversCreated == nil {
		return
	}
	m.serversCreated.WithLabelValues(instanceType, outcome).Inc()
}

// RecordActionApplied records a control action and its outcome.
func (m *Metrics) RecordActionApplied(action, outcome string) {
	if m.actionsApplied == nil {
		return
	}
	m.actionsApplied.WithLabelValues(action, outcome).Inc()
}

// SetServersByStatus sets the record count gauge for one status bucket.
func (m *Metrics) SetServersByStatus(status string, count float64) {
	if m.serversByStatus == nil {
		return
	}
	m.serversByStatus.WithLabelValues(status).Set(count)
}

// RecordProviderCall records a provider call with its duration.
func (m *Metrics) RecordProviderCall(operation string, duration time.Duration) {
	if m.providerCalls == nil {
		return
	}
	m.providerCalls.WithLabelValues(operation).Inc()
	m.providerDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordProviderError records a provider error by operation and kind.
func (m *Metrics) RecordProviderError(operation, kind string) {
	if m.providerErrors == nil {
		return
	}
	m.providerErrors.WithLabelValues(operation, kind).Inc()
}

// RecordSweep records a completed sweep pass.
func (m *Metrics) RecordSweep(outcome string, duration time.Duration) {
	if m.sweepsTotal == nil {
		return
	}
	m.sweepsTotal.WithLabelValues(outcome).Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordDriftCorrection records one record corrected by the sweeper.
// Kind is "status", "address", or "vanished".
func (m *Metrics) RecordDriftCorrection(kind string) {
	if m.driftCorrections == nil {
		return
	}
	m.driftCorrections.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve blocks serving the metrics endpoint until the listener fails or ctx
// is cancelled, then shuts the server down gracefully. It returns
// immediately when metrics are disabled.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
