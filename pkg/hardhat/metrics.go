package hardhat

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for provider operations.
type Metrics struct {
	RPCRequests  *prometheus.CounterVec
	RPCFailures  *prometheus.CounterVec
	NodeRestarts prometheus.Counter
	Connected    prometheus.Gauge
	Snapshots    prometheus.Counter
	Reverts      prometheus.Counter

	registered bool
	mu         sync.Mutex
}

// NewMetrics creates a new Metrics instance. Call Register to attach the
// collectors to a registerer.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "hardhat"
	}

	return &Metrics{
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Number of RPC requests sent to the node",
		}, []string{"method"}),
		RPCFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_failures_total",
			Help:      "Number of failed RPC requests",
		}, []string{"method"}),
		NodeRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_restarts_total",
			Help:      "Number of times the managed node process was restarted",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "Whether the provider is connected to a node",
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Number of chain snapshots taken",
		}),
		Reverts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Number of chain snapshot reverts",
		}),
	}
}

// Register registers the metrics with the provided registerer.
// If registerer is nil, the default prometheus registerer is used.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	collectors := m.collectors()

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			for i := 0; i < len(collectors); i++ {
				registerer.Unregister(collectors[i])
			}

			return err
		}
	}

	m.registered = true

	return nil
}

// Unregister removes the metrics from the provided registerer.
func (m *Metrics) Unregister(registerer prometheus.Registerer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registered {
		return
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	for _, c := range m.collectors() {
		registerer.Unregister(c)
	}

	m.registered = false
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RPCRequests,
		m.RPCFailures,
		m.NodeRestarts,
		m.Connected,
		m.Snapshots,
		m.Reverts,
	}
}

// RecordRequest increments the request counter for a method.
func (m *Metrics) RecordRequest(method string) {
	m.RPCRequests.WithLabelValues(method).Inc()
}

// RecordFailure increments the failure counter for a method.
func (m *Metrics) RecordFailure(method string) {
	m.RPCFailures.WithLabelValues(method).Inc()
}

// SetConnected records the current connection state.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}
