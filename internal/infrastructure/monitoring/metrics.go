package monitoring

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "devassist"

// Metrics holds the core's Prometheus collectors on a private registry, so tests and
// multiple containers in one process never collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	PluginsDiscovered *prometheus.CounterVec
	PluginsShadowed   *prometheus.CounterVec
	DiscoveryWarnings *prometheus.CounterVec
	PluginLoads       *prometheus.CounterVec
	SessionsStarted   prometheus.Counter
	SessionsEnded     prometheus.Counter
	AnalysesRecorded  prometheus.Counter
	FixesRecorded     *prometheus.CounterVec
	FixTransitions    *prometheus.CounterVec
	Rollbacks         *prometheus.CounterVec
	DocumentsCleaned  prometheus.Counter
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PluginsDiscovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "plugins", Name: "discovered_total",
			Help: "Plugins registered by discovery, by type.",
		}, []string{"type"}),
		PluginsShadowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "plugins", Name: "shadowed_total",
			Help: "Lower-precedence plugin registrations ignored during discovery, by type.",
		}, []string{"type"}),
		DiscoveryWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "plugins", Name: "discovery_warnings_total",
			Help: "Plugin candidates skipped during discovery, by type.",
		}, []string{"type"}),
		PluginLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "plugins", Name: "loads_total",
			Help: "Plugin load attempts, by type and result.",
		}, []string{"type", "result"}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "started_total",
			Help: "Sessions started.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "ended_total",
			Help: "Sessions completed.",
		}),
		AnalysesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "sessions", Name: "analyses_recorded_total",
			Help: "Analyses recorded.",
		}),
		FixesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fixes", Name: "recorded_total",
			Help: "Fixes recorded, by fix type.",
		}, []string{"type"}),
		FixTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fixes", Name: "status_updates_total",
			Help: "Fix status updates, by resulting status.",
		}, []string{"status"}),
		Rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "fixes", Name: "rollbacks_total",
			Help: "Rollback attempts, by fix type and result.",
		}, []string{"type", "result"}),
		DocumentsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "state", Name: "documents_cleaned_total",
			Help: "State documents removed by cleanup.",
		}),
	}

	m.registry.MustRegister(
		m.PluginsDiscovered,
		m.PluginsShadowed,
		m.DiscoveryWarnings,
		m.PluginLoads,
		m.SessionsStarted,
		m.SessionsEnded,
		m.AnalysesRecorded,
		m.FixesRecorded,
		m.FixTransitions,
		m.Rollbacks,
		m.DocumentsCleaned,
	)
	return m
}

// Registry exposes the private registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteText writes every metric family in the Prometheus text exposition format
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return err
		}
	}
	return nil
}
