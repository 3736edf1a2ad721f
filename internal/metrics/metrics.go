// Package metrics records configuration and analyzer counters in a private
// Prometheus registry. Every method is safe to call on a nil *Metrics, so
// components can take an optional collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "outliers"

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	reloads          *prometheus.CounterVec
	literalSets      prometheus.Gauge
	regexGroups      prometheus.Gauge
	failingPatterns  prometheus.Gauge
	analyzersCreated *prometheus.CounterVec
	sectionsSkipped  *prometheus.CounterVec
	runCycles        *prometheus.CounterVec
}

// New creates the collectors and registers them on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Configuration (re)loads by result.",
		}, []string{"result"}),
		literalSets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "whitelist",
			Name:      "literal_sets",
			Help:      "Literal whitelist sets in the active configuration.",
		}),
		regexGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "whitelist",
			Name:      "regex_groups",
			Help:      "Non-empty regex whitelist groups in the active configuration.",
		}),
		failingPatterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "whitelist",
			Name:      "failing_patterns",
			Help:      "Whitelist regular expressions that failed to compile.",
		}),
		analyzersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "created_total",
			Help:      "Analyzers built from use-case files, by model type.",
		}, []string{"model_type"}),
		sectionsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "sections_skipped_total",
			Help:      "Use-case sections skipped in non-strict mode, by reason.",
		}, []string{"reason"}),
		runCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_cycles_total",
			Help:      "Analyzer run cycles by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.reloads,
		m.literalSets,
		m.regexGroups,
		m.failingPatterns,
		m.analyzersCreated,
		m.sectionsSkipped,
		m.runCycles,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReload counts a configuration load.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(result(err)).Inc()
}

// SetWhitelist records the shape of the active whitelist.
func (m *Metrics) SetWhitelist(literalSets, regexGroups, failingPatterns int) {
	if m == nil {
		return
	}
	m.literalSets.Set(float64(literalSets))
	m.regexGroups.Set(float64(regexGroups))
	m.failingPatterns.Set(float64(failingPatterns))
}

// AnalyzerCreated counts a built analyzer.
func (m *Metrics) AnalyzerCreated(modelType string) {
	if m == nil {
		return
	}
	m.analyzersCreated.WithLabelValues(modelType).Inc()
}

// SectionSkipped counts a use-case section dropped in non-strict mode.
func (m *Metrics) SectionSkipped(reason string) {
	if m == nil {
		return
	}
	m.sectionsSkipped.WithLabelValues(reason).Inc()
}

// RunCycle counts an engine run cycle.
func (m *Metrics) RunCycle(err error) {
	if m == nil {
		return
	}
	m.runCycles.WithLabelValues(result(err)).Inc()
}

// WriteTextfile writes the current values in the text exposition format to
// path, for the node exporter textfile collector. The file is replaced
// atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
