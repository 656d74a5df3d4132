// Package metrics counts package transitions, cache activity and hook runs
// in a Prometheus registry. There is no server: a run writes the registry to
// a textfile that a node exporter can pick up.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/conn-castle/shovel/internal/install"
	"github.com/conn-castle/shovel/internal/messages"
)

const namespace = "shovel"

// Metrics implements install.Observer, fetch.Recorder and hook.Recorder.
type Metrics struct {
	registry     *prometheus.Registry
	transitions  *prometheus.CounterVec
	failures     *prometheus.CounterVec
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	bytesFetched prometheus.Counter
	hookDuration *prometheus.HistogramVec
	hookFailures *prometheus.CounterVec
	installTime  *prometheus.HistogramVec

	mu      sync.Mutex
	started map[string]time.Time
}

// New registers every metric in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		started:  make(map[string]time.Time),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Package state transitions by target state.",
		}, []string{"state"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "package_failures_total",
			Help:      "Failed packages by the state they failed in.",
		}, []string{"state"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Artifacts served from the download cache.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Artifacts that had to be downloaded.",
		}),
		bytesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes downloaded, including downloads that failed verification.",
		}),
		hookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "duration_seconds",
			Help:      "Lifecycle hook run time.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 30, 120},
		}, []string{"hook"}),
		hookFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hook",
			Name:      "failures_total",
			Help:      "Lifecycle hooks that failed or timed out.",
		}, []string{"hook"}),
		installTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_duration_seconds",
			Help:      "Time from planning to the end of a package install.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe implements install.Observer.
func (m *Metrics) Observe(t install.Transition) {
	m.transitions.WithLabelValues(string(t.To)).Inc()
	if t.To == install.StateFailed {
		m.failures.WithLabelValues(string(t.From)).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch t.To {
	case install.StatePlanned:
		m.started[t.Package] = t.At
	case install.StateInstalled, install.StateFailed:
		start, ok := m.started[t.Package]
		if !ok {
			return
		}
		delete(m.started, t.Package)
		result := "installed"
		if t.To == install.StateFailed {
			result = "failed"
		}
		m.installTime.WithLabelValues(result).Observe(t.At.Sub(start).Seconds())
	}
}

// CacheHit implements fetch.Recorder.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss implements fetch.Recorder.
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// BytesFetched implements fetch.Recorder.
func (m *Metrics) BytesFetched(n int64) { m.bytesFetched.Add(float64(n)) }

// HookFinished implements hook.Recorder.
func (m *Metrics) HookFinished(name string, d time.Duration, err error) {
	m.hookDuration.WithLabelValues(name).Observe(d.Seconds())
	if err != nil {
		m.hookFailures.WithLabelValues(name).Inc()
	}
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return errors.New(messages.MetricsPathRequired)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf(messages.MetricsWriteFmt, path, err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf(messages.MetricsWriteFmt, path, err)
	}
	return nil
}
