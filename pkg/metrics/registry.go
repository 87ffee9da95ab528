// Package metrics holds the global Prometheus registry and the metric
// sets recorded by the pipeline evaluator and the thumbnail service.
//
// Metrics are opt-in: when InitRegistry was never called, every
// constructor returns nil and the nil receivers make recording a no-op
// with zero overhead.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the global metrics registry with the standard Go
// and process collectors. Safe to call once at startup before any metric
// set is constructed.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether metrics collection is active.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the global registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// ResetForTesting drops the global registry so tests can re-initialize
// with a clean slate.
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}
