package metrics_collectors

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/rs/zerolog"
)

// MetricsRegistry holds the host collectors reported by the health endpoint.
type MetricsRegistry struct {
	mu         sync.RWMutex
	collectors map[string]MetricCollector
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
	}
}

// NewHostMetricsRegistry returns a registry with the cpu, memory and goroutine collectors.
func NewHostMetricsRegistry(logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry()
	r.Register(&CPUMetricCollector{Logger: logger})
	r.Register(&MemoryMetricCollector{Logger: logger})
	r.Register(&GoroutineMetricCollector{})
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collectors[collector.Name()] = collector
}

// Names returns the registered collector names, sorted.
func (r *MetricsRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll runs every collector concurrently. Failed collectors are left out.
func (r *MetricsRegistry) CollectAll(ctx context.Context) models.HostMetrics {
	r.mu.RLock()
	collectors := make([]MetricCollector, 0, len(r.collectors))
	for _, c := range r.collectors {
		collectors = append(collectors, c)
	}
	r.mu.RUnlock()

	result := models.HostMetrics{
		CollectedAt: time.Now().UTC(),
		Metrics:     make(map[string]models.HostMetric, len(collectors)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, collector := range collectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := collector.Collect(ctx)
			if err != nil {
				return
			}
			mu.Lock()
			result.Metrics[collector.Name()] = models.HostMetric{Value: value, Unit: collector.Unit()}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return result
}
