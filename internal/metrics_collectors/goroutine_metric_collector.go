package metrics_collectors

import (
	"context"
	"runtime"
)

// GoroutineMetricCollector reports the number of live goroutines in the engine.
type GoroutineMetricCollector struct{}

func (g *GoroutineMetricCollector) Name() string {
	return "goroutines"
}

func (g *GoroutineMetricCollector) Collect(context.Context) (float64, error) {
	return float64(runtime.NumGoroutine()), nil
}

func (g *GoroutineMetricCollector) Unit() string {
	return "count"
}
