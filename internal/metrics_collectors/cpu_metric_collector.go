package metrics_collectors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/cpu"
)

// CPUMetricCollector collects CPU usage metrics.
type CPUMetricCollector struct {
	Logger zerolog.Logger
}

func (c *CPUMetricCollector) Name() string {
	return "cpu"
}

// Collect samples utilization since the previous call without blocking.
func (c *CPUMetricCollector) Collect(ctx context.Context) (float64, error) {
	cpuPercentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		c.Logger.Error().Err(err).Msg("Failed to get CPU usage")
		return 0, err
	}

	if len(cpuPercentages) == 0 {
		c.Logger.Warn().Msg("CPU usage data is empty")
		return 0, errors.New("cpu usage data is empty")
	}

	c.Logger.Debug().Float64("cpu_usage", cpuPercentages[0]).Msg("CPU usage collected successfully")
	return cpuPercentages[0], nil
}

func (c *CPUMetricCollector) Unit() string {
	return "percentage"
}
