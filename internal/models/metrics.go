package models

import "time"

// HostMetric is one host measurement with its unit.
type HostMetric struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// HostMetrics is the host section of the health report.
type HostMetrics struct {
	CollectedAt time.Time             `json:"collected_at"`
	Metrics     map[string]HostMetric `json:"metrics"`
}
