package models

import "time"

// ReadingStats summarises the last readings of one sensor family in a zone.
type ReadingStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Add folds one reading into the aggregate.
func (r *ReadingStats) Add(value float64) {
	if r.Count == 0 || value < r.Min {
		r.Min = value
	}
	if r.Count == 0 || value > r.Max {
		r.Max = value
	}
	r.Average = (r.Average*float64(r.Count) + value) / float64(r.Count+1)
	r.Count++
}

// ZoneStats aggregates devices, active alerts and last readings for one location.
// Readings are keyed by sensor family (temperature, humidity, light).
type ZoneStats struct {
	Zone           string                  `json:"zone"`
	Devices        int                     `json:"devices"`
	ActiveDevices  int                     `json:"active_devices"`
	ActiveAlerts   int                     `json:"active_alerts"`
	CriticalAlerts int                     `json:"critical_alerts"`
	Readings       map[string]ReadingStats `json:"readings,omitempty"`
}

// Snapshot is a consistent view of the store taken under a single lock.
type Snapshot struct {
	Devices           []Device  `json:"devices"`
	ActiveAlerts      []Alert   `json:"active_alerts"`
	EvaluationEnabled bool      `json:"evaluation_enabled"`
	LastPoll          time.Time `json:"last_poll"`
}
