package models

import "time"

// Reading is a single observation returned by the upstream service.
type Reading struct {
	Value     *float64  `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Threshold is an acceptable [Min, Max] range configured upstream for a device.
type Threshold struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Active bool     `json:"active"`
}

// SelectThreshold returns the first active threshold, falling back to the
// first one. It returns nil for an empty list.
func SelectThreshold(thresholds []Threshold) *Threshold {
	if len(thresholds) == 0 {
		return nil
	}
	for i := range thresholds {
		if thresholds[i].Active {
			return &thresholds[i]
		}
	}
	return &thresholds[0]
}
