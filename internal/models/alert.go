package models

import "time"

// Alert records that a device's latest reading violated its threshold.
// A critical alert is the same record with Critical set and Severity forced to 4.
type Alert struct {
	ID           int64      `json:"id"`
	DeviceID     int64      `json:"device_id"`
	DeviceName   string     `json:"device_name"`
	Value        float64    `json:"value"`
	AlertType    string     `json:"alert_type"`
	Message      string     `json:"message"`
	Zone         string     `json:"zone"`
	ThresholdMin *float64   `json:"threshold_min"`
	ThresholdMax *float64   `json:"threshold_max"`
	CreatedAt    time.Time  `json:"created_at"`
	Active       bool       `json:"active"`
	Severity     int        `json:"severity"`
	Critical     bool       `json:"critical"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy of the alert.
func (a Alert) Clone() Alert {
	a.ThresholdMin = cloneFloat(a.ThresholdMin)
	a.ThresholdMax = cloneFloat(a.ThresholdMax)
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		a.ResolvedAt = &t
	}
	return a
}

// Payload is the event-bus form of the alert.
func (a *Alert) Payload() map[string]any {
	payload := map[string]any{
		"id":            a.ID,
		"device_id":     a.DeviceID,
		"device_name":   a.DeviceName,
		"value":         a.Value,
		"alert_type":    a.AlertType,
		"message":       a.Message,
		"zone":          a.Zone,
		"threshold_min": a.ThresholdMin,
		"threshold_max": a.ThresholdMax,
		"created_at":    a.CreatedAt.Format(time.RFC3339),
		"active":        a.Active,
		"severity":      a.Severity,
		"critical":      a.Critical,
	}
	if a.ResolvedAt != nil {
		payload["resolved_at"] = a.ResolvedAt.Format(time.RFC3339)
	}
	return payload
}
