package models

// Device is a monitored sensor as known to the alert engine.
type Device struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Location    string   `json:"location"`
	Active      bool     `json:"active"`
	RangeMin    *float64 `json:"range_min"`    // nil means no threshold configured
	RangeMax    *float64 `json:"range_max"`    // nil means no threshold configured
	LastReading *float64 `json:"last_reading"` // last observed value
}

// HasRange reports whether both thresholds are configured.
func (d *Device) HasRange() bool {
	return d.RangeMin != nil && d.RangeMax != nil
}

// ValidRange reports whether the configured range is usable for evaluation.
func (d *Device) ValidRange() bool {
	return d.HasRange() && *d.RangeMin <= *d.RangeMax
}

// Clone returns a deep copy, so callers can hold it outside the store lock.
func (d Device) Clone() Device {
	d.RangeMin = cloneFloat(d.RangeMin)
	d.RangeMax = cloneFloat(d.RangeMax)
	d.LastReading = cloneFloat(d.LastReading)
	return d
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
