package alerts

import "github.com/benmeehan/sensor-alert-engine/internal/constants"

// extremes are the per-family bounds beyond which an out-of-range reading is
// considered high severity.
var extremes = map[SensorFamily]struct{ low, high float64 }{
	FamilyTemperature: {low: 14, high: 32},
	FamilyHumidity:    {low: 25, high: 80},
	FamilyLight:       {low: 50, high: 1000},
}

// BaseSeverity classifies a standard alert from its type and the raw value.
func BaseSeverity(alertType string, value float64) int {
	family, bound := ParseAlertType(alertType)
	if bound == BoundNone {
		return constants.SeverityInfo
	}
	limits, ok := extremes[family]
	if !ok {
		return constants.SeverityInfo
	}
	if value > limits.high || value < limits.low {
		return constants.SeverityHigh
	}
	return constants.SeverityWarning
}

// IsCritical reports whether the reading escalates to a critical alert.
func IsCritical(alertType string, value float64) bool {
	family, bound := ParseAlertType(alertType)
	switch {
	case family == FamilyTemperature && bound == BoundMin:
		return value < 10
	case family == FamilyTemperature && bound == BoundMax:
		return value > 35
	case family == FamilyHumidity && bound == BoundMin:
		return value < 20
	case family == FamilyHumidity && bound == BoundMax:
		return value > 85
	default:
		return false
	}
}
