package alerts

import (
	"strings"

	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
)

// SensorFamily groups device type tags that share severity bounds and wording.
type SensorFamily int

const (
	FamilyUnknown SensorFamily = iota
	FamilyTemperature
	FamilyHumidity
	FamilyLight
)

func (f SensorFamily) String() string {
	switch f {
	case FamilyTemperature:
		return "temperature"
	case FamilyHumidity:
		return "humidity"
	case FamilyLight:
		return "light"
	default:
		return "unknown"
	}
}

// Bound tells which side of the range a reading crossed.
type Bound int

const (
	BoundNone Bound = iota
	BoundMin
	BoundMax
)

// FamilyOf maps an upstream device type tag (SENSOR_TEMPERATURA, TEMPERATURE, ...)
// to its sensor family.
func FamilyOf(deviceType string) SensorFamily {
	t := strings.ToUpper(deviceType)
	switch {
	case strings.Contains(t, "TEMPERAT"):
		return FamilyTemperature
	case strings.Contains(t, "HUMED"), strings.Contains(t, "HUMID"):
		return FamilyHumidity
	case strings.Contains(t, "LUZ"), strings.Contains(t, "LIGHT"), strings.Contains(t, "LUX"):
		return FamilyLight
	default:
		return FamilyUnknown
	}
}

// AlertTypeFor builds the alert type tag for a device type and crossed bound.
func AlertTypeFor(deviceType string, bound Bound) string {
	switch bound {
	case BoundMin:
		return deviceType + constants.AlertSuffixMin
	case BoundMax:
		return deviceType + constants.AlertSuffixMax
	default:
		return ""
	}
}

// ParseAlertType splits an alert type tag into its family and bound.
func ParseAlertType(alertType string) (SensorFamily, Bound) {
	switch {
	case strings.HasSuffix(alertType, constants.AlertSuffixMin):
		return FamilyOf(strings.TrimSuffix(alertType, constants.AlertSuffixMin)), BoundMin
	case strings.HasSuffix(alertType, constants.AlertSuffixMax):
		return FamilyOf(strings.TrimSuffix(alertType, constants.AlertSuffixMax)), BoundMax
	default:
		return FamilyUnknown, BoundNone
	}
}

// Evaluate compares value against the device range and returns the alert type,
// or "" when the value is in range or the range is not configured.
func Evaluate(device *models.Device, value float64) string {
	if !device.HasRange() {
		return ""
	}
	switch {
	case value < *device.RangeMin:
		return AlertTypeFor(device.Type, BoundMin)
	case value > *device.RangeMax:
		return AlertTypeFor(device.Type, BoundMax)
	default:
		return ""
	}
}
