package alerts

import "fmt"

type templateKey struct {
	family SensorFamily
	bound  Bound
}

// messageTemplates holds the candidate wordings per alert type. Each format
// string takes the reading as its only argument.
var messageTemplates = map[templateKey][]string{
	{FamilyTemperature, BoundMin}: {
		"Temperature too low: %.1f°C",
		"Low temperature detected: %.1f°C",
	},
	{FamilyTemperature, BoundMax}: {
		"Temperature too high: %.1f°C",
		"High temperature detected: %.1f°C",
	},
	{FamilyHumidity, BoundMin}: {
		"Humidity too low: %.1f%%",
		"Dry air detected: %.1f%% humidity",
	},
	{FamilyHumidity, BoundMax}: {
		"Humidity too high: %.1f%%",
		"Excess humidity detected: %.1f%%",
	},
	{FamilyLight, BoundMin}: {
		"Light intensity too low: %.0f lux",
		"Insufficient lighting: %.0f lux",
	},
	{FamilyLight, BoundMax}: {
		"Light intensity too high: %.0f lux",
		"Excessive lighting: %.0f lux",
	},
}

func candidateMessages(alertType string, value float64) []string {
	family, bound := ParseAlertType(alertType)
	templates, ok := messageTemplates[templateKey{family, bound}]
	if !ok {
		return []string{fmt.Sprintf("Alert: %v out of range", value)}
	}
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = fmt.Sprintf(t, value)
	}
	return out
}
