package constants

import "time"

// Alert type suffixes appended to the device type tag.
const (
	AlertSuffixMin = "_MINIMO"
	AlertSuffixMax = "_MAXIMO"
)

// Severity levels. SeverityCritical is reserved for escalated alerts.
const (
	SeverityInfo     = 1
	SeverityWarning  = 2
	SeverityHigh     = 3
	SeverityCritical = 4
)

// CriticalPrefix is prepended to the message of escalated alerts.
const CriticalPrefix = "CRITICAL: "

const (
	// DefaultAlertMaxAge is how long an active alert lives before it expires.
	DefaultAlertMaxAge = 1 * time.Hour

	// DefaultAlertRetention is how long an inactive alert is kept before removal.
	DefaultAlertRetention = 24 * time.Hour
)
