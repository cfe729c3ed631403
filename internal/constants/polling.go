package constants

import "time"

const (
	// DeviceFetchAttempts bounds the device-list retries on connection failures.
	DeviceFetchAttempts = 3

	// DeviceFetchBackoff is the pause between device-list attempts.
	DeviceFetchBackoff = 5 * time.Second

	// DeviceFetchTimeout applies to GET /devices.
	DeviceFetchTimeout = 10 * time.Second

	// DeviceDataTimeout applies to readings and thresholds requests.
	DeviceDataTimeout = 5 * time.Second

	// DefaultPollInterval is the pause between two evaluation cycles.
	DefaultPollInterval = 30 * time.Second

	// FallbackDelay is used instead of the interval after a failed cycle.
	FallbackDelay = 30 * time.Second

	// DefaultFetchWorkers sizes the per-cycle fetch pool.
	DefaultFetchWorkers = 4
)
