package constants

// Event kinds published on the event bus.
const (
	// EventNewAlert is published when an alert is added to the store.
	EventNewAlert = "nueva_alerta"
	// EventAlertResolved is published when an active alert expires or is resolved.
	EventAlertResolved = "alerta_resuelta"
	// EventNewReading is published when the poller records a device reading.
	EventNewReading = "nueva_lectura"
)
