package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Polling metrics
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_poll_cycles_total",
			Help: "Total number of evaluation cycles",
		},
		[]string{"status"}, // status: completed, skipped, failed
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertengine_poll_duration_seconds",
			Help:    "Duration of a complete evaluation cycle",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_upstream_requests_total",
			Help: "Total number of requests sent to the device service",
		},
		[]string{"endpoint", "status"}, // status: ok, unavailable, error
	)

	DevicesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_devices",
			Help: "Number of devices in the last device list",
		},
	)

	// Alert metrics
	AlertsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"severity"},
	)

	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_suppressed_total",
			Help: "Total number of duplicate alerts suppressed",
		},
	)

	AlertsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_resolved_total",
			Help: "Total number of alerts that left the active state",
		},
		[]string{"reason"}, // reason: expired, manual, recovered
	)

	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_active_alerts",
			Help: "Current number of active alerts",
		},
	)

	// Event bus metrics
	EventQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_event_queue_size",
			Help: "Events waiting for delivery",
		},
	)

	EventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_events_delivered_total",
			Help: "Total number of events delivered to observers",
		},
		[]string{"kind"},
	)

	ObserverFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_observer_failures_total",
			Help: "Total number of observer errors and panics",
		},
		[]string{"observer"},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
