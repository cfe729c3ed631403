package events

import (
	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/rs/zerolog"
)

// AlertObserver writes a log line for every new and resolved alert.
type AlertObserver struct {
	Logger zerolog.Logger
}

// NewAlertObserver creates an AlertObserver.
func NewAlertObserver(logger zerolog.Logger) *AlertObserver {
	return &AlertObserver{Logger: logger}
}

func (o *AlertObserver) Name() string {
	return "alerts"
}

func (o *AlertObserver) OnEvent(kind string, payload map[string]any) error {
	switch kind {
	case constants.EventNewAlert:
		o.Logger.Info().
			Interface("alert_id", payload["id"]).
			Interface("alert_type", payload["alert_type"]).
			Interface("severity", payload["severity"]).
			Msgf("New alert received: %v", payload["message"])
	case constants.EventAlertResolved:
		o.Logger.Info().
			Interface("alert_id", payload["id"]).
			Interface("alert_type", payload["alert_type"]).
			Msg("Alert resolved")
	}
	return nil
}
