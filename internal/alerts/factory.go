package alerts

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/rs/zerolog"
)

// CriticalHooks are the side effects run when a critical alert is built.
type CriticalHooks interface {
	// Notify emits the critical notification.
	Notify(alert *models.Alert, message string)
	// LogEvent records an audit trail entry for the alert.
	LogEvent(alert *models.Alert, event string)
}

// LogHooks writes critical notifications and audit entries to zerolog.
type LogHooks struct {
	Logger zerolog.Logger
	Audit  zerolog.Logger
}

// Notify logs the critical notification.
func (h LogHooks) Notify(alert *models.Alert, message string) {
	h.Logger.Warn().
		Int64("alert_id", alert.ID).
		Int64("device_id", alert.DeviceID).
		Str("zone", alert.Zone).
		Msg(message)
}

// LogEvent writes an audit entry.
func (h LogHooks) LogEvent(alert *models.Alert, event string) {
	h.Audit.Info().
		Int64("alert_id", alert.ID).
		Int64("device_id", alert.DeviceID).
		Str("alert_type", alert.AlertType).
		Int("severity", alert.Severity).
		Msg(event)
}

// Factory builds alerts from evaluation results.
type Factory struct {
	lastID atomic.Int64
	hooks  CriticalHooks
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option customises a Factory.
type Option func(*Factory)

// WithRand sets the random source used to pick message wordings.
func WithRand(rng *rand.Rand) Option {
	return func(f *Factory) { f.rng = rng }
}

// WithHooks replaces the critical alert hooks.
func WithHooks(hooks CriticalHooks) Option {
	return func(f *Factory) { f.hooks = hooks }
}

// WithClock sets the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) { f.now = now }
}

// NewFactory returns a factory whose first alert gets id 1.
func NewFactory(logger zerolog.Logger, opts ...Option) *Factory {
	f := &Factory{
		hooks: LogHooks{
			Logger: logger,
			Audit:  logger.With().Str("component", "audit").Logger(),
		},
		now: func() time.Time { return time.Now().UTC() },
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build constructs the alert for a device whose reading crossed its range.
// Critical alerts run the notify and audit hooks before returning.
func (f *Factory) Build(device models.Device, value float64, alertType string) *models.Alert {
	message := f.pickMessage(alertType, value)

	alert := &models.Alert{
		ID:           f.lastID.Add(1),
		DeviceID:     device.ID,
		DeviceName:   device.Name,
		Value:        roundTenth(value),
		AlertType:    alertType,
		Message:      message,
		Zone:         device.Location,
		ThresholdMin: cloneFloat(device.RangeMin),
		ThresholdMax: cloneFloat(device.RangeMax),
		CreatedAt:    f.now(),
		Active:       true,
		Severity:     BaseSeverity(alertType, value),
	}

	if IsCritical(alertType, value) {
		alert.Critical = true
		alert.Severity = constants.SeverityCritical
		alert.Message = constants.CriticalPrefix + message

		f.hooks.Notify(alert, "Critical alert in "+device.Location+": "+message)
		f.hooks.LogEvent(alert, "Critical alert generated")
	}

	return alert
}

// LastID returns the id handed to the most recent alert, 0 if none.
func (f *Factory) LastID() int64 {
	return f.lastID.Load()
}

func (f *Factory) pickMessage(alertType string, value float64) string {
	candidates := candidateMessages(alertType, value)
	if len(candidates) == 1 {
		return candidates[0]
	}
	f.rngMu.Lock()
	defer f.rngMu.Unlock()
	return candidates[f.rng.IntN(len(candidates))]
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
