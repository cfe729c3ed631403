package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/alerts"
	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/internal/events"
	"github.com/benmeehan/sensor-alert-engine/internal/metrics"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/benmeehan/sensor-alert-engine/internal/state_managers"
	"github.com/benmeehan/sensor-alert-engine/internal/utils"
	"github.com/benmeehan/sensor-alert-engine/pkg/upstream"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PollingSettings tunes the evaluation loop.
type PollingSettings struct {
	Interval       time.Duration
	FallbackDelay  time.Duration
	DeviceAttempts int
	DeviceBackoff  time.Duration
	DeviceTimeout  time.Duration
	DataTimeout    time.Duration
	FetchWorkers   int
	AlertMaxAge    time.Duration
	AutoResolve    bool
}

// DefaultPollingSettings returns the stock timings.
func DefaultPollingSettings() PollingSettings {
	return PollingSettings{
		Interval:       constants.DefaultPollInterval,
		FallbackDelay:  constants.FallbackDelay,
		DeviceAttempts: constants.DeviceFetchAttempts,
		DeviceBackoff:  constants.DeviceFetchBackoff,
		DeviceTimeout:  constants.DeviceFetchTimeout,
		DataTimeout:    constants.DeviceDataTimeout,
		FetchWorkers:   constants.DefaultFetchWorkers,
		AlertMaxAge:    constants.DefaultAlertMaxAge,
	}
}

// PollingService periodically pulls devices, readings and thresholds from the
// device service and turns out-of-range readings into alerts.
type PollingService struct {
	client    upstream.Client
	store     *state_managers.DeviceStore
	factory   *alerts.Factory
	publisher events.Publisher
	settings  PollingSettings
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPollingService initializes and returns a new instance of PollingService.
func NewPollingService(
	client upstream.Client,
	store *state_managers.DeviceStore,
	factory *alerts.Factory,
	publisher events.Publisher,
	settings PollingSettings,
	logger zerolog.Logger,
) *PollingService {
	if settings.DeviceAttempts < 1 {
		settings.DeviceAttempts = 1
	}
	if settings.FetchWorkers < 1 {
		settings.FetchWorkers = 1
	}
	return &PollingService{
		client:    client,
		store:     store,
		factory:   factory,
		publisher: publisher,
		settings:  settings,
		logger:    logger,
	}
}

// Start launches the polling loop. The first cycle runs immediately.
func (p *PollingService) Start() error {
	if p.ctx != nil {
		p.logger.Warn().Msg("PollingService is already running")
		return errors.New("polling service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.wg.Add(1)
	go p.runPollingLoop()

	p.logger.Info().
		Dur("interval", p.settings.Interval).
		Int("fetch_workers", p.settings.FetchWorkers).
		Msg("PollingService started successfully")
	return nil
}

// Stop cancels the loop and waits for the in-flight cycle to return.
func (p *PollingService) Stop() error {
	if p.cancel == nil {
		p.logger.Warn().Msg("PollingService is not running")
		return errors.New("polling service is not running")
	}

	p.cancel()
	p.wg.Wait()
	p.ctx = nil
	p.cancel = nil

	p.logger.Info().Msg("PollingService stopped successfully")
	return nil
}

func (p *PollingService) runPollingLoop() {
	defer p.wg.Done()

	for {
		delay := p.settings.Interval
		if err := p.safePoll(); err != nil {
			if p.ctx.Err() != nil {
				return
			}
			delay = p.settings.FallbackDelay
		}

		if !sleepContext(p.ctx, delay) {
			p.logger.Info().Msg("Stopping polling loop")
			return
		}
	}
}

// safePoll runs one cycle and converts a panic into an error.
func (p *PollingService) safePoll() (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Poll cycle panic recovered")
			metrics.PanicsRecovered.WithLabelValues("polling").Inc()
			metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
			err = fmt.Errorf("poll cycle panicked: %v", r)
		}
	}()
	return p.PollOnce(p.ctx)
}

// PollOnce runs a single evaluation cycle. It only fails when ctx is cancelled,
// in which case the store is left untouched.
func (p *PollingService) PollOnce(ctx context.Context) error {
	logger := p.logger.With().Str("cycle_id", uuid.NewString()).Logger()

	if !p.store.EvaluationEnabled() {
		metrics.PollCyclesTotal.WithLabelValues("skipped").Inc()
		logger.Debug().Msg("Evaluation disabled, skipping cycle")
		return nil
	}

	start := time.Now()
	devices, err := p.fetchDevices(ctx, logger)
	if err != nil {
		metrics.PollCyclesTotal.WithLabelValues("failed").Inc()
		return err
	}
	p.store.ReplaceDevices(devices)

	created := p.evaluateDevices(ctx, logger)

	p.store.PurgeStaleAlerts(p.settings.AlertMaxAge)
	p.store.MarkPolled(time.Now().UTC())

	elapsed := time.Since(start)
	metrics.PollDuration.Observe(elapsed.Seconds())
	metrics.PollCyclesTotal.WithLabelValues("completed").Inc()
	logger.Info().
		Int("devices", len(devices)).
		Int("alerts_created", created).
		Dur("duration", elapsed).
		Msg("Poll cycle completed")
	return nil
}

// fetchDevices retries connection failures only. When every attempt fails the
// cycle continues with an empty device list.
func (p *PollingService) fetchDevices(ctx context.Context, logger zerolog.Logger) ([]models.Device, error) {
	for attempt := 1; attempt <= p.settings.DeviceAttempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, p.settings.DeviceTimeout)
		devices, err := p.client.ListDevices(reqCtx)
		cancel()
		if err == nil {
			return devices, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, upstream.ErrUnavailable) {
			logger.Error().Err(err).Msg("Device list request failed")
			return []models.Device{}, nil
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.settings.DeviceAttempts).
			Msg("Device service unreachable")

		if attempt < p.settings.DeviceAttempts && !sleepContext(ctx, p.settings.DeviceBackoff) {
			return nil, ctx.Err()
		}
	}

	logger.Error().Int("attempts", p.settings.DeviceAttempts).Msg("Could not fetch devices, continuing with an empty list")
	return []models.Device{}, nil
}

type deviceData struct {
	readings      []models.Reading
	readingsErr   error
	thresholds    []models.Threshold
	thresholdsErr error
}

// evaluateDevices prefetches per-device data concurrently, then evaluates the
// active devices one by one in store order.
func (p *PollingService) evaluateDevices(ctx context.Context, logger zerolog.Logger) int {
	var active []models.Device
	for _, d := range p.store.Devices() {
		if d.Active {
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return 0
	}

	data := make([]deviceData, len(active))
	pool := utils.NewWorkerPool(min(p.settings.FetchWorkers, len(active)), logger)
	for i := range active {
		pool.Submit(func() {
			data[i] = p.fetchDeviceData(ctx, active[i].ID)
		})
	}
	pool.Shutdown()

	created := 0
	for i, device := range active {
		if ctx.Err() != nil {
			break
		}
		if p.evaluateDevice(device, data[i], logger) {
			created++
		}
	}
	return created
}

func (p *PollingService) fetchDeviceData(ctx context.Context, deviceID int64) deviceData {
	var out deviceData

	readCtx, cancel := context.WithTimeout(ctx, p.settings.DataTimeout)
	out.readings, out.readingsErr = p.client.LatestReadings(readCtx, deviceID)
	cancel()
	if out.readingsErr != nil || !usableReading(out.readings) {
		return out
	}

	thresholdCtx, cancel := context.WithTimeout(ctx, p.settings.DataTimeout)
	out.thresholds, out.thresholdsErr = p.client.Thresholds(thresholdCtx, deviceID)
	cancel()
	return out
}

// evaluateDevice records the reading, refreshes the range and creates an alert
// when needed. It reports whether an alert was created.
func (p *PollingService) evaluateDevice(device models.Device, data deviceData, logger zerolog.Logger) bool {
	log := logger.With().Int64("device_id", device.ID).Logger()

	if data.readingsErr != nil {
		log.Warn().Err(data.readingsErr).Msg("Failed to fetch readings")
		return false
	}
	if !usableReading(data.readings) {
		log.Debug().Msg("No usable reading")
		return false
	}
	latest := data.readings[0]
	value := *latest.Value

	updated, ok := p.store.UpdateDevice(device.ID, func(d *models.Device) {
		d.LastReading = models.Float(value)
	})
	if !ok {
		return false
	}
	p.publisher.Publish(constants.EventNewReading, map[string]any{
		"device_id":   device.ID,
		"device_name": device.Name,
		"zone":        device.Location,
		"value":       value,
		"timestamp":   latest.Timestamp.Format(time.RFC3339),
	})

	if data.thresholdsErr != nil {
		log.Warn().Err(data.thresholdsErr).Msg("Failed to fetch thresholds")
		return false
	}
	if threshold := models.SelectThreshold(data.thresholds); threshold != nil {
		updated, _ = p.store.UpdateDevice(device.ID, func(d *models.Device) {
			d.RangeMin = cloneFloat(threshold.Min)
			d.RangeMax = cloneFloat(threshold.Max)
		})
	}

	if updated.HasRange() && !updated.ValidRange() {
		log.Warn().
			Float64("range_min", *updated.RangeMin).
			Float64("range_max", *updated.RangeMax).
			Msg("Invalid range, skipping evaluation")
		return false
	}

	alertType := alerts.Evaluate(&updated, value)
	if alertType == "" {
		if p.settings.AutoResolve {
			if resolved := p.store.ResolveDeviceAlerts(device.ID); len(resolved) > 0 {
				log.Info().Int("resolved", len(resolved)).Msg("Reading back in range, alerts resolved")
			}
		}
		return false
	}

	if p.store.HasActiveAlert(device.ID, alertType) {
		metrics.AlertsSuppressedTotal.Inc()
		log.Debug().Str("alert_type", alertType).Msg("Active alert already exists")
		return false
	}

	alert := p.factory.Build(updated, value, alertType)
	if err := p.store.AddAlert(alert); err != nil {
		if errors.Is(err, state_managers.ErrDuplicateAlert) {
			metrics.AlertsSuppressedTotal.Inc()
			return false
		}
		log.Error().Err(err).Msg("Failed to store alert")
		return false
	}

	metrics.AlertsCreatedTotal.WithLabelValues(strconv.Itoa(alert.Severity)).Inc()
	log.Info().
		Int64("alert_id", alert.ID).
		Str("alert_type", alertType).
		Int("severity", alert.Severity).
		Float64("value", alert.Value).
		Msg("Alert created")
	return true
}

func usableReading(readings []models.Reading) bool {
	return len(readings) > 0 && readings[0].Value != nil
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
