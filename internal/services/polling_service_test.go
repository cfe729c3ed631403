package services_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/alerts"
	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/internal/mocks"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/benmeehan/sensor-alert-engine/internal/services"
	"github.com/benmeehan/sensor-alert-engine/internal/state_managers"
	"github.com/benmeehan/sensor-alert-engine/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type pollingFixture struct {
	client    *mocks.MockUpstreamClient
	publisher *mocks.MockPublisher
	store     *state_managers.DeviceStore
	factory   *alerts.Factory
	service   *services.PollingService
}

func newPollingFixture(t *testing.T, mutate func(*services.PollingSettings)) *pollingFixture {
	t.Helper()
	f := &pollingFixture{
		client:    new(mocks.MockUpstreamClient),
		publisher: new(mocks.MockPublisher),
	}
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return()

	f.store = state_managers.NewDeviceStore(f.publisher, zerolog.Nop())
	f.store.SetEvaluationEnabled(true)
	f.factory = alerts.NewFactory(zerolog.Nop(), alerts.WithRand(rand.New(rand.NewPCG(1, 2))))

	settings := services.DefaultPollingSettings()
	settings.DeviceBackoff = time.Millisecond
	settings.DeviceTimeout = time.Second
	settings.DataTimeout = time.Second
	if mutate != nil {
		mutate(&settings)
	}
	f.service = services.NewPollingService(f.client, f.store, f.factory, f.publisher, settings, zerolog.Nop())
	return f
}

func temperatureSensor(id int64, active bool) models.Device {
	return models.Device{ID: id, Name: fmt.Sprintf("temp-%d", id), Type: "TEMPERATURE", Location: "Lab", Active: active}
}

func (f *pollingFixture) withDevice(device models.Device, value *float64, thresholds []models.Threshold) {
	f.client.On("LatestReadings", mock.Anything, device.ID).
		Return([]models.Reading{{Value: value, Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}}, nil)
	f.client.On("Thresholds", mock.Anything, device.ID).Return(thresholds, nil)
}

func labRange() []models.Threshold {
	return []models.Threshold{
		{Min: models.Float(0), Max: models.Float(100), Active: false},
		{Min: models.Float(15), Max: models.Float(30), Active: true},
	}
}

// TestPollingService_PollOnce_MaxAlert tests that a reading above max creates a MAXIMO alert.
func TestPollingService_PollOnce_MaxAlert(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(31), labRange())

	// Execute
	err := f.service.PollOnce(context.Background())

	// Assert
	require.NoError(t, err)
	active := f.store.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, "TEMPERATURE_MAXIMO", active[0].AlertType)
	assert.Equal(t, constants.SeverityWarning, active[0].Severity)
	assert.Equal(t, 15.0, *active[0].ThresholdMin)
	assert.Equal(t, 30.0, *active[0].ThresholdMax)

	devices := f.store.Devices()
	require.Len(t, devices, 1)
	assert.Equal(t, 31.0, *devices[0].LastReading)
	assert.False(t, f.store.LastPoll().IsZero())

	f.publisher.AssertCalled(t, "Publish", constants.EventNewReading, mock.MatchedBy(func(p map[string]any) bool {
		return p["device_id"] == int64(1) && p["value"] == 31.0
	}))
	f.publisher.AssertCalled(t, "Publish", constants.EventNewAlert, mock.Anything)
	f.client.AssertExpectations(t)
}

// TestPollingService_PollOnce_MinAlert tests a reading below min.
func TestPollingService_PollOnce_MinAlert(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(12), labRange())

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	active := f.store.ActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "TEMPERATURE_MINIMO", active[0].AlertType)
	assert.Equal(t, constants.SeverityHigh, active[0].Severity)
	assert.False(t, active[0].Critical)
}

// TestPollingService_PollOnce_InRange tests that in-range readings create nothing.
func TestPollingService_PollOnce_InRange(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(22), labRange())

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Empty(t, f.store.ActiveAlerts())
	assert.Equal(t, int64(0), f.factory.LastID())
}

// TestPollingService_PollOnce_Dedupe tests that repeated cycles keep one active alert per pair.
func TestPollingService_PollOnce_Dedupe(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(31), labRange())

	// Execute
	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.PollOnce(context.Background()))
	}

	// Assert
	assert.Len(t, f.store.ActiveAlerts(), 1)
	assert.Equal(t, int64(1), f.factory.LastID())
	f.publisher.AssertNumberOfCalls(t, "Publish", 4) // 3 readings + 1 alert
}

// TestPollingService_PollOnce_CriticalAlert tests escalation for a 5 degree reading.
func TestPollingService_PollOnce_CriticalAlert(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(5), labRange())

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	active := f.store.ActiveAlerts()
	require.Len(t, active, 1)
	assert.True(t, active[0].Critical)
	assert.Equal(t, constants.SeverityCritical, active[0].Severity)
	assert.True(t, strings.HasPrefix(active[0].Message, constants.CriticalPrefix))
}

// TestPollingService_PollOnce_DevicesUnavailable tests the empty list after every attempt fails.
func TestPollingService_PollOnce_DevicesUnavailable(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	f.store.ReplaceDevices([]models.Device{temperatureSensor(9, true)})
	f.client.On("ListDevices", mock.Anything).Return(nil, fmt.Errorf("%w: connection refused", upstream.ErrUnavailable))

	// Execute
	err := f.service.PollOnce(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Empty(t, f.store.Devices())
	f.client.AssertNumberOfCalls(t, "ListDevices", 3)
	f.client.AssertNotCalled(t, "LatestReadings", mock.Anything, mock.Anything)
}

// TestPollingService_PollOnce_DevicesRecoverOnRetry tests a second attempt that succeeds.
func TestPollingService_PollOnce_DevicesRecoverOnRetry(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return(nil, upstream.ErrUnavailable).Once()
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil).Once()
	f.withDevice(device, models.Float(22), labRange())

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Len(t, f.store.Devices(), 1)
	f.client.AssertNumberOfCalls(t, "ListDevices", 2)
}

// TestPollingService_PollOnce_DevicesBadStatus tests that non-connection errors are not retried.
func TestPollingService_PollOnce_DevicesBadStatus(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	f.store.ReplaceDevices([]models.Device{temperatureSensor(9, true)})
	f.client.On("ListDevices", mock.Anything).Return(nil, fmt.Errorf("%w: 503", upstream.ErrUnexpectedStatus))

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Empty(t, f.store.Devices())
	f.client.AssertNumberOfCalls(t, "ListDevices", 1)
}

// TestPollingService_PollOnce_Cancelled tests that a cancelled cycle leaves the store untouched.
func TestPollingService_PollOnce_Cancelled(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) { s.DeviceBackoff = time.Hour })
	f.store.ReplaceDevices([]models.Device{temperatureSensor(9, true)})

	ctx, cancel := context.WithCancel(context.Background())
	f.client.On("ListDevices", mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, upstream.ErrUnavailable)

	// Execute
	err := f.service.PollOnce(ctx)

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, f.store.Devices(), 1)
	assert.True(t, f.store.LastPoll().IsZero())
}

// TestPollingService_PollOnce_SkipsInactiveDevices tests that inactive devices are never fetched.
func TestPollingService_PollOnce_SkipsInactiveDevices(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	active := temperatureSensor(1, true)
	inactive := temperatureSensor(2, false)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{active, inactive}, nil)
	f.withDevice(active, models.Float(40), labRange())

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	f.client.AssertNotCalled(t, "LatestReadings", mock.Anything, int64(2))
	require.Len(t, f.store.ActiveAlerts(), 1)
	assert.Equal(t, int64(1), f.store.ActiveAlerts()[0].DeviceID)
}

// TestPollingService_PollOnce_EvaluationDisabled tests that a disabled engine does nothing.
func TestPollingService_PollOnce_EvaluationDisabled(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	f.store.SetEvaluationEnabled(false)

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	f.client.AssertNotCalled(t, "ListDevices", mock.Anything)
	assert.True(t, f.store.LastPoll().IsZero())
}

// TestPollingService_PollOnce_MissingReading tests devices without a usable reading.
func TestPollingService_PollOnce_MissingReading(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	empty := temperatureSensor(1, true)
	nullValue := temperatureSensor(2, true)
	failing := temperatureSensor(3, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{empty, nullValue, failing}, nil)
	f.client.On("LatestReadings", mock.Anything, int64(1)).Return([]models.Reading{}, nil)
	f.client.On("LatestReadings", mock.Anything, int64(2)).Return([]models.Reading{{Value: nil}}, nil)
	f.client.On("LatestReadings", mock.Anything, int64(3)).Return(nil, upstream.ErrUnavailable)

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	f.client.AssertNotCalled(t, "Thresholds", mock.Anything, mock.Anything)
	assert.Empty(t, f.store.ActiveAlerts())
	for _, d := range f.store.Devices() {
		assert.Nil(t, d.LastReading)
	}
	f.publisher.AssertNotCalled(t, "Publish", constants.EventNewReading, mock.Anything)
}

// TestPollingService_PollOnce_ThresholdsFailure tests that a reading is kept but not evaluated.
func TestPollingService_PollOnce_ThresholdsFailure(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.client.On("LatestReadings", mock.Anything, int64(1)).Return([]models.Reading{{Value: models.Float(50)}}, nil)
	f.client.On("Thresholds", mock.Anything, int64(1)).Return(nil, errors.New("decode failure"))

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Empty(t, f.store.ActiveAlerts())
	assert.Equal(t, 50.0, *f.store.Devices()[0].LastReading)
}

// TestPollingService_PollOnce_InvalidRange tests that min > max is skipped.
func TestPollingService_PollOnce_InvalidRange(t *testing.T) {
	// Setup
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(50), []models.Threshold{{Min: models.Float(30), Max: models.Float(15), Active: true}})

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Empty(t, f.store.ActiveAlerts())
}

// TestPollingService_PollOnce_NoThresholds tests that a device without a range never alerts.
func TestPollingService_PollOnce_NoThresholds(t *testing.T) {
	f := newPollingFixture(t, nil)
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.withDevice(device, models.Float(500), []models.Threshold{})

	require.NoError(t, f.service.PollOnce(context.Background()))

	assert.Empty(t, f.store.ActiveAlerts())
}

// TestPollingService_PollOnce_AutoResolve tests that alerts clear once readings return in range.
func TestPollingService_PollOnce_AutoResolve(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) { s.AutoResolve = true })
	device := temperatureSensor(1, true)
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{device}, nil)
	f.client.On("Thresholds", mock.Anything, int64(1)).Return(labRange(), nil)
	f.client.On("LatestReadings", mock.Anything, int64(1)).Return([]models.Reading{{Value: models.Float(33)}}, nil).Once()
	f.client.On("LatestReadings", mock.Anything, int64(1)).Return([]models.Reading{{Value: models.Float(22)}}, nil).Once()

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))
	require.Len(t, f.store.ActiveAlerts(), 1)
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	assert.Empty(t, f.store.ActiveAlerts())
	all := f.store.AllAlerts()
	require.Len(t, all, 1)
	assert.NotNil(t, all[0].ResolvedAt)
	f.publisher.AssertCalled(t, "Publish", constants.EventAlertResolved, mock.Anything)
}

// TestPollingService_PollOnce_PreservesStoreOrder tests that alerts are created in device order
// even though data is fetched concurrently.
func TestPollingService_PollOnce_PreservesStoreOrder(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) { s.FetchWorkers = 8 })
	var devices []models.Device
	for id := int64(1); id <= 10; id++ {
		d := temperatureSensor(id, true)
		devices = append(devices, d)
		f.withDevice(d, models.Float(31), labRange())
	}
	f.client.On("ListDevices", mock.Anything).Return(devices, nil)

	// Execute
	require.NoError(t, f.service.PollOnce(context.Background()))

	// Assert
	active := f.store.ActiveAlerts()
	require.Len(t, active, 10)
	for i, a := range active {
		assert.Equal(t, int64(i+1), a.ID)
		assert.Equal(t, int64(i+1), a.DeviceID)
	}
}

// TestPollingService_Start_AlreadyRunning tests the lifecycle guards.
func TestPollingService_Start_AlreadyRunning(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) { s.Interval = time.Hour })
	f.store.SetEvaluationEnabled(false)

	// Execute
	err := f.service.Start()

	// Assert
	require.NoError(t, err)
	err = f.service.Start()
	assert.EqualError(t, err, "polling service is already running")

	require.NoError(t, f.service.Stop())
	assert.EqualError(t, f.service.Stop(), "polling service is not running")
}

// TestPollingService_Start_RunsFirstCycleImmediately tests that the loop polls without waiting.
func TestPollingService_Start_RunsFirstCycleImmediately(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) { s.Interval = time.Hour })
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{}, nil)

	// Execute
	require.NoError(t, f.service.Start())
	assert.Eventually(t, func() bool { return !f.store.LastPoll().IsZero() }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.service.Stop())

	// Assert
	f.client.AssertNumberOfCalls(t, "ListDevices", 1)
}

// TestPollingService_Start_PanicUsesFallbackDelay tests that a panicking cycle does not stop the loop
// and that the next cycle runs after the fallback delay instead of the interval.
func TestPollingService_Start_PanicUsesFallbackDelay(t *testing.T) {
	// Setup
	f := newPollingFixture(t, func(s *services.PollingSettings) {
		s.Interval = time.Hour
		s.FallbackDelay = 20 * time.Millisecond
	})
	f.client.On("ListDevices", mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(nil, nil).
		Once()
	f.client.On("ListDevices", mock.Anything).Return([]models.Device{}, nil)

	// Execute
	require.NoError(t, f.service.Start())
	assert.Eventually(t, func() bool { return !f.store.LastPoll().IsZero() }, time.Second, 10*time.Millisecond)
	require.NoError(t, f.service.Stop())

	// Assert
	f.client.AssertNumberOfCalls(t, "ListDevices", 2)
}
