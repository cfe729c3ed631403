package state_managers

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/alerts"
	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/internal/events"
	"github.com/benmeehan/sensor-alert-engine/internal/metrics"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateAlert is returned when the (device, alert type) pair already has an active alert.
	ErrDuplicateAlert = errors.New("an active alert already exists for this device and alert type")
	// ErrAlertNotFound is returned for unknown or already removed alert ids.
	ErrAlertNotFound = errors.New("alert not found")
)

// DeviceStore is the in-memory registry of devices and alerts.
// The poller is the only writer; readers always receive copies.
type DeviceStore struct {
	mu                sync.RWMutex
	devices           []models.Device
	alerts            []*models.Alert
	evaluationEnabled bool
	lastPoll          time.Time

	retention time.Duration
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// StoreOption customises a DeviceStore.
type StoreOption func(*DeviceStore)

// WithStoreClock sets the time source used for expiry.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *DeviceStore) { s.now = now }
}

// WithRetention sets how long inactive alerts are kept before removal.
func WithRetention(retention time.Duration) StoreOption {
	return func(s *DeviceStore) { s.retention = retention }
}

// NewDeviceStore creates an empty store with evaluation disabled.
func NewDeviceStore(publisher events.Publisher, logger zerolog.Logger, opts ...StoreOption) *DeviceStore {
	s := &DeviceStore{
		retention: constants.DefaultAlertRetention,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReplaceDevices swaps the whole device list.
func (s *DeviceStore) ReplaceDevices(devices []models.Device) {
	replaced := make([]models.Device, len(devices))
	for i := range devices {
		replaced[i] = devices[i].Clone()
	}

	s.mu.Lock()
	s.devices = replaced
	s.mu.Unlock()

	metrics.DevicesTracked.Set(float64(len(replaced)))
	s.logger.Debug().Int("devices", len(replaced)).Msg("Device list replaced")
}

// Devices returns a copy of the device list in insertion order.
func (s *DeviceStore) Devices() []models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyDevices()
}

// UpdateDevice applies fn to the stored device and returns the updated copy.
func (s *DeviceStore) UpdateDevice(id int64, fn func(d *models.Device)) (models.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.devices {
		if s.devices[i].ID == id {
			fn(&s.devices[i])
			return s.devices[i].Clone(), true
		}
	}
	return models.Device{}, false
}

// HasActiveAlert reports whether an active alert exists for the pair.
func (s *DeviceStore) HasActiveAlert(deviceID int64, alertType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findActive(deviceID, alertType) != nil
}

// AddAlert stores the alert and publishes nueva_alerta.
func (s *DeviceStore) AddAlert(alert *models.Alert) error {
	s.mu.Lock()
	if s.findActive(alert.DeviceID, alert.AlertType) != nil {
		s.mu.Unlock()
		return ErrDuplicateAlert
	}
	stored := alert.Clone()
	s.alerts = append(s.alerts, &stored)
	payload := stored.Payload()
	active := s.countActive()
	s.mu.Unlock()

	metrics.ActiveAlerts.Set(float64(active))
	s.publisher.Publish(constants.EventNewAlert, payload)
	return nil
}

// ActiveAlerts returns copies of the active alerts in insertion order.
func (s *DeviceStore) ActiveAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAlerts(true)
}

// AllAlerts returns copies of every retained alert, active or not.
func (s *DeviceStore) AllAlerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyAlerts(false)
}

// ResolveAlert deactivates one alert by id. Resolving an inactive alert is a no-op.
func (s *DeviceStore) ResolveAlert(id int64) (models.Alert, error) {
	s.mu.Lock()
	var target *models.Alert
	for _, a := range s.alerts {
		if a.ID == id {
			target = a
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return models.Alert{}, ErrAlertNotFound
	}
	if !target.Active {
		out := target.Clone()
		s.mu.Unlock()
		return out, nil
	}
	payload := s.deactivate(target, s.now())
	out := target.Clone()
	active := s.countActive()
	s.mu.Unlock()

	s.afterResolve("manual", active, payload)
	return out, nil
}

// ResolveDeviceAlerts deactivates every active alert of a device.
func (s *DeviceStore) ResolveDeviceAlerts(deviceID int64) []models.Alert {
	now := s.now()

	s.mu.Lock()
	var resolved []models.Alert
	var payloads []map[string]any
	for _, a := range s.alerts {
		if a.Active && a.DeviceID == deviceID {
			payloads = append(payloads, s.deactivate(a, now))
			resolved = append(resolved, a.Clone())
		}
	}
	active := s.countActive()
	s.mu.Unlock()

	s.afterResolve("recovered", active, payloads...)
	return resolved
}

// PurgeStaleAlerts expires active alerts older than maxAge and removes inactive
// alerts resolved longer ago than the retention window. Once nothing is stale,
// further calls change nothing.
func (s *DeviceStore) PurgeStaleAlerts(maxAge time.Duration) (expired, removed int) {
	now := s.now()

	s.mu.Lock()
	var payloads []map[string]any
	kept := s.alerts[:0]
	for _, a := range s.alerts {
		if a.Active && now.Sub(a.CreatedAt) > maxAge {
			payloads = append(payloads, s.deactivate(a, now))
		}
		if !a.Active && a.ResolvedAt != nil && now.Sub(*a.ResolvedAt) > s.retention {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	for i := len(kept); i < len(s.alerts); i++ {
		s.alerts[i] = nil
	}
	s.alerts = kept
	active := s.countActive()
	s.mu.Unlock()

	expired = len(payloads)
	s.afterResolve("expired", active, payloads...)
	if expired > 0 || removed > 0 {
		s.logger.Info().Int("expired", expired).Int("removed", removed).Msg("Stale alerts purged")
	}
	return expired, removed
}

// SetEvaluationEnabled flips the DISABLED/RUNNING state of the poller.
func (s *DeviceStore) SetEvaluationEnabled(enabled bool) {
	s.mu.Lock()
	s.evaluationEnabled = enabled
	s.mu.Unlock()
	s.logger.Info().Bool("enabled", enabled).Msg("Evaluation state changed")
}

// EvaluationEnabled reports whether poll cycles should evaluate devices.
func (s *DeviceStore) EvaluationEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluationEnabled
}

// MarkPolled records the completion time of a poll cycle.
func (s *DeviceStore) MarkPolled(t time.Time) {
	s.mu.Lock()
	s.lastPoll = t
	s.mu.Unlock()
}

// LastPoll returns the completion time of the last poll cycle.
func (s *DeviceStore) LastPoll() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPoll
}

// Snapshot reads devices, active alerts and engine state under one lock.
func (s *DeviceStore) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Snapshot{
		Devices:           s.copyDevices(),
		ActiveAlerts:      s.copyAlerts(true),
		EvaluationEnabled: s.evaluationEnabled,
		LastPoll:          s.lastPoll,
	}
}

// ZoneStats aggregates devices, active alerts and last readings per location,
// sorted by zone. Devices of an unknown family or without a reading are left
// out of the reading aggregates.
func (s *DeviceStore) ZoneStats() []models.ZoneStats {
	s.mu.RLock()
	zones := make(map[string]*models.ZoneStats)
	zone := func(name string) *models.ZoneStats {
		z, ok := zones[name]
		if !ok {
			z = &models.ZoneStats{Zone: name}
			zones[name] = z
		}
		return z
	}
	for _, d := range s.devices {
		z := zone(d.Location)
		z.Devices++
		if d.Active {
			z.ActiveDevices++
		}
		family := alerts.FamilyOf(d.Type)
		if d.LastReading == nil || family == alerts.FamilyUnknown {
			continue
		}
		if z.Readings == nil {
			z.Readings = make(map[string]models.ReadingStats)
		}
		agg := z.Readings[family.String()]
		agg.Add(*d.LastReading)
		z.Readings[family.String()] = agg
	}
	for _, a := range s.alerts {
		if !a.Active {
			continue
		}
		z := zone(a.Zone)
		z.ActiveAlerts++
		if a.Critical {
			z.CriticalAlerts++
		}
	}
	s.mu.RUnlock()

	out := make([]models.ZoneStats, 0, len(zones))
	for _, z := range zones {
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Zone < out[j].Zone })
	return out
}

// deactivate must be called with the write lock held.
func (s *DeviceStore) deactivate(a *models.Alert, at time.Time) map[string]any {
	a.Active = false
	resolvedAt := at
	a.ResolvedAt = &resolvedAt
	return a.Payload()
}

func (s *DeviceStore) afterResolve(reason string, active int, payloads ...map[string]any) {
	if len(payloads) == 0 {
		return
	}
	metrics.ActiveAlerts.Set(float64(active))
	metrics.AlertsResolvedTotal.WithLabelValues(reason).Add(float64(len(payloads)))
	for _, p := range payloads {
		s.publisher.Publish(constants.EventAlertResolved, p)
	}
}

func (s *DeviceStore) findActive(deviceID int64, alertType string) *models.Alert {
	for _, a := range s.alerts {
		if a.Active && a.DeviceID == deviceID && a.AlertType == alertType {
			return a
		}
	}
	return nil
}

func (s *DeviceStore) countActive() int {
	n := 0
	for _, a := range s.alerts {
		if a.Active {
			n++
		}
	}
	return n
}

func (s *DeviceStore) copyDevices() []models.Device {
	out := make([]models.Device, len(s.devices))
	for i := range s.devices {
		out[i] = s.devices[i].Clone()
	}
	return out
}

func (s *DeviceStore) copyAlerts(activeOnly bool) []models.Alert {
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a.Clone())
	}
	return out
}
