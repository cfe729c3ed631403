package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/metrics"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable marks connection-level failures. Only these are worth retrying.
	ErrUnavailable = errors.New("upstream service unavailable")
	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")
)

// maxDrainBytes caps how much of an error response is read before closing it.
const maxDrainBytes = 64 << 10

// Client is the read contract of the device service.
type Client interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	LatestReadings(ctx context.Context, deviceID int64) ([]models.Reading, error)
	Thresholds(ctx context.Context, deviceID int64) ([]models.Threshold, error)
}

// Paths holds the endpoint templates; {id} is replaced with the device id.
type Paths struct {
	Devices    string
	Readings   string
	Thresholds string
}

// DefaultPaths returns the stock endpoint layout.
func DefaultPaths() Paths {
	return Paths{
		Devices:    "/devices",
		Readings:   "/readings/device/{id}",
		Thresholds: "/thresholds/device/{id}",
	}
}

// HTTPClient talks JSON over HTTP to the device service.
type HTTPClient struct {
	baseURL    string
	paths      Paths
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPClient creates a client for baseURL. Empty paths fall back to the defaults.
// Timeouts come from the caller's context.
func NewHTTPClient(baseURL string, paths Paths, httpClient *http.Client, logger zerolog.Logger) *HTTPClient {
	defaults := DefaultPaths()
	if paths.Devices == "" {
		paths.Devices = defaults.Devices
	}
	if paths.Readings == "" {
		paths.Readings = defaults.Readings
	}
	if paths.Thresholds == "" {
		paths.Thresholds = defaults.Thresholds
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		paths:      paths,
		httpClient: httpClient,
		logger:     logger,
	}
}

// A missing active flag means active, for devices and thresholds alike.
type deviceDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Zone   string `json:"zone"`
	Active *bool  `json:"active"`
}

type thresholdDTO struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Active *bool    `json:"active"`
}

type readingDTO struct {
	Value     *float64 `json:"value"`
	Timestamp string   `json:"timestamp"`
}

// ListDevices fetches the full device list. Ranges are left unset; they come from thresholds.
func (c *HTTPClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	var dtos []deviceDTO
	if err := c.getJSON(ctx, "devices", c.paths.Devices, &dtos); err != nil {
		return nil, err
	}

	devices := make([]models.Device, 0, len(dtos))
	for _, d := range dtos {
		devices = append(devices, models.Device{
			ID:       d.ID,
			Name:     d.Name,
			Type:     d.Type,
			Location: d.Zone,
			Active:   activeOrDefault(d.Active),
		})
	}
	return devices, nil
}

// LatestReadings returns the device readings, most recent first.
func (c *HTTPClient) LatestReadings(ctx context.Context, deviceID int64) ([]models.Reading, error) {
	var dtos []readingDTO
	if err := c.getJSON(ctx, "readings", withID(c.paths.Readings, deviceID), &dtos); err != nil {
		return nil, err
	}

	readings := make([]models.Reading, 0, len(dtos))
	for _, r := range dtos {
		readings = append(readings, models.Reading{
			Value:     r.Value,
			Timestamp: parseTimestamp(r.Timestamp),
		})
	}
	return readings, nil
}

// Thresholds returns the thresholds configured for the device.
func (c *HTTPClient) Thresholds(ctx context.Context, deviceID int64) ([]models.Threshold, error) {
	var dtos []thresholdDTO
	if err := c.getJSON(ctx, "thresholds", withID(c.paths.Thresholds, deviceID), &dtos); err != nil {
		return nil, err
	}

	thresholds := make([]models.Threshold, 0, len(dtos))
	for _, t := range dtos {
		thresholds = append(thresholds, models.Threshold{
			Min:    t.Min,
			Max:    t.Max,
			Active: activeOrDefault(t.Active),
		})
	}
	return thresholds, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint, path string, v any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "unavailable").Inc()
		return fmt.Errorf("%w: GET %s: %w", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%w: GET %s returned %d", ErrUnexpectedStatus, url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		// Deadline hit while streaming the body.
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "unavailable").Inc()
			return fmt.Errorf("%w: GET %s: reading body: %w", ErrUnavailable, url, err)
		}
		metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	c.logger.Debug().Str("url", url).Msg("Upstream request completed")
	return nil
}

func activeOrDefault(active *bool) bool {
	return active == nil || *active
}

func withID(template string, id int64) string {
	return strings.ReplaceAll(template, "{id}", strconv.FormatInt(id, 10))
}

// The device service emits local timestamps without an offset.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
