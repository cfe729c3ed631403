package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	"github.com/benmeehan/sensor-alert-engine/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn, error
		Pretty bool   `yaml:"pretty"` // Console output instead of JSON lines
	} `yaml:"logging"`

	Upstream struct {
		BaseURL        string `yaml:"base_url"`        // Device service root URL
		DevicesPath    string `yaml:"devices_path"`    // Device list endpoint
		ReadingsPath   string `yaml:"readings_path"`   // Readings endpoint, {id} is the device id
		ThresholdsPath string `yaml:"thresholds_path"` // Thresholds endpoint, {id} is the device id
	} `yaml:"upstream"`

	Polling struct {
		Interval       time.Duration `yaml:"interval"`         // Pause between evaluation cycles
		FallbackDelay  time.Duration `yaml:"fallback_delay"`   // Pause after a failed cycle
		DeviceAttempts int           `yaml:"device_attempts"`  // Device list attempts per cycle
		DeviceBackoff  time.Duration `yaml:"device_backoff"`   // Pause between device list attempts
		DeviceTimeout  time.Duration `yaml:"device_timeout"`   // Timeout for the device list request
		DataTimeout    time.Duration `yaml:"data_timeout"`     // Timeout for readings and thresholds requests
		FetchWorkers   int           `yaml:"fetch_workers"`    // Concurrent per-device fetches
		EnabledAtStart bool          `yaml:"enabled_at_start"` // Start with evaluation enabled
		AutoResolve    bool          `yaml:"auto_resolve"`     // Resolve alerts when readings return in range
	} `yaml:"polling"`

	Alerts struct {
		MaxAge    time.Duration `yaml:"max_age"`   // Active alerts older than this expire
		Retention time.Duration `yaml:"retention"` // Inactive alerts are removed after this
		Seed      uint64        `yaml:"seed"`      // Message picker seed, 0 for random
	} `yaml:"alerts"`

	Events struct {
		Statistics bool `yaml:"statistics"` // Enable the statistics observer
		LogAlerts  bool `yaml:"log_alerts"` // Enable the alert log observer
	} `yaml:"events"`

	MQTT struct {
		Enabled        bool          `yaml:"enabled"`         // Mirror events to the broker
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID prefix
		Username       string        `yaml:"username"`        // Optional broker username
		Password       string        `yaml:"password"`        // Optional broker password
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate
		TopicPrefix    string        `yaml:"topic_prefix"`    // Events go to <prefix>/<kind>
		QOS            int           `yaml:"qos"`             // MQTT QoS level for event messages
		PublishTimeout time.Duration `yaml:"publish_timeout"` // Max wait for a publish acknowledgement
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Max wait for the broker connection
	} `yaml:"mqtt"`

	API struct {
		Enabled         bool          `yaml:"enabled"`          // Serve the query API
		Address         string        `yaml:"address"`          // Listen address
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Grace period for in-flight requests
	} `yaml:"api"`
}

// LoadConfig loads the YAML configuration from the specified file, fills in
// defaults and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = "http://localhost:8080"
	}

	p := &c.Polling
	if p.Interval == 0 {
		p.Interval = constants.DefaultPollInterval
	}
	if p.FallbackDelay == 0 {
		p.FallbackDelay = constants.FallbackDelay
	}
	if p.DeviceAttempts == 0 {
		p.DeviceAttempts = constants.DeviceFetchAttempts
	}
	if p.DeviceBackoff == 0 {
		p.DeviceBackoff = constants.DeviceFetchBackoff
	}
	if p.DeviceTimeout == 0 {
		p.DeviceTimeout = constants.DeviceFetchTimeout
	}
	if p.DataTimeout == 0 {
		p.DataTimeout = constants.DeviceDataTimeout
	}
	if p.FetchWorkers == 0 {
		p.FetchWorkers = constants.DefaultFetchWorkers
	}

	if c.Alerts.MaxAge == 0 {
		c.Alerts.MaxAge = constants.DefaultAlertMaxAge
	}
	if c.Alerts.Retention == 0 {
		c.Alerts.Retention = constants.DefaultAlertRetention
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "alert-engine"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "alerts/events"
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = 5 * time.Second
	}
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}

	if c.API.Address == "" {
		c.API.Address = ":8000"
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = 5 * time.Second
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Polling.Interval < 0 || c.Polling.FallbackDelay < 0 || c.Polling.DeviceBackoff < 0 {
		errs = append(errs, errors.New("polling durations must not be negative"))
	}
	if c.Polling.DeviceAttempts < 1 {
		errs = append(errs, errors.New("polling.device_attempts must be at least 1"))
	}
	if c.Polling.FetchWorkers < 1 {
		errs = append(errs, errors.New("polling.fetch_workers must be at least 1"))
	}
	if c.Polling.DeviceTimeout <= 0 || c.Polling.DataTimeout <= 0 {
		errs = append(errs, errors.New("polling timeouts must be positive"))
	}
	if c.Alerts.MaxAge <= 0 || c.Alerts.Retention <= 0 {
		errs = append(errs, errors.New("alerts.max_age and alerts.retention must be positive"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QOS))
		}
	}
	return errors.Join(errs...)
}
