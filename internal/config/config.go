package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvAPIKey     = "GRIDHEADROOM_API_KEY"
	EnvConfigPath = "GRIDHEADROOM_CONFIG"
)

const (
	defaultOpenDataURL   = "https://ukpowernetworks.opendatasoft.com/api/records/1.0/search/"
	defaultZoneDataset   = "ukpn_primary_postcode_area"
	defaultGeocoderURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent     = "network_connection_checker"
	defaultSearchRadius  = 10000 // meters
	defaultWindowDegrees = 0.1
	defaultRows          = 5000
	defaultTimezone      = "Europe/London"
)

// Config holds the application configuration
type Config struct {
	OpenData      OpenDataConfig `yaml:"opendata"`
	Geocoder      GeocoderConfig `yaml:"geocoder"`
	Mode          string         `yaml:"mode,omitempty"`           // "containment" or "nearest"
	Fallback      *bool          `yaml:"fallback,omitempty"`       // Fall back to nearest when containment misses (default true)
	SearchRadius  int            `yaml:"search_radius,omitempty"`  // Meters around the address to fetch zones for
	WindowDegrees float64        `yaml:"window_degrees,omitempty"` // Bounding window for candidate zones; negative disables
	Timezone      string         `yaml:"timezone,omitempty"`       // Zone for time-of-day bucketing
	Concurrency   int            `yaml:"concurrency,omitempty"`    // Parallel checks for multiple addresses
	MQTT          MQTTConfig     `yaml:"mqtt,omitempty"`
	HomeAssistant HAConfig       `yaml:"home_assistant,omitempty"`
	Server        ServerConfig   `yaml:"server,omitempty"`
}

// OpenDataConfig holds the open-data portal settings for zone and demand datasets
type OpenDataConfig struct {
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	ZoneDataset string        `yaml:"zone_dataset,omitempty"`
	Rows        int           `yaml:"rows,omitempty"`
	Retries     int           `yaml:"retries,omitempty"`
	RetryDelay  time.Duration `yaml:"retry_delay,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Demand      DemandDataset `yaml:"demand,omitempty"`
}

// DemandDataset describes where historical current readings live
type DemandDataset struct {
	Dataset    string `yaml:"dataset,omitempty"`
	IDField    string `yaml:"id_field,omitempty"`    // e.g. "primary"
	TimeField  string `yaml:"time_field,omitempty"`  // e.g. "timestamp"
	ValueField string `yaml:"value_field,omitempty"` // e.g. "current"
}

// GeocoderConfig holds Nominatim settings
type GeocoderConfig struct {
	URL       string `yaml:"url,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
}

// MQTTConfig holds MQTT broker settings for report publishing
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"` // default "gridheadroom"
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://homeassistant.local:8123"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.substation_headroom"
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// Load reads the config file and applies environment overrides
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Missing file means defaults
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.OpenData.APIKey = key
	}
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns $GRIDHEADROOM_CONFIG or config.yaml in the local directory
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return "config.yaml"
}

// GetMode returns the configured match mode name, defaulting to containment
func (c *Config) GetMode() string {
	if c.Mode == "" {
		return "containment"
	}
	return c.Mode
}

// GetFallback reports whether containment misses fall back to nearest centroid
func (c *Config) GetFallback() bool {
	if c.Fallback == nil {
		return true
	}
	return *c.Fallback
}

// GetSearchRadius returns the fetch radius in meters (default 10km)
func (c *Config) GetSearchRadius() int {
	if c.SearchRadius <= 0 {
		return defaultSearchRadius
	}
	return c.SearchRadius
}

// GetWindowDegrees returns the candidate window half-width; 0 means disabled
func (c *Config) GetWindowDegrees() float64 {
	switch {
	case c.WindowDegrees < 0:
		return 0
	case c.WindowDegrees == 0:
		return defaultWindowDegrees
	default:
		return c.WindowDegrees
	}
}

// GetLocation returns the time zone used for demand bucketing
func (c *Config) GetLocation() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = defaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %s: %w", name, err)
	}
	return loc, nil
}

// GetConcurrency returns the number of parallel checks (default 4)
func (c *Config) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 4
	}
	return c.Concurrency
}

// GetPort returns the HTTP API port (default 8080)
func (c *Config) GetPort() int {
	if c.Server.Port <= 0 {
		return 8080
	}
	return c.Server.Port
}

// GetBaseURL returns the records API endpoint
func (o OpenDataConfig) GetBaseURL() string {
	if o.BaseURL == "" {
		return defaultOpenDataURL
	}
	return o.BaseURL
}

// GetZoneDataset returns the primary substation zone dataset id
func (o OpenDataConfig) GetZoneDataset() string {
	if o.ZoneDataset == "" {
		return defaultZoneDataset
	}
	return o.ZoneDataset
}

// GetRows returns the page size for records queries
func (o OpenDataConfig) GetRows() int {
	if o.Rows <= 0 {
		return defaultRows
	}
	return o.Rows
}

// GetRetries returns how many times a failed request is retried (default 2)
func (o OpenDataConfig) GetRetries() int {
	if o.Retries < 0 {
		return 0
	}
	if o.Retries == 0 {
		return 2
	}
	return o.Retries
}

// GetRetryDelay returns the base delay between retries
func (o OpenDataConfig) GetRetryDelay() time.Duration {
	if o.RetryDelay <= 0 {
		return time.Second
	}
	return o.RetryDelay
}

// GetTimeout returns the per-request HTTP timeout
func (o OpenDataConfig) GetTimeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

// Configured reports whether a demand dataset has been set up
func (d DemandDataset) Configured() bool {
	return d.Dataset != "" && d.IDField != ""
}

// GetTimeField returns the timestamp field name
func (d DemandDataset) GetTimeField() string {
	if d.TimeField == "" {
		return "timestamp"
	}
	return d.TimeField
}

// GetValueField returns the current value field name
func (d DemandDataset) GetValueField() string {
	if d.ValueField == "" {
		return "current"
	}
	return d.ValueField
}

// GetURL returns the geocoder base URL
func (g GeocoderConfig) GetURL() string {
	if g.URL == "" {
		return defaultGeocoderURL
	}
	return g.URL
}

// GetUserAgent returns the User-Agent sent to the geocoder
func (g GeocoderConfig) GetUserAgent() string {
	if g.UserAgent == "" {
		return defaultUserAgent
	}
	return g.UserAgent
}

// GetTopicPrefix returns the MQTT topic prefix
func (m MQTTConfig) GetTopicPrefix() string {
	if m.TopicPrefix == "" {
		return "gridheadroom"
	}
	return m.TopicPrefix
}
