package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything Helios Core reads at startup. Values come from
// the YAML file, with environment variables (HELIOS_SECTION_KEY) taking
// precedence and hardcoded defaults underneath both.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Inverter   InverterConfig   `yaml:"inverter"`
	Automation AutomationConfig `yaml:"automation"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig holds coordinates for solar yield estimation.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig is the sqlite section. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the broker section. With Enabled false the controller
// runs standalone and skips the broker entirely.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig shapes the backoff between reconnect attempts,
// delays in seconds. MaxAttempts 0 retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig is the HTTP server section. Timeouts are in seconds.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists what the browser is allowed to do. Empty origin
// list means allow everything, aimed at LAN-only deployments.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig shapes the event stream. Intervals in seconds,
// MaxMessageSize in bytes.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig is the telemetry sink section. FlushInterval is in
// seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	Output string `yaml:"output"` // stdout, stderr
}

// InverterConfig selects and shapes the power reading source.
type InverterConfig struct {
	// Source is "simulator" or "mqtt".
	Source string `yaml:"source"`

	// PollInterval is the seconds between readings handed to the
	// automation engine.
	PollInterval int `yaml:"poll_interval"`

	// PeakSolarW is the simulated array's output at solar noon.
	PeakSolarW float64 `yaml:"peak_solar_w"`

	// BaseLoadW is the simulated household's always-on draw.
	BaseLoadW float64 `yaml:"base_load_w"`
}

// AutomationConfig shapes the decision engine.
type AutomationConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinSurplusW is the hysteresis band: surplus magnitudes below it
	// trigger no device actions.
	MinSurplusW float64 `yaml:"min_surplus_w"`

	// EventRetentionDays bounds the automation event log; 0 keeps
	// everything.
	EventRetentionDays int `yaml:"event_retention_days"`

	// TariffEURPerKWh prices the savings estimates.
	TariffEURPerKWh float64 `yaml:"tariff_eur_per_kwh"`
}

// Load reads the YAML file at path over the defaults, applies
// HELIOS_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Site = SiteConfig{ID: "site-001", Name: "Helios", Timezone: "UTC"}
	cfg.Database = DatabaseConfig{Path: "./data/helios.db", WALMode: true, BusyTimeout: 5}

	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "helios-core"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}

	cfg.API = APIConfig{
		Host:     "0.0.0.0",
		Port:     8080,
		Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
	}
	cfg.WebSocket = WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	cfg.Inverter = InverterConfig{Source: "simulator", PollInterval: 5, PeakSolarW: 5000, BaseLoadW: 400}
	cfg.Automation = AutomationConfig{
		Enabled:            true,
		MinSurplusW:        100,
		EventRetentionDays: 90,
		TariffEURPerKWh:    0.12,
	}
	return cfg
}

// applyEnv overlays HELIOS_SECTION_KEY environment variables, mainly
// so secrets and deployment-specific values can stay out of the file.
func (c *Config) applyEnv() {
	overrides := []struct {
		name string
		set  func(v string)
	}{
		{"HELIOS_DATABASE_PATH", func(v string) { c.Database.Path = v }},
		{"HELIOS_MQTT_HOST", func(v string) { c.MQTT.Broker.Host = v }},
		{"HELIOS_MQTT_USERNAME", func(v string) { c.MQTT.Auth.Username = v }},
		{"HELIOS_MQTT_PASSWORD", func(v string) { c.MQTT.Auth.Password = v }},
		{"HELIOS_API_HOST", func(v string) { c.API.Host = v }},
		{"HELIOS_API_PORT", func(v string) {
			if port, err := strconv.Atoi(v); err == nil {
				c.API.Port = port
			}
		}},
		{"HELIOS_INFLUXDB_TOKEN", func(v string) { c.InfluxDB.Token = v }},
		{"HELIOS_INVERTER_SOURCE", func(v string) { c.Inverter.Source = v }},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			o.set(v)
		}
	}
}

// Validate collects every problem at once so a broken file reports all
// its mistakes in a single run.
func (c *Config) Validate() error {
	var problems []string
	complain := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Site.ID == "" {
		complain("site.id is required")
	}
	if c.Database.Path == "" {
		complain("database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		complain("mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		complain("api.port must be between 1 and 65535")
	}

	switch c.Inverter.Source {
	case "simulator", "mqtt":
	default:
		complain("inverter.source must be %q or %q", "simulator", "mqtt")
	}
	if c.Inverter.PollInterval < 1 {
		complain("inverter.poll_interval must be at least 1 second")
	}

	if c.Automation.MinSurplusW < 0 {
		complain("automation.min_surplus_w must not be negative")
	}
	if c.Automation.TariffEURPerKWh < 0 {
		complain("automation.tariff_eur_per_kwh must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetReadTimeout returns api.timeouts.read as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns api.timeouts.write as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns api.timeouts.idle as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetPollInterval returns inverter.poll_interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Inverter.PollInterval) * time.Second
}
