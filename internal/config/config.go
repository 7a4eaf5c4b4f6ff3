package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// CronParser parses the poll and scene trigger expressions: five fields with
// optional seconds, or descriptors such as "@every 1m" and "@daily"
var CronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config represents the application configuration
type Config struct {
	Database        DatabaseConfig     `yaml:"database"`
	Log             LogConfig          `yaml:"log"`
	Housekeeping    HousekeepingConfig `yaml:"housekeeping"`
	Devices         DevicesConfig      `yaml:"devices"`
	Geo             GeoConfig          `yaml:"geo"`
	Scenes          ScenesConfig       `yaml:"scenes"`
	Ledger          LedgerConfig       `yaml:"ledger"`
	HTTP            HTTPConfig         `yaml:"http"`
	Globals         []GlobalConfig     `yaml:"globals"`
	ShutdownTimeout Duration           `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the configured level, defaulting to info
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// HousekeepingConfig controls the deferred task queue
type HousekeepingConfig struct {
	Slot            string   `yaml:"slot"`             // Global variable holding the schedule (default: HOUSEKEEPING)
	Poll            string   `yaml:"poll"`             // Cron expression for the due-task poll (default: @every 1m)
	DispatchTimeout Duration `yaml:"dispatch_timeout"` // Per-task dispatch timeout (default: 10s)
}

// DevicesConfig selects and configures the device dispatcher
type DevicesConfig struct {
	Driver       string     `yaml:"driver"` // log, hue or mqtt
	RateLimitRPS float64    `yaml:"rate_limit_rps"`
	Hue          HueConfig  `yaml:"hue"`
	MQTT         MQTTConfig `yaml:"mqtt"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge  string   `yaml:"bridge"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// GeoConfig contains the location used for astronomical time windows
type GeoConfig struct {
	Name     string  `yaml:"name"`
	Timezone string  `yaml:"timezone"`
	Lat      float64 `yaml:"lat,omitempty"`
	Lon      float64 `yaml:"lon,omitempty"`
}

// IsEnabled returns true if coordinates are configured
func (c *GeoConfig) IsEnabled() bool {
	return c.Lat != 0 || c.Lon != 0
}

// ScenesConfig contains scene script settings
type ScenesConfig struct {
	Dir         string        `yaml:"dir"`
	Watch       bool          `yaml:"watch"` // Reload scripts when files change
	Definitions []SceneConfig `yaml:"definitions"`
}

// SceneConfig declares a single scene
type SceneConfig struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	Cron string `yaml:"cron,omitempty"` // Optional trigger, robfig/cron syntax
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled           *bool    `yaml:"enabled"`
	RetentionPeriod   Duration `yaml:"retention_period"`
	RetentionInterval Duration `yaml:"retention_interval"`
}

// IsEnabled returns whether the ledger is enabled (default: true)
func (c *LedgerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HTTPConfig contains the HTTP server settings (health, metrics, triggers)
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr returns host:port
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GlobalConfig declares a global variable on startup
type GlobalConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./housekeepd.sqlite"
	}

	// Housekeeping defaults
	if cfg.Housekeeping.Slot == "" {
		cfg.Housekeeping.Slot = "HOUSEKEEPING"
	}
	if cfg.Housekeeping.Poll == "" {
		cfg.Housekeeping.Poll = "@every 1m"
	}
	if cfg.Housekeeping.DispatchTimeout == 0 {
		cfg.Housekeeping.DispatchTimeout = Duration(10 * time.Second)
	}

	// Device defaults
	if cfg.Devices.Driver == "" {
		cfg.Devices.Driver = "log"
	}
	if cfg.Devices.Hue.Timeout == 0 {
		cfg.Devices.Hue.Timeout = Duration(30 * time.Second)
	}
	if cfg.Devices.MQTT.ClientID == "" {
		cfg.Devices.MQTT.ClientID = "housekeepd"
	}
	if cfg.Devices.MQTT.TopicPrefix == "" {
		cfg.Devices.MQTT.TopicPrefix = "devices"
	}

	// Geo defaults
	if cfg.Geo.Timezone == "" {
		cfg.Geo.Timezone = "UTC"
	}

	if cfg.Scenes.Dir == "" {
		cfg.Scenes.Dir = "./scenes"
	}

	// Ledger defaults
	if cfg.Ledger.RetentionPeriod == 0 {
		cfg.Ledger.RetentionPeriod = Duration(30 * 24 * time.Hour)
	}
	if cfg.Ledger.RetentionInterval == 0 {
		cfg.Ledger.RetentionInterval = Duration(24 * time.Hour)
	}

	// HTTP defaults
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 9090
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func (cfg *Config) validate() error {
	if _, err := CronParser.Parse(cfg.Housekeeping.Poll); err != nil {
		return fmt.Errorf("invalid housekeeping.poll %q: %w", cfg.Housekeeping.Poll, err)
	}
	if _, err := time.LoadLocation(cfg.Geo.Timezone); err != nil {
		return fmt.Errorf("invalid geo.timezone: %w", err)
	}

	switch cfg.Devices.Driver {
	case "log":
	case "hue":
		if cfg.Devices.Hue.Bridge == "" {
			return fmt.Errorf("devices.hue.bridge is required for the hue driver")
		}
	case "mqtt":
		if cfg.Devices.MQTT.Broker == "" {
			return fmt.Errorf("devices.mqtt.broker is required for the mqtt driver")
		}
		if cfg.Devices.MQTT.QoS < 0 || cfg.Devices.MQTT.QoS > 2 {
			return fmt.Errorf("devices.mqtt.qos must be 0, 1 or 2")
		}
	default:
		return fmt.Errorf("unknown device driver: %q", cfg.Devices.Driver)
	}

	if cfg.Devices.RateLimitRPS < 0 {
		return fmt.Errorf("devices.rate_limit_rps must not be negative")
	}

	if cfg.Ledger.RetentionPeriod.Duration() <= 0 {
		return fmt.Errorf("ledger.retention_period must be positive")
	}
	if cfg.Ledger.RetentionInterval.Duration() <= 0 {
		return fmt.Errorf("ledger.retention_interval must be positive")
	}
	if cfg.Housekeeping.DispatchTimeout.Duration() < 0 {
		return fmt.Errorf("housekeeping.dispatch_timeout must not be negative")
	}
	if cfg.ShutdownTimeout.Duration() < 0 {
		return fmt.Errorf("shutdown_timeout must not be negative")
	}

	seen := make(map[string]bool, len(cfg.Scenes.Definitions))
	for _, sc := range cfg.Scenes.Definitions {
		if sc.Name == "" || sc.File == "" {
			return fmt.Errorf("scene definitions need both name and file")
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scene name: %s", sc.Name)
		}
		if sc.Cron != "" {
			if _, err := CronParser.Parse(sc.Cron); err != nil {
				return fmt.Errorf("invalid cron for scene %s: %w", sc.Name, err)
			}
		}
		seen[sc.Name] = true
	}

	for _, g := range cfg.Globals {
		if g.Name == "" {
			return fmt.Errorf("global declarations need a name")
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
