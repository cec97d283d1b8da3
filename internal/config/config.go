// Package config loads the dht-node configuration from YAML with
// environment overrides.
//
// Precedence, lowest first: built-in defaults, the YAML file, then DHTNODE_*
// environment variables. The result is validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/dht-node/internal/dht11"
	"github.com/sweeney/dht-node/internal/gpio"
)

// Sensor backends.
const (
	BackendGPIOCDev = "gpiocdev"
	BackendPeriph   = "periph"
)

// Config is the full daemon configuration.
type Config struct {
	Sensor    SensorConfig  `yaml:"sensor"`
	LED       LEDConfig     `yaml:"led"`
	MQTT      MQTTConfig    `yaml:"mqtt"`
	HTTP      HTTPConfig    `yaml:"http"`
	Display   DisplayConfig `yaml:"display"`
	Log       LogConfig     `yaml:"log"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// SensorConfig selects the data line and read cadence.
type SensorConfig struct {
	Backend   string        `yaml:"backend"`
	Chip      string        `yaml:"chip"`
	Pin       int           `yaml:"pin"`
	Interval  time.Duration `yaml:"interval"`
	Attempts  int           `yaml:"attempts"`
	LostAfter int           `yaml:"lost_after"`
}

// PinName returns the BCM name of the data pin (e.g. "GPIO4").
func (s SensorConfig) PinName() string {
	return fmt.Sprintf("GPIO%d", s.Pin)
}

// LEDConfig selects the status LED pin.
type LEDConfig struct {
	Enabled bool `yaml:"enabled"`
	Pin     int  `yaml:"pin"`
}

// PinName returns the BCM name of the LED pin.
func (l LEDConfig) PinName() string {
	return fmt.Sprintf("GPIO%d", l.Pin)
}

// MQTTConfig holds broker settings. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DisplayConfig selects the optional SSD1306 panel.
type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Backend:   BackendGPIOCDev,
			Chip:      gpio.DefaultChip,
			Pin:       gpio.DefaultPinDHT,
			Interval:  5 * time.Second,
			Attempts:  5,
			LostAfter: 5,
		},
		LED: LEDConfig{
			Enabled: true,
			Pin:     gpio.DefaultPinLED,
		},
		MQTT: MQTTConfig{
			Broker:     "tcp://192.168.1.200:1883",
			ClientID:   "dht-node",
			BufferSize: 256,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Display: DisplayConfig{
			Width:  128,
			Height: 64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Heartbeat: 15 * time.Minute,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies DHTNODE_* variables on top of cfg.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	var errs []string
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}

	str("DHTNODE_SENSOR_BACKEND", &cfg.Sensor.Backend)
	str("DHTNODE_SENSOR_CHIP", &cfg.Sensor.Chip)
	num("DHTNODE_SENSOR_PIN", &cfg.Sensor.Pin)
	dur("DHTNODE_SENSOR_INTERVAL", &cfg.Sensor.Interval)
	num("DHTNODE_LED_PIN", &cfg.LED.Pin)
	str("DHTNODE_MQTT_BROKER", &cfg.MQTT.Broker)
	str("DHTNODE_MQTT_USERNAME", &cfg.MQTT.Username)
	str("DHTNODE_MQTT_PASSWORD", &cfg.MQTT.Password)
	str("DHTNODE_HTTP_ADDR", &cfg.HTTP.Addr)
	str("DHTNODE_LOG_LEVEL", &cfg.Log.Level)
	str("DHTNODE_LOG_FORMAT", &cfg.Log.Format)
	dur("DHTNODE_HEARTBEAT", &cfg.Heartbeat)

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Sensor.Backend {
	case BackendGPIOCDev, BackendPeriph:
	default:
		errs = append(errs, fmt.Sprintf("sensor.backend must be %q or %q", BackendGPIOCDev, BackendPeriph))
	}
	if c.Sensor.Backend == BackendGPIOCDev && c.Sensor.Chip == "" {
		errs = append(errs, "sensor.chip is required for the gpiocdev backend")
	}
	if c.Sensor.Pin < 0 {
		errs = append(errs, "sensor.pin must not be negative")
	}
	if c.Sensor.Interval < dht11.MinReadInterval {
		errs = append(errs, fmt.Sprintf("sensor.interval must be at least %v", dht11.MinReadInterval))
	}
	if c.Sensor.Attempts < 1 {
		errs = append(errs, "sensor.attempts must be at least 1")
	}
	if c.Sensor.LostAfter < 1 {
		errs = append(errs, "sensor.lost_after must be at least 1")
	}

	if c.LED.Enabled {
		if c.LED.Pin < 0 {
			errs = append(errs, "led.pin must not be negative")
		}
		if c.LED.Pin == c.Sensor.Pin {
			errs = append(errs, "led.pin must differ from sensor.pin")
		}
	}

	if c.MQTT.Broker != "" && c.MQTT.BufferSize < 1 {
		errs = append(errs, "mqtt.buffer_size must be at least 1")
	}

	if c.Display.Enabled && (c.Display.Width < 1 || c.Display.Height < 1 || c.Display.Height%8 != 0) {
		errs = append(errs, "display.width must be positive and display.height a positive multiple of 8")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, "log.level must be debug, info, warn or error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be text or json")
	}

	if c.Heartbeat < 0 {
		errs = append(errs, "heartbeat must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
