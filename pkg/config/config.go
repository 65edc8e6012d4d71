package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from defaults, then
// an optional YAML file, then environment variables, each layer overriding
// the previous one.
type Config struct {
	LogLevel string       `yaml:"log_level" default:"info"`
	BLE      BLEConfig    `yaml:"ble"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	Bridge   BridgeConfig `yaml:"bridge"`
}

// BLEConfig configures the speaker connection.
type BLEConfig struct {
	// Address is the speaker's BLE address. Required for serving.
	Address string `yaml:"address"`

	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds" default:"60"`
}

// ConnectTimeout returns the configured connect timeout.
func (c BLEConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Host     string `yaml:"host" default:"127.0.0.1"`
	Port     int    `yaml:"port" default:"1883"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// ClientID is generated when empty.
	ClientID string `yaml:"client_id"`

	QoS int `yaml:"qos" default:"0"`
}

// BridgeConfig configures topic layout and command behavior.
type BridgeConfig struct {
	TopicPrefix  string `yaml:"topic_prefix" default:"stanmore2"`
	Retain       bool   `yaml:"retain"`
	AllowPairing bool   `yaml:"allow_pairing"`

	SettleDelayMs int `yaml:"settle_delay_ms" default:"500"`
}

// SettleDelay returns the wait between a device write and its read-back.
func (c BridgeConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// Load builds the configuration. path may be empty, in which case only
// defaults and environment variables apply; a named file that does not
// exist is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables the original container
// deployment used.
func (c *Config) applyEnv() error {
	if v := os.Getenv("BLE_ADDRESS"); v != "" {
		c.BLE.Address = v
	}
	if v := os.Getenv("MQTT_HOSTNAME"); v != "" {
		c.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_PORT %q: %w", v, err)
		}
		c.MQTT.Port = port
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("MQTT_TOPIC_PREFIX"); v != "" {
		c.Bridge.TopicPrefix = v
	}
	if v := os.Getenv("MQTT_RETAIN"); v != "" {
		retain, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_RETAIN %q: %w", v, err)
		}
		c.Bridge.Retain = retain
	}
	if v := os.Getenv("ALLOW_PAIRING"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOW_PAIRING %q: %w", v, err)
		}
		c.Bridge.AllowPairing = allow
	}
	return nil
}

// Validate checks value ranges. The BLE address is checked by the serve
// path instead, since scanning does not need one.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("invalid mqtt port %d", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos %d (must be 0, 1, or 2)", c.MQTT.QoS)
	}
	if c.Bridge.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix cannot be empty")
	}
	if c.BLE.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid connect_timeout_seconds %d", c.BLE.ConnectTimeoutSeconds)
	}
	if c.Bridge.SettleDelayMs < 0 {
		return fmt.Errorf("invalid settle_delay_ms %d", c.Bridge.SettleDelayMs)
	}
	return nil
}

// NewLogger creates a logger configured from the log level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
