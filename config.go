package mq

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk description of a client connection, suitable for
// loading with LoadConfig and turning into dial Options with Config.Options.
// It exists alongside the functional-options API for deployments that want
// connection parameters in a file rather than compiled into the binary.
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Auth       AuthConfig       `yaml:"auth"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	Will       WillConfig       `yaml:"will"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ConnectionConfig contains the server address and session parameters.
type ConnectionConfig struct {
	Server         string        `yaml:"server"`          // e.g. "tcp://broker.example.com:1883"
	ClientID       string        `yaml:"client_id"`        // empty generates a random one
	KeepAlive      time.Duration `yaml:"keep_alive"`
	CleanSession   bool          `yaml:"clean_session"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	MaxInFlight    int           `yaml:"max_inflight"`
}

// AuthConfig contains CONNECT-level credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains automatic-reconnect backoff settings.
type ReconnectConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

// WillConfig describes an optional Last Will and Testament message.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Message string `yaml:"message"`
	QoS     uint8  `yaml:"qos"`
	Retain  bool   `yaml:"retain"`
}

// LoggingConfig names a log level. Validate checks it, but Options does not
// turn it into a logger option; the client's logger is unaffected by it.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LoadConfig reads and parses a YAML client configuration file, filling in
// defaults for anything left unset and validating the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Connection.KeepAlive == 0 {
		c.Connection.KeepAlive = 30 * time.Second
	}
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = 10 * time.Second
	}
	if c.Reconnect.MinDelay == 0 {
		c.Reconnect.MinDelay = time.Second
	}
	if c.Reconnect.MaxDelay == 0 {
		c.Reconnect.MaxDelay = 2 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Connection.Server == "" {
		return fmt.Errorf("connection.server is required")
	}
	if c.Connection.MaxInFlight < 0 {
		return fmt.Errorf("connection.max_inflight must not be negative")
	}
	if c.Will.Topic != "" && c.Will.QoS > 2 {
		return fmt.Errorf("invalid will.qos: %d (must be 0, 1, or 2)", c.Will.QoS)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	return nil
}

// Options translates the configuration into dial Options, to be passed
// straight to Dial or DialContext alongside any programmatic overrides.
func (c *Config) Options() []Option {
	opts := []Option{
		WithKeepAlive(c.Connection.KeepAlive),
		WithCleanSession(c.Connection.CleanSession),
		WithConnectTimeout(c.Connection.ConnectTimeout),
		WithAutoReconnect(c.Reconnect.Enabled),
		WithReconnectDelay(c.Reconnect.MinDelay, c.Reconnect.MaxDelay),
	}
	if c.Connection.ClientID != "" {
		opts = append(opts, WithClientID(c.Connection.ClientID))
	}
	if c.Connection.MaxInFlight > 0 {
		opts = append(opts, WithMaxInFlight(c.Connection.MaxInFlight))
	}
	if c.Auth.Username != "" {
		opts = append(opts, WithCredentials(c.Auth.Username, c.Auth.Password))
	}
	if c.Will.Topic != "" {
		opts = append(opts, WithWill(c.Will.Topic, []byte(c.Will.Message), c.Will.QoS, c.Will.Retain))
	}
	return opts
}

// Server returns the address Options' caller should Dial.
func (c *Config) Server() string {
	return c.Connection.Server
}
