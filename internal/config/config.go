// Package config holds the udtdump configuration types.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config stores all parameters for the dump tool. Values come from an
// optional YAML file and are then overridden by CLI flags.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Monitor MonitorConfig `yaml:"monitor"`
	Log     LogConfig     `yaml:"log"`
}

// ListenConfig configures the UDP listener.
type ListenConfig struct {
	Addr           string        `yaml:"addr"`             // UDP address to bind, e.g. ":9000"
	Backlog        int           `yaml:"backlog"`          // pending peers before new handshakes are dropped
	ReadBufferSize int           `yaml:"read_buffer_size"` // socket receive buffer, bytes; 0 keeps the OS default
	IdleTimeout    time.Duration `yaml:"idle_timeout"`     // close a silent peer after this long; 0 never
}

// MonitorConfig configures the WebSocket/metrics server.
type MonitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	PIN     string `yaml:"pin"` // empty means a random PIN is generated
}

// LogConfig configures logging and the periodic stats line.
type LogConfig struct {
	Level         string        `yaml:"level"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen: ListenConfig{
			Addr:        ":9000",
			Backlog:     128,
			IdleTimeout: 2 * time.Minute,
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Addr:    "127.0.0.1:0",
		},
		Log: LogConfig{
			Level:         "info",
			StatsInterval: 10 * time.Second,
		},
	}
}

// Load reads path on top of Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return fmt.Errorf("listen config: %w", err)
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor config: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func (l *ListenConfig) Validate() error {
	if strings.TrimSpace(l.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	if _, err := net.ResolveUDPAddr("udp", l.Addr); err != nil {
		return fmt.Errorf("invalid addr %q: %w", l.Addr, err)
	}
	if l.Backlog < 0 {
		return fmt.Errorf("backlog must not be negative")
	}
	if l.ReadBufferSize < 0 {
		return fmt.Errorf("read_buffer_size must not be negative")
	}
	if l.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout must not be negative")
	}
	return nil
}

func (m *MonitorConfig) Validate() error {
	if !m.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return fmt.Errorf("invalid addr %q: %w", m.Addr, err)
	}
	return nil
}

func (l *LogConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "off", "disabled", "none":
	default:
		return fmt.Errorf("unknown level %q", l.Level)
	}
	if l.StatsInterval < 0 {
		return fmt.Errorf("stats_interval must not be negative")
	}
	return nil
}
