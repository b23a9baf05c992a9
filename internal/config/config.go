// Package config loads and validates the mblbot configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full mblbot configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Remote  RemoteConfig  `yaml:"remote"`
	Vision  VisionConfig  `yaml:"vision"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds the execution timing knobs.
type EngineConfig struct {
	DefaultExpectTimeoutSeconds int   `yaml:"default_expect_timeout_seconds"`
	ExpectRetryIntervalsMs      []int `yaml:"expect_retry_intervals_ms"`
	PostActionDelayMs           int   `yaml:"post_action_delay_ms"`
	PostClickDelayMs            int   `yaml:"post_click_delay_ms"`
	TypingDelayMs               int   `yaml:"typing_delay_ms"`
}

// RemoteConfig describes the remote desktop agent and its resolution.
type RemoteConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// VisionConfig describes the vision model endpoint.
type VisionConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	MaxRetries int    `yaml:"max_retries"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

// ServerConfig describes the TCP control server.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	TasksDir   string `yaml:"tasks_dir"`
}

// LoggingConfig describes where task logs and screenshots land.
type LoggingConfig struct {
	LogDir        string `yaml:"log_dir"`
	ScreenshotDir string `yaml:"screenshot_dir"`
}

// Default returns a configuration with every field at its default.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			DefaultExpectTimeoutSeconds: 30,
			ExpectRetryIntervalsMs:      []int{1000, 2000, 3000},
			PostActionDelayMs:           500,
			PostClickDelayMs:            300,
			TypingDelayMs:               30,
		},
		Remote: RemoteConfig{
			Host:   "127.0.0.1",
			Port:   8474,
			Width:  1920,
			Height: 1080,
		},
		Vision: VisionConfig{
			Endpoint:   "https://api.anthropic.com/v1/messages",
			APIKeyEnv:  "MBLBOT_API_KEY",
			MaxTokens:  1024,
			MaxRetries: 3,
			TimeoutSec: 60,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:9333",
			TasksDir:   "tasks",
		},
		Logging: LoggingConfig{
			LogDir:        "logs",
			ScreenshotDir: "screenshots",
		},
	}
}

// Load reads a YAML config file, validates it against the embedded schema,
// and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	if errs := validateBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config:\n  %s", strings.Join(errs, "\n  "))
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the default expect timeout, the retry intervals and the
// remote resolution. The schema states the same bounds; Validate also
// applies them to a Config that was not parsed from YAML.
func (c *Config) Validate() error {
	if c.Engine.DefaultExpectTimeoutSeconds < 1 {
		return fmt.Errorf("default_expect_timeout_seconds must be at least 1, got %d", c.Engine.DefaultExpectTimeoutSeconds)
	}
	for _, iv := range c.Engine.ExpectRetryIntervalsMs {
		if iv <= 0 {
			return fmt.Errorf("expect_retry_intervals_ms entries must be positive, got %d", iv)
		}
	}
	if c.Remote.Width < 1 || c.Remote.Height < 1 {
		return fmt.Errorf("remote resolution must be positive, got %dx%d", c.Remote.Width, c.Remote.Height)
	}
	return nil
}

// APIKey resolves the vision API key from the configured environment
// variable.
func (c *Config) APIKey() string {
	if c.Vision.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Vision.APIKeyEnv)
}

// RetryIntervals converts the configured retry intervals to durations.
func (c *Config) RetryIntervals() []time.Duration {
	out := make([]time.Duration, 0, len(c.Engine.ExpectRetryIntervalsMs))
	for _, ms := range c.Engine.ExpectRetryIntervalsMs {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}
