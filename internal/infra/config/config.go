// Package config provides configuration loading from YAML files.
package config

import (
	"io/fs"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Player   PlayerConfig   `yaml:"player"`
	Device   DeviceConfig   `yaml:"device"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
	Messages MessagesConfig `yaml:"messages"`
}

// PlayerConfig represents playback control configuration.
type PlayerConfig struct {
	PollIntervalMs    int      `yaml:"poll_interval_ms" default:"200" validate:"gte=10,lte=5000"`
	UITickMs          int      `yaml:"ui_tick_ms" default:"50" validate:"gte=5,lte=1000"`
	MasterGain        *float64 `yaml:"master_gain" default:"0.7" validate:"required,gte=0,lte=1"`
	RebuildDebounceMs int      `yaml:"rebuild_debounce_ms" validate:"gte=0,lte=5000"`
	EndToleranceMs    int      `yaml:"end_tolerance_ms" default:"100" validate:"gte=0,lte=5000"`
	DecodeWorkers     int      `yaml:"decode_workers" default:"4" validate:"gte=1,lte=64"`
	TempDir           string   `yaml:"temp_dir"`
}

// DeviceConfig selects the output device.
type DeviceConfig struct {
	Type     string         `yaml:"type" default:"speaker" validate:"oneof=speaker null"`
	Settings map[string]any `yaml:"settings"`
}

// OutputConfig holds the output directory preference.
type OutputConfig struct {
	Dir string `yaml:"dir" default:"output"`
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stderr" validate:"oneof=stdout stderr file"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	File   string `yaml:"file" validate:"required_if=Output file"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	DefaultError       string `yaml:"default_error" default:"Something went wrong"`
	LoadError          string `yaml:"load_error" default:"Could not read the audio file"`
	SampleRateMismatch string `yaml:"sample_rate_mismatch" default:"Stems have different sample rates"`
	EmptyMix           string `yaml:"empty_mix" default:"No stems available: enable at least one stem"`
	RenderFailure      string `yaml:"render_failure" default:"Could not write the mix"`
	DeviceError        string `yaml:"device_error" default:"Audio output failed"`
}

// Load loads configuration from a YAML file. A missing file yields the
// default configuration. Environment variables take precedence over file
// values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("STEMBOX_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv("STEMBOX_DEVICE"); v != "" {
		c.Device.Type = v
	}
	if v := os.Getenv("STEMBOX_TEMP_DIR"); v != "" {
		c.Player.TempDir = v
	}
	if v := os.Getenv("STEMBOX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "load_error":
		return c.Messages.LoadError
	case "sample_rate_mismatch":
		return c.Messages.SampleRateMismatch
	case "empty_mix":
		return c.Messages.EmptyMix
	case "render_failure":
		return c.Messages.RenderFailure
	case "device_error":
		return c.Messages.DeviceError
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if c.Player.UITickMs > c.Player.PollIntervalMs {
		return errors.Newf("ui_tick_ms (%d) must not exceed poll_interval_ms (%d)",
			c.Player.UITickMs, c.Player.PollIntervalMs)
	}
	return nil
}

// PollInterval returns the position polling interval.
func (p PlayerConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// UITick returns the event drain interval.
func (p PlayerConfig) UITick() time.Duration {
	return time.Duration(p.UITickMs) * time.Millisecond
}

// RebuildDebounce returns the rebuild debounce delay.
func (p PlayerConfig) RebuildDebounce() time.Duration {
	return time.Duration(p.RebuildDebounceMs) * time.Millisecond
}

// EndTolerance returns the distance from the end that counts as finished.
func (p PlayerConfig) EndTolerance() time.Duration {
	return time.Duration(p.EndToleranceMs) * time.Millisecond
}

// Gain returns the configured master gain.
func (p PlayerConfig) Gain() float64 {
	if p.MasterGain == nil {
		return 0.7
	}
	return *p.MasterGain
}
