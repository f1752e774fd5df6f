package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validConfig(t *testing.T) Config {
	t.Helper()
	var cfg Config
	require.NoError(t, defaults.Set(&cfg))
	return cfg
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, cfg.Player.PollInterval())
	assert.Equal(t, 50*time.Millisecond, cfg.Player.UITick())
	assert.Equal(t, time.Duration(0), cfg.Player.RebuildDebounce())
	assert.Equal(t, 100*time.Millisecond, cfg.Player.EndTolerance())
	assert.Equal(t, 0.7, cfg.Player.Gain())
	assert.Equal(t, 4, cfg.Player.DecodeWorkers)
	assert.Equal(t, "speaker", cfg.Device.Type)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "stderr", cfg.Log.Output)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
player:
  poll_interval_ms: 100
  master_gain: 0
  rebuild_debounce_ms: 150
device:
  type: "null"
  settings:
    ignored: true
output:
  dir: /tmp/stems
messages:
  empty_mix: nothing enabled
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Player.PollInterval())
	assert.Equal(t, 0.0, cfg.Player.Gain(), "an explicit zero gain is kept")
	assert.Equal(t, 150*time.Millisecond, cfg.Player.RebuildDebounce())
	assert.Equal(t, "null", cfg.Device.Type)
	assert.Equal(t, true, cfg.Device.Settings["ignored"])
	assert.Equal(t, "/tmp/stems", cfg.Output.Dir)
	assert.Equal(t, "nothing enabled", cfg.GetMessage("empty_mix"))
	assert.Equal(t, "Audio output failed", cfg.GetMessage("device_error"))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STEMBOX_OUTPUT_DIR", "/env/out")
	t.Setenv("STEMBOX_DEVICE", "null")
	t.Setenv("STEMBOX_TEMP_DIR", "/env/tmp")

	cfg, err := Load(writeConfig(t, "output:\n  dir: /file/out\n"))
	require.NoError(t, err)

	assert.Equal(t, "/env/out", cfg.Output.Dir)
	assert.Equal(t, "null", cfg.Device.Type)
	assert.Equal(t, "/env/tmp", cfg.Player.TempDir)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "malformed yaml", content: "player: [", errMsg: "failed to parse"},
		{name: "gain out of range", content: "player:\n  master_gain: 1.5\n", errMsg: "MasterGain"},
		{name: "unknown device", content: "device:\n  type: alsa\n", errMsg: "Type"},
		{name: "file log without path", content: "log:\n  output: file\n", errMsg: "File"},
		{name: "tick slower than poll", content: "player:\n  poll_interval_ms: 20\n  ui_tick_ms: 100\n", errMsg: "ui_tick_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.Validate())

	cfg.Player.PollIntervalMs = 1
	assert.Error(t, cfg.Validate())
}

func TestConfig_GetMessage(t *testing.T) {
	cfg := validConfig(t)

	tests := []struct {
		code string
		want string
	}{
		{code: "load_error", want: cfg.Messages.LoadError},
		{code: "sample_rate_mismatch", want: cfg.Messages.SampleRateMismatch},
		{code: "empty_mix", want: cfg.Messages.EmptyMix},
		{code: "render_failure", want: cfg.Messages.RenderFailure},
		{code: "device_error", want: cfg.Messages.DeviceError},
		{code: "unknown", want: cfg.Messages.DefaultError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.NotEmpty(t, tt.want)
			assert.Equal(t, tt.want, cfg.GetMessage(tt.code))
		})
	}
}
