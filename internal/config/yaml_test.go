// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"freqmeter/internal/channel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
debug: true
meter:
  width: 400
  latency: 40ms
  fft_size: 4096
  processing_mode: MidSide
  smoothing: 0.5
  decibel_axis:
    min: -90
    max: -10
    grid: [-70, -50]
source:
  file: tone.wav
  loop: true
transport:
  websocket_enabled: false
  udp_enabled: true
  udp_target_address: 10.0.0.2:7000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 400, cfg.Meter.Width)
	assert.Equal(t, DefaultHeight, cfg.Meter.Height, "unset keys keep their defaults")
	assert.Equal(t, 40*time.Millisecond, cfg.Meter.Latency)
	assert.Equal(t, 4096, cfg.Meter.FFTSize)
	assert.Equal(t, channel.MidSide, cfg.Meter.ProcessingMode)
	assert.Equal(t, 0.5, cfg.Meter.Smoothing)
	assert.Equal(t, []float64{-70, -50}, cfg.Meter.DecibelAxis.Grid)
	assert.Equal(t, -90.0, cfg.Meter.DecibelAxis.Min)
	assert.Equal(t, 20.0, cfg.Meter.FrequencyAxis.Min)
	assert.Equal(t, "tone.wav", cfg.Source.File)
	assert.True(t, cfg.Source.Loop)
	assert.False(t, cfg.Transport.WebSocketEnabled)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "10.0.0.2:7000", cfg.Transport.UDPTargetAddress)
}

func TestLoadConfig_BadMode(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "meter:\n  processing_mode: Surround\n")
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, channel.ErrUnsupportedMode)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "meter:\n  fft_size: 1000\n")
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "fft_size")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_LOG_LEVEL", "warn")
	t.Setenv("ENV_PROCESSING_MODE", "regular")
	t.Setenv("ENV_LATENCY", "50ms")
	t.Setenv("ENV_WS_ADDRESS", ":9999")
	t.Setenv("ENV_UDP_ENABLED", "1")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "192.168.1.5:9000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, channel.Direct, cfg.Meter.ProcessingMode)
	assert.Equal(t, 50*time.Millisecond, cfg.Meter.Latency)
	assert.Equal(t, ":9999", cfg.Transport.WebSocketAddress)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "192.168.1.5:9000", cfg.Transport.UDPTargetAddress)
}

func TestEnvOverrides_Invalid(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{"ENV_DEBUG", "maybe"},
		{"ENV_PROCESSING_MODE", "quad"},
		{"ENV_LATENCY", "soon"},
		{"ENV_UDP_ENABLED", "yes please"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig("")
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(c *Config)
		substr string
	}{
		{"zero width", func(c *Config) { c.Meter.Width = 0 }, "meter size"},
		{"latency", func(c *Config) { c.Meter.Latency = 0 }, "meter.latency"},
		{"fft too small", func(c *Config) { c.Meter.FFTSize = 16 }, "meter.fft_size"},
		{"fft not pow2", func(c *Config) { c.Meter.FFTSize = 3000 }, "meter.fft_size"},
		{"mode", func(c *Config) { c.Meter.ProcessingMode = channel.Mode(7) }, "unsupported"},
		{"smoothing", func(c *Config) { c.Meter.Smoothing = 1.5 }, "meter.smoothing"},
		{"window", func(c *Config) { c.Meter.Window = "triangle" }, "meter.window"},
		{"freq min", func(c *Config) { c.Meter.FrequencyAxis.Min = 0 }, "frequency_axis"},
		{"freq grid", func(c *Config) { c.Meter.FrequencyAxis.Grid = []float64{-5} }, "frequency_axis values"},
		{"db range", func(c *Config) { c.Meter.DecibelAxis.Min = 0 }, "decibel_axis"},
		{"device", func(c *Config) { c.Source.Device = -2 }, "source.device"},
		{"block frames", func(c *Config) { c.Source.BlockFrames = 0 }, "block_frames"},
		{"gate", func(c *Config) { c.Source.Gate = 2 }, "source.gate"},
		{"record path", func(c *Config) { c.Source.Record = true; c.Source.RecordPath = "" }, "record_path"},
		{"ws address", func(c *Config) { c.Transport.WebSocketAddress = "" }, "websocket_address"},
		{"udp address", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "nohost"
		}, "udp_target_address"},
		{"udp frame too large", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Meter.FFTSize = 4096
		}, "UDP frames"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestValidateUDPFrameSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		fftSize int
		mode    channel.Mode
		ok      bool
	}{
		{2048, channel.Stereo, true},
		{2048, channel.MidSide, true},
		{4096, channel.Direct, false},
		{4096, channel.Stereo, false},
		{8192, channel.Stereo, false},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Transport.UDPEnabled = true
		cfg.Meter.FFTSize = tt.fftSize
		cfg.Meter.ProcessingMode = tt.mode
		err := cfg.Validate()
		if tt.ok {
			assert.NoError(t, err, "fft %d %s", tt.fftSize, tt.mode)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidConfig, "fft %d %s", tt.fftSize, tt.mode)

		// Without UDP the same meter settings are fine.
		cfg.Transport.UDPEnabled = false
		assert.NoError(t, cfg.Validate(), "fft %d %s without UDP", tt.fftSize, tt.mode)
	}
}

func TestMeterOverlay(t *testing.T) {
	t.Parallel()
	o := Default().Meter.Overlay()
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Len(t, o.FrequencyGrid, 8)
	assert.Len(t, o.FrequencyLabels, 10)
	assert.Len(t, o.DecibelLabels, 4)
}

func TestMeterSession(t *testing.T) {
	t.Parallel()
	m := Default().Meter
	m.Window = "hann"

	cfg, err := m.Session(nil)
	require.NoError(t, err)
	assert.Equal(t, m.Width, cfg.Width)
	assert.Equal(t, m.FFTSize, cfg.FFTSize)
	assert.Equal(t, channel.Stereo, cfg.Mode)
	assert.Equal(t, "Hann", cfg.Window.String())
	assert.Equal(t, m.DecibelAxis, cfg.DecibelAxis)

	m.Window = "boxcar"
	_, err = m.Session(nil)
	assert.Error(t, err)
}
