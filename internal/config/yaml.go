// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"freqmeter/internal/analysis"
	"freqmeter/internal/channel"
	applog "freqmeter/internal/log"
	"freqmeter/internal/transport/udp"
	"freqmeter/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// searchPaths are tried in order when LoadConfig gets no path.
var searchPaths = []string{"config.yaml", "freqmeter.yaml"}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults.  After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range searchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting the meter cannot run with.
func (c *Config) Validate() error {
	if err := c.Meter.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	return c.validateUDPFrame()
}

// validateUDPFrame rejects meter settings whose frames cannot fit in one
// UDP datagram.
func (c *Config) validateUDPFrame() error {
	if !c.Transport.UDPEnabled {
		return nil
	}
	taps, err := c.Meter.ProcessingMode.Taps()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	size := udp.MaxFrameSize(taps, c.Meter.FFTSize/2, c.Meter.Width, c.Meter.Height)
	if size > udp.MaxPacketSize {
		return invalid("meter.fft_size %d with a %dx%d %s drawing can produce %d byte UDP frames, over the %d byte limit",
			c.Meter.FFTSize, c.Meter.Width, c.Meter.Height, c.Meter.ProcessingMode, size, udp.MaxPacketSize)
	}
	return nil
}

// Validate checks the meter settings.
func (m *MeterConfig) Validate() error {
	if m.Width <= 0 || m.Height <= 0 {
		return invalid("meter size must be positive, got %dx%d", m.Width, m.Height)
	}
	if m.Latency < MinLatency {
		return invalid("meter.latency must be at least %s, got %s", MinLatency, m.Latency)
	}
	if !bitint.IsPowerOfTwo(m.FFTSize) || m.FFTSize < MinFFTSize || m.FFTSize > MaxFFTSize {
		return invalid("meter.fft_size must be a power of two in [%d, %d], got %d", MinFFTSize, MaxFFTSize, m.FFTSize)
	}
	if !m.ProcessingMode.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, channel.ErrUnsupportedMode)
	}
	if m.Smoothing < 0 || m.Smoothing > 1 {
		return invalid("meter.smoothing must be in [0, 1], got %g", m.Smoothing)
	}
	if _, err := analysis.ParseWindowFunc(m.Window); err != nil {
		return fmt.Errorf("%w: meter.window: %w", ErrInvalidConfig, err)
	}

	f := m.FrequencyAxis
	if f.Min <= 0 || f.Max <= f.Min {
		return invalid("meter.frequency_axis needs 0 < min < max, got [%g, %g]", f.Min, f.Max)
	}
	for _, v := range slices.Concat(f.Grid, f.Labels) {
		if v <= 0 {
			return invalid("meter.frequency_axis values must be positive, got %g", v)
		}
	}

	d := m.DecibelAxis
	if d.Min >= d.Max {
		return invalid("meter.decibel_axis needs min < max, got [%g, %g]", d.Min, d.Max)
	}
	return nil
}

// Validate checks the source settings.
func (s *SourceConfig) Validate() error {
	if s.Device < DefaultDeviceID || s.Device > MaxDeviceID {
		return invalid("source.device must be -1 or a device index, got %d", s.Device)
	}
	if s.Channels <= 0 {
		return invalid("source.channels must be positive, got %d", s.Channels)
	}
	if s.BlockFrames <= 0 {
		return invalid("source.block_frames must be positive, got %d", s.BlockFrames)
	}
	if s.Gate < 0 || s.Gate > 1 {
		return invalid("source.gate must be in [0, 1], got %g", s.Gate)
	}
	if s.Record && s.RecordPath == "" {
		return invalid("source.record_path must be set when recording")
	}
	return nil
}

// Validate checks the transport settings.
func (t *TransportConfig) Validate() error {
	if t.WebSocketEnabled && t.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when the websocket is enabled")
	}
	if t.UDPEnabled {
		if t.UDPTargetAddress == "" {
			return invalid("transport.udp_target_address must be set when UDP is enabled")
		}
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return invalid("transport.udp_target_address %q: %v", t.UDPTargetAddress, err)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// applyEnvOverrides applies the ENV_* variables on top of the file values.
// A variable that is set but cannot be parsed is an error.
func (c *Config) applyEnvOverrides() error {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return invalid("ENV_DEBUG=%q: %v", val, err)
		}
		c.Debug = b
		applog.Debugf("Config: Overriding debug from env: %v", b)
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// ENV_{...}
	// These are specific to the meter.

	// ENV_PROCESSING_MODE
	if val, ok := os.LookupEnv("ENV_PROCESSING_MODE"); ok {
		mode, err := channel.ParseMode(val)
		if err != nil {
			return fmt.Errorf("%w: ENV_PROCESSING_MODE: %w", ErrInvalidConfig, err)
		}
		c.Meter.ProcessingMode = mode
		applog.Debugf("Config: Overriding meter.processing_mode from env: %s", mode)
	}
	// ENV_LATENCY
	if val, ok := os.LookupEnv("ENV_LATENCY"); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return invalid("ENV_LATENCY=%q: %v", val, err)
		}
		c.Meter.Latency = d
		applog.Debugf("Config: Overriding meter.latency from env: %s", d)
	}

	// ENV_WS_{...}, ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Debugf("Config: Overriding transport.websocket_address from env: %s", val)
	}
	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return invalid("ENV_UDP_ENABLED=%q: %v", val, err)
		}
		c.Transport.UDPEnabled = b
		applog.Debugf("Config: Overriding transport.udp_enabled from env: %v", b)
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	return nil
}
