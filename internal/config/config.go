// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"freqmeter/internal/analysis"
	"freqmeter/internal/audio"
	"freqmeter/internal/channel"
	"freqmeter/internal/grid"
	"freqmeter/internal/meter"
)

// Defaults and limits of the meter configuration.
const (
	DefaultWidth          = meter.DefaultWidth
	DefaultHeight         = meter.DefaultHeight
	DefaultLatency        = meter.DefaultLatency
	DefaultFFTSize        = meter.DefaultFFTSize
	DefaultProcessingMode = meter.DefaultMode
	DefaultSmoothing      = meter.DefaultSmoothing

	DefaultDeviceID    = audio.MinDeviceID
	DefaultBlockFrames = audio.DefaultBlockFrames
	DefaultRecordPath  = "recording.wav"

	DefaultWebSocketAddress = ":8080"
	DefaultUDPTargetAddress = "127.0.0.1:9090"

	MinFFTSize  = analysis.MinFFTSize
	MaxFFTSize  = analysis.MaxFFTSize
	MinLatency  = time.Millisecond
	MaxDeviceID = 1 << 10
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Meter     MeterConfig     `yaml:"meter"`     // Rendering and analysis settings.
	Source    SourceConfig    `yaml:"source"`    // Where the audio comes from.
	Transport TransportConfig `yaml:"transport"` // Where rendered frames go.
}

// MeterConfig holds the visual and analysis settings of one meter session.
type MeterConfig struct {
	Width          int           `yaml:"width"`           // Drawing area width in pixels.
	Height         int           `yaml:"height"`          // Drawing area height in pixels.
	Latency        time.Duration `yaml:"latency"`         // Sampling interval.
	FFTSize        int           `yaml:"fft_size"`        // Analysis resolution, a power of two.
	ProcessingMode channel.Mode  `yaml:"processing_mode"` // Direct, Stereo or MidSide.
	Smoothing      float64       `yaml:"smoothing"`       // Exponential averaging factor in [0, 1].
	Window         string        `yaml:"window"`          // FFT window name, Blackman when empty.
	FrequencyAxis  grid.Axis     `yaml:"frequency_axis"`  // Log-domain axis in Hz.
	DecibelAxis    grid.Axis     `yaml:"decibel_axis"`    // Linear axis in dB, also the analyser's range.
}

// SourceConfig selects the audio source: a file when File is set, otherwise
// a PortAudio input device.
type SourceConfig struct {
	File        string  `yaml:"file"`         // Path to a wav, mp3 or ogg file.
	Device      int     `yaml:"device"`       // PortAudio input device index (-1 for default).
	Channels    int     `yaml:"channels"`     // Channels to capture from the device.
	LowLatency  bool    `yaml:"low_latency"`  // Request low latency settings from PortAudio.
	BlockFrames int     `yaml:"block_frames"` // Frames per delivered block.
	Gate        float64 `yaml:"gate"`         // Device noise gate threshold in [0, 1], 0 disables.
	Loop        bool    `yaml:"loop"`         // Restart the file each time it ends.
	Record      bool    `yaml:"record"`       // Record the device input to RecordPath.
	RecordPath  string  `yaml:"record_path"`  // WAV file written when Record is set.
}

// TransportConfig holds settings related to publishing rendered frames.
type TransportConfig struct {
	WebSocketEnabled bool   `yaml:"websocket_enabled"`  // Serve /ws and /frame.svg.
	WebSocketAddress string `yaml:"websocket_address"`  // Listen address for the HTTP server.
	UDPEnabled       bool   `yaml:"udp_enabled"`        // Send frames as UDP packets.
	UDPTargetAddress string `yaml:"udp_target_address"` // Target address and port for UDP packets.
	LogFrames        bool   `yaml:"log_frames"`         // Log every frame at debug level.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Meter: MeterConfig{
			Width:          DefaultWidth,
			Height:         DefaultHeight,
			Latency:        DefaultLatency,
			FFTSize:        DefaultFFTSize,
			ProcessingMode: DefaultProcessingMode,
			Smoothing:      DefaultSmoothing,
			FrequencyAxis:  meter.DefaultFrequencyAxis(),
			DecibelAxis:    meter.DefaultDecibelAxis(),
		},
		Source: SourceConfig{
			Device:      DefaultDeviceID,
			Channels:    2,
			BlockFrames: DefaultBlockFrames,
			RecordPath:  DefaultRecordPath,
		},
		Transport: TransportConfig{
			WebSocketEnabled: true,
			WebSocketAddress: DefaultWebSocketAddress,
			UDPTargetAddress: DefaultUDPTargetAddress,
		},
	}
}

// Session binds the meter settings to src.
func (m MeterConfig) Session(src audio.Source) (meter.SessionConfig, error) {
	window, err := analysis.ParseWindowFunc(m.Window)
	if err != nil {
		return meter.SessionConfig{}, err
	}
	return meter.SessionConfig{
		Source:        src,
		Width:         m.Width,
		Height:        m.Height,
		Latency:       m.Latency,
		FFTSize:       m.FFTSize,
		Mode:          m.ProcessingMode,
		Smoothing:     m.Smoothing,
		Window:        window,
		FrequencyAxis: m.FrequencyAxis,
		DecibelAxis:   m.DecibelAxis,
	}, nil
}

// Overlay lays out the static grid for the meter settings.
func (m MeterConfig) Overlay() grid.Overlay {
	return grid.Layout(m.FrequencyAxis, m.DecibelAxis, m.Width, m.Height)
}
