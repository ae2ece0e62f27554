// SPDX-License-Identifier: MIT
package meter

import (
	"fmt"
	"time"

	"freqmeter/internal/analysis"
	"freqmeter/internal/audio"
	"freqmeter/internal/channel"
	"freqmeter/internal/grid"
)

// Defaults of a session, matching the browser component the meter is
// modelled on.
const (
	DefaultWidth     = 800
	DefaultHeight    = 300
	DefaultLatency   = 20 * time.Millisecond
	DefaultFFTSize   = 2048
	DefaultMode      = channel.Stereo
	DefaultSmoothing = 0.95

	// MaxByteValue is the full-scale value of a byte frame.
	MaxByteValue = 255
)

// DefaultFrequencyAxis returns the 20 Hz to 23 kHz log axis.
func DefaultFrequencyAxis() grid.Axis {
	return grid.Axis{
		Min:    20,
		Max:    23000,
		Grid:   []float64{50, 100, 200, 500, 1000, 2000, 5000, 10000},
		Labels: []float64{40, 100, 200, 400, 600, 1000, 2000, 4000, 6000, 10000},
	}
}

// DefaultDecibelAxis returns the -100 dB to 0 dB axis.
func DefaultDecibelAxis() grid.Axis {
	return grid.Axis{
		Min:    -100,
		Max:    0,
		Grid:   []float64{-80, -60, -40, -20},
		Labels: []float64{},
	}
}

// SessionConfig is everything needed to arm one session.
type SessionConfig struct {
	Source        audio.Source
	Width         int
	Height        int
	Latency       time.Duration
	FFTSize       int
	Mode          channel.Mode
	Smoothing     float64
	Window        analysis.WindowFunc
	FrequencyAxis grid.Axis
	// DecibelAxis also sets the analysers' decibel range.
	DecibelAxis grid.Axis
}

// DefaultSessionConfig returns the defaults bound to src.
func DefaultSessionConfig(src audio.Source) SessionConfig {
	return SessionConfig{
		Source:        src,
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		Latency:       DefaultLatency,
		FFTSize:       DefaultFFTSize,
		Mode:          DefaultMode,
		Smoothing:     DefaultSmoothing,
		Window:        analysis.Blackman,
		FrequencyAxis: DefaultFrequencyAxis(),
		DecibelAxis:   DefaultDecibelAxis(),
	}
}

// analyserOptions derives the tap settings.
func (c SessionConfig) analyserOptions() analysis.Options {
	var sampleRate float64
	if c.Source != nil {
		sampleRate = float64(c.Source.SampleRate())
	}
	return analysis.Options{
		FFTSize:     c.FFTSize,
		SampleRate:  sampleRate,
		MinDecibels: c.DecibelAxis.Min,
		MaxDecibels: c.DecibelAxis.Max,
		Smoothing:   c.Smoothing,
		Window:      c.Window,
	}
}

// Validate reports the first problem that would stop the session from
// arming. It has no side effects.
func (c SessionConfig) Validate() error {
	if c.Source == nil {
		return ErrMissingAudioSource
	}
	if _, err := c.Mode.Taps(); err != nil {
		return err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidSession, c.Width, c.Height)
	}
	if c.Latency <= 0 {
		return fmt.Errorf("%w: latency %s", ErrInvalidSession, c.Latency)
	}
	if c.FrequencyAxis.Min <= 0 || c.FrequencyAxis.Max <= c.FrequencyAxis.Min {
		return fmt.Errorf("%w: frequency axis [%g, %g]", ErrInvalidSession, c.FrequencyAxis.Min, c.FrequencyAxis.Max)
	}
	return c.analyserOptions().Validate()
}
