// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	"freqmeter/internal/grid"
	applog "freqmeter/internal/log"
	"freqmeter/internal/svgpath"
)

// LoggingSink implements the Sink interface by logging to the console.
// Frames are logged at debug level only.
type LoggingSink struct {
	frames atomic.Uint64
	closed atomic.Bool
}

// NewLoggingSink creates a new LoggingSink instance.
func NewLoggingSink() *LoggingSink {
	applog.Infof("LoggingSink: Logging frames at debug level")
	return &LoggingSink{}
}

// Overlay logs the overlay geometry.
func (ls *LoggingSink) Overlay(o grid.Overlay) error {
	if ls.closed.Load() {
		return ErrSinkClosed
	}
	applog.Infof("LoggingSink: Overlay %dx%d (%d grid lines, %d frequency labels, %d dB labels)",
		o.Width, o.Height, len(o.FrequencyGrid), len(o.FrequencyLabels), len(o.DecibelLabels))
	return nil
}

// Render logs the size of each channel path.
func (ls *LoggingSink) Render(paths svgpath.Result) error {
	if ls.closed.Load() {
		return ErrSinkClosed
	}
	n := ls.frames.Add(1)
	if applog.Enabled(applog.LevelDebug) {
		sizes := make([]int, len(paths))
		for i, p := range paths {
			sizes[i] = len(p)
		}
		applog.Debugf("LoggingSink: Frame %d, %d channels, path bytes %v", n, len(paths), sizes)
	}
	return nil
}

// Frames returns how many frames were rendered.
func (ls *LoggingSink) Frames() uint64 {
	return ls.frames.Load()
}

// Close stops accepting frames.
func (ls *LoggingSink) Close() error {
	if ls.closed.Swap(true) {
		return nil
	}
	applog.Infof("LoggingSink: Closed after %d frames", ls.frames.Load())
	return nil
}

// Ensure LoggingSink satisfies the interface at compile time.
var _ Sink = (*LoggingSink)(nil)
