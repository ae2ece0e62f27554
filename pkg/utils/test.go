// SPDX-License-Identifier: MIT

// Package utils holds signal generators and a recording sink shared by the
// tests of the analysis, audio, meter and transport packages.
package utils

import (
	"cmp"
	"math"
	"sync"

	"freqmeter/internal/grid"
	"freqmeter/internal/svgpath"
)

// MockSink records what a meter session delivers instead of drawing it.
type MockSink struct {
	mu       sync.Mutex
	overlays []grid.Overlay
	frames   []svgpath.Result
	closed   bool
	notify   chan struct{}
	err      error // Returned by Overlay and Render when set.
}

// NewMockSink returns a sink whose Frames channel receives a signal per
// rendered frame (dropped when nobody is listening).
func NewMockSink() *MockSink {
	return &MockSink{notify: make(chan struct{}, 64)}
}

// SetError makes later Overlay and Render calls record and then fail
// with err. A nil err restores success.
func (m *MockSink) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Overlay stores the overlay.
func (m *MockSink) Overlay(o grid.Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = append(m.overlays, o)
	return m.err
}

// Render stores a copy of the frame.
func (m *MockSink) Render(paths svgpath.Result) error {
	m.mu.Lock()
	m.frames = append(m.frames, append(svgpath.Result(nil), paths...))
	err := m.err
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return err
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Rendered signals once per Render call.
func (m *MockSink) Rendered() <-chan struct{} {
	return m.notify
}

// Frames returns a copy of every frame rendered so far.
func (m *MockSink) Frames() []svgpath.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]svgpath.Result(nil), m.frames...)
}

// Overlays returns a copy of every overlay received so far.
func (m *MockSink) Overlays() []grid.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]grid.Overlay(nil), m.overlays...)
}

// Closed reports whether Close was called.
func (m *MockSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateComplexWave returns a 440Hz fundamental plus two harmonics,
// peaking at 0.9.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// GenerateSineWave returns a sine at frequency with the given amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * amplitude)
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in [startBin, endBin].
func FindPeakBin[T cmp.Ordered](magnitudes []T, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
