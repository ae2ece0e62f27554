// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"
	"sync"

	"freqmeter/internal/audio"
	applog "freqmeter/internal/log"
	"freqmeter/pkg/bitint"

	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyser resolution limits.
const (
	MinFFTSize = 32
	MaxFFTSize = 32768
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	Blackman WindowFunc = iota
	BartlettHann
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

// Options configures an Analyser.
type Options struct {
	FFTSize     int        // Number of points for the FFT (power of 2).
	SampleRate  float64    // Sample rate of the connected source (Hz).
	MinDecibels float64    // Level mapped to byte 0.
	MaxDecibels float64    // Level mapped to byte 255.
	Smoothing   float64    // Exponential averaging factor in [0, 1].
	Window      WindowFunc // Window applied before the FFT.
}

// DefaultOptions mirrors the defaults of a browser AnalyserNode.
func DefaultOptions(sampleRate float64) Options {
	return Options{
		FFTSize:     2048,
		SampleRate:  sampleRate,
		MinDecibels: -100,
		MaxDecibels: -30,
		Smoothing:   0.8,
		Window:      Blackman,
	}
}

// Validate reports the first option the Analyser cannot work with.
func (o Options) Validate() error {
	if !bitint.IsPowerOfTwo(o.FFTSize) || o.FFTSize < MinFFTSize || o.FFTSize > MaxFFTSize {
		return fmt.Errorf("%w, got %d (nearest %d)", ErrInvalidFFTSize, o.FFTSize, bitint.NextPowerOfTwo(o.FFTSize))
	}
	if o.SampleRate <= 0 {
		return fmt.Errorf("%w, got %f", ErrInvalidSampleRate, o.SampleRate)
	}
	if o.MinDecibels >= o.MaxDecibels {
		return fmt.Errorf("%w, got [%g, %g]", ErrInvalidDecibelRange, o.MinDecibels, o.MaxDecibels)
	}
	if o.Smoothing < 0 || o.Smoothing > 1 || math.IsNaN(o.Smoothing) {
		return fmt.Errorf("%w, got %g", ErrInvalidSmoothing, o.Smoothing)
	}
	return nil
}

// Pre-allocated buffers for FFT calculations.
type analyserWorkspace struct {
	ring      []float64    // Last fftSize down-mixed samples, oldest at ringPos.
	ringPos   int          // Next write position in ring.
	input     []float64    // Windowed copy of ring in time order.
	fftOutput []complex128 // FFT complex results (fftSize/2 + 1).
	current   []float64    // Magnitudes of the latest FFT (fftSize/2).
	smoothed  []float64    // Smoothed magnitudes (fftSize/2).
	window    []float64    // Pre-calculated window coefficients.
	mu        sync.Mutex   // Protects everything above.
}

// Analyser is the tap the meter samples: it receives blocks from an audio
// graph, keeps the most recent fftSize samples and produces magnitude frames
// on demand. Process runs on the source's goroutine and ByteFrequencyData on
// the meter's, so the workspace is guarded by a mutex.
type Analyser struct {
	fftCalculator *fourier.FFT // Reusable FFT calculator instance.
	opts          Options
	dbRange       float64 // MaxDecibels - MinDecibels.
	workspace     analyserWorkspace
}

// Compile-time check: an Analyser can be connected to a source or splitter.
var _ audio.Node = (*Analyser)(nil)

// NewAnalyser validates opts and pre-allocates every buffer the analyser
// uses, so neither Process nor ByteFrequencyData allocates.
func NewAnalyser(opts Options) (*Analyser, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	windowCoeffs := make([]float64, opts.FFTSize)
	applyWindow(windowCoeffs, opts.Window)

	bins := opts.FFTSize / 2

	applog.Debugf("Analyser: Initializing (Size: %d, SampleRate: %.1f Hz, Window: %v, dB: [%g, %g], Smoothing: %.2f)",
		opts.FFTSize, opts.SampleRate, opts.Window, opts.MinDecibels, opts.MaxDecibels, opts.Smoothing)

	return &Analyser{
		fftCalculator: fourier.NewFFT(opts.FFTSize),
		opts:          opts,
		dbRange:       opts.MaxDecibels - opts.MinDecibels,
		workspace: analyserWorkspace{
			ring:      make([]float64, opts.FFTSize),
			input:     make([]float64, opts.FFTSize),
			fftOutput: make([]complex128, bins+1),
			current:   make([]float64, bins),
			smoothed:  make([]float64, bins),
			window:    windowCoeffs,
		},
	}, nil
}

// Process appends one planar block to the analysis ring, down-mixing all
// channels to mono by averaging.
func (a *Analyser) Process(block [][]float32) {
	if len(block) == 0 {
		return
	}
	frames := len(block[0])
	for _, ch := range block[1:] {
		frames = min(frames, len(ch))
	}
	gain := 1.0 / float64(len(block))

	ws := &a.workspace
	ws.mu.Lock()
	for i := range frames {
		var sum float64
		for _, ch := range block {
			sum += float64(ch[i])
		}
		ws.ring[ws.ringPos] = sum * gain
		ws.ringPos++
		if ws.ringPos == len(ws.ring) {
			ws.ringPos = 0
		}
	}
	ws.mu.Unlock()
}

// analyse runs one FFT over the ring and folds it into the smoothed
// magnitudes. Callers hold the workspace lock.
func (a *Analyser) analyse() {
	ws := &a.workspace
	n := len(ws.ring)

	// --- 1. Unroll the ring & apply window ---
	head := copy(ws.input, ws.ring[ws.ringPos:])
	copy(ws.input[head:], ws.ring[:ws.ringPos])
	for i := range ws.input {
		ws.input[i] *= ws.window[i]
	}

	// --- 2. Perform FFT ---
	a.fftCalculator.Coefficients(ws.fftOutput, ws.input)

	// --- 3. Normalised magnitudes ---
	for k := range ws.current {
		ws.current[k] = cmplx.Abs(ws.fftOutput[k])
	}
	f64.Scale(ws.current, ws.current, 1/float64(n))

	// --- 4. Temporal smoothing ---
	tau := a.opts.Smoothing
	f64.Scale(ws.smoothed, ws.smoothed, tau)
	for k, m := range ws.current {
		v := ws.smoothed[k] + (1-tau)*m
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		ws.smoothed[k] = v
	}
}

// ByteFrequencyData analyses the current ring and writes one byte per bin
// into dst: the smoothed magnitude in decibels, mapped linearly from
// [MinDecibels, MaxDecibels] onto [0, 255] and clamped. Extra dst entries
// are left untouched; extra bins are dropped.
func (a *Analyser) ByteFrequencyData(dst []uint8) {
	ws := &a.workspace
	ws.mu.Lock()
	defer ws.mu.Unlock()

	a.analyse()

	count := min(len(dst), len(ws.smoothed))
	for k := range count {
		db := 20 * math.Log10(ws.smoothed[k])
		scaled := 255 * (db - a.opts.MinDecibels) / a.dbRange
		switch {
		case math.IsNaN(scaled) || scaled <= 0:
			dst[k] = 0
		case scaled >= 255:
			dst[k] = 255
		default:
			dst[k] = uint8(scaled)
		}
	}
}

// GetMagnitudesInto copies the smoothed linear magnitudes of the last
// analysis into dest, which must have FrequencyBinCount entries.
func (a *Analyser) GetMagnitudesInto(dest []float64) error {
	ws := &a.workspace
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if len(dest) != len(ws.smoothed) {
		return fmt.Errorf("%w: %d != %d", ErrDestinationMismatch, len(dest), len(ws.smoothed))
	}
	copy(dest, ws.smoothed)
	return nil
}

// Reset clears the sample ring and the smoothing history.
func (a *Analyser) Reset() {
	ws := &a.workspace
	ws.mu.Lock()
	clear(ws.ring)
	clear(ws.smoothed)
	ws.ringPos = 0
	ws.mu.Unlock()
}

// FrequencyBinCount returns the number of bins per frame (fftSize/2).
func (a *Analyser) FrequencyBinCount() int {
	return a.opts.FFTSize / 2
}

// GetFrequencyForBin returns the center frequency (Hz) for a given FFT bin
// index, or 0 when the index is out of range.
func (a *Analyser) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= a.FrequencyBinCount() {
		return 0.0
	}
	return float64(binIndex) * (a.opts.SampleRate / float64(a.opts.FFTSize))
}

// GetFFTSize returns the configured FFT size (number of points).
func (a *Analyser) GetFFTSize() int {
	return a.opts.FFTSize // Immutable after creation, no lock needed.
}

// GetSampleRate returns the configured sample rate (Hz).
func (a *Analyser) GetSampleRate() float64 {
	return a.opts.SampleRate // Immutable after creation, no lock needed.
}

// String returns the window function name.
func (w WindowFunc) String() string {
	switch w {
	case Blackman:
		return "Blackman"
	case BartlettHann:
		return "BartlettHann"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Blackman) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "blackman":
		return Blackman, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Blackman, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall
// back to Blackman.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window functions scale the slice in place, so start from 1.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Blackman:
		window.Blackman(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analyser: Unknown window function type %d, defaulting to Blackman", windowType)
		window.Blackman(coeffs)
	}
}
