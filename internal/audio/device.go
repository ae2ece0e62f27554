// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	applog "freqmeter/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// DeviceOptions configures a DeviceSource.
type DeviceOptions struct {
	DeviceID        int     // PortAudio device index, MinDeviceID for the default.
	Channels        int     // Requested input channels, clamped to the device.
	SampleRate      float64 // 0 selects the device default.
	FramesPerBuffer int     // Frames per callback.
	LowLatency      bool    // Use the device's low input latency.
	GateThreshold   float64 // Blocks with peak below this are replaced by silence (0 disables).
}

// DeviceSource captures a PortAudio input device and delivers its blocks to
// the connected nodes. PortAudio must be initialized.
type DeviceSource struct {
	fanout

	opts         DeviceOptions
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Planar block reused for every callback.
	block [][]float32

	gate atomic.Uint32 // math.Float32bits of the gate threshold.

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *goaudio.IntBuffer // Reusable buffer for format conversion
	recMu       sync.Mutex         // Serialises encoder writes against StopRecording.

	ended   chan struct{}
	endOnce sync.Once
}

var _ Source = (*DeviceSource)(nil)

// NewDeviceSource resolves the input device and prepares the buffers. The
// stream is opened by Start.
func NewDeviceSource(opts DeviceOptions) (*DeviceSource, error) {
	inputDevice, err := InputDevice(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	return newDeviceSource(opts, inputDevice)
}

func newDeviceSource(opts DeviceOptions, inputDevice *portaudio.DeviceInfo) (*DeviceSource, error) {
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = DefaultBlockFrames
	}
	if opts.Channels <= 0 {
		opts.Channels = 2
	}
	if inputDevice.MaxInputChannels > 0 {
		opts.Channels = min(opts.Channels, inputDevice.MaxInputChannels)
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = inputDevice.DefaultSampleRate
	}
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("device %q reports no sample rate", inputDevice.Name)
	}

	d := &DeviceSource{
		opts:        opts,
		inputDevice: inputDevice,
		block:       make([][]float32, opts.Channels),
		ended:       make(chan struct{}),
	}
	for ch := range d.block {
		d.block[ch] = make([]float32, opts.FramesPerBuffer)
	}
	d.SetGateThreshold(opts.GateThreshold)

	if opts.LowLatency {
		d.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		d.inputLatency = inputDevice.DefaultHighInputLatency
	}

	return d, nil
}

// Channels returns the captured channel count.
func (d *DeviceSource) Channels() int { return d.opts.Channels }

// SampleRate returns the stream sample rate.
func (d *DeviceSource) SampleRate() int { return int(d.opts.SampleRate) }

// Ended is closed by Close.
func (d *DeviceSource) Ended() <-chan struct{} { return d.ended }

// Name returns the device name.
func (d *DeviceSource) Name() string { return d.inputDevice.Name }

// SetGateThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (d *DeviceSource) SetGateThreshold(threshold float64) {
	threshold = max(0, min(1, threshold))
	d.gate.Store(uint32(threshold * float64(1<<24)))
}

// GateThreshold returns the current noise gate threshold.
func (d *DeviceSource) GateThreshold() float64 {
	return float64(d.gate.Load()) / float64(1<<24)
}

// Start opens and starts the input stream.
func (d *DeviceSource) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: d.opts.Channels,
			Device:   d.inputDevice,
			Latency:  d.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: d.opts.FramesPerBuffer,
		SampleRate:      d.opts.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, d.processInputStream)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %q: %w", d.inputDevice.Name, err)
	}
	d.inputStream = stream

	if err := d.inputStream.Start(); err != nil {
		d.inputStream.Close()
		d.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	applog.Infof("DeviceSource: Capturing from %q (%d ch, %.0f Hz, %d frames, latency %s)",
		d.inputDevice.Name, d.opts.Channels, d.opts.SampleRate, d.opts.FramesPerBuffer, d.inputLatency)
	return nil
}

// Stop stops and closes the input stream.
func (d *DeviceSource) Stop() error {
	if d.inputStream == nil {
		return nil
	}
	if err := d.inputStream.Stop(); err != nil {
		return err
	}
	if err := d.inputStream.Close(); err != nil {
		return err
	}
	d.inputStream = nil
	return nil
}

// Close stops recording and capture and closes Ended.
func (d *DeviceSource) Close() error {
	defer d.endOnce.Do(func() { close(d.ended) })

	if err := d.StopRecording(); err != nil {
		return err
	}
	return d.Stop()
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (d *DeviceSource) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	d.processBuffer(in)
}

// processBuffer deinterleaves in, applies the gate, records and emits.
func (d *DeviceSource) processBuffer(in []float32) {
	channels := len(d.block)
	frames := min(len(in)/channels, d.opts.FramesPerBuffer)

	var peak float32
	for i := range frames {
		for ch := range channels {
			s := in[i*channels+ch]
			d.block[ch][i] = s
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
	}

	if atomic.LoadInt32(&d.isRecording) == 1 {
		d.record(in[:frames*channels])
	}

	threshold := float32(d.GateThreshold())
	if threshold > 0 && peak < threshold {
		for ch := range d.block {
			clear(d.block[ch][:frames])
		}
	}

	for ch := range d.block {
		d.block[ch] = d.block[ch][:frames]
	}
	d.emit(d.block)
	for ch := range d.block {
		d.block[ch] = d.block[ch][:cap(d.block[ch])]
	}
}
