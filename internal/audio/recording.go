// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	applog "freqmeter/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// recordBitDepth is the sample size of recorded WAV files.
const recordBitDepth = 16

// StartRecording writes every captured block, before gating, to a 16-bit
// PCM WAV file.
func (d *DeviceSource) StartRecording(filename string) error {
	if atomic.LoadInt32(&d.isRecording) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	d.recMu.Lock()
	d.outputFile = file
	d.wavEncoder = wav.NewEncoder(file, int(d.opts.SampleRate), recordBitDepth, d.opts.Channels, 1)
	d.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: d.opts.Channels,
			SampleRate:  int(d.opts.SampleRate),
		},
		Data:           make([]int, d.opts.FramesPerBuffer*d.opts.Channels),
		SourceBitDepth: recordBitDepth,
	}
	d.recMu.Unlock()

	atomic.StoreInt32(&d.isRecording, 1)
	applog.Infof("DeviceSource: Recording to %s", filename)

	return nil
}

// StopRecording finalises the WAV header and closes the file.
func (d *DeviceSource) StopRecording() error {
	if !atomic.CompareAndSwapInt32(&d.isRecording, 1, 0) {
		return nil
	}

	d.recMu.Lock()
	defer d.recMu.Unlock()

	if d.wavEncoder != nil {
		if err := d.wavEncoder.Close(); err != nil {
			return err
		}
		d.wavEncoder = nil
	}

	if d.outputFile != nil {
		if err := d.outputFile.Close(); err != nil {
			return err
		}
		d.outputFile = nil
	}

	return nil
}

// record converts interleaved float samples and appends them to the file.
func (d *DeviceSource) record(interleaved []float32) {
	d.recMu.Lock()
	defer d.recMu.Unlock()

	if d.wavEncoder == nil {
		return
	}

	n := min(len(interleaved), cap(d.sampleBuf.Data))
	d.sampleBuf.Data = d.sampleBuf.Data[:n]
	for i, s := range interleaved[:n] {
		d.sampleBuf.Data[i] = floatToPCM16(s)
	}

	if err := d.wavEncoder.Write(d.sampleBuf); err != nil {
		applog.Errorf("DeviceSource: Error writing to WAV file: %v", err)
	}
}

func floatToPCM16(s float32) int {
	s = max(-1, min(1, s))
	return int(math.Round(float64(s) * math.MaxInt16))
}
