// SPDX-License-Identifier: MIT
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

const (
	testSampleRate = 44100
	testFrameSize  = 256
)

func newTestDevice(t testing.TB) *DeviceSource {
	t.Helper()
	d, err := newDeviceSource(DeviceOptions{
		Channels:        2,
		SampleRate:      testSampleRate,
		FramesPerBuffer: testFrameSize,
	}, &portaudio.DeviceInfo{Name: "test", MaxInputChannels: 2, DefaultSampleRate: testSampleRate})
	if err != nil {
		t.Fatalf("newDeviceSource: %v", err)
	}
	return d
}

func interleavedRamp(frames, channels int) []float32 {
	buf := make([]float32, frames*channels)
	for i := range buf {
		buf[i] = float32(i%200)/100 - 1
	}
	return buf
}

func TestRecordingStartStop(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	d := newTestDevice(t)

	if err := d.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	if atomic.LoadInt32(&d.isRecording) != 1 {
		t.Error("Device should be in recording state")
	}
	if d.wavEncoder == nil || d.outputFile == nil || d.sampleBuf == nil {
		t.Fatal("Recording state should be initialized")
	}
	if d.sampleBuf.Format.NumChannels != 2 {
		t.Errorf("Buffer channels mismatch: got %d, want 2", d.sampleBuf.Format.NumChannels)
	}
	if len(d.sampleBuf.Data) != testFrameSize*2 {
		t.Errorf("Buffer size mismatch: got %d, want %d", len(d.sampleBuf.Data), testFrameSize*2)
	}

	for range 4 {
		d.processBuffer(interleavedRamp(testFrameSize, 2))
	}

	outputFile := d.outputFile
	if err := d.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}
	if atomic.LoadInt32(&d.isRecording) != 0 {
		t.Error("Device should not be recording after stopping")
	}
	if d.outputFile != nil || d.wavEncoder != nil {
		t.Error("Recording state should be released after stopping")
	}
	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}

	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Recording file was not created: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("Failed to decode recording: %v", err)
	}
	if dec.BitDepth != recordBitDepth {
		t.Errorf("BitDepth = %d, want %d", dec.BitDepth, recordBitDepth)
	}
	if dec.NumChans != 2 {
		t.Errorf("NumChans = %d, want 2", dec.NumChans)
	}
	if got, want := len(buf.Data), 4*testFrameSize*2; got != want {
		t.Errorf("recorded %d samples, want %d", got, want)
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()

	t.Run("Already recording", func(t *testing.T) {
		d := newTestDevice(t)
		if err := d.StartRecording(filepath.Join(dir, "a.wav")); err != nil {
			t.Fatalf("StartRecording: %v", err)
		}
		defer d.StopRecording()

		err := d.StartRecording(filepath.Join(dir, "b.wav"))
		if err == nil || !strings.Contains(err.Error(), "already recording") {
			t.Errorf("expected already recording error, got %v", err)
		}
	})

	t.Run("Invalid path", func(t *testing.T) {
		d := newTestDevice(t)
		if err := d.StartRecording("/nonexistent/path/file.wav"); err == nil {
			t.Error("Expected error but got none")
		}
	})

	t.Run("Stop when not recording", func(t *testing.T) {
		d := newTestDevice(t)
		if err := d.StopRecording(); err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	})
}

func TestCloseDeviceWithRecording(t *testing.T) {
	d := newTestDevice(t)
	if err := d.StartRecording(filepath.Join(t.TempDir(), "close.wav")); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Failed to close device: %v", err)
	}
	if atomic.LoadInt32(&d.isRecording) != 0 {
		t.Error("Device should not be recording after Close()")
	}
	select {
	case <-d.Ended():
	default:
		t.Error("Ended should be closed after Close()")
	}
}

func TestFloatToPCM16(t *testing.T) {
	tests := []struct {
		in   float32
		want int
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2, 32767},
		{-3, -32767},
		{0.5, 16384},
	}
	for _, tt := range tests {
		if got := floatToPCM16(tt.in); got != tt.want {
			t.Errorf("floatToPCM16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func BenchmarkRecordingStartStop(b *testing.B) {
	d := newTestDevice(b)
	filename := filepath.Join(b.TempDir(), "bench.wav")

	b.ReportAllocs()
	for b.Loop() {
		_ = d.StartRecording(filename)
		_ = d.StopRecording()
	}
}
