// SPDX-License-Identifier: MIT

// Package decode loads audio files into memory as planar float buffers.
// Formats are picked by file extension from a registry; wav, mp3 and ogg
// (Vorbis) are registered by default.
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"freqmeter/internal/audio"
	applog "freqmeter/internal/log"
)

var (
	// ErrUnsupportedFormat is returned for extensions with no registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoAudio is returned when a file decodes to zero frames.
	ErrNoAudio = errors.New("file contains no audio")
)

// Decoder turns an encoded stream into a Buffer.
type Decoder interface {
	Decode(r io.ReadSeeker) (*audio.Buffer, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.ReadSeeker) (*audio.Buffer, error)

// Decode calls f(r).
func (f DecoderFunc) Decode(r io.ReadSeeker) (*audio.Buffer, error) { return f(r) }

var (
	registryMu sync.RWMutex
	registry   = map[string]Decoder{
		".wav":  DecoderFunc(decodeWAV),
		".wave": DecoderFunc(decodeWAV),
		".mp3":  DecoderFunc(decodeMP3),
		".ogg":  DecoderFunc(decodeOgg),
		".oga":  DecoderFunc(decodeOgg),
	}
)

// Register adds or replaces the decoder for ext (".flac", "flac").
func Register(ext string, d Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[normalizeExt(ext)] = d
}

// Formats lists the registered extensions, sorted.
func Formats() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Supported reports whether path has a registered extension.
func Supported(path string) bool {
	_, err := lookup(filepath.Ext(path))
	return err == nil
}

// Open decodes the file at path.
func Open(path string) (*audio.Buffer, error) {
	dec, err := lookup(filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoAudio)
	}

	applog.Infof("Decode: Loaded %s (%d ch, %d Hz, %s)", filepath.Base(path), buf.Channels(), buf.SampleRate, buf.Duration())
	return buf, nil
}

// Decode decodes r with the decoder registered for ext.
func Decode(r io.ReadSeeker, ext string) (*audio.Buffer, error) {
	dec, err := lookup(ext)
	if err != nil {
		return nil, err
	}
	return dec.Decode(r)
}

func lookup(ext string) (Decoder, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	dec, ok := registry[normalizeExt(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return dec, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// deinterleave splits interleaved samples into channels planes, dropping a
// trailing partial frame.
func deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	for i := range frames {
		for ch := range channels {
			data[ch][i] = samples[i*channels+ch]
		}
	}
	return data
}
