// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"freqmeter/internal/audio"

	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when the stream has no RIFF/WAVE header.
var ErrNotWAV = errors.New("not a valid WAV file")

func decodeWAV(r io.ReadSeeker) (*audio.Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrNotWAV, channels)
	}
	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	// Full scale for signed PCM; 8-bit WAV is unsigned with a 128 offset.
	scale := float32(int64(1) << (bitDepth - 1))
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float32(v-offset) / scale
	}

	return &audio.Buffer{
		SampleRate: int(dec.SampleRate),
		Data:       deinterleave(samples, channels),
	}, nil
}
