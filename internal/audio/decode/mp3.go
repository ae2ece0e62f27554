// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"errors"
	"io"

	"freqmeter/internal/audio"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces interleaved stereo, 16-bit little-endian.
const mp3Channels = 2

func decodeMP3(r io.ReadSeeker) (*audio.Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}

	var pcm []byte
	if n := dec.Length(); n > 0 {
		pcm = make([]byte, 0, n)
	}
	chunk := make([]byte, 8192)
	for {
		n, err := dec.Read(chunk)
		pcm = append(pcm, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768
	}

	return &audio.Buffer{
		SampleRate: dec.SampleRate(),
		Data:       deinterleave(samples, mp3Channels),
	}, nil
}
