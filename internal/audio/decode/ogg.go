// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"freqmeter/internal/audio"

	"github.com/jfreymuth/oggvorbis"
)

func decodeOgg(r io.ReadSeeker) (*audio.Buffer, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, format.Channels)
	}

	return &audio.Buffer{
		SampleRate: format.SampleRate,
		Data:       deinterleave(samples, format.Channels),
	}, nil
}
