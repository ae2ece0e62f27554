// SPDX-License-Identifier: MIT

// Package channel turns the raw per-tap magnitude frames of one sampling tick
// into the channels that get rendered.
package channel

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMode is returned for a Mode outside the closed set.
	ErrUnsupportedMode = errors.New("unsupported processing mode")
	// ErrInvalidChannelCount is returned when a mode receives the wrong
	// number of channels.
	ErrInvalidChannelCount = errors.New("invalid channel count")
)

// Frame holds one tick of byte magnitudes, one slice per channel. Every
// slice has the analyser's bin count (fftSize/2) and values in [0,255].
type Frame [][]uint8

// NewFrame allocates a frame of channels x bins.
func NewFrame(channels, bins int) Frame {
	f := make(Frame, channels)
	for i := range f {
		f[i] = make([]uint8, bins)
	}
	return f
}

// Process applies mode to frame. Direct and Stereo return the frame as is.
// MidSide rewrites the two channels in place: channel 0 becomes mid, the
// per-bin minimum, and channel 1 becomes side, the per-bin absolute
// difference.
func Process(frame Frame, mode Mode) (Frame, error) {
	switch mode {
	case Direct, Stereo:
		return frame, nil
	case MidSide:
		if len(frame) != 2 {
			return nil, fmt.Errorf("%w: mid/side needs 2 channels, got %d", ErrInvalidChannelCount, len(frame))
		}
		left, right := frame[0], frame[1]
		if len(left) != len(right) {
			return nil, fmt.Errorf("%w: channel lengths differ (%d != %d)", ErrInvalidChannelCount, len(left), len(right))
		}
		for i := range left {
			l, r := left[i], right[i]
			left[i] = min(l, r)
			if l > r {
				right[i] = l - r
			} else {
				right[i] = r - l
			}
		}
		return frame, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}
}
