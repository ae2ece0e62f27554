// SPDX-License-Identifier: MIT
package analysis

import "errors"

var (
	ErrInvalidFFTSize      = errors.New("fft size must be a power of 2 between 32 and 32768")
	ErrInvalidSampleRate   = errors.New("sample rate must be positive")
	ErrInvalidDecibelRange = errors.New("min decibels must be below max decibels")
	ErrInvalidSmoothing    = errors.New("smoothing must be within [0, 1]")
	ErrDestinationMismatch = errors.New("destination slice length does not match bin count")
)
