// SPDX-License-Identifier: MIT

// Package scale maps a value domain linearly onto a pixel (bound) domain.
// The frequency axis feeds it log-transformed values, the decibel axis feeds
// it raw values.
package scale

import "math"

// Scale is a precomputed linear mapping between [MinValue, MaxValue] and
// [MinBound, MaxBound]. Ratio is fixed at construction.
type Scale struct {
	MinValue float64
	MaxValue float64
	MinBound float64
	MaxBound float64
	Ratio    float64 // value units per bound unit
}

// Make builds a Scale. MaxBound must differ from MinBound; this is the
// caller's responsibility and is not checked.
func Make(minValue, maxValue, minBound, maxBound float64) Scale {
	return Scale{
		MinValue: minValue,
		MaxValue: maxValue,
		MinBound: minBound,
		MaxBound: maxBound,
		Ratio:    (maxValue - minValue) / (maxBound - minBound),
	}
}

// Map converts value into the bound domain, rounding up to the next whole
// unit.
func (s Scale) Map(value float64) int {
	return int(math.Ceil((value-s.MinValue)/s.Ratio + s.MinBound))
}

// MapLog maps the natural logarithm of value. value must be positive.
func (s Scale) MapLog(value float64) int {
	return s.Map(math.Log(value))
}
