// SPDX-License-Identifier: MIT

/*
Package svgpath converts channels of byte magnitudes into SVG path data.

The x axis is logarithmic in the bin index, the y axis is linear in the
magnitude. A channel with bins v[0..N) becomes

	M0,<height> L<x0>,<y0> L<x1>,<y1> ... Z

where x(0) = 0 (log 0 is undefined, so index 0 never reaches the scale),
x(i) = ceil(log(i) / ratio) for a scale of [log 1, log N] onto [0, width],
and y(i) = height - height*v[i]/maxValue. Ceiling rounding can put adjacent
bins in the same pixel column when N is large compared to width; that is
the intended output, not something to correct.
*/
package svgpath

import (
	"math"
	"strconv"

	"freqmeter/internal/scale"
)

// Result holds one path string per rendered channel, in input order.
type Result []string

// Generator renders channels with a fixed x scale, height and full-scale
// magnitude. It carries no per-frame state, so Generate is idempotent and
// safe to call from several goroutines.
type Generator struct {
	xScale   scale.Scale
	height   float64
	maxValue float64
}

// NewGenerator builds a Generator for channels of bins samples drawn into
// a width x height box. bins must be at least 2 and maxValue positive.
func NewGenerator(bins, width, height int, maxValue float64) *Generator {
	return NewGeneratorWithScale(XScale(bins, width), height, maxValue)
}

// NewGeneratorWithScale builds a Generator around a precomputed x scale.
func NewGeneratorWithScale(xScale scale.Scale, height int, maxValue float64) *Generator {
	return &Generator{
		xScale:   xScale,
		height:   float64(height),
		maxValue: maxValue,
	}
}

// XScale returns the log scale [log 1, log bins] -> [0, width].
func XScale(bins, width int) scale.Scale {
	return scale.Make(math.Log(1), math.Log(float64(bins)), 0, float64(width))
}

// Generate renders every channel.
func (g *Generator) Generate(channels [][]uint8) Result {
	out := make(Result, len(channels))
	var buf []byte
	for i, data := range channels {
		buf = g.appendPath(buf[:0], data)
		out[i] = string(buf)
	}
	return out
}

func (g *Generator) appendPath(buf []byte, data []uint8) []byte {
	buf = append(buf, "M0,"...)
	buf = strconv.AppendFloat(buf, g.height, 'f', -1, 64)

	for i, v := range data {
		x := 0
		if i > 0 {
			x = g.xScale.MapLog(float64(i))
		}
		y := g.height - g.height*float64(v)/g.maxValue

		buf = append(buf, 'L')
		buf = strconv.AppendInt(buf, int64(x), 10)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, y, 'f', -1, 64)
	}

	return append(buf, 'Z')
}

// Generate is a one-shot helper: it builds the scale for the channels'
// length and renders them. channels must be non-empty with equal lengths.
func Generate(channels [][]uint8, width, height int, maxValue float64) Result {
	if len(channels) == 0 {
		return Result{}
	}
	return NewGenerator(len(channels[0]), width, height, maxValue).Generate(channels)
}

// maxFractionDigits bounds the digits after the point of a y coordinate.
// y is either 0 or at least height/255, so at most two zeros precede the
// 17 significant digits of a shortest float64 representation.
const maxFractionDigits = 19

// MaxPathLen is an upper bound on the length of one path of bins samples
// drawn into a width x height box with a maxValue of 255 or less.
func MaxPathLen(bins, width, height int) int {
	w := len(strconv.Itoa(width))
	h := len(strconv.Itoa(height))
	segment := len("L") + w + len(",") + h + len(".") + maxFractionDigits
	return len("M0,") + h + bins*segment + len("Z")
}
