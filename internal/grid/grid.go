// SPDX-License-Identifier: MIT

// Package grid computes the static overlay drawn behind the channel paths:
// frequency grid lines, frequency labels and decibel labels. Everything here
// is a pure function of the axis configuration and the pixel size, so it is
// recomputed on reconfiguration only.
package grid

import (
	"math"
	"strconv"

	"freqmeter/internal/scale"
)

const (
	// LegendFontSize is the label font size in pixels.
	LegendFontSize = 8

	// frequencyLabelShift moves a frequency label left so it sits centred
	// on its tick.
	frequencyLabelShift = 10
)

// Axis describes one meter axis.
type Axis struct {
	Min    float64   `yaml:"min" json:"min"`
	Max    float64   `yaml:"max" json:"max"`
	Grid   []float64 `yaml:"grid" json:"grid"`
	Labels []float64 `yaml:"labels" json:"labels"`
}

// Line is a vertical grid line at X spanning Y0..Y1.
type Line struct {
	X  int `json:"x"`
	Y0 int `json:"y0"`
	Y1 int `json:"y1"`
}

// Label is a text label anchored at (X, Y).
type Label struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Text string `json:"text"`
}

// Overlay is the complete static geometry for one configuration.
type Overlay struct {
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrequencyGrid   []Line  `json:"frequencyGrid"`
	FrequencyLabels []Label `json:"frequencyLabels"`
	DecibelLabels   []Label `json:"decibelLabels"`
}

// FrequencyScale maps log(frequency) in [log(axis.Min), log(axis.Max)] onto
// [0, width].
func FrequencyScale(axis Axis, width int) scale.Scale {
	return scale.Make(math.Log(axis.Min), math.Log(axis.Max), 0, float64(width))
}

// FrequencyGrid places one full-height line per frequency.
func FrequencyGrid(values []float64, s scale.Scale, height int) []Line {
	lines := make([]Line, 0, len(values))
	for _, f := range values {
		x := s.MapLog(f)
		lines = append(lines, Line{X: x, Y0: 0, Y1: height})
	}
	return lines
}

// FrequencyLabels places one label per frequency along the top edge.
func FrequencyLabels(values []float64, s scale.Scale) []Label {
	labels := make([]Label, 0, len(values))
	for _, f := range values {
		labels = append(labels, Label{
			X:    s.MapLog(f) - frequencyLabelShift,
			Y:    LegendFontSize,
			Text: FrequencyText(f),
		})
	}
	return labels
}

// DecibelLabels places one label per decibel value along the left edge,
// with the sign dropped from the text.
func DecibelLabels(values []float64, min, max float64, height int) []Label {
	s := scale.Make(min, max, 0, float64(height))

	labels := make([]Label, 0, len(values))
	for _, db := range values {
		labels = append(labels, Label{
			X:    0,
			Y:    height - s.Map(db) + LegendFontSize/2,
			Text: formatNumber(math.Abs(db)),
		})
	}
	return labels
}

// Layout computes the full overlay for the given axes and pixel size.
func Layout(freq, db Axis, width, height int) Overlay {
	s := FrequencyScale(freq, width)
	return Overlay{
		Width:           width,
		Height:          height,
		FrequencyGrid:   FrequencyGrid(freq.Grid, s, height),
		FrequencyLabels: FrequencyLabels(freq.Labels, s),
		DecibelLabels:   DecibelLabels(db.Grid, db.Min, db.Max, height),
	}
}

// FrequencyText renders 400 as "400" and 2000 as "2k".
func FrequencyText(f float64) string {
	if f < 1000 {
		return formatNumber(f)
	}
	return formatNumber(f/1000) + "k"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
