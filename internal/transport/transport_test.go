// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"testing"

	"freqmeter/internal/grid"
	"freqmeter/internal/svgpath"
	"freqmeter/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOverlay = grid.Overlay{
	Width:  100,
	Height: 50,
	FrequencyGrid: []grid.Line{
		{X: 10, Y0: 0, Y1: 50},
		{X: 60, Y0: 0, Y1: 50},
	},
	FrequencyLabels: []grid.Label{{X: 0, Y: 8, Text: "100"}, {X: 50, Y: 8, Text: "1k"}},
	DecibelLabels:   []grid.Label{{X: 0, Y: 29, Text: "50"}},
}

func TestFanoutForwards(t *testing.T) {
	a, b := utils.NewMockSink(), utils.NewMockSink()
	f := NewFanout(a, nil, b)
	assert.Equal(t, 2, f.Len())

	require.NoError(t, f.Overlay(testOverlay))
	require.NoError(t, f.Render(svgpath.Result{"M0,50L1,2Z"}))
	require.NoError(t, f.Close())

	for _, s := range []*utils.MockSink{a, b} {
		assert.Equal(t, []grid.Overlay{testOverlay}, s.Overlays())
		assert.Equal(t, []svgpath.Result{{"M0,50L1,2Z"}}, s.Frames())
		assert.True(t, s.Closed())
	}
}

func TestFanoutJoinsErrors(t *testing.T) {
	errA := errors.New("sink a failed")
	a, b := utils.NewMockSink(), utils.NewMockSink()
	a.SetError(errA)
	f := NewFanout(a, b)

	err := f.Render(svgpath.Result{"M0,0Z"})
	assert.ErrorIs(t, err, errA)
	assert.Len(t, b.Frames(), 1, "a failing sink does not stop the others")
}

func TestFanoutEmpty(t *testing.T) {
	f := NewFanout()
	assert.NoError(t, f.Render(nil))
	assert.NoError(t, f.Close())
}

func TestLoggingSink(t *testing.T) {
	ls := NewLoggingSink()
	require.NoError(t, ls.Overlay(testOverlay))
	require.NoError(t, ls.Render(svgpath.Result{"M0,0Z", "M0,0Z"}))
	require.NoError(t, ls.Render(svgpath.Result{"M0,0Z"}))
	assert.Equal(t, uint64(2), ls.Frames())

	require.NoError(t, ls.Close())
	require.NoError(t, ls.Close())
	assert.ErrorIs(t, ls.Render(nil), ErrSinkClosed)
	assert.ErrorIs(t, ls.Overlay(testOverlay), ErrSinkClosed)
}
