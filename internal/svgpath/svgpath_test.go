// SPDX-License-Identifier: MIT
package svgpath

import (
	"strings"
	"testing"

	"freqmeter/internal/scale"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChannel = []uint8{0, 8, 16, 32, 64, 255}

func TestGenerateSingleChannel(t *testing.T) {
	paths := Generate([][]uint8{testChannel}, 10, 100, 255)

	require.Len(t, paths, 1)
	assert.Equal(t,
		"M0,100L0,100L0,96.86274509803921L4,93.72549019607843"+
			"L7,87.45098039215686L8,74.90196078431373L9,0Z",
		paths[0])
}

func TestGenerateWithExplicitScale(t *testing.T) {
	g := NewGeneratorWithScale(scale.Make(0, 255, 0, 255), 100, 255)

	paths := g.Generate([][]uint8{testChannel})

	require.Len(t, paths, 1)
	assert.Equal(t,
		"M0,100L0,100L0,96.86274509803921L1,93.72549019607843"+
			"L2,87.45098039215686L2,74.90196078431373L2,0Z",
		paths[0])
}

func TestGenerateIdempotent(t *testing.T) {
	g := NewGenerator(len(testChannel), 10, 100, 255)
	channels := [][]uint8{testChannel, {255, 128, 64, 32, 16, 0}}

	first := g.Generate(channels)
	second := g.Generate(channels)

	assert.Equal(t, first, second)
	assert.Equal(t, first, Generate(channels, 10, 100, 255))
}

func TestGenerateChannelOrder(t *testing.T) {
	silent := make([]uint8, 6)
	full := []uint8{255, 255, 255, 255, 255, 255}

	paths := Generate([][]uint8{silent, full}, 10, 100, 255)

	require.Len(t, paths, 2)
	assert.Equal(t, "M0,100L0,100L0,100L4,100L7,100L8,100L9,100Z", paths[0])
	assert.Equal(t, "M0,100L0,0L0,0L4,0L7,0L8,0L9,0Z", paths[1])
}

func TestGenerateIndexZeroPinned(t *testing.T) {
	// Offset bounds would move any scaled index, index 0 stays at 0.
	g := NewGeneratorWithScale(scale.Make(0, 1, 50, 100), 10, 255)

	paths := g.Generate([][]uint8{{255, 255}})

	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "M0,10L0,0L50,0"), paths[0])
}

func TestGenerateShape(t *testing.T) {
	data := make([]uint8, 1024)
	for i := range data {
		data[i] = uint8(i % 256)
	}

	paths := Generate([][]uint8{data}, 800, 300, 255)

	require.Len(t, paths, 1)
	p := paths[0]
	assert.True(t, strings.HasPrefix(p, "M0,300L0,300"))
	assert.True(t, strings.HasSuffix(p, "Z"))
	assert.Equal(t, len(data), strings.Count(p, "L"))
	assert.Equal(t, 1, strings.Count(p, "Z"))
}

func TestGenerateEmpty(t *testing.T) {
	assert.Empty(t, Generate(nil, 10, 100, 255))
}

func BenchmarkGenerate(b *testing.B) {
	channels := [][]uint8{make([]uint8, 1024), make([]uint8, 1024)}
	for i := range channels[0] {
		channels[0][i] = uint8(i % 256)
		channels[1][i] = uint8(255 - i%256)
	}
	g := NewGenerator(1024, 800, 300, 255)

	b.ReportAllocs()
	for b.Loop() {
		g.Generate(channels)
	}
}

func TestMaxPathLenBoundsEveryByte(t *testing.T) {
	sizes := []struct{ bins, width, height int }{
		{2, 1, 1},
		{256, 7, 3},
		{1024, 800, 300},
		{1024, 1920, 1080},
		{4096, 99999, 7},
	}
	for _, sz := range sizes {
		// Cycle through every byte value so each y formatting case occurs.
		data := make([]uint8, sz.bins)
		for i := range data {
			data[i] = uint8(i * 37)
		}
		path := Generate([][]uint8{data}, sz.width, sz.height, 255)[0]
		assert.LessOrEqual(t, len(path), MaxPathLen(sz.bins, sz.width, sz.height),
			"%d bins in %dx%d", sz.bins, sz.width, sz.height)
	}
}
