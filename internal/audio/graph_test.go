// SPDX-License-Identifier: MIT
package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutConnectDisconnect(t *testing.T) {
	var f fanout
	a, b := &captureNode{}, &captureNode{}

	f.Connect(a)
	f.Connect(a)
	f.Connect(b)
	assert.Equal(t, 2, f.count(), "duplicate connections are ignored")

	f.emit([][]float32{{1}})
	f.Disconnect(a)
	f.emit([][]float32{{2}})

	assert.Len(t, a.blocks, 1)
	assert.Len(t, b.blocks, 2)

	f.disconnectAll()
	assert.Equal(t, 0, f.count())
}

func TestSplitterRoutesChannels(t *testing.T) {
	s := NewSplitter(2)
	left, right := &captureNode{}, &captureNode{}
	require.NoError(t, s.ConnectOutput(left, 0))
	require.NoError(t, s.ConnectOutput(right, 1))
	assert.Equal(t, 2, s.Outputs())
	assert.Equal(t, 1, s.Connected(0))

	s.Process([][]float32{{1, 2, 3}, {4, 5, 6}})

	require.Len(t, left.blocks, 1)
	require.Len(t, right.blocks, 1)
	assert.Equal(t, [][]float32{{1, 2, 3}}, left.blocks[0])
	assert.Equal(t, [][]float32{{4, 5, 6}}, right.blocks[0])
}

func TestSplitterFeedsSilenceToMissingChannels(t *testing.T) {
	s := NewSplitter(2)
	right := &captureNode{}
	require.NoError(t, s.ConnectOutput(right, 1))

	s.Process([][]float32{{0.5, 0.5, 0.5, 0.5}})

	require.Len(t, right.blocks, 1)
	assert.Equal(t, [][]float32{{0, 0, 0, 0}}, right.blocks[0])
}

func TestSplitterInvalidOutput(t *testing.T) {
	s := NewSplitter(2)
	assert.ErrorIs(t, s.ConnectOutput(&captureNode{}, 2), ErrInvalidOutput)
	assert.ErrorIs(t, s.ConnectOutput(&captureNode{}, -1), ErrInvalidOutput)
	assert.Equal(t, 0, s.Connected(5))
}

func TestSplitterDisconnectAll(t *testing.T) {
	s := NewSplitter(2)
	n := &captureNode{}
	require.NoError(t, s.ConnectOutput(n, 0))
	s.DisconnectAll()

	s.Process([][]float32{{1}, {2}})
	assert.Empty(t, n.blocks)
	assert.Equal(t, 0, s.Connected(0))
}

func TestSplitterEmptyBlock(t *testing.T) {
	s := NewSplitter(2)
	n := &captureNode{}
	require.NoError(t, s.ConnectOutput(n, 0))
	s.Process(nil)
	assert.Empty(t, n.blocks)
}
