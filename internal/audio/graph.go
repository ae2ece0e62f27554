// SPDX-License-Identifier: MIT

/*
Package audio implements the audio graph the meter samples from:
- Sources (decoded buffers, PortAudio input devices) push planar blocks
- Nodes (analysers, splitters) receive them
- Sources signal end of playback through Ended()

Thread Safety:
- Sources deliver blocks from their own goroutine (or the PortAudio callback)
- Connect and Disconnect may be called from any goroutine
- Blocks are only valid for the duration of Process; nodes copy what they keep
*/
package audio

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrInvalidOutput is returned when a splitter output index is out of range.
	ErrInvalidOutput = errors.New("invalid splitter output")
	// ErrEmptyBuffer is returned when a buffer source is built without samples.
	ErrEmptyBuffer = errors.New("buffer has no samples")
)

// Node receives audio blocks. A block is planar: one slice per channel, all
// of the same length.
type Node interface {
	Process(block [][]float32)
}

// Source produces blocks and fans them out to its connected nodes.
type Source interface {
	Connect(n Node)
	Disconnect(n Node)
	Channels() int
	SampleRate() int
	// Ended is closed once the source stops producing blocks.
	Ended() <-chan struct{}
}

// fanout is the connection list shared by every source and splitter output.
type fanout struct {
	mu    sync.Mutex
	nodes []Node
}

func (f *fanout) Connect(n Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.nodes, n) {
		f.nodes = append(f.nodes, n)
	}
}

func (f *fanout) Disconnect(n Node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = slices.DeleteFunc(f.nodes, func(c Node) bool { return c == n })
}

func (f *fanout) disconnectAll() {
	f.mu.Lock()
	f.nodes = nil
	f.mu.Unlock()
}

func (f *fanout) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

// emit delivers block to every connected node. The lock is held for the
// whole delivery so that a node is never called after Disconnect returns.
func (f *fanout) emit(block [][]float32) {
	f.mu.Lock()
	for _, n := range f.nodes {
		n.Process(block)
	}
	f.mu.Unlock()
}

// Splitter routes channel i of every block to the nodes connected on
// output i. Outputs beyond the block's channel count receive silence.
type Splitter struct {
	outputs []fanout
	single  [][][]float32 // Per-output one-channel block headers.
	silence []float32
	mu      sync.Mutex // Serialises Process against itself.
}

var _ Node = (*Splitter)(nil)

// NewSplitter creates a splitter with the given number of outputs.
func NewSplitter(outputs int) *Splitter {
	s := &Splitter{
		outputs: make([]fanout, outputs),
		single:  make([][][]float32, outputs),
	}
	for i := range s.single {
		s.single[i] = make([][]float32, 1)
	}
	return s
}

// Outputs returns the number of outputs.
func (s *Splitter) Outputs() int {
	return len(s.outputs)
}

// ConnectOutput connects n to output index output.
func (s *Splitter) ConnectOutput(n Node, output int) error {
	if output < 0 || output >= len(s.outputs) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidOutput, output, len(s.outputs))
	}
	s.outputs[output].Connect(n)
	return nil
}

// DisconnectAll removes every node from every output.
func (s *Splitter) DisconnectAll() {
	for i := range s.outputs {
		s.outputs[i].disconnectAll()
	}
}

// Connected returns how many nodes are connected to output.
func (s *Splitter) Connected(output int) int {
	if output < 0 || output >= len(s.outputs) {
		return 0
	}
	return s.outputs[output].count()
}

// Process splits block across the outputs.
func (s *Splitter) Process(block [][]float32) {
	if len(block) == 0 {
		return
	}
	frames := len(block[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.outputs {
		if i < len(block) {
			s.single[i][0] = block[i]
		} else {
			if cap(s.silence) < frames {
				s.silence = make([]float32, frames)
			}
			s.single[i][0] = s.silence[:frames]
		}
		s.outputs[i].emit(s.single[i])
		s.single[i][0] = nil
	}
}
