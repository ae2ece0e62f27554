// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"time"

	applog "freqmeter/internal/log"
)

// DefaultBlockFrames is the number of frames a BufferSource delivers per
// block.
const DefaultBlockFrames = 1024

// Buffer is decoded PCM held in memory, planar, samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Data       [][]float32 // One slice per channel, equal lengths.
}

// Channels returns the channel count.
func (b *Buffer) Channels() int {
	return len(b.Data)
}

// Frames returns the number of frames per channel.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// BufferSource plays a Buffer in real time: every blockFrames/sampleRate it
// delivers the next block to its nodes. Ended is closed when the buffer is
// exhausted or Stop is called.
type BufferSource struct {
	fanout

	buffer      *Buffer
	blockFrames int
	interval    time.Duration

	started  bool
	stopChan chan struct{}
	stopOnce sync.Once
	ended    chan struct{}
	endOnce  sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects started.
}

var _ Source = (*BufferSource)(nil)

// NewBufferSource wraps buf. blockFrames <= 0 selects DefaultBlockFrames.
func NewBufferSource(buf *Buffer, blockFrames int) (*BufferSource, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, ErrEmptyBuffer
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", buf.SampleRate)
	}
	if blockFrames <= 0 {
		blockFrames = DefaultBlockFrames
	}

	return &BufferSource{
		buffer:      buf,
		blockFrames: blockFrames,
		interval:    time.Duration(float64(blockFrames) / float64(buf.SampleRate) * float64(time.Second)),
		stopChan:    make(chan struct{}),
		ended:       make(chan struct{}),
	}, nil
}

// Channels returns the channel count of the buffer.
func (s *BufferSource) Channels() int { return s.buffer.Channels() }

// SampleRate returns the sample rate of the buffer.
func (s *BufferSource) SampleRate() int { return s.buffer.SampleRate }

// Ended is closed when playback finishes.
func (s *BufferSource) Ended() <-chan struct{} { return s.ended }

// Start begins playback. A source plays once; later calls are no-ops.
func (s *BufferSource) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	applog.Debugf("BufferSource: Starting playback (%d ch, %d Hz, %s, block %d frames)",
		s.Channels(), s.SampleRate(), s.buffer.Duration(), s.blockFrames)

	s.wg.Add(1)
	go s.play()
}

func (s *BufferSource) play() {
	defer s.wg.Done()
	defer s.end()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	block := make([][]float32, s.Channels())
	total := s.buffer.Frames()
	for pos := 0; pos < total; {
		select {
		case <-ticker.C:
			next := min(pos+s.blockFrames, total)
			for ch, data := range s.buffer.Data {
				block[ch] = data[pos:next]
			}
			s.emit(block)
			pos = next
		case <-s.stopChan:
			applog.Debugf("BufferSource: Stopped before end of buffer")
			return
		}
	}
	applog.Debugf("BufferSource: Reached end of buffer")
}

func (s *BufferSource) end() {
	s.endOnce.Do(func() { close(s.ended) })
}

// Stop halts playback and waits for the playback goroutine to exit. Ended
// is closed afterwards even if the source was never started.
func (s *BufferSource) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.end()
}
