// SPDX-License-Identifier: MIT

/*
Package meter runs the sampling loop of a frequency meter.

A Meter owns at most one session. Configure arms a session on an audio
source: it builds the analysis taps for the processing mode, connects them,
publishes the static overlay and starts a ticker. Every tick reads one byte
frame per tap, applies the channel transform, generates the paths and hands
them to the sink. A session ends when it is replaced, detached, or its
source ends.

Teardown clears the session's taps and sink under the session lock, so a
tick that was already in flight becomes a no-op and nothing is rendered
once teardown returns.
*/
package meter

import (
	"errors"
	"sync"
	"time"

	"freqmeter/internal/analysis"
	"freqmeter/internal/audio"
	"freqmeter/internal/channel"
	"freqmeter/internal/grid"
	applog "freqmeter/internal/log"
	"freqmeter/internal/svgpath"
	"freqmeter/internal/transport"
)

var (
	// ErrMissingAudioSource is returned by Configure without a source.
	ErrMissingAudioSource = errors.New("audio source is required")
	// ErrInvalidSession wraps invalid session geometry or timing.
	ErrInvalidSession = errors.New("invalid session configuration")
	// ErrClosed is returned by Configure after Close.
	ErrClosed = errors.New("meter is closed")
)

// State is the observable lifecycle state of a Meter.
type State int

const (
	// Idle means no session is running.
	Idle State = iota
	// Running means a session is armed and its ticker is live.
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	default:
		return "Unknown"
	}
}

// Ticker is the part of time.Ticker the sampling loop uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type timeTicker struct{ *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Option configures a Meter.
type Option func(*Meter)

// WithTicker replaces the ticker factory.
func WithTicker(f TickerFunc) Option {
	return func(m *Meter) { m.newTicker = f }
}

// WithEndedHandler registers fn to run, on its own goroutine, when the
// source of the active session ends.
func WithEndedHandler(fn func(src audio.Source)) Option {
	return func(m *Meter) { m.onEnded = fn }
}

// Meter binds audio sources to a sink, one session at a time.
type Meter struct {
	sink      transport.Sink
	newTicker TickerFunc
	onEnded   func(audio.Source)

	mu      sync.Mutex // Protects session and closed.
	session *session
	closed  bool
}

// New returns an idle Meter rendering to sink.
func New(sink transport.Sink, opts ...Option) *Meter {
	m := &Meter{
		sink:      sink,
		newTicker: NewTimeTicker,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports whether a session is running.
func (m *Meter) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.session.stopped() {
		return Idle
	}
	return Running
}

// Configure validates cfg, tears down the current session and arms a new
// one. On error the current session is left untouched.
func (m *Meter) Configure(cfg SessionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := newSession(cfg, m.sink)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	if m.session != nil {
		m.session.stop()
		m.session = nil
	}

	s.connect()
	if err := m.sink.Overlay(s.overlay); err != nil {
		applog.Warnf("Meter: Sink rejected overlay: %v", err)
	}

	m.session = s
	s.start(m.newTicker(cfg.Latency), m.release)

	applog.Infof("Meter: Running (mode %s, fft %d, %dx%d, every %s, source %d ch @ %d Hz)",
		cfg.Mode, cfg.FFTSize, cfg.Width, cfg.Height, cfg.Latency, cfg.Source.Channels(), cfg.Source.SampleRate())
	return nil
}

// Detach tears down the current session, if any, and clears the source.
func (m *Meter) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.stop()
		m.session = nil
		applog.Infof("Meter: Detached")
	}
}

// Close detaches and rejects further configuration. The sink is not
// closed; it belongs to the caller.
func (m *Meter) Close() error {
	m.Detach()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// release forgets s after its source ended, unless it was already replaced.
func (m *Meter) release(s *session) {
	m.mu.Lock()
	current := m.session == s
	if current {
		m.session = nil
	}
	m.mu.Unlock()

	if current && m.onEnded != nil {
		m.onEnded(s.source)
	}
}

// session is one armed binding of a source to the sink.
type session struct {
	source   audio.Source
	mode     channel.Mode
	overlay  grid.Overlay
	gen      *svgpath.Generator
	splitter *audio.Splitter

	ticker   Ticker
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex // Protects taps, frame and sink.
	taps   []*analysis.Analyser
	frame  channel.Frame
	sink   transport.Sink
	ticks  uint64
	failed uint64
}

// newSession builds the taps without touching the source.
func newSession(cfg SessionConfig, sink transport.Sink) (*session, error) {
	count, err := cfg.Mode.Taps()
	if err != nil {
		return nil, err
	}

	taps := make([]*analysis.Analyser, count)
	for i := range taps {
		if taps[i], err = analysis.NewAnalyser(cfg.analyserOptions()); err != nil {
			return nil, err
		}
	}

	bins := cfg.FFTSize / 2
	s := &session{
		source:  cfg.Source,
		mode:    cfg.Mode,
		overlay: grid.Layout(cfg.FrequencyAxis, cfg.DecibelAxis, cfg.Width, cfg.Height),
		gen:     svgpath.NewGenerator(bins, cfg.Width, cfg.Height, MaxByteValue),
		done:    make(chan struct{}),
		taps:    taps,
		frame:   channel.NewFrame(count, bins),
		sink:    sink,
	}
	if count > 1 {
		s.splitter = audio.NewSplitter(count)
	}
	return s, nil
}

// connect wires the taps: one analyser on the source for Direct, a
// splitter feeding one analyser per channel otherwise.
func (s *session) connect() {
	if s.splitter == nil {
		s.source.Connect(s.taps[0])
		return
	}
	for i, tap := range s.taps {
		// Output indices are in range by construction.
		_ = s.splitter.ConnectOutput(tap, i)
	}
	s.source.Connect(s.splitter)
}

func (s *session) start(ticker Ticker, onEnded func(*session)) {
	s.ticker = ticker
	s.wg.Add(1)
	go s.run(onEnded)
}

func (s *session) run(onEnded func(*session)) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ticker.C():
			// select picks randomly among ready cases; end of playback wins.
			if s.sourceEnded() {
				s.finish(onEnded)
				return
			}
			s.tick()
		case <-s.done:
			return
		case <-s.source.Ended():
			s.finish(onEnded)
			return
		}
	}
}

func (s *session) sourceEnded() bool {
	select {
	case <-s.source.Ended():
		return true
	default:
		return false
	}
}

// finish tears the session down after its source ended.
func (s *session) finish(onEnded func(*session)) {
	applog.Infof("Meter: Source ended after %d frames", s.frameCount())
	s.teardown()
	go onEnded(s)
}

// tick renders one frame. It is a no-op once the session is torn down.
func (s *session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink == nil {
		return
	}

	for i, tap := range s.taps {
		tap.ByteFrequencyData(s.frame[i])
	}
	frame, err := channel.Process(s.frame, s.mode)
	if err != nil {
		applog.Errorf("Meter: Channel processing failed: %v", err)
		return
	}

	paths := s.gen.Generate(frame)
	s.ticks++
	if err := s.sink.Render(paths); err != nil {
		s.failed++
		if s.failed == 1 || s.failed%100 == 0 {
			applog.Errorf("Meter: Render failed (%d so far): %v", s.failed, err)
		}
		return
	}
	applog.Debugf("Meter: Frame %d rendered", s.ticks)
}

func (s *session) frameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *session) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// teardown stops the ticker, invalidates the taps and sink, and
// disconnects the taps from the source. Safe from the run goroutine.
func (s *session) teardown() {
	s.stopOnce.Do(func() {
		close(s.done)
		if s.ticker != nil {
			s.ticker.Stop()
		}

		s.mu.Lock()
		taps := s.taps
		s.taps = nil
		s.sink = nil
		s.mu.Unlock()

		if s.splitter != nil {
			s.source.Disconnect(s.splitter)
			s.splitter.DisconnectAll()
		} else if len(taps) > 0 {
			s.source.Disconnect(taps[0])
		}
	})
}

// stop tears down and waits for the run goroutine to exit.
func (s *session) stop() {
	s.teardown()
	s.wg.Wait()
}
