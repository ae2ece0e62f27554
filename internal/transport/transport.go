// SPDX-License-Identifier: MIT

// Package transport delivers meter output: the static overlay once per
// configuration and one set of channel paths per tick.
package transport

import (
	"errors"
	"slices"
	"sync"

	"freqmeter/internal/grid"
	"freqmeter/internal/svgpath"
)

// ErrSinkClosed is returned by sinks used after Close.
var ErrSinkClosed = errors.New("sink is closed")

// Sink receives meter output. Overlay is called when a session is
// configured, before its first Render. Render is called from the meter's
// sampling goroutine once per tick and must not block for long.
// Implementations should be thread-safe.
type Sink interface {
	Overlay(o grid.Overlay) error
	Render(paths svgpath.Result) error
	Close() error
}

// Fanout forwards to several sinks. Errors from individual sinks are
// joined; one failing sink does not stop delivery to the others.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

var _ Sink = (*Fanout)(nil)

// NewFanout returns a Fanout over sinks, skipping nil entries.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		f.Add(s)
	}
	return f
}

// Add appends s.
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

func (f *Fanout) each(fn func(Sink) error) error {
	f.mu.RLock()
	sinks := slices.Clone(f.sinks)
	f.mu.RUnlock()

	var errs []error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Overlay forwards o to every sink.
func (f *Fanout) Overlay(o grid.Overlay) error {
	return f.each(func(s Sink) error { return s.Overlay(o) })
}

// Render forwards paths to every sink.
func (f *Fanout) Render(paths svgpath.Result) error {
	return f.each(func(s Sink) error { return s.Render(paths) })
}

// Close closes every sink.
func (f *Fanout) Close() error {
	return f.each(func(s Sink) error { return s.Close() })
}
