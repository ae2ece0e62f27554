// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"freqmeter/internal/audio"
	"freqmeter/internal/audio/decode"
	"freqmeter/internal/config"
	"freqmeter/internal/log"
	"freqmeter/internal/meter"
	"freqmeter/internal/transport"
	"freqmeter/internal/transport/udp"
	"freqmeter/internal/tui"
	"freqmeter/pkg/build"
)

// Execute runs a one-off command.
func Execute(opts *Options) error {
	switch opts.Command {
	case CommandList:
		if opts.Plain {
			return printDevices(os.Stdout)
		}
		return tui.StartDeviceListUI(build.GetBuildFlags().Name)
	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

func printDevices(w io.Writer) error {
	devices, err := audio.GetDevices()
	if err != nil {
		return err
	}
	audio.ListDevices(w, devices)
	return nil
}

// NewSink builds the fanout of the enabled transports. The caller closes it.
func NewSink(cfg config.TransportConfig) (*transport.Fanout, error) {
	sink := transport.NewFanout()

	if cfg.WebSocketEnabled {
		ws, err := transport.ListenWebSocketSink(cfg.WebSocketAddress)
		if err != nil {
			return nil, err
		}
		log.Infof("WebSocketSink: Serving /ws and /frame.svg on %s", ws.Addr())
		sink.Add(ws)
	}

	if cfg.UDPEnabled {
		us, err := udp.NewUDPSink(cfg.UDPTargetAddress)
		if err != nil {
			return nil, errors.Join(err, sink.Close())
		}
		log.Infof("UDPSink: Sending frames to %s", cfg.UDPTargetAddress)
		sink.Add(us)
	}

	if cfg.LogFrames {
		sink.Add(transport.NewLoggingSink())
	}

	if sink.Len() == 0 {
		log.Warnf("Transport: No sink enabled, frames are discarded")
	}
	return sink, nil
}

// Run meters the configured source until ctx is done. A file source that
// ends without looping also ends the run.
func Run(ctx context.Context, cfg *config.Config) error {
	sink, err := NewSink(cfg.Transport)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			log.Warnf("Transport: Close: %v", err)
		}
	}()

	ended := make(chan audio.Source, 1)
	m := meter.New(sink, meter.WithEndedHandler(func(src audio.Source) {
		select {
		case ended <- src:
		default:
		}
	}))
	defer m.Close()

	if cfg.Source.File != "" {
		return runFile(ctx, cfg, m, ended)
	}
	return runDevice(ctx, cfg, m)
}

func runFile(ctx context.Context, cfg *config.Config, m *meter.Meter, ended <-chan audio.Source) error {
	buf, err := decode.Open(cfg.Source.File)
	if err != nil {
		return err
	}

	var current *audio.BufferSource
	play := func() error {
		src, err := audio.NewBufferSource(buf, cfg.Source.BlockFrames)
		if err != nil {
			return err
		}
		session, err := cfg.Meter.Session(src)
		if err != nil {
			return err
		}
		if err := m.Configure(session); err != nil {
			return err
		}
		current = src
		src.Start()
		return nil
	}

	if err := play(); err != nil {
		return err
	}

	plays := 1
	for {
		select {
		case <-ctx.Done():
			current.Stop()
			return nil
		case <-ended:
			if !cfg.Source.Loop {
				log.Infof("Source: %s finished", cfg.Source.File)
				return nil
			}
			plays++
			log.Debugf("Source: Restarting %s (play %d)", cfg.Source.File, plays)
			if err := play(); err != nil {
				return err
			}
		}
	}
}

func runDevice(ctx context.Context, cfg *config.Config, m *meter.Meter) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	src, err := audio.NewDeviceSource(audio.DeviceOptions{
		DeviceID:        cfg.Source.Device,
		Channels:        cfg.Source.Channels,
		FramesPerBuffer: cfg.Source.BlockFrames,
		LowLatency:      cfg.Source.LowLatency,
		GateThreshold:   cfg.Source.Gate,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Errorf("Source: Close: %v", err)
		}
	}()

	session, err := cfg.Meter.Session(src)
	if err != nil {
		return err
	}
	if err := m.Configure(session); err != nil {
		return err
	}

	// CRITICAL: Start of real-time audio processing. PortAudio begins
	// calling the input callback here.
	if err := src.Start(); err != nil {
		return err
	}
	log.Infof("Source: Capturing %s (%d ch @ %d Hz)", src.Name(), src.Channels(), src.SampleRate())

	if cfg.Source.Record {
		if err := src.StartRecording(cfg.Source.RecordPath); err != nil {
			return err
		}
		defer func() {
			if err := src.StopRecording(); err != nil {
				log.Errorf("Source: Stop recording: %v", err)
				return
			}
			log.Infof("Source: Recording saved to %s", cfg.Source.RecordPath)
		}()
	}

	select {
	case <-ctx.Done():
	case <-src.Ended():
		log.Warnf("Source: %s stopped", src.Name())
	}
	m.Detach()
	return nil
}
