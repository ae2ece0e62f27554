// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"freqmeter/internal/channel"
	"freqmeter/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time {
	return time.Date(2026, 10, 18, 12, 30, 5, 0, time.UTC)
}

func parse(t *testing.T, args ...string) (*Options, error) {
	t.Helper()
	return parseArgs(args, io.Discard, fixedNow)
}

func TestParseArgsDefaults(t *testing.T) {
	opts, err := parse(t)
	require.NoError(t, err)

	assert.True(t, opts.Run)
	assert.Empty(t, opts.Command)
	assert.Equal(t, config.Default(), opts.Config)
}

func TestParseArgsOverrides(t *testing.T) {
	opts, err := parse(t,
		"--mode", "MidSide",
		"--width", "640",
		"--height", "240",
		"--latency", "50ms",
		"--fft-size", "1024",
		"--smoothing", "0.5",
		"--ws-addr", "",
		"--udp-addr", "127.0.0.1:7000",
		"--loop",
		"song.ogg",
	)
	require.NoError(t, err)

	cfg := opts.Config
	assert.Equal(t, channel.MidSide, cfg.Meter.ProcessingMode)
	assert.Equal(t, 640, cfg.Meter.Width)
	assert.Equal(t, 240, cfg.Meter.Height)
	assert.Equal(t, 50*time.Millisecond, cfg.Meter.Latency)
	assert.Equal(t, 1024, cfg.Meter.FFTSize)
	assert.Equal(t, 0.5, cfg.Meter.Smoothing)
	assert.False(t, cfg.Transport.WebSocketEnabled)
	assert.True(t, cfg.Transport.UDPEnabled)
	assert.Equal(t, "127.0.0.1:7000", cfg.Transport.UDPTargetAddress)
	assert.True(t, cfg.Source.Loop)
	assert.Equal(t, "song.ogg", cfg.Source.File)
}

func TestParseArgsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
meter:
  width: 400
  height: 120
  processing_mode: Direct
`), 0o644))

	opts, err := parse(t, "--config", path, "--width", "500")
	require.NoError(t, err)

	assert.Equal(t, 500, opts.Config.Meter.Width, "flags win over the file")
	assert.Equal(t, 120, opts.Config.Meter.Height)
	assert.Equal(t, channel.Direct, opts.Config.Meter.ProcessingMode)
}

func TestParseArgsRecording(t *testing.T) {
	opts, err := parse(t, "--record", "--device", "3")
	require.NoError(t, err)
	assert.True(t, opts.Config.Source.Record)
	assert.Equal(t, 3, opts.Config.Source.Device)
	assert.Equal(t, "recording-18-10-2026-123005.wav", opts.Config.Source.RecordPath)

	opts, err = parse(t, "-r", "-o", "take.wav")
	require.NoError(t, err)
	assert.Equal(t, "take.wav", opts.Config.Source.RecordPath)
}

func TestParseArgsVerbose(t *testing.T) {
	opts, err := parse(t, "-v")
	require.NoError(t, err)
	assert.True(t, opts.Config.Debug)
	assert.True(t, opts.Config.Transport.LogFrames)
}

func TestParseArgsErrors(t *testing.T) {
	_, err := parse(t, "--mode", "Surround")
	assert.ErrorIs(t, err, channel.ErrUnsupportedMode)

	_, err = parse(t, "--fft-size", "1000")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "--device=-5")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = parse(t, "a.wav", "b.wav")
	assert.Error(t, err)

	_, err = parse(t, "--no-such-flag")
	assert.Error(t, err)
}

func TestParseArgsList(t *testing.T) {
	opts, err := parse(t, "list")
	require.NoError(t, err)
	assert.Equal(t, CommandList, opts.Command)
	assert.False(t, opts.Plain)
	assert.False(t, opts.Run)

	opts, err = parse(t, "list", "--plain", "-v")
	require.NoError(t, err)
	assert.True(t, opts.Plain)
	assert.True(t, opts.Config.Debug)
}

func TestParseArgsVersion(t *testing.T) {
	var out bytes.Buffer
	opts, err := parseArgs([]string{"--version"}, &out, fixedNow)
	require.NoError(t, err)
	assert.False(t, opts.Run)
	assert.Contains(t, out.String(), "dev")
}

func TestExecuteUnknownCommand(t *testing.T) {
	assert.Error(t, Execute(&Options{Command: "bogus"}))
}
