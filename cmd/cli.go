// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"freqmeter/internal/channel"
	"freqmeter/internal/config"
	"freqmeter/pkg/build"

	"github.com/spf13/cobra"
)

// CommandList is the one-off command that lists input devices.
const CommandList = "list"

// Options is the outcome of parsing the command line.
type Options struct {
	Config  *config.Config
	Command string // One-off command to execute instead of metering.
	Plain   bool   // Print the device list instead of opening the browser.
	Run     bool   // Start metering; false after --help or --version.
}

// flagValues receives the raw flags. Only flags the user set override the
// loaded configuration.
type flagValues struct {
	configPath string
	device     int
	mode       string
	width      int
	height     int
	latency    time.Duration
	fftSize    int
	smoothing  float64
	wsAddr     string
	udpAddr    string
	loop       bool
	record     bool
	output     string
	verbose    bool
}

// ParseArgs parses args (without the program name) into Options.
func ParseArgs(args []string) (*Options, error) {
	return parseArgs(args, os.Stdout, time.Now)
}

func parseArgs(args []string, out io.Writer, now func() time.Time) (*Options, error) {
	options := &Options{}
	root := newRootCommand(options, now)
	root.SetOut(out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

func newRootCommand(options *Options, now func() time.Time) *cobra.Command {
	buildInfo := build.GetBuildFlags()
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [file]",
		Short:         buildInfo.Description,
		Long:          buildInfo.Description + ".\n\nMeters an audio file (wav, mp3, ogg) or, without a file, a PortAudio input device.",
		Version:       buildInfo.String(),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			if err := fv.apply(cmd, cfg, args, now); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			options.Config = cfg
			options.Run = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if fv.verbose {
				cfg.Debug = true
			}
			options.Config = cfg
			options.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&options.Plain, "plain", "p", false,
		"Print the devices instead of opening the interactive browser")
	rootCmd.AddCommand(listCmd)

	flags := rootCmd.Flags()

	// Configuration file
	flags.StringVar(&fv.configPath, "config", "",
		"YAML configuration file (default: ./config.yaml or ./freqmeter.yaml when present)")

	// Source
	flags.IntVarP(&fv.device, "device", "d", config.DefaultDeviceID,
		"Input device ID when no file is given. Use 'list' command to see available devices.")
	flags.BoolVar(&fv.loop, "loop", false,
		"Restart the file each time it ends")
	flags.BoolVarP(&fv.record, "record", "r", false,
		"Record the input device to a WAV file")
	flags.StringVarP(&fv.output, "output", "o", "",
		"Recording file name. Default is recording-DD-MM-YYYY-HHMMSS.wav")

	// Meter
	flags.StringVarP(&fv.mode, "mode", "m", config.DefaultProcessingMode.String(),
		"Processing mode: Direct, Stereo or MidSide")
	flags.IntVar(&fv.width, "width", config.DefaultWidth, "Drawing width in pixels")
	flags.IntVar(&fv.height, "height", config.DefaultHeight, "Drawing height in pixels")
	flags.DurationVar(&fv.latency, "latency", config.DefaultLatency, "Sampling interval")
	flags.IntVar(&fv.fftSize, "fft-size", config.DefaultFFTSize, "FFT size, a power of two")
	flags.Float64Var(&fv.smoothing, "smoothing", config.DefaultSmoothing, "Smoothing time constant in [0, 1]")

	// Transport
	flags.StringVar(&fv.wsAddr, "ws-addr", config.DefaultWebSocketAddress,
		"Listen address for /ws and /frame.svg (empty disables the server)")
	flags.StringVar(&fv.udpAddr, "udp-addr", "",
		"Also send frames as UDP packets to this address")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	return rootCmd
}

// apply copies the flags the user set onto cfg.
func (fv *flagValues) apply(cmd *cobra.Command, cfg *config.Config, args []string, now func() time.Time) error {
	changed := cmd.Flags().Changed

	if len(args) == 1 {
		cfg.Source.File = args[0]
	}
	if changed("device") {
		cfg.Source.Device = fv.device
	}
	if changed("loop") {
		cfg.Source.Loop = fv.loop
	}
	if changed("record") {
		cfg.Source.Record = fv.record
	}
	if changed("output") {
		cfg.Source.RecordPath = fv.output
	} else if cfg.Source.Record && cfg.Source.RecordPath == config.DefaultRecordPath {
		cfg.Source.RecordPath = recordingName(now())
	}

	if changed("mode") {
		mode, err := channel.ParseMode(fv.mode)
		if err != nil {
			return fmt.Errorf("--mode: %w", err)
		}
		cfg.Meter.ProcessingMode = mode
	}
	if changed("width") {
		cfg.Meter.Width = fv.width
	}
	if changed("height") {
		cfg.Meter.Height = fv.height
	}
	if changed("latency") {
		cfg.Meter.Latency = fv.latency
	}
	if changed("fft-size") {
		cfg.Meter.FFTSize = fv.fftSize
	}
	if changed("smoothing") {
		cfg.Meter.Smoothing = fv.smoothing
	}

	if changed("ws-addr") {
		cfg.Transport.WebSocketAddress = fv.wsAddr
		cfg.Transport.WebSocketEnabled = fv.wsAddr != ""
	}
	if changed("udp-addr") {
		cfg.Transport.UDPTargetAddress = fv.udpAddr
		cfg.Transport.UDPEnabled = fv.udpAddr != ""
	}

	if fv.verbose {
		cfg.Debug = true
		cfg.Transport.LogFrames = true
	}
	return nil
}

func recordingName(t time.Time) string {
	return "recording-" + t.UTC().Format("02-01-2006-150405") + ".wav"
}
