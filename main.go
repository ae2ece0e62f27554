// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"freqmeter/cmd"
	"freqmeter/internal/log"
	"freqmeter/pkg/build"
)

// main is the entry point of the frequency meter.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the sinks and the audio source
//   - Arm the meter session and start the source
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop recording if active
//   - Clean up resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		log.Debugf("Build: %v, using development metadata", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Config != nil {
		log.Configure(opts.Config.Debug, opts.Config.LogLevel)
	}

	// One-off commands (device listing) don't need the meter.
	if opts.Command != "" {
		if err := cmd.Execute(opts); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	// --help or --version
	if !opts.Run {
		return
	}

	// One thread for the audio callback, one for ticks and I/O.
	runtime.GOMAXPROCS(2)

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Blocks until a termination signal, or until a non-looping file ends.
	if err := cmd.Run(ctx, opts.Config); err != nil {
		stop()
		log.Fatalf("%v", err)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	log.Infof("Shutdown complete")
}
