// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wavviz/cmd"
	"wavviz/internal/build"
	"wavviz/internal/config"
	"wavviz/internal/engine"
	applog "wavviz/internal/log"
	"wavviz/internal/render"
	"wavviz/internal/source"
	"wavviz/internal/transport"
	"wavviz/internal/transport/udp"
	"wavviz/internal/tui"
)

// main is the entry point for the visualizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Initialize PortAudio when it is needed
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Load the file, re-prompting until one decodes
//   - Start renderers and frame exporters
//   - Run the visualization session until it ends or a signal arrives
//
// 3. Shutdown Phase (Cold Path):
//   - Close renderers, exporters and the audio output
func main() {
	os.Exit(run())
}

func run() int {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: Running without ldflags: %v", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		if errors.Is(err, cmd.ErrNoCommand) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg == nil {
		return 0 // --help or --version
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)

	if cfg.Command == cmd.CommandDevices || cfg.Audio.Backend == config.BackendPortAudio {
		if err := source.Initialize(); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		defer func() {
			if err := source.Terminate(); err != nil {
				applog.Warnf("%v", err)
			}
		}()
	}

	switch cfg.Command {
	case cmd.CommandDevices:
		if err := executeDevices(cfg); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		return 0
	case cmd.CommandPlay:
		if err := play(cfg); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		return 0
	default:
		applog.Errorf("Unknown command %q", cfg.Command)
		return 1
	}
}

// executeDevices handles the one-off device listing.
func executeDevices(cfg *config.Config) error {
	if !cfg.TUIList {
		return source.ListDevices(os.Stdout)
	}
	id, err := tui.StartDeviceListUI()
	if err != nil {
		return err
	}
	if id != source.MinDeviceID {
		fmt.Printf("Selected device %d. Play with: %s play --device %d <file.wav>\n",
			id, build.GetBuildFlags().Name, id)
	}
	return nil
}

func newSink(cfg *config.Config) source.Sink {
	switch cfg.Audio.Backend {
	case config.BackendOto:
		return source.NewOtoSink()
	case config.BackendNone:
		return source.NewClockSink(0)
	default:
		return source.NewPortAudioSink(cfg.Audio.OutputDevice, cfg.Audio.FramesPerBuffer)
	}
}

func play(cfg *config.Config) error {
	// ==================== CONCURRENT PHASE (Hot Path) ====================

	path := cfg.File
	if path == "" {
		var err error
		if path, err = cmd.PromptPath(os.Stdin, os.Stdout); err != nil {
			return err
		}
	}

	mode, err := engine.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	player := source.NewPlayer(newSink(cfg))
	defer func() {
		if err := player.Close(); err != nil {
			applog.Warnf("Closing audio output: %v", err)
		}
	}()

	// The file is loaded before any display takes over the terminal so the
	// prompt stays usable.
	eng := engine.NewEngine(cfg, player, nil, nil)
	for {
		err := eng.LoadFile(path)
		if err == nil {
			break
		}
		var loadErr *engine.LoadError
		if !errors.As(err, &loadErr) {
			return err
		}
		fmt.Fprintf(os.Stderr, "Could not load %s: %v\n", loadErr.Path, loadErr.Err)
		if path, err = cmd.PromptPath(os.Stdin, os.Stdout); err != nil {
			return err
		}
	}

	if !cfg.Headless {
		restore, err := redirectLog(cfg.LogFile)
		if err != nil {
			return err
		}
		defer restore()
	}

	renderers, input, err := openRenderers(cfg, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := renderers.Close(); err != nil {
			applog.Warnf("Closing renderers: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Attach(renderers, input); err != nil {
		return err
	}
	if t, ok := input.(*render.TUI); ok {
		t.Start()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Run returns once playback ends, the display closes or a signal arrives;
	// the deferred closes above restore the terminal and release the device.
	return eng.Run(ctx, mode)
}

// openRenderers builds the display and the enabled frame exporters.
func openRenderers(cfg *config.Config, path string) (render.Multi, render.Input, error) {
	var (
		renderers render.Multi
		input     render.Input
	)
	fail := func(err error) (render.Multi, render.Input, error) {
		renderers.Close()
		return nil, nil, err
	}

	if cfg.Headless {
		renderers = append(renderers, transport.NewLoggingTransport(config.FrameRate))
	} else {
		title := fmt.Sprintf("%s · %s", build.GetBuildFlags().Name, filepath.Base(path))
		t := render.NewTUI(title)
		renderers = append(renderers, t)
		input = t
	}

	if cfg.Transport.WSEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		renderers = append(renderers, ws)
		if err := ws.Start(); err != nil {
			return fail(fmt.Errorf("starting WebSocket transport: %w", err))
		}
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return fail(err)
		}
		pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			return fail(err)
		}
		pub.Start()
		renderers = append(renderers, pub)
	}

	return renderers, input, nil
}

// redirectLog keeps log lines off the terminal while the TUI owns it. The
// returned func points the logger back at stderr.
func redirectLog(path string) (func(), error) {
	if path == "" {
		applog.SetOutput(io.Discard)
		return func() { applog.SetOutput(os.Stderr) }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(os.Stderr)
		f.Close()
	}, nil
}
