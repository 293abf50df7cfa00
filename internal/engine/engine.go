// SPDX-License-Identifier: MIT
/*
Package engine runs a visualization session: it loads a file through an audio
source, starts playback and drives a fixed-rate render loop that turns the
playback position into frames.

Thread Safety:
  - LoadFile, Run and State may be called from any goroutine; Run blocks for
    the whole session and only one session runs at a time.
  - In bar mode an analysis worker goroutine writes spectra into a Slot that
    the render loop reads. The two share nothing else except the keep-running
    flag.
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"wavviz/internal/config"
	applog "wavviz/internal/log"
	"wavviz/internal/render"
	"wavviz/internal/source"
)

// State is the lifecycle state of an Engine.
type State int32

const (
	Idle State = iota
	Loaded
	Visualizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Visualizing:
		return "visualizing"
	default:
		return "unknown"
	}
}

// Mode selects the visualization.
type Mode int

const (
	ModeBars Mode = iota // FFT magnitude bars.
	ModeWave             // Scrolling waveform with seek marker.
)

func (m Mode) String() string {
	switch m {
	case ModeBars:
		return "bars"
	case ModeWave:
		return "wave"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name accepted by config.NormalizeMode to a Mode.
func ParseMode(s string) (Mode, error) {
	name, err := config.NormalizeMode(s)
	if err != nil {
		return ModeBars, err
	}
	if name == "wave" {
		return ModeWave, nil
	}
	return ModeBars, nil
}

// Engine owns the session lifecycle Idle -> Loaded -> Visualizing -> Idle.
type Engine struct {
	cfg      *config.Config
	src      source.Source
	renderer render.Renderer
	input    render.Input

	mu      sync.Mutex
	state   State
	path    string
	loading bool // A LoadFile decode is in progress.

	running atomic.Bool    // Keep-running flag shared with the analysis worker.
	wg      sync.WaitGroup // Joins the analysis worker.
	spectra Slot[float64]  // Latest magnitude spectrum.

	frameInterval time.Duration
}

// NewEngine wires a source to a renderer. renderer and input may be nil, in
// which case frames are discarded and no user input is read.
func NewEngine(cfg *config.Config, src source.Source, renderer render.Renderer, input render.Input) *Engine {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if renderer == nil {
		renderer = render.Discard{}
	}
	return &Engine{
		cfg:           cfg,
		src:           src,
		renderer:      renderer,
		input:         input,
		frameInterval: time.Second / config.FrameRate,
	}
}

// Attach replaces the renderer and input used by the next session. A nil
// renderer discards frames.
func (e *Engine) Attach(renderer render.Renderer, input render.Input) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Visualizing {
		return ErrBusy
	}
	if renderer == nil {
		renderer = render.Discard{}
	}
	e.renderer, e.input = renderer, input
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LoadFile decodes path through the audio source. On failure the engine is
// Idle and a *LoadError is returned. The decode runs without holding the
// engine lock; State reports the previous state until it finishes and other
// LoadFile or Run calls get ErrBusy.
func (e *Engine) LoadFile(path string) error {
	e.mu.Lock()
	if e.state == Visualizing || e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	e.loading = true
	e.mu.Unlock()

	err := e.src.LoadFile(path)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false

	if err != nil {
		e.state = Idle
		e.path = ""
		applog.Warnf("Engine: Failed to load %s: %v", path, err)
		return &LoadError{Path: path, Err: err}
	}

	e.state = Loaded
	e.path = path
	applog.Infof("Engine: Loaded %s (%s)", path, e.src.Duration())
	return nil
}

// Run plays the loaded file and visualizes it in mode until playback ends,
// the user closes the display or ctx is cancelled. It returns nil for all of
// those; an error means the session could not start. The engine is Idle
// after a session, Loaded if it never started.
func (e *Engine) Run(ctx context.Context, mode Mode) error {
	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return ErrBusy
	}
	switch e.state {
	case Idle:
		e.mu.Unlock()
		return ErrNotLoaded
	case Visualizing:
		e.mu.Unlock()
		return ErrBusy
	}
	pcm := e.src.PCM()
	if pcm == nil {
		e.mu.Unlock()
		return ErrNotLoaded
	}
	e.state = Visualizing
	e.mu.Unlock()

	v, err := e.newVisualizer(mode, pcm)
	if err == nil {
		err = v.start()
	}
	if err == nil {
		if err = e.src.Play(); err != nil {
			v.stop()
			err = fmt.Errorf("starting playback: %w", err)
		}
	}
	if err != nil {
		e.setState(Loaded)
		return err
	}

	applog.Infof("Engine: Visualizing %s in %s mode", e.path, mode)
	e.loop(ctx, v)

	// Shutdown: the worker is joined before the engine reports Idle.
	v.stop()
	if err := e.src.Pause(); err != nil {
		applog.Warnf("Engine: Pause at session end failed: %v", err)
	}
	e.setState(Idle)
	applog.Infof("Engine: Session ended")
	return nil
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// loop drives the fixed-rate render ticks until the session ends.
func (e *Engine) loop(ctx context.Context, v visualizer) {
	var events <-chan render.Event
	if e.input != nil {
		events = e.input.Events()
	}

	ticker := time.NewTicker(e.frameInterval)
	defer ticker.Stop()

	var drawErrs int
	for {
		select {
		case <-ctx.Done():
			applog.Debugf("Engine: Context cancelled")
			return

		case ev := <-events:
			switch ev {
			case render.EventClose, render.EventEscape:
				applog.Debugf("Engine: %s event, ending session", ev)
				return
			case render.EventTogglePause:
				e.togglePause()
			}

		case <-ticker.C:
			status := e.src.Status()
			offset := e.src.PlayingOffset()
			if status == source.Stopped {
				applog.Debugf("Engine: Playback stopped at %s", offset)
				return
			}
			if err := v.draw(offset, status == source.Paused); err != nil {
				// The first failure is a warning, the rest are noise.
				if drawErrs == 0 {
					applog.Warnf("Engine: Renderer error: %v", err)
				} else {
					applog.Debugf("Engine: Renderer error: %v", err)
				}
				drawErrs++
			}
			if v.finished(offset) {
				applog.Debugf("Engine: Reached end of track at %s", offset)
				return
			}
		}
	}
}

func (e *Engine) togglePause() {
	var err error
	switch e.src.Status() {
	case source.Playing:
		err = e.src.Pause()
	case source.Paused:
		err = e.src.Play()
	}
	if err != nil {
		applog.Warnf("Engine: Toggling pause failed: %v", err)
	}
}
