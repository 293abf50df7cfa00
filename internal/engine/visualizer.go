// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"fmt"
	"time"

	"wavviz/internal/analysis"
	"wavviz/internal/config"
	applog "wavviz/internal/log"
	"wavviz/internal/render"
	"wavviz/internal/source"
)

// visualizer is one session's mode-specific half: what runs beside the
// render loop and what a frame looks like.
type visualizer interface {
	// start prepares the session before playback begins.
	start() error
	// draw builds the frame for offset and hands it to the renderer.
	draw(offset time.Duration, paused bool) error
	// finished reports a mode-specific end of session.
	finished(offset time.Duration) bool
	// stop releases everything start acquired. It is safe to call twice.
	stop()
}

func (e *Engine) newVisualizer(mode Mode, pcm *source.PCM) (visualizer, error) {
	switch mode {
	case ModeBars:
		return &spectrumVisualizer{e: e, pcm: pcm}, nil
	case ModeWave:
		return &waveformVisualizer{e: e, pcm: pcm}, nil
	default:
		return nil, fmt.Errorf("unsupported visualization mode %v", mode)
	}
}

// spectrumVisualizer runs an analysis worker that keeps the latest spectrum
// in the engine's slot; the render loop lays it out as bars.
type spectrumVisualizer struct {
	e   *Engine
	pcm *source.PCM

	analyzer *analysis.SpectrumAnalyzer
	mags     []float64
	frame    render.BarsFrame
	stopped  bool
}

func (v *spectrumVisualizer) start() error {
	cfg := v.e.cfg.Analysis
	win, err := analysis.ParseWindowFunc(cfg.FFTWindow)
	if err != nil {
		return err
	}
	v.analyzer, err = analysis.NewSpectrumAnalyzer(analysis.SpectrumConfig{
		WindowSize: cfg.WindowSize,
		Bars:       cfg.Bars,
		Window:     win,
	})
	if err != nil {
		return fmt.Errorf("creating spectrum analyzer: %w", err)
	}

	v.mags = make([]float64, 0, cfg.Bars)
	v.frame = render.BarsFrame{
		Width:    config.BarsWindowWidth,
		Height:   config.BarsWindowHeight,
		Bars:     make([]render.Bar, 0, cfg.Bars),
		Duration: v.pcm.Duration(),
	}
	v.e.spectra.Reset()

	v.e.running.Store(true)
	v.e.wg.Add(1)
	go v.work(v.analyzer, cfg.IdleSleep)
	return nil
}

// work is the analysis worker. It owns the analyzer until it returns.
func (v *spectrumVisualizer) work(analyzer *analysis.SpectrumAnalyzer, idle time.Duration) {
	defer v.e.wg.Done()
	defer analyzer.Close()

	src, pcm := v.e.src, v.pcm
	window := make([]float64, analyzer.WindowSize())
	mags := make([]float64, analyzer.Bars())

	applog.Debugf("Engine: Analysis worker started")
	for v.e.running.Load() {
		if src.Status() != source.Playing {
			time.Sleep(idle)
			continue
		}

		err := analysis.ExtractWindowInto(window, pcm, src.PlayingOffset())
		if errors.Is(err, analysis.ErrInsufficientData) {
			// End of track; the render loop will see the transport stop.
			time.Sleep(idle)
			continue
		}
		if err != nil {
			applog.Errorf("Engine: Extracting analysis window: %v", err)
			time.Sleep(idle)
			continue
		}

		if err := analyzer.AnalyzeInto(mags, window); err != nil {
			applog.Errorf("Engine: Analyzing window: %v", err)
			time.Sleep(idle)
			continue
		}
		v.e.spectra.Store(mags)
	}
	applog.Debugf("Engine: Analysis worker stopped")
}

func (v *spectrumVisualizer) draw(offset time.Duration, paused bool) error {
	v.mags, _ = v.e.spectra.LoadInto(v.mags)

	f := &v.frame
	f.Seq++
	f.Bars = render.LayoutBars(f.Bars, v.mags, v.e.cfg.Analysis.MaxRef, f.Height)
	f.Offset = offset
	f.Paused = paused
	return v.e.renderer.DrawBars(*f)
}

func (v *spectrumVisualizer) finished(time.Duration) bool { return false }

func (v *spectrumVisualizer) stop() {
	if v.stopped {
		return
	}
	v.stopped = true
	v.e.running.Store(false)
	v.e.wg.Wait()
	v.pcm = nil
}

// waveformVisualizer maps the whole track up front; each frame scrolls the
// trace by the height at the current offset.
type waveformVisualizer struct {
	e   *Engine
	pcm *source.PCM

	wave     *analysis.Waveform
	trace    *render.WaveTrace
	duration time.Duration
	frame    render.WaveFrame
}

func (v *waveformVisualizer) start() error {
	tw, th := config.WaveTextureWidth, config.WaveTextureHeight

	wave, err := analysis.NewWaveform(v.pcm.Samples(), v.pcm.Channels(), v.pcm.SampleRate(), th/2, -th/2)
	if err != nil {
		return fmt.Errorf("preparing waveform: %w", err)
	}
	v.wave = wave
	v.trace = render.NewWaveTrace(tw, th)
	v.duration = v.pcm.Duration()

	w, h := config.WaveWindowWidth, config.WaveWindowHeight
	origin := render.TextureOrigin(w, h, tw, th)
	v.frame = render.WaveFrame{
		Width:         w,
		Height:        h,
		Origin:        origin,
		TextureWidth:  tw,
		TextureHeight: th,
		Trace:         make([]render.TracePoint, 0, tw),
		Timeline:      render.Point{X: origin.X, Y: render.TimelineY(h)},
		TimelineWidth: tw,
		Duration:      v.duration,
	}
	applog.Debugf("Engine: Mapped %d waveform samples onto [%d, %d]", wave.Len(), -th/2, th/2)
	return nil
}

func (v *waveformVisualizer) draw(offset time.Duration, paused bool) error {
	// Past the end there is nothing to look up; the trace flattens.
	height := 0
	if offset < v.duration {
		if h, ok := v.wave.HeightAt(offset); ok {
			height = h
		}
	}
	v.trace.Push(height)

	f := &v.frame
	f.Seq++
	f.Trace = v.trace.Points(f.Trace)
	f.Seek = render.Point{
		X: render.SeekX(f.Width, f.TextureWidth, offset, v.duration),
		Y: f.Timeline.Y,
	}
	f.Offset = offset
	f.Paused = paused
	return v.e.renderer.DrawWave(*f)
}

func (v *waveformVisualizer) finished(offset time.Duration) bool {
	return offset >= v.duration
}

func (v *waveformVisualizer) stop() {
	v.pcm = nil
	v.wave = nil
}
