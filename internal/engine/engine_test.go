// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"wavviz/internal/analysis"
	"wavviz/internal/config"
	"wavviz/internal/render"
	"wavviz/internal/source"
	"wavviz/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource plays back against the wall clock, speed times faster than
// real time, so sessions finish quickly.
type fakeSource struct {
	mu     sync.Mutex
	speed  float64
	files  map[string]*source.PCM
	pcm    *source.PCM
	status source.Status
	base   time.Duration
	since  time.Time
	pauses int

	// When set, LoadFile signals entered and then waits on release.
	entered, release chan struct{}
}

var _ source.Source = (*fakeSource)(nil)

func newFakeSource(speed float64) *fakeSource {
	return &fakeSource{speed: speed, files: map[string]*source.PCM{}}
}

func (f *fakeSource) LoadFile(path string) error {
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	pcm, ok := f.files[path]
	if !ok {
		var err error
		if pcm, err = source.DecodeWAVFile(path); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pcm, f.status, f.base = pcm, source.Stopped, 0
	return nil
}

// offsetLocked advances the position and stops at the end of the track.
func (f *fakeSource) offsetLocked() time.Duration {
	if f.status != source.Playing {
		return f.base
	}
	off := f.base + time.Duration(float64(time.Since(f.since))*f.speed)
	if dur := f.pcm.Duration(); off >= dur {
		f.status, f.base = source.Stopped, dur
		return dur
	}
	return off
}

func (f *fakeSource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pcm == nil {
		return source.ErrNotLoaded
	}
	if f.status == source.Stopped {
		f.base = 0
	}
	if f.status != source.Playing {
		f.status, f.since = source.Playing, time.Now()
	}
	return nil
}

func (f *fakeSource) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	if f.status == source.Playing {
		f.base = f.offsetLocked()
		if f.status == source.Playing {
			f.status = source.Paused
		}
	}
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.base = source.Stopped, 0
	return nil
}

func (f *fakeSource) Status() source.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsetLocked()
	return f.status
}

func (f *fakeSource) PlayingOffset() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offsetLocked()
}

func (f *fakeSource) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pcm == nil {
		return 0
	}
	return f.pcm.Duration()
}

func (f *fakeSource) PCM() *source.PCM {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pcm
}

func (f *fakeSource) Close() error { return nil }

// recorder keeps copies of every frame drawn.
type recorder struct {
	mu    sync.Mutex
	bars  []render.BarsFrame
	waves []render.WaveFrame
	fail  error
}

func (r *recorder) DrawBars(f render.BarsFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bars = append(r.bars, f.Clone())
	return r.fail
}

func (r *recorder) DrawWave(f render.WaveFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waves = append(r.waves, f.Clone())
	return r.fail
}

func (r *recorder) Close() error { return nil }

type chanInput chan render.Event

func (c chanInput) Events() <-chan render.Event { return c }

func runWithTimeout(t *testing.T, e *Engine, ctx context.Context, mode Mode) error {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- e.Run(ctx, mode) }()
	select {
	case err := <-errc:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func waitForState(t *testing.T, e *Engine, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return e.State() == want },
		2*time.Second, 5*time.Millisecond, "engine never reached %s", want)
}

func TestEngine_SilentFileBarsAreZero(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := testutil.WriteWAV(t, "silence.wav", make([]int16, 2*44100), 1, 44100)
	src := newFakeSource(4)
	rec := &recorder{}
	e := NewEngine(config.NewConfig(), src, rec, nil)

	require.NoError(t, e.LoadFile(path))
	assert.Equal(t, Loaded, e.State())

	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeBars))
	assert.Equal(t, Idle, e.State())

	require.NotEmpty(t, rec.bars)
	assert.Positive(t, e.spectra.Version(), "worker never published a spectrum")
	for _, f := range rec.bars {
		assert.Equal(t, config.BarsWindowWidth, f.Width)
		for _, b := range f.Bars {
			assert.False(t, math.IsNaN(b.Magnitude) || b.Magnitude < 0, "bad magnitude %v", b.Magnitude)
			assert.Zero(t, b.Magnitude)
			assert.Zero(t, b.Height)
			assert.Equal(t, render.Green, b.Color)
		}
	}
	last := rec.bars[len(rec.bars)-1]
	assert.Len(t, last.Bars, config.DefaultBars)

	// The worker is joined: nothing is published after Run returns.
	v := e.spectra.Version()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, v, e.spectra.Version())
	assert.GreaterOrEqual(t, src.pauses, 1, "playback not paused at session end")
}

func TestEngine_CancellingStereoWaveIsFlat(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	samples := testutil.Interleave(testutil.Constant(44100, 1000), testutil.Constant(44100, -1000))
	path := testutil.WriteWAV(t, "cancel.wav", samples, 2, 44100)
	src := newFakeSource(4)
	rec := &recorder{}
	e := NewEngine(config.NewConfig(), src, rec, nil)

	require.NoError(t, e.LoadFile(path))
	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeWave))
	assert.Equal(t, Idle, e.State())

	require.NotEmpty(t, rec.waves)
	mid := config.WaveTextureHeight / 2
	for _, f := range rec.waves {
		require.Len(t, f.Trace, config.WaveTextureWidth)
		for _, p := range f.Trace {
			assert.Equal(t, mid, p.Y)
		}
		assert.Equal(t, render.TimelineY(config.WaveWindowHeight), f.Seek.Y)
	}
	assert.GreaterOrEqual(t, src.PlayingOffset(), src.Duration())
}

func TestEngine_WaveTraceFollowsSignal(t *testing.T) {
	path := testutil.WriteWAV(t, "loud.wav", testutil.Constant(44100, 32767), 1, 44100)
	rec := &recorder{}
	e := NewEngine(config.NewConfig(), newFakeSource(8), rec, nil)

	require.NoError(t, e.LoadFile(path))
	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeWave))

	require.NotEmpty(t, rec.waves)
	first := rec.waves[0].Trace
	assert.Equal(t, config.WaveTextureHeight, first[len(first)-1].Y, "newest point should be at the top of the range")
	assert.Equal(t, config.WaveTextureHeight/2, first[0].Y, "oldest point should still be flat")
}

func TestEngine_LoadFailureStaysIdle(t *testing.T) {
	e := NewEngine(config.NewConfig(), newFakeSource(1), nil, nil)

	err := e.LoadFile("does-not-exist.wav")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "does-not-exist.wav", loadErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, Idle, e.State())

	assert.ErrorIs(t, e.Run(context.Background(), ModeBars), ErrNotLoaded)
}

func TestEngine_StateDuringSlowLoad(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	src := newFakeSource(1)
	src.files["a.wav"] = source.NewPCM(make([]int16, 800), 1, 8000)
	src.entered, src.release = make(chan struct{}), make(chan struct{})
	e := NewEngine(config.NewConfig(), src, nil, nil)

	errc := make(chan error, 1)
	go func() { errc <- e.LoadFile("a.wav") }()
	<-src.entered

	// The decode is blocked; the engine still answers without waiting on it.
	stateC := make(chan State, 1)
	go func() { stateC <- e.State() }()
	select {
	case s := <-stateC:
		assert.Equal(t, Idle, s)
	case <-time.After(time.Second):
		t.Fatal("State blocked behind LoadFile")
	}
	assert.ErrorIs(t, e.LoadFile("a.wav"), ErrBusy)
	assert.ErrorIs(t, e.Run(context.Background(), ModeBars), ErrBusy)

	close(src.release)
	require.NoError(t, <-errc)
	assert.Equal(t, Loaded, e.State())
}

func TestEngine_InvalidFileIsLoadError(t *testing.T) {
	path := t.TempDir() + "/noise.wav"
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF"), 0o644))

	e := NewEngine(config.NewConfig(), newFakeSource(1), nil, nil)
	var loadErr *LoadError
	require.ErrorAs(t, e.LoadFile(path), &loadErr)
	assert.Equal(t, Idle, e.State())
}

func TestEngine_UnsupportedLayoutInWaveMode(t *testing.T) {
	src := newFakeSource(1)
	src.files["quad.wav"] = source.NewPCM(make([]int16, 4*100), 4, 100)
	e := NewEngine(config.NewConfig(), src, nil, nil)

	require.NoError(t, e.LoadFile("quad.wav"))
	err := e.Run(context.Background(), ModeWave)
	assert.ErrorIs(t, err, analysis.ErrUnsupportedLayout)
	assert.Equal(t, Loaded, e.State())
	assert.Equal(t, source.Stopped, src.Status(), "playback must not start")
}

func TestEngine_InputEvents(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	src := newFakeSource(1)
	src.files["long.wav"] = source.NewPCM(make([]int16, 60*8000), 1, 8000)
	in := make(chanInput, 4)
	e := NewEngine(config.NewConfig(), src, &recorder{}, in)
	require.NoError(t, e.LoadFile("long.wav"))

	errc := make(chan error, 1)
	go func() { errc <- e.Run(context.Background(), ModeBars) }()
	waitForState(t, e, Visualizing)

	in <- render.EventTogglePause
	require.Eventually(t, func() bool { return src.Status() == source.Paused }, time.Second, 5*time.Millisecond)
	in <- render.EventTogglePause
	require.Eventually(t, func() bool { return src.Status() == source.Playing }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, e.LoadFile("long.wav"), ErrBusy)
	assert.ErrorIs(t, e.Attach(nil, nil), ErrBusy)
	assert.ErrorIs(t, e.Run(context.Background(), ModeBars), ErrBusy)

	in <- render.EventClose
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close event did not end the session")
	}
	assert.Equal(t, Idle, e.State())
	assert.Equal(t, source.Paused, src.Status())
}

func TestEngine_EscapeEndsWaveSession(t *testing.T) {
	src := newFakeSource(1)
	src.files["long.wav"] = source.NewPCM(make([]int16, 60*8000), 1, 8000)
	in := make(chanInput, 1)
	e := NewEngine(config.NewConfig(), src, nil, in)
	require.NoError(t, e.LoadFile("long.wav"))

	in <- render.EventEscape
	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeWave))
	assert.Less(t, src.PlayingOffset(), time.Second)
}

func TestEngine_ContextCancelEndsSession(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	src := newFakeSource(1)
	src.files["long.wav"] = source.NewPCM(make([]int16, 60*8000), 1, 8000)
	e := NewEngine(config.NewConfig(), src, nil, nil)
	require.NoError(t, e.LoadFile("long.wav"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, runWithTimeout(t, e, ctx, ModeBars))
	assert.Equal(t, Idle, e.State())

	// A finished session can be run again from Loaded.
	require.NoError(t, e.LoadFile("long.wav"))
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	require.NoError(t, runWithTimeout(t, e, ctx2, ModeWave))
}

func TestEngine_AttachBeforeRun(t *testing.T) {
	src := newFakeSource(8)
	src.files["short.wav"] = source.NewPCM(make([]int16, 8000), 1, 8000)
	e := NewEngine(nil, src, nil, nil)
	require.NoError(t, e.LoadFile("short.wav"))

	rec := &recorder{}
	require.NoError(t, e.Attach(rec, nil))
	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeWave))
	assert.NotEmpty(t, rec.waves)
}

func TestEngine_RendererErrorsDoNotEndSession(t *testing.T) {
	src := newFakeSource(8)
	src.files["short.wav"] = source.NewPCM(make([]int16, 8000), 1, 8000)
	rec := &recorder{fail: errors.New("display gone")}
	e := NewEngine(config.NewConfig(), src, rec, nil)
	require.NoError(t, e.LoadFile("short.wav"))

	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeBars))
	assert.Greater(t, len(rec.bars), 1)
}

func TestEngine_WithPlayerAndClockSink(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	path := testutil.WriteWAV(t, "tone.wav", testutil.SineWave(44100/4, 44100, 5512.5, 0.5), 1, 44100)
	player := source.NewPlayer(source.NewClockSink(5 * time.Millisecond))
	defer player.Close()

	cfg := config.NewConfig()
	rec := &recorder{}
	e := NewEngine(cfg, player, rec, nil)
	require.NoError(t, e.LoadFile(path))
	require.NoError(t, runWithTimeout(t, e, context.Background(), ModeBars))

	assert.Equal(t, source.Stopped, player.Status())
	require.Positive(t, e.spectra.Version())

	// 5512.5Hz is bin 64 of a 512 point FFT at 44.1kHz, bar 32 of 128.
	mags, _ := e.spectra.LoadInto(nil)
	peak := 0
	for i, m := range mags {
		if m > mags[peak] {
			peak = i
		}
	}
	assert.Equal(t, 32, peak)
	require.NoError(t, player.Close())
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"bars", ModeBars, true},
		{"bar", ModeBars, true},
		{"WAVE", ModeWave, true},
		{"waveform", ModeWave, true},
		{"", ModeBars, true},
		{"scope", ModeBars, false},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if got != tt.want || (err == nil) != tt.ok {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
	assert.Equal(t, "wave", ModeWave.String())
	assert.Equal(t, "visualizing", Visualizing.String())
}
