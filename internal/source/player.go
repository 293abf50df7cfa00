// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "wavviz/internal/log"
)

// FillFunc is called by a Sink, usually from its own real-time goroutine, to
// obtain the next interleaved samples. It must fill all of out.
type FillFunc func(out []int16)

// Sink is an audio output backend. Once opened it keeps pulling samples until
// closed; the Player writes silence while it is not playing.
type Sink interface {
	Open(channels, sampleRate int, fill FillFunc) error
	Close() error
}

// BufferedSink is a Sink that queues pulled samples before they are heard.
// Buffered reports how many frames are queued. It must not be called from
// inside the FillFunc.
type BufferedSink interface {
	Sink
	Buffered() int
}

// Player implements Source on top of a decoded in-memory buffer and a Sink.
// With a BufferedSink the playing offset trails the fill position by the
// queued frames, and the end of the track is reached once the queue drains.
type Player struct {
	sink     Sink
	buffered BufferedSink // nil when sink does not queue.

	mu         sync.Mutex // Serialises LoadFile/Close against each other.
	sinkOpen   bool
	sinkFormat [2]int // channels, sample rate the sink was opened with

	pcm    atomic.Pointer[PCM]
	frame  atomic.Int64 // Next frame to hand to the sink.
	status atomic.Int32
}

var _ Source = (*Player)(nil)

// NewPlayer creates a Player writing to sink.
func NewPlayer(sink Sink) *Player {
	p := &Player{sink: sink}
	if b, ok := sink.(BufferedSink); ok {
		p.buffered = b
	}
	return p
}

// LoadFile decodes a WAV file and makes it the current buffer.
func (p *Player) LoadFile(path string) error {
	pcm, err := DecodeWAVFile(path)
	if err != nil {
		return err
	}
	return p.LoadPCM(pcm)
}

// LoadPCM makes pcm the current buffer, reopening the sink if the format
// changed. Playback is stopped and rewound.
func (p *Player) LoadPCM(pcm *PCM) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Store(int32(Stopped))

	format := [2]int{pcm.Channels(), pcm.SampleRate()}
	if p.sinkOpen && p.sinkFormat != format {
		if err := p.sink.Close(); err != nil {
			applog.Warnf("Player: Error closing sink for format change: %v", err)
		}
		p.sinkOpen = false
	}

	p.pcm.Store(pcm)
	p.frame.Store(0)

	if !p.sinkOpen {
		if err := p.sink.Open(pcm.Channels(), pcm.SampleRate(), p.fill); err != nil {
			p.pcm.Store(nil)
			return fmt.Errorf("opening audio output: %w", err)
		}
		p.sinkOpen = true
		p.sinkFormat = format
	}

	applog.Infof("Player: Loaded %d samples (%d ch @ %d Hz, %s)",
		pcm.SampleCount(), pcm.Channels(), pcm.SampleRate(), pcm.Duration())
	return nil
}

// Play starts or resumes playback. Playing a stopped track restarts it.
func (p *Player) Play() error {
	if p.pcm.Load() == nil {
		return ErrNotLoaded
	}
	if Status(p.status.Load()) == Stopped {
		p.frame.Store(0)
	}
	p.status.Store(int32(Playing))
	return nil
}

// Pause holds the playback position. It is a no-op unless playing.
func (p *Player) Pause() error {
	if p.pcm.Load() == nil {
		return ErrNotLoaded
	}
	p.status.CompareAndSwap(int32(Playing), int32(Paused))
	return nil
}

// Stop halts playback and rewinds to the start.
func (p *Player) Stop() error {
	if p.pcm.Load() == nil {
		return ErrNotLoaded
	}
	p.status.Store(int32(Stopped))
	p.frame.Store(0)
	return nil
}

func (p *Player) Status() Status {
	p.settle()
	return Status(p.status.Load())
}

// PlayingOffset returns the position of the audio being heard.
func (p *Player) PlayingOffset() time.Duration {
	pcm := p.pcm.Load()
	if pcm == nil || pcm.SampleRate() <= 0 {
		return 0
	}
	p.settle()
	heard := min(p.heardFrame(), int64(pcm.Frames()))
	return time.Duration(heard) * time.Second / time.Duration(pcm.SampleRate())
}

// heardFrame is the fill position minus what the sink still queues.
func (p *Player) heardFrame() int64 {
	frame := p.frame.Load()
	if p.buffered != nil {
		frame -= int64(p.buffered.Buffered())
	}
	return max(frame, 0)
}

// settle stops a buffered sink's track once its last frame has been heard.
// fill cannot do this itself because it runs under the sink's lock.
func (p *Player) settle() {
	if p.buffered == nil || Status(p.status.Load()) != Playing {
		return
	}
	pcm := p.pcm.Load()
	if pcm != nil && p.heardFrame() >= int64(pcm.Frames()) {
		p.status.CompareAndSwap(int32(Playing), int32(Stopped))
	}
}

func (p *Player) Duration() time.Duration {
	pcm := p.pcm.Load()
	if pcm == nil {
		return 0
	}
	return pcm.Duration()
}

func (p *Player) PCM() *PCM {
	return p.pcm.Load()
}

// Close stops playback and releases the sink.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Store(int32(Stopped))
	if !p.sinkOpen {
		return nil
	}
	p.sinkOpen = false
	return p.sink.Close()
}

// fill is the sink callback. It runs on the audio thread: no locks, no
// allocations.
func (p *Player) fill(out []int16) {
	pcm := p.pcm.Load()
	if pcm == nil || Status(p.status.Load()) != Playing {
		clear(out)
		return
	}

	samples := pcm.Samples()
	channels := pcm.Channels()
	total := int64(pcm.Frames())
	start := min(p.frame.Load(), total) * int64(channels)

	n := copy(out, samples[start:total*int64(channels)])
	n -= n % channels
	clear(out[n:])

	// Past the end the silence still counts, so a buffered sink's queue
	// drains before the track is reported stopped.
	frames := int64(n / channels)
	if p.buffered != nil {
		frames = int64(len(out) / channels)
	}
	if p.frame.Add(frames) >= total && p.buffered == nil {
		p.status.CompareAndSwap(int32(Playing), int32(Stopped))
	}
}
