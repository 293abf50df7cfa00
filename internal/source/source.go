// SPDX-License-Identifier: MIT
/*
Package source provides the playback side of a visualization session: WAV
decoding into an in-memory PCM buffer, a read-only view of that buffer, and a
Player that moves a playback position through it while an output Sink pulls
the audio.

Thread Safety:
  - Status and position are atomics, read by the render loop and the analysis
    worker while the sink callback advances them.
  - A PCM view is immutable; it stays valid after a reload, it is only no
    longer the buffer being played.
*/
package source

import (
	"errors"
	"time"
)

// Status is the transport state of a Source.
type Status int32

const (
	Stopped Status = iota
	Paused
	Playing
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

var (
	ErrNotLoaded       = errors.New("no file loaded")
	ErrInvalidWAV      = errors.New("not a valid WAV file")
	ErrUnsupportedWAV  = errors.New("unsupported WAV encoding")
	ErrSampleRateFixed = errors.New("output already running at a different sample rate")
)

// Source is the playback transport and decoded-sample provider the
// visualization engine drives.
type Source interface {
	// LoadFile decodes path and replaces the current buffer. Playback is
	// stopped and rewound.
	LoadFile(path string) error

	Play() error
	Pause() error
	Stop() error

	Status() Status

	// PlayingOffset is the playback position since the start of the track.
	PlayingOffset() time.Duration

	// Duration is the total length of the loaded track.
	Duration() time.Duration

	// PCM returns the read-only view of the decoded buffer, nil before the
	// first successful LoadFile.
	PCM() *PCM

	Close() error
}

// PCM is a read-only view of decoded signed 16-bit samples, interleaved by
// channel. The samples are never modified after construction.
type PCM struct {
	samples    []int16
	channels   int
	sampleRate int
}

// NewPCM wraps interleaved samples. The slice is retained, not copied; the
// caller must not modify it afterwards.
func NewPCM(samples []int16, channels, sampleRate int) *PCM {
	return &PCM{samples: samples, channels: channels, sampleRate: sampleRate}
}

// Samples returns the interleaved samples. Callers must treat the slice as
// read-only.
func (p *PCM) Samples() []int16 { return p.samples }

// Channels returns the channel count.
func (p *PCM) Channels() int { return p.channels }

// SampleRate returns frames per second.
func (p *PCM) SampleRate() int { return p.sampleRate }

// SampleCount returns the total number of interleaved samples.
func (p *PCM) SampleCount() int { return len(p.samples) }

// Frames returns the number of sample frames (samples per channel).
func (p *PCM) Frames() int {
	if p.channels <= 0 {
		return 0
	}
	return len(p.samples) / p.channels
}

// Duration returns the playing time of the buffer.
func (p *PCM) Duration() time.Duration {
	if p.sampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.sampleRate)
}
