// SPDX-License-Identifier: MIT
/*
Package render defines what a visualization session draws and where user
input comes from.

The engine builds one frame per render tick and hands it to a Renderer. Frame
slices are owned by the engine and reused on the next tick: a Renderer that
keeps a frame beyond the Draw call must copy it (BarsFrame.Clone,
WaveFrame.Clone).
*/
package render

import (
	"errors"
	"time"
)

// Event is a user input relevant to a running session.
type Event int

const (
	EventClose       Event = iota // Display closed; ends any session.
	EventEscape                   // Escape key; ends a waveform session.
	EventTogglePause              // Space; pause or resume playback.
)

func (e Event) String() string {
	switch e {
	case EventClose:
		return "close"
	case EventEscape:
		return "escape"
	case EventTogglePause:
		return "toggle-pause"
	default:
		return "unknown"
	}
}

// Input delivers user events. The channel is never closed while a session
// may still read from it.
type Input interface {
	Events() <-chan Event
}

// Renderer draws frames. Draw calls come from the render loop goroutine
// only; Close may be called once the loop has returned.
type Renderer interface {
	DrawBars(f BarsFrame) error
	DrawWave(f WaveFrame) error
	Close() error
}

// Color of a drawn element.
type Color int

const (
	Green Color = iota
	Red
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "green"
}

// Point is a surface coordinate, origin top-left.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Bar is one spectrum bar on the surface. Y is its top edge; bars grow up
// from the bottom of the surface.
type Bar struct {
	X         int     `json:"x"`
	Y         float64 `json:"y"`
	Width     int     `json:"w"`
	Height    float64 `json:"h"`
	Magnitude float64 `json:"m"`
	Color     Color   `json:"c"`
}

// BarsFrame is one frame of the spectrum view.
type BarsFrame struct {
	Seq      uint64        `json:"seq"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Bars     []Bar         `json:"bars"`
	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
	Paused   bool          `json:"paused"`
}

// Clone returns a copy that does not share the bar slice.
func (f BarsFrame) Clone() BarsFrame {
	f.Bars = append([]Bar(nil), f.Bars...)
	return f
}

// TracePoint is one vertex of the waveform line strip, relative to the
// texture origin. Alpha ramps from 0 at the oldest point to 255.
type TracePoint struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Alpha uint8 `json:"a"`
}

// WaveFrame is one frame of the scrolling waveform view.
type WaveFrame struct {
	Seq    uint64 `json:"seq"`
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Texture is the trace area, placed at Origin on the surface.
	Origin        Point        `json:"origin"`
	TextureWidth  int          `json:"texture_width"`
	TextureHeight int          `json:"texture_height"`
	Trace         []TracePoint `json:"trace"`

	// Timeline is a horizontal line of TimelineWidth starting at Timeline;
	// Seek marks the playback position on it.
	Timeline      Point `json:"timeline"`
	TimelineWidth int   `json:"timeline_width"`
	Seek          Point `json:"seek"`

	Offset   time.Duration `json:"offset"`
	Duration time.Duration `json:"duration"`
	Paused   bool          `json:"paused"`
}

// Clone returns a copy that does not share the trace slice.
func (f WaveFrame) Clone() WaveFrame {
	f.Trace = append([]TracePoint(nil), f.Trace...)
	return f
}

// Multi fans frames out to several renderers. A failing renderer does not
// stop the others; errors are joined.
type Multi []Renderer

var _ Renderer = Multi(nil)

func (m Multi) DrawBars(f BarsFrame) error {
	var errs []error
	for _, r := range m {
		if err := r.DrawBars(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) DrawWave(f WaveFrame) error {
	var errs []error
	for _, r := range m {
		if err := r.DrawWave(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard is a Renderer that draws nothing.
type Discard struct{}

func (Discard) DrawBars(BarsFrame) error { return nil }
func (Discard) DrawWave(WaveFrame) error { return nil }
func (Discard) Close() error             { return nil }
