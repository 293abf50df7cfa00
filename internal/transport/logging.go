// SPDX-License-Identifier: MIT
package transport

import (
	"sync/atomic"

	applog "wavviz/internal/log"
	"wavviz/internal/render"
)

// LoggingTransport is a Renderer that logs a summary of every Nth frame at
// debug level. It stands in for a display in headless sessions.
type LoggingTransport struct {
	every  uint64
	frames atomic.Uint64
}

var _ render.Renderer = (*LoggingTransport)(nil)

// NewLoggingTransport logs one frame out of every (at least 1).
func NewLoggingTransport(every int) *LoggingTransport {
	if every < 1 {
		every = 1
	}
	applog.Infof("Transport: Using LoggingTransport (every %d frames)", every)
	return &LoggingTransport{every: uint64(every)}
}

func (lt *LoggingTransport) take() bool {
	return (lt.frames.Add(1)-1)%lt.every == 0
}

func (lt *LoggingTransport) DrawBars(f render.BarsFrame) error {
	if !lt.take() {
		return nil
	}
	var peak render.Bar
	over := 0
	for _, b := range f.Bars {
		if b.Height > peak.Height {
			peak = b
		}
		if b.Color == render.Red {
			over++
		}
	}
	applog.Debugf("LoggingTransport: bars #%d at %s: %d bars, peak x=%d h=%.1f, %d over ceiling",
		f.Seq, f.Offset, len(f.Bars), peak.X, peak.Height, over)
	return nil
}

func (lt *LoggingTransport) DrawWave(f render.WaveFrame) error {
	if !lt.take() {
		return nil
	}
	newest := 0
	if n := len(f.Trace); n > 0 {
		newest = f.Trace[n-1].Y
	}
	applog.Debugf("LoggingTransport: wave #%d at %s: newest y=%d, seek x=%d",
		f.Seq, f.Offset, newest, f.Seek.X)
	return nil
}

// Frames returns how many frames were drawn.
func (lt *LoggingTransport) Frames() uint64 { return lt.frames.Load() }

func (lt *LoggingTransport) Close() error {
	applog.Debugf("LoggingTransport: Closed after %d frames", lt.frames.Load())
	return nil
}
