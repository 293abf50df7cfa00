// SPDX-License-Identifier: MIT
package render

import (
	"math"
	"time"

	"wavviz/internal/config"
)

// Ceiling is the bar height above which a bar is flagged red.
const Ceiling = 100.0

// LogScale maps v onto ln(v+1)/ln(maxVal+1). Zero stays zero.
func LogScale(v, maxVal float64) float64 {
	if v == 0 {
		return 0
	}
	return math.Log(v+1) / math.Log(maxVal+1)
}

// BarHeight is the drawn height of a bar for magnitude m against the
// reference ceiling maxRef. Values above Ceiling are not clipped.
func BarHeight(m, maxRef float64) float64 {
	return LogScale(m, maxRef) * 100
}

// OverCeiling reports whether a bar of height h is drawn red.
func OverCeiling(h float64) bool {
	return h > Ceiling
}

// BarColor returns the fill color for a bar of height h.
func BarColor(h float64) Color {
	if OverCeiling(h) {
		return Red
	}
	return Green
}

// LayoutBars places one bar per magnitude, config.BarWidth wide at
// x = i*config.BarSpacing, standing on the bottom edge of a surface of
// surfaceHeight. dst is reused when it has capacity.
func LayoutBars(dst []Bar, mags []float64, maxRef float64, surfaceHeight int) []Bar {
	dst = dst[:0]
	for i, m := range mags {
		h := BarHeight(m, maxRef)
		dst = append(dst, Bar{
			X:         i * config.BarSpacing,
			Y:         float64(surfaceHeight) - h,
			Width:     config.BarWidth,
			Height:    h,
			Magnitude: m,
			Color:     BarColor(h),
		})
	}
	return dst
}

// TextureOrigin is where the waveform texture sits on its surface:
// centred horizontally, a fifth of the free height from the top.
func TextureOrigin(surfaceW, surfaceH, textureW, textureH int) Point {
	return Point{
		X: (surfaceW - textureW) / 2,
		Y: int(float64(surfaceH-textureH) * 0.2),
	}
}

// TimelineY is the vertical position of the seek timeline.
func TimelineY(surfaceH int) int {
	return int(float64(surfaceH) * 0.9)
}

// SeekX returns the horizontal seek marker position. Offset and duration are
// counted in whole seconds, so the marker moves once per second.
func SeekX(surfaceW, textureW int, offset, duration time.Duration) int {
	start := (surfaceW - textureW) / 2
	dur := int(duration.Seconds())
	if dur <= 0 {
		return start
	}
	return start + int(offset.Seconds())*textureW/dur
}

// WaveTrace is the scrolling line of a waveform texture. Each Push shifts
// every point one step left and appends the newest height at the right edge.
type WaveTrace struct {
	ys     []int
	width  int
	center int
}

// NewWaveTrace returns a flat trace across a texture of the given size.
func NewWaveTrace(textureW, textureH int) *WaveTrace {
	t := &WaveTrace{
		ys:     make([]int, textureW),
		width:  textureW,
		center: textureH / 2,
	}
	for i := range t.ys {
		t.ys[i] = t.center
	}
	return t
}

// Push scrolls the trace and records height relative to the centre line.
func (t *WaveTrace) Push(height int) {
	if t.width == 0 {
		return
	}
	copy(t.ys, t.ys[1:])
	t.ys[t.width-1] = t.center + height
}

// Points writes the trace into dst, reusing its capacity.
func (t *WaveTrace) Points(dst []TracePoint) []TracePoint {
	dst = dst[:0]
	for i, y := range t.ys {
		dst = append(dst, TracePoint{X: i, Y: y, Alpha: uint8(i * 255 / t.width)})
	}
	return dst
}
