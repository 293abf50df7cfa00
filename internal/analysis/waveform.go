// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnsupportedLayout is returned for channel layouts the mono merge does not
// handle: more than two channels, or stereo with a dangling half frame.
var ErrUnsupportedLayout = errors.New("unsupported channel layout")

// MergeChannels reduces interleaved samples to mono. One channel is returned
// as-is; two channels become (left+right)/2 per frame, truncated toward zero.
func MergeChannels(samples []int16, channels int) ([]int16, error) {
	switch channels {
	case 1:
		return samples, nil
	case 2:
		if len(samples)%2 != 0 {
			return nil, fmt.Errorf("%w: odd sample count %d for stereo", ErrUnsupportedLayout, len(samples))
		}
	default:
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedLayout, channels)
	}

	mono := make([]int16, len(samples)/2)
	for i := 0; i < len(samples); i += 2 {
		mono[i/2] = int16((int32(samples[i]) + int32(samples[i+1])) / 2)
	}
	return mono, nil
}

// MapBuffer linearly rescales 16-bit samples onto [low, high] using integer
// arithmetic: low + (s+32768)*(high-low)/65535.
func MapBuffer(mono []int16, high, low int) []int {
	span := high - low
	mapped := make([]int, len(mono))
	for i, s := range mono {
		mapped[i] = low + (int(s)+32768)*span/65535
	}
	return mapped
}

// Waveform is a mapped mono buffer indexed by playback time.
type Waveform struct {
	heights    []int
	sampleRate int
	high, low  int
}

// NewWaveform merges and maps interleaved samples in one step.
func NewWaveform(samples []int16, channels, sampleRate, high, low int) (*Waveform, error) {
	mono, err := MergeChannels(samples, channels)
	if err != nil {
		return nil, err
	}
	return &Waveform{
		heights:    MapBuffer(mono, high, low),
		sampleRate: sampleRate,
		high:       high,
		low:        low,
	}, nil
}

// Len returns the number of mapped samples.
func (w *Waveform) Len() int { return len(w.heights) }

// Bounds returns the high and low ends of the mapped range.
func (w *Waveform) Bounds() (high, low int) { return w.high, w.low }

// HeightAt returns the mapped height at offset × sample rate. ok is false
// when the index is past the end of the buffer.
func (w *Waveform) HeightAt(offset time.Duration) (height int, ok bool) {
	i := SampleIndex(offset, w.sampleRate)
	if i >= len(w.heights) {
		return 0, false
	}
	return w.heights[i], true
}
