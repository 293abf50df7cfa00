// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"time"

	"wavviz/internal/source"
)

// ErrInsufficientData is returned when an analysis window would run past the
// end of the buffer. It is the normal case near the end of a track; the
// caller retries on a later tick.
var ErrInsufficientData = errors.New("insufficient samples for analysis window")

// SampleIndex converts a playback offset into an index at sampleRate.
func SampleIndex(offset time.Duration, sampleRate int) int {
	if offset <= 0 {
		return 0
	}
	return int(offset.Seconds() * float64(sampleRate))
}

// ExtractWindow returns size normalised samples starting at the playback
// offset. It allocates; the worker uses ExtractWindowInto.
func ExtractWindow(pcm *source.PCM, offset time.Duration, size int) ([]float64, error) {
	dst := make([]float64, size)
	if err := ExtractWindowInto(dst, pcm, offset); err != nil {
		return nil, err
	}
	return dst, nil
}

// ExtractWindowInto fills dst with len(dst) samples starting at
// offset × sample rate, each divided by 32768 so values lie in [-1, 1).
// The index runs over the interleaved buffer as-is. Either all of dst is
// written or ErrInsufficientData is returned and dst is left untouched.
func ExtractWindowInto(dst []float64, pcm *source.PCM, offset time.Duration) error {
	samples := pcm.Samples()
	start := SampleIndex(offset, pcm.SampleRate())
	if len(dst) == 0 || start+len(dst) > len(samples) {
		return ErrInsufficientData
	}

	for i, s := range samples[start : start+len(dst)] {
		dst[i] = float64(s) / 32768.0
	}
	return nil
}
