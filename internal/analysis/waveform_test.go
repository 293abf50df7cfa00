// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wavviz/internal/testutil"
)

func TestMergeChannels(t *testing.T) {
	t.Run("mono is identity", func(t *testing.T) {
		in := []int16{1, -2, 3, math.MaxInt16, math.MinInt16}
		out, err := MergeChannels(in, 1)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("stereo averages pairs", func(t *testing.T) {
		in := []int16{
			100, 200,
			-1, 0, // truncates toward zero
			3, 0,
			math.MaxInt16, math.MaxInt16,
			math.MinInt16, math.MinInt16,
			1000, -1000,
		}
		out, err := MergeChannels(in, 2)
		require.NoError(t, err)
		assert.Equal(t, []int16{150, 0, 1, math.MaxInt16, math.MinInt16, 0}, out)
	})

	t.Run("empty stereo", func(t *testing.T) {
		out, err := MergeChannels(nil, 2)
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	for name, tc := range map[string]struct {
		samples  []int16
		channels int
	}{
		"odd stereo count": {[]int16{1, 2, 3}, 2},
		"three channels":   {[]int16{1, 2, 3, 4, 5, 6}, 3},
		"zero channels":    {[]int16{1}, 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := MergeChannels(tc.samples, tc.channels)
			assert.True(t, errors.Is(err, ErrUnsupportedLayout), "err = %v", err)
		})
	}
}

func TestMapBuffer(t *testing.T) {
	got := MapBuffer([]int16{0, math.MinInt16, math.MaxInt16}, 10, -10)
	assert.Equal(t, []int{0, -10, 10}, got)

	// Texture mapping used by the wave view.
	got = MapBuffer([]int16{math.MinInt16, 0, math.MaxInt16}, 105, -105)
	assert.Equal(t, []int{-105, 0, 105}, got)

	for _, v := range MapBuffer(testutil.ComplexWave(1024, 44100), 10, -10) {
		assert.True(t, v >= -10 && v <= 10, "mapped value %d out of range", v)
	}
}

func TestNewWaveform_CancellingStereoIsFlat(t *testing.T) {
	left := testutil.Constant(100, 1000)
	right := testutil.Constant(100, -1000)

	w, err := NewWaveform(testutil.Interleave(left, right), 2, 100, 105, -105)
	require.NoError(t, err)
	require.Equal(t, 100, w.Len())

	for i := range w.Len() {
		h, ok := w.HeightAt(time.Duration(i) * 10 * time.Millisecond)
		require.True(t, ok)
		assert.Equal(t, 0, h)
	}
}

func TestWaveform_HeightAtBounds(t *testing.T) {
	mono := []int16{math.MinInt16, 0, math.MaxInt16, 0}
	w, err := NewWaveform(mono, 1, 4, 10, -10)
	require.NoError(t, err)

	high, low := w.Bounds()
	assert.Equal(t, 10, high)
	assert.Equal(t, -10, low)

	tests := []struct {
		offset time.Duration
		want   int
		ok     bool
	}{
		{0, -10, true},
		{250 * time.Millisecond, 0, true},
		{500 * time.Millisecond, 10, true},
		{750 * time.Millisecond, 0, true},
		{time.Second, 0, false},
		{time.Hour, 0, false},
	}
	for _, tt := range tests {
		h, ok := w.HeightAt(tt.offset)
		assert.Equal(t, tt.ok, ok, "offset %s", tt.offset)
		assert.Equal(t, tt.want, h, "offset %s", tt.offset)
	}
}

func TestNewWaveform_RejectsLayout(t *testing.T) {
	_, err := NewWaveform(make([]int16, 12), 4, 44100, 105, -105)
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}
