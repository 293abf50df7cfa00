// Package testutil provides signal generators, WAV fixtures and goroutine
// leak checks shared by the package tests.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/goleak"
)

// VerifyNoLeaks should be deferred at the start of tests that spawn goroutines.
func VerifyNoLeaks(t *testing.T, opts ...goleak.Option) {
	t.Helper()
	goleak.VerifyNone(t, opts...)
}

// SineWave returns size mono samples of a sine at frequency Hz, scaled to
// amplitude (0..1) of full scale.
func SineWave(size, sampleRate int, frequency, amplitude float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / float64(sampleRate)
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * amplitude)
	}
	return buffer
}

// ComplexWave returns a 440Hz fundamental with two harmonics.
func ComplexWave(size, sampleRate int) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		tm := float64(i) / float64(sampleRate)
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = int16(signal * math.MaxInt16 * 0.9)
	}
	return buffer
}

// Constant returns size copies of v.
func Constant(size int, v int16) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		buffer[i] = v
	}
	return buffer
}

// Interleave zips per-channel sample slices of equal length into one
// interleaved buffer.
func Interleave(channels ...[]int16) []int16 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]int16, 0, frames*len(channels))
	for i := range frames {
		for _, ch := range channels {
			out = append(out, ch[i])
		}
	}
	return out
}

// WriteWAV encodes interleaved 16-bit samples into a WAV file in a temporary
// directory and returns its path.
func WriteWAV(t *testing.T, name string, samples []int16, channels, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalise %s: %v", path, err)
	}
	return path
}
