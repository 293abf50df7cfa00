// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAVFile opens path and decodes it with DecodeWAV.
func DecodeWAVFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pcm, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return pcm, nil
}

// DecodeWAV reads a whole integer PCM WAV stream into memory, converting 8, 24
// and 32-bit samples to signed 16-bit.
func DecodeWAV(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	channels := int(dec.NumChans)
	sampleRate := int(dec.SampleRate)
	bitDepth := int(dec.BitDepth)
	if channels <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWAV, channels, sampleRate)
	}

	var toInt16 func(int) int16
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned.
		toInt16 = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		toInt16 = func(v int) int16 { return int16(v) }
	case 24:
		toInt16 = func(v int) int16 { return int16(v >> 8) }
	case 32:
		toInt16 = func(v int) int16 { return int16(v >> 16) }
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v)
	}

	return NewPCM(samples, channels, sampleRate), nil
}
