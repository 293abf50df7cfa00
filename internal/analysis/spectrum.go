// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"strings"

	applog "wavviz/internal/log"
	"wavviz/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to an analysis window before the FFT.
type WindowFunc int

// Enum for available window functions. Rectangular leaves samples untouched.
const (
	Rectangular WindowFunc = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case Rectangular:
		return "Rectangular"
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "rectangular", "none":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// windowCoefficients returns size coefficients for w, or nil for Rectangular.
func windowCoefficients(size int, w WindowFunc) []float64 {
	if w == Rectangular {
		return nil
	}
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		return nil
	}
	return coeffs
}

// SpectrumConfig sizes a SpectrumAnalyzer.
type SpectrumConfig struct {
	WindowSize int        // FFT length N, a power of 2.
	Bars       int        // Output bands, at most N/2+1.
	Window     WindowFunc // Taper, Rectangular for none.
}

// ErrAnalyzerClosed is returned by Analyze after Close.
var ErrAnalyzerClosed = errors.New("spectrum analyzer is closed")

// SpectrumAnalyzer turns an analysis window into banded FFT magnitudes.
// The FFT plan and work buffers are created once; AnalyzeInto does not
// allocate. An analyzer is owned by a single goroutine.
type SpectrumAnalyzer struct {
	cfg      SpectrumConfig
	fft      *fourier.FFT
	binCount int // FFT bins averaged into one bar.

	input  []float64    // Windowed copy of the samples.
	coeffs []complex128 // N/2+1 complex bins.
	taper  []float64    // nil for Rectangular.
}

// NewSpectrumAnalyzer validates cfg and builds the FFT plan.
func NewSpectrumAnalyzer(cfg SpectrumConfig) (*SpectrumAnalyzer, error) {
	if !bitint.IsPowerOfTwo(cfg.WindowSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", cfg.WindowSize)
	}
	bins := cfg.WindowSize/2 + 1
	if cfg.Bars <= 0 || cfg.Bars > bins {
		return nil, fmt.Errorf("bar count must be in [1, %d], got %d", bins, cfg.Bars)
	}

	applog.Debugf("Analysis: Initializing SpectrumAnalyzer (Size: 2^%d, Bars: %d, Bins/Bar: %d, Window: %v)",
		bitint.Log2(cfg.WindowSize), cfg.Bars, bins/cfg.Bars, cfg.Window)

	return &SpectrumAnalyzer{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.WindowSize),
		binCount: bins / cfg.Bars,
		input:    make([]float64, cfg.WindowSize),
		coeffs:   make([]complex128, bins),
		taper:    windowCoefficients(cfg.WindowSize, cfg.Window),
	}, nil
}

// WindowSize returns the FFT length.
func (a *SpectrumAnalyzer) WindowSize() int { return a.cfg.WindowSize }

// Bars returns the number of output bands.
func (a *SpectrumAnalyzer) Bars() int { return a.cfg.Bars }

// Analyze returns a new magnitude spectrum for samples.
func (a *SpectrumAnalyzer) Analyze(samples []float64) ([]float64, error) {
	dst := make([]float64, a.cfg.Bars)
	if err := a.AnalyzeInto(dst, samples); err != nil {
		return nil, err
	}
	return dst, nil
}

// AnalyzeInto writes one mean FFT magnitude per bar into dst. The N/2+1 bins
// are split into Bars groups of (N/2+1)/Bars contiguous bins; bins past
// Bars*binCount are ignored.
func (a *SpectrumAnalyzer) AnalyzeInto(dst, samples []float64) error {
	if a.fft == nil {
		return ErrAnalyzerClosed
	}
	if len(samples) != a.cfg.WindowSize {
		return fmt.Errorf("analysis window has %d samples, want %d", len(samples), a.cfg.WindowSize)
	}
	if len(dst) != a.cfg.Bars {
		return fmt.Errorf("destination has %d bars, want %d", len(dst), a.cfg.Bars)
	}

	if a.taper != nil {
		for i, s := range samples {
			a.input[i] = s * a.taper[i]
		}
	} else {
		copy(a.input, samples)
	}

	a.fft.Coefficients(a.coeffs, a.input)

	for bar := range dst {
		var sum float64
		for _, c := range a.coeffs[bar*a.binCount : (bar+1)*a.binCount] {
			sum += cmplx.Abs(c)
		}
		dst[bar] = sum / float64(a.binCount)
	}
	return nil
}

// Close releases the FFT plan. The analyzer is unusable afterwards.
func (a *SpectrumAnalyzer) Close() error {
	a.fft = nil
	a.input = nil
	a.coeffs = nil
	return nil
}
