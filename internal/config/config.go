// SPDX-License-Identifier: MIT
package config

import "time"

// Display geometry and frame rate. These are fixed for the terminal and
// exported frames alike and are not part of the config file.
const (
	BarsWindowWidth  = 1000 // Bar mode surface width.
	BarsWindowHeight = 600  // Bar mode surface height.
	WaveWindowWidth  = 600  // Waveform mode surface width.
	WaveWindowHeight = 600  // Waveform mode surface height.
	FrameRate        = 60   // Render loop iterations per second.

	// The waveform trace occupies 80% x 35% of its surface.
	WaveTextureWidth  = WaveWindowWidth * 8 / 10
	WaveTextureHeight = WaveWindowHeight * 35 / 100

	BarWidth   = 15 // Width of one spectrum bar.
	BarSpacing = 16 // Horizontal step between bar origins.
)

// Core configuration constants that define the boundaries and defaults.
const (
	DefaultWindowSize = 512                   // Samples per analysis window (power of 2).
	DefaultBars       = 128                   // Spectrum bars per frame.
	DefaultFFTWindow  = "rectangular"         // No taper, matches raw band averaging.
	DefaultIdleSleep  = 10 * time.Millisecond // Worker back-off while not playing.
	DefaultMaxRef     = 1.0                   // Log-scale reference ceiling.

	DefaultBackend         = "portaudio"
	DefaultOutputDevice    = MinDeviceID
	DefaultFramesPerBuffer = 512
	DefaultLogLevel        = "info"
	DefaultMode            = "bars"

	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60Hz
	DefaultWSAddress        = ":8080"

	MinDeviceID     = -1 // -1 represents the system default device
	MaxWindowSize   = 1 << 16
	MaxBufferFrames = 8192
)

// Supported playback backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendNone      = "none"
)

// Config holds all runtime configuration. Display geometry is not in here,
// see the constants above.
type Config struct {
	LogLevel string `yaml:"log_level"`          // debug, info, warn, error.
	LogFile  string `yaml:"log_file,omitempty"` // Log destination while the TUI is active ("" discards).

	Audio     AudioConfig     `yaml:"audio"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Transport TransportConfig `yaml:"transport"`

	// Set by the command line only.
	Command  string `yaml:"-"` // One-off command ("devices") instead of a session.
	File     string `yaml:"-"` // WAV file to visualize.
	Mode     string `yaml:"-"` // "bars" or "wave".
	Headless bool   `yaml:"-"` // Skip the terminal renderer.
	TUIList  bool   `yaml:"-"` // Interactive device list.
}

// AudioConfig selects and tunes the playback backend.
type AudioConfig struct {
	Backend         string `yaml:"backend"`           // portaudio, oto or none.
	OutputDevice    int    `yaml:"output_device"`     // PortAudio device index (-1 for default).
	FramesPerBuffer int    `yaml:"frames_per_buffer"` // PortAudio callback size.
}

// AnalysisConfig sizes the spectrum analysis. WindowSize and Bars are fixed
// for a build but live here so tests can run with small windows.
type AnalysisConfig struct {
	WindowSize int           `yaml:"-"`
	Bars       int           `yaml:"-"`
	MaxRef     float64       `yaml:"-"`
	FFTWindow  string        `yaml:"fft_window"` // Taper applied before the FFT.
	IdleSleep  time.Duration `yaml:"idle_sleep"` // Worker back-off while not playing.
}

// TransportConfig holds settings for exporting rendered frames over the network.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	WSEnabled        bool          `yaml:"ws_enabled"`
	WSAddress        string        `yaml:"ws_address"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Mode:     DefaultMode,
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
		Analysis: AnalysisConfig{
			WindowSize: DefaultWindowSize,
			Bars:       DefaultBars,
			MaxRef:     DefaultMaxRef,
			FFTWindow:  DefaultFFTWindow,
			IdleSleep:  DefaultIdleSleep,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WSAddress:        DefaultWSAddress,
		},
	}
}
