// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "wavviz.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Analysis.WindowSize != DefaultWindowSize || cfg.Analysis.Bars != DefaultBars {
		t.Errorf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  backend: oto
analysis:
  fft_window: hann
  idle_sleep: 25ms
transport:
  udp_enabled: true
  udp_target_address: "10.0.0.2:7000"
  udp_send_interval: 33ms
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Audio.Backend != BackendOto {
		t.Errorf("backend = %q, want oto", cfg.Audio.Backend)
	}
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("frames per buffer default lost: %d", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Analysis.FFTWindow != "hann" || cfg.Analysis.IdleSleep != 25*time.Millisecond {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" ||
		cfg.Transport.UDPSendInterval != 33*time.Millisecond {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	// Geometry-like analysis sizing is not read from the file.
	if cfg.Analysis.WindowSize != DefaultWindowSize {
		t.Errorf("window size = %d, want %d", cfg.Analysis.WindowSize, DefaultWindowSize)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("WAVVIZ_BACKEND", "NONE")
	t.Setenv("WAVVIZ_UDP_ENABLED", "true")
	t.Setenv("WAVVIZ_UDP_SEND_INTERVAL", "50ms")
	t.Setenv("WAVVIZ_WS_ADDRESS", "127.0.0.1:9999")

	cfg, err := LoadConfig(writeTempConfig(t, "log_level: warn\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.Backend != BackendNone {
		t.Errorf("backend = %q, want none", cfg.Audio.Backend)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 50*time.Millisecond {
		t.Errorf("udp overrides not applied: %+v", cfg.Transport)
	}
	if !cfg.Transport.WSEnabled || cfg.Transport.WSAddress != "127.0.0.1:9999" {
		t.Errorf("ws overrides not applied: %+v", cfg.Transport)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"window not pow2", func(c *Config) { c.Analysis.WindowSize = 500 }, "try 512"},
		{"too many bars", func(c *Config) { c.Analysis.Bars = 300 }, "analysis bars"},
		{"zero idle", func(c *Config) { c.Analysis.IdleSleep = 0 }, "idle_sleep"},
		{"bad mode", func(c *Config) { c.Mode = "scope" }, "mode"},
		{"bad fft window", func(c *Config) { c.Analysis.FFTWindow = "kaiser" }, "analysis.fft_window"},
		{"hann window", func(c *Config) { c.Analysis.FFTWindow = "Hann" }, ""},
		{"udp no port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}, "udp_target_address"},
		{"small window", func(c *Config) {
			c.Analysis.WindowSize = 16
			c.Analysis.Bars = 4
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NormalizesMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"bars", "bars"},
		{"bar", "bars"},
		{"", "bars"},
		{"WAVE", "wave"},
		{"waveform", "wave"},
		{" Wave ", "wave"},
	}
	for _, tt := range tests {
		cfg := NewConfig()
		cfg.Mode = tt.in
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with mode %q: %v", tt.in, err)
			continue
		}
		if cfg.Mode != tt.want {
			t.Errorf("mode %q normalised to %q, want %q", tt.in, cfg.Mode, tt.want)
		}
	}
}
