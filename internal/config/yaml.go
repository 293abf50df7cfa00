// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wavviz/internal/analysis"
	applog "wavviz/internal/log"
	"wavviz/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "wavviz.yaml"

// LoadConfig loads configuration from a YAML file specified by path. If path is
// empty, it looks for DefaultConfigFile and falls back to built-in defaults when
// that does not exist either. Environment overrides are applied last, then the
// result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// NormalizeMode maps a visualization mode name or alias (case-insensitive)
// to "bars" or "wave". The empty string means bars.
func NormalizeMode(mode string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "bars", "bar":
		return "bars", nil
	case "wave", "waveform":
		return "wave", nil
	default:
		return "", fmt.Errorf("mode %q must be bars or wave", mode)
	}
}

// Validate checks the configuration for values the engine cannot run with.
// The mode name is normalised in place.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not recognised", c.LogLevel))
	}

	switch c.Audio.Backend {
	case BackendPortAudio, BackendOto, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("audio.backend %q must be one of %s, %s, %s",
			c.Audio.Backend, BackendPortAudio, BackendOto, BackendNone))
	}
	if c.Audio.OutputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.output_device %d is invalid", c.Audio.OutputDevice))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be in (0, %d], got %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer))
	}

	a := c.Analysis
	if !bitint.IsPowerOfTwo(a.WindowSize) || a.WindowSize > MaxWindowSize {
		errs = append(errs, fmt.Errorf("analysis window size must be a power of 2 up to %d, got %d (try %d)",
			MaxWindowSize, a.WindowSize, bitint.NextPowerOfTwo(a.WindowSize)))
	} else if a.Bars <= 0 || a.Bars > a.WindowSize/2+1 {
		errs = append(errs, fmt.Errorf("analysis bars must be in [1, %d], got %d", a.WindowSize/2+1, a.Bars))
	}
	if a.MaxRef <= 0 {
		errs = append(errs, fmt.Errorf("analysis reference ceiling must be positive, got %g", a.MaxRef))
	}
	if a.IdleSleep <= 0 {
		errs = append(errs, fmt.Errorf("analysis.idle_sleep must be positive, got %s", a.IdleSleep))
	}
	if _, err := analysis.ParseWindowFunc(a.FFTWindow); err != nil {
		errs = append(errs, fmt.Errorf("analysis.fft_window: %w", err))
	}

	if mode, err := NormalizeMode(c.Mode); err != nil {
		errs = append(errs, err)
	} else {
		c.Mode = mode
	}

	t := c.Transport
	if t.UDPEnabled {
		if !strings.Contains(t.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address %q appears invalid (missing port?)", t.UDPTargetAddress))
		}
		if t.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if t.WSEnabled && !strings.Contains(t.WSAddress, ":") {
		errs = append(errs, fmt.Errorf("transport.ws_address %q appears invalid (missing port?)", t.WSAddress))
	}

	return errors.Join(errs...)
}

// applyEnvOverrides lets WAVVIZ_* environment variables override the file.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("WAVVIZ_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Debugf("configuration: Overriding log_level from env: %s", val)
	}
	if val, ok := os.LookupEnv("WAVVIZ_BACKEND"); ok {
		c.Audio.Backend = strings.ToLower(val)
		applog.Debugf("configuration: Overriding audio.backend from env: %s", val)
	}

	// WAVVIZ_UDP_* and WAVVIZ_WS_* are specific to the transport layer.
	if val, ok := os.LookupEnv("WAVVIZ_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("WAVVIZ_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("WAVVIZ_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	if val, ok := os.LookupEnv("WAVVIZ_WS_ADDRESS"); ok {
		c.Transport.WSEnabled = true
		c.Transport.WSAddress = val
		applog.Debugf("configuration: Overriding transport.ws_address from env: %s", val)
	}
}
