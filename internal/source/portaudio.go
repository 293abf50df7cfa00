// SPDX-License-Identifier: MIT
package source

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	applog "wavviz/internal/log"

	"github.com/gordonklaus/portaudio"
)

// MinDeviceID selects the host's default output device.
const MinDeviceID = -1

// Initialize sets up the PortAudio subsystem.
// This must be called before any PortAudio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// Device represents an audio output device.
type Device struct {
	ID                int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
}

// paDevicesFunc is swapped out by tests.
var paDevicesFunc = portaudio.Devices

// OutputDevices returns every device that can play audio. IDs are PortAudio
// device indices.
func OutputDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{
			ID:                i,
			Name:              info.Name,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowOutputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighOutputLatency.Seconds() * 1000,
		})
	}
	return devices, nil
}

// ListDevices writes a human readable list of output devices to w.
func ListDevices(w io.Writer) error {
	devices, err := OutputDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Output Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s\n", d.ID, d.Name)
		fmt.Fprintf(w, "    Output channels: %d\n", d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n", d.LowLatencyMs, d.HighLatencyMs)
	}
	return nil
}

// outputDevice resolves a device ID, MinDeviceID meaning the host default.
func outputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == MinDeviceID {
		return portaudio.DefaultOutputDevice()
	}

	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxOutputChannels <= 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// PortAudioSink plays through a PortAudio callback stream.
type PortAudioSink struct {
	deviceID        int
	framesPerBuffer int
	stream          *portaudio.Stream
}

var _ Sink = (*PortAudioSink)(nil)

// NewPortAudioSink creates a sink for the given device. Initialize must have
// been called.
func NewPortAudioSink(deviceID, framesPerBuffer int) *PortAudioSink {
	return &PortAudioSink{deviceID: deviceID, framesPerBuffer: framesPerBuffer}
}

func (s *PortAudioSink) Open(channels, sampleRate int, fill FillFunc) error {
	if s.stream != nil {
		return errors.New("portaudio sink: already open")
	}

	device, err := outputDevice(s.deviceID)
	if err != nil {
		return err
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: channels,
			Device:   device,
			Latency:  device.DefaultLowOutputLatency,
		},
		FramesPerBuffer: s.framesPerBuffer,
		SampleRate:      float64(sampleRate),
	}

	stream, err := portaudio.OpenStream(params, func(out []int16) {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		fill(out)
	})
	if err != nil {
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}
	s.stream = stream

	applog.Infof("PortAudioSink: Streaming to %s (%d ch @ %d Hz, %d frames/buffer)",
		device.Name, channels, sampleRate, s.framesPerBuffer)
	return nil
}

func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}
