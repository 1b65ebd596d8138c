package audio

import (
	"fmt"
	"log/slog"
	"strings"
)

// Device describes one enumerated audio device. It is only valid for the
// run that enumerated it.
type Device struct {
	Index             int     `json:"index" yaml:"index"`
	Name              string  `json:"name" yaml:"name"`
	HostAPI           string  `json:"host_api,omitempty" yaml:"host_api,omitempty"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
}

func (d Device) String() string {
	return fmt.Sprintf("[%d] %s", d.Index, d.Name)
}

// Direction selects input or output capability when searching devices.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Enumerator queries the audio subsystem for its devices.
type Enumerator interface {
	// Devices returns all devices in OS enumeration order
	Devices() ([]Device, error)

	// DefaultOutput returns the system default output device
	DefaultOutput() (Device, error)
}

// Directory finds devices by name. Every lookup re-enumerates, since the
// hardware can change between calls.
type Directory struct {
	enum Enumerator
}

// NewDirectory creates a Directory backed by enum
func NewDirectory(enum Enumerator) *Directory {
	return &Directory{enum: enum}
}

// List returns all devices currently known to the audio subsystem
func (d *Directory) List() ([]Device, error) {
	devices, err := d.enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}
	return devices, nil
}

// FindOutput returns the first output-capable device whose name contains substr.
func (d *Directory) FindOutput(substr string) (Device, error) {
	return d.find(substr, DirectionOutput)
}

// FindInput returns the first input-capable device whose name contains substr.
func (d *Directory) FindInput(substr string) (Device, error) {
	return d.find(substr, DirectionInput)
}

// DefaultOutput returns the system default output device
func (d *Directory) DefaultOutput() (Device, error) {
	dev, err := d.enum.DefaultOutput()
	if err != nil {
		return Device{}, fmt.Errorf("default output device: %w", err)
	}
	return dev, nil
}

func (d *Directory) find(substr string, dir Direction) (Device, error) {
	devices, err := d.List()
	if err != nil {
		return Device{}, err
	}

	if dev, ok := Match(devices, substr, dir); ok {
		slog.Info("Audio device found", "direction", dir, "query", substr, "device", dev.String())
		return dev, nil
	}

	slog.Warn("Audio device not found", "direction", dir, "query", substr, "enumerated", len(devices))
	return Device{}, fmt.Errorf("%s device matching %q: %w", dir, substr, ErrDeviceNotFound)
}

// Match does a case-insensitive substring match restricted to devices
// exposing channels in the requested direction. First match wins.
func Match(devices []Device, substr string, dir Direction) (Device, bool) {
	needle := strings.ToLower(strings.TrimSpace(substr))
	if needle == "" {
		return Device{}, false
	}

	for _, dev := range devices {
		switch dir {
		case DirectionInput:
			if dev.MaxInputChannels <= 0 {
				continue
			}
		case DirectionOutput:
			if dev.MaxOutputChannels <= 0 {
				continue
			}
		}
		if strings.Contains(strings.ToLower(dev.Name), needle) {
			return dev, true
		}
	}

	return Device{}, false
}
