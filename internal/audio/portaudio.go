package audio

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// PortAudio enumerates devices through the PortAudio host APIs.
// InitPortAudio must have been called before use.
type PortAudio struct{}

var _ Enumerator = PortAudio{}

// InitPortAudio initializes the PortAudio library and returns its teardown.
func InitPortAudio() (func(), error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return func() {
		if err := portaudio.Terminate(); err != nil {
			slog.Debug("PortAudio terminate failed", "error", err)
		}
	}, nil
}

// Devices returns all PortAudio devices. Index is the enumeration position.
func (PortAudio) Devices() ([]Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, fromInfo(i, info))
	}
	return devices, nil
}

// DefaultOutput returns the host's default output device
func (PortAudio) DefaultOutput() (Device, error) {
	def, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("no default output device: %w", err)
	}

	infos, err := portaudio.Devices()
	if err != nil {
		return Device{}, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}
	for i, info := range infos {
		if info == def || (info.Name == def.Name && sameHostAPI(info, def)) {
			return fromInfo(i, info), nil
		}
	}
	return Device{}, fmt.Errorf("default output %q not in device list: %w", def.Name, ErrDeviceNotFound)
}

// LookupPortAudio returns the live PortAudio handle for a Device.
func LookupPortAudio(dev Device) (*portaudio.DeviceInfo, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}
	if dev.Index >= 0 && dev.Index < len(infos) && infos[dev.Index].Name == dev.Name {
		return infos[dev.Index], nil
	}
	// Enumeration order shifted since the handle was resolved
	for _, info := range infos {
		if info.Name == dev.Name {
			return info, nil
		}
	}
	return nil, fmt.Errorf("device %s: %w", dev, ErrDeviceNotFound)
}

func fromInfo(index int, info *portaudio.DeviceInfo) Device {
	dev := Device{
		Index:             index,
		Name:              info.Name,
		MaxInputChannels:  info.MaxInputChannels,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
	}
	if info.HostApi != nil {
		dev.HostAPI = info.HostApi.Name
	}
	return dev
}

func sameHostAPI(a, b *portaudio.DeviceInfo) bool {
	if a.HostApi == nil || b.HostApi == nil {
		return a.HostApi == b.HostApi
	}
	return a.HostApi.Name == b.HostApi.Name
}
