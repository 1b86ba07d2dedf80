package sink

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
)

// Device describes one enumerated PortAudio output-capable device.
type Device struct {
	Index int
	Name  string
}

// ListOutputDevices enumerates every device PortAudio reports with at
// least one output channel, for the client's list-available-speakers
// subcommand and for matching --speaker by name.
func ListOutputDevices() ([]Device, error) {
	count, err := portaudio.GetDeviceCount()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %v", ErrNoDevice, err)
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		info, err := portaudio.GetDeviceInfo(i)
		if err != nil {
			continue
		}
		if info.MaxOutputChannels <= 0 {
			continue
		}
		devices = append(devices, Device{Index: i, Name: info.Name})
	}
	return devices, nil
}

// DefaultOutputDevice returns the platform's default output device.
func DefaultOutputDevice() (Device, error) {
	idx, err := portaudio.GetDefaultOutputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("%w: default device: %v", ErrNoDevice, err)
	}
	info, err := portaudio.GetDeviceInfo(idx)
	if err != nil {
		return Device{}, fmt.Errorf("%w: default device info: %v", ErrNoDevice, err)
	}
	return Device{Index: idx, Name: info.Name}, nil
}

// FindOutputDeviceByName returns the device whose name matches name
// exactly (case-sensitive).
func FindOutputDeviceByName(name string) (Device, error) {
	devices, err := ListOutputDevices()
	if err != nil {
		return Device{}, err
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: no output device named %q", ErrNoDevice, name)
}
