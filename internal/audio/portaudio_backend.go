/*
 * This file is part of Vail Zoomer (https://github.com/vailzoomer/vail-zoomer-go).
 * Copyright (C) 2025 Vail Zoomer Contributors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Streams wider than stereo add latency and buy nothing for a mono mix.
const maxStreamChannels = 2

// PortAudioBackend implements Backend using the real PortAudio library.
type PortAudioBackend struct {
	initialized bool
}

// NewPortAudioBackend creates a new PortAudio backend.
func NewPortAudioBackend() *PortAudioBackend {
	return &PortAudioBackend{}
}

// Initialize initializes the PortAudio subsystem.
func (p *PortAudioBackend) Initialize() error {
	if p.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	p.initialized = true
	return nil
}

// Terminate terminates the PortAudio subsystem.
func (p *PortAudioBackend) Terminate() error {
	if !p.initialized {
		return nil
	}

	err := portaudio.Terminate()
	p.initialized = false
	return err
}

// ResolveInput finds an input device by name, falling back to the default
// input device when name is empty.
func (p *PortAudioBackend) ResolveInput(name string) (DeviceInfo, error) {
	dev, err := p.resolve(name, true)
	if err != nil {
		return DeviceInfo{}, err
	}
	channels := dev.MaxInputChannels
	if channels > maxStreamChannels {
		channels = maxStreamChannels
	}
	return DeviceInfo{
		Name:       dev.Name,
		Channels:   channels,
		SampleRate: dev.DefaultSampleRate,
	}, nil
}

// ResolveOutput finds an output device by name, falling back to the default
// output device when name is empty.
func (p *PortAudioBackend) ResolveOutput(name string) (DeviceInfo, error) {
	dev, err := p.resolve(name, false)
	if err != nil {
		return DeviceInfo{}, err
	}
	channels := dev.MaxOutputChannels
	if channels > maxStreamChannels {
		channels = maxStreamChannels
	}
	return DeviceInfo{
		Name:       dev.Name,
		Channels:   channels,
		SampleRate: dev.DefaultSampleRate,
	}, nil
}

// OpenInput opens a capture stream on the resolved device.
func (p *PortAudioBackend) OpenInput(dev DeviceInfo, framesPerBuffer int, cb InputCallback) (Stream, error) {
	if !p.initialized {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	info, err := p.lookup(dev.Name, true)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(info, nil)
	params.Input.Channels = dev.Channels
	params.Output.Channels = 0
	params.SampleRate = dev.SampleRate
	params.FramesPerBuffer = framesPerBuffer

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		cb(in)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	return &portAudioStream{stream: stream}, nil
}

// OpenOutput opens a playback stream on the resolved device. Low-latency
// parameters are used throughout: keying feel depends on sidetone latency.
func (p *PortAudioBackend) OpenOutput(dev DeviceInfo, framesPerBuffer int, cb OutputCallback) (Stream, error) {
	if !p.initialized {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	info, err := p.lookup(dev.Name, false)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(nil, info)
	params.Input.Channels = 0
	params.Output.Channels = dev.Channels
	params.SampleRate = dev.SampleRate
	params.FramesPerBuffer = framesPerBuffer

	stream, err := portaudio.OpenStream(params, func(out []float32) {
		cb(out)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	return &portAudioStream{stream: stream}, nil
}

// resolve matches a device by exact name first, then by prefix, then falls
// back to the host default. Empty name selects the default directly.
func (p *PortAudioBackend) resolve(name string, input bool) (*portaudio.DeviceInfo, error) {
	if !p.initialized {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	if name == "" {
		return p.defaultDevice(input)
	}

	dev, err := p.lookup(name, input)
	if err == nil {
		return dev, nil
	}
	return p.defaultDevice(input)
}

func (p *PortAudioBackend) lookup(name string, input bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	var match *portaudio.DeviceInfo
	for _, d := range devices {
		if input && d.MaxInputChannels == 0 {
			continue
		}
		if !input && d.MaxOutputChannels == 0 {
			continue
		}
		if d.Name == name {
			return d, nil
		}
		if match == nil && strings.HasPrefix(d.Name, name) {
			match = d
		}
	}

	if match != nil {
		return match, nil
	}
	return nil, fmt.Errorf("device not found: %s", name)
}

func (p *PortAudioBackend) defaultDevice(input bool) (*portaudio.DeviceInfo, error) {
	if input {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return dev, nil
	}
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("no default output device: %w", err)
	}
	return dev, nil
}

// portAudioStream wraps a portaudio stream as a Stream.
type portAudioStream struct {
	stream *portaudio.Stream
}

func (s *portAudioStream) Start() error {
	if s.stream == nil {
		return fmt.Errorf("stream is nil")
	}
	return s.stream.Start()
}

func (s *portAudioStream) Close() error {
	if s.stream == nil {
		return nil
	}
	_ = s.stream.Stop()
	return s.stream.Close()
}
