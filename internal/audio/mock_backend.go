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
	"sync"
)

// MockBackend implements Backend for testing without hardware dependencies.
// Tests drive the stream callbacks by hand with TickInput/TickOutput, which
// stands in for the audio driver's real-time thread.
type MockBackend struct {
	mu          sync.Mutex
	initialized bool
	streams     []*MockStream
	counter     int

	initError    error
	resolveError error
	openError    error

	inputDevice  DeviceInfo
	outputDevice DeviceInfo
}

// NewMockBackend creates a mock backend with mono 48kHz devices.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		inputDevice:  DeviceInfo{Name: "mock-input", Channels: 1, SampleRate: 48000},
		outputDevice: DeviceInfo{Name: "mock-output", Channels: 1, SampleRate: 48000},
	}
}

// SetInitError configures the backend to fail Initialize.
func (m *MockBackend) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initError = err
}

// SetResolveError configures device resolution to fail.
func (m *MockBackend) SetResolveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveError = err
}

// SetOpenError configures stream opening to fail.
func (m *MockBackend) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openError = err
}

// SetInputDevice overrides the device returned by ResolveInput.
func (m *MockBackend) SetInputDevice(dev DeviceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputDevice = dev
}

// SetOutputDevice overrides the device returned by ResolveOutput.
func (m *MockBackend) SetOutputDevice(dev DeviceInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputDevice = dev
}

// Initialize initializes the mock subsystem.
func (m *MockBackend) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initError != nil {
		return m.initError
	}
	m.initialized = true
	return nil
}

// Terminate terminates the mock subsystem.
func (m *MockBackend) Terminate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	return nil
}

// ResolveInput returns the configured input device.
func (m *MockBackend) ResolveInput(name string) (DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolveError != nil {
		return DeviceInfo{}, m.resolveError
	}
	dev := m.inputDevice
	if name != "" {
		dev.Name = name
	}
	return dev, nil
}

// ResolveOutput returns the configured output device.
func (m *MockBackend) ResolveOutput(name string) (DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolveError != nil {
		return DeviceInfo{}, m.resolveError
	}
	dev := m.outputDevice
	if name != "" {
		dev.Name = name
	}
	return dev, nil
}

// OpenInput opens a mock capture stream.
func (m *MockBackend) OpenInput(dev DeviceInfo, framesPerBuffer int, cb InputCallback) (Stream, error) {
	return m.open(dev, framesPerBuffer, cb, nil)
}

// OpenOutput opens a mock playback stream.
func (m *MockBackend) OpenOutput(dev DeviceInfo, framesPerBuffer int, cb OutputCallback) (Stream, error) {
	return m.open(dev, framesPerBuffer, nil, cb)
}

func (m *MockBackend) open(dev DeviceInfo, framesPerBuffer int, in InputCallback, out OutputCallback) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("mock backend not initialized")
	}
	if m.openError != nil {
		return nil, m.openError
	}

	s := &MockStream{
		id:              m.counter,
		device:          dev,
		framesPerBuffer: framesPerBuffer,
		inputCb:         in,
		outputCb:        out,
	}
	m.counter++
	m.streams = append(m.streams, s)
	return s, nil
}

// Streams returns all streams ever opened, including closed ones.
func (m *MockBackend) Streams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MockStream, len(m.streams))
	copy(out, m.streams)
	return out
}

// OpenStreams returns the streams that are started and not yet closed.
func (m *MockBackend) OpenStreams() []*MockStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*MockStream
	for _, s := range m.streams {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// MockStream implements Stream for testing.
type MockStream struct {
	mu              sync.Mutex
	id              int
	device          DeviceInfo
	framesPerBuffer int
	inputCb         InputCallback
	outputCb        OutputCallback
	started         bool
	closed          bool
}

// Start starts the mock stream.
func (s *MockStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("stream closed")
	}
	s.started = true
	return nil
}

// Close closes the mock stream.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsActive reports whether the stream is started and not closed.
func (s *MockStream) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.closed
}

// IsInput reports whether this is a capture stream.
func (s *MockStream) IsInput() bool {
	return s.inputCb != nil
}

// Device returns the device the stream was opened on.
func (s *MockStream) Device() DeviceInfo {
	return s.device
}

// TickInput delivers one interleaved buffer to the input callback, as the
// audio driver would.
func (s *MockStream) TickInput(in []float32) {
	if s.inputCb != nil && s.IsActive() {
		s.inputCb(in)
	}
}

// TickOutput asks the output callback to fill one interleaved buffer and
// returns it.
func (s *MockStream) TickOutput(frames int) []float32 {
	out := make([]float32, frames*s.device.Channels)
	if s.outputCb != nil && s.IsActive() {
		s.outputCb(out)
	}
	return out
}
