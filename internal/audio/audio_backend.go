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

// Backend abstracts the native audio layer so the engine can be driven by
// PortAudio in production and by a mock in tests without a sound card.
//
// Stream callbacks are invoked on audio-driver threads with interleaved
// float32 frames; all native sample formats converge on this one float
// domain at the stream boundary.
type Backend interface {
	// Initialize the audio subsystem
	Initialize() error

	// Terminate the audio subsystem
	Terminate() error

	// ResolveInput looks up an input device by name; "" selects the default.
	ResolveInput(name string) (DeviceInfo, error)

	// ResolveOutput looks up an output device by name; "" selects the default.
	ResolveOutput(name string) (DeviceInfo, error)

	// OpenInput opens a capture stream delivering interleaved frames to cb.
	OpenInput(dev DeviceInfo, framesPerBuffer int, cb InputCallback) (Stream, error)

	// OpenOutput opens a playback stream filling interleaved frames via cb.
	OpenOutput(dev DeviceInfo, framesPerBuffer int, cb OutputCallback) (Stream, error)
}

// Stream is a running native audio stream. Close is the only supported way
// to stop one; teardown is synchronous from the caller's perspective.
type Stream interface {
	Start() error
	Close() error
}

// InputCallback receives interleaved captured frames. It runs on a real-time
// thread: no allocation, no blocking, no logging.
type InputCallback func(in []float32)

// OutputCallback fills interleaved output frames. Same real-time rules as
// InputCallback.
type OutputCallback func(out []float32)

// DeviceInfo describes a resolved audio device.
type DeviceInfo struct {
	// Name is the backend-native device identifier.
	Name string

	// Channels is the frame width streams on this device will use.
	Channels int

	// SampleRate is the rate streams on this device will run at.
	SampleRate float64
}
