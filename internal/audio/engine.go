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

// Package audio is the real-time engine of the keyer companion: it
// synthesizes the sidetone, mixes in the microphone, routes the mix to the
// configured output devices and meters the result.
//
// The engine splits into a control plane and an engine goroutine. The
// Engine handle is freely shareable: it holds only a command channel and
// atomics, so any goroutine may issue commands or read levels. The engine
// goroutine exclusively owns the native streams and processes commands in
// arrival order. Stream callbacks run on audio-driver threads and touch
// shared state only through atomics or try-locks; they never block.
package audio

import (
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// Hold the mic duck for ~250ms at 48kHz after key up, so keying clicks
	// and breath noise don't leak into the mix right after sending.
	duckingHoldSamples = 12000

	defaultSampleRate = 48000

	framesPerBuffer = 256

	commandQueueSize = 16
)

// Route determines which output streams receive the synthesized sidetone.
type Route uint32

const (
	// RouteOutputOnly sends the sidetone only to the primary output
	// (the virtual cable feeding the conferencing app), silent locally.
	RouteOutputOnly Route = iota

	// RouteLocalOnly sends the sidetone only to the local monitor device.
	RouteLocalOnly

	// RouteBoth sends the sidetone to both.
	RouteBoth
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSetFrequency
	cmdSetVolume
	cmdSetLocalVolume
	cmdSetMicVolume
	cmdSetSidetoneRoute
	cmdStartTestRecording
	cmdStopTestRecording
	cmdStartPlayback
	cmdStopPlayback
	cmdShutdown
)

type command struct {
	kind         commandKind
	value        float32
	route        Route
	outputDevice string
	inputDevice  string
	localDevice  string
	device       string
}

// Engine is the control-plane handle for the audio engine. Create one per
// session with New and release it with Close; all methods are safe to call
// from any goroutine.
type Engine struct {
	cmds chan command
	done chan struct{}

	backend Backend
	log     *zap.Logger

	keyDown        atomic.Bool
	frequency      atomicFloat32
	volume         atomicFloat32
	localVolume    atomicFloat32
	micVolume      atomicFloat32
	route          atomic.Uint32
	duckingEnabled atomic.Bool
	duckingHold    atomic.Uint32
	recording      atomic.Bool
	playing        atomic.Bool
	playbackPos    atomic.Int64
	sampleRate     atomic.Uint32

	micLevel    LevelMeter
	outputLevel LevelMeter

	capture *CaptureBuffer
}

// New creates the engine handle and starts the engine goroutine. The
// backend is initialized here and terminated when the engine shuts down.
func New(backend Backend, frequency, volume float32, logger *zap.Logger) (*Engine, error) {
	if err := backend.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio backend: %w", err)
	}

	e := &Engine{
		cmds:    make(chan command, commandQueueSize),
		done:    make(chan struct{}),
		backend: backend,
		log:     logger,
		capture: NewCaptureBuffer(maxCaptureSamples),
	}
	e.frequency.Store(frequency)
	e.volume.Store(volume)
	e.localVolume.Store(0.3)
	e.micVolume.Store(1.0)
	e.sampleRate.Store(defaultSampleRate)

	go e.run(frequency, volume)
	return e, nil
}

// send enqueues a command without blocking. A full queue drops the command.
func (e *Engine) send(c command) bool {
	select {
	case e.cmds <- c:
		return true
	default:
		return false
	}
}

// Start tears down any running streams and builds fresh ones for the given
// devices and route. Empty device names select system defaults. A missing
// mic or a failed stream is degraded mode, not an error; only a jammed
// engine queue fails.
func (e *Engine) Start(outputDevice, inputDevice, localDevice string, route Route) error {
	e.route.Store(uint32(route))
	if !e.send(command{
		kind:         cmdStart,
		route:        route,
		outputDevice: outputDevice,
		inputDevice:  inputDevice,
		localDevice:  localDevice,
	}) {
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// Stop tears down the input, primary and local streams. Calling Stop when
// already idle is a no-op.
func (e *Engine) Stop() error {
	if !e.send(command{kind: cmdStop}) {
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// KeyDown raises the key flag; the sidetone envelope opens on the next
// sample. The ducking hold is re-armed on every edge.
func (e *Engine) KeyDown() {
	e.keyDown.Store(true)
	e.duckingHold.Store(duckingHoldSamples)
}

// KeyUp lowers the key flag and starts the ducking hold countdown.
func (e *Engine) KeyUp() {
	e.keyDown.Store(false)
	e.duckingHold.Store(duckingHoldSamples)
}

// IsKeyDown reports the current key state.
func (e *Engine) IsKeyDown() bool {
	return e.keyDown.Load()
}

// SetMicDucking enables or disables muting the mic around key transitions.
func (e *Engine) SetMicDucking(enabled bool) {
	e.duckingEnabled.Store(enabled)
}

// SetSidetoneFrequency updates the tone frequency live, without a restart.
func (e *Engine) SetSidetoneFrequency(frequency float32) {
	e.frequency.Store(frequency)
	e.send(command{kind: cmdSetFrequency, value: frequency})
}

// SetSidetoneVolume updates the primary-output sidetone volume.
func (e *Engine) SetSidetoneVolume(volume float32) {
	e.volume.Store(volume)
	e.send(command{kind: cmdSetVolume, value: volume})
}

// SetLocalSidetoneVolume updates the local-monitor sidetone volume.
func (e *Engine) SetLocalSidetoneVolume(volume float32) {
	e.localVolume.Store(volume)
	e.send(command{kind: cmdSetLocalVolume, value: volume})
}

// SetMicVolume updates the mic gain. The output callback reads the atomic
// directly, so the command is a formality for API symmetry.
func (e *Engine) SetMicVolume(volume float32) {
	e.micVolume.Store(volume)
	e.send(command{kind: cmdSetMicVolume, value: volume})
}

// MicLevel returns the smoothed mic input level (0 to 1).
func (e *Engine) MicLevel() float32 {
	return e.micLevel.Level()
}

// OutputLevel returns the smoothed mixed output level (0 to 1).
func (e *Engine) OutputLevel() float32 {
	return e.outputLevel.Level()
}

// SetSidetoneRoute records the route. Routing decides which streams exist,
// so the change takes effect on the next Start, not live.
func (e *Engine) SetSidetoneRoute(route Route) {
	e.route.Store(uint32(route))
	e.send(command{kind: cmdSetSidetoneRoute, route: route})
}

// SidetoneRoute returns the configured route.
func (e *Engine) SidetoneRoute() Route {
	return Route(e.route.Load())
}

// StartTestRecording clears the capture buffer and begins appending every
// mixed output sample, up to the 5 second cap.
func (e *Engine) StartTestRecording() error {
	// Clear before flipping the flag so the callback never appends to a
	// buffer holding a previous take.
	e.capture.Clear()
	e.recording.Store(true)
	if !e.send(command{kind: cmdStartTestRecording}) {
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// StopTestRecording stops appending to the capture buffer.
func (e *Engine) StopTestRecording() error {
	e.recording.Store(false)
	if !e.send(command{kind: cmdStopTestRecording}) {
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// StartPlayback plays the capture buffer on the given device ("" = default).
func (e *Engine) StartPlayback(device string) error {
	e.playbackPos.Store(0)
	e.playing.Store(true)
	if !e.send(command{kind: cmdStartPlayback, device: device}) {
		e.playing.Store(false)
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// StopPlayback tears down the playback stream.
func (e *Engine) StopPlayback() error {
	e.playing.Store(false)
	if !e.send(command{kind: cmdStopPlayback}) {
		return fmt.Errorf("audio engine not responding")
	}
	return nil
}

// IsRecording reports whether the capture buffer is being filled.
func (e *Engine) IsRecording() bool {
	return e.recording.Load()
}

// IsPlaying reports whether playback is running. Playback stops by itself
// when it reaches the end of the capture buffer.
func (e *Engine) IsPlaying() bool {
	return e.playing.Load()
}

// RecordingSamples returns the number of captured samples.
func (e *Engine) RecordingSamples() int {
	return e.capture.Len()
}

// SampleRate returns the engine's current sample rate.
func (e *Engine) SampleRate() uint32 {
	return e.sampleRate.Load()
}

// RecordingDuration returns the capture length in seconds.
func (e *Engine) RecordingDuration() float32 {
	rate := e.SampleRate()
	if rate == 0 {
		return 0
	}
	return float32(e.capture.Len()) / float32(rate)
}

// PlaybackProgress returns playback position as a fraction of the capture.
func (e *Engine) PlaybackProgress() float32 {
	total := e.capture.Len()
	if total == 0 {
		return 0
	}
	p := float32(e.playbackPos.Load()) / float32(total)
	if p > 1 {
		p = 1
	}
	return p
}

// WriteRecordingWAV exports the capture buffer as 16-bit mono PCM.
func (e *Engine) WriteRecordingWAV(w io.WriteSeeker) error {
	return e.capture.WriteWAV(w, int(e.SampleRate()))
}

// Close shuts the engine down: all streams are torn down, the engine
// goroutine exits and the backend is terminated. Blocks until done.
func (e *Engine) Close() {
	e.cmds <- command{kind: cmdShutdown}
	<-e.done
}

// run is the engine goroutine. It exclusively owns the native streams and
// both sidetone generators and consumes commands strictly in order.
func (e *Engine) run(frequency, volume float32) {
	defer close(e.done)

	// Independent generators for the mix and the local monitor: their
	// phases are free to drift, they only share the key signal.
	sidetone := NewSidetoneGenerator(frequency, volume, defaultSampleRate)
	localSidetone := NewSidetoneGenerator(frequency, e.localVolume.Load(), defaultSampleRate)

	var inputStream, outputStream, localStream, playbackStream Stream

	closeStream := func(s *Stream) {
		if *s != nil {
			if err := (*s).Close(); err != nil {
				e.log.Warn("stream close failed", zap.Error(err))
			}
			*s = nil
		}
	}

	for cmd := range e.cmds {
		switch cmd.kind {
		case cmdStart:
			e.log.Info("starting audio",
				zap.String("output", cmd.outputDevice),
				zap.String("input", cmd.inputDevice),
				zap.String("local", cmd.localDevice),
				zap.Uint32("route", uint32(cmd.route)))

			closeStream(&inputStream)
			closeStream(&outputStream)
			closeStream(&localStream)

			// Fresh ring buffer per session so no stale mic audio
			// survives a restart.
			ring := NewRingBuffer(micRingCapacity)

			inputStream = e.openInput(cmd.inputDevice, ring)

			includeSidetone := cmd.route == RouteOutputOnly || cmd.route == RouteBoth
			outputStream = e.openOutput(cmd.outputDevice, sidetone, ring, includeSidetone)

			if cmd.route == RouteLocalOnly || cmd.route == RouteBoth {
				localStream = e.openLocal(cmd.localDevice, localSidetone)
			}

		case cmdStop:
			closeStream(&inputStream)
			closeStream(&outputStream)
			closeStream(&localStream)

		case cmdSetFrequency:
			sidetone.SetFrequency(cmd.value)
			localSidetone.SetFrequency(cmd.value)

		case cmdSetVolume:
			sidetone.SetVolume(cmd.value)

		case cmdSetLocalVolume:
			localSidetone.SetVolume(cmd.value)

		case cmdSetMicVolume:
			// Read live from the atomic in the output callback.

		case cmdSetSidetoneRoute:
			// Routing is stream topology; it takes effect on next Start.

		case cmdStartTestRecording:
			e.log.Info("test recording started")

		case cmdStopTestRecording:
			e.log.Info("test recording stopped",
				zap.Int("samples", e.capture.Len()))

		case cmdStartPlayback:
			closeStream(&playbackStream)
			playbackStream = e.openPlayback(cmd.device)
			if playbackStream == nil {
				e.playing.Store(false)
			}

		case cmdStopPlayback:
			closeStream(&playbackStream)

		case cmdShutdown:
			closeStream(&inputStream)
			closeStream(&outputStream)
			closeStream(&localStream)
			closeStream(&playbackStream)
			if err := e.backend.Terminate(); err != nil {
				e.log.Warn("backend terminate failed", zap.Error(err))
			}
			return
		}
	}
}

// openInput opens the mic capture stream. Absence of a mic is non-fatal:
// the engine continues with a permanently empty ring buffer.
func (e *Engine) openInput(device string, ring *RingBuffer) Stream {
	dev, err := e.backend.ResolveInput(device)
	if err != nil {
		e.log.Warn("no mic available", zap.Error(err))
		return nil
	}

	stream, err := e.backend.OpenInput(dev, framesPerBuffer, e.inputCallback(ring, dev.Channels))
	if err != nil {
		e.log.Warn("failed to open mic input", zap.String("device", dev.Name), zap.Error(err))
		return nil
	}
	if err := stream.Start(); err != nil {
		e.log.Warn("failed to start mic input", zap.String("device", dev.Name), zap.Error(err))
		_ = stream.Close()
		return nil
	}

	e.log.Info("mic input started", zap.String("device", dev.Name))
	return stream
}

// openOutput opens the primary output stream carrying the mic/sidetone mix.
func (e *Engine) openOutput(device string, gen *SidetoneGenerator, ring *RingBuffer, includeSidetone bool) Stream {
	dev, err := e.backend.ResolveOutput(device)
	if err != nil {
		e.log.Warn("no output device", zap.Error(err))
		return nil
	}

	gen.SetSampleRate(float32(dev.SampleRate))
	e.sampleRate.Store(uint32(dev.SampleRate))

	stream, err := e.backend.OpenOutput(dev, framesPerBuffer, e.mixCallback(gen, ring, includeSidetone, dev.Channels))
	if err != nil {
		e.log.Warn("failed to open audio output", zap.String("device", dev.Name), zap.Error(err))
		return nil
	}
	if err := stream.Start(); err != nil {
		e.log.Warn("failed to start audio output", zap.String("device", dev.Name), zap.Error(err))
		_ = stream.Close()
		return nil
	}

	e.log.Info("audio output started",
		zap.String("device", dev.Name),
		zap.Bool("sidetone", includeSidetone))
	return stream
}

// openLocal opens the sidetone-only local monitor stream.
func (e *Engine) openLocal(device string, gen *SidetoneGenerator) Stream {
	dev, err := e.backend.ResolveOutput(device)
	if err != nil {
		e.log.Warn("no local output device", zap.Error(err))
		return nil
	}

	gen.SetSampleRate(float32(dev.SampleRate))

	stream, err := e.backend.OpenOutput(dev, framesPerBuffer, e.localCallback(gen, dev.Channels))
	if err != nil {
		e.log.Warn("failed to open local output", zap.String("device", dev.Name), zap.Error(err))
		return nil
	}
	if err := stream.Start(); err != nil {
		e.log.Warn("failed to start local output", zap.String("device", dev.Name), zap.Error(err))
		_ = stream.Close()
		return nil
	}

	e.log.Info("local sidetone output started", zap.String("device", dev.Name))
	return stream
}

// openPlayback opens the test-recording playback stream.
func (e *Engine) openPlayback(device string) Stream {
	dev, err := e.backend.ResolveOutput(device)
	if err != nil {
		e.log.Warn("no playback device", zap.Error(err))
		return nil
	}

	stream, err := e.backend.OpenOutput(dev, framesPerBuffer, e.playbackCallback(dev.Channels))
	if err != nil {
		e.log.Warn("failed to open playback stream", zap.String("device", dev.Name), zap.Error(err))
		return nil
	}
	if err := stream.Start(); err != nil {
		e.log.Warn("failed to start playback", zap.String("device", dev.Name), zap.Error(err))
		_ = stream.Close()
		return nil
	}

	e.log.Info("playback started", zap.String("device", dev.Name))
	return stream
}

// inputCallback converts captured frames to mono, feeds the ring buffer and
// meters the mic.
func (e *Engine) inputCallback(ring *RingBuffer, channels int) InputCallback {
	return func(in []float32) {
		var peak float32

		for i := 0; i+channels <= len(in); i += channels {
			var sum float32
			for c := 0; c < channels; c++ {
				sum += in[i+c]
			}
			sample := sum / float32(channels)

			// Full buffer: drop the newest sample, never wait.
			ring.Push(sample)

			if a := abs(sample); a > peak {
				peak = a
			}
		}

		e.micLevel.Update(peak)
	}
}

// mixCallback produces the primary output: sidetone plus ducked mic,
// clamped, optionally captured for the test recording.
func (e *Engine) mixCallback(gen *SidetoneGenerator, ring *RingBuffer, includeSidetone bool, channels int) OutputCallback {
	return func(out []float32) {
		keyDown := e.keyDown.Load()
		micVol := e.micVolume.Load()
		ducking := e.duckingEnabled.Load()
		recording := e.recording.Load()

		var peak float32
		var frames uint32

		gen.Lock()
		for i := 0; i+channels <= len(out); i += channels {
			frames++

			// Advance the generator even when routed away, so
			// re-enabling the route later can't cause a phase jump.
			tone := gen.NextSample(keyDown)
			if !includeSidetone {
				tone = 0
			}

			raw := ring.Pop()

			shouldDuck := ducking && (keyDown || e.duckingHold.Load() > 0)
			var mic float32
			if !shouldDuck {
				mic = raw * micVol
			}

			mixed := tone + mic
			if mixed > 1 {
				mixed = 1
			} else if mixed < -1 {
				mixed = -1
			}

			if recording {
				// Best-effort: a skipped sample beats a stalled callback.
				e.capture.TryAppend(mixed)
			}

			if a := abs(mixed); a > peak {
				peak = a
			}

			for c := 0; c < channels; c++ {
				out[i+c] = mixed
			}
		}
		gen.Unlock()

		if ducking && !keyDown {
			if hold := e.duckingHold.Load(); hold > 0 {
				if hold <= frames {
					e.duckingHold.Store(0)
				} else {
					e.duckingHold.Store(hold - frames)
				}
			}
		}

		e.outputLevel.Update(peak)
	}
}

// localCallback produces the sidetone-only local monitor signal.
func (e *Engine) localCallback(gen *SidetoneGenerator, channels int) OutputCallback {
	return func(out []float32) {
		keyDown := e.keyDown.Load()

		gen.Lock()
		for i := 0; i+channels <= len(out); i += channels {
			tone := gen.NextSample(keyDown)
			for c := 0; c < channels; c++ {
				out[i+c] = tone
			}
		}
		gen.Unlock()
	}
}

// playbackCallback streams the capture buffer sequentially, going silent
// and clearing the playing flag at the end.
func (e *Engine) playbackCallback(channels int) OutputCallback {
	scratch := make([]float32, framesPerBuffer)
	return func(out []float32) {
		for i := range out {
			out[i] = 0
		}

		if !e.playing.Load() {
			return
		}

		frames := len(out) / channels
		if frames > len(scratch) {
			frames = len(scratch)
		}

		pos := int(e.playbackPos.Load())
		n, ok := e.capture.TryReadAt(pos, scratch[:frames])
		if !ok {
			// Contended: one silent buffer, position unchanged.
			return
		}

		for f := 0; f < n; f++ {
			for c := 0; c < channels; c++ {
				out[f*channels+c] = scratch[f]
			}
		}
		e.playbackPos.Store(int64(pos + n))

		if n < frames {
			e.playing.Store(false)
		}
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
