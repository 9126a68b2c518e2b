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
	"math"
	"sync"
)

// Rise/fall time of the keying envelope. A hard-keyed sine clicks; a ~5ms
// ramp removes the clicks without softening the keying feel.
const envelopeRampSeconds = 0.005

// SidetoneGenerator synthesizes a sine wave gated by an attack/decay
// envelope. NextSample is called once per output sample from the stream
// callback; setters may be called concurrently from the engine goroutine,
// so state is guarded by a mutex which the callback takes once per buffer.
//
// Changing frequency, volume or sample rate never resets the phase or
// envelope, so parameter changes are click-free mid-tone.
type SidetoneGenerator struct {
	mu             sync.Mutex
	phase          float32
	phaseIncrement float32
	sampleRate     float32
	frequency      float32
	volume         float32
	envelope       float32
	attackRate     float32
	decayRate      float32
}

// NewSidetoneGenerator creates a generator for the given frequency (Hz),
// volume (0-1) and sample rate.
func NewSidetoneGenerator(frequency, volume, sampleRate float32) *SidetoneGenerator {
	g := &SidetoneGenerator{
		frequency: frequency,
		volume:    clampUnit(volume),
	}
	g.setSampleRateLocked(sampleRate)
	return g
}

// NextSample advances the generator by one sample. The envelope ramps toward
// 1 while keyDown is true and toward 0 otherwise; the output is
// sin(phase) * envelope * volume.
func (g *SidetoneGenerator) NextSample(keyDown bool) float32 {
	if keyDown {
		g.envelope += g.attackRate
		if g.envelope > 1 {
			g.envelope = 1
		}
	} else {
		g.envelope -= g.decayRate
		if g.envelope < 0 {
			g.envelope = 0
		}
	}

	sample := float32(math.Sin(float64(g.phase))) * g.envelope * g.volume

	g.phase += g.phaseIncrement
	if g.phase >= 2*math.Pi {
		g.phase -= 2 * math.Pi
	}

	return sample
}

// Lock acquires the generator for a stream callback's buffer-long run of
// NextSample calls.
func (g *SidetoneGenerator) Lock() { g.mu.Lock() }

// Unlock releases the generator after a callback buffer.
func (g *SidetoneGenerator) Unlock() { g.mu.Unlock() }

// SetFrequency updates the tone frequency without a phase discontinuity.
func (g *SidetoneGenerator) SetFrequency(frequency float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frequency = frequency
	g.phaseIncrement = 2 * math.Pi * frequency / g.sampleRate
}

// SetVolume updates the output volume, clamped to [0, 1].
func (g *SidetoneGenerator) SetVolume(volume float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.volume = clampUnit(volume)
}

// SetSampleRate recomputes the phase increment and envelope ramp rates for a
// new sample rate. Phase and envelope are left alone.
func (g *SidetoneGenerator) SetSampleRate(sampleRate float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.setSampleRateLocked(sampleRate)
}

func (g *SidetoneGenerator) setSampleRateLocked(sampleRate float32) {
	g.sampleRate = sampleRate
	g.phaseIncrement = 2 * math.Pi * g.frequency / sampleRate
	ramp := 1 / (envelopeRampSeconds * sampleRate)
	g.attackRate = ramp
	g.decayRate = ramp
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
