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
	"sync/atomic"
)

// atomicFloat32 is a float32 shared between stream callbacks and arbitrary
// control-plane goroutines. Stored as raw bits in a uint32 so all access is
// a single lock-free atomic op.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (a *atomicFloat32) Load() float32 {
	return math.Float32frombits(a.bits.Load())
}

func (a *atomicFloat32) Store(v float32) {
	a.bits.Store(math.Float32bits(v))
}

// LevelMeter tracks a signal level with asymmetric smoothing: a peak above
// the current level jumps the meter immediately, anything lower decays it
// geometrically. The result reacts instantly to onset but falls visibly
// instead of flickering to zero. Update runs inside real-time callbacks;
// Level is read from any goroutine.
type LevelMeter struct {
	level atomicFloat32
}

// Update feeds one buffer's peak into the meter.
func (m *LevelMeter) Update(peak float32) {
	current := m.level.Load()
	if peak > current {
		m.level.Store(peak)
	} else {
		m.level.Store(current*0.95 + peak*0.05)
	}
}

// Level returns the smoothed level, nominally in [0, 1].
func (m *LevelMeter) Level() float32 {
	return m.level.Load()
}

// Reset zeroes the meter.
func (m *LevelMeter) Reset() {
	m.level.Store(0)
}
