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
	"io"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Max capture length: 5 seconds at 48kHz.
const maxCaptureSamples = 48000 * 5

// CaptureBuffer stores mixed output samples for the mic/sidetone test
// feature. The output callback appends with TryAppend, which skips the
// sample instead of blocking when the control plane holds the lock; the
// playback callback reads a chunk per buffer the same way. Everything else
// (Clear, Len, WAV export) takes the lock normally off the real-time path.
type CaptureBuffer struct {
	mu      sync.Mutex
	samples []float32
	max     int
}

// NewCaptureBuffer creates a capture buffer capped at maxSamples.
func NewCaptureBuffer(maxSamples int) *CaptureBuffer {
	return &CaptureBuffer{
		samples: make([]float32, 0, maxSamples),
		max:     maxSamples,
	}
}

// TryAppend appends one sample if the lock is free and the cap not reached.
// Returns false when the sample was skipped; callers never retry, a dropped
// recording sample is acceptable where a stalled callback is not.
func (c *CaptureBuffer) TryAppend(sample float32) bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()

	if len(c.samples) >= c.max {
		return false
	}
	c.samples = append(c.samples, sample)
	return true
}

// TryReadAt copies up to len(dst) samples starting at pos into dst. Returns
// the number copied and false if the lock was contended (dst is untouched).
func (c *CaptureBuffer) TryReadAt(pos int, dst []float32) (int, bool) {
	if !c.mu.TryLock() {
		return 0, false
	}
	defer c.mu.Unlock()

	if pos >= len(c.samples) {
		return 0, true
	}
	n := copy(dst, c.samples[pos:])
	return n, true
}

// Len returns the number of captured samples.
func (c *CaptureBuffer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Clear empties the buffer, keeping its allocation.
func (c *CaptureBuffer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = c.samples[:0]
}

// WriteWAV encodes the captured audio as 16-bit mono PCM.
func (c *CaptureBuffer) WriteWAV(w io.WriteSeeker, sampleRate int) error {
	c.mu.Lock()
	data := make([]int, len(c.samples))
	for i, s := range c.samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(s * 32767)
	}
	c.mu.Unlock()

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize recording: %w", err)
	}
	return nil
}
