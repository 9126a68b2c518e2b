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

import "sync/atomic"

// Mic ring buffer capacity: ~100ms at 48kHz. Enough to absorb scheduling
// jitter between the input and output callbacks without audible latency.
const micRingCapacity = 4800

// RingBuffer is a single-producer single-consumer queue of mono samples
// carrying captured mic audio from the input callback to the output
// callback. Neither side ever blocks: Push drops the sample when full,
// Pop yields silence when empty. Indices are monotonically increasing
// atomics; the difference is the fill level.
type RingBuffer struct {
	buf  []float32
	head atomic.Uint64 // read index, advanced only by the consumer
	tail atomic.Uint64 // write index, advanced only by the producer
}

// NewRingBuffer creates a ring buffer with the given capacity in samples.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]float32, capacity)}
}

// Push appends one sample. Returns false when the buffer is full and the
// sample was dropped.
func (r *RingBuffer) Push(sample float32) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(len(r.buf)) {
		return false
	}
	r.buf[tail%uint64(len(r.buf))] = sample
	r.tail.Store(tail + 1)
	return true
}

// Pop removes and returns one sample, or 0 (silence) when empty.
func (r *RingBuffer) Pop() float32 {
	head := r.head.Load()
	if head == r.tail.Load() {
		return 0
	}
	sample := r.buf[head%uint64(len(r.buf))]
	r.head.Store(head + 1)
	return sample
}

// Len returns the number of buffered samples.
func (r *RingBuffer) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the buffer capacity in samples.
func (r *RingBuffer) Cap() int {
	return len(r.buf)
}
