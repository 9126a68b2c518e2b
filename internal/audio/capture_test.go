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
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestCaptureBufferAppendAndRead(t *testing.T) {
	c := NewCaptureBuffer(100)

	for i := 0; i < 10; i++ {
		if !c.TryAppend(float32(i) / 10) {
			t.Fatalf("append %d failed on uncontended buffer", i)
		}
	}
	if c.Len() != 10 {
		t.Fatalf("Len = %d, want 10", c.Len())
	}

	dst := make([]float32, 4)
	n, ok := c.TryReadAt(2, dst)
	if !ok {
		t.Fatal("read failed on uncontended buffer")
	}
	if n != 4 {
		t.Fatalf("read %d samples, want 4", n)
	}
	for i, v := range dst {
		want := float32(i+2) / 10
		if v != want {
			t.Errorf("dst[%d] = %f, want %f", i, v, want)
		}
	}
}

func TestCaptureBufferStopsAtCap(t *testing.T) {
	c := NewCaptureBuffer(5)

	for i := 0; i < 5; i++ {
		if !c.TryAppend(0.1) {
			t.Fatalf("append %d failed below cap", i)
		}
	}
	if c.TryAppend(0.1) {
		t.Error("append succeeded past the cap")
	}
	if c.Len() != 5 {
		t.Errorf("Len = %d, want 5", c.Len())
	}
}

func TestCaptureBufferReadPastEnd(t *testing.T) {
	c := NewCaptureBuffer(10)
	c.TryAppend(0.5)
	c.TryAppend(0.6)

	dst := make([]float32, 4)

	n, ok := c.TryReadAt(1, dst)
	if !ok || n != 1 {
		t.Errorf("partial read = (%d, %v), want (1, true)", n, ok)
	}

	n, ok = c.TryReadAt(2, dst)
	if !ok || n != 0 {
		t.Errorf("read at end = (%d, %v), want (0, true)", n, ok)
	}

	n, ok = c.TryReadAt(100, dst)
	if !ok || n != 0 {
		t.Errorf("read past end = (%d, %v), want (0, true)", n, ok)
	}
}

func TestCaptureBufferClearKeepsCap(t *testing.T) {
	c := NewCaptureBuffer(3)

	for i := 0; i < 3; i++ {
		c.TryAppend(0.2)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after clear = %d, want 0", c.Len())
	}

	if !c.TryAppend(0.3) {
		t.Error("append failed after clear")
	}
}

func TestCaptureBufferWAVExport(t *testing.T) {
	c := NewCaptureBuffer(100)
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0, 2.0, -2.0}
	for _, s := range samples {
		c.TryAppend(s)
	}

	path := filepath.Join(t.TempDir(), "mic-test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create temp wav: %v", err)
	}
	if err := c.WriteWAV(f, 48000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen wav: %v", err)
	}
	defer r.Close()

	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode wav: %v", err)
	}

	if dec.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		t.Errorf("bit depth = %d, want 16", dec.BitDepth)
	}
	if len(buf.Data) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(samples))
	}

	// Out-of-range samples must have been clamped, not wrapped.
	if buf.Data[5] != 32767 {
		t.Errorf("sample 5 = %d, want clamped 32767", buf.Data[5])
	}
	if buf.Data[6] != -32767 {
		t.Errorf("sample 6 = %d, want clamped -32767", buf.Data[6])
	}
}
