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

package midi

import (
	"bytes"
	"testing"

	"github.com/vailzoomer/vail-zoomer-go/internal/config"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		message []byte
		want    Event
		ok      bool
	}{
		{
			name:    "note on",
			message: []byte{0x90, 1, 100},
			want:    Event{Type: NoteOn, Note: 1, Velocity: 100},
			ok:      true,
		},
		{
			name:    "note on velocity zero is note off",
			message: []byte{0x90, 61, 0},
			want:    Event{Type: NoteOff, Note: 61},
			ok:      true,
		},
		{
			name:    "note off",
			message: []byte{0x80, 1, 64},
			want:    Event{Type: NoteOff, Note: 1},
			ok:      true,
		},
		{
			name:    "note off without velocity byte",
			message: []byte{0x80, 61},
			want:    Event{Type: NoteOff, Note: 61},
			ok:      true,
		},
		{
			name:    "control change",
			message: []byte{0xB0, 1, 30},
			want:    Event{Type: ControlChange, Controller: 1, Value: 30},
			ok:      true,
		},
		{
			name:    "note on other channel",
			message: []byte{0x95, 1, 100},
			want:    Event{Type: NoteOn, Note: 1, Velocity: 100},
			ok:      true,
		},
		{
			name:    "empty",
			message: nil,
			ok:      false,
		},
		{
			name:    "truncated note on",
			message: []byte{0x90, 1},
			ok:      false,
		},
		{
			name:    "truncated control change",
			message: []byte{0xB0, 1},
			ok:      false,
		},
		{
			name:    "aftertouch ignored",
			message: []byte{0xA0, 1, 100},
			ok:      false,
		},
		{
			name:    "clock ignored",
			message: []byte{0xF8},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.message)
			if ok != tt.ok {
				t.Fatalf("Parse ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsKeyNote(t *testing.T) {
	for _, note := range []uint8{1, 2, 61, 62} {
		if !IsKeyNote(note) {
			t.Errorf("IsKeyNote(%d) = false, want true", note)
		}
	}
	for _, note := range []uint8{0, 3, 60, 63, 127} {
		if IsKeyNote(note) {
			t.Errorf("IsKeyNote(%d) = true, want false", note)
		}
	}
}

func TestModeSwitchMessage(t *testing.T) {
	if got := ModeSwitchMessage(); !bytes.Equal(got, []byte{0xB0, 0x00, 0x00}) {
		t.Errorf("ModeSwitchMessage = %v", got)
	}
}

func TestWPMMessage(t *testing.T) {
	tests := []struct {
		wpm  uint8
		want uint8
	}{
		{20, 30}, // dit 60ms
		{12, 50}, // dit 100ms
		{30, 20}, // dit 40ms
		{5, 120}, // dit 240ms
		{1, 120}, // clamped to 5 WPM
	}

	for _, tt := range tests {
		got := WPMMessage(tt.wpm)
		if got[0] != 0xB0 || got[1] != CCDitDuration {
			t.Fatalf("WPMMessage(%d) header = %v", tt.wpm, got[:2])
		}
		if got[2] != tt.want {
			t.Errorf("WPMMessage(%d) value = %d, want %d", tt.wpm, got[2], tt.want)
		}
	}
}

func TestSidetoneNoteMessage(t *testing.T) {
	got := SidetoneNoteMessage(69)
	if !bytes.Equal(got, []byte{0xB0, 0x02, 69}) {
		t.Errorf("SidetoneNoteMessage(69) = %v", got)
	}
}

func TestKeyerTypeMessage(t *testing.T) {
	tests := []struct {
		kt      config.KeyerType
		program uint8
	}{
		{config.KeyerPassthrough, 0},
		{config.KeyerStraight, 1},
		{config.KeyerIambicB, 8},
		{config.KeyerKeyahead, 9},
		{config.KeyerType("bogus"), 1},
	}

	for _, tt := range tests {
		got := KeyerTypeMessage(tt.kt)
		if got[0] != 0xC0 {
			t.Fatalf("KeyerTypeMessage(%s) status = %#x", tt.kt, got[0])
		}
		if got[1] != tt.program {
			t.Errorf("KeyerTypeMessage(%s) program = %d, want %d", tt.kt, got[1], tt.program)
		}
	}
}
