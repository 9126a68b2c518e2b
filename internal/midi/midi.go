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

// Package midi implements the wire protocol of the Vail adapter: parsing
// incoming key events and building the control messages that configure the
// adapter's mode, speed, sidetone note and keyer type.
package midi

import "github.com/vailzoomer/vail-zoomer-go/internal/config"

// Adapter control constants.
const (
	// CCMode switches the adapter between MIDI mode (values 0-63, key
	// events arrive as notes) and keyboard HID mode (64-127).
	CCMode uint8 = 0x00

	// ModeMIDI is the CCMode value selecting MIDI mode.
	ModeMIDI uint8 = 0x00

	// CCDitDuration sets the adapter's keyer speed: dit ms = value * 2.
	CCDitDuration uint8 = 0x01

	// CCSidetoneNote sets the adapter's own sidetone pitch.
	CCSidetoneNote uint8 = 0x02
)

// Key notes sent by the adapter: 1/2 (dit/dah) in keyer modes, C#/D
// (61/62) in passthrough mode. The decoder works from edge timing alone,
// so dit and dah notes are treated alike.
var keyNotes = map[uint8]bool{1: true, 2: true, 61: true, 62: true}

// Status bytes (channel 1).
const (
	statusNoteOff       uint8 = 0x80
	statusNoteOn        uint8 = 0x90
	statusControlChange uint8 = 0xB0
	statusProgramChange uint8 = 0xC0
)

// EventType discriminates parsed adapter events.
type EventType int

const (
	NoteOn EventType = iota
	NoteOff
	ControlChange
)

// Event is one parsed message from the adapter.
type Event struct {
	Type       EventType
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
}

// Parse decodes a raw MIDI message. The second return is false for
// messages the adapter protocol doesn't use (clock, sysex, aftertouch).
// A NoteOn with velocity zero is a NoteOff, per the MIDI convention.
func Parse(message []byte) (Event, bool) {
	if len(message) == 0 {
		return Event{}, false
	}

	switch message[0] & 0xF0 {
	case statusNoteOn:
		if len(message) < 3 {
			return Event{}, false
		}
		if message[2] == 0 {
			return Event{Type: NoteOff, Note: message[1]}, true
		}
		return Event{Type: NoteOn, Note: message[1], Velocity: message[2]}, true

	case statusNoteOff:
		if len(message) < 2 {
			return Event{}, false
		}
		return Event{Type: NoteOff, Note: message[1]}, true

	case statusControlChange:
		if len(message) < 3 {
			return Event{}, false
		}
		return Event{Type: ControlChange, Controller: message[1], Value: message[2]}, true
	}

	return Event{}, false
}

// IsKeyNote reports whether a note keys the line.
func IsKeyNote(note uint8) bool {
	return keyNotes[note]
}

// ModeSwitchMessage builds the CC that puts the adapter in MIDI mode.
func ModeSwitchMessage() []byte {
	return []byte{statusControlChange, CCMode, ModeMIDI}
}

// WPMMessage builds the CC that sets the adapter's keyer speed. The wire
// value is half the dit duration in milliseconds; WPM below 5 is clamped
// because the dit would overflow the 7-bit value.
func WPMMessage(wpm uint8) []byte {
	if wpm < 5 {
		wpm = 5
	}
	ditMs := 1200 / uint16(wpm)
	cc := ditMs / 2
	if cc > 127 {
		cc = 127
	}
	return []byte{statusControlChange, CCDitDuration, uint8(cc)}
}

// SidetoneNoteMessage builds the CC that sets the adapter's sidetone pitch.
func SidetoneNoteMessage(note uint8) []byte {
	if note > 127 {
		note = 127
	}
	return []byte{statusControlChange, CCSidetoneNote, note}
}

// Keyer programs understood by the adapter.
var keyerPrograms = map[config.KeyerType]uint8{
	config.KeyerPassthrough: 0,
	config.KeyerStraight:    1,
	config.KeyerBug:         2,
	config.KeyerElectricBug: 3,
	config.KeyerSingleDot:   4,
	config.KeyerUltimatic:   5,
	config.KeyerPlainIambic: 6,
	config.KeyerIambicA:     7,
	config.KeyerIambicB:     8,
	config.KeyerKeyahead:    9,
}

// KeyerTypeMessage builds the Program Change selecting the keyer type.
// Unknown types fall back to straight key.
func KeyerTypeMessage(kt config.KeyerType) []byte {
	program, ok := keyerPrograms[kt]
	if !ok {
		program = keyerPrograms[config.KeyerStraight]
	}
	return []byte{statusProgramChange, program}
}
