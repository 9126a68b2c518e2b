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

// Package cw decodes straight-key Morse timing into text. The decoder is
// adaptive: it continuously re-estimates the sender's dit length from the
// durations it sees, so it tracks a human operator drifting between speeds.
package cw

import "strings"

// Morse pattern lookup table
var morseTable = map[string]rune{
	".-": 'A', "-...": 'B', "-.-.": 'C', "-..": 'D',
	".": 'E', "..-.": 'F', "--.": 'G', "....": 'H',
	"..": 'I', ".---": 'J', "-.-": 'K', ".-..": 'L',
	"--": 'M', "-.": 'N', "---": 'O', ".--.": 'P',
	"--.-": 'Q', ".-.": 'R', "...": 'S', "-": 'T',
	"..-": 'U', "...-": 'V', ".--": 'W', "-..-": 'X',
	"-.--": 'Y', "--..": 'Z',

	".----": '1', "..---": '2', "...--": '3', "....-": '4',
	".....": '5', "-....": '6', "--...": '7', "---..": '8',
	"----.": '9', "-----": '0',

	".-.-.-": '.', "--..--": ',', "..--..": '?', "-..-.": '/',
	"-...-": '=', ".-.-.": '+', "-....-": '-', ".--.-.": '@',
	"-.-.--": '!', ".----.": '\'', "-.--.": '(', "-.--.-": ')',
	".-...": '&', "---...": ':', "-.-.-.": ';', ".-..-.": '"',
	"...-..-": '$', "..--.-": '_',
}

const (
	// Number of recent dit length estimates kept for speed adaptation.
	ditHistorySize = 30

	// Dit samples outside this window are discarded as outliers (ms).
	minDitSampleMs = 10.0
	maxDitSampleMs = 500.0

	// Durations below this are key bounce / glitches, not elements (ms).
	defaultNoiseThresholdMs = 2.0

	// Default dit length of 60ms corresponds to 20 WPM.
	defaultDitLengthMs = 60.0
)

// Decoder is an adaptive Morse state machine. Feed it signed durations in
// milliseconds (positive = tone on, negative = silence) via AddTiming and it
// emits decoded text as character and word boundaries are recognized.
//
// The dit/dah split sits at 2x the current dit estimate; character and word
// gap thresholds sit at 2x and 5x, the midpoints between the nominal 1x/3x
// and 3x/7x multiples. Each accepted element feeds a fresh dit length sample
// into a bounded history whose linearly-weighted average becomes the new
// estimate, biasing toward the sender's most recent speed.
type Decoder struct {
	pattern          strings.Builder
	ditHistory       []float32
	ditLengthMs      float32
	noiseThresholdMs float32
	output           strings.Builder
}

// NewDecoder creates a decoder primed for ~20 WPM.
func NewDecoder() *Decoder {
	return &Decoder{
		ditHistory:       make([]float32, 0, ditHistorySize),
		ditLengthMs:      defaultDitLengthMs,
		noiseThresholdMs: defaultNoiseThresholdMs,
	}
}

// AddTiming feeds one signed duration to the decoder. Positive values are
// key-down (tone) durations, negative values are silence. It returns any text
// completed by this duration, or "" if nothing resolved yet.
func (d *Decoder) AddTiming(timingMs float32) string {
	if abs32(timingMs) < d.noiseThresholdMs {
		return ""
	}

	if timingMs > 0 {
		d.processTone(timingMs)
	} else {
		d.processGap(-timingMs)
	}

	return d.takeOutput()
}

// Flush forces the in-progress pattern to resolve, as if a character gap had
// just occurred. Call it when the key has been silent past the flush timeout.
func (d *Decoder) Flush() string {
	d.completeCharacter()
	return d.takeOutput()
}

// EstimateWPM reports the sender's speed from the adaptive dit length using
// the PARIS convention (50 dit-lengths per word, wpm = 1200/dit_ms).
func (d *Decoder) EstimateWPM() float32 {
	if d.ditLengthMs > 0 {
		return 1200.0 / d.ditLengthMs
	}
	return 20.0
}

// Reset clears the in-progress pattern and pending output. The dit history
// survives so speed adaptation carries across resets.
func (d *Decoder) Reset() {
	d.pattern.Reset()
	d.output.Reset()
}

// Pattern returns the dit/dah marks accumulated for the current character.
func (d *Decoder) Pattern() string {
	return d.pattern.String()
}

// DitLengthMs returns the current adaptive dit length estimate.
func (d *Decoder) DitLengthMs() float32 {
	return d.ditLengthMs
}

func (d *Decoder) processTone(durationMs float32) {
	// Split point between a dit and a dah, midway between 1x and 3x dit.
	threshold := d.ditLengthMs * 2

	if durationMs < threshold {
		d.pattern.WriteByte('.')
		d.addDitSample(durationMs)
	} else {
		d.pattern.WriteByte('-')
		d.addDitSample(durationMs / 3)
	}
}

func (d *Decoder) processGap(durationMs float32) {
	charThreshold := d.ditLengthMs * 2
	wordThreshold := d.ditLengthMs * 5

	if durationMs < charThreshold {
		// Intra-character gap, pattern stays open.
		return
	}

	d.completeCharacter()

	if durationMs >= wordThreshold {
		out := d.output.String()
		if out != "" && !strings.HasSuffix(out, " ") {
			d.output.WriteByte(' ')
		}
	} else {
		// Inter-character gaps are nominally 3 dits, so they are valid
		// speed evidence too.
		d.addDitSample(durationMs / 3)
	}
}

func (d *Decoder) completeCharacter() {
	if d.pattern.Len() == 0 {
		return
	}
	if ch, ok := morseTable[d.pattern.String()]; ok {
		d.output.WriteRune(ch)
	}
	// Unrecognized patterns are dropped, not surfaced: decoding a human
	// fist is best-effort.
	d.pattern.Reset()
}

func (d *Decoder) addDitSample(ditMs float32) {
	if ditMs < minDitSampleMs || ditMs > maxDitSampleMs {
		return
	}

	if len(d.ditHistory) == ditHistorySize {
		d.ditHistory = append(d.ditHistory[:0], d.ditHistory[1:]...)
	}
	d.ditHistory = append(d.ditHistory, ditMs)

	// Linearly-weighted average: newest sample carries the most weight.
	var weightedSum, totalWeight float32
	for i, dit := range d.ditHistory {
		w := float32(i + 1)
		weightedSum += dit * w
		totalWeight += w
	}
	d.ditLengthMs = weightedSum / totalWeight
}

func (d *Decoder) takeOutput() string {
	if d.output.Len() == 0 {
		return ""
	}
	out := d.output.String()
	d.output.Reset()
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
