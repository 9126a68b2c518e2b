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

package cw

// Standard Morse timing, PARIS convention: one word is 50 dit-lengths, so
// dit_ms = 1200 / wpm.

// DitDuration returns the dit length in milliseconds for a given WPM.
func DitDuration(wpm float32) float32 {
	return 1200.0 / wpm
}

// DahDuration returns the dah length (3x dit) in milliseconds.
func DahDuration(wpm float32) float32 {
	return DitDuration(wpm) * 3
}

// ElementGap returns the gap between elements of a character (1x dit).
func ElementGap(wpm float32) float32 {
	return DitDuration(wpm)
}

// CharacterGap returns the gap between characters (3x dit).
func CharacterGap(wpm float32) float32 {
	return DitDuration(wpm) * 3
}

// WordGap returns the gap between words (7x dit).
func WordGap(wpm float32) float32 {
	return DitDuration(wpm) * 7
}

// WPMFromDit converts a dit length in milliseconds back to WPM.
func WPMFromDit(ditMs float32) float32 {
	return 1200.0 / ditMs
}
