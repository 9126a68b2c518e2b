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

import (
	"time"

	"github.com/vailzoomer/vail-zoomer-go/internal/config"
)

// Flush a pending character after this much key-up silence.
const defaultFlushTimeoutMs = 1500.0

// DecodedElement is a chunk of decoded text with the speed estimate that
// produced it.
type DecodedElement struct {
	Text string
	WPM  float32
}

// Engine bridges wall-clock key events to the adaptive decoder. Call KeyDown
// and KeyUp as the operator keys, and CheckTimeout periodically (every
// 10-50ms) so trailing characters flush after the silence window.
//
// Engine is not safe for concurrent use; drive it from a single goroutine.
type Engine struct {
	decoder        *Decoder
	keyerType      config.KeyerType
	wpm            float32
	ditDurationMs  float32
	keyDownAt      time.Time
	keyUpAt        time.Time
	flushTimeoutMs float32

	now func() time.Time
}

// NewEngine creates a CW engine configured for the given WPM.
func NewEngine(wpm float32) *Engine {
	return &Engine{
		decoder:        NewDecoder(),
		keyerType:      config.KeyerStraight,
		wpm:            wpm,
		ditDurationMs:  DitDuration(wpm),
		flushTimeoutMs: defaultFlushTimeoutMs,
		now:            time.Now,
	}
}

// SetWPM updates the configured speed. The decoder's adaptive dit history
// is kept so its speed estimate stays continuous.
func (e *Engine) SetWPM(wpm float32) {
	e.wpm = wpm
	e.ditDurationMs = DitDuration(wpm)
}

// SetKeyerType records the keyer type without touching decoder state.
func (e *Engine) SetKeyerType(kt config.KeyerType) {
	e.keyerType = kt
}

// KeyDown handles a key-down event. If a key-up preceded it, the elapsed gap
// is fed to the decoder, which may complete a character.
func (e *Engine) KeyDown() *DecodedElement {
	now := e.now()

	var result *DecodedElement
	if !e.keyUpAt.IsZero() {
		gapMs := float32(now.Sub(e.keyUpAt).Milliseconds())
		result = e.decoded(e.decoder.AddTiming(-gapMs))
		e.keyUpAt = time.Time{}
	}

	e.keyDownAt = now
	return result
}

// KeyUp handles a key-up event, feeding the tone duration to the decoder.
func (e *Engine) KeyUp() *DecodedElement {
	now := e.now()

	var result *DecodedElement
	if !e.keyDownAt.IsZero() {
		toneMs := float32(now.Sub(e.keyDownAt).Milliseconds())
		result = e.decoded(e.decoder.AddTiming(toneMs))
		e.keyDownAt = time.Time{}
	}

	e.keyUpAt = now
	return result
}

// CheckTimeout flushes a pending character once the key has been up past the
// flush timeout. The key-up timestamp is cleared when the flush fires, so a
// single silence period flushes at most once.
func (e *Engine) CheckTimeout() *DecodedElement {
	if e.keyUpAt.IsZero() {
		return nil
	}

	gapMs := float32(e.now().Sub(e.keyUpAt).Milliseconds())
	if gapMs < e.flushTimeoutMs {
		return nil
	}

	// Feed the gap first: it may resolve the character as a normal boundary.
	if out := e.decoder.AddTiming(-gapMs); out != "" {
		e.keyUpAt = time.Time{}
		return e.decoded(out)
	}

	if out := e.decoder.Flush(); out != "" {
		e.keyUpAt = time.Time{}
		return e.decoded(out)
	}

	return nil
}

// EstimateWPM reports the decoder's adaptive speed estimate.
func (e *Engine) EstimateWPM() float32 {
	return e.decoder.EstimateWPM()
}

// WPM returns the configured speed.
func (e *Engine) WPM() float32 {
	return e.wpm
}

// DitDurationMs returns the configured dit duration.
func (e *Engine) DitDurationMs() float32 {
	return e.ditDurationMs
}

func (e *Engine) decoded(text string) *DecodedElement {
	if text == "" {
		return nil
	}
	return &DecodedElement{
		Text: text,
		WPM:  e.decoder.EstimateWPM(),
	}
}
