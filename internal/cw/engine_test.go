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
	"strings"
	"testing"
	"time"

	"github.com/vailzoomer/vail-zoomer-go/internal/config"
)

// clockedEngine drives the engine on a fake wall clock.
type clockedEngine struct {
	*Engine
	now time.Time
	out strings.Builder
}

func newClockedEngine(wpm float32) *clockedEngine {
	c := &clockedEngine{
		Engine: NewEngine(wpm),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	c.Engine.now = func() time.Time { return c.now }
	return c
}

func (c *clockedEngine) advance(ms int) {
	c.now = c.now.Add(time.Duration(ms) * time.Millisecond)
}

func (c *clockedEngine) collect(el *DecodedElement) {
	if el != nil {
		c.out.WriteString(el.Text)
	}
}

// key holds the key down for downMs and then up for upMs.
func (c *clockedEngine) key(downMs, upMs int) {
	c.collect(c.KeyDown())
	c.advance(downMs)
	c.collect(c.KeyUp())
	c.advance(upMs)
}

func TestEngineDecodesSOS(t *testing.T) {
	e := newClockedEngine(20)

	// S
	e.key(60, 60)
	e.key(60, 60)
	e.key(60, 180)
	// O
	e.key(180, 60)
	e.key(180, 60)
	e.key(180, 180)
	// S
	e.key(60, 60)
	e.key(60, 60)
	e.key(60, 1600)

	e.collect(e.CheckTimeout())

	// The long final silence is also a word boundary, hence the space.
	if got := e.out.String(); got != "SOS " {
		t.Errorf("decoded %q, want %q", got, "SOS ")
	}
}

func TestEngineTimeoutFlush(t *testing.T) {
	e := newClockedEngine(20)

	// A lone dah, then silence.
	e.collect(e.KeyDown())
	e.advance(180)
	e.collect(e.KeyUp())

	// Inside the flush window nothing resolves.
	e.advance(1000)
	if el := e.CheckTimeout(); el != nil {
		t.Fatalf("CheckTimeout fired early with %q", el.Text)
	}

	e.advance(600)
	el := e.CheckTimeout()
	if el == nil || el.Text != "T " {
		t.Fatalf("CheckTimeout = %+v, want %q", el, "T ")
	}

	// The flush consumed the silence; it must not fire again.
	e.advance(2000)
	if el := e.CheckTimeout(); el != nil {
		t.Errorf("second CheckTimeout fired with %q", el.Text)
	}
}

func TestEngineCheckTimeoutIdleIsNil(t *testing.T) {
	e := newClockedEngine(20)

	if el := e.CheckTimeout(); el != nil {
		t.Errorf("CheckTimeout on a never-keyed engine = %+v", el)
	}

	// Key held down: no key-up timestamp, nothing to flush.
	e.collect(e.KeyDown())
	e.advance(5000)
	if el := e.CheckTimeout(); el != nil {
		t.Errorf("CheckTimeout with key held = %+v", el)
	}
}

func TestEngineDecodedElementCarriesWPM(t *testing.T) {
	e := newClockedEngine(20)

	e.key(60, 60)
	e.key(60, 1600)
	el := e.CheckTimeout()
	if el == nil {
		t.Fatal("no element decoded")
	}
	if el.Text != "I " {
		t.Errorf("Text = %q, want %q", el.Text, "I ")
	}
	if el.WPM < 19 || el.WPM > 21 {
		t.Errorf("WPM = %f, want ~20", el.WPM)
	}
}

func TestEngineSetWPM(t *testing.T) {
	e := NewEngine(20)
	if e.WPM() != 20 || e.DitDurationMs() != 60 {
		t.Fatalf("initial wpm/dit = %f/%f", e.WPM(), e.DitDurationMs())
	}

	e.SetWPM(30)
	if e.WPM() != 30 || e.DitDurationMs() != 40 {
		t.Errorf("after SetWPM(30) wpm/dit = %f/%f, want 30/40", e.WPM(), e.DitDurationMs())
	}

	// The decoder's adaptive estimate is driven by observed timing, not
	// by configuration.
	if got := e.EstimateWPM(); got != 20 {
		t.Errorf("EstimateWPM = %f, want untouched default 20", got)
	}
}

func TestEngineSetKeyerType(t *testing.T) {
	e := NewEngine(20)
	e.SetKeyerType(config.KeyerIambicB)
	if e.keyerType != config.KeyerIambicB {
		t.Errorf("keyerType = %s, want %s", e.keyerType, config.KeyerIambicB)
	}
}
