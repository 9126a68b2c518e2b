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

package events

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type fakeConn struct {
	published  map[string][][]byte
	handlers   map[string]nats.MsgHandler
	publishErr error
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		published: make(map[string][][]byte),
		handlers:  make(map[string]nats.MsgHandler),
	}
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published[subject] = append(f.published[subject], data)
	return nil
}

func (f *fakeConn) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.handlers[subject] = cb
	return &nats.Subscription{}, nil
}

func (f *fakeConn) Close() {
	f.closed = true
}

func (f *fakeConn) deliver(subject string, data []byte) {
	if h, ok := f.handlers[subject]; ok {
		h(&nats.Msg{Subject: subject, Data: data})
	}
}

func TestPublishDecoded(t *testing.T) {
	conn := newFakeConn()
	bus := NewBusWithConn(conn, zap.NewNop())

	if err := bus.PublishDecoded("CQ", 22.5); err != nil {
		t.Fatalf("PublishDecoded: %v", err)
	}

	msgs := conn.published[SubjectDecoded]
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}

	var got DecodedMessage
	if err := json.Unmarshal(msgs[0], &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Text != "CQ" || got.WPM != 22.5 {
		t.Errorf("message = %+v", got)
	}
}

func TestPublishKeyAndLevels(t *testing.T) {
	conn := newFakeConn()
	bus := NewBusWithConn(conn, zap.NewNop())

	if err := bus.PublishKey(true); err != nil {
		t.Fatalf("PublishKey: %v", err)
	}
	if err := bus.PublishLevels(0.2, 0.7); err != nil {
		t.Fatalf("PublishLevels: %v", err)
	}

	var key KeyMessage
	if err := json.Unmarshal(conn.published[SubjectKey][0], &key); err != nil {
		t.Fatalf("unmarshal key: %v", err)
	}
	if !key.Down {
		t.Error("key.Down = false, want true")
	}

	var levels LevelsMessage
	if err := json.Unmarshal(conn.published[SubjectLevels][0], &levels); err != nil {
		t.Fatalf("unmarshal levels: %v", err)
	}
	if levels.Mic != 0.2 || levels.Output != 0.7 {
		t.Errorf("levels = %+v", levels)
	}
}

func TestPublishError(t *testing.T) {
	conn := newFakeConn()
	conn.publishErr = fmt.Errorf("broker gone")
	bus := NewBusWithConn(conn, zap.NewNop())

	if err := bus.PublishKey(false); err == nil {
		t.Error("PublishKey succeeded with a failing connection")
	}
}

func TestSubscribeRawMIDI(t *testing.T) {
	conn := newFakeConn()
	bus := NewBusWithConn(conn, zap.NewNop())

	var got []byte
	if err := bus.SubscribeRawMIDI(func(message []byte) {
		got = message
	}); err != nil {
		t.Fatalf("SubscribeRawMIDI: %v", err)
	}

	conn.deliver(SubjectRawMIDI, []byte{0x90, 1, 100})
	if len(got) != 3 || got[0] != 0x90 {
		t.Errorf("handler received %v", got)
	}
}

func TestPublishMIDICommand(t *testing.T) {
	conn := newFakeConn()
	bus := NewBusWithConn(conn, zap.NewNop())

	// Raw adapter bytes go out as-is, not wrapped in JSON.
	if err := bus.PublishMIDICommand([]byte{0xC0, 1}); err != nil {
		t.Fatalf("PublishMIDICommand: %v", err)
	}
	msgs := conn.published[SubjectMIDIOut]
	if len(msgs) != 1 || msgs[0][0] != 0xC0 || msgs[0][1] != 1 {
		t.Errorf("published %v", msgs)
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus

	if err := bus.PublishDecoded("X", 20); err != nil {
		t.Errorf("nil bus PublishDecoded: %v", err)
	}
	if err := bus.PublishKey(true); err != nil {
		t.Errorf("nil bus PublishKey: %v", err)
	}
	if err := bus.PublishLevels(0, 0); err != nil {
		t.Errorf("nil bus PublishLevels: %v", err)
	}
	if err := bus.PublishMIDICommand([]byte{0xC0, 0}); err != nil {
		t.Errorf("nil bus PublishMIDICommand: %v", err)
	}
	if err := bus.SubscribeRawMIDI(func([]byte) {}); err != nil {
		t.Errorf("nil bus SubscribeRawMIDI: %v", err)
	}
	bus.Close()
}

func TestClose(t *testing.T) {
	conn := newFakeConn()
	bus := NewBusWithConn(conn, zap.NewNop())

	bus.Close()
	if !conn.closed {
		t.Error("underlying connection not closed")
	}
}
