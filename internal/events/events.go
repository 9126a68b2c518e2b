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

// Package events is the NATS event bus between the engine and its
// consumers: decoded text, key edges and audio levels go out as JSON, raw
// adapter MIDI comes in on midi.raw from whatever bridges the hardware.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects used on the bus.
const (
	SubjectDecoded = "cw.decoded"
	SubjectKey     = "cw.key"
	SubjectLevels  = "audio.levels"
	SubjectRawMIDI = "midi.raw"
	SubjectMIDIOut = "midi.out"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// DecodedMessage carries text recovered from the key timing.
type DecodedMessage struct {
	Text string  `json:"text"`
	WPM  float32 `json:"wpm"`
}

// KeyMessage carries one key edge.
type KeyMessage struct {
	Down bool `json:"down"`
}

// LevelsMessage carries the smoothed meter readings.
type LevelsMessage struct {
	Mic    float32 `json:"mic"`
	Output float32 `json:"output"`
}

// Conn is the slice of the NATS connection the bus uses. *nats.Conn
// satisfies it as-is; tests substitute a fake.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// Bus publishes engine events and delivers inbound adapter MIDI. A nil
// *Bus is valid and does nothing, so the app runs fine without a broker.
type Bus struct {
	conn Conn
	log  *zap.Logger
}

// Connect dials the broker, retrying a few times since the local NATS
// server often starts alongside this process.
func Connect(url string, logger *zap.Logger) (*Bus, error) {
	var nc *nats.Conn
	var err error

	for i := 0; i < connectAttempts; i++ {
		nc, err = nats.Connect(url)
		if err == nil {
			break
		}
		logger.Warn("NATS connect failed",
			zap.String("url", url),
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(connectBackoff)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS after %d attempts: %w", connectAttempts, err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &Bus{conn: nc, log: logger}, nil
}

// NewBusWithConn wraps an existing connection, for tests.
func NewBusWithConn(conn Conn, logger *zap.Logger) *Bus {
	return &Bus{conn: conn, log: logger}
}

func (b *Bus) publish(subject string, v any) error {
	if b == nil || b.conn == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishDecoded announces decoded text.
func (b *Bus) PublishDecoded(text string, wpm float32) error {
	return b.publish(SubjectDecoded, DecodedMessage{Text: text, WPM: wpm})
}

// PublishKey announces a key edge.
func (b *Bus) PublishKey(down bool) error {
	return b.publish(SubjectKey, KeyMessage{Down: down})
}

// PublishLevels announces the current meter readings.
func (b *Bus) PublishLevels(mic, output float32) error {
	return b.publish(SubjectLevels, LevelsMessage{Mic: mic, Output: output})
}

// PublishMIDICommand sends raw adapter control bytes to whatever bridges
// the hardware.
func (b *Bus) PublishMIDICommand(message []byte) error {
	if b == nil || b.conn == nil {
		return nil
	}
	if err := b.conn.Publish(SubjectMIDIOut, message); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", SubjectMIDIOut, err)
	}
	return nil
}

// SubscribeRawMIDI delivers every midi.raw payload to handler. Payloads
// are raw adapter bytes, not JSON.
func (b *Bus) SubscribeRawMIDI(handler func(message []byte)) error {
	if b == nil || b.conn == nil {
		return nil
	}

	_, err := b.conn.Subscribe(SubjectRawMIDI, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectRawMIDI, err)
	}

	b.log.Info("subscribed to adapter MIDI", zap.String("subject", SubjectRawMIDI))
	return nil
}

// Close closes the underlying connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Close()
	b.log.Info("NATS connection closed")
}
