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

// Command vail-zoomer runs the keyer companion: it synthesizes a sidetone
// for key events arriving over the midi.raw NATS subject, mixes it with the
// microphone into the configured output device, and publishes decoded Morse
// text and level telemetry back onto the bus.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vailzoomer/vail-zoomer-go/internal/audio"
	"github.com/vailzoomer/vail-zoomer-go/internal/config"
	"github.com/vailzoomer/vail-zoomer-go/internal/cw"
	"github.com/vailzoomer/vail-zoomer-go/internal/events"
	"github.com/vailzoomer/vail-zoomer-go/internal/midi"
)

const (
	// Flush cadence for trailing characters; well under the decoder's
	// silence window so the flush lands promptly.
	timeoutInterval = 25 * time.Millisecond

	levelsInterval = 100 * time.Millisecond
)

func main() {
	configPath := flag.String("config", "", "settings file path (default: user config dir)")
	natsURL := flag.String("nats", "", "NATS URL (overrides settings)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	path := *configPath
	if path == "" {
		if path, err = config.DefaultPath(); err != nil {
			logger.Warn("no user config dir, using defaults", zap.Error(err))
		}
	}
	settings := config.Load(path)
	if *natsURL != "" {
		settings.NATSUrl = *natsURL
	}

	logger.Info("starting vail zoomer",
		zap.Float32("wpm", settings.WPM),
		zap.String("keyer", string(settings.KeyerType)),
		zap.Float32("sidetone_hz", settings.SidetoneFrequency),
		zap.String("route", string(settings.SidetoneRoute)))

	engine, err := audio.New(audio.NewPortAudioBackend(),
		settings.SidetoneFrequency, settings.SidetoneVolume, logger)
	if err != nil {
		logger.Fatal("failed to initialize audio", zap.Error(err))
	}
	defer engine.Close()

	engine.SetMicVolume(settings.MicVolume)
	engine.SetLocalSidetoneVolume(settings.LocalSidetoneVolume)
	engine.SetMicDucking(settings.MicDucking || settings.MixMode == config.MixCwMutesMic)

	if err := engine.Start(settings.OutputDevice, settings.InputDevice,
		settings.LocalOutputDevice, sidetoneRoute(settings.SidetoneRoute)); err != nil {
		logger.Fatal("failed to start audio", zap.Error(err))
	}

	keyer := cw.NewEngine(settings.WPM)
	keyer.SetKeyerType(settings.KeyerType)

	var bus *events.Bus
	if settings.NATSUrl != "" {
		if bus, err = events.Connect(settings.NATSUrl, logger); err != nil {
			logger.Warn("running without event bus", zap.Error(err))
		}
	} else {
		logger.Info("no NATS URL configured, running without event bus")
	}
	defer bus.Close()

	for _, msg := range adapterSetup(settings) {
		if err := bus.PublishMIDICommand(msg); err != nil {
			logger.Warn("failed to send adapter command", zap.Error(err))
		}
	}

	// The keyer engine is single-goroutine; NATS delivery threads only
	// parse and enqueue, the select loop below does the rest.
	midiCh := make(chan midi.Event, 64)
	err = bus.SubscribeRawMIDI(func(raw []byte) {
		ev, ok := midi.Parse(raw)
		if !ok {
			return
		}
		select {
		case midiCh <- ev:
		default:
			logger.Warn("MIDI event queue full, dropping event")
		}
	})
	if err != nil {
		logger.Warn("failed to subscribe to adapter MIDI", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	timeoutTick := time.NewTicker(timeoutInterval)
	defer timeoutTick.Stop()
	levelsTick := time.NewTicker(levelsInterval)
	defer levelsTick.Stop()

	for {
		select {
		case ev := <-midiCh:
			handleMIDIEvent(ev, engine, keyer, bus, logger)

		case <-timeoutTick.C:
			if el := keyer.CheckTimeout(); el != nil {
				publishDecoded(el, bus, logger)
			}

		case <-levelsTick.C:
			if err := bus.PublishLevels(engine.MicLevel(), engine.OutputLevel()); err != nil {
				logger.Warn("failed to publish levels", zap.Error(err))
			}

		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			if err := engine.Stop(); err != nil {
				logger.Warn("audio stop failed", zap.Error(err))
			}
			return
		}
	}
}

// handleMIDIEvent keys the sidetone and feeds the decoder from one adapter
// event.
func handleMIDIEvent(ev midi.Event, engine *audio.Engine, keyer *cw.Engine, bus *events.Bus, logger *zap.Logger) {
	switch ev.Type {
	case midi.NoteOn:
		if !midi.IsKeyNote(ev.Note) {
			return
		}
		engine.KeyDown()
		if el := keyer.KeyDown(); el != nil {
			publishDecoded(el, bus, logger)
		}
		if err := bus.PublishKey(true); err != nil {
			logger.Warn("failed to publish key event", zap.Error(err))
		}

	case midi.NoteOff:
		if !midi.IsKeyNote(ev.Note) {
			return
		}
		engine.KeyUp()
		if el := keyer.KeyUp(); el != nil {
			publishDecoded(el, bus, logger)
		}
		if err := bus.PublishKey(false); err != nil {
			logger.Warn("failed to publish key event", zap.Error(err))
		}

	case midi.ControlChange:
		logger.Debug("adapter control change",
			zap.Uint8("controller", ev.Controller),
			zap.Uint8("value", ev.Value))
	}
}

func publishDecoded(el *cw.DecodedElement, bus *events.Bus, logger *zap.Logger) {
	logger.Info("decoded", zap.String("text", el.Text), zap.Float32("wpm", el.WPM))
	if err := bus.PublishDecoded(el.Text, el.WPM); err != nil {
		logger.Warn("failed to publish decoded text", zap.Error(err))
	}
}

// adapterSetup builds the control messages that configure the Vail adapter
// at startup: MIDI mode, keyer type and speed.
func adapterSetup(s config.Settings) [][]byte {
	return [][]byte{
		midi.ModeSwitchMessage(),
		midi.KeyerTypeMessage(s.KeyerType),
		midi.WPMMessage(uint8(s.WPM)),
	}
}

func sidetoneRoute(r config.SidetoneRoute) audio.Route {
	switch r {
	case config.RouteLocalOnly:
		return audio.RouteLocalOnly
	case config.RouteBoth:
		return audio.RouteBoth
	default:
		return audio.RouteOutputOnly
	}
}
