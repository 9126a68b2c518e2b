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

// Package config holds the persisted application settings and their
// load/save logic. Settings live in a flat JSON file under the user config
// directory; individual fields can be overridden from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
)

// KeyerType selects the keying behavior of the hardware adapter.
type KeyerType string

const (
	KeyerPassthrough KeyerType = "passthrough"
	KeyerStraight    KeyerType = "straight"
	KeyerBug         KeyerType = "bug"
	KeyerElectricBug KeyerType = "electric_bug"
	KeyerSingleDot   KeyerType = "single_dot"
	KeyerUltimatic   KeyerType = "ultimatic"
	KeyerPlainIambic KeyerType = "plain_iambic"
	KeyerIambicA     KeyerType = "iambic_a"
	KeyerIambicB     KeyerType = "iambic_b"
	KeyerKeyahead    KeyerType = "keyahead"
)

// MixMode selects how the microphone interacts with keying.
type MixMode string

const (
	MixAlwaysMix       MixMode = "always_mix"
	MixCwMutesMic      MixMode = "cw_mutes_mic"
	MixPushToTalkVoice MixMode = "push_to_talk_voice"
)

// SidetoneRoute names where the synthesized sidetone goes.
type SidetoneRoute string

const (
	RouteOutputOnly SidetoneRoute = "output_only"
	RouteLocalOnly  SidetoneRoute = "local_only"
	RouteBoth       SidetoneRoute = "both"
)

// Settings is the persisted application configuration.
type Settings struct {
	// Keyer settings
	KeyerType   KeyerType `json:"keyer_type" env:"VAIL_KEYER_TYPE"`
	WPM         float32   `json:"wpm" env:"VAIL_WPM"`
	DitDahRatio float32   `json:"dit_dah_ratio" env:"VAIL_DIT_DAH_RATIO"`
	Weighting   float32   `json:"weighting" env:"VAIL_WEIGHTING"`
	SwapPaddles bool      `json:"swap_paddles" env:"VAIL_SWAP_PADDLES"`

	// Sidetone settings
	SidetoneFrequency   float32       `json:"sidetone_frequency" env:"VAIL_SIDETONE_FREQUENCY"`
	SidetoneVolume      float32       `json:"sidetone_volume" env:"VAIL_SIDETONE_VOLUME"`
	LocalSidetoneVolume float32       `json:"local_sidetone_volume" env:"VAIL_LOCAL_SIDETONE_VOLUME"`
	SidetoneRoute       SidetoneRoute `json:"sidetone_route" env:"VAIL_SIDETONE_ROUTE"`

	// Audio settings
	MicVolume  float32 `json:"mic_volume" env:"VAIL_MIC_VOLUME"`
	MicDucking bool    `json:"mic_ducking" env:"VAIL_MIC_DUCKING"`
	MixMode    MixMode `json:"mix_mode" env:"VAIL_MIX_MODE"`

	// Device settings; empty string means the system default
	LocalOutputDevice string `json:"local_output_device" env:"VAIL_LOCAL_OUTPUT_DEVICE"`
	MidiDevice        string `json:"midi_device" env:"VAIL_MIDI_DEVICE"`
	InputDevice       string `json:"input_device" env:"VAIL_INPUT_DEVICE"`
	OutputDevice      string `json:"output_device" env:"VAIL_OUTPUT_DEVICE"`

	// NATS endpoint for telemetry and decoded text; empty disables publishing
	NATSUrl string `json:"nats_url" env:"VAIL_NATS_URL"`
}

// Default returns the out-of-the-box settings.
func Default() Settings {
	return Settings{
		KeyerType:           KeyerStraight,
		WPM:                 18.0,
		DitDahRatio:         3.0,
		Weighting:           0.0,
		SidetoneFrequency:   600.0,
		SidetoneVolume:      0.5,
		LocalSidetoneVolume: 0.3,
		SidetoneRoute:       RouteOutputOnly,
		MicVolume:           1.0,
		MixMode:             MixAlwaysMix,
	}
}

// DefaultPath returns the settings file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config dir: %w", err)
	}
	return filepath.Join(dir, "vail-zoomer", "settings.json"), nil
}

// Load reads settings from path, returning defaults if the file does not
// exist or cannot be parsed, then applies environment overrides. A missing
// or corrupt settings file is never fatal.
func Load(path string) Settings {
	s := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &s); err != nil {
			s = Default()
		}
	}

	_ = env.Parse(&s)
	return s
}

// Save writes settings to path as pretty-printed JSON, creating the parent
// directory if needed.
func (s Settings) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
