// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Local engine selection from configuration
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"github.com/msto63/vortex/pkg/core/config"
)

// Engine names accepted by speech.local_engine
const (
	EngineAuto   = "auto"
	EngineSay    = "say"
	EngineESpeak = "espeak"
	EnginePiper  = "piper"
	EngineNone   = "none"
)

// NewLocalEngine returns the configured local engine, or nil for "none".
// "auto" prefers Piper when configured, then say, then espeak.
func NewLocalEngine(cfg config.SpeechConfig, player RawPlayer) LocalSynthesizer {
	switch cfg.LocalEngine {
	case EngineNone:
		return nil
	case EngineSay:
		return NewMacOSSay(cfg.Rate)
	case EngineESpeak:
		return NewESpeak(cfg.Rate)
	case EnginePiper:
		return NewPiper(cfg.PiperBinary, cfg.PiperVoicesDir, player)
	}

	if cfg.PiperBinary != "" {
		if p := NewPiper(cfg.PiperBinary, cfg.PiperVoicesDir, player); p.Available() {
			return p
		}
	}
	if say := NewMacOSSay(cfg.Rate); say.Available() {
		return say
	}
	if es := NewESpeak(cfg.Rate); es.Available() {
		return es
	}
	return nil
}

// ConfigFromSettings maps the [speech] section onto a controller config.
// Collaborators and callbacks are left to the caller.
func ConfigFromSettings(s config.SpeechConfig) Config {
	return Config{
		Enabled:     s.Enabled,
		RemoteVoice: s.RemoteVoice,
		Preference: VoicePreference{
			Names:          append([]string(nil), s.PreferredVoices...),
			LanguagePrefix: s.LanguagePrefix,
		},
		VoicesTimeout: s.VoicesTimeout.Duration,
	}
}
