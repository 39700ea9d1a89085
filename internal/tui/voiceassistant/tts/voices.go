// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Local voice selection
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"strings"
	"time"

	"github.com/msto63/vortex/pkg/core/config"
)

// DefaultLanguagePrefix is the language fallback for voice selection
const DefaultLanguagePrefix = "en"

// DefaultVoicesTimeout bounds the wait for a late voice list
const DefaultVoicesTimeout = 3 * time.Second

// VoicePreference orders acceptable voices
type VoicePreference struct {
	// Names are substrings matched against voice names in priority order
	Names []string

	// LanguagePrefix is matched against the voice language tag
	LanguagePrefix string
}

// DefaultVoicePreference returns the built-in preference list
func DefaultVoicePreference() VoicePreference {
	return VoicePreference{
		Names:          append([]string(nil), config.DefaultPreferredVoices...),
		LanguagePrefix: DefaultLanguagePrefix,
	}
}

// SelectVoice picks the first voice matching a preferred name, in priority
// order, then the first voice whose language starts with the prefix. It
// returns nil when neither matches so the engine default is kept.
func SelectVoice(voices []Voice, pref VoicePreference) *Voice {
	for _, name := range pref.Names {
		if name == "" {
			continue
		}
		for i := range voices {
			if strings.Contains(voices[i].Name, name) {
				return &voices[i]
			}
		}
	}

	if pref.LanguagePrefix != "" {
		prefix := normalizeLang(pref.LanguagePrefix)
		for i := range voices {
			if strings.HasPrefix(normalizeLang(voices[i].Lang), prefix) {
				return &voices[i]
			}
		}
	}

	return nil
}

// normalizeLang maps en_US and EN-us to en-us
func normalizeLang(lang string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(lang), "_", "-"))
}

// awaitVoices returns the engine's voices. An empty list is retried once
// after VoicesChanged fires or the timeout elapses.
func awaitVoices(ctx context.Context, engine LocalSynthesizer, timeout time.Duration) []Voice {
	voices := engine.Voices()
	if len(voices) > 0 {
		return voices
	}

	changed := engine.VoicesChanged()
	if changed == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
		return nil
	}
	return engine.Voices()
}
