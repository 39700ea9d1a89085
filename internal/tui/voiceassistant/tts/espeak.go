// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Linux TTS using espeak-ng
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeak implements LocalSynthesizer using espeak-ng (or espeak)
type ESpeak struct {
	binary  string
	rate    int
	catalog *voiceCatalog
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewESpeak creates an espeak engine. The binary is looked up on PATH.
func NewESpeak(rate int) *ESpeak {
	if rate <= 0 {
		rate = DefaultRate
	}
	e := &ESpeak{rate: rate, run: runCommand}
	for _, name := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(name); err == nil {
			e.binary = path
			break
		}
	}
	e.catalog = newVoiceCatalog(e.loadVoices)
	return e
}

// Available reports whether an espeak binary was found
func (e *ESpeak) Available() bool {
	return e.binary != ""
}

// Voices returns the installed voices
func (e *ESpeak) Voices() []Voice {
	return e.catalog.Voices()
}

// VoicesChanged is closed once the voice list is loaded
func (e *ESpeak) VoicesChanged() <-chan struct{} {
	return e.catalog.VoicesChanged()
}

func (e *ESpeak) loadVoices() ([]Voice, error) {
	if !e.Available() {
		return nil, nil
	}
	out, err := e.run(context.Background(), e.binary, "--voices")
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(out)), nil
}

// Speak speaks text and blocks until espeak exits
func (e *ESpeak) Speak(ctx context.Context, text string, voice *Voice) error {
	args := []string{"-s", strconv.Itoa(e.rate)}
	if voice != nil && voice.ID != "" {
		args = append(args, "-v", voice.ID)
	}
	args = append(args, "--", text)

	_, err := e.run(ctx, e.binary, args...)
	return err
}

// parseESpeakVoices parses `espeak-ng --voices` output:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
func parseESpeakVoices(out string) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}
		lang := fields[1]
		voices = append(voices, Voice{
			ID:   lang,
			Name: strings.ReplaceAll(fields[3], "_", " "),
			Lang: lang,
		})
	}
	return voices
}
