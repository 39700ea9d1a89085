// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: macOS native TTS using 'say' command
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package tts

import (
	"bufio"
	"context"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// DefaultRate is the default speaking rate in words per minute
const DefaultRate = 200

// MacOSSay implements LocalSynthesizer using the macOS say command
type MacOSSay struct {
	rate    int
	catalog *voiceCatalog
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewMacOSSay creates a say-based engine with the given rate
func NewMacOSSay(rate int) *MacOSSay {
	if rate <= 0 {
		rate = DefaultRate
	}
	m := &MacOSSay{rate: rate, run: runCommand}
	m.catalog = newVoiceCatalog(m.loadVoices)
	return m
}

// Available checks if macOS say is available
func (m *MacOSSay) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("say")
	return err == nil
}

// Voices returns the installed voices
func (m *MacOSSay) Voices() []Voice {
	return m.catalog.Voices()
}

// VoicesChanged is closed once the voice list is loaded
func (m *MacOSSay) VoicesChanged() <-chan struct{} {
	return m.catalog.VoicesChanged()
}

func (m *MacOSSay) loadVoices() ([]Voice, error) {
	if !m.Available() {
		return nil, nil
	}
	out, err := m.run(context.Background(), "say", "-v", "?")
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(out)), nil
}

// Speak speaks text sentence by sentence for faster feedback
func (m *MacOSSay) Speak(ctx context.Context, text string, voice *Voice) error {
	for _, sentence := range splitIntoSentences(text) {
		if err := ctx.Err(); err != nil {
			return err
		}

		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		args := []string{}
		if voice != nil && voice.ID != "" {
			args = append(args, "-v", voice.ID)
		}
		if m.rate > 0 {
			args = append(args, "-r", strconv.Itoa(m.rate))
		}
		args = append(args, sentence)

		if _, err := m.run(ctx, "say", args...); err != nil {
			return err
		}
	}

	return nil
}

// parseSayVoices parses `say -v ?` lines of the form
// "Alex                en_US    # Most people recognize me by my voice."
func parseSayVoices(out string) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		lang := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, Voice{ID: name, Name: name, Lang: lang})
	}
	return voices
}

// splitIntoSentences splits text into sentences
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == ':' || r == '\n' {
			s := current.String()
			if len(s) > 1 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}

	// Add remaining text
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

// runCommand executes a command and returns its stdout
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}
