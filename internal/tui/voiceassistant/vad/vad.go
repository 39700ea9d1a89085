// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     vad
// Description: Voice Activity Detection interface and speech tracking
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package vad

import (
	"time"

	"github.com/msto63/vortex/pkg/core/config"
)

// Detector is the interface for voice activity detection
type Detector interface {
	// Process processes audio samples and returns whether speech is detected
	Process(samples []float32) (bool, error)

	// Close releases resources
	Close() error
}

// Config holds VAD configuration
type Config struct {
	// SampleRate is the audio sample rate (8000, 16000, 32000, or 48000)
	SampleRate int

	// Mode/Aggressiveness (0-3 for WebRTC VAD, higher = more aggressive filtering)
	Mode int

	// SilenceDuration is how long silence must last to end speech
	SilenceDuration time.Duration

	// MinSpeechDuration is the minimum speech duration to be considered valid
	MinSpeechDuration time.Duration
}

// DefaultConfig returns default VAD configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Mode:              2, // Moderate aggressiveness
		SilenceDuration:   2 * time.Second,
		MinSpeechDuration: 500 * time.Millisecond,
	}
}

// ConfigFromSettings maps the [capture] silence settings
func ConfigFromSettings(c config.CaptureConfig) Config {
	cfg := DefaultConfig()
	if c.SampleRate > 0 {
		cfg.SampleRate = c.SampleRate
	}
	cfg.Mode = c.VADMode
	if c.SilenceDuration.Duration > 0 {
		cfg.SilenceDuration = c.SilenceDuration.Duration
	}
	if c.MinSpeech.Duration > 0 {
		cfg.MinSpeechDuration = c.MinSpeech.Duration
	}
	return cfg
}

// SpeechState tracks the state of speech detection
type SpeechState struct {
	// IsSpeaking indicates if speech is currently detected
	IsSpeaking bool

	// SpeechStartTime is when speech started
	SpeechStartTime time.Time

	// LastSpeechTime is when speech was last detected
	LastSpeechTime time.Time

	// SilenceDuration is the current silence duration
	SilenceDuration time.Duration

	// SpeechDuration is the time from first to last detected speech
	SpeechDuration time.Duration
}

// SpeechTracker tracks speech state over time. Times are supplied by the
// caller so audio time can be used instead of wall time.
type SpeechTracker struct {
	config        Config
	state         SpeechState
	speechStarted bool
	silenceStart  time.Time
}

// NewSpeechTracker creates a new speech tracker
func NewSpeechTracker(cfg Config) *SpeechTracker {
	return &SpeechTracker{
		config: cfg,
	}
}

// Update updates the speech state based on a VAD result observed at now
func (t *SpeechTracker) Update(isSpeech bool, now time.Time) SpeechState {
	if isSpeech {
		if !t.speechStarted {
			// Speech just started
			t.speechStarted = true
			t.state.SpeechStartTime = now
		}

		t.state.IsSpeaking = true
		t.state.LastSpeechTime = now
		t.state.SilenceDuration = 0
		t.silenceStart = time.Time{}
		t.state.SpeechDuration = now.Sub(t.state.SpeechStartTime)
		return t.state
	}

	if t.speechStarted {
		// Was speaking, now silence
		if t.silenceStart.IsZero() {
			t.silenceStart = now
		}
		t.state.SilenceDuration = now.Sub(t.silenceStart)

		if t.state.SilenceDuration >= t.config.SilenceDuration {
			t.state.IsSpeaking = false
		}
	}

	return t.state
}

// ShouldEndRecording returns true if recording should end (silence threshold reached)
func (t *SpeechTracker) ShouldEndRecording() bool {
	return t.speechStarted &&
		t.state.SilenceDuration >= t.config.SilenceDuration &&
		t.state.SpeechDuration >= t.config.MinSpeechDuration
}

// IsValidSpeech returns true if enough speech has been captured
func (t *SpeechTracker) IsValidSpeech() bool {
	return t.state.SpeechDuration >= t.config.MinSpeechDuration
}

// Reset resets the tracker state
func (t *SpeechTracker) Reset() {
	t.state = SpeechState{}
	t.speechStarted = false
	t.silenceStart = time.Time{}
}

// State returns the current speech state
func (t *SpeechTracker) State() SpeechState {
	return t.state
}
