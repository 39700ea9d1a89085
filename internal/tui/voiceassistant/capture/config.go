// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     capture
// Description: Capture session configuration, clock and clip types
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package capture

import (
	"time"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/visualizer"
	"github.com/msto63/vortex/pkg/core/config"
	"github.com/msto63/vortex/pkg/core/logging"
)

const (
	// DefaultTimeSlice is the chunk emission interval
	DefaultTimeSlice = 100 * time.Millisecond

	// DefaultMaxDuration stops a recording automatically
	DefaultMaxDuration = 15 * time.Second

	// DefaultFinalizeGrace bounds the wait for the recorder's finalize event
	DefaultFinalizeGrace = 2 * time.Second

	// DefaultBitsPerSecond is the target bitrate for compressed encodings
	DefaultBitsPerSecond = 256000
)

// Config holds the collaborators and settings of a Session
type Config struct {
	MimeTypes     []string
	TimeSlice     time.Duration
	MaxDuration   time.Duration
	FinalizeGrace time.Duration
	BitsPerSecond int
	FFTSize       int

	Recorders audio.RecorderFactory
	Contexts  audio.ContextFactory

	// Renderer is optional; without it no frame loop runs
	Renderer      *visualizer.Renderer
	FrameInterval time.Duration

	Clock  Clock
	Logger *logging.Logger

	OnRecordingStart func()
	OnRecordingStop  func(clip *Clip)
	OnChunk          func(chunk Chunk)
	OnError          func(err error)
}

// DefaultConfig returns settings with the documented defaults and the
// PortAudio-backed collaborators
func DefaultConfig() Config {
	return Config{
		MimeTypes:     append([]string(nil), config.DefaultMimeTypes...),
		TimeSlice:     DefaultTimeSlice,
		MaxDuration:   DefaultMaxDuration,
		FinalizeGrace: DefaultFinalizeGrace,
		BitsPerSecond: DefaultBitsPerSecond,
		FFTSize:       audio.DefaultFFTSize,
		Recorders:     audio.NewEncoderFactory(),
		Contexts:      audio.DefaultContextFactory,
		FrameInterval: visualizer.DefaultFrameInterval,
	}
}

// ConfigFromSettings maps the [capture] section onto a session config
func ConfigFromSettings(c config.CaptureConfig) Config {
	cfg := DefaultConfig()
	if len(c.MimeTypes) > 0 {
		cfg.MimeTypes = append([]string(nil), c.MimeTypes...)
	}
	if c.TimeSlice.Duration > 0 {
		cfg.TimeSlice = c.TimeSlice.Duration
	}
	if c.MaxDuration.Duration > 0 {
		cfg.MaxDuration = c.MaxDuration.Duration
	}
	if c.FinalizeGrace.Duration > 0 {
		cfg.FinalizeGrace = c.FinalizeGrace.Duration
	}
	if c.BitsPerSecond > 0 {
		cfg.BitsPerSecond = c.BitsPerSecond
	}
	if c.FFTSize > 0 {
		cfg.FFTSize = c.FFTSize
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.TimeSlice <= 0 {
		c.TimeSlice = DefaultTimeSlice
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.FinalizeGrace <= 0 {
		c.FinalizeGrace = DefaultFinalizeGrace
	}
	if c.BitsPerSecond <= 0 {
		c.BitsPerSecond = DefaultBitsPerSecond
	}
	if c.FFTSize <= 0 {
		c.FFTSize = audio.DefaultFFTSize
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = visualizer.DefaultFrameInterval
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.Logger == nil {
		c.Logger = logging.New("capture")
	}
}

// Clock abstracts time for the max-duration and finalize timers
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled call
type Timer interface {
	Stop() bool
}

// RealClock uses the time package
type RealClock struct{}

// Now returns the current time
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc schedules f on its own goroutine
func (RealClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Chunk is one timed slice of encoded audio
type Chunk struct {
	Data []byte
	Seq  int
	At   time.Time
}

// Size returns the chunk length in bytes
func (c Chunk) Size() int { return len(c.Data) }

// Clip is the concatenation of all chunks of one recording
type Clip struct {
	Data      []byte
	MimeType  string
	Duration  time.Duration
	Chunks    int
	SessionID string
}

// Size returns the clip length in bytes
func (c *Clip) Size() int { return len(c.Data) }
