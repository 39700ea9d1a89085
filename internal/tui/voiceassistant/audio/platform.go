// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Platform capability interfaces for capture, analysis and encoding
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"time"
)

// Device describes an audio input device
type Device struct {
	ID                string
	Label             string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// MediaCapture grants access to microphone streams.
//
// Acquire fails with PERMISSION_DENIED, DEVICE_NOT_FOUND or
// UNSUPPORTED_PLATFORM. An empty or "default" device ID selects the system
// default input.
type MediaCapture interface {
	Acquire(ctx context.Context, deviceID string) (Stream, error)
	Devices(ctx context.Context) ([]Device, error)
}

// Stream is a live microphone stream. Frames are mono float32 samples in
// [-1, 1]. Several consumers (analyser, recorder, VAD) subscribe to the
// same stream; Stop ends the stream and closes every subscription.
type Stream interface {
	ID() string
	DeviceID() string
	SampleRate() int
	Subscribe(buffer int) (<-chan []float32, func())
	Active() bool
	Stop() error
}

// AudioContext builds analysis graphs on streams
type AudioContext interface {
	NewAnalyser(stream Stream, fftSize int) (Analyser, error)
	Close() error
}

// ContextFactory creates an AudioContext. It returns an error when audio
// processing is not available on this platform.
type ContextFactory func() (AudioContext, error)

// Analyser exposes frequency-domain data of the stream it is connected to
type Analyser interface {
	// FrequencyBinCount is fftSize/2
	FrequencyBinCount() int

	// ByteFrequencyData fills dst with the current magnitudes scaled to 0..255
	ByteFrequencyData(dst []byte)

	// Disconnect detaches the analyser from its stream. Further reads yield silence.
	Disconnect()
}

// Recorder encodes a stream into timed chunks.
//
// OnData receives one chunk per timeslice while recording. After Stop the
// recorder finalizes asynchronously and calls OnStop exactly once with any
// trailing container bytes that belong to the end of the clip.
type Recorder interface {
	Start(timeslice time.Duration) error
	Stop() error
	Pause() error
	Resume() error
	MimeType() string
}

// RecorderOptions configures a new Recorder
type RecorderOptions struct {
	// MimeType selects the encoding. Empty selects the platform default.
	MimeType string

	// BitsPerSecond is a target bitrate for compressed encodings
	BitsPerSecond int

	OnData func(data []byte)
	OnStop func(tail []byte, err error)
}

// RecorderFactory constructs recorders and reports supported encodings
type RecorderFactory interface {
	IsTypeSupported(mimeType string) bool
	NewRecorder(stream Stream, opts RecorderOptions) (Recorder, error)
}

// NegotiateMimeType returns the first entry of prefs the factory supports.
// An empty result means the platform default encoding.
func NegotiateMimeType(prefs []string, factory RecorderFactory) string {
	if factory == nil {
		return ""
	}
	for _, mt := range prefs {
		if mt != "" && factory.IsTypeSupported(mt) {
			return mt
		}
	}
	return ""
}
