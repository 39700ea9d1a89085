// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Speech output capability interfaces and shared types
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"sync"
)

// Backend identifies which synthesis path produced the audio
type Backend int

const (
	BackendNone Backend = iota
	BackendRemote
	BackendLocal
)

// String returns the string representation of the backend
func (b Backend) String() string {
	switch b {
	case BackendRemote:
		return "remote"
	case BackendLocal:
		return "local"
	default:
		return "none"
	}
}

// RemoteRequest is the body sent to the remote synthesis endpoint
type RemoteRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice,omitempty"`
	Format string `json:"format,omitempty"`
}

// RemoteResult is the raw outcome of a remote synthesis call
type RemoteResult struct {
	StatusCode  int
	ContentType string
	Body        []byte

	// Message carries the server's explanation for non-audio responses
	Message string
}

// RemoteSynthesizer converts text to audio server-side
type RemoteSynthesizer interface {
	Synthesize(ctx context.Context, req RemoteRequest) (*RemoteResult, error)
}

// Voice is one installed local voice
type Voice struct {
	ID      string
	Name    string
	Lang    string
	Default bool
}

// LocalSynthesizer is a platform speech engine that speaks directly
type LocalSynthesizer interface {
	// Available reports whether the engine can be used on this host
	Available() bool

	// Voices returns the installed voices. The list may be empty until
	// VoicesChanged fires.
	Voices() []Voice

	// VoicesChanged is closed once the voice list has been loaded
	VoicesChanged() <-chan struct{}

	// Speak blocks until the text was spoken or ctx is cancelled.
	// A nil voice uses the engine default.
	Speak(ctx context.Context, text string, voice *Voice) error
}

// AudioPlayer plays a complete WAV or MP3 payload
type AudioPlayer interface {
	PlayAudio(ctx context.Context, data []byte, contentType string) error
}

// voiceCatalog loads a voice list once in the background
type voiceCatalog struct {
	once   sync.Once
	mu     sync.RWMutex
	voices []Voice
	err    error
	ready  chan struct{}
	load   func() ([]Voice, error)
}

func newVoiceCatalog(load func() ([]Voice, error)) *voiceCatalog {
	return &voiceCatalog{ready: make(chan struct{}), load: load}
}

// start begins loading on first use
func (c *voiceCatalog) start() {
	c.once.Do(func() {
		go func() {
			voices, err := c.load()
			c.mu.Lock()
			c.voices, c.err = voices, err
			c.mu.Unlock()
			close(c.ready)
		}()
	})
}

// Voices returns the loaded voices, or nil while loading
func (c *voiceCatalog) Voices() []Voice {
	c.start()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Voice(nil), c.voices...)
}

// VoicesChanged is closed once loading finished
func (c *voiceCatalog) VoicesChanged() <-chan struct{} {
	c.start()
	return c.ready
}

// Err returns the load error, if any
func (c *voiceCatalog) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}
