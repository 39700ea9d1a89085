// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Speech output controller with remote-first, local fallback
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// State represents the controller state
type State int

const (
	StateIdle State = iota
	StateAttemptingRemote
	StatePlayingRemote
	StatePlayingLocal
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttemptingRemote:
		return "attempting_remote"
	case StatePlayingRemote:
		return "playing_remote"
	case StatePlayingLocal:
		return "playing_local"
	default:
		return "unknown"
	}
}

// Config holds the controller collaborators
type Config struct {
	Enabled bool

	// Remote is optional; without it or without Player the local engine is used directly
	Remote      RemoteSynthesizer
	RemoteVoice string
	Player      AudioPlayer

	// Local is optional; without it a failed remote attempt yields SPEECH_UNSUPPORTED
	Local         LocalSynthesizer
	Preference    VoicePreference
	VoicesTimeout time.Duration

	Logger *logging.Logger

	OnSpeakingStarted func(backend Backend)
	OnSpeakingEnded   func(backend Backend)
	OnSpeakingError   func(err error)
}

// playback is one speak attempt
type playback struct {
	id      string
	cancel  context.CancelFunc
	done    chan struct{}
	backend Backend
	started bool
}

// Controller speaks text through a remote synthesizer with a local fallback.
// At most one playback is alive; a new Speak or Stop retires it first.
//
// Notification callbacks run on the speaking goroutine and must not call
// Speak or Stop synchronously.
type Controller struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	enabled bool
	state   State
	current *playback
}

// NewController creates a controller
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = logging.New("tts")
	}
	if cfg.VoicesTimeout <= 0 {
		cfg.VoicesTimeout = DefaultVoicesTimeout
	}
	if cfg.Preference.Names == nil && cfg.Preference.LanguagePrefix == "" {
		cfg.Preference = DefaultVoicePreference()
	}
	return &Controller{
		cfg:     cfg,
		logger:  cfg.Logger,
		enabled: cfg.Enabled,
	}
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Backend returns the backend of the active playback, or BackendNone
func (c *Controller) Backend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return BackendNone
	}
	return c.current.backend
}

// Enabled reports whether speech output is on
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled toggles speech output. Disabling stops any active playback.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()

	if !enabled {
		c.Stop()
	}
}

// Speak synthesizes and plays text, blocking until playback ends, fails,
// or is superseded. It is a no-op when disabled or text is blank. A
// superseded call returns nil.
func (c *Controller) Speak(ctx context.Context, text, voiceHint string) error {
	if !c.Enabled() || strings.TrimSpace(text) == "" {
		return nil
	}

	pb, pctx := c.begin(ctx)
	defer c.finish(pb)

	log := c.logger.With("playback", pb.id[:8])

	if c.remoteUsable() {
		c.setState(pb, StateAttemptingRemote)

		voice := voiceHint
		if voice == "" {
			voice = c.cfg.RemoteVoice
		}
		res, err := c.cfg.Remote.Synthesize(pctx, RemoteRequest{Text: text, Voice: voice, Format: "wav"})

		d := DecideRemote(pctx, res, err)
		switch d.Action {
		case ActionAbandon:
			log.Debug("Remote attempt abandoned")
			return nil
		case ActionPlayRemote:
			return c.playRemote(pctx, pb, res, log)
		case ActionFallbackNotConfigured:
			log.Debug("Remote synthesis not configured, using local engine")
		case ActionFallbackFailure:
			log.Warn("Remote synthesis failed, using local engine", "error", d.Err.String())
		}
	}

	return c.speakLocal(pctx, pb, text, voiceHint, log)
}

// Stop halts the active playback and waits until its resources are
// released. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	pb := c.current
	c.mu.Unlock()

	if pb == nil {
		return
	}
	pb.cancel()
	<-pb.done
}

func (c *Controller) remoteUsable() bool {
	return c.cfg.Remote != nil && c.cfg.Player != nil
}

// begin retires every prior playback and installs a new one
func (c *Controller) begin(ctx context.Context) (*playback, context.Context) {
	c.mu.Lock()
	for c.current != nil {
		prior := c.current
		c.mu.Unlock()
		prior.cancel()
		<-prior.done
		c.mu.Lock()
	}

	pctx, cancel := context.WithCancel(ctx)
	pb := &playback{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.current = pb
	c.mu.Unlock()
	return pb, pctx
}

// finish tears a playback down and emits the end notification if it started
func (c *Controller) finish(pb *playback) {
	c.mu.Lock()
	if c.current == pb {
		c.current = nil
		c.state = StateIdle
	}
	started, backend := pb.started, pb.backend
	c.mu.Unlock()

	pb.cancel()
	if started && c.cfg.OnSpeakingEnded != nil {
		c.cfg.OnSpeakingEnded(backend)
	}
	close(pb.done)
}

func (c *Controller) setState(pb *playback, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == pb {
		c.state = state
	}
}

// markStarted switches to a playing state and emits the start notification.
// It returns false if the playback was superseded meanwhile.
func (c *Controller) markStarted(ctx context.Context, pb *playback, backend Backend) bool {
	c.mu.Lock()
	if c.current != pb || ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	pb.backend = backend
	pb.started = true
	if backend == BackendRemote {
		c.state = StatePlayingRemote
	} else {
		c.state = StatePlayingLocal
	}
	c.mu.Unlock()

	c.logger.Info("Speaking started", "backend", backend.String(), "playback", pb.id[:8])
	if c.cfg.OnSpeakingStarted != nil {
		c.cfg.OnSpeakingStarted(backend)
	}
	return true
}

func (c *Controller) playRemote(ctx context.Context, pb *playback, res *RemoteResult, log *logging.Logger) error {
	if !c.markStarted(ctx, pb, BackendRemote) {
		return nil
	}

	if err := c.cfg.Player.PlayAudio(ctx, res.Body, res.ContentType); err != nil && ctx.Err() == nil {
		return c.playbackFailed(err, BackendRemote, log)
	}
	return nil
}

func (c *Controller) speakLocal(ctx context.Context, pb *playback, text, voiceHint string, log *logging.Logger) error {
	if ctx.Err() != nil {
		return nil
	}

	engine := c.cfg.Local
	if engine == nil || !engine.Available() {
		err := vxerror.New("no local speech engine available").
			WithCode(vxerror.CodeSpeechUnsupported).
			WithOperation("speak")
		log.Error("Speech output unavailable", "error", err.String())
		c.notifyError(err)
		return err
	}

	pref := c.cfg.Preference
	if voiceHint != "" {
		pref.Names = append([]string{voiceHint}, pref.Names...)
	}
	voice := SelectVoice(awaitVoices(ctx, engine, c.cfg.VoicesTimeout), pref)
	if voice != nil {
		log.Debug("Selected local voice", "voice", voice.Name, "lang", voice.Lang)
	}

	if !c.markStarted(ctx, pb, BackendLocal) {
		return nil
	}

	if err := engine.Speak(ctx, text, voice); err != nil && ctx.Err() == nil {
		return c.playbackFailed(err, BackendLocal, log)
	}
	return nil
}

func (c *Controller) playbackFailed(err error, backend Backend, log *logging.Logger) error {
	e := vxerror.Wrap(err, "playback failed").
		WithCode(vxerror.CodePlaybackError).
		WithOperation("speak").
		WithDetail("backend", backend.String())
	log.Error("Playback failed", "error", e.String())
	c.notifyError(e)
	return e
}

func (c *Controller) notifyError(err error) {
	if c.cfg.OnSpeakingError != nil {
		c.cfg.OnSpeakingError(err)
	}
}
