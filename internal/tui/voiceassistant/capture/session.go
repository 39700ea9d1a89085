// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     capture
// Description: Capture session owning one microphone stream and its recorder
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/visualizer"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// owners maps stream IDs to the session holding them
var owners sync.Map

// AcquireFunc obtains a new microphone stream during Rebind
type AcquireFunc func(ctx context.Context) (audio.Stream, error)

// finalizeResult is delivered by the recorder's stop callback
type finalizeResult struct {
	tail []byte
	err  error
}

// recording is the per-start state. Callbacks of a retired recording are
// recognized by identity and ignored.
type recording struct {
	recorder  audio.Recorder
	mimeType  string
	chunks    []Chunk
	seq       int
	accepting bool

	startedAt   time.Time
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration

	timer     Timer
	finalized chan finalizeResult
	aborted   chan struct{}
}

// binding is the stream and analysis graph currently owned
type binding struct {
	stream   audio.Stream
	actx     audio.AudioContext
	analyser audio.Analyser
}

// release disconnects the analysis graph and, unless keepStream, stops the stream
func (b *binding) release(sessionID string, keepStream bool, logger *logging.Logger) {
	if b == nil {
		return
	}
	if b.analyser != nil {
		b.analyser.Disconnect()
	}
	if b.actx != nil {
		if err := b.actx.Close(); err != nil {
			logger.Warn("Audio context close failed", "error", err)
		}
	}
	if b.stream != nil && !keepStream {
		owners.CompareAndDelete(b.stream.ID(), sessionID)
		if err := b.stream.Stop(); err != nil {
			logger.Warn("Stream stop failed", "stream", b.stream.ID(), "error", err)
		}
	}
}

// Session binds one microphone stream to a recorder and a visualizer
type Session struct {
	id     string
	cfg    Config
	logger *logging.Logger

	mu       sync.Mutex
	state    State
	bound    *binding
	rec      *recording
	loop     *visualizer.Loop
	mimeType string
}

// NewSession creates an idle session
func NewSession(cfg Config) *Session {
	cfg.applyDefaults()
	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.Logger.With("session", id[:8]),
		state:  StateIdle,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRecording returns true while a recording is active
func (s *Session) IsRecording() bool {
	return s.State() == StateRecording
}

// IsPaused returns true while an active recording is paused
func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil && s.rec.paused
}

// MimeType returns the encoding of the current or last recording
func (s *Session) MimeType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mimeType
}

// Stream returns the bound stream, or nil
func (s *Session) Stream() audio.Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return nil
	}
	return s.bound.stream
}

// Analyser returns the bound analyser, or nil
func (s *Session) Analyser() audio.Analyser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound == nil {
		return nil
	}
	return s.bound.analyser
}

// Elapsed returns the recorded time excluding pauses
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return 0
	}
	return s.elapsedLocked(s.rec)
}

func (s *Session) elapsedLocked(rec *recording) time.Duration {
	now := s.cfg.Clock.Now()
	d := now.Sub(rec.startedAt) - rec.pausedTotal
	if rec.paused {
		d -= now.Sub(rec.pausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) setStateLocked(to State) bool {
	if !canTransition(s.state, to) {
		s.logger.Debug("Rejected state transition", "from", s.state.String(), "to", to.String())
		return false
	}
	s.logger.Debug("State transition", "from", s.state.String(), "to", to.String())
	s.state = to
	return true
}

// Init binds a granted stream and builds its analysis graph. Any prior
// binding is torn down first. On success the session owns stream and stops
// it on Rebind or Destroy; on failure ownership stays with the caller, who
// must stop it. This also holds when stream was already bound.
func (s *Session) Init(ctx context.Context, stream audio.Stream) error {
	if stream == nil {
		return vxerror.New("stream is nil").WithCode(vxerror.CodeInvalidInput).WithOperation("init")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return vxerror.New("session destroyed").WithCode(vxerror.CodeInvalidState).WithOperation("init")
	}
	if s.state == StateFinalizing || s.state == StateInitializing {
		state := s.state
		s.mu.Unlock()
		return vxerror.Newf(vxerror.CodeInvalidState, "cannot init while %s", state).WithOperation("init")
	}
	if owner, loaded := owners.LoadOrStore(stream.ID(), s.id); loaded && owner != s.id {
		s.mu.Unlock()
		return vxerror.New("stream is owned by another session").
			WithCode(vxerror.CodeInvalidState).
			WithOperation("init").
			WithDetail("stream", stream.ID())
	}

	rec, loop, prior := s.detachLocked()
	s.setStateLocked(StateInitializing)
	s.mu.Unlock()

	s.abort(rec, loop)
	if prior != nil {
		prior.release(s.id, prior.stream != nil && prior.stream.ID() == stream.ID(), s.logger)
	}

	bound, err := s.buildGraph(stream)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroyed {
		owners.CompareAndDelete(stream.ID(), s.id)
		if bound != nil {
			bound.release(s.id, true, s.logger)
		}
		return vxerror.New("session destroyed during init").WithCode(vxerror.CodeInvalidState).WithOperation("init")
	}
	if err != nil {
		owners.CompareAndDelete(stream.ID(), s.id)
		s.setStateLocked(StateIdle)
		return err
	}

	s.bound = bound
	s.setStateLocked(StateReady)
	s.logger.Info("Session bound to stream", "stream", stream.ID(), "device", stream.DeviceID())
	return nil
}

// buildGraph creates the audio context and analyser for a stream
func (s *Session) buildGraph(stream audio.Stream) (*binding, error) {
	if s.cfg.Contexts == nil {
		return nil, vxerror.New("audio processing is not available").
			WithCode(vxerror.CodeUnsupportedPlatform).
			WithOperation("init")
	}

	actx, err := s.cfg.Contexts()
	if err != nil {
		return nil, vxerror.Wrap(err, "failed to create audio context").
			WithCode(vxerror.CodeUnsupportedPlatform).
			WithOperation("init")
	}

	analyser, err := actx.NewAnalyser(stream, s.cfg.FFTSize)
	if err != nil {
		actx.Close()
		return nil, vxerror.Wrap(err, "failed to create analyser").
			WithCode(vxerror.CodeUnsupportedPlatform).
			WithOperation("init")
	}

	return &binding{stream: stream, actx: actx, analyser: analyser}, nil
}

// Start begins a recording. It is a no-op while already recording.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state == StateRecording {
		s.mu.Unlock()
		return nil
	}
	if s.state != StateReady || s.bound == nil {
		state := s.state
		s.mu.Unlock()
		return vxerror.Newf(vxerror.CodeInvalidState, "cannot start while %s", state).WithOperation("start")
	}
	if s.cfg.Recorders == nil {
		s.mu.Unlock()
		return vxerror.New("no recorder available").WithCode(vxerror.CodeEncodingUnsupported).WithOperation("start")
	}

	mimeType := audio.NegotiateMimeType(s.cfg.MimeTypes, s.cfg.Recorders)
	rec := &recording{
		accepting: true,
		finalized: make(chan finalizeResult, 1),
		aborted:   make(chan struct{}),
	}

	recorder, err := s.cfg.Recorders.NewRecorder(s.bound.stream, audio.RecorderOptions{
		MimeType:      mimeType,
		BitsPerSecond: s.cfg.BitsPerSecond,
		OnData:        func(data []byte) { s.handleData(rec, data) },
		OnStop:        func(tail []byte, err error) { s.handleFinalize(rec, tail, err) },
	})
	if err != nil {
		s.mu.Unlock()
		return vxerror.Wrap(err, "failed to create recorder").
			WithCode(vxerror.CodeEncodingUnsupported).
			WithOperation("start").
			WithDetail("mime_type", mimeType)
	}

	if err := recorder.Start(s.cfg.TimeSlice); err != nil {
		s.mu.Unlock()
		return vxerror.Wrap(err, "failed to start recorder").
			WithCode(vxerror.CodeEncodingUnsupported).
			WithOperation("start")
	}

	rec.recorder = recorder
	rec.mimeType = recorder.MimeType()
	if rec.mimeType == "" {
		rec.mimeType = mimeType
	}
	rec.startedAt = s.cfg.Clock.Now()
	rec.timer = s.cfg.Clock.AfterFunc(s.cfg.MaxDuration, func() { s.autoStop(rec) })

	s.rec = rec
	s.mimeType = rec.mimeType
	s.startLoopLocked()
	s.setStateLocked(StateRecording)
	s.mu.Unlock()

	s.logger.Info("Recording started", "mime_type", rec.mimeType, "max_duration", s.cfg.MaxDuration)
	if s.cfg.OnRecordingStart != nil {
		s.cfg.OnRecordingStart()
	}
	return nil
}

// startLoopLocked starts the frame loop for the bound analyser
func (s *Session) startLoopLocked() {
	if s.cfg.Renderer == nil || s.bound == nil || s.loop != nil {
		return
	}
	renderer, analyser := s.cfg.Renderer, s.bound.analyser
	s.loop = visualizer.StartLoop(s.cfg.FrameInterval, func() { renderer.Draw(analyser) })
}

// handleData appends a chunk unless the recording was retired or is stopping
func (s *Session) handleData(rec *recording, data []byte) {
	if len(data) == 0 {
		return
	}

	s.mu.Lock()
	if s.rec != rec || !rec.accepting {
		s.mu.Unlock()
		return
	}
	chunk := Chunk{Data: data, Seq: rec.seq, At: s.cfg.Clock.Now()}
	rec.seq++
	rec.chunks = append(rec.chunks, chunk)
	s.mu.Unlock()

	if s.cfg.OnChunk != nil {
		s.cfg.OnChunk(chunk)
	}
}

// handleFinalize delivers the recorder's stop event to the waiting Stop
func (s *Session) handleFinalize(rec *recording, tail []byte, err error) {
	select {
	case rec.finalized <- finalizeResult{tail: tail, err: err}:
	default:
	}
}

// autoStop fires when the maximum duration elapses
func (s *Session) autoStop(rec *recording) {
	s.logger.Info("Maximum recording duration reached", "max_duration", s.cfg.MaxDuration)
	s.stop(context.Background(), rec)
}

// Stop finalizes the recording and returns the clip. It returns nil, nil
// when not recording. If the recorder does not finalize within the grace
// period the recording is dropped with RECORDER_STALLED.
func (s *Session) Stop(ctx context.Context) (*Clip, error) {
	return s.stop(ctx, nil)
}

func (s *Session) stop(ctx context.Context, expected *recording) (*Clip, error) {
	s.mu.Lock()
	rec := s.rec
	if s.state != StateRecording || rec == nil || (expected != nil && rec != expected) {
		s.mu.Unlock()
		return nil, nil
	}

	rec.accepting = false
	if rec.timer != nil {
		rec.timer.Stop()
	}
	if rec.paused {
		rec.pausedTotal += s.cfg.Clock.Now().Sub(rec.pausedAt)
		rec.paused = false
	}
	duration := s.elapsedLocked(rec)
	loop := s.loop
	s.loop = nil
	s.setStateLocked(StateFinalizing)
	s.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}

	if err := rec.recorder.Stop(); err != nil {
		return nil, s.failStop(rec, vxerror.Wrap(err, "recorder refused to stop").
			WithCode(vxerror.CodeRecorderStalled).
			WithOperation("stop"))
	}

	graceCh := make(chan struct{})
	grace := s.cfg.Clock.AfterFunc(s.cfg.FinalizeGrace, func() { close(graceCh) })
	defer grace.Stop()

	var result finalizeResult
	select {
	case result = <-rec.finalized:
	case <-graceCh:
		return nil, s.failStop(rec, vxerror.New("recorder did not finalize").
			WithCode(vxerror.CodeRecorderStalled).
			WithOperation("stop").
			WithDetail("grace", s.cfg.FinalizeGrace.String()))
	case <-rec.aborted:
		return nil, vxerror.New("session destroyed while finalizing").
			WithCode(vxerror.CodeInvalidState).
			WithOperation("stop")
	case <-ctx.Done():
		return nil, s.failStop(rec, vxerror.Wrap(ctx.Err(), "stop cancelled").
			WithCode(vxerror.CodeTimeout).
			WithOperation("stop"))
	}

	if result.err != nil {
		return nil, s.failStop(rec, vxerror.Wrap(result.err, "recorder failed to finalize").
			WithCode(vxerror.CodeInternal).
			WithOperation("stop"))
	}

	s.mu.Lock()
	if s.rec != rec {
		s.mu.Unlock()
		return nil, vxerror.New("recording retired while finalizing").
			WithCode(vxerror.CodeInvalidState).
			WithOperation("stop")
	}

	size := len(result.tail)
	for _, c := range rec.chunks {
		size += c.Size()
	}
	data := make([]byte, 0, size)
	for _, c := range rec.chunks {
		data = append(data, c.Data...)
	}
	data = append(data, result.tail...)

	clip := &Clip{
		Data:      data,
		MimeType:  rec.mimeType,
		Duration:  duration,
		Chunks:    len(rec.chunks),
		SessionID: s.id,
	}
	rec.chunks = nil
	s.rec = nil
	s.setStateLocked(StateReady)
	s.mu.Unlock()

	s.logger.Info("Recording finalized", "bytes", clip.Size(), "chunks", clip.Chunks, "duration", clip.Duration)
	if s.cfg.OnRecordingStop != nil {
		s.cfg.OnRecordingStop(clip)
	}
	return clip, nil
}

// failStop drops the recording, returns to Ready and reports err
func (s *Session) failStop(rec *recording, err *vxerror.Error) error {
	s.mu.Lock()
	if s.rec == rec {
		rec.chunks = nil
		s.rec = nil
		s.setStateLocked(StateReady)
	}
	s.mu.Unlock()

	s.logger.Error("Recording failed", "error", err.String())
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
	return err
}

// Pause suspends the recorder and the frame loop. The max-duration timer
// keeps running.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StateRecording || s.rec == nil {
		s.mu.Unlock()
		return vxerror.New("not recording").WithCode(vxerror.CodeInvalidState).WithOperation("pause")
	}
	if s.rec.paused {
		s.mu.Unlock()
		return nil
	}
	if err := s.rec.recorder.Pause(); err != nil {
		s.mu.Unlock()
		return vxerror.Wrap(err, "failed to pause recorder").WithOperation("pause")
	}
	s.rec.paused = true
	s.rec.pausedAt = s.cfg.Clock.Now()
	loop := s.loop
	s.loop = nil
	s.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	return nil
}

// Resume continues a paused recording
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording || s.rec == nil {
		return vxerror.New("not recording").WithCode(vxerror.CodeInvalidState).WithOperation("resume")
	}
	if !s.rec.paused {
		return nil
	}
	if err := s.rec.recorder.Resume(); err != nil {
		return vxerror.Wrap(err, "failed to resume recorder").WithOperation("resume")
	}
	s.rec.pausedTotal += s.cfg.Clock.Now().Sub(s.rec.pausedAt)
	s.rec.paused = false
	s.startLoopLocked()
	return nil
}

// Rebind switches to a new stream. An active recording is finalized first
// and its clip returned. The prior stream is stopped before acquire runs.
// If acquisition fails the session is left Idle.
func (s *Session) Rebind(ctx context.Context, acquire AcquireFunc) (*Clip, error) {
	if acquire == nil {
		return nil, vxerror.New("acquire function is nil").WithCode(vxerror.CodeInvalidInput).WithOperation("rebind")
	}

	var clip *Clip
	if s.IsRecording() {
		var err error
		clip, err = s.Stop(ctx)
		if err != nil && !vxerror.HasCode(err, vxerror.CodeRecorderStalled) {
			return nil, err
		}
	}

	s.mu.Lock()
	switch s.state {
	case StateReady, StateIdle:
	default:
		state := s.state
		s.mu.Unlock()
		return clip, vxerror.Newf(vxerror.CodeInvalidState, "cannot rebind while %s", state).WithOperation("rebind")
	}
	s.setStateLocked(StateRebinding)
	prior := s.bound
	s.bound = nil
	s.mu.Unlock()

	prior.release(s.id, false, s.logger)

	stream, err := acquire(ctx)
	if err != nil {
		s.mu.Lock()
		if s.state == StateRebinding {
			s.setStateLocked(StateIdle)
		}
		s.mu.Unlock()
		s.logger.Warn("Device rebind failed", "error", err)
		return clip, err
	}

	if err := s.Init(ctx, stream); err != nil {
		stream.Stop()
		s.mu.Lock()
		if s.state == StateRebinding {
			s.setStateLocked(StateIdle)
		}
		s.mu.Unlock()
		return clip, err
	}
	return clip, nil
}

// Destroy releases every resource without finalizing. Safe to call repeatedly.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.state == StateDestroyed {
		s.mu.Unlock()
		return
	}
	rec, loop, bound := s.detachLocked()
	s.setStateLocked(StateDestroyed)
	s.mu.Unlock()

	s.abort(rec, loop)
	bound.release(s.id, false, s.logger)
	s.logger.Info("Session destroyed")
}

// detachLocked takes ownership of the recording, loop and binding
func (s *Session) detachLocked() (*recording, *visualizer.Loop, *binding) {
	rec, loop, bound := s.rec, s.loop, s.bound
	if rec != nil {
		rec.accepting = false
	}
	s.rec, s.loop, s.bound = nil, nil, nil
	return rec, loop, bound
}

// abort stops a recording without waiting for its clip, then the frame loop
func (s *Session) abort(rec *recording, loop *visualizer.Loop) {
	if rec != nil {
		close(rec.aborted)
		if rec.timer != nil {
			rec.timer.Stop()
		}
		if err := rec.recorder.Stop(); err != nil {
			s.logger.Debug("Recorder stop during teardown failed", "error", err)
		}
	}
	if loop != nil {
		loop.Stop()
	}
}
