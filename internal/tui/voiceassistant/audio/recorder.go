// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Timesliced stream recorder
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package audio

import (
	"sync"
	"sync/atomic"
	"time"

	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// recorderState tracks the recorder lifecycle
type recorderState int32

const (
	recorderInactive recorderState = iota
	recorderRecording
	recorderPaused
	recorderStopped
)

// EncoderFactory builds recorders for Ogg/Opus and the WAV platform default
type EncoderFactory struct {
	opusOnce sync.Once
	opusOK   bool
}

// NewEncoderFactory creates a recorder factory
func NewEncoderFactory() *EncoderFactory {
	return &EncoderFactory{}
}

// IsTypeSupported reports whether the encoding can be produced
func (f *EncoderFactory) IsTypeSupported(mimeType string) bool {
	switch normalizeMimeType(mimeType) {
	case MimeOggOpus, "audio/ogg":
		return f.opusAvailable()
	case MimeWAV, "audio/wave", "audio/x-wav":
		return true
	default:
		return false
	}
}

func (f *EncoderFactory) opusAvailable() bool {
	f.opusOnce.Do(func() {
		_, err := newOggOpusEncoder(opusClockRate, 0)
		f.opusOK = err == nil
	})
	return f.opusOK
}

// NewRecorder creates a recorder for the stream. An empty MimeType selects WAV.
func (f *EncoderFactory) NewRecorder(stream Stream, opts RecorderOptions) (Recorder, error) {
	if stream == nil || !stream.Active() {
		return nil, vxerror.New("stream is not active").WithCode(vxerror.CodeInvalidState)
	}

	mimeType := normalizeMimeType(opts.MimeType)
	var newEncoder func() (chunkEncoder, error)

	switch mimeType {
	case "", MimeWAV, "audio/wave", "audio/x-wav":
		mimeType = MimeWAV
		rate := stream.SampleRate()
		newEncoder = func() (chunkEncoder, error) { return newWAVEncoder(rate), nil }
	case MimeOggOpus, "audio/ogg":
		mimeType = MimeOggOpus
		rate, bps := stream.SampleRate(), opts.BitsPerSecond
		if _, err := newOggOpusEncoder(rate, bps); err != nil {
			return nil, vxerror.Wrap(err, "opus encoder unavailable").
				WithCode(vxerror.CodeEncodingUnsupported).
				WithDetail("mime_type", opts.MimeType)
		}
		newEncoder = func() (chunkEncoder, error) { return newOggOpusEncoder(rate, bps) }
	default:
		return nil, vxerror.Newf(vxerror.CodeEncodingUnsupported, "unsupported encoding: %s", opts.MimeType)
	}

	return &StreamRecorder{
		stream:     stream,
		opts:       opts,
		mimeType:   mimeType,
		newEncoder: newEncoder,
		stopCh:     make(chan struct{}),
		logger:     logging.New("audio-recorder"),
	}, nil
}

// StreamRecorder encodes stream frames and emits a chunk every timeslice
type StreamRecorder struct {
	stream     Stream
	opts       RecorderOptions
	mimeType   string
	newEncoder func() (chunkEncoder, error)
	logger     *logging.Logger

	state    atomic.Int32
	stopOnce sync.Once
	stopCh   chan struct{}
}

// MimeType returns the produced encoding
func (r *StreamRecorder) MimeType() string {
	return r.mimeType
}

// Start begins recording. A recorder can only be started once.
func (r *StreamRecorder) Start(timeslice time.Duration) error {
	if !r.state.CompareAndSwap(int32(recorderInactive), int32(recorderRecording)) {
		return vxerror.New("recorder already started").WithCode(vxerror.CodeInvalidState)
	}
	if timeslice <= 0 {
		timeslice = 100 * time.Millisecond
	}

	enc, err := r.newEncoder()
	if err != nil {
		r.state.Store(int32(recorderStopped))
		return vxerror.Wrap(err, "failed to create encoder").WithCode(vxerror.CodeEncodingUnsupported)
	}

	frames, unsubscribe := r.stream.Subscribe(64)
	go r.run(enc, frames, unsubscribe, timeslice)
	return nil
}

func (r *StreamRecorder) run(enc chunkEncoder, frames <-chan []float32, unsubscribe func(), timeslice time.Duration) {
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	var writeErr error
	write := func(frame []float32) {
		if writeErr != nil || recorderState(r.state.Load()) == recorderPaused {
			return
		}
		if err := enc.Write(frame); err != nil {
			writeErr = err
			r.logger.Warn("Encoding failed", "mime_type", r.mimeType, "error", err)
		}
	}

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				r.finish(enc, writeErr, unsubscribe)
				return
			}
			write(frame)

		case <-ticker.C:
			if data := enc.Take(); len(data) > 0 && r.opts.OnData != nil {
				r.opts.OnData(data)
			}

		case <-r.stopCh:
			// Drain frames captured before the stop request
			for drained := false; !drained; {
				select {
				case frame, ok := <-frames:
					if ok {
						write(frame)
					} else {
						drained = true
					}
				default:
					drained = true
				}
			}
			r.finish(enc, writeErr, unsubscribe)
			return
		}
	}
}

func (r *StreamRecorder) finish(enc chunkEncoder, writeErr error, unsubscribe func()) {
	unsubscribe()
	r.state.Store(int32(recorderStopped))

	pending := enc.Take()
	tail, err := enc.Finish()
	if err == nil {
		err = writeErr
	}

	if r.opts.OnStop != nil {
		r.opts.OnStop(append(pending, tail...), err)
	}
}

// Stop requests finalization. OnStop is called asynchronously.
func (r *StreamRecorder) Stop() error {
	if recorderState(r.state.Load()) == recorderInactive {
		return vxerror.New("recorder not started").WithCode(vxerror.CodeInvalidState)
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
	return nil
}

// Pause discards frames until Resume
func (r *StreamRecorder) Pause() error {
	if !r.state.CompareAndSwap(int32(recorderRecording), int32(recorderPaused)) {
		return vxerror.New("recorder not recording").WithCode(vxerror.CodeInvalidState)
	}
	return nil
}

// Resume continues a paused recording
func (r *StreamRecorder) Resume() error {
	if !r.state.CompareAndSwap(int32(recorderPaused), int32(recorderRecording)) {
		return vxerror.New("recorder not paused").WithCode(vxerror.CodeInvalidState)
	}
	return nil
}
