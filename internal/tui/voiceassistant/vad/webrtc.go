// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     vad
// Description: WebRTC VAD implementation
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package vad

import (
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// validRates are the sample rates WebRTC VAD accepts
var validRates = []int{8000, 16000, 32000, 48000}

// WebRTCVAD implements voice activity detection using WebRTC's VAD
type WebRTCVAD struct {
	vad        *webrtcvad.VAD
	sampleRate int
	mode       int
}

// NewWebRTCVAD creates a new WebRTC VAD instance
func NewWebRTCVAD(cfg Config) (*WebRTCVAD, error) {
	if !validRate(cfg.SampleRate) {
		return nil, vxerror.Newf(vxerror.CodeInvalidInput, "invalid sample rate %d, must be one of %v", cfg.SampleRate, validRates)
	}

	vad, err := webrtcvad.New()
	if err != nil {
		return nil, vxerror.Wrap(err, "failed to create WebRTC VAD").WithCode(vxerror.CodeUnsupportedPlatform)
	}

	// Set aggressiveness mode (0-3)
	mode := cfg.Mode
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	if err := vad.SetMode(mode); err != nil {
		return nil, vxerror.Wrap(err, "failed to set VAD mode").WithCode(vxerror.CodeInvalidConfig)
	}

	return &WebRTCVAD{
		vad:        vad,
		sampleRate: cfg.SampleRate,
		mode:       mode,
	}, nil
}

func validRate(rate int) bool {
	for _, r := range validRates {
		if rate == r {
			return true
		}
	}
	return false
}

// Process processes float32 samples in 10ms frames and returns true if
// any frame contains speech
func (w *WebRTCVAD) Process(samples []float32) (bool, error) {
	// WebRTC VAD requires 10ms, 20ms, or 30ms frames
	frameSize := w.frameSize()

	if len(samples) < frameSize {
		// Pad with zeros if too short
		padded := make([]float32, frameSize)
		copy(padded, samples)
		samples = padded
	}

	for i := 0; i+frameSize <= len(samples); i += frameSize {
		frame := audio.Float32ToPCM16(samples[i : i+frameSize])

		active, err := w.vad.Process(w.sampleRate, frame)
		if err != nil {
			return false, vxerror.Wrap(err, "VAD processing failed").WithCode(vxerror.CodeInternal)
		}
		if active {
			return true, nil
		}
	}

	return false, nil
}

// frameSize returns the frame size for 10ms at the configured sample rate
func (w *WebRTCVAD) frameSize() int {
	return w.sampleRate / 100
}

// Close releases resources
func (w *WebRTCVAD) Close() error {
	// WebRTC VAD doesn't require explicit cleanup
	return nil
}

// Mode returns the current aggressiveness mode
func (w *WebRTCVAD) Mode() int {
	return w.mode
}

// SampleRate returns the sample rate
func (w *WebRTCVAD) SampleRate() int {
	return w.sampleRate
}
