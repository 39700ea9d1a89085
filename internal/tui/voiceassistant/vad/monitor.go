// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     vad
// Description: Silence monitor that ends a recording after trailing silence
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package vad

import (
	"sync"
	"time"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/pkg/core/logging"
)

// monitorBuffer is the subscription depth in stream frames
const monitorBuffer = 256

// Monitor watches a microphone stream and calls OnSilence once when
// speech was followed by enough silence. Time is derived from the number
// of samples seen, not from the wall clock.
type Monitor struct {
	detector  Detector
	config    Config
	onSilence func()
	logger    *logging.Logger

	mu     sync.Mutex
	cancel func()
	done   chan struct{}
}

// NewMonitor creates a monitor. onSilence runs on the monitor goroutine
// and must not call Stop synchronously.
func NewMonitor(detector Detector, cfg Config, onSilence func()) *Monitor {
	return &Monitor{
		detector:  detector,
		config:    cfg,
		onSilence: onSilence,
		logger:    logging.New("vad"),
	}
}

// Start begins watching stream. A running watch is stopped first.
func (m *Monitor) Start(stream audio.Stream) {
	m.Stop()

	frames, unsubscribe := stream.Subscribe(monitorBuffer)
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = unsubscribe
	m.done = done
	m.mu.Unlock()

	go m.run(frames, stream.SampleRate(), done)
}

// Stop ends the current watch and waits for it to drain
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(frames <-chan []float32, sampleRate int, done chan struct{}) {
	defer close(done)

	if sampleRate <= 0 {
		sampleRate = m.config.SampleRate
	}
	acc := audio.NewFrameAccumulator(sampleRate / 100)
	tracker := NewSpeechTracker(m.config)
	origin := time.Unix(0, 0)

	var samples int64
	fired := false

	for chunk := range frames {
		for _, frame := range acc.Push(chunk) {
			samples += int64(len(frame))
			if fired {
				continue
			}

			speech, err := m.detector.Process(frame)
			if err != nil {
				m.logger.Warn("VAD frame rejected", "error", err)
				continue
			}

			now := origin.Add(time.Duration(samples) * time.Second / time.Duration(sampleRate))
			tracker.Update(speech, now)

			if tracker.ShouldEndRecording() {
				fired = true
				state := tracker.State()
				m.logger.Debug("Silence detected",
					"speech", state.SpeechDuration,
					"silence", state.SilenceDuration)
				if m.onSilence != nil {
					m.onSilence()
				}
			}
		}
	}
}
