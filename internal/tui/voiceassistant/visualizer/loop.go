// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     visualizer
// Description: Cancellable frame loop
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package visualizer

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval is roughly one display refresh at 60 Hz
const DefaultFrameInterval = 16 * time.Millisecond

// Loop runs a frame function on a fixed interval until stopped.
// It owns a single cancellation token.
type Loop struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex
	frames int
}

// StartLoop starts calling frame every interval. frame must not call Stop.
func StartLoop(interval time.Duration, frame func()) *Loop {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Cancellation wins over a tick that raced with it
				if ctx.Err() != nil {
					return
				}
				frame()
				l.mu.Lock()
				l.frames++
				l.mu.Unlock()
			}
		}
	}()

	return l
}

// Stop cancels the loop and waits for an in-flight frame to finish.
// No frame runs after Stop returns. Stopping twice is a no-op.
func (l *Loop) Stop() {
	l.once.Do(l.cancel)
	<-l.done
}

// Running reports whether the loop still schedules frames
func (l *Loop) Running() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

// Frames returns the number of frames rendered so far
func (l *Loop) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}
