// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Frame fanout shared by microphone streams
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"sync"

	"github.com/google/uuid"
)

// fanout delivers every frame to all subscribers. Slow subscribers drop
// frames instead of blocking the producer.
type fanout struct {
	mu     sync.Mutex
	subs   map[int]chan []float32
	nextID int
	closed bool
}

func newFanout() *fanout {
	return &fanout{subs: make(map[int]chan []float32)}
}

func (f *fanout) subscribe(buffer int) (<-chan []float32, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan []float32, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
}

func (f *fanout) publish(frame []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for _, ch := range f.subs {
		select {
		case ch <- frame:
		default:
			// Drop if subscriber is behind
		}
	}
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		close(ch)
		delete(f.subs, id)
	}
}

// MemoryStream is a Stream fed by Push. It backs tests and file playback
// into the capture pipeline.
type MemoryStream struct {
	id         string
	deviceID   string
	sampleRate int
	out        *fanout

	mu      sync.Mutex
	stopped bool
	onStop  func()
}

// NewMemoryStream creates a stream for the given device and sample rate
func NewMemoryStream(deviceID string, sampleRate int) *MemoryStream {
	return &MemoryStream{
		id:         uuid.NewString(),
		deviceID:   deviceID,
		sampleRate: sampleRate,
		out:        newFanout(),
	}
}

// ID returns the stream identifier
func (s *MemoryStream) ID() string { return s.id }

// DeviceID returns the device the stream belongs to
func (s *MemoryStream) DeviceID() string { return s.deviceID }

// SampleRate returns the sample rate in Hz
func (s *MemoryStream) SampleRate() int { return s.sampleRate }

// Subscribe registers a frame consumer
func (s *MemoryStream) Subscribe(buffer int) (<-chan []float32, func()) {
	return s.out.subscribe(buffer)
}

// Push delivers a frame to all subscribers. Pushing to a stopped stream is a no-op.
func (s *MemoryStream) Push(frame []float32) {
	s.out.publish(frame)
}

// Active reports whether the stream still delivers frames
func (s *MemoryStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// OnStop registers a hook run once when the stream stops
func (s *MemoryStream) OnStop(fn func()) {
	s.mu.Lock()
	s.onStop = fn
	s.mu.Unlock()
}

// Stop ends the stream
func (s *MemoryStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	hook := s.onStop
	s.mu.Unlock()

	s.out.close()
	if hook != nil {
		hook()
	}
	return nil
}
