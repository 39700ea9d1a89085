// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Sample buffers for analysis windows and encoder framing
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"sync"
)

// RingBuffer is a thread-safe ring buffer holding the most recent samples
type RingBuffer struct {
	mu       sync.RWMutex
	data     []float32
	size     int
	writePos int
	count    int
}

// NewRingBuffer creates a new ring buffer with the specified capacity
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		data: make([]float32, capacity),
		size: capacity,
	}
}

// Write appends samples, overwriting the oldest data when full
func (rb *RingBuffer) Write(samples []float32) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return
	}
	if len(samples) > rb.size {
		samples = samples[len(samples)-rb.size:]
	}

	for _, s := range samples {
		rb.data[rb.writePos] = s
		rb.writePos = (rb.writePos + 1) % rb.size
		if rb.count < rb.size {
			rb.count++
		}
	}
}

// Latest copies the newest len(dst) samples into dst, oldest first.
// Missing history is zero filled at the front.
func (rb *RingBuffer) Latest(dst []float64) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	n := len(dst)
	avail := rb.count
	if avail > n {
		avail = n
	}
	pad := n - avail
	for i := 0; i < pad; i++ {
		dst[i] = 0
	}

	pos := (rb.writePos - avail + rb.size) % rb.size
	for i := 0; i < avail; i++ {
		dst[pad+i] = float64(rb.data[pos])
		pos = (pos + 1) % rb.size
	}
}

// Len returns the number of samples in the buffer
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer
func (rb *RingBuffer) Cap() int {
	return rb.size
}

// Reset clears the buffer
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.count = 0
}

// FrameAccumulator cuts a sample stream into fixed-size frames.
// It is not safe for concurrent use.
type FrameAccumulator struct {
	frameSize int
	pending   []float32
}

// NewFrameAccumulator creates an accumulator emitting frames of frameSize samples
func NewFrameAccumulator(frameSize int) *FrameAccumulator {
	return &FrameAccumulator{
		frameSize: frameSize,
		pending:   make([]float32, 0, frameSize*2),
	}
}

// Push appends samples and returns every complete frame
func (fa *FrameAccumulator) Push(samples []float32) [][]float32 {
	fa.pending = append(fa.pending, samples...)

	var frames [][]float32
	for len(fa.pending) >= fa.frameSize {
		frame := make([]float32, fa.frameSize)
		copy(frame, fa.pending[:fa.frameSize])
		frames = append(frames, frame)
		fa.pending = fa.pending[fa.frameSize:]
	}

	// Compact so the backing array does not grow without bound
	if len(fa.pending) > 0 {
		fa.pending = append(make([]float32, 0, fa.frameSize*2), fa.pending...)
	} else {
		fa.pending = fa.pending[:0]
	}
	return frames
}

// Flush returns the remaining samples zero padded to a full frame, or nil
func (fa *FrameAccumulator) Flush() []float32 {
	if len(fa.pending) == 0 {
		return nil
	}
	frame := make([]float32, fa.frameSize)
	copy(frame, fa.pending)
	fa.pending = fa.pending[:0]
	return frame
}

// Pending returns the number of buffered samples
func (fa *FrameAccumulator) Pending() int {
	return len(fa.pending)
}
