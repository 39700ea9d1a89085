// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: FFT frequency analysis of microphone streams
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package audio

import (
	"math"
	"math/cmplx"
	"sync"

	vxerror "github.com/msto63/vortex/pkg/core/error"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	// DefaultFFTSize gives 128 frequency bins
	DefaultFFTSize = 256

	// DefaultSmoothing is the time constant between successive snapshots
	DefaultSmoothing = 0.8

	// DefaultMinDecibels maps to byte 0
	DefaultMinDecibels = -100.0

	// DefaultMaxDecibels maps to byte 255
	DefaultMaxDecibels = -30.0
)

// ProcessingContext implements AudioContext with in-process FFT analysers
type ProcessingContext struct {
	mu        sync.Mutex
	analysers map[*FFTAnalyser]struct{}
	closed    bool
}

// NewProcessingContext creates an audio processing context
func NewProcessingContext() *ProcessingContext {
	return &ProcessingContext{analysers: make(map[*FFTAnalyser]struct{})}
}

// DefaultContextFactory builds a ProcessingContext
var DefaultContextFactory ContextFactory = func() (AudioContext, error) {
	return NewProcessingContext(), nil
}

// NewAnalyser connects an FFT analyser to the stream
func (pc *ProcessingContext) NewAnalyser(stream Stream, fftSize int) (Analyser, error) {
	if fftSize < 32 || fftSize > 32768 || fftSize&(fftSize-1) != 0 {
		return nil, vxerror.Newf(vxerror.CodeInvalidInput, "fft size must be a power of two in [32, 32768], got %d", fftSize)
	}
	if stream == nil || !stream.Active() {
		return nil, vxerror.New("stream is not active").WithCode(vxerror.CodeInvalidState)
	}

	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return nil, vxerror.New("audio context closed").WithCode(vxerror.CodeInvalidState)
	}

	a := newFFTAnalyser(fftSize)
	a.connect(stream)
	a.onDisconnect = func() {
		pc.mu.Lock()
		delete(pc.analysers, a)
		pc.mu.Unlock()
	}
	pc.analysers[a] = struct{}{}
	return a, nil
}

// Close disconnects all analysers. Closing twice is a no-op.
func (pc *ProcessingContext) Close() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	analysers := make([]*FFTAnalyser, 0, len(pc.analysers))
	for a := range pc.analysers {
		analysers = append(analysers, a)
	}
	pc.mu.Unlock()

	for _, a := range analysers {
		a.Disconnect()
	}
	return nil
}

// FFTAnalyser computes smoothed byte magnitudes from the newest fftSize samples
type FFTAnalyser struct {
	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	samples *RingBuffer

	mu       sync.Mutex
	fft      *fourier.FFT
	seq      []float64
	coeffs   []complex128
	smoothed []float64

	unsubscribe  func()
	done         chan struct{}
	once         sync.Once
	onDisconnect func()
}

func newFFTAnalyser(fftSize int) *FFTAnalyser {
	return &FFTAnalyser{
		fftSize:     fftSize,
		smoothing:   DefaultSmoothing,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		samples:     NewRingBuffer(fftSize),
		fft:         fourier.NewFFT(fftSize),
		seq:         make([]float64, fftSize),
		coeffs:      make([]complex128, fftSize/2+1),
		smoothed:    make([]float64, fftSize/2),
		done:        make(chan struct{}),
	}
}

func (a *FFTAnalyser) connect(stream Stream) {
	frames, unsubscribe := stream.Subscribe(16)
	a.unsubscribe = unsubscribe

	go func() {
		for {
			select {
			case <-a.done:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				a.samples.Write(frame)
			}
		}
	}()
}

// Write feeds samples directly. Used when the analyser is not connected to a stream.
func (a *FFTAnalyser) Write(samples []float32) {
	a.samples.Write(samples)
}

// FrequencyBinCount returns fftSize/2
func (a *FFTAnalyser) FrequencyBinCount() int {
	return a.fftSize / 2
}

// ByteFrequencyData fills dst with magnitudes mapped from
// [minDecibels, maxDecibels] onto 0..255
func (a *FFTAnalyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.done:
		for i := range dst {
			dst[i] = 0
		}
		return
	default:
	}

	a.samples.Latest(a.seq)
	window.Blackman(a.seq)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	scale := 1.0 / float64(a.fftSize)
	rangeDB := a.maxDecibels - a.minDecibels
	bins := a.FrequencyBinCount()

	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if k >= len(dst) {
			continue
		}

		db := math.Inf(-1)
		if a.smoothed[k] > 0 {
			db = 20 * math.Log10(a.smoothed[k])
		}
		v := 255 * (db - a.minDecibels) / rangeDB
		switch {
		case v <= 0 || math.IsNaN(v):
			dst[k] = 0
		case v >= 255:
			dst[k] = 255
		default:
			dst[k] = byte(v)
		}
	}
	for k := bins; k < len(dst); k++ {
		dst[k] = 0
	}
}

// Disconnect detaches the analyser. Further reads yield silence.
func (a *FFTAnalyser) Disconnect() {
	a.once.Do(func() {
		a.mu.Lock()
		close(a.done)
		a.mu.Unlock()

		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		if a.onDisconnect != nil {
			a.onDisconnect()
		}
	})
}
