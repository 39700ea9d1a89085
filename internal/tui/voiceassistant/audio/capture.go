// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Microphone streams using PortAudio
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

const (
	// DefaultSampleRate is the default sample rate for audio capture (16kHz for the STT backend)
	DefaultSampleRate = 16000

	// DefaultFramesPerBuffer is 20ms at 16kHz
	DefaultFramesPerBuffer = 320

	// DefaultChannels is mono audio
	DefaultChannels = 1

	// DefaultDeviceID selects the system default input
	DefaultDeviceID = "default"
)

// CaptureConfig holds configuration for PortAudio capture
type CaptureConfig struct {
	SampleRate      int
	FramesPerBuffer int
}

// DefaultCaptureConfig returns default capture configuration
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:      DefaultSampleRate,
		FramesPerBuffer: DefaultFramesPerBuffer,
	}
}

// PortAudioCapture implements MediaCapture on top of PortAudio
type PortAudioCapture struct {
	cfg    CaptureConfig
	logger *logging.Logger
}

// NewPortAudioCapture creates a capture provider
func NewPortAudioCapture(cfg CaptureConfig) *PortAudioCapture {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	return &PortAudioCapture{
		cfg:    cfg,
		logger: logging.New("audio-capture"),
	}
}

// Acquire opens and starts an input stream on the named device
func (c *PortAudioCapture) Acquire(ctx context.Context, deviceID string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, vxerror.Wrap(err, "failed to initialize PortAudio").
			WithCode(vxerror.CodeUnsupportedPlatform).
			WithOperation("acquire")
	}

	stream, err := c.open(deviceID)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	c.logger.Info("Microphone stream started", "device", stream.deviceID, "stream", stream.id)
	return stream, nil
}

func (c *PortAudioCapture) open(deviceID string) (*paStream, error) {
	device, err := c.findDevice(deviceID)
	if err != nil {
		return nil, err
	}

	buffer := make([]float32, c.cfg.FramesPerBuffer)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: DefaultChannels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(c.cfg.SampleRate),
		FramesPerBuffer: c.cfg.FramesPerBuffer,
	}

	pa, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		return nil, mapPortAudioError(err, "failed to open audio stream", deviceID)
	}

	if err := pa.Start(); err != nil {
		pa.Close()
		return nil, mapPortAudioError(err, "failed to start audio stream", deviceID)
	}

	s := &paStream{
		id:         uuid.NewString(),
		deviceID:   device.Name,
		sampleRate: c.cfg.SampleRate,
		pa:         pa,
		buffer:     buffer,
		out:        newFanout(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     c.logger,
	}
	go s.readLoop()
	return s, nil
}

// findDevice resolves a device ID (the device name) to a PortAudio input device
func (c *PortAudioCapture) findDevice(deviceID string) (*portaudio.DeviceInfo, error) {
	if deviceID == "" || deviceID == DefaultDeviceID {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, mapPortAudioError(err, "no default input device", deviceID)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, vxerror.Wrap(err, "failed to get devices").
			WithCode(vxerror.CodeUnsupportedPlatform).
			WithOperation("acquire")
	}

	for _, dev := range devices {
		if dev.Name == deviceID && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}

	return nil, vxerror.Newf(vxerror.CodeDeviceNotFound, "device not found: %s", deviceID).
		WithOperation("acquire")
}

// Devices returns the available input devices
func (c *PortAudioCapture) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, vxerror.Wrap(err, "failed to initialize PortAudio").
			WithCode(vxerror.CodeUnsupportedPlatform)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, vxerror.Wrap(err, "failed to get devices").
			WithCode(vxerror.CodeUnsupportedPlatform)
	}

	var defaultInputName string
	if defaultInput, err := portaudio.DefaultInputDevice(); err == nil && defaultInput != nil {
		defaultInputName = defaultInput.Name
	}

	var inputDevices []Device
	for _, dev := range devices {
		if dev.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, Device{
				ID:                dev.Name,
				Label:             dev.Name,
				MaxInputChannels:  dev.MaxInputChannels,
				DefaultSampleRate: dev.DefaultSampleRate,
				IsDefault:         dev.Name == defaultInputName,
			})
		}
	}

	return inputDevices, nil
}

// mapPortAudioError translates PortAudio failures into capture error codes
func mapPortAudioError(err error, msg, deviceID string) *vxerror.Error {
	code := vxerror.CodeUnsupportedPlatform

	var paErr portaudio.Error
	if errors.As(err, &paErr) {
		switch paErr {
		case portaudio.InvalidDevice, portaudio.NoDefaultInputDevice:
			code = vxerror.CodeDeviceNotFound
		case portaudio.DeviceUnavailable:
			code = vxerror.CodePermissionDenied
		}
	}

	return vxerror.Wrap(err, msg).
		WithCode(code).
		WithOperation("acquire").
		WithDetail("device", deviceID)
}

// paStream is a running PortAudio input stream
type paStream struct {
	id         string
	deviceID   string
	sampleRate int
	pa         *portaudio.Stream
	buffer     []float32
	out        *fanout
	logger     *logging.Logger

	mu       sync.Mutex
	stopping bool
	quit     chan struct{}
	done     chan struct{}
}

func (s *paStream) ID() string       { return s.id }
func (s *paStream) DeviceID() string { return s.deviceID }
func (s *paStream) SampleRate() int  { return s.sampleRate }

func (s *paStream) Subscribe(buffer int) (<-chan []float32, func()) {
	return s.out.subscribe(buffer)
}

func (s *paStream) Active() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// readLoop continuously reads audio from the stream. It owns the PortAudio
// stream and releases it on exit.
func (s *paStream) readLoop() {
	defer close(s.done)
	defer func() {
		if err := s.pa.Stop(); err != nil {
			s.logger.Debug("Stream stop failed", "error", err)
		}
		if err := s.pa.Close(); err != nil {
			s.logger.Warn("Stream close failed", "error", err)
		}
		portaudio.Terminate()
		s.out.close()
	}()

	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if err := s.pa.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			s.logger.Warn("Microphone read failed", "stream", s.id, "error", err)
			return
		}

		samples := make([]float32, len(s.buffer))
		copy(samples, s.buffer)
		s.out.publish(samples)
	}
}

// Stop ends the stream and waits until the device is released
func (s *paStream) Stop() error {
	s.mu.Lock()
	if !s.stopping {
		s.stopping = true
		close(s.quit)
	}
	s.mu.Unlock()

	<-s.done
	return nil
}
