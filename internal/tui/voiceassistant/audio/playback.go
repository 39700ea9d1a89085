// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Audio playback using PortAudio
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// DefaultPlaybackBufferSize is the number of frames written per PortAudio call
const DefaultPlaybackBufferSize = 1024

// Player plays PCM audio on the default output device. One clip plays at a
// time; cancelling the context stops playback after the current buffer.
type Player struct {
	mu         sync.Mutex
	playing    bool
	bufferSize int
}

// NewPlayer creates a new audio player
func NewPlayer() *Player {
	return &Player{bufferSize: DefaultPlaybackBufferSize}
}

// PlayWAV decodes and plays a 16-bit PCM WAV file
func (p *Player) PlayWAV(ctx context.Context, data []byte) error {
	wav, err := ParseWAV(data)
	if err != nil {
		return vxerror.Wrap(err, "failed to parse WAV").WithCode(vxerror.CodePlaybackError)
	}
	return p.Play(ctx, wav.Samples(), wav.SampleRate)
}

// PlayAudio plays an encoded payload, choosing the decoder by content type
func (p *Player) PlayAudio(ctx context.Context, data []byte, contentType string) error {
	format, ok := PlayableFormat(contentType)
	if !ok {
		return vxerror.New("unsupported audio format").
			WithCode(vxerror.CodePlaybackError).
			WithDetail("content_type", contentType)
	}
	if format == FormatMP3 {
		return p.PlayMP3(ctx, data)
	}
	return p.PlayWAV(ctx, data)
}

// PlayMP3 decodes and plays an MP3 payload
func (p *Player) PlayMP3(ctx context.Context, data []byte) error {
	samples, sampleRate, err := DecodeMP3(data)
	if err != nil {
		return err
	}
	return p.Play(ctx, samples, sampleRate)
}

// PlayRaw plays raw little-endian 16-bit mono PCM
func (p *Player) PlayRaw(ctx context.Context, pcm []byte, sampleRate int) error {
	return p.Play(ctx, PCM16ToFloat32(pcm), sampleRate)
}

// PlayFile plays a WAV file
func (p *Player) PlayFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return p.PlayWAV(ctx, data)
}

// Play plays mono float32 samples and returns when playback ends or ctx is done
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return vxerror.New("already playing").WithCode(vxerror.CodePlaybackError)
	}
	p.playing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()
	}()

	if err := portaudio.Initialize(); err != nil {
		return vxerror.Wrap(err, "failed to initialize PortAudio").WithCode(vxerror.CodePlaybackError)
	}
	defer portaudio.Terminate()

	buffer := make([]float32, p.bufferSize)
	stream, err := portaudio.OpenDefaultStream(0, DefaultChannels, float64(sampleRate), p.bufferSize, &buffer)
	if err != nil {
		return vxerror.Wrap(err, "failed to open output stream").WithCode(vxerror.CodePlaybackError)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return vxerror.Wrap(err, "failed to start output stream").WithCode(vxerror.CodePlaybackError)
	}
	defer stream.Stop()

	for position := 0; position < len(samples); position += p.bufferSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(buffer, samples[position:])
		for i := n; i < len(buffer); i++ {
			buffer[i] = 0
		}

		if err := stream.Write(); err != nil {
			return vxerror.Wrap(err, "failed to write to stream").WithCode(vxerror.CodePlaybackError)
		}
	}

	return nil
}

// IsPlaying returns whether audio is currently playing
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
