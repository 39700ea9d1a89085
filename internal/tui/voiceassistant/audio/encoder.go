// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Clip encoders (Ogg/Opus and streaming WAV)
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package audio

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"
)

const (
	// MimeOggOpus is Opus in an Ogg container
	MimeOggOpus = "audio/ogg;codecs=opus"

	// MimeWAV is streaming 16-bit PCM WAV, the platform default
	MimeWAV = "audio/wav"

	// opusClockRate is the Opus RTP and granule clock
	opusClockRate = 48000

	// 20ms per Opus packet
	opusFramesPerSecond = 50

	opusPayloadType = 111
	maxOpusPacket   = 4000
)

// normalizeMimeType lowercases and strips whitespace
func normalizeMimeType(mimeType string) string {
	return strings.ToLower(strings.ReplaceAll(mimeType, " ", ""))
}

// chunkEncoder turns samples into container bytes that can be taken
// incrementally. Concatenating every Take result and the Finish tail
// yields a complete file.
type chunkEncoder interface {
	Write(samples []float32) error
	Take() []byte
	Finish() ([]byte, error)
}

// oggOpusEncoder encodes 20ms Opus packets and pages them into Ogg
type oggOpusEncoder struct {
	buf       bytes.Buffer
	enc       *opus.Encoder
	ogg       *oggwriter.OggWriter
	frames    *FrameAccumulator
	packet    []byte
	sequence  uint16
	timestamp uint32
	ssrc      uint32
}

func newOggOpusEncoder(sampleRate, bitsPerSecond int) (*oggOpusEncoder, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus does not support %d Hz input", sampleRate)
	}

	enc, err := opus.NewEncoder(sampleRate, DefaultChannels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if bitsPerSecond > 0 {
		if bitsPerSecond > 510000 {
			bitsPerSecond = 510000
		}
		if err := enc.SetBitrate(bitsPerSecond); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}

	e := &oggOpusEncoder{
		enc:    enc,
		frames: NewFrameAccumulator(sampleRate / opusFramesPerSecond),
		packet: make([]byte, maxOpusPacket),
		ssrc:   rand.Uint32(),
	}

	// Headers are written to the buffer immediately
	e.ogg, err = oggwriter.NewWith(&e.buf, uint32(sampleRate), DefaultChannels)
	if err != nil {
		return nil, fmt.Errorf("failed to create ogg writer: %w", err)
	}
	return e, nil
}

func (e *oggOpusEncoder) Write(samples []float32) error {
	for _, frame := range e.frames.Push(samples) {
		if err := e.encodeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (e *oggOpusEncoder) encodeFrame(frame []float32) error {
	n, err := e.enc.EncodeFloat32(frame, e.packet)
	if err != nil {
		return fmt.Errorf("opus encode failed: %w", err)
	}

	payload := make([]byte, n)
	copy(payload, e.packet[:n])

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    opusPayloadType,
			SequenceNumber: e.sequence,
			Timestamp:      e.timestamp,
			SSRC:           e.ssrc,
		},
		Payload: payload,
	}
	e.sequence++
	e.timestamp += opusClockRate / opusFramesPerSecond

	return e.ogg.WriteRTP(pkt)
}

func (e *oggOpusEncoder) Take() []byte {
	if e.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	e.buf.Reset()
	return out
}

func (e *oggOpusEncoder) Finish() ([]byte, error) {
	if frame := e.frames.Flush(); frame != nil {
		if err := e.encodeFrame(frame); err != nil {
			return e.Take(), err
		}
	}
	if err := e.ogg.Close(); err != nil {
		return e.Take(), fmt.Errorf("failed to close ogg stream: %w", err)
	}
	return e.Take(), nil
}

// wavEncoder emits a streaming WAV header followed by raw PCM
type wavEncoder struct {
	buf        bytes.Buffer
	sampleRate int
	header     bool
}

func newWAVEncoder(sampleRate int) *wavEncoder {
	return &wavEncoder{sampleRate: sampleRate}
}

func (e *wavEncoder) Write(samples []float32) error {
	if !e.header {
		e.buf.Write(WAVHeader(e.sampleRate, DefaultChannels, streamingSize))
		e.header = true
	}
	e.buf.Write(Float32ToPCM16(samples))
	return nil
}

func (e *wavEncoder) Take() []byte {
	if e.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())
	e.buf.Reset()
	return out
}

func (e *wavEncoder) Finish() ([]byte, error) {
	if !e.header {
		// Empty recording still produces a valid file
		e.buf.Write(WAVHeader(e.sampleRate, DefaultChannels, 0))
		e.header = true
	}
	return e.Take(), nil
}
