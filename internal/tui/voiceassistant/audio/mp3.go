// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: Playable payload formats and MP3 decoding
// Author:      Mike Stoffels with Claude
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package audio

import (
	"bytes"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// Format is an encoded audio payload format the player understands
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// PlayableFormat maps a content type to a playable format
func PlayableFormat(contentType string) (Format, bool) {
	mt := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return FormatWAV, true
	case "audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg-3":
		return FormatMP3, true
	default:
		return "", false
	}
}

// DecodeMP3 decodes an MP3 payload into mono float32 samples
func DecodeMP3(data []byte) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, vxerror.Wrap(err, "failed to parse MP3").
			WithCode(vxerror.CodePlaybackError).
			WithOperation("audio.decode_mp3")
	}

	// go-mp3 always yields 16-bit little-endian stereo
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, vxerror.Wrap(err, "failed to decode MP3").
			WithCode(vxerror.CodePlaybackError).
			WithOperation("audio.decode_mp3")
	}
	return Downmix(PCM16ToFloat32(pcm), 2), dec.SampleRate(), nil
}
