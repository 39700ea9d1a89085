// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     audio
// Description: WAV container parsing and PCM conversion helpers
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// streamingSize marks RIFF and data sizes of a WAV stream of unknown length
const streamingSize = 0xFFFFFFFF

// WAV is a decoded PCM WAV file
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Data          []byte
}

// Samples returns the PCM data as mono float32 samples
func (w *WAV) Samples() []float32 {
	samples := PCM16ToFloat32(w.Data)
	if w.Channels <= 1 {
		return samples
	}
	return Downmix(samples, w.Channels)
}

// ParseWAV parses a 16-bit PCM WAV file. Streaming files with unknown
// data size are accepted; the data runs to the end of the input.
func ParseWAV(data []byte) (*WAV, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("file too small to be a valid WAV")
	}

	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("not a valid RIFF file")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a valid WAVE file")
	}

	w := &WAV{}
	pos := 12
	dataStart := -1
	dataSize := 0

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := binary.LittleEndian.Uint32(data[pos+4 : pos+8])

		if chunkID == "data" {
			dataStart = pos + 8
			if chunkSize == streamingSize || dataStart+int(chunkSize) > len(data) {
				dataSize = len(data) - dataStart
			} else {
				dataSize = int(chunkSize)
			}
			break
		}

		if chunkID == "fmt " && chunkSize >= 16 && pos+24 <= len(data) {
			format := binary.LittleEndian.Uint16(data[pos+8 : pos+10])
			if format != 1 && format != 0xFFFE {
				return nil, fmt.Errorf("unsupported WAV format %d", format)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[pos+10 : pos+12]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[pos+12 : pos+16]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(data[pos+22 : pos+24]))
		}

		pos += 8 + int(chunkSize)
		if pos%2 != 0 {
			pos++ // Word alignment
		}
	}

	if w.SampleRate == 0 || dataStart < 0 {
		return nil, fmt.Errorf("missing required WAV chunks")
	}
	if w.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", w.BitsPerSample)
	}
	if w.Channels == 0 {
		w.Channels = 1
	}

	w.Data = data[dataStart : dataStart+dataSize]
	return w, nil
}

// WAVHeader returns a 44-byte PCM16 header. A dataSize of 0xFFFFFFFF
// produces a streaming header.
func WAVHeader(sampleRate, channels int, dataSize uint32) []byte {
	h := make([]byte, 44)
	riffSize := uint32(streamingSize)
	if dataSize != streamingSize {
		riffSize = 36 + dataSize
	}
	blockAlign := channels * 2

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], riffSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1)
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)
	return h
}

// EncodeWAV wraps mono float32 samples into a complete PCM16 WAV file
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToPCM16(samples)
	return append(WAVHeader(sampleRate, 1, uint32(len(pcm))), pcm...)
}

// Float32ToPCM16 converts samples in [-1, 1] to little-endian 16-bit PCM
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(math.Round(v*32767))))
	}
	return out
}

// PCM16ToFloat32 converts little-endian 16-bit PCM to float32 samples
func PCM16ToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return out
}

// Downmix averages interleaved channels into mono
func Downmix(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
