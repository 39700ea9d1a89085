// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     tts
// Description: Piper TTS implementation
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultPiperSampleRate is used when a model config has no sample rate
const DefaultPiperSampleRate = 22050

// RawPlayer plays raw 16-bit mono PCM
type RawPlayer interface {
	PlayRaw(ctx context.Context, pcm []byte, sampleRate int) error
}

// Piper implements LocalSynthesizer with the Piper CLI. Voices are the
// .onnx models found in the voices directory.
type Piper struct {
	binaryPath string
	voicesDir  string
	espeakData string
	player     RawPlayer
	catalog    *voiceCatalog
}

// NewPiper creates a Piper engine
func NewPiper(binaryPath, voicesDir string, player RawPlayer) *Piper {
	p := &Piper{
		binaryPath: binaryPath,
		voicesDir:  voicesDir,
		player:     player,
	}

	// Find espeak-ng-data directory (relative to binary)
	if binaryPath != "" {
		espeakData := filepath.Join(filepath.Dir(binaryPath), "espeak-ng-data")
		if _, err := os.Stat(espeakData); err == nil {
			p.espeakData = espeakData
		}
	}

	p.catalog = newVoiceCatalog(func() ([]Voice, error) {
		return DiscoverPiperVoices(p.voicesDir)
	})
	return p
}

// Available checks binary, voices directory and player
func (p *Piper) Available() bool {
	if p.binaryPath == "" || p.voicesDir == "" || p.player == nil {
		return false
	}
	if _, err := os.Stat(p.binaryPath); err != nil {
		return false
	}
	_, err := os.Stat(p.voicesDir)
	return err == nil
}

// Voices returns the discovered models
func (p *Piper) Voices() []Voice {
	return p.catalog.Voices()
}

// VoicesChanged is closed once the models are discovered
func (p *Piper) VoicesChanged() <-chan struct{} {
	return p.catalog.VoicesChanged()
}

// Speak synthesizes raw PCM with Piper and plays it. Without a voice the
// first discovered model is used.
func (p *Piper) Speak(ctx context.Context, text string, voice *Voice) error {
	if voice == nil {
		voices := p.Voices()
		if len(voices) == 0 {
			return fmt.Errorf("no piper voice models in %s", p.voicesDir)
		}
		voice = &voices[0]
	}

	pcm, err := p.synthesize(ctx, text, voice.ID)
	if err != nil {
		return err
	}
	return p.player.PlayRaw(ctx, pcm, piperSampleRate(voice.ID+".json"))
}

// synthesize converts text to audio (raw PCM 16-bit signed)
func (p *Piper) synthesize(ctx context.Context, text, modelPath string) ([]byte, error) {
	args := []string{
		"--model", modelPath,
		"--config", modelPath + ".json",
		"--output_raw",
	}

	if p.espeakData != "" {
		args = append(args, "--espeak_data", p.espeakData)
	}

	cmd := exec.CommandContext(ctx, p.binaryPath, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Set working directory to piper directory for library paths
	cmd.Dir = filepath.Dir(p.binaryPath)

	// Set library path for macOS
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("DYLD_LIBRARY_PATH=%s", filepath.Dir(p.binaryPath)),
	)

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("piper failed: %w, stderr: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// piperModelConfig is the subset of a Piper model's .onnx.json we read
type piperModelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
}

func readPiperConfig(path string) (piperModelConfig, error) {
	var cfg piperModelConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = json.Unmarshal(data, &cfg)
	return cfg, err
}

func piperSampleRate(configPath string) int {
	cfg, err := readPiperConfig(configPath)
	if err != nil || cfg.Audio.SampleRate <= 0 {
		return DefaultPiperSampleRate
	}
	return cfg.Audio.SampleRate
}

// DiscoverPiperVoices lists .onnx models that have a config next to them.
// Names follow Piper's "de_DE-thorsten-high" scheme; the language is taken
// from the config or the name prefix.
func DiscoverPiperVoices(voicesDir string) ([]Voice, error) {
	entries, err := os.ReadDir(voicesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read voices directory: %w", err)
	}

	var voices []Voice
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".onnx") {
			continue
		}
		modelPath := filepath.Join(voicesDir, entry.Name())
		cfg, err := readPiperConfig(modelPath + ".json")
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".onnx")
		lang := cfg.Language.Code
		if lang == "" {
			lang, _, _ = strings.Cut(name, "-")
		}
		voices = append(voices, Voice{ID: modelPath, Name: name, Lang: lang})
	}

	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices, nil
}
