// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     voiceassistant
// Description: Settings persistence for Voice Assistant
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"os"
	"path/filepath"

	"github.com/msto63/vortex/pkg/core/config"
	"gopkg.in/yaml.v3"
)

// SettingsFile holds the settings changed at runtime
type SettingsFile struct {
	InputDevice   string `yaml:"input_device,omitempty"`
	SpeechEnabled *bool  `yaml:"speech_enabled,omitempty"`
	RemoteVoice   string `yaml:"remote_voice,omitempty"`
}

// LoadSettingsFile reads persisted settings. A missing file yields empty settings.
func LoadSettingsFile(path string) (*SettingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SettingsFile{}, nil // No settings file yet, use defaults
		}
		return nil, err
	}

	var settings SettingsFile
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveSettingsFile writes settings, creating the directory if needed
func SaveSettingsFile(path string, settings *SettingsFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Apply overlays the persisted settings on cfg
func (s *SettingsFile) Apply(cfg *config.Config) {
	if s.InputDevice != "" {
		cfg.Capture.Device = s.InputDevice
	}
	if s.SpeechEnabled != nil {
		cfg.Speech.Enabled = *s.SpeechEnabled
	}
	if s.RemoteVoice != "" {
		cfg.Speech.RemoteVoice = s.RemoteVoice
	}
}

// LoadSettingsFromFile applies the settings stored at cfg.SettingsPath()
func LoadSettingsFromFile(cfg *config.Config) error {
	settings, err := LoadSettingsFile(cfg.SettingsPath())
	if err != nil {
		return err
	}
	settings.Apply(cfg)
	return nil
}

// saveSettingsToFile persists the current runtime settings
func (a *App) saveSettingsToFile() error {
	a.mu.RLock()
	enabled := a.config.Speech.Enabled
	settings := &SettingsFile{
		InputDevice:   a.config.Capture.Device,
		SpeechEnabled: &enabled,
		RemoteVoice:   a.config.Speech.RemoteVoice,
	}
	path := a.config.SettingsPath()
	a.mu.RUnlock()

	return SaveSettingsFile(path, settings)
}
