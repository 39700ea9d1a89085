// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     ui
// Description: Messages exchanged between the app and the terminal UI
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package ui

import (
	"github.com/msto63/vortex/internal/tui/voiceassistant/client"
)

// Role identifies the author of a transcript line
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one transcript line
type Message struct {
	Role Role
	Text string
}

// StateMsg reports an assistant state change
type StateMsg struct {
	State     string
	Icon      string
	Recording bool
	Busy      bool
}

// TranscriptMsg appends a line to the transcript
type TranscriptMsg Message

// HealthMsg carries the latest backend health check
type HealthMsg struct {
	Status client.HealthStatus
}

// SpeakingMsg reports speech output start and end
type SpeakingMsg struct {
	Speaking bool
	Backend  string
}

// DeviceMsg reports the active input device
type DeviceMsg struct {
	Device string
}

// ErrorMsg shows an error in the status bar. A nil Err clears it.
type ErrorMsg struct {
	Err error
}

// frameMsg redraws the visualizer while recording
type frameMsg struct {
	gen int
}
