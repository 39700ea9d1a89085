// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     version
// Description: Central version management for the client and TTS server
// Author:      Mike Stoffels with Claude
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package version

import "fmt"

// Component versions
const (
	Client    = "0.4.0"
	TTSServer = "0.4.0"
)

var (
	// BuildTime is set at build time via ldflags
	BuildTime = ""

	// GitCommit is set at build time via ldflags
	GitCommit = ""
)

// ComponentVersion returns the version for a component name
func ComponentVersion(name string) string {
	switch name {
	case "tts-server", "serve":
		return TTSServer
	default:
		return Client
	}
}

// String returns a one-line version description
func String(name string) string {
	s := fmt.Sprintf("%s %s", name, ComponentVersion(name))
	if GitCommit != "" {
		s += " (" + GitCommit + ")"
	}
	if BuildTime != "" {
		s += " built " + BuildTime
	}
	return s
}
