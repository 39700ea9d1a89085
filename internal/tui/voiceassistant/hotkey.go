// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     voiceassistant
// Description: Global push-to-talk hotkey
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"context"
	"runtime"

	"golang.design/x/hotkey"
)

// ShortcutDescription is the global recording toggle shown in help texts
const ShortcutDescription = "Ctrl+Shift+M"

// runHotkey toggles recording on Ctrl+Shift+M until ctx ends.
// On macOS, the golang.design/x/hotkey library can cause SIGTRAP crashes
// outside the main thread, so registration is skipped there.
func (a *App) runHotkey(ctx context.Context) error {
	if runtime.GOOS == "darwin" {
		a.logger.Info("Hotkey disabled on macOS (use Ctrl+R in the terminal)")
		return nil
	}

	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyM)
	if err := hk.Register(); err != nil {
		// Without a display server there is no global hotkey; Ctrl+R still works
		a.logger.Warn("Failed to register hotkey", "error", err)
		return nil
	}
	defer hk.Unregister()

	a.logger.Info("Hotkey registered", "shortcut", ShortcutDescription)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hk.Keydown():
			a.logger.Debug("Hotkey pressed")
			a.goSafe(a.ToggleRecording)
		}
	}
}
