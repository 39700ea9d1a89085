// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     cmd
// Description: CLI command for the voice assistant TUI
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/vortex/internal/tui/voiceassistant"
)

var (
	voiceNoTTS        bool
	voiceSilenceStop  bool
	voiceStreaming    bool
	voiceNoVisualizer bool
	voiceNoHotkey     bool
)

var voiceCmd = &cobra.Command{
	Use:     "voice",
	Aliases: []string{"va"},
	Short:   "Startet den Sprachassistenten",
	Long: `Startet den VORTEX Sprachassistenten im Terminal.

  - Aufnahme mit Ctrl+R oder global mit ` + voiceassistant.ShortcutDescription + `
  - Frequenzanzeige während der Aufnahme
  - Automatisches Ende nach 15 Sekunden oder nach Sprechpause (--silence-stop)
  - Sprachausgabe über das Backend oder lokal (say, espeak, Piper)

Logs werden in ~/.config/vortex/logs/vortex.log geschrieben.

Beispiele:
  vortex voice
  vortex voice --no-tts
  vortex voice --silence-stop --device "USB Microphone"
  vortex voice --backend-url http://192.168.1.10:25566`,
	RunE: runVoice,
}

func init() {
	rootCmd.AddCommand(voiceCmd)

	voiceCmd.Flags().BoolVar(&voiceNoTTS, "no-tts", false, "Sprachausgabe deaktivieren")
	voiceCmd.Flags().BoolVar(&voiceSilenceStop, "silence-stop", false, "Aufnahme nach Sprechpause beenden (VAD)")
	voiceCmd.Flags().BoolVar(&voiceStreaming, "streaming", false, "Aufnahmen über WebSocket senden")
	voiceCmd.Flags().BoolVar(&voiceNoVisualizer, "no-visualizer", false, "Frequenzanzeige ausblenden")
	voiceCmd.Flags().BoolVar(&voiceNoHotkey, "no-hotkey", false, "Globales Tastenkürzel nicht registrieren")
}

func runVoice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config konnte nicht geladen werden", err)
		return err
	}
	if err := setupLogging(cfg, true); err != nil {
		return fmt.Errorf("logging setup failed: %w", err)
	}

	// CLI flags override saved settings
	if cmd.Flags().Changed("no-tts") {
		cfg.Speech.Enabled = !voiceNoTTS
	}
	if cmd.Flags().Changed("silence-stop") {
		cfg.Capture.SilenceStop = voiceSilenceStop
	}
	if cmd.Flags().Changed("streaming") {
		cfg.Backend.Streaming = voiceStreaming
	}
	if voiceNoVisualizer {
		cfg.Visualizer.Enabled = false
	}
	if voiceNoHotkey {
		cfg.Capture.Hotkey = false
	}

	app, err := voiceassistant.New(cfg, voiceassistant.Deps{})
	if err != nil {
		printError("Sprachassistent konnte nicht gestartet werden", err)
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return app.Run(ctx)
}
