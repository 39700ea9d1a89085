// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     cmd
// Description: Root command, configuration and logging setup
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msto63/vortex/internal/tui/voiceassistant"
	"github.com/msto63/vortex/pkg/core/config"
	"github.com/msto63/vortex/pkg/core/logging"
)

// settings layers flags over VORTEX_* environment variables
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "vortex",
	Short: "VORTEX - Sprachassistent im Terminal",
	Long: `VORTEX ist ein Sprachassistent für das Terminal.

Fragen werden per Mikrofon aufgenommen oder eingetippt, an das
VORTEX-Backend gesendet und die Antwort wird vorgelesen.

Befehle:
  voice    - Sprachassistent starten (TUI)
  devices  - Mikrofone auflisten
  record   - Einzelne Aufnahme in eine Datei schreiben
  speak    - Text vorlesen
  serve    - TTS-Backend starten

Umgebungsvariablen:
  VORTEX_CONFIG       Config-Datei
  VORTEX_BACKEND_URL  Backend-URL
  VORTEX_LOG_LEVEL    Log-Level (debug, info, warn, error)
  VORTEX_DEVICE       Mikrofon`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config-Datei (default: ./configs/vortex.toml)")
	flags.String("backend-url", "", "Backend-URL (z.B. http://127.0.0.1:25566)")
	flags.String("log-level", "", "Log-Level (debug, info, warn, error)")
	flags.String("device", "", "Mikrofon (Name aus 'vortex devices')")

	settings.SetEnvPrefix("VORTEX")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	for _, name := range []string{"config", "backend-url", "log-level", "device"} {
		_ = settings.BindPFlag(name, flags.Lookup(name))
	}
}

// loadConfig reads the config file, applies saved user settings and then
// flag and environment overrides
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := settings.GetString("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if err := voiceassistant.LoadSettingsFromFile(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Hinweis: Einstellungen konnten nicht geladen werden: %v\n", err)
	}

	if url := settings.GetString("backend-url"); url != "" {
		cfg.Backend.URL = url
	}
	if level := settings.GetString("log-level"); level != "" {
		cfg.Log.Level = strings.ToLower(level)
	}
	if device := settings.GetString("device"); device != "" {
		cfg.Capture.Device = device
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures the process logger. toFile forces file output
// so the terminal UI stays clean.
func setupLogging(cfg *config.Config, toFile bool) error {
	file := cfg.Log.File
	if toFile && file == "" {
		file = filepath.Join(cfg.General.DataDir, "logs", "vortex.log")
	}
	return logging.Configure(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       file,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Fehler: %s: %v\n", msg, err)
}
