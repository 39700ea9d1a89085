package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/capture"
)

var (
	recordOut      string
	recordDuration time.Duration
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Nimmt einen Clip auf und speichert ihn",
	Long: `Nimmt einen einzelnen Clip vom Mikrofon auf und schreibt ihn in eine Datei.

Die Aufnahme endet nach --duration, spätestens nach der maximalen
Aufnahmedauer (15s) oder mit Ctrl+C. Die Dateiendung bestimmt das
Format: .wav für WAV, .ogg oder .opus für Ogg/Opus.

Beispiele:
  vortex record --out frage.wav
  vortex record --out frage.ogg --duration 5s`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&recordOut, "out", "o", "aufnahme.wav", "Ausgabedatei")
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "t", 0, "Aufnahmedauer (0 = bis Ctrl+C oder Maximum)")
}

// mimeTypesFor picks the encodings matching the output file extension
func mimeTypesFor(path string, configured []string) []string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return []string{"audio/wav"}
	case ".ogg", ".opus":
		return []string{"audio/ogg;codecs=opus", "audio/ogg"}
	default:
		return configured
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config konnte nicht geladen werden", err)
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("logging setup failed: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	cfg.Capture.MimeTypes = mimeTypesFor(recordOut, cfg.Capture.MimeTypes)
	sessionCfg := capture.ConfigFromSettings(cfg.Capture)
	if recordDuration > 0 && recordDuration < sessionCfg.MaxDuration {
		sessionCfg.MaxDuration = recordDuration
	}

	finished := make(chan *capture.Clip, 1)
	failed := make(chan error, 1)
	sessionCfg.OnRecordingStop = func(clip *capture.Clip) { finished <- clip }
	sessionCfg.OnError = func(err error) { failed <- err }

	session := capture.NewSession(sessionCfg)
	defer session.Destroy()

	media := audio.NewPortAudioCapture(audio.CaptureConfig{
		SampleRate:      cfg.Capture.SampleRate,
		FramesPerBuffer: cfg.Capture.FramesPerBuffer,
	})
	stream, err := media.Acquire(ctx, cfg.Capture.Device)
	if err != nil {
		printError("Mikrofon nicht verfügbar", err)
		return err
	}
	if err := session.Init(ctx, stream); err != nil {
		stream.Stop()
		printError("Aufnahme konnte nicht vorbereitet werden", err)
		return err
	}
	if err := session.Start(ctx); err != nil {
		printError("Aufnahme konnte nicht gestartet werden", err)
		return err
	}

	fmt.Printf("Aufnahme läuft (%s, max. %s) - Ctrl+C beendet...\n", session.MimeType(), sessionCfg.MaxDuration)

	var clip *capture.Clip
	select {
	case clip = <-finished:
	case err := <-failed:
		printError("Aufnahme fehlgeschlagen", err)
		return err
	case <-ctx.Done():
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		clip, err = session.Stop(stopCtx)
		if err != nil {
			printError("Aufnahme fehlgeschlagen", err)
			return err
		}
	}
	if clip == nil {
		return fmt.Errorf("no recording produced")
	}

	if err := os.WriteFile(recordOut, clip.Data, 0644); err != nil {
		printError("Datei konnte nicht geschrieben werden", err)
		return err
	}
	fmt.Printf("Gespeichert: %s (%d Bytes, %s, %d Chunks, %s)\n",
		recordOut, clip.Size(), clip.MimeType, clip.Chunks, clip.Duration.Round(10*time.Millisecond))
	return nil
}
