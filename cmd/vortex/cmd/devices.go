package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Listet die verfügbaren Mikrofone",
	Long: `Listet alle Eingabegeräte, die PortAudio findet.

Der Name kann mit --device oder VORTEX_DEVICE gewählt werden.
Das aktuell konfigurierte Gerät ist mit * markiert.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config konnte nicht geladen werden", err)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	media := audio.NewPortAudioCapture(audio.CaptureConfig{
		SampleRate:      cfg.Capture.SampleRate,
		FramesPerBuffer: cfg.Capture.FramesPerBuffer,
	})
	devices, err := media.Devices(ctx)
	if err != nil {
		printError("Geräte konnten nicht gelesen werden", err)
		return err
	}
	if len(devices) == 0 {
		fmt.Println("Keine Mikrofone gefunden.")
		return nil
	}

	fmt.Printf("%-3s %-40s %-8s %s\n", "", "NAME", "KANÄLE", "RATE")
	for _, d := range devices {
		marker := ""
		if d.ID == cfg.Capture.Device || (cfg.Capture.Device == "default" && d.IsDefault) {
			marker = "*"
		}
		fmt.Printf("%-3s %-40s %-8d %.0f Hz\n", marker, d.Label, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}
