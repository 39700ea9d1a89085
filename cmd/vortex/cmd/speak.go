package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msto63/vortex/internal/tui/voiceassistant"
	"github.com/msto63/vortex/internal/tui/voiceassistant/tts"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

var (
	speakVoice string
	speakLocal bool
)

var speakCmd = &cobra.Command{
	Use:   "speak [text]",
	Short: "Liest einen Text vor",
	Long: `Liest einen Text mit der konfigurierten Sprachausgabe vor.

Zuerst wird das Backend (/api/tts) gefragt. Ist dort keine
Sprachsynthese eingerichtet oder schlägt sie fehl, wird lokal
gesprochen (say, espeak-ng oder Piper).

Beispiele:
  vortex speak "Guten Morgen"
  vortex speak --local --voice Anna "Hallo Welt"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpeak,
}

func init() {
	rootCmd.AddCommand(speakCmd)

	speakCmd.Flags().StringVar(&speakVoice, "voice", "", "Bevorzugte Stimme")
	speakCmd.Flags().BoolVar(&speakLocal, "local", false, "Nur lokale Sprachausgabe verwenden")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config konnte nicht geladen werden", err)
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("logging setup failed: %w", err)
	}
	if speakLocal {
		cfg.Speech.Remote = false
	}

	speechCfg := voiceassistant.SpeechConfig(cfg)
	speechCfg.OnSpeakingStarted = func(b tts.Backend) {
		fmt.Printf("Spricht (%s)...\n", b)
	}
	controller := tts.NewController(speechCfg)
	controller.SetEnabled(true)

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		controller.Stop()
	}()

	text := strings.Join(args, " ")
	if err := controller.Speak(ctx, text, speakVoice); err != nil {
		if vxerror.HasCode(err, vxerror.CodeSpeechUnsupported) {
			fmt.Println("Keine Sprachausgabe verfügbar. Installieren Sie espeak-ng oder Piper.")
		}
		printError("Sprachausgabe fehlgeschlagen", err)
		return err
	}
	return nil
}
