package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msto63/vortex/internal/ttsserver"
	"github.com/msto63/vortex/pkg/core/version"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Startet das TTS-Backend",
	Long: `Startet das VORTEX TTS-Backend (HTTP).

Endpunkte:
  GET  /health   - Status und AI-Provider
  POST /api/tts  - Sprachsynthese {"text": "...", "voice": "nova"}

Mit ai_provider = "openai" und OPENAI_API_KEY liefert /api/tts WAV-Audio.
Sonst antwortet der Endpunkt mit 202 und der Client spricht lokal.

Beispiele:
  vortex serve
  AI_PROVIDER=openai OPENAI_API_KEY=sk-... vortex serve --port 25566`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host (default aus Config: 127.0.0.1)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port (default aus Config: 25566)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		printError("Config konnte nicht geladen werden", err)
		return err
	}
	if err := setupLogging(cfg, false); err != nil {
		return fmt.Errorf("logging setup failed: %w", err)
	}

	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	serverCfg := ttsserver.ConfigFromSettings(cfg.Server)
	srv := ttsserver.New(serverCfg)

	tts := "nicht konfiguriert (Clients sprechen lokal)"
	if serverCfg.Provider != nil {
		tts = serverCfg.Provider.Name()
	}
	fmt.Printf("VORTEX TTS-Backend %s\n", version.TTSServer)
	fmt.Printf("Adresse:     http://%s\n", srv.Address())
	fmt.Printf("AI-Provider: %s\n", serverCfg.AIProvider)
	fmt.Printf("TTS:         %s\n", tts)

	ctx, cancel := signalContext()
	defer cancel()
	if err := srv.Run(ctx); err != nil {
		printError("Server beendet", err)
		return err
	}
	return nil
}
