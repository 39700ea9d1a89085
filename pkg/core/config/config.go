package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config holds the complete application configuration
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Capture    CaptureConfig    `toml:"capture"`
	Visualizer VisualizerConfig `toml:"visualizer"`
	Speech     SpeechConfig     `toml:"speech"`
	Backend    BackendConfig    `toml:"backend"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name     string `toml:"name"`
	Language string `toml:"language" validate:"required"`
	DataDir  string `toml:"data_dir"`
}

// CaptureConfig holds microphone capture and recording settings
type CaptureConfig struct {
	Device          string   `toml:"device"`
	SampleRate      int      `toml:"sample_rate" validate:"oneof=8000 16000 24000 32000 48000"`
	FramesPerBuffer int      `toml:"frames_per_buffer" validate:"gt=0"`
	MimeTypes       []string `toml:"mime_types"`
	TimeSlice       Duration `toml:"time_slice" validate:"gt=0"`
	MaxDuration     Duration `toml:"max_duration" validate:"gt=0"`
	FinalizeGrace   Duration `toml:"finalize_grace" validate:"gt=0"`
	BitsPerSecond   int      `toml:"bits_per_second" validate:"gte=6000,lte=512000"`
	FFTSize         int      `toml:"fft_size" validate:"oneof=32 64 128 256 512 1024 2048"`
	MinClipBytes    int      `toml:"min_clip_bytes" validate:"gte=0"`

	// Silence auto-stop (WebRTC VAD)
	SilenceStop     bool     `toml:"silence_stop"`
	SilenceDuration Duration `toml:"silence_duration"`
	MinSpeech       Duration `toml:"min_speech"`
	VADMode         int      `toml:"vad_mode" validate:"gte=0,lte=3"`

	// Global push-to-talk toggle
	Hotkey bool `toml:"hotkey"`
}

// VisualizerConfig holds frequency visualizer settings
type VisualizerConfig struct {
	Enabled   bool    `toml:"enabled"`
	FPS       int     `toml:"fps" validate:"gte=1,lte=120"`
	FadeAlpha float64 `toml:"fade_alpha" validate:"gte=0,lte=1"`
	LowHue    float64 `toml:"low_hue" validate:"gte=0,lt=360"`
	HighHue   float64 `toml:"high_hue" validate:"gte=0,lt=360"`
	Height    int     `toml:"height" validate:"gte=2"`
}

// SpeechConfig holds speech output settings
type SpeechConfig struct {
	Enabled         bool     `toml:"enabled"`
	Remote          bool     `toml:"remote"`
	RemoteVoice     string   `toml:"remote_voice"`
	RemoteTimeout   Duration `toml:"remote_timeout" validate:"gt=0"`
	LocalEngine     string   `toml:"local_engine" validate:"oneof=auto say espeak piper none"`
	PreferredVoices []string `toml:"preferred_voices"`
	LanguagePrefix  string   `toml:"language_prefix"`
	VoicesTimeout   Duration `toml:"voices_timeout" validate:"gt=0"`
	Rate            int      `toml:"rate" validate:"gte=0"`
	PiperBinary     string   `toml:"piper_binary"`
	PiperVoicesDir  string   `toml:"piper_voices_dir"`
}

// BackendConfig holds the assistant backend connection settings
type BackendConfig struct {
	URL            string   `toml:"url" validate:"required,url"`
	Timeout        Duration `toml:"timeout" validate:"gt=0"`
	Streaming      bool     `toml:"streaming"`
	WebSocketPath  string   `toml:"websocket_path"`
	HealthInterval Duration `toml:"health_interval" validate:"gt=0"`
}

// ServerConfig holds the TTS backend server settings
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port" validate:"gte=1,lte=65535"`
	AIProvider     string   `toml:"ai_provider"`
	OpenAIAPIKey   string   `toml:"openai_api_key"`
	OpenAIBaseURL  string   `toml:"openai_base_url"`
	Model          string   `toml:"model"`
	DefaultVoice   string   `toml:"default_voice"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RequestTimeout Duration `toml:"request_timeout" validate:"gt=0"`
	CacheEntries   int      `toml:"cache_entries" validate:"gte=-1"`
	CacheTTL       Duration `toml:"cache_ttl"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level      string `toml:"level" validate:"oneof=debug info warn error"`
	Format     string `toml:"format" validate:"oneof=json console"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
}

// Duration wraps time.Duration for TOML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultPreferredVoices is the built-in priority list for local voices
var DefaultPreferredVoices = []string{
	"Google US English",
	"Microsoft David",
	"Microsoft Zira",
	"Alex",
	"Daniel",
}

// DefaultMimeTypes is the built-in encoding preference list
var DefaultMimeTypes = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/mpeg",
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.Capture.VADMode = 2
	cfg.Capture.MinClipBytes = 100
	cfg.Visualizer.Enabled = true
	cfg.Speech.Enabled = true
	cfg.Speech.Remote = true
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a TOML file
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads the config named by VORTEX_CONFIG or the first file
// found in the default locations. Without any file the defaults are used.
func LoadFromEnv() (*Config, error) {
	if path := os.Getenv("VORTEX_CONFIG"); path != "" {
		return Load(path)
	}

	for _, p := range DefaultPaths() {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}

	cfg := Default()
	cfg.expandEnvVars()
	return cfg, nil
}

// DefaultPaths returns the locations searched by LoadFromEnv
func DefaultPaths() []string {
	paths := []string{
		"./configs/vortex.toml",
		"./vortex.toml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vortex", "config.toml"))
	}
	return paths
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(Duration); ok {
			return d.Duration
		}
		return nil
	}, Duration{})

	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed '%s' (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Speech.LocalEngine == "piper" && c.Speech.PiperBinary == "" {
		return fmt.Errorf("invalid config: speech.piper_binary is required for the piper engine")
	}

	return nil
}

func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "vortex"
	}
	if c.General.Language == "" {
		c.General.Language = "en"
	}
	if c.General.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.General.DataDir = filepath.Join(home, ".config", "vortex")
		} else {
			c.General.DataDir = ".vortex"
		}
	}

	// Capture
	if c.Capture.Device == "" {
		c.Capture.Device = "default"
	}
	if c.Capture.SampleRate == 0 {
		c.Capture.SampleRate = 16000
	}
	if c.Capture.FramesPerBuffer == 0 {
		c.Capture.FramesPerBuffer = 320
	}
	if len(c.Capture.MimeTypes) == 0 {
		c.Capture.MimeTypes = append([]string(nil), DefaultMimeTypes...)
	}
	if c.Capture.TimeSlice.Duration == 0 {
		c.Capture.TimeSlice.Duration = 100 * time.Millisecond
	}
	if c.Capture.MaxDuration.Duration == 0 {
		c.Capture.MaxDuration.Duration = 15 * time.Second
	}
	if c.Capture.FinalizeGrace.Duration == 0 {
		c.Capture.FinalizeGrace.Duration = 2 * time.Second
	}
	if c.Capture.BitsPerSecond == 0 {
		c.Capture.BitsPerSecond = 256000
	}
	if c.Capture.FFTSize == 0 {
		c.Capture.FFTSize = 256
	}
	if c.Capture.SilenceDuration.Duration == 0 {
		c.Capture.SilenceDuration.Duration = 2 * time.Second
	}
	if c.Capture.MinSpeech.Duration == 0 {
		c.Capture.MinSpeech.Duration = 500 * time.Millisecond
	}

	// Visualizer
	if c.Visualizer.FPS == 0 {
		c.Visualizer.FPS = 30
	}
	if c.Visualizer.FadeAlpha == 0 {
		c.Visualizer.FadeAlpha = 0.3
	}
	if c.Visualizer.LowHue == 0 {
		c.Visualizer.LowHue = 200
	}
	if c.Visualizer.HighHue == 0 {
		c.Visualizer.HighHue = 340
	}
	if c.Visualizer.Height == 0 {
		c.Visualizer.Height = 8
	}

	// Speech
	if c.Speech.RemoteTimeout.Duration == 0 {
		c.Speech.RemoteTimeout.Duration = 20 * time.Second
	}
	if c.Speech.LocalEngine == "" {
		c.Speech.LocalEngine = "auto"
	}
	if len(c.Speech.PreferredVoices) == 0 {
		c.Speech.PreferredVoices = append([]string(nil), DefaultPreferredVoices...)
	}
	if c.Speech.LanguagePrefix == "" {
		c.Speech.LanguagePrefix = "en"
	}
	if c.Speech.VoicesTimeout.Duration == 0 {
		c.Speech.VoicesTimeout.Duration = 3 * time.Second
	}
	if c.Speech.Rate == 0 {
		c.Speech.Rate = 200
	}

	// Backend
	if c.Backend.URL == "" {
		c.Backend.URL = "http://127.0.0.1:25566"
	}
	if c.Backend.Timeout.Duration == 0 {
		c.Backend.Timeout.Duration = 60 * time.Second
	}
	if c.Backend.WebSocketPath == "" {
		c.Backend.WebSocketPath = "/ws"
	}
	if c.Backend.HealthInterval.Duration == 0 {
		c.Backend.HealthInterval.Duration = 30 * time.Second
	}

	// Server
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 25566
	}
	if c.Server.AIProvider == "" {
		c.Server.AIProvider = "local"
	}
	if c.Server.Model == "" {
		c.Server.Model = "tts-1"
	}
	if c.Server.DefaultVoice == "" {
		c.Server.DefaultVoice = "nova"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Server.RequestTimeout.Duration == 0 {
		c.Server.RequestTimeout.Duration = 60 * time.Second
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
}

// expandEnvVars expands environment variables in sensitive fields
func (c *Config) expandEnvVars() {
	c.Server.OpenAIAPIKey = os.ExpandEnv(c.Server.OpenAIAPIKey)
	if c.Server.OpenAIAPIKey == "" {
		c.Server.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		c.Server.AIProvider = strings.ToLower(provider)
	}
	c.Speech.PiperBinary = os.ExpandEnv(c.Speech.PiperBinary)
	c.Speech.PiperVoicesDir = os.ExpandEnv(c.Speech.PiperVoicesDir)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// ServerAddress returns host:port of the TTS server
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SettingsPath returns the path of the persisted user settings
func (c *Config) SettingsPath() string {
	return filepath.Join(c.General.DataDir, "settings.yaml")
}
