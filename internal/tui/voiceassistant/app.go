// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     voiceassistant
// Description: Main application controller
// Author:      Mike Stoffels with Claude
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package voiceassistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/capture"
	"github.com/msto63/vortex/internal/tui/voiceassistant/client"
	"github.com/msto63/vortex/internal/tui/voiceassistant/tts"
	"github.com/msto63/vortex/internal/tui/voiceassistant/ui"
	"github.com/msto63/vortex/internal/tui/voiceassistant/vad"
	"github.com/msto63/vortex/internal/tui/voiceassistant/visualizer"
	"github.com/msto63/vortex/pkg/core/config"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// Assistant answers typed and spoken questions
type Assistant interface {
	SendText(ctx context.Context, text string) (string, error)
	SendAudio(ctx context.Context, clip []byte, mimeType string) (*client.AudioReply, error)
	Health(ctx context.Context) client.HealthStatus
}

// Speaker reads answers aloud. tts.Controller satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text, voiceHint string) error
	Stop()
	Enabled() bool
	SetEnabled(enabled bool)
}

// Streamer uploads clips over a persistent connection. client.WSClient satisfies it.
type Streamer interface {
	Connect(ctx context.Context) error
	SendAudio(ctx context.Context, clip []byte, mimeType string) error
	Events() <-chan client.StreamEvent
	Close() error
}

// Deps overrides the collaborators built from the configuration
type Deps struct {
	Media     audio.MediaCapture
	Recorders audio.RecorderFactory
	Contexts  audio.ContextFactory
	Assistant Assistant
	Speaker   Speaker
	Streamer  Streamer
	Detector  vad.Detector
}

// App is the main voice assistant application
type App struct {
	mu     sync.RWMutex
	config *config.Config
	logger *logging.Logger

	// State
	state  *StateMachine
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	notify func(tea.Msg)

	// Components
	media     audio.MediaCapture
	session   *capture.Session
	canvas    *visualizer.TerminalCanvas
	assistant Assistant
	speaker   Speaker
	streamer  Streamer
	monitor   *vad.Monitor
	detector  vad.Detector
}

// New creates a new voice assistant application
func New(cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, vxerror.New("config is nil").WithCode(vxerror.CodeInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: cfg,
		logger: logging.New("voice-assistant"),
		state:  NewStateMachine(),
		ctx:    ctx,
		cancel: cancel,
		notify: func(tea.Msg) {},
	}

	if err := app.initComponents(deps); err != nil {
		cancel()
		return nil, vxerror.Wrap(err, "failed to initialize components")
	}

	app.state.AddListener(func(_, newState State) {
		app.send(ui.StateMsg{
			State:     newState.String(),
			Icon:      newState.Icon(),
			Recording: newState == StateListening,
			Busy:      newState == StateProcessing,
		})
	})

	return app, nil
}

// initComponents wires capture, speech output, backend and VAD
func (a *App) initComponents(deps Deps) error {
	cfg := a.config

	// Audio capture
	a.media = deps.Media
	if a.media == nil {
		a.media = audio.NewPortAudioCapture(audio.CaptureConfig{
			SampleRate:      cfg.Capture.SampleRate,
			FramesPerBuffer: cfg.Capture.FramesPerBuffer,
		})
	}

	sessionCfg := capture.ConfigFromSettings(cfg.Capture)
	if deps.Recorders != nil {
		sessionCfg.Recorders = deps.Recorders
	}
	if deps.Contexts != nil {
		sessionCfg.Contexts = deps.Contexts
	}
	if cfg.Visualizer.Enabled {
		a.canvas = visualizer.NewTerminalCanvas(80, cfg.Visualizer.Height)
		sessionCfg.Renderer = visualizer.NewRenderer(a.canvas, visualizer.Config{
			FadeAlpha: cfg.Visualizer.FadeAlpha,
			LowHue:    cfg.Visualizer.LowHue,
			HighHue:   cfg.Visualizer.HighHue,
		})
		sessionCfg.FrameInterval = time.Second / time.Duration(cfg.Visualizer.FPS)
	}
	sessionCfg.OnRecordingStart = a.onRecordingStart
	sessionCfg.OnRecordingStop = a.onRecordingStop
	sessionCfg.OnError = a.onCaptureError
	a.session = capture.NewSession(sessionCfg)

	// Backend
	a.assistant = deps.Assistant
	if a.assistant == nil {
		a.assistant = client.NewBackend(client.ConfigFromSettings(cfg.Backend, cfg.Capture))
	}
	a.streamer = deps.Streamer
	if a.streamer == nil && cfg.Backend.Streaming {
		a.streamer = client.NewWSClient(cfg.Backend.URL, cfg.Backend.WebSocketPath)
	}

	// Speech output
	a.speaker = deps.Speaker
	if a.speaker == nil {
		a.speaker = a.newSpeechController()
	}

	// VAD
	if cfg.Capture.SilenceStop {
		a.detector = deps.Detector
		if a.detector == nil {
			det, err := vad.NewWebRTCVAD(vad.ConfigFromSettings(cfg.Capture))
			if err != nil {
				a.logger.Warn("Silence detection disabled", "error", err)
			} else {
				a.detector = det
			}
		}
		if a.detector != nil {
			a.monitor = vad.NewMonitor(a.detector, vad.ConfigFromSettings(cfg.Capture), func() {
				a.goSafe(a.StopRecording)
			})
		}
	}

	return nil
}

// SpeechConfig builds the speech output configuration from [speech]
func SpeechConfig(cfg *config.Config) tts.Config {
	player := audio.NewPlayer()

	speechCfg := tts.ConfigFromSettings(cfg.Speech)
	speechCfg.Local = tts.NewLocalEngine(cfg.Speech, player)
	if cfg.Speech.Remote {
		speechCfg.Remote = tts.NewHTTPRemote(cfg.Backend.URL, cfg.Speech.RemoteTimeout.Duration)
		speechCfg.Player = player
	}
	return speechCfg
}

func (a *App) newSpeechController() *tts.Controller {
	speechCfg := SpeechConfig(a.config)
	speechCfg.OnSpeakingStarted = func(b tts.Backend) {
		a.send(ui.SpeakingMsg{Speaking: true, Backend: b.String()})
	}
	speechCfg.OnSpeakingEnded = func(b tts.Backend) {
		a.send(ui.SpeakingMsg{Speaking: false, Backend: b.String()})
	}
	speechCfg.OnSpeakingError = func(err error) {
		a.logger.Debug("Speech output failed", "error", err)
	}
	return tts.NewController(speechCfg)
}

// SetNotifier sets the sink for UI messages
func (a *App) SetNotifier(fn func(tea.Msg)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fn == nil {
		fn = func(tea.Msg) {}
	}
	a.notify = fn
}

func (a *App) send(msg tea.Msg) {
	a.mu.RLock()
	notify := a.notify
	a.mu.RUnlock()
	notify(msg)
}

// goSafe runs fn on a tracked goroutine
func (a *App) goSafe(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// State returns the assistant state
func (a *App) State() State {
	return a.state.Current()
}

// Session returns the capture session
func (a *App) Session() *capture.Session {
	return a.session
}

// Start binds the configured microphone and connects the stream.
// A missing microphone is reported but does not stop the app; typed
// questions keep working.
func (a *App) Start(ctx context.Context) error {
	device := a.device()
	stream, err := a.media.Acquire(ctx, device)
	if err == nil {
		err = a.session.Init(ctx, stream)
		if err != nil {
			stream.Stop()
		}
	}
	if err != nil {
		a.logger.Warn("Microphone unavailable", "device", device, "error", err)
		a.send(ui.ErrorMsg{Err: err})
	} else {
		a.logger.Info("Microphone ready", "device", device, "mime_type", a.session.MimeType())
		a.send(ui.DeviceMsg{Device: device})
	}

	if a.streamer != nil {
		if err := a.streamer.Connect(ctx); err != nil {
			a.logger.Warn("Streaming unavailable, using HTTP upload", "error", err)
			a.mu.Lock()
			a.streamer = nil
			a.mu.Unlock()
		} else {
			events := a.streamer.Events()
			a.goSafe(func() { a.consumeStream(events) })
		}
	}
	return nil
}

// Run starts the app with the terminal UI and blocks until the UI exits
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Close()

	model := ui.New(a, ui.Config{
		Canvas:        a.canvas,
		CanvasHeight:  a.config.Visualizer.Height,
		FrameInterval: time.Second / time.Duration(a.config.Visualizer.FPS),
		SpeechEnabled: a.speaker.Enabled(),
		Device:        a.device(),
		BackendURL:    a.config.Backend.URL,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	a.SetNotifier(program.Send)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		a.pollHealth(gctx)
		return nil
	})
	if a.config.Capture.Hotkey {
		g.Go(func() error {
			return a.runHotkey(gctx)
		})
	}

	err := g.Wait()
	a.SetNotifier(nil)
	return err
}

// pollHealth checks the backend immediately and then every health interval
func (a *App) pollHealth(ctx context.Context) {
	interval := a.config.Backend.HealthInterval.Duration
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.checkHealth(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *App) checkHealth(ctx context.Context) client.HealthStatus {
	status := a.assistant.Health(ctx)
	if !status.Online {
		a.logger.Debug("Backend offline", "error", status.ErrorMessage)
	}
	a.send(ui.HealthMsg{Status: status})
	return status
}

// ToggleRecording starts or stops a recording
func (a *App) ToggleRecording() {
	if a.session.IsRecording() {
		a.StopRecording()
		return
	}
	a.StartRecording()
}

// StartRecording interrupts speech output and starts capturing
func (a *App) StartRecording() {
	a.speaker.Stop()
	a.send(ui.ErrorMsg{})

	if err := a.session.Start(a.ctx); err != nil {
		a.logger.Warn("Recording could not start", "error", err)
		a.send(ui.ErrorMsg{Err: err})
	}
}

// StopRecording finalizes the recording. The clip is handled by onRecordingStop.
func (a *App) StopRecording() {
	if _, err := a.session.Stop(a.ctx); err != nil {
		a.logger.Debug("Stop returned error", "error", err)
	}
}

func (a *App) onRecordingStart() {
	a.state.Transition(StateListening)
	if a.monitor != nil {
		if stream := a.session.Stream(); stream != nil {
			a.monitor.Start(stream)
		}
	}
}

func (a *App) onRecordingStop(clip *capture.Clip) {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	a.state.Transition(StateProcessing)
	a.goSafe(func() { a.processClip(clip) })
}

func (a *App) onCaptureError(err error) {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	a.state.Transition(StateError)
	a.send(ui.ErrorMsg{Err: err})
}

// processClip sends a finished recording to the backend and speaks the answer
func (a *App) processClip(clip *capture.Clip) {
	if clip.Size() < a.config.Capture.MinClipBytes {
		a.logger.Info("Clip too short, discarded", "bytes", clip.Size())
		a.send(ui.TranscriptMsg{Role: ui.RoleSystem, Text: "Aufnahme zu kurz"})
		a.state.Transition(StateIdle)
		return
	}

	a.mu.RLock()
	streamer := a.streamer
	a.mu.RUnlock()
	if streamer != nil {
		err := streamer.SendAudio(a.ctx, clip.Data, clip.MimeType)
		if err == nil {
			return // answer arrives on the stream
		}
		a.logger.Warn("Stream upload failed, using HTTP upload", "error", err)
	}

	reply, err := a.assistant.SendAudio(a.ctx, clip.Data, clip.MimeType)
	if err != nil {
		a.fail(err)
		return
	}

	a.send(ui.TranscriptMsg{Role: ui.RoleUser, Text: reply.Transcription})
	a.answer(reply.Response)
}

// SubmitText sends a typed question
func (a *App) SubmitText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	a.speaker.Stop()
	a.state.Transition(StateProcessing)

	reply, err := a.assistant.SendText(a.ctx, text)
	if err != nil {
		a.fail(err)
		return
	}
	a.answer(reply)
}

// answer shows the reply and reads it aloud
func (a *App) answer(text string) {
	a.send(ui.TranscriptMsg{Role: ui.RoleAssistant, Text: text})
	if strings.TrimSpace(text) == "" || !a.speaker.Enabled() {
		a.state.Transition(StateIdle)
		return
	}

	a.state.Transition(StateSpeaking)
	if err := a.speaker.Speak(a.ctx, text, ""); err != nil {
		a.logger.Warn("Speech output failed", "code", vxerror.GetCode(err), "error", err)
		a.send(ui.ErrorMsg{Err: err})
	}
	if a.state.Current() == StateSpeaking {
		a.state.Transition(StateIdle)
	}
}

func (a *App) fail(err error) {
	a.logger.Warn("Request failed", "code", vxerror.GetCode(err), "error", err)
	a.send(ui.ErrorMsg{Err: err})
	a.state.Transition(StateError)
}

// consumeStream handles events from the streaming connection
func (a *App) consumeStream(events <-chan client.StreamEvent) {
	for ev := range events {
		switch ev.Type {
		case client.EventStatus:
			a.logger.Debug("Stream status", "status", ev.Status)
		case client.EventTranscription:
			a.send(ui.TranscriptMsg{Role: ui.RoleUser, Text: ev.Text})
		case client.EventResponse:
			a.answer(ev.Text)
		case client.EventError:
			a.fail(vxerror.New(ev.Message).WithCode(vxerror.CodeExternalService).WithOperation("stream"))
		}
	}

	a.mu.Lock()
	a.streamer = nil
	a.mu.Unlock()
	a.logger.Info("Stream closed, using HTTP upload")
}

// ToggleSpeech switches speech output and persists the choice
func (a *App) ToggleSpeech() bool {
	enabled := !a.speaker.Enabled()
	a.speaker.SetEnabled(enabled)

	a.mu.Lock()
	a.config.Speech.Enabled = enabled
	a.mu.Unlock()

	if err := a.saveSettingsToFile(); err != nil {
		a.logger.Warn("Failed to save settings", "error", err)
	}
	return enabled
}

// StopSpeaking silences speech output
func (a *App) StopSpeaking() {
	a.speaker.Stop()
}

// NextDevice switches to the input device after the current one
func (a *App) NextDevice() {
	devices, err := a.media.Devices(a.ctx)
	if err != nil {
		a.send(ui.ErrorMsg{Err: err})
		return
	}
	if len(devices) == 0 {
		a.send(ui.ErrorMsg{Err: vxerror.New("no input devices").WithCode(vxerror.CodeDeviceNotFound)})
		return
	}

	current := a.device()
	next := devices[0]
	for i, d := range devices {
		if d.ID == current {
			next = devices[(i+1)%len(devices)]
			break
		}
	}
	if err := a.SelectDevice(a.ctx, next.ID); err != nil {
		a.send(ui.ErrorMsg{Err: err})
		return
	}
	a.send(ui.DeviceMsg{Device: next.Label})
}

// SelectDevice rebinds the session to another microphone. An active
// recording is finalized and processed first.
func (a *App) SelectDevice(ctx context.Context, deviceID string) error {
	_, err := a.session.Rebind(ctx, func(ctx context.Context) (audio.Stream, error) {
		return a.media.Acquire(ctx, deviceID)
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config.Capture.Device = deviceID
	a.mu.Unlock()

	if err := a.saveSettingsToFile(); err != nil {
		a.logger.Warn("Failed to save settings", "error", err)
	}
	a.logger.Info("Input device switched", "device", deviceID)
	return nil
}

func (a *App) device() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Capture.Device
}

// Close stops speech, releases the microphone and waits for pending work
func (a *App) Close() {
	a.cancel()
	a.speaker.Stop()
	if a.monitor != nil {
		a.monitor.Stop()
	}
	a.session.Destroy()

	a.mu.Lock()
	streamer := a.streamer
	a.mu.Unlock()
	if streamer != nil {
		streamer.Close()
	}

	a.wg.Wait()
	if a.detector != nil {
		a.detector.Close()
	}
	a.logger.Info("Voice assistant stopped")
}
