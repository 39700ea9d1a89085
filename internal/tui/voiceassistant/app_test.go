package voiceassistant

import (
	"context"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/client"
	"github.com/msto63/vortex/internal/tui/voiceassistant/ui"
	"github.com/msto63/vortex/pkg/core/config"
	vxerror "github.com/msto63/vortex/pkg/core/error"
)

// fakeMedia hands out memory streams
type fakeMedia struct {
	mu      sync.Mutex
	streams []*audio.MemoryStream
	err     error
	devices []audio.Device
}

func (m *fakeMedia) Acquire(ctx context.Context, deviceID string) (audio.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := audio.NewMemoryStream(deviceID, 16000)
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMedia) Devices(ctx context.Context) ([]audio.Device, error) {
	return m.devices, nil
}

func (m *fakeMedia) last() *audio.MemoryStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[len(m.streams)-1]
}

type fakeAssistant struct {
	mu        sync.Mutex
	texts     []string
	clips     [][]byte
	mimeTypes []string
	err       error
}

func (f *fakeAssistant) SendText(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return "", f.err
	}
	return "echo: " + text, nil
}

func (f *fakeAssistant) SendAudio(ctx context.Context, clip []byte, mimeType string) (*client.AudioReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = append(f.clips, clip)
	f.mimeTypes = append(f.mimeTypes, mimeType)
	if f.err != nil {
		return nil, f.err
	}
	return &client.AudioReply{Transcription: "what time is it", Response: "noon"}, nil
}

func (f *fakeAssistant) Health(ctx context.Context) client.HealthStatus {
	return client.HealthStatus{Online: true, Status: "ok"}
}

func (f *fakeAssistant) audioCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clips)
}

type fakeSpeaker struct {
	mu      sync.Mutex
	enabled bool
	spoken  []string
	stops   int
}

func (s *fakeSpeaker) Speak(ctx context.Context, text, voiceHint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *fakeSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

func (s *fakeSpeaker) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *fakeSpeaker) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// fakeStreamer answers every upload on its event channel
type fakeStreamer struct {
	events chan client.StreamEvent
	sent   chan int
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{events: make(chan client.StreamEvent, 8), sent: make(chan int, 1)}
}

func (f *fakeStreamer) Connect(ctx context.Context) error { return nil }

func (f *fakeStreamer) SendAudio(ctx context.Context, clip []byte, mimeType string) error {
	f.sent <- len(clip)
	f.events <- client.StreamEvent{Type: client.EventStatus, Status: "processing"}
	f.events <- client.StreamEvent{Type: client.EventTranscription, Text: "stream question"}
	f.events <- client.StreamEvent{Type: client.EventResponse, Text: "stream answer"}
	return nil
}

func (f *fakeStreamer) Events() <-chan client.StreamEvent { return f.events }

func (f *fakeStreamer) Close() error {
	close(f.events)
	return nil
}

// sink records UI messages
type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *sink) send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) transcript() []ui.TranscriptMsg {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ui.TranscriptMsg
	for _, m := range s.msgs {
		if t, ok := m.(ui.TranscriptMsg); ok {
			out = append(out, t)
		}
	}
	return out
}

func (s *sink) errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []error
	for _, m := range s.msgs {
		if e, ok := m.(ui.ErrorMsg); ok && e.Err != nil {
			out = append(out, e.Err)
		}
	}
	return out
}

type harness struct {
	app       *App
	cfg       *config.Config
	media     *fakeMedia
	assistant *fakeAssistant
	speaker   *fakeSpeaker
	sink      *sink
}

func newHarness(t *testing.T, mutate func(cfg *config.Config, deps *Deps)) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()
	cfg.Capture.MimeTypes = []string{"audio/wav"}

	h := &harness{
		cfg:       cfg,
		media:     &fakeMedia{},
		assistant: &fakeAssistant{},
		speaker:   &fakeSpeaker{enabled: true},
		sink:      &sink{},
	}
	deps := Deps{Media: h.media, Assistant: h.assistant, Speaker: h.speaker}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	app, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	app.SetNotifier(h.sink.send)
	t.Cleanup(app.Close)
	h.app = app
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func TestApp_RecordingRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	h.app.ToggleRecording()
	if got := h.app.State(); got != StateListening {
		t.Fatalf("State() = %v, want %v", got, StateListening)
	}
	h.speaker.mu.Lock()
	stops := h.speaker.stops
	h.speaker.mu.Unlock()
	if stops == 0 {
		t.Error("starting a recording should interrupt speech output")
	}

	stream := h.media.last()
	for i := 0; i < 10; i++ {
		stream.Push(tone(320, 0.5))
	}
	h.app.ToggleRecording()

	waitFor(t, "answer spoken", func() bool { return len(h.speaker.said()) == 1 })
	waitFor(t, "idle", func() bool { return h.app.State() == StateIdle })

	if got := h.speaker.said()[0]; got != "noon" {
		t.Errorf("spoken = %q, want noon", got)
	}
	h.assistant.mu.Lock()
	if len(h.assistant.clips[0]) <= 100 || h.assistant.mimeTypes[0] != "audio/wav" {
		t.Errorf("uploaded %d bytes of %q, want a WAV clip", len(h.assistant.clips[0]), h.assistant.mimeTypes[0])
	}
	h.assistant.mu.Unlock()

	lines := h.sink.transcript()
	if len(lines) != 2 || lines[0].Role != ui.RoleUser || lines[1].Text != "noon" {
		t.Errorf("transcript = %v, want question then answer", lines)
	}
}

func TestApp_ShortClipDiscarded(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Deps) {
		cfg.Capture.MinClipBytes = 1 << 20
	})
	h.app.Start(context.Background())

	h.app.StartRecording()
	h.app.StopRecording()

	waitFor(t, "idle", func() bool { return h.app.State() == StateIdle })
	if n := h.assistant.audioCalls(); n != 0 {
		t.Errorf("SendAudio calls = %d, want 0", n)
	}
	lines := h.sink.transcript()
	if len(lines) != 1 || lines[0].Role != ui.RoleSystem {
		t.Errorf("transcript = %v, want one system line", lines)
	}
}

func TestApp_SubmitText(t *testing.T) {
	h := newHarness(t, nil)

	h.app.SubmitText("  hi  ")
	if got := h.speaker.said(); len(got) != 1 || got[0] != "echo: hi" {
		t.Errorf("spoken = %v, want [echo: hi]", got)
	}
	if got := h.app.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}

	h.app.SubmitText("   ")
	h.assistant.mu.Lock()
	defer h.assistant.mu.Unlock()
	if len(h.assistant.texts) != 1 {
		t.Errorf("blank text was sent: %v", h.assistant.texts)
	}
}

func TestApp_ToggleSpeechPersists(t *testing.T) {
	h := newHarness(t, nil)

	if enabled := h.app.ToggleSpeech(); enabled {
		t.Fatal("ToggleSpeech() = true, want false")
	}
	h.app.SubmitText("quiet please")
	if got := h.speaker.said(); len(got) != 0 {
		t.Errorf("spoken = %v, want nothing while disabled", got)
	}

	settings, err := LoadSettingsFile(h.cfg.SettingsPath())
	if err != nil {
		t.Fatalf("LoadSettingsFile() error = %v", err)
	}
	if settings.SpeechEnabled == nil || *settings.SpeechEnabled {
		t.Errorf("persisted speech_enabled = %v, want false", settings.SpeechEnabled)
	}
}

func TestApp_RequestFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.assistant.err = vxerror.New("backend down").WithCode(vxerror.CodeNetworkError)

	h.app.SubmitText("hello")
	if got := h.app.State(); got != StateError {
		t.Errorf("State() = %v, want %v", got, StateError)
	}
	errs := h.sink.errors()
	if len(errs) != 1 || !vxerror.HasCode(errs[0], vxerror.CodeNetworkError) {
		t.Errorf("errors = %v, want one NETWORK_ERROR", errs)
	}

	// Recovery from the error state
	h.assistant.err = nil
	h.app.SubmitText("hello again")
	if got := h.app.State(); got != StateIdle {
		t.Errorf("State() = %v, want %v", got, StateIdle)
	}
}

func TestApp_StartWithoutMicrophone(t *testing.T) {
	h := newHarness(t, nil)
	h.media.err = vxerror.New("denied").WithCode(vxerror.CodePermissionDenied)

	if err := h.app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v, want nil", err)
	}
	h.app.StartRecording()

	errs := h.sink.errors()
	if len(errs) != 2 {
		t.Fatalf("errors = %v, want acquire and start failures", errs)
	}
	if !vxerror.HasCode(errs[0], vxerror.CodePermissionDenied) {
		t.Errorf("first error = %v, want PERMISSION_DENIED", errs[0])
	}
	if !vxerror.HasCode(errs[1], vxerror.CodeInvalidState) {
		t.Errorf("second error = %v, want INVALID_STATE", errs[1])
	}

	// Typed questions still work
	h.app.SubmitText("still there?")
	if len(h.speaker.said()) != 1 {
		t.Error("text path should work without a microphone")
	}
}

func TestApp_SelectDevice(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, deps *Deps) {
		deps.Media.(*fakeMedia).devices = []audio.Device{
			{ID: "default", Label: "Default"},
			{ID: "usb", Label: "USB Mic"},
		}
	})
	h.app.Start(context.Background())
	first := h.media.last()

	h.app.NextDevice()
	if got := h.app.Session().Stream().DeviceID(); got != "usb" {
		t.Errorf("stream device = %q, want usb", got)
	}
	if first.Active() {
		t.Error("previous stream should be stopped after rebind")
	}

	settings, err := LoadSettingsFile(h.cfg.SettingsPath())
	if err != nil {
		t.Fatalf("LoadSettingsFile() error = %v", err)
	}
	if settings.InputDevice != "usb" {
		t.Errorf("persisted input_device = %q, want usb", settings.InputDevice)
	}

	h.app.NextDevice()
	if got := h.app.Session().Stream().DeviceID(); got != "default" {
		t.Errorf("stream device = %q, want default after wrap-around", got)
	}
}

func TestApp_SelectDeviceWhileRecording(t *testing.T) {
	h := newHarness(t, nil)
	h.app.Start(context.Background())

	h.app.StartRecording()
	stream := h.media.last()
	for i := 0; i < 5; i++ {
		stream.Push(tone(320, 0.5))
	}

	if err := h.app.SelectDevice(context.Background(), "usb"); err != nil {
		t.Fatalf("SelectDevice() error = %v", err)
	}
	waitFor(t, "finalized clip uploaded", func() bool { return h.assistant.audioCalls() == 1 })
}

// energyDetector flags loud frames as speech
type energyDetector struct{}

func (energyDetector) Process(samples []float32) (bool, error) {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum/float64(len(samples))) > 0.1, nil
}

func (energyDetector) Close() error { return nil }

func TestApp_SilenceStopsRecording(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, deps *Deps) {
		cfg.Capture.SilenceStop = true
		cfg.Capture.SilenceDuration = config.Duration{Duration: 200 * time.Millisecond}
		cfg.Capture.MinSpeech = config.Duration{Duration: 100 * time.Millisecond}
		deps.Detector = energyDetector{}
	})
	h.app.Start(context.Background())
	h.app.StartRecording()

	stream := h.media.last()
	for i := 0; i < 20; i++ {
		stream.Push(tone(160, 0.5))
	}
	for i := 0; i < 30; i++ {
		stream.Push(make([]float32, 160))
	}

	waitFor(t, "silence auto-stop", func() bool { return h.assistant.audioCalls() == 1 })
	waitFor(t, "idle", func() bool { return h.app.State() == StateIdle })
}

func TestApp_StreamingUpload(t *testing.T) {
	streamer := newFakeStreamer()
	h := newHarness(t, func(_ *config.Config, deps *Deps) {
		deps.Streamer = streamer
	})
	h.app.Start(context.Background())

	h.app.StartRecording()
	h.media.last().Push(tone(1600, 0.5))
	h.app.StopRecording()

	select {
	case n := <-streamer.sent:
		if n <= 100 {
			t.Errorf("streamed %d bytes, want a full clip", n)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("clip was not streamed")
	}

	waitFor(t, "streamed answer spoken", func() bool { return len(h.speaker.said()) == 1 })
	if got := h.speaker.said()[0]; got != "stream answer" {
		t.Errorf("spoken = %q, want stream answer", got)
	}
	if n := h.assistant.audioCalls(); n != 0 {
		t.Errorf("HTTP uploads = %d, want 0 while streaming", n)
	}
}

func TestApp_HealthCheck(t *testing.T) {
	h := newHarness(t, nil)

	status := h.app.checkHealth(context.Background())
	if !status.Online {
		t.Error("checkHealth() should report the fake backend online")
	}

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	found := false
	for _, m := range h.sink.msgs {
		if _, ok := m.(ui.HealthMsg); ok {
			found = true
		}
	}
	if !found {
		t.Error("checkHealth() should notify the UI")
	}
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, Deps{}); !vxerror.HasCode(err, vxerror.CodeInvalidConfig) {
		t.Errorf("New(nil) error = %v, want INVALID_CONFIG", err)
	}
}

func TestSettingsFile_RoundTrip(t *testing.T) {
	path := t.TempDir() + "/nested/settings.yaml"

	settings, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile(missing) error = %v", err)
	}
	if settings.InputDevice != "" || settings.SpeechEnabled != nil {
		t.Errorf("missing file should yield empty settings, got %+v", settings)
	}

	off := false
	want := &SettingsFile{InputDevice: "usb", SpeechEnabled: &off, RemoteVoice: "alloy"}
	if err := SaveSettingsFile(path, want); err != nil {
		t.Fatalf("SaveSettingsFile() error = %v", err)
	}

	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()
	got, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile() error = %v", err)
	}
	got.Apply(cfg)

	if cfg.Capture.Device != "usb" || cfg.Speech.Enabled || cfg.Speech.RemoteVoice != "alloy" {
		t.Errorf("Apply() gave device=%q enabled=%v voice=%q", cfg.Capture.Device, cfg.Speech.Enabled, cfg.Speech.RemoteVoice)
	}
}

func TestSettingsFile_Invalid(t *testing.T) {
	path := t.TempDir() + "/settings.yaml"
	if err := os.WriteFile(path, []byte("input_device: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettingsFile(path); err == nil {
		t.Error("LoadSettingsFile() should fail on malformed YAML")
	}

	cfg := config.Default()
	cfg.General.DataDir = t.TempDir()
	if err := LoadSettingsFromFile(cfg); err != nil {
		t.Errorf("LoadSettingsFromFile() without file error = %v", err)
	}
}
