package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msto63/vortex/internal/tui/voiceassistant/audio"
	"github.com/msto63/vortex/internal/tui/voiceassistant/visualizer"
	vxerror "github.com/msto63/vortex/pkg/core/error"
	"github.com/msto63/vortex/pkg/core/logging"
)

// --- fake clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 12, 8, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers on the calling goroutine
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// Pending returns the number of scheduled timers
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Scheduled returns the number of timers ever created
func (c *fakeClock) Scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// --- fake recorder ---

type fakeRecorder struct {
	mu       sync.Mutex
	opts     audio.RecorderOptions
	mimeType string
	started  int
	stopped  int
	paused   bool
	stall    bool
	tail     []byte
	lateData []byte
}

func (r *fakeRecorder) Start(time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	r.stopped++
	first := r.stopped == 1
	stall, tail, late := r.stall, r.tail, r.lateData
	r.mu.Unlock()

	if !first {
		return nil
	}
	if late != nil {
		r.opts.OnData(late)
	}
	if !stall {
		r.opts.OnStop(tail, nil)
	}
	return nil
}

func (r *fakeRecorder) Pause() error  { r.paused = true; return nil }
func (r *fakeRecorder) Resume() error { r.paused = false; return nil }
func (r *fakeRecorder) MimeType() string {
	return r.mimeType
}

// emit delivers one timesliced chunk
func (r *fakeRecorder) emit(data string) {
	r.opts.OnData([]byte(data))
}

func (r *fakeRecorder) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

type fakeFactory struct {
	mu        sync.Mutex
	supported map[string]bool
	recorders []*fakeRecorder
	newErr    error
	stall     bool
	tail      []byte
	lateData  []byte
}

func (f *fakeFactory) IsTypeSupported(mimeType string) bool { return f.supported[mimeType] }

func (f *fakeFactory) NewRecorder(_ audio.Stream, opts audio.RecorderOptions) (audio.Recorder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	mt := opts.MimeType
	if mt == "" {
		mt = "audio/wav"
	}
	r := &fakeRecorder{opts: opts, mimeType: mt, stall: f.stall, tail: f.tail, lateData: f.lateData}
	f.recorders = append(f.recorders, r)
	return r, nil
}

func (f *fakeFactory) last() *fakeRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorders[len(f.recorders)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recorders)
}

// --- fake analysis graph ---

type fakeAnalyser struct {
	reads        atomic.Int32
	disconnected atomic.Int32
}

func (a *fakeAnalyser) FrequencyBinCount() int { return 128 }
func (a *fakeAnalyser) ByteFrequencyData(dst []byte) {
	a.reads.Add(1)
	for i := range dst {
		dst[i] = 128
	}
}
func (a *fakeAnalyser) Disconnect() { a.disconnected.Add(1) }

type fakeContext struct {
	analysers []*fakeAnalyser
	closed    atomic.Int32
}

func (c *fakeContext) NewAnalyser(audio.Stream, int) (audio.Analyser, error) {
	a := &fakeAnalyser{}
	c.analysers = append(c.analysers, a)
	return a, nil
}

func (c *fakeContext) Close() error {
	c.closed.Add(1)
	return nil
}

// --- harness ---

type harness struct {
	t        *testing.T
	clock    *fakeClock
	factory  *fakeFactory
	contexts []*fakeContext
	session  *Session
	stream   *audio.MemoryStream

	mu      sync.Mutex
	starts  int
	clips   []*Clip
	errs    []error
	chunks  []Chunk
	renders *visualizer.Renderer
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	h := &harness{
		t:     t,
		clock: newFakeClock(),
		factory: &fakeFactory{supported: map[string]bool{
			"audio/ogg;codecs=opus": true,
			"audio/mpeg":            true,
		}},
	}

	cfg := Config{
		MimeTypes: []string{"audio/webm;codecs=opus", "audio/webm", "audio/ogg;codecs=opus", "audio/mp4", "audio/mpeg"},
		Recorders: h.factory,
		Contexts: func() (audio.AudioContext, error) {
			c := &fakeContext{}
			h.contexts = append(h.contexts, c)
			return c, nil
		},
		Clock:  h.clock,
		Logger: logging.NewNop(),
		OnRecordingStart: func() {
			h.mu.Lock()
			h.starts++
			h.mu.Unlock()
		},
		OnRecordingStop: func(c *Clip) {
			h.mu.Lock()
			h.clips = append(h.clips, c)
			h.mu.Unlock()
		},
		OnChunk: func(c Chunk) {
			h.mu.Lock()
			h.chunks = append(h.chunks, c)
			h.mu.Unlock()
		},
		OnError: func(err error) {
			h.mu.Lock()
			h.errs = append(h.errs, err)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h.session = NewSession(cfg)
	h.stream = audio.NewMemoryStream("mic-1", 16000)
	t.Cleanup(h.session.Destroy)
	return h
}

func (h *harness) init() {
	h.t.Helper()
	if err := h.session.Init(context.Background(), h.stream); err != nil {
		h.t.Fatalf("Init() error = %v", err)
	}
}

func (h *harness) start() *fakeRecorder {
	h.t.Helper()
	if err := h.session.Start(context.Background()); err != nil {
		h.t.Fatalf("Start() error = %v", err)
	}
	return h.factory.last()
}

func (h *harness) clipCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clips)
}

// --- tests ---

func TestSession_StartStop(t *testing.T) {
	h := newHarness(t, nil)
	h.factory.tail = []byte("|tail")
	h.init()

	if h.session.State() != StateReady {
		t.Fatalf("State() = %v, want ready", h.session.State())
	}

	rec := h.start()
	if h.session.State() != StateRecording {
		t.Fatalf("State() = %v, want recording", h.session.State())
	}
	if h.session.MimeType() != "audio/ogg;codecs=opus" {
		t.Errorf("MimeType() = %v, want audio/ogg;codecs=opus", h.session.MimeType())
	}

	rec.emit("a")
	rec.emit("")
	rec.emit("b")
	rec.emit("c")

	clip, err := h.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(clip.Data) != "abc|tail" {
		t.Errorf("clip = %q, want abc|tail", clip.Data)
	}
	if clip.Chunks != 3 {
		t.Errorf("Chunks = %v, want 3", clip.Chunks)
	}
	if clip.SessionID != h.session.ID() {
		t.Errorf("SessionID = %v, want %v", clip.SessionID, h.session.ID())
	}
	if h.session.State() != StateReady {
		t.Errorf("State() after stop = %v, want ready", h.session.State())
	}
	if h.starts != 1 || h.clipCount() != 1 || len(h.chunks) != 3 {
		t.Errorf("notifications: starts=%d clips=%d chunks=%d", h.starts, h.clipCount(), len(h.chunks))
	}
	if h.clock.Pending() != 0 {
		t.Errorf("Pending() = %v, want no timers after stop", h.clock.Pending())
	}
}

func TestSession_DoubleStartIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	h.start()

	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if h.factory.count() != 1 {
		t.Errorf("recorders created = %v, want 1", h.factory.count())
	}
	if h.starts != 1 {
		t.Errorf("OnRecordingStart calls = %v, want 1", h.starts)
	}
}

func TestSession_StopWhenNotRecording(t *testing.T) {
	h := newHarness(t, nil)

	clip, err := h.session.Stop(context.Background())
	if clip != nil || err != nil {
		t.Errorf("Stop() on idle = %v, %v; want nil, nil", clip, err)
	}

	h.init()
	clip, err = h.session.Stop(context.Background())
	if clip != nil || err != nil {
		t.Errorf("Stop() on ready = %v, %v; want nil, nil", clip, err)
	}
}

func TestSession_StartRequiresStream(t *testing.T) {
	h := newHarness(t, nil)
	err := h.session.Start(context.Background())
	if !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("Start() without Init error = %v, want INVALID_STATE", err)
	}
}

func TestSession_AutoStopAtMaxDuration(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	rec := h.start()
	rec.emit("x")

	h.clock.Advance(14*time.Second + 900*time.Millisecond)
	if !h.session.IsRecording() {
		t.Fatal("session stopped before max duration")
	}

	h.clock.Advance(100 * time.Millisecond)
	if h.session.State() != StateReady {
		t.Fatalf("State() = %v, want ready after 15s", h.session.State())
	}
	if h.clipCount() != 1 {
		t.Fatalf("clips = %v, want 1", h.clipCount())
	}
	if h.clips[0].Duration != 15*time.Second {
		t.Errorf("Duration = %v, want 15s", h.clips[0].Duration)
	}
	if string(h.clips[0].Data) != "x" {
		t.Errorf("clip = %q, want x", h.clips[0].Data)
	}
}

func TestSession_StopCancelsAutoStop(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	h.start()

	h.clock.Advance(5 * time.Second)
	if _, err := h.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	h.clock.Advance(20 * time.Second)
	if h.clipCount() != 1 {
		t.Errorf("clips = %v, want exactly 1", h.clipCount())
	}
	if h.factory.last().stopCount() != 1 {
		t.Errorf("recorder stopped %d times, want 1", h.factory.last().stopCount())
	}
}

func TestSession_RecorderStalled(t *testing.T) {
	h := newHarness(t, nil)
	h.factory.stall = true
	h.init()
	rec := h.start()
	rec.emit("lost")

	type result struct {
		clip *Clip
		err  error
	}
	done := make(chan result, 1)
	go func() {
		clip, err := h.session.Stop(context.Background())
		done <- result{clip, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	// max-duration timer plus the finalize grace timer
	for h.clock.Scheduled() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.session.State() != StateFinalizing {
		t.Fatalf("State() = %v, want finalizing", h.session.State())
	}

	h.clock.Advance(2 * time.Second)

	res := <-done
	if res.clip != nil {
		t.Error("stalled stop should not return a clip")
	}
	if !vxerror.HasCode(res.err, vxerror.CodeRecorderStalled) {
		t.Errorf("Stop() error = %v, want RECORDER_STALLED", res.err)
	}
	if !errors.Is(res.err, vxerror.Sentinel(vxerror.CodeRecorderStalled)) {
		t.Error("error should match the RECORDER_STALLED sentinel")
	}
	if h.session.State() != StateReady {
		t.Errorf("State() = %v, want ready", h.session.State())
	}
	if len(h.errs) != 1 {
		t.Errorf("OnError calls = %v, want 1", len(h.errs))
	}
	if h.clipCount() != 0 {
		t.Error("no clip should be emitted on stall")
	}
}

func TestSession_ChunksAfterStopRequestAreDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.factory.lateData = []byte("late")
	h.factory.tail = []byte("T")
	h.init()
	rec := h.start()
	rec.emit("a")

	clip, err := h.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(clip.Data) != "aT" {
		t.Errorf("clip = %q, want aT", clip.Data)
	}
}

func TestSession_RetiredRecorderIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	old := h.start()
	if _, err := h.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	current := h.start()
	old.emit("stale")
	old.opts.OnStop([]byte("stale-tail"), nil)
	current.emit("fresh")

	clip, err := h.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(clip.Data) != "fresh" {
		t.Errorf("clip = %q, want fresh", clip.Data)
	}
}

func TestSession_PlatformDefaultEncoding(t *testing.T) {
	h := newHarness(t, nil)
	h.factory.supported = map[string]bool{}
	h.init()
	rec := h.start()

	if rec.opts.MimeType != "" {
		t.Errorf("negotiated = %q, want platform default", rec.opts.MimeType)
	}
	if h.session.MimeType() != "audio/wav" {
		t.Errorf("MimeType() = %v, want audio/wav", h.session.MimeType())
	}
}

func TestSession_EncodingUnsupported(t *testing.T) {
	h := newHarness(t, nil)
	h.factory.newErr = errors.New("no encoder")
	h.init()

	err := h.session.Start(context.Background())
	if !vxerror.HasCode(err, vxerror.CodeEncodingUnsupported) {
		t.Errorf("Start() error = %v, want ENCODING_UNSUPPORTED", err)
	}
	if h.session.State() != StateReady {
		t.Errorf("State() = %v, want ready", h.session.State())
	}
}

func TestSession_InitUnsupportedPlatform(t *testing.T) {
	tests := []struct {
		name     string
		contexts audio.ContextFactory
	}{
		{"no factory", nil},
		{"factory fails", func() (audio.AudioContext, error) { return nil, errors.New("no audio") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.Contexts = tt.contexts })
			err := h.session.Init(context.Background(), h.stream)
			if !vxerror.HasCode(err, vxerror.CodeUnsupportedPlatform) {
				t.Errorf("Init() error = %v, want UNSUPPORTED_PLATFORM", err)
			}
			if h.session.State() != StateIdle {
				t.Errorf("State() = %v, want idle", h.session.State())
			}
		})
	}
}

func TestSession_StreamHeldByOneSession(t *testing.T) {
	h := newHarness(t, nil)
	h.init()

	other := NewSession(Config{Contexts: h.session.cfg.Contexts, Logger: logging.NewNop()})
	defer other.Destroy()

	err := other.Init(context.Background(), h.stream)
	if !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("second session Init() error = %v, want INVALID_STATE", err)
	}
}

func TestSession_ReinitReleasesPriorBinding(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	first := h.contexts[0]

	// Same stream: graph rebuilt, stream kept
	h.init()
	if first.closed.Load() != 1 || first.analysers[0].disconnected.Load() != 1 {
		t.Error("prior analysis graph should be released")
	}
	if !h.stream.Active() {
		t.Error("re-init with the same stream must not stop it")
	}

	// New stream: prior stream stopped
	next := audio.NewMemoryStream("mic-2", 16000)
	if err := h.session.Init(context.Background(), next); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if h.stream.Active() {
		t.Error("prior stream should be stopped")
	}
}

func TestSession_RebindFinalizesFirst(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	rec := h.start()
	rec.emit("before-switch")

	next := audio.NewMemoryStream("mic-2", 16000)
	var oldActiveDuringAcquire bool
	var clipsDuringAcquire int

	clip, err := h.session.Rebind(context.Background(), func(ctx context.Context) (audio.Stream, error) {
		oldActiveDuringAcquire = h.stream.Active()
		clipsDuringAcquire = h.clipCount()
		return next, nil
	})
	if err != nil {
		t.Fatalf("Rebind() error = %v", err)
	}
	if clip == nil || string(clip.Data) != "before-switch" {
		t.Fatalf("Rebind() clip = %v, want before-switch", clip)
	}
	if clipsDuringAcquire != 1 {
		t.Error("recording must be finalized before the new stream is acquired")
	}
	if oldActiveDuringAcquire {
		t.Error("old stream must be released before acquiring the new one")
	}
	if h.session.Stream() != next {
		t.Error("session should be bound to the new stream")
	}
	if h.session.State() != StateReady {
		t.Errorf("State() = %v, want ready", h.session.State())
	}

	h.start()
	if !h.session.IsRecording() {
		t.Error("session should record on the new stream")
	}
}

func TestSession_RebindAcquireFails(t *testing.T) {
	h := newHarness(t, nil)
	h.init()

	denied := vxerror.New("microphone access denied").WithCode(vxerror.CodePermissionDenied)
	_, err := h.session.Rebind(context.Background(), func(context.Context) (audio.Stream, error) {
		return nil, denied
	})
	if !vxerror.HasCode(err, vxerror.CodePermissionDenied) {
		t.Errorf("Rebind() error = %v, want PERMISSION_DENIED", err)
	}
	if h.session.State() != StateIdle {
		t.Errorf("State() = %v, want idle", h.session.State())
	}
	if h.stream.Active() {
		t.Error("old stream should be released")
	}
}

func TestSession_ReinitFailureLeavesStreamWithCaller(t *testing.T) {
	var failGraph atomic.Bool
	h := newHarness(t, nil)
	h.session.cfg.Contexts = func() (audio.AudioContext, error) {
		if failGraph.Load() {
			return nil, errors.New("no audio device")
		}
		c := &fakeContext{}
		h.contexts = append(h.contexts, c)
		return c, nil
	}
	h.init()

	failGraph.Store(true)
	err := h.session.Init(context.Background(), h.stream)
	if !vxerror.HasCode(err, vxerror.CodeUnsupportedPlatform) {
		t.Fatalf("Init() error = %v, want UNSUPPORTED_PLATFORM", err)
	}
	if h.session.State() != StateIdle {
		t.Errorf("State() = %v, want idle", h.session.State())
	}
	if h.session.Stream() != nil {
		t.Error("failed init should leave no binding")
	}
	if !h.stream.Active() {
		t.Error("stream should stay active for the caller to stop")
	}
	if h.contexts[0].closed.Load() != 1 {
		t.Errorf("prior context closed %d times, want 1", h.contexts[0].closed.Load())
	}

	failGraph.Store(false)
	if err := h.session.Init(context.Background(), h.stream); err != nil {
		t.Fatalf("Init() retry error = %v", err)
	}
	h.session.Destroy()
	if h.stream.Active() {
		t.Error("stream should be stopped once owned again")
	}
}

func TestSession_DestroyIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.init()
	rec := h.start()
	rec.emit("discarded")

	h.session.Destroy()
	h.session.Destroy()

	ctx := h.contexts[0]
	if ctx.closed.Load() != 1 {
		t.Errorf("context closed %d times, want 1", ctx.closed.Load())
	}
	if ctx.analysers[0].disconnected.Load() != 1 {
		t.Errorf("analyser disconnected %d times, want 1", ctx.analysers[0].disconnected.Load())
	}
	if h.stream.Active() {
		t.Error("stream should be stopped")
	}
	if rec.stopCount() != 1 {
		t.Errorf("recorder stopped %d times, want 1", rec.stopCount())
	}
	if h.clipCount() != 0 {
		t.Error("destroy must not emit a clip")
	}
	if h.clock.Pending() != 0 {
		t.Error("destroy should cancel the max-duration timer")
	}
	if h.session.State() != StateDestroyed {
		t.Errorf("State() = %v, want destroyed", h.session.State())
	}

	if err := h.session.Start(context.Background()); !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("Start() after destroy error = %v, want INVALID_STATE", err)
	}
	if err := h.session.Init(context.Background(), h.stream); !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("Init() after destroy error = %v, want INVALID_STATE", err)
	}
}

func TestSession_FrameLoopOnlyWhileRecording(t *testing.T) {
	canvas := visualizer.NewImageCanvas(32, 16)
	h := newHarness(t, func(c *Config) {
		c.Renderer = visualizer.NewRenderer(canvas, visualizer.DefaultConfig())
		c.FrameInterval = time.Millisecond
	})
	h.init()
	analyser := h.contexts[0].analysers[0]

	time.Sleep(10 * time.Millisecond)
	if analyser.reads.Load() != 0 {
		t.Fatal("frames rendered before recording started")
	}

	h.start()
	deadline := time.Now().Add(time.Second)
	for analyser.reads.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if analyser.reads.Load() == 0 {
		t.Fatal("no frames rendered while recording")
	}

	if _, err := h.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	after := analyser.reads.Load()
	time.Sleep(10 * time.Millisecond)
	if analyser.reads.Load() != after {
		t.Error("frame rendered after the session left recording")
	}
}

func TestSession_PauseStopsFrameLoop(t *testing.T) {
	canvas := visualizer.NewImageCanvas(32, 16)
	h := newHarness(t, func(c *Config) {
		c.Renderer = visualizer.NewRenderer(canvas, visualizer.DefaultConfig())
		c.FrameInterval = time.Millisecond
	})
	h.init()
	analyser := h.contexts[0].analysers[0]

	waitForFrames := func(min int32) {
		t.Helper()
		deadline := time.Now().Add(time.Second)
		for analyser.reads.Load() < min && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		if analyser.reads.Load() < min {
			t.Fatalf("frames = %v, want at least %v", analyser.reads.Load(), min)
		}
	}

	h.start()
	waitForFrames(1)

	if err := h.session.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	paused := analyser.reads.Load()
	time.Sleep(10 * time.Millisecond)
	if analyser.reads.Load() != paused {
		t.Error("frame rendered while paused")
	}

	if err := h.session.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	waitForFrames(paused + 1)

	if _, err := h.session.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	stopped := analyser.reads.Load()
	time.Sleep(10 * time.Millisecond)
	if analyser.reads.Load() != stopped {
		t.Error("frame rendered after stop")
	}
}

func TestSession_PauseResume(t *testing.T) {
	h := newHarness(t, nil)
	h.init()

	if err := h.session.Pause(); !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("Pause() while ready error = %v, want INVALID_STATE", err)
	}

	rec := h.start()
	h.clock.Advance(2 * time.Second)

	if err := h.session.Pause(); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if !rec.paused || !h.session.IsPaused() {
		t.Error("recorder should be paused")
	}
	h.clock.Advance(3 * time.Second)

	if err := h.session.Resume(); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	h.clock.Advance(1 * time.Second)

	if got := h.session.Elapsed(); got != 3*time.Second {
		t.Errorf("Elapsed() = %v, want 3s", got)
	}

	clip, err := h.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if clip.Duration != 3*time.Second {
		t.Errorf("Duration = %v, want 3s", clip.Duration)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateInitializing, true},
		{StateReady, StateRecording, true},
		{StateRecording, StateFinalizing, true},
		{StateFinalizing, StateReady, true},
		{StateReady, StateRebinding, true},
		{StateRebinding, StateIdle, true},
		{StateIdle, StateRecording, false},
		{StateFinalizing, StateRecording, false},
		{StateRecording, StateDestroyed, true},
		{StateDestroyed, StateDestroyed, false},
		{StateDestroyed, StateReady, false},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
