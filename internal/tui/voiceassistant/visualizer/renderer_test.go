package visualizer

import (
	"bytes"
	"image/png"
	"sync/atomic"
	"testing"
	"time"
)

// fixedSource returns the same snapshot every frame
type fixedSource []byte

func (s fixedSource) FrequencyBinCount() int { return len(s) }

func (s fixedSource) ByteFrequencyData(dst []byte) { copy(dst, s) }

func filled(n int, v byte) fixedSource {
	s := make(fixedSource, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestRenderer_MirroredBars(t *testing.T) {
	canvas := NewImageCanvas(64, 40)
	r := NewRenderer(canvas, DefaultConfig())

	src := make(fixedSource, 128)
	src[0] = 255

	r.Draw(src)

	// Bin 0 spans the full height, mirrored about y=20
	top := canvas.At(0, 0)
	bottom := canvas.At(0, 39)
	if top != bottom {
		t.Errorf("bar not mirrored: top %v, bottom %v", top, bottom)
	}
	if top == canvas.At(63, 0) {
		t.Error("full-scale bar should differ from background")
	}
}

func TestRenderer_SilenceDrawsOnlyBackground(t *testing.T) {
	canvas := NewImageCanvas(32, 16)
	r := NewRenderer(canvas, DefaultConfig())

	for i := 0; i < 20; i++ {
		r.Draw(filled(128, 0))
	}

	bg := DefaultBackground
	got := canvas.At(5, 8)
	if diff(got.R, bg.R) > 4 || diff(got.G, bg.G) > 4 || diff(got.B, bg.B) > 4 {
		t.Errorf("pixel = %v, want close to background %v", got, bg)
	}
}

func diff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestRenderer_FadeLeavesTrail(t *testing.T) {
	canvas := NewImageCanvas(16, 16)
	r := NewRenderer(canvas, DefaultConfig())

	r.Draw(filled(128, 255))
	lit := canvas.At(0, 8)

	r.Draw(filled(128, 0))
	faded := canvas.At(0, 8)

	if faded == lit {
		t.Error("fade overlay should change the previous frame")
	}
	bg := DefaultBackground
	if faded.R == bg.R && faded.G == bg.G && faded.B == bg.B {
		t.Error("a single fade pass should not fully clear the bar")
	}
}

func TestRenderer_HueFollowsAmplitude(t *testing.T) {
	r := NewRenderer(NewImageCanvas(1, 1), DefaultConfig())

	lowHue, _, _ := r.BarColor(0).Hsl()
	highHue, _, _ := r.BarColor(1).Hsl()

	if lowHue < 195 || lowHue > 205 {
		t.Errorf("low hue = %v, want ~200", lowHue)
	}
	if highHue < 335 || highHue > 345 {
		t.Errorf("high hue = %v, want ~340", highHue)
	}
}

func TestRenderer_TracksResize(t *testing.T) {
	canvas := NewImageCanvas(10, 10)
	r := NewRenderer(canvas, DefaultConfig())

	canvas.SetDisplaySize(30, 12)
	r.Draw(filled(128, 128))

	if w, h := canvas.Size(); w != 30 || h != 12 {
		t.Errorf("Size() = %dx%d, want 30x12", w, h)
	}
}

func TestRenderer_ZeroSizeCanvas(t *testing.T) {
	canvas := NewImageCanvas(0, 0)
	r := NewRenderer(canvas, DefaultConfig())
	r.Draw(filled(128, 255))
	r.Draw(nil)
}

func TestImageCanvas_WritePNG(t *testing.T) {
	canvas := NewImageCanvas(8, 8)
	NewRenderer(canvas, DefaultConfig()).Draw(filled(128, 200))

	var buf bytes.Buffer
	if err := canvas.WritePNG(&buf); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("width = %v, want 8", img.Bounds().Dx())
	}
}

func TestTerminalCanvas_View(t *testing.T) {
	canvas := NewTerminalCanvas(12, 4)
	r := NewRenderer(canvas, DefaultConfig())
	r.Draw(filled(128, 255))

	view := canvas.View()
	if got := bytes.Count([]byte(view), []byte("\n")); got != 3 {
		t.Errorf("View() has %d line breaks, want 3", got)
	}

	bg := toColorful(DefaultBackground)
	if canvas.Cell(0, 0) == bg {
		t.Error("full-scale bar should color the top row")
	}

	canvas.Clear()
	if canvas.Cell(0, 0) != bg {
		t.Error("Clear() should reset to background")
	}
}

func TestLoop_StopGuarantees(t *testing.T) {
	var calls atomic.Int32
	l := StartLoop(time.Millisecond, func() { calls.Add(1) })

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatal("loop did not render frames")
	}

	l.Stop()
	after := calls.Load()
	time.Sleep(10 * time.Millisecond)

	if calls.Load() != after {
		t.Error("frame ran after Stop returned")
	}
	if l.Running() {
		t.Error("Running() should be false after Stop")
	}
	if l.Frames() != int(after) {
		t.Errorf("Frames() = %v, want %v", l.Frames(), after)
	}

	l.Stop()
}
