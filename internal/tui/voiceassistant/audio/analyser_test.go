package audio

import (
	"math"
	"testing"

	vxerror "github.com/msto63/vortex/pkg/core/error"
)

func sine(freq float64, rate, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestFFTAnalyser_Silence(t *testing.T) {
	a := newFFTAnalyser(DefaultFFTSize)
	a.Write(make([]float32, DefaultFFTSize))

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)
	for i, v := range dst {
		if v != 0 {
			t.Fatalf("bin %d = %v, want 0 for silence", i, v)
		}
	}
}

func TestFFTAnalyser_SinePeak(t *testing.T) {
	a := newFFTAnalyser(DefaultFFTSize)
	if a.FrequencyBinCount() != 128 {
		t.Fatalf("FrequencyBinCount() = %v, want 128", a.FrequencyBinCount())
	}

	// 2000 Hz at 16 kHz falls exactly on bin 32
	a.Write(sine(2000, 16000, DefaultFFTSize, 0.5))

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)

	peak := 0
	for i := range dst {
		if dst[i] > dst[peak] {
			peak = i
		}
	}
	if peak != 32 {
		t.Errorf("peak bin = %v, want 32", peak)
	}
	if dst[32] < 200 {
		t.Errorf("peak magnitude = %v, want >= 200", dst[32])
	}
	if dst[100] >= dst[32] {
		t.Errorf("far bin %v should be below peak %v", dst[100], dst[32])
	}
}

func TestFFTAnalyser_ShortDestination(t *testing.T) {
	a := newFFTAnalyser(64)
	a.Write(sine(1000, 16000, 64, 0.5))

	dst := make([]byte, 8)
	a.ByteFrequencyData(dst)
	// Must not panic and must fill only what fits
	if len(dst) != 8 {
		t.Fatal("destination resized")
	}
}

func TestProcessingContext_NewAnalyser(t *testing.T) {
	pc := NewProcessingContext()
	stream := NewMemoryStream("mic", 16000)

	if _, err := pc.NewAnalyser(stream, 300); !vxerror.HasCode(err, vxerror.CodeInvalidInput) {
		t.Errorf("NewAnalyser(300) error = %v, want INVALID_INPUT", err)
	}

	a, err := pc.NewAnalyser(stream, 256)
	if err != nil {
		t.Fatalf("NewAnalyser() error = %v", err)
	}
	if a.FrequencyBinCount() != 128 {
		t.Errorf("FrequencyBinCount() = %v, want 128", a.FrequencyBinCount())
	}

	stream.Stop()
	if _, err := pc.NewAnalyser(stream, 256); !vxerror.HasCode(err, vxerror.CodeInvalidState) {
		t.Errorf("NewAnalyser(stopped) error = %v, want INVALID_STATE", err)
	}
}

func TestProcessingContext_CloseDisconnects(t *testing.T) {
	pc := NewProcessingContext()
	stream := NewMemoryStream("mic", 16000)

	an, err := pc.NewAnalyser(stream, 64)
	if err != nil {
		t.Fatalf("NewAnalyser() error = %v", err)
	}
	fa := an.(*FFTAnalyser)
	fa.Write(sine(1000, 16000, 64, 0.9))

	if err := pc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	dst := []byte{9, 9, 9}
	fa.ByteFrequencyData(dst)
	for _, v := range dst {
		if v != 0 {
			t.Fatalf("disconnected analyser returned %v, want silence", dst)
		}
	}

	if _, err := pc.NewAnalyser(stream, 64); err == nil {
		t.Error("NewAnalyser() on closed context should fail")
	}
}
