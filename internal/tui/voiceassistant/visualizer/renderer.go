// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     visualizer
// Description: Mirrored frequency bar renderer
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package visualizer

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// DefaultFadeAlpha is the opacity of the background overlay per frame
	DefaultFadeAlpha = 0.3

	// DefaultLowHue is the hue for silent bins (blue)
	DefaultLowHue = 200.0

	// DefaultHighHue is the hue for full-scale bins (pink)
	DefaultHighHue = 340.0

	// DefaultSpectrumFraction keeps the lower part of the spectrum where speech energy lives
	DefaultSpectrumFraction = 0.7
)

// DefaultBackground is the fade-clear color
var DefaultBackground = color.RGBA{R: 0x0b, G: 0x0f, B: 0x1a, A: 0xff}

// Source provides frequency snapshots. audio.Analyser satisfies it.
type Source interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte)
}

// Canvas is a drawing surface with a backing size and a display size
type Canvas interface {
	// Size returns the backing size in pixels or cells
	Size() (width, height int)

	// DisplaySize returns the size the canvas is currently shown at
	DisplaySize() (width, height int)

	// Resize sets the backing size
	Resize(width, height int)

	// Fill blends c over the rectangle with the given opacity
	Fill(r image.Rectangle, c color.Color, alpha float64)
}

// Config holds renderer settings
type Config struct {
	FadeAlpha        float64
	LowHue           float64
	HighHue          float64
	SpectrumFraction float64
	Background       color.Color
}

// DefaultConfig returns the default renderer settings
func DefaultConfig() Config {
	return Config{
		FadeAlpha:        DefaultFadeAlpha,
		LowHue:           DefaultLowHue,
		HighHue:          DefaultHighHue,
		SpectrumFraction: DefaultSpectrumFraction,
		Background:       DefaultBackground,
	}
}

// Renderer draws frequency snapshots onto a canvas
type Renderer struct {
	canvas Canvas
	cfg    Config
	data   []byte
}

// NewRenderer creates a renderer for the canvas
func NewRenderer(canvas Canvas, cfg Config) *Renderer {
	def := DefaultConfig()
	if cfg.FadeAlpha <= 0 || cfg.FadeAlpha > 1 {
		cfg.FadeAlpha = def.FadeAlpha
	}
	if cfg.LowHue == 0 && cfg.HighHue == 0 {
		cfg.LowHue, cfg.HighHue = def.LowHue, def.HighHue
	}
	if cfg.SpectrumFraction <= 0 || cfg.SpectrumFraction > 1 {
		cfg.SpectrumFraction = def.SpectrumFraction
	}
	if cfg.Background == nil {
		cfg.Background = def.Background
	}
	return &Renderer{canvas: canvas, cfg: cfg}
}

// Canvas returns the target canvas
func (r *Renderer) Canvas() Canvas {
	return r.canvas
}

// Draw renders one frame from the source
func (r *Renderer) Draw(src Source) {
	width, height := r.syncSize()
	if width <= 0 || height <= 0 || src == nil {
		return
	}

	bins := src.FrequencyBinCount()
	if cap(r.data) < bins {
		r.data = make([]byte, bins)
	}
	r.data = r.data[:bins]
	src.ByteFrequencyData(r.data)

	r.canvas.Fill(image.Rect(0, 0, width, height), r.cfg.Background, r.cfg.FadeAlpha)
	r.drawBars(width, height)
}

// syncSize tracks the display size. It returns the backing size.
func (r *Renderer) syncSize() (int, int) {
	w, h := r.canvas.Size()
	dw, dh := r.canvas.DisplaySize()
	if dw != w || dh != h {
		r.canvas.Resize(dw, dh)
		return dw, dh
	}
	return w, h
}

func (r *Renderer) drawBars(width, height int) {
	used := int(math.Ceil(float64(len(r.data)) * r.cfg.SpectrumFraction))
	if used <= 0 {
		return
	}

	bars := used
	if bars > width {
		bars = width
	}
	slot := float64(width) / float64(bars)
	barWidth := int(slot)
	if slot >= 3 {
		barWidth-- // gap between bars
	}
	if barWidth < 1 {
		barWidth = 1
	}

	center := height / 2
	for i := 0; i < bars; i++ {
		bin := i * used / bars
		amplitude := float64(r.data[bin]) / 255
		half := int(math.Round(amplitude * float64(height) / 2))
		if half == 0 {
			continue
		}

		x := int(float64(i) * slot)
		c := r.BarColor(amplitude)

		// Mirrored about the center axis
		r.canvas.Fill(image.Rect(x, center-half, x+barWidth, center), c, 1)
		r.canvas.Fill(image.Rect(x, center, x+barWidth, center+half), c, 1)
	}
}

// BarColor maps an amplitude in [0, 1] to a color between LowHue and HighHue
func (r *Renderer) BarColor(amplitude float64) colorful.Color {
	amplitude = math.Max(0, math.Min(1, amplitude))
	hue := r.cfg.LowHue + (r.cfg.HighHue-r.cfg.LowHue)*amplitude
	return colorful.Hsl(math.Mod(hue, 360), 0.8, 0.45+0.2*amplitude)
}
