// ============================================================================
// meinDENKWERK (mDW) - VORTEX Voice Client
// ============================================================================
//
// Package:     visualizer
// Description: Image and terminal canvases
// Author:      Mike Stoffels with Claude
// Created:     2025-12-08
// License:     MIT
// ============================================================================

package visualizer

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

func toColorful(c color.Color) colorful.Color {
	cf, _ := colorful.MakeColor(c)
	return cf
}

// ImageCanvas draws into an RGBA image
type ImageCanvas struct {
	mu      sync.Mutex
	img     *image.RGBA
	display image.Point
}

// NewImageCanvas creates an image canvas with matching backing and display size
func NewImageCanvas(width, height int) *ImageCanvas {
	return &ImageCanvas{
		img:     image.NewRGBA(image.Rect(0, 0, width, height)),
		display: image.Pt(width, height),
	}
}

// Size returns the backing image size
func (c *ImageCanvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.img.Bounds()
	return b.Dx(), b.Dy()
}

// DisplaySize returns the size the image is shown at
func (c *ImageCanvas) DisplaySize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display.X, c.display.Y
}

// SetDisplaySize changes the display size. The backing image follows on the next frame.
func (c *ImageCanvas) SetDisplaySize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = image.Pt(width, height)
}

// Resize replaces the backing image
func (c *ImageCanvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Fill blends a color over the rectangle
func (c *ImageCanvas) Fill(r image.Rectangle, col color.Color, alpha float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r = r.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	over := toColorful(col)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if alpha >= 1 {
				c.img.Set(x, y, over)
				continue
			}
			base := toColorful(c.img.RGBAAt(x, y))
			c.img.Set(x, y, base.BlendRgb(over, alpha).Clamped())
		}
	}
}

// At returns the pixel color at x, y
func (c *ImageCanvas) At(x, y int) color.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.RGBAAt(x, y)
}

// WritePNG encodes the current frame as PNG
func (c *ImageCanvas) WritePNG(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return png.Encode(w, c.img)
}

// TerminalCanvas is a grid of colored cells rendered with lipgloss
type TerminalCanvas struct {
	mu      sync.Mutex
	cells   [][]colorful.Color
	display image.Point
	glyph   string
}

// NewTerminalCanvas creates a terminal canvas of width columns and height rows
func NewTerminalCanvas(width, height int) *TerminalCanvas {
	c := &TerminalCanvas{glyph: "█", display: image.Pt(width, height)}
	c.cells = makeCells(width, height)
	return c
}

func makeCells(width, height int) [][]colorful.Color {
	bg := toColorful(DefaultBackground)
	cells := make([][]colorful.Color, height)
	for y := range cells {
		cells[y] = make([]colorful.Color, width)
		for x := range cells[y] {
			cells[y][x] = bg
		}
	}
	return cells
}

// Size returns the grid size
func (c *TerminalCanvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cells) == 0 {
		return 0, 0
	}
	return len(c.cells[0]), len(c.cells)
}

// DisplaySize returns the terminal area assigned to the canvas
func (c *TerminalCanvas) DisplaySize() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display.X, c.display.Y
}

// SetDisplaySize is called on terminal resize
func (c *TerminalCanvas) SetDisplaySize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = image.Pt(width, height)
}

// Resize reallocates the cell grid
func (c *TerminalCanvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cells = makeCells(width, height)
}

// Fill blends a color over the cells in the rectangle
func (c *TerminalCanvas) Fill(r image.Rectangle, col color.Color, alpha float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cells) == 0 {
		return
	}
	r = r.Intersect(image.Rect(0, 0, len(c.cells[0]), len(c.cells)))
	over := toColorful(col)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if alpha >= 1 {
				c.cells[y][x] = over
			} else {
				c.cells[y][x] = c.cells[y][x].BlendRgb(over, alpha).Clamped()
			}
		}
	}
}

// Cell returns the color of one cell
func (c *TerminalCanvas) Cell(x, y int) colorful.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cells[y][x]
}

// Clear resets every cell to the background
func (c *TerminalCanvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cells) == 0 {
		return
	}
	c.cells = makeCells(len(c.cells[0]), len(c.cells))
}

// View renders the grid, one line per row
func (c *TerminalCanvas) View() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder
	for y, row := range c.cells {
		if y > 0 {
			b.WriteByte('\n')
		}
		for _, cell := range row {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(cell.Hex())).Render(c.glyph))
		}
	}
	return b.String()
}
