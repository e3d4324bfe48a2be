// Package screen draws the display text onto a pixel panel.
//
// Changes are staged with the Apply methods and only drawn by Refresh, so a
// multi-field update reaches the panel in one pass.
package screen

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// Top margin of the first line, in panel pixels.
const marginTop = 2

var black = color.RGBA{A: 0xFF}

// filler is implemented by panels that can clear a region faster than pixel
// by pixel, like the ST7789.
type filler interface {
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Canvas renders lines of text centred horizontally on a panel, magnified by
// an integer scale.
type Canvas struct {
	panel drivers.Displayer
	font  tinyfont.Fonter

	glyphWidth int
	lineHeight int

	lines []string
	scale int
	fg    color.RGBA
	bg    color.RGBA
}

// New returns a Canvas drawing with font on panel. The text colour starts as
// fg with scale 1.
func New(panel drivers.Displayer, font tinyfont.Fonter, fg uint32) *Canvas {
	_, outbox := tinyfont.LineWidth(font, "0")
	return &Canvas{
		panel:      panel,
		font:       font,
		glyphWidth: int(outbox),
		lineHeight: int(font.GetYAdvance()),
		scale:      1,
		fg:         RGBA(fg),
		bg:         black,
	}
}

// RGBA converts 0xRRGGBB to an opaque colour.
func RGBA(rgb uint32) color.RGBA {
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xFF}
}

// DisplayWidthPx returns the panel width.
func (c *Canvas) DisplayWidthPx() int {
	w, _ := c.panel.Size()
	return int(w)
}

// GlyphWidthPx returns the advance of one unscaled glyph.
func (c *Canvas) GlyphWidthPx() int { return c.glyphWidth }

func (c *Canvas) ApplyText(lines []string) { c.lines = append(c.lines[:0], lines...) }
func (c *Canvas) ApplyScale(n int)         { c.scale = max(n, 1) }
func (c *Canvas) ApplyColor(rgb uint32)    { c.fg = RGBA(rgb) }

// Refresh clears the panel, draws the staged lines and flushes the panel.
func (c *Canvas) Refresh() error {
	w, h := c.panel.Size()
	c.clear(w, h)

	// Beyond the panel size every glyph pixel is clipped anyway.
	scale := min(c.scale, int(max(w, h)))
	view := &scaled{panel: c.panel, scale: scale, width: int(w), height: int(h), offsetY: marginTop}
	vw, _ := view.Size()
	ascent := c.lineHeight * 3 / 4
	for i, line := range c.lines {
		_, lw := tinyfont.LineWidth(c.font, line)
		x := (int(vw) - int(lw)) / 2
		if x < 0 {
			x = 0
		}
		y := i*c.lineHeight + ascent
		if y-ascent >= (int(h)-marginTop)/scale {
			break // Below the bottom edge.
		}
		tinyfont.WriteLine(view, c.font, int16(x), int16(y), line, c.fg)
	}
	return c.panel.Display()
}

func (c *Canvas) clear(w, h int16) {
	if f, ok := c.panel.(filler); ok {
		if f.FillRectangle(0, 0, w, h, c.bg) == nil {
			return
		}
	}
	for y := int16(0); y < h; y++ {
		for x := int16(0); x < w; x++ {
			c.panel.SetPixel(x, y, c.bg)
		}
	}
}

// scaled is a Displayer whose pixels are scale x scale blocks of the panel.
type scaled struct {
	panel         drivers.Displayer
	scale         int
	width, height int
	offsetY       int
}

func (s *scaled) Size() (x, y int16) {
	return int16(s.width / s.scale), int16((s.height - s.offsetY) / s.scale)
}

func (s *scaled) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 {
		return
	}
	px := int(x) * s.scale
	py := s.offsetY + int(y)*s.scale
	if px >= s.width || py >= s.height {
		return
	}
	for dy := 0; dy < s.scale && py+dy < s.height; dy++ {
		for dx := 0; dx < s.scale && px+dx < s.width; dx++ {
			s.panel.SetPixel(int16(px+dx), int16(py+dy), c)
		}
	}
}

// Display is a no-op, the Canvas flushes the panel once per Refresh.
func (s *scaled) Display() error { return nil }
