package screen

import (
	"errors"
	"image/color"
	"testing"

	"github.com/harveysanders/picodisplay/textboard/layout"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// framebuffer is an in-memory panel.
type framebuffer struct {
	w, h     int16
	pix      map[[2]int16]color.RGBA
	displays int
	err      error
}

func newFramebuffer(w, h int16) *framebuffer {
	return &framebuffer{w: w, h: h, pix: make(map[[2]int16]color.RGBA)}
}

func (f *framebuffer) Size() (x, y int16) { return f.w, f.h }

func (f *framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.w || y >= f.h {
		panic("pixel out of bounds")
	}
	f.pix[[2]int16{x, y}] = c
}

func (f *framebuffer) Display() error {
	f.displays++
	return f.err
}

// lit returns the pixels that are not background.
func (f *framebuffer) lit() map[[2]int16]color.RGBA {
	out := make(map[[2]int16]color.RGBA)
	for p, c := range f.pix {
		if c != black {
			out[p] = c
		}
	}
	return out
}

func TestCanvasGeometry(t *testing.T) {
	c := New(newFramebuffer(240, 135), &proggy.TinySZ8pt7b, 0xFFFF00)
	if got := c.DisplayWidthPx(); got != 240 {
		t.Fatalf("expected width 240, got %d", got)
	}
	if got := c.GlyphWidthPx(); got <= 0 {
		t.Fatalf("expected positive glyph width, got %d", got)
	}
}

func TestCanvasRefreshDrawsInColor(t *testing.T) {
	fb := newFramebuffer(120, 64)
	c := New(fb, &proggy.TinySZ8pt7b, 0xFFFF00)
	c.ApplyColor(0x00FF00)
	c.ApplyText([]string{"Hi"})
	if err := c.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fb.displays != 1 {
		t.Fatalf("expected one display flush, got %d", fb.displays)
	}
	lit := fb.lit()
	if len(lit) == 0 {
		t.Fatalf("expected text pixels")
	}
	green := color.RGBA{G: 0xFF, A: 0xFF}
	for p, col := range lit {
		if col != green {
			t.Fatalf("pixel %v has colour %v, expected %v", p, col, green)
		}
	}
}

func TestCanvasScaleMagnifies(t *testing.T) {
	count := func(scale int) int {
		fb := newFramebuffer(200, 100)
		c := New(fb, &proggy.TinySZ8pt7b, 0xFFFFFF)
		c.ApplyScale(scale)
		c.ApplyText([]string{"Hi"})
		if err := c.Refresh(); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		return len(fb.lit())
	}
	one, two := count(1), count(2)
	if one == 0 || two != 4*one {
		t.Fatalf("expected scale 2 to light 4x the pixels of scale 1, got %d and %d", one, two)
	}
}

func TestCanvasRefreshClearsPreviousText(t *testing.T) {
	fb := newFramebuffer(64, 32)
	c := New(fb, &proggy.TinySZ8pt7b, 0xFFFFFF)
	c.ApplyText([]string{"abc"})
	c.Refresh()
	c.ApplyText(nil)
	c.Refresh()
	if n := len(fb.lit()); n != 0 {
		t.Fatalf("expected blank panel, got %d lit pixels", n)
	}
}

func TestCanvasHugeScaleStaysInBounds(t *testing.T) {
	fb := newFramebuffer(32, 16)
	c := New(fb, &proggy.TinySZ8pt7b, 0xFFFFFF)
	c.ApplyScale(1 << 20)
	c.ApplyText([]string{"W", "more", "lines"})
	if err := c.Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
}

func TestCanvasRefreshError(t *testing.T) {
	fb := newFramebuffer(32, 16)
	fb.err = errors.New("spi busy")
	c := New(fb, &proggy.TinySZ8pt7b, 0xFFFFFF)
	if err := c.Refresh(); err == nil {
		t.Fatalf("expected refresh error")
	}
}

func TestApplyTextCopies(t *testing.T) {
	c := New(newFramebuffer(32, 16), &proggy.TinySZ8pt7b, 0xFFFFFF)
	lines := []string{"a", "b"}
	c.ApplyText(lines)
	lines[0] = "changed"
	if c.lines[0] != "a" {
		t.Fatalf("canvas kept a reference to the caller's slice")
	}
}

func TestRGBA(t *testing.T) {
	got := RGBA(0x123456)
	want := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xFF}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWrappedLinesFitRenderedWidth(t *testing.T) {
	font := &proggy.TinySZ8pt7b
	c := New(newFramebuffer(240, 135), font, 0xFFFF00)
	engine := layout.Engine{Provider: c}
	texts := []string{
		"Ready to receive.",
		"The quick brown fox jumps over the lazy dog 0123456789",
		"WWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWW",
		"iiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiiii",
		"{\"punctuation\": [1, 2, 3]} ~!@#$%^&*()_+|",
		"héllo wörld, ünïcode falls back to the empty glyph",
	}
	for scale := 1; scale <= 6; scale++ {
		for _, text := range texts {
			for _, line := range engine.Lines(text, scale) {
				_, w := tinyfont.LineWidth(font, line)
				if int(w)*scale > c.DisplayWidthPx() {
					t.Fatalf("scale %d: %q is %dpx wide, display is %dpx", scale, line, int(w)*scale, c.DisplayWidthPx())
				}
			}
		}
	}
}
