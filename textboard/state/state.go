// Package state holds the text, glyph scale and colour currently shown on the
// display.
package state

import "errors"

// Defaults shown at boot.
const (
	DefaultText  = "Ready to receive."
	DefaultScale = 1
	DefaultColor = 0xFFFF00 // Warm yellow.

	MaxColor = 0xFFFFFF
)

var (
	ErrInvalidScale = errors.New("scale must be a positive integer")
	ErrInvalidColor = errors.New("color must be a 24-bit RGB value")
	ErrCorrupt      = errors.New("display state corrupt")
)

// Snapshot is a copy of all fields of a State taken at one point in time.
type Snapshot struct {
	Text  string // Raw, unwrapped text.
	Scale int    // Glyph magnification, at least 1.
	Color uint32 // 0xRRGGBB.
}

// State is the record of what the display shows. Each setter either applies
// its value or leaves the field untouched, so a rejected field never affects
// the others.
//
// State is not safe for concurrent use. It has a single owner which
// serializes access to it.
type State struct {
	text  string
	scale int
	color uint32
}

// New returns a State holding the boot defaults.
func New() *State {
	return &State{
		text:  DefaultText,
		scale: DefaultScale,
		color: DefaultColor,
	}
}

// SetText stores the raw text. Wrapping it for the display is the caller's
// job since the wrap width depends on the scale in effect.
func (s *State) SetText(text string) {
	s.text = text
}

// SetScale stores n if it is at least 1.
func (s *State) SetScale(n int) error {
	if n < 1 {
		return ErrInvalidScale
	}
	s.scale = n
	return nil
}

// SetColor stores rgb if it fits in 24 bits.
func (s *State) SetColor(rgb uint32) error {
	if rgb > MaxColor {
		return ErrInvalidColor
	}
	s.color = rgb
	return nil
}

// Scale returns the magnification in effect.
func (s *State) Scale() int {
	return s.scale
}

// Snapshot returns a copy of every field. It fails with ErrCorrupt if the
// record no longer satisfies its invariants, which only a programming error
// can cause.
func (s *State) Snapshot() (Snapshot, error) {
	if s == nil || s.scale < 1 || s.color > MaxColor {
		return Snapshot{}, ErrCorrupt
	}
	return Snapshot{Text: s.text, Scale: s.scale, Color: s.color}, nil
}
