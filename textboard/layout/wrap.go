// Package layout re-flows text into the fixed character grid of a display.
//
// The grid width depends on the display width in pixels, the advance of one
// glyph and the current magnification, so it is recomputed on every call:
//
//	cols := layout.Columns(240, 6, 2) // 20 characters per line
//	lines := layout.Wrap("Hello world", cols)
package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Provider describes the pixel geometry text is laid out against.
type Provider interface {
	DisplayWidthPx() int
	GlyphWidthPx() int
}

// Engine wraps text for the display described by its Provider.
type Engine struct {
	Provider Provider
}

// Lines wraps text for the given scale. The line width is derived from the
// provider on each call since scale may change between calls.
func (e Engine) Lines(text string, scale int) []string {
	return Wrap(text, Columns(e.Provider.DisplayWidthPx(), e.Provider.GlyphWidthPx(), scale))
}

// Columns returns how many glyphs of glyphPx pixels magnified by scale fit in
// displayPx pixels. It returns 0 if any argument is less than 1.
func Columns(displayPx, glyphPx, scale int) int {
	if displayPx < 1 || glyphPx < 1 || scale < 1 {
		return 0
	}
	// Same as displayPx / (glyphPx * scale) without overflowing a 32-bit int.
	return displayPx / scale / glyphPx
}

// Wrap splits text into lines of at most cols runes. Newlines start a new
// paragraph, words are packed greedily and separated by a single space. A word
// longer than cols is broken into cols-sized pieces.
//
// Empty text yields no lines. Non-empty text always yields at least one line,
// a single empty one when cols is less than 1. A paragraph holding only
// whitespace becomes a line of spaces, clipped to cols, so that joining the
// lines and wrapping them again gives the same lines.
func Wrap(text string, cols int) []string {
	if text == "" {
		return nil
	}
	if cols < 1 {
		return []string{""}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		lines = wrapParagraph(lines, paragraph, cols)
	}
	return lines
}

func wrapParagraph(lines []string, paragraph string, cols int) []string {
	var (
		current strings.Builder
		n       int // runes in current
	)
	flush := func() {
		lines = append(lines, current.String())
		current.Reset()
		n = 0
	}

	words := strings.FieldsFunc(paragraph, unicode.IsSpace)
	if len(words) == 0 {
		blank := min(utf8.RuneCountInString(paragraph), cols)
		return append(lines, strings.Repeat(" ", blank))
	}
	for _, word := range words {
		wlen := utf8.RuneCountInString(word)
		if n > 0 && n+1+wlen <= cols {
			current.WriteByte(' ')
			current.WriteString(word)
			n += 1 + wlen
			continue
		}
		if n > 0 {
			flush()
		}
		// Hard break words that cannot fit on a line of their own.
		for wlen > cols {
			cut := runeOffset(word, cols)
			lines = append(lines, word[:cut])
			word = word[cut:]
			wlen -= cols
		}
		current.WriteString(word)
		n = wlen
	}
	if n > 0 {
		flush()
	}
	return lines
}

// runeOffset returns the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	i := 0
	for off := range s {
		if i == n {
			return off
		}
		i++
	}
	return len(s)
}
