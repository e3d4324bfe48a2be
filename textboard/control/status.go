package control

import (
	"encoding/json"
	"errors"

	"github.com/harveysanders/picodisplay/textboard/state"
)

// ErrInternalRead is returned when the display state cannot be read.
var ErrInternalRead = errors.New("internal read error")

// Status is the JSON form of the display state served by GET /status.
type Status struct {
	Text  string `json:"text"`
	Size  int    `json:"size"`
	Color string `json:"color"` // "#RRGGBB"
}

// Reader provides consistent snapshots of the display state.
type Reader interface {
	Snapshot() (state.Snapshot, error)
}

// Responder builds Status payloads. Nothing is cached; every call reads a
// fresh snapshot.
type Responder struct {
	State Reader
}

// Status reads a snapshot and converts it.
func (r Responder) Status() (Status, error) {
	snap, err := r.State.Snapshot()
	if err != nil {
		return Status{}, errors.Join(ErrInternalRead, err)
	}
	return Status{
		Text:  snap.Text,
		Size:  snap.Scale,
		Color: FormatColor(snap.Color),
	}, nil
}

// Encode returns the canonical JSON for s.
func (s Status) Encode() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Join(ErrInternalRead, err)
	}
	return b, nil
}

const hexDigits = "0123456789ABCDEF"

// FormatColor formats the low 24 bits of rgb as "#RRGGBB".
func FormatColor(rgb uint32) string {
	var b [7]byte
	b[0] = '#'
	for i := 6; i > 0; i-- {
		b[i] = hexDigits[rgb&0xF]
		rgb >>= 4
	}
	return string(b[:])
}
