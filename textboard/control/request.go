package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedRequest is returned when an update body is not a JSON
	// object of the expected shape. Nothing is applied.
	ErrMalformedRequest = errors.New("malformed request")

	ErrInvalidSize  = errors.New("size is not a positive integer")
	ErrInvalidColor = errors.New("color is not a hex RGB value")
)

// Request is a decoded update body. Size and Color are kept raw so each can
// be coerced and rejected on its own.
type Request struct {
	Text  *string         `json:"text"`
	Size  json.RawMessage `json:"size"`
	Color json.RawMessage `json:"color"`
}

// ParseRequest decodes body. It fails with ErrMalformedRequest unless body is
// a JSON object whose text member, if any, is a string or null.
func ParseRequest(body []byte) (Request, error) {
	var req Request
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return req, ErrMalformedRequest
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return Request{}, errors.Join(ErrMalformedRequest, err)
	}
	return req, nil
}

// HasSize reports whether a non-null size was sent.
func (r Request) HasSize() bool { return !isNull(r.Size) }

// HasColor reports whether a non-null color was sent.
func (r Request) HasColor() bool { return !isNull(r.Color) }

// TextOrEmpty returns the text member. A missing or null text clears the
// display.
func (r Request) TextOrEmpty() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// FieldError reports a single field that was skipped.
type FieldError struct {
	Field string
	Value string // Raw JSON as received.
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Value + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error { return e.Err }

// CoerceSize converts a JSON number or numeric string to a positive integer.
// Integral floats such as 2.0 are accepted.
func CoerceSize(raw json.RawMessage) (int, error) {
	var num json.Number
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidSize
		}
		num = json.Number(strings.TrimSpace(s))
	} else if err := json.Unmarshal(raw, &num); err != nil {
		return 0, ErrInvalidSize
	}

	n, err := num.Int64()
	if err != nil {
		f, ferr := num.Float64()
		if ferr != nil || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
			return 0, ErrInvalidSize
		}
		n = int64(f)
	}
	if n < 1 || n > math.MaxInt32 {
		return 0, ErrInvalidSize
	}
	return int(n), nil
}

// CoerceColor parses a JSON string of up to six hex digits with an optional
// leading '#'. ok is false when the string is empty once the '#' is removed,
// in which case the color should be left alone without reporting an error.
func CoerceColor(raw json.RawMessage) (rgb uint32, ok bool, err error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, ErrInvalidColor
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return 0, false, nil
	}
	if len(s) > 6 {
		return 0, false, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, false, ErrInvalidColor
	}
	return uint32(v), true, nil
}
