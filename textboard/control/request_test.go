package control

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseRequestMalformed(t *testing.T) {
	bodies := []string{
		"",
		"not-json",
		"null",
		"[]",
		`"text"`,
		"42",
		`{"text": "unterminated`,
		`{"text": 5}`,
		`{"text": ["a"]}`,
	}
	for _, body := range bodies {
		if _, err := ParseRequest([]byte(body)); !errors.Is(err, ErrMalformedRequest) {
			t.Fatalf("body %q: expected ErrMalformedRequest, got %v", body, err)
		}
	}
}

func TestParseRequestFields(t *testing.T) {
	req, err := ParseRequest([]byte(` {"text": "hi", "size": 2, "color": null} `))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.TextOrEmpty() != "hi" {
		t.Fatalf("expected text hi, got %q", req.TextOrEmpty())
	}
	if !req.HasSize() {
		t.Fatalf("expected size to be present")
	}
	if req.HasColor() {
		t.Fatalf("expected null color to count as absent")
	}

	req, err = ParseRequest([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.HasSize() || req.HasColor() || req.TextOrEmpty() != "" {
		t.Fatalf("expected empty request, got %+v", req)
	}
}

func TestCoerceSize(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{`2`, 2, true},
		{`1`, 1, true},
		{`3.0`, 3, true},
		{`"4"`, 4, true},
		{`" 5 "`, 5, true},
		{`0`, 0, false},
		{`-1`, 0, false},
		{`1.5`, 0, false},
		{`"abc"`, 0, false},
		{`"NaN"`, 0, false},
		{`"-Inf"`, 0, false},
		{`true`, 0, false},
		{`{}`, 0, false},
		{`1e12`, 0, false},
	}
	for _, tt := range tests {
		got, err := CoerceSize(json.RawMessage(tt.raw))
		if tt.ok {
			if err != nil || got != tt.want {
				t.Fatalf("size %s: expected %d, got %d (err %v)", tt.raw, tt.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidSize) {
			t.Fatalf("size %s: expected ErrInvalidSize, got %d (err %v)", tt.raw, got, err)
		}
	}
}

func TestCoerceColor(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint32
		ok      bool
		wantErr bool
	}{
		{`"00FF00"`, 0x00FF00, true, false},
		{`"#00ff00"`, 0x00FF00, true, false},
		{`"fff"`, 0x000FFF, true, false},
		{`"#"`, 0, false, false},
		{`""`, 0, false, false},
		{`"#ZZZZZZ"`, 0, false, true},
		{`"0x00FF00"`, 0, false, true},
		{`"1000000"`, 0, false, true},
		{`"-1"`, 0, false, true},
		{`65280`, 0, false, true},
	}
	for _, tt := range tests {
		got, ok, err := CoerceColor(json.RawMessage(tt.raw))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidColor) {
				t.Fatalf("color %s: expected ErrInvalidColor, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || ok != tt.ok || got != tt.want {
			t.Fatalf("color %s: expected %06X ok=%v, got %06X ok=%v err=%v", tt.raw, tt.want, tt.ok, got, ok, err)
		}
	}
}

func TestFormatColor(t *testing.T) {
	tests := map[uint32]string{
		0xFFFF00: "#FFFF00",
		0x00FF00: "#00FF00",
		0x000000: "#000000",
		0x0A0B0C: "#0A0B0C",
	}
	for rgb, want := range tests {
		if got := FormatColor(rgb); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
