package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/harveysanders/picodisplay/textboard/state"
)

func newTestEndpoint() (*Endpoint, *fakeRenderer) {
	st := state.New()
	r := &fakeRenderer{}
	return NewEndpoint(NewHandler(st, grid8{}, r, nil), st, nil), r
}

func TestStatusRoundTrip(t *testing.T) {
	e, _ := newTestEndpoint()

	resp := e.Serve("POST", "/receive", []byte(`{"text":"Hello world","size":2,"color":"00FF00"}`))
	if resp.Status != StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.Status, resp.Body)
	}

	resp = e.Serve("GET", "/status", nil)
	if resp.Status != StatusOK {
		t.Fatalf("expected 200, got %d", resp.Status)
	}
	if resp.ContentType != "application/json" {
		t.Fatalf("expected json content type, got %q", resp.ContentType)
	}
	want := `{"text":"Hello world","size":2,"color":"#00FF00"}`
	if string(resp.Body) != want {
		t.Fatalf("expected %s, got %s", want, resp.Body)
	}
}

func TestStatusDefaults(t *testing.T) {
	e, _ := newTestEndpoint()
	resp := e.HandleStatus()
	want := `{"text":"Ready to receive.","size":1,"color":"#FFFF00"}`
	if resp.Status != StatusOK || string(resp.Body) != want {
		t.Fatalf("expected 200 %s, got %d %s", want, resp.Status, resp.Body)
	}
}

func statusOf(t *testing.T, e *Endpoint) Status {
	t.Helper()
	resp := e.HandleStatus()
	if resp.Status != StatusOK {
		t.Fatalf("status: got %d %q", resp.Status, resp.Body)
	}
	var st Status
	if err := json.Unmarshal(resp.Body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func TestInvalidSizeScenario(t *testing.T) {
	e, _ := newTestEndpoint()
	e.HandleUpdate([]byte(`{"size":3,"text":"before"}`))

	resp := e.HandleUpdate([]byte(`{"size":"abc","text":"X"}`))
	if resp.Status != StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.Status, resp.Body)
	}
	st := statusOf(t, e)
	if st.Size != 3 || st.Text != "X" {
		t.Fatalf("expected size 3 and text X, got %+v", st)
	}
}

func TestInvalidColorScenario(t *testing.T) {
	e, _ := newTestEndpoint()
	e.HandleUpdate([]byte(`{"color":"#123456"}`))

	resp := e.HandleUpdate([]byte(`{"color":"#ZZZZZZ"}`))
	if resp.Status != StatusOK || string(resp.Body) != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", resp.Status, resp.Body)
	}
	if st := statusOf(t, e); st.Color != "#123456" {
		t.Fatalf("expected color #123456, got %s", st.Color)
	}
}

func TestMalformedScenario(t *testing.T) {
	e, r := newTestEndpoint()
	before := statusOf(t, e)

	resp := e.Serve("POST", "/receive", []byte("not-json"))
	if resp.Status != StatusBadRequest || string(resp.Body) != "error" {
		t.Fatalf("expected 400 error, got %d %q", resp.Status, resp.Body)
	}
	if after := statusOf(t, e); after != before {
		t.Fatalf("expected %+v, got %+v", before, after)
	}
	if r.refreshes != 0 {
		t.Fatalf("expected no refresh, got %d", r.refreshes)
	}
}

type brokenReader struct{}

func (brokenReader) Snapshot() (state.Snapshot, error) {
	return state.Snapshot{}, errors.New("bus fault")
}

func TestStatusReadFailure(t *testing.T) {
	st := state.New()
	e := NewEndpoint(NewHandler(st, grid8{}, &fakeRenderer{}, nil), brokenReader{}, nil)

	resp := e.HandleStatus()
	if resp.Status != StatusBadRequest || string(resp.Body) != "error" {
		t.Fatalf("expected 400 error, got %d %q", resp.Status, resp.Body)
	}
	if _, err := (Responder{State: brokenReader{}}).Status(); !errors.Is(err, ErrInternalRead) {
		t.Fatalf("expected ErrInternalRead, got %v", err)
	}
}

func TestServeRouting(t *testing.T) {
	e, _ := newTestEndpoint()
	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/status", StatusOK},
		{"GET", "/status?pretty=1", StatusOK},
		{"POST", "/status", StatusMethodNotAllowed},
		{"GET", "/receive", StatusMethodNotAllowed},
		{"GET", "/", StatusOK},
		{"GET", "/index.html", StatusOK},
		{"POST", "/", StatusMethodNotAllowed},
		{"GET", "/favicon.ico", StatusNotFound},
		{"POST", "/update", StatusNotFound},
	}
	for _, tt := range tests {
		if got := e.Serve(tt.method, tt.path, nil).Status; got != tt.want {
			t.Fatalf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, got)
		}
	}
}

func TestOnCommit(t *testing.T) {
	e, _ := newTestEndpoint()
	var got []Status
	e.OnCommit = func(st Status) { got = append(got, st) }

	e.HandleUpdate([]byte(`{"text":"one"}`))
	e.HandleUpdate([]byte(`nope`))
	e.HandleUpdate([]byte(`{"text":"two","color":"FF0000"}`))

	if len(got) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(got))
	}
	want := Status{Text: "two", Size: 1, Color: "#FF0000"}
	if got[1] != want {
		t.Fatalf("expected %+v, got %+v", want, got[1])
	}
}

func TestServeIndexPage(t *testing.T) {
	e, r := newTestEndpoint()
	for _, path := range []string{"/", "/index.html", "/?from=bookmark"} {
		resp := e.Serve("GET", path, nil)
		if resp.Status != StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Status)
		}
		if !strings.HasPrefix(resp.ContentType, "text/html") {
			t.Fatalf("%s: expected text/html, got %q", path, resp.ContentType)
		}
		if !bytes.Contains(resp.Body, []byte(`fetch("/receive"`)) || !bytes.Contains(resp.Body, []byte(`fetch("/status")`)) {
			t.Fatalf("%s: page does not talk to the control routes", path)
		}
	}
	if r.refreshes != 0 {
		t.Fatalf("expected the page to leave the display alone, got %d refreshes", r.refreshes)
	}
}
