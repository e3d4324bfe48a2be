// Package control turns requests from a transport into display updates and
// status reports.
//
// An update body is a JSON object with optional members:
//
//	{"text": "Hello world", "size": 2, "color": "#00FF00"}
//
// Each member is validated and applied on its own. A bad size or color is
// logged and skipped, the rest of the update still goes through.
package control

import (
	_ "embed"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Status codes returned to the transport.
const (
	StatusOK               = 200
	StatusBadRequest       = 400
	StatusNotFound         = 404
	StatusMethodNotAllowed = 405
)

// Routes served by Endpoint.
const (
	PathIndex   = "/"
	PathReceive = "/receive"
	PathStatus  = "/status"
)

const (
	contentText = "text/plain"
	contentJSON = "application/json"
	contentHTML = "text/html; charset=utf-8"
)

// indexHTML is the control page: a form posting to /receive, prefilled
// from /status.
//
//go:embed index.html
var indexHTML []byte

// Response is what a transport writes back to the client.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func textResponse(status int, body string) Response {
	return Response{Status: status, ContentType: contentText, Body: []byte(body)}
}

// Endpoint is the entry point for transports. It processes one request at a
// time so that the fields of an update, and its refresh, are never interleaved
// with another request.
type Endpoint struct {
	// OnCommit, if set, is called with the new status after every successful
	// update. It runs while the endpoint is locked and must not call back
	// into it. Set it before serving requests.
	OnCommit func(Status)

	mu        sync.Mutex
	handler   *Handler
	responder Responder
	log       *slog.Logger
}

// NewEndpoint returns an Endpoint applying updates with h and reporting
// status from r. A nil logger discards output.
func NewEndpoint(h *Handler, r Reader, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Endpoint{
		handler:   h,
		responder: Responder{State: r},
		log:       logger,
	}
}

// HandleUpdate applies an update body. It answers 400 "error" only when the
// body is malformed; rejected fields still answer 200 "ok".
func (e *Endpoint) HandleUpdate(body []byte) Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.handler.Update(body)
	if err != nil {
		e.log.Error("endpoint:update-rejected", slog.Any("reason", err))
		return textResponse(StatusBadRequest, "error")
	}
	e.log.Info("endpoint:update",
		slog.Int("lines", len(res.Lines)),
		slog.Int("rejected", len(res.Rejected())),
	)
	if e.OnCommit != nil {
		st, err := e.responder.Status()
		if err != nil {
			e.log.Error("endpoint:commit-status", slog.Any("reason", err))
		} else {
			e.OnCommit(st)
		}
	}
	return textResponse(StatusOK, "ok")
}

// HandleStatus answers with the JSON status, or 400 "error" if the state
// could not be read.
func (e *Endpoint) HandleStatus() Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.responder.Status()
	if err != nil {
		e.log.Error("endpoint:status", slog.Any("reason", err))
		return textResponse(StatusBadRequest, "error")
	}
	body, err := st.Encode()
	if err != nil {
		e.log.Error("endpoint:status-encode", slog.Any("reason", err))
		return textResponse(StatusBadRequest, "error")
	}
	return Response{Status: StatusOK, ContentType: contentJSON, Body: body}
}

// Redraw renders the current state without changing it.
func (e *Endpoint) Redraw() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler.Redraw()
}

// Serve routes a request by method and path. Any query string is ignored.
func (e *Endpoint) Serve(method, path string, body []byte) Response {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch path {
	case PathIndex, "/index.html":
		if method != "GET" {
			return textResponse(StatusMethodNotAllowed, "method not allowed")
		}
		return Response{Status: StatusOK, ContentType: contentHTML, Body: indexHTML}
	case PathReceive:
		if method != "POST" {
			return textResponse(StatusMethodNotAllowed, "method not allowed")
		}
		return e.HandleUpdate(body)
	case PathStatus:
		if method != "GET" {
			return textResponse(StatusMethodNotAllowed, "method not allowed")
		}
		return e.HandleStatus()
	}
	e.log.Warn("endpoint:not-found", slog.String("method", method), slog.String("path", path))
	return textResponse(StatusNotFound, "not found")
}
