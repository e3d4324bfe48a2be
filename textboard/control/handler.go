package control

import (
	"io"
	"log/slog"

	"github.com/harveysanders/picodisplay/textboard/layout"
	"github.com/harveysanders/picodisplay/textboard/state"
)

// Renderer drives the physical display. Apply calls stage a change and
// Refresh pushes everything staged so far to the panel.
type Renderer interface {
	ApplyText(lines []string)
	ApplyScale(n int)
	ApplyColor(rgb uint32)
	Refresh() error
}

// FieldResult is the outcome of one field of an update.
type FieldResult struct {
	Field   string
	Applied bool
	Err     error // Non-nil if the field was sent but rejected.
}

// Result describes what an update changed.
type Result struct {
	Fields     []FieldResult
	Lines      []string // Wrapped text sent to the renderer.
	RefreshErr error
}

// Rejected returns the fields that were sent but not applied.
func (r Result) Rejected() []FieldResult {
	var out []FieldResult
	for _, f := range r.Fields {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Handler applies update requests to a State and its Renderer.
type Handler struct {
	state    *state.State
	layout   layout.Engine
	renderer Renderer
	log      *slog.Logger
}

// NewHandler returns a Handler that wraps text against geometry and draws
// through r. A nil logger discards output.
func NewHandler(st *state.State, geometry layout.Provider, r Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Handler{
		state:    st,
		layout:   layout.Engine{Provider: geometry},
		renderer: r,
		log:      logger,
	}
}

// Update applies body to the display. Size, color and text are handled
// independently: a field that fails to coerce is logged and skipped while the
// others still apply. Only a body that cannot be decoded fails the update, in
// which case nothing changes.
//
// Scale is applied before the text is wrapped because the wrap width depends
// on it. The renderer is refreshed once, after every field.
func (h *Handler) Update(body []byte) (Result, error) {
	req, err := ParseRequest(body)
	if err != nil {
		h.log.Error("update:parse", slog.Any("reason", err))
		return Result{}, err
	}

	var res Result
	if req.HasSize() {
		res.Fields = append(res.Fields, h.applySize(req.Size))
	}
	if req.HasColor() {
		if fr, sent := h.applyColor(req.Color); sent {
			res.Fields = append(res.Fields, fr)
		}
	}

	text := req.TextOrEmpty()
	res.Lines = h.layout.Lines(text, h.state.Scale())
	h.renderer.ApplyText(res.Lines)
	h.state.SetText(text)
	res.Fields = append(res.Fields, FieldResult{Field: "text", Applied: true})
	h.log.Info("update:text", slog.String("text", text), slog.Int("lines", len(res.Lines)))

	if err := h.renderer.Refresh(); err != nil {
		h.log.Error("update:refresh", slog.Any("reason", err))
		res.RefreshErr = err
	}
	return res, nil
}

// Redraw pushes the whole state to the renderer, as at boot.
func (h *Handler) Redraw() error {
	snap, err := h.state.Snapshot()
	if err != nil {
		return err
	}
	h.renderer.ApplyScale(snap.Scale)
	h.renderer.ApplyColor(snap.Color)
	h.renderer.ApplyText(h.layout.Lines(snap.Text, snap.Scale))
	return h.renderer.Refresh()
}

func (h *Handler) applySize(raw []byte) FieldResult {
	n, err := CoerceSize(raw)
	if err == nil {
		err = h.state.SetScale(n)
	}
	if err != nil {
		err = &FieldError{Field: "size", Value: string(raw), Err: err}
		h.log.Warn("update:size-invalid", slog.Any("reason", err))
		return FieldResult{Field: "size", Err: err}
	}
	h.renderer.ApplyScale(n)
	h.log.Info("update:size", slog.Int("scale", n))
	return FieldResult{Field: "size", Applied: true}
}

// applyColor reports sent=false for an empty color string, which leaves the
// color alone without counting as an error.
func (h *Handler) applyColor(raw []byte) (fr FieldResult, sent bool) {
	rgb, ok, err := CoerceColor(raw)
	if err == nil && !ok {
		return FieldResult{}, false
	}
	if err == nil {
		err = h.state.SetColor(rgb)
	}
	if err != nil {
		err = &FieldError{Field: "color", Value: string(raw), Err: err}
		h.log.Warn("update:color-invalid", slog.Any("reason", err))
		return FieldResult{Field: "color", Err: err}, true
	}
	h.renderer.ApplyColor(rgb)
	h.log.Info("update:color", slog.String("color", FormatColor(rgb)))
	return FieldResult{Field: "color", Applied: true}, true
}
