package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ayusman/mudra/internal/translate"
)

// Session is the translation pipeline as seen by the API.
type Session interface {
	Snapshot() translate.Snapshot
	OnClassification(s translate.Sample)
	AddLetterManually() (translate.CommitRecord, error)
	AddSpace()
	ClearSentence(ctx context.Context) (bool, error)
	ToggleAutoAdd() bool
	SetAutoAdd(enabled bool)
	SaveToHistory(ctx context.Context) error
}

// Readiness reports whether the sign classifier can produce predictions.
type Readiness interface {
	Ready() bool
}

// SessionHandler serves /api/session and its commands.
type SessionHandler struct {
	session Session
	ready   Readiness
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler. ready may be nil.
func NewSessionHandler(session Session, ready Readiness, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{session: session, ready: ready, logger: logger}
}

type sessionResponse struct {
	translate.Snapshot
	ModelReady bool `json:"model_ready"`
}

type letterResponse struct {
	Sign     translate.CommitRecord `json:"sign"`
	Snapshot translate.Snapshot     `json:"snapshot"`
}

type clearResponse struct {
	Flushed  bool               `json:"flushed"`
	Snapshot translate.Snapshot `json:"snapshot"`
}

type autoAddRequest struct {
	Enabled *bool `json:"enabled"`
}

type autoAddResponse struct {
	Enabled bool `json:"enabled"`
}

type classificationRequest struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ServeHTTP routes /api/session and /api/session/{command}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/session")

	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.get(w)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch parts[0] {
	case "letter":
		h.letter(w)
	case "space":
		h.session.AddSpace()
		writeJSON(w, http.StatusOK, h.session.Snapshot())
	case "clear":
		h.clear(w, r)
	case "autoadd":
		h.autoAdd(w, r)
	case "save":
		h.save(w, r)
	case "classification":
		h.classification(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) get(w http.ResponseWriter) {
	resp := sessionResponse{Snapshot: h.session.Snapshot()}
	if h.ready != nil {
		resp.ModelReady = h.ready.Ready()
	}
	writeJSON(w, http.StatusOK, resp)
}

// letter handles POST /api/session/letter.
func (h *SessionHandler) letter(w http.ResponseWriter) {
	rec, err := h.session.AddLetterManually()
	if err != nil {
		h.writeAdvisory(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, letterResponse{Sign: rec, Snapshot: h.session.Snapshot()})
}

// clear handles POST /api/session/clear.
func (h *SessionHandler) clear(w http.ResponseWriter, r *http.Request) {
	flushed, err := h.session.ClearSentence(r.Context())
	if errors.Is(err, translate.ErrSessionClosed) {
		h.writeAdvisory(w, err)
		return
	}
	if err != nil {
		h.logger.Error("failed to clear sentence", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to save sentence; it was kept")
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{Flushed: flushed, Snapshot: h.session.Snapshot()})
}

// autoAdd handles POST /api/session/autoadd. Without a body it toggles.
func (h *SessionHandler) autoAdd(w http.ResponseWriter, r *http.Request) {
	var req autoAddRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var enabled bool
	if req.Enabled == nil {
		enabled = h.session.ToggleAutoAdd()
	} else {
		enabled = *req.Enabled
		h.session.SetAutoAdd(enabled)
	}
	writeJSON(w, http.StatusOK, autoAddResponse{Enabled: enabled})
}

// save handles POST /api/session/save.
func (h *SessionHandler) save(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SaveToHistory(r.Context()); err != nil {
		h.writeAdvisory(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Snapshot())
}

// classification handles POST /api/session/classification.
func (h *SessionHandler) classification(w http.ResponseWriter, r *http.Request) {
	var req classificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if translate.NormalizeLabel(req.Label) == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		writeError(w, http.StatusBadRequest, "confidence must be between 0 and 1")
		return
	}

	h.session.OnClassification(translate.Sample{Label: req.Label, Confidence: req.Confidence})
	writeJSON(w, http.StatusAccepted, h.session.Snapshot())
}

// writeAdvisory maps pipeline advisories to 409 (wrong state) or 422
// (rejected input). A stopped session is a 503, anything else a 500.
func (h *SessionHandler) writeAdvisory(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, translate.ErrNoActiveDetection),
		errors.Is(err, translate.ErrEmptySentence),
		errors.Is(err, translate.ErrNoCapturedSigns):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, translate.ErrLowConfidence),
		errors.Is(err, translate.ErrEmptyLabel):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, translate.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("session command failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
