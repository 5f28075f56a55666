package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/store"
)

// SamplesHandler handles the recorded samples of a sign template.
type SamplesHandler struct {
	store *store.Store
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s}
}

type createSamplesRequest struct {
	Samples []json.RawMessage `json:"samples"`
}

type sampleResponse struct {
	ID          int64           `json:"id"`
	TemplateID  string          `json:"template_id"`
	SampleIndex int             `json:"sample_index"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   string          `json:"created_at"`
}

type listSamplesResponse struct {
	Samples []sampleResponse `json:"samples"`
}

// serve handles /api/templates/{id}/samples.
func (h *SamplesHandler) serve(w http.ResponseWriter, r *http.Request, templateID string) {
	if _, err := h.store.Templates().GetByID(templateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify template")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, templateID)
	case http.MethodPost:
		h.create(w, r, templateID)
	case http.MethodDelete:
		if err := h.store.Samples().DeleteByTemplateID(templateID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to delete samples")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (h *SamplesHandler) list(w http.ResponseWriter, templateID string) {
	samples, err := h.store.Samples().GetByTemplateID(templateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}

	resp := listSamplesResponse{Samples: make([]sampleResponse, 0, len(samples))}
	for _, s := range samples {
		resp.Samples = append(resp.Samples, sampleResponse{
			ID:          s.ID,
			TemplateID:  s.TemplateID,
			SampleIndex: s.SampleIndex,
			Data:        s.Data,
			CreatedAt:   s.CreatedAt.Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SamplesHandler) create(w http.ResponseWriter, r *http.Request, templateID string) {
	var req createSamplesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "At least one sample is required")
		return
	}
	for _, s := range req.Samples {
		if !json.Valid(s) {
			writeError(w, http.StatusBadRequest, "Invalid sample")
			return
		}
	}

	if err := h.store.Samples().Create(templateID, req.Samples); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save samples")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"added": len(req.Samples)})
}
