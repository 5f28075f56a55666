package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

// Registry keeps the live classifier in step with the stored templates.
type Registry interface {
	LoadTemplates() error
	TrainTemplate(id string) error
	ForgetTemplate(id string)
}

// TemplateHandler serves sign template resources under /api/templates.
type TemplateHandler struct {
	store            *store.Store
	registry         Registry
	samples          *SamplesHandler
	defaultTolerance float64
	logger           *slog.Logger
}

// NewTemplateHandler creates a TemplateHandler. registry may be nil, in
// which case training is unavailable.
func NewTemplateHandler(s *store.Store, registry Registry, defaultTolerance float64, logger *slog.Logger) *TemplateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateHandler{
		store:            s,
		registry:         registry,
		samples:          NewSamplesHandler(s),
		defaultTolerance: defaultTolerance,
		logger:           logger,
	}
}

type templateRequest struct {
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
}

type templateResponse struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Tolerance float64 `json:"tolerance"`
	Samples   int     `json:"samples"`
	Trained   bool    `json:"trained"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listTemplatesResponse struct {
	Templates []templateResponse `json:"templates"`
}

// ServeHTTP routes /api/templates, /api/templates/{id} and the
// /samples and /train subresources.
func (h *TemplateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/templates")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, parts[0])
		case http.MethodPut:
			h.update(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, parts[0])
		default:
			methodNotAllowed(w)
		}
	case 2:
		switch parts[1] {
		case "samples":
			h.samples.serve(w, r, parts[0])
		case "train":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			h.train(w, parts[0])
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *TemplateHandler) list(w http.ResponseWriter) {
	templates, err := h.store.Templates().List()
	if err != nil {
		h.logger.Error("failed to list templates", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}

	resp := listTemplatesResponse{Templates: make([]templateResponse, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, h.toResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TemplateHandler) create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	label := translate.NormalizeLabel(req.Label)
	if label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "tolerance must be positive")
		return
	}
	if req.Tolerance == 0 {
		req.Tolerance = h.defaultTolerance
	}

	if _, err := h.store.Templates().GetByLabel(label); err == nil {
		writeError(w, http.StatusConflict, "A template with this label already exists")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("failed to look up template", "label", label, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}

	t := &store.Template{
		ID:        uuid.New().String(),
		Label:     label,
		Tolerance: req.Tolerance,
	}
	if err := h.store.Templates().Create(t); err != nil {
		h.logger.Error("failed to create template", "label", label, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(t))
}

func (h *TemplateHandler) get(w http.ResponseWriter, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(t))
}

func (h *TemplateHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Label != "" {
		label := translate.NormalizeLabel(req.Label)
		if label == "" {
			writeError(w, http.StatusBadRequest, "label is required")
			return
		}
		if other, err := h.store.Templates().GetByLabel(label); err == nil && other.ID != id {
			writeError(w, http.StatusConflict, "A template with this label already exists")
			return
		}
		t.Label = label
	}
	if req.Tolerance < 0 {
		writeError(w, http.StatusBadRequest, "tolerance must be positive")
		return
	}
	if req.Tolerance > 0 {
		t.Tolerance = req.Tolerance
	}

	if err := h.store.Templates().Update(t); err != nil {
		h.writeStoreError(w, err)
		return
	}
	h.reload()
	writeJSON(w, http.StatusOK, h.toResponse(t))
}

func (h *TemplateHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Templates().Delete(id); err != nil {
		h.writeStoreError(w, err)
		return
	}
	if h.registry != nil {
		h.registry.ForgetTemplate(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// train handles POST /api/templates/{id}/train.
func (h *TemplateHandler) train(w http.ResponseWriter, id string) {
	if h.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "Training is not available")
		return
	}

	if err := h.registry.TrainTemplate(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, err := h.store.Templates().GetByID(id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(t))
}

func (h *TemplateHandler) reload() {
	if h.registry == nil {
		return
	}
	if err := h.registry.LoadTemplates(); err != nil {
		h.logger.Warn("failed to reload templates", "err", err)
	}
}

func (h *TemplateHandler) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	h.logger.Error("template request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}

func (h *TemplateHandler) toResponse(t *store.Template) templateResponse {
	resp := templateResponse{
		ID:        t.ID,
		Label:     t.Label,
		Tolerance: t.Tolerance,
		Samples:   t.Samples,
		CreatedAt: t.CreatedAt.Format(timeFormat),
		UpdatedAt: t.UpdatedAt.Format(timeFormat),
	}
	if landmarks, err := h.store.Templates().GetLandmarks(t.ID); err == nil {
		resp.Trained = len(landmarks) > 0
	}
	return resp
}
