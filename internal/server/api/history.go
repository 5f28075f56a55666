package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/store"
)

// HistoryHandler serves the saved translation history.
type HistoryHandler struct {
	repo   *store.TranslationRepository
	logger *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler over the store's history.
func NewHistoryHandler(s *store.Store, logger *slog.Logger) *HistoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{repo: s.Translations(), logger: logger}
}

type signResponse struct {
	Seq         int     `json:"seq"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Auto        bool    `json:"auto"`
	CommittedAt string  `json:"committed_at"`
	HasImage    bool    `json:"has_image"`
}

type translationResponse struct {
	ID        string         `json:"id"`
	Sentence  string         `json:"sentence"`
	SignCount int            `json:"sign_count"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
	Signs     []signResponse `json:"signs,omitempty"`
}

type listHistoryResponse struct {
	Translations []translationResponse `json:"translations"`
}

type clearHistoryResponse struct {
	Deleted int64 `json:"deleted"`
}

// ServeHTTP routes:
//
//	GET    /api/history[?limit=N]
//	DELETE /api/history
//	GET    /api/history/{id}
//	DELETE /api/history/{id}
//	GET    /api/history/{id}/signs/{seq}/image
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/history")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodDelete:
			h.clear(w, r)
		default:
			methodNotAllowed(w)
		}
	case 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, parts[0])
		case http.MethodDelete:
			h.delete(w, r, parts[0])
		default:
			methodNotAllowed(w)
		}
	case 4:
		if parts[1] != "signs" || parts[3] != "image" {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.image(w, r, parts[0], parts[2])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list history", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	resp := listHistoryResponse{Translations: make([]translationResponse, 0, len(records))}
	for _, rec := range records {
		resp.Translations = append(resp.Translations, toTranslationResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HistoryHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, "Translation not found")
		return
	}
	writeJSON(w, http.StatusOK, toTranslationResponse(rec))
}

func (h *HistoryHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, err, "Translation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HistoryHandler) clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.repo.Clear(r.Context())
	if err != nil {
		h.logger.Error("failed to clear history", "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, clearHistoryResponse{Deleted: n})
}

func (h *HistoryHandler) image(w http.ResponseWriter, r *http.Request, id, seqParam string) {
	seq, err := strconv.Atoi(seqParam)
	if err != nil || seq < 0 {
		writeError(w, http.StatusBadRequest, "Invalid sign sequence")
		return
	}

	data, err := h.repo.Image(r.Context(), id, seq)
	if err != nil {
		h.writeStoreError(w, err, "Image not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *HistoryHandler) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	h.logger.Error("history request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}

func toTranslationResponse(rec *store.TranslationRecord) translationResponse {
	resp := translationResponse{
		ID:        rec.ID,
		Sentence:  rec.Sentence,
		SignCount: rec.SignCount,
		CreatedAt: rec.CreatedAt.Format(timeFormat),
		UpdatedAt: rec.UpdatedAt.Format(timeFormat),
	}
	for _, s := range rec.Signs {
		resp.Signs = append(resp.Signs, signResponse{
			Seq:         s.Seq,
			Label:       s.Label,
			Confidence:  s.Confidence,
			Auto:        s.Auto,
			CommittedAt: s.CommittedAt.Format(timeFormat),
			HasImage:    s.HasImage,
		})
	}
	return resp
}
