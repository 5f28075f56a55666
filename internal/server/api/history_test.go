package api

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/translate"
)

func seedHistory(t *testing.T, s *store.Store, id, sentence string, at time.Time) {
	t.Helper()
	err := s.Translations().Persist(context.Background(), translate.Translation{
		ID:       id,
		Sentence: sentence,
		Signs: []translate.CommitRecord{
			{ID: id + "-0", Seq: 0, Label: "h", Confidence: 0.9, CommittedAt: at, Auto: true,
				FrameStatus: translate.FrameCaptured, Frame: []byte{0xFF, 0xD8, 0xFF, 0x01}},
			{ID: id + "-1", Seq: 1, Label: "i", Confidence: 0.8, CommittedAt: at.Add(time.Second),
				FrameStatus: translate.FrameMissing},
		},
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
}

func TestHistoryHandler_ListAndGet(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedHistory(t, s, "older", "hi", at)
	seedHistory(t, s, "newer", "hi there", at.Add(time.Hour))
	h := NewHistoryHandler(s, discardLogger())

	rec := do(t, h, http.MethodGet, "/api/history", "")
	wantStatus(t, rec, http.StatusOK)
	var list listHistoryResponse
	decode(t, rec, &list)
	if len(list.Translations) != 2 || list.Translations[0].ID != "newer" {
		t.Fatalf("list = %+v", list.Translations)
	}

	rec = do(t, h, http.MethodGet, "/api/history?limit=1", "")
	wantStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list.Translations) != 1 {
		t.Errorf("limit=1 returned %d entries", len(list.Translations))
	}
	wantStatus(t, do(t, h, http.MethodGet, "/api/history?limit=x", ""), http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/api/history/older", "")
	wantStatus(t, rec, http.StatusOK)
	var got translationResponse
	decode(t, rec, &got)
	if got.Sentence != "hi" || got.SignCount != 2 || len(got.Signs) != 2 {
		t.Fatalf("get = %+v", got)
	}
	if !got.Signs[0].HasImage || got.Signs[1].HasImage {
		t.Errorf("has_image = %v, %v", got.Signs[0].HasImage, got.Signs[1].HasImage)
	}
	if got.CreatedAt != at.Format(timeFormat) {
		t.Errorf("created_at = %s", got.CreatedAt)
	}

	wantStatus(t, do(t, h, http.MethodGet, "/api/history/missing", ""), http.StatusNotFound)
}

func TestHistoryHandler_Image(t *testing.T) {
	s := newTestStore(t)
	seedHistory(t, s, "t1", "hi", time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	h := NewHistoryHandler(s, discardLogger())

	rec := do(t, h, http.MethodGet, "/api/history/t1/signs/0/image", "")
	wantStatus(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), []byte{0xFF, 0xD8, 0xFF, 0x01}) {
		t.Errorf("body = % x", rec.Body.Bytes())
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/history/t1/signs/1/image", http.StatusNotFound},
		{"/api/history/t1/signs/9/image", http.StatusNotFound},
		{"/api/history/t1/signs/x/image", http.StatusBadRequest},
		{"/api/history/t1/signs/0/thumb", http.StatusNotFound},
		{"/api/history/t1/signs", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			wantStatus(t, do(t, h, http.MethodGet, tt.path, ""), tt.want)
		})
	}
}

func TestHistoryHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedHistory(t, s, "a", "one", at)
	seedHistory(t, s, "b", "two", at.Add(time.Minute))
	seedHistory(t, s, "c", "three", at.Add(2*time.Minute))
	h := NewHistoryHandler(s, discardLogger())

	wantStatus(t, do(t, h, http.MethodDelete, "/api/history/a", ""), http.StatusNoContent)
	wantStatus(t, do(t, h, http.MethodDelete, "/api/history/a", ""), http.StatusNotFound)

	rec := do(t, h, http.MethodDelete, "/api/history", "")
	wantStatus(t, rec, http.StatusOK)
	var resp clearHistoryResponse
	decode(t, rec, &resp)
	if resp.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", resp.Deleted)
	}

	wantStatus(t, do(t, h, http.MethodPost, "/api/history", ""), http.StatusMethodNotAllowed)
}
