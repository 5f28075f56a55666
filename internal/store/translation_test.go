package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ayusman/mudra/internal/translate"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleTranslation(id string, created time.Time, labels ...string) translate.Translation {
	tr := translate.Translation{ID: id, CreatedAt: created}
	for i, label := range labels {
		rec := translate.CommitRecord{
			ID:          fmt.Sprintf("%s-%d", id, i),
			Seq:         i,
			Label:       label,
			Confidence:  0.9,
			CommittedAt: created.Add(time.Duration(i) * time.Second),
			Auto:        i%2 == 0,
			FrameStatus: translate.FrameMissing,
		}
		if label != " " {
			rec.FrameStatus = translate.FrameCaptured
			rec.Frame = []byte{0xFF, 0xD8, 0xFF, byte(i)}
		}
		tr.Signs = append(tr.Signs, rec)
		tr.Sentence += label
	}
	return tr
}

func TestTranslationRepository_PersistAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Translations()

	tr := sampleTranslation("session-1", base, "h", "i", " ")
	if err := repo.Persist(ctx, tr); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "session-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	want := &TranslationRecord{
		ID:        "session-1",
		Sentence:  "hi ",
		SignCount: 3,
		CreatedAt: base,
		Signs: []SignRecord{
			{Seq: 0, Label: "h", Confidence: 0.9, Auto: true, CommittedAt: base, HasImage: true},
			{Seq: 1, Label: "i", Confidence: 0.9, Auto: false, CommittedAt: base.Add(time.Second), HasImage: true},
			{Seq: 2, Label: " ", Confidence: 0.9, Auto: true, CommittedAt: base.Add(2 * time.Second), HasImage: false},
		},
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(TranslationRecord{}, "UpdatedAt"),
		cmpopts.EquateApproxTime(time.Millisecond),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("GetByID() mismatch (-want +got):\n%s", diff)
	}

	img, err := repo.Image(ctx, "session-1", 1)
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if !bytes.Equal(img, []byte{0xFF, 0xD8, 0xFF, 1}) {
		t.Errorf("Image() = % x", img)
	}
	if _, err := repo.Image(ctx, "session-1", 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Image() of a sign without a frame = %v, want ErrNotFound", err)
	}
	if _, err := repo.Image(ctx, "session-1", 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("Image() of a missing sign = %v, want ErrNotFound", err)
	}
}

func TestTranslationRepository_PersistUpserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Translations()

	if err := repo.Persist(ctx, sampleTranslation("s", base, "h", "e")); err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}
	if err := repo.Persist(ctx, sampleTranslation("s", base, "h", "e", "y")); err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Count() = %d after re-persisting one session, want 1", n)
	}

	got, err := repo.GetByID(ctx, "s")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Sentence != "hey" || got.SignCount != 3 || len(got.Signs) != 3 {
		t.Errorf("after upsert got sentence %q with %d/%d signs", got.Sentence, got.SignCount, len(got.Signs))
	}
}

func TestTranslationRepository_TrimsOldest(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t, WithMaxEntries(3)).Translations()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t%d", i)
		if err := repo.Persist(ctx, sampleTranslation(id, base.Add(time.Duration(i)*time.Minute), "a")); err != nil {
			t.Fatalf("Persist(%s) error = %v", id, err)
		}
	}

	list, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, rec := range list {
		ids = append(ids, rec.ID)
	}
	if diff := cmp.Diff([]string{"t4", "t3", "t2"}, ids); diff != "" {
		t.Errorf("List() ids mismatch (-want +got):\n%s", diff)
	}

	var signs int
	if err := repo.db.QueryRow(`SELECT COUNT(*) FROM translation_signs`).Scan(&signs); err != nil {
		t.Fatal(err)
	}
	if signs != 3 {
		t.Errorf("%d signs left after trimming, want 3", signs)
	}
}

func TestTranslationRepository_ListLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Translations()

	for i := 0; i < 4; i++ {
		if err := repo.Persist(ctx, sampleTranslation(fmt.Sprintf("t%d", i), base.Add(time.Duration(i)*time.Second), "b")); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != "t3" || list[1].ID != "t2" {
		t.Errorf("List(2) = %v", list)
	}
	if list[0].Signs != nil {
		t.Error("List() should not load signs")
	}
}

func TestTranslationRepository_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t).Translations()

	for i := 0; i < 3; i++ {
		if err := repo.Persist(ctx, sampleTranslation(fmt.Sprintf("t%d", i), base, "c")); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after Delete = %v, want ErrNotFound", err)
	}

	n, err := repo.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Clear() removed %d, want 2", n)
	}
	if count, _ := repo.Count(ctx); count != 0 {
		t.Errorf("Count() after Clear = %d", count)
	}
}

func TestTranslationRepository_PersistRequiresID(t *testing.T) {
	repo := newTestStore(t).Translations()
	if err := repo.Persist(context.Background(), translate.Translation{Sentence: "x"}); err == nil {
		t.Error("Persist() without an id should fail")
	}
}

func TestTranslationRepository_PersistCanceled(t *testing.T) {
	repo := newTestStore(t).Translations()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Persist(ctx, sampleTranslation("s", base, "a")); err == nil {
		t.Fatal("Persist() with a canceled context should fail")
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d after a canceled Persist", n)
	}
}
