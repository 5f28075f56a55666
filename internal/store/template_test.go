package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTemplateRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Templates()

	tmpl := &Template{ID: "tmpl-a", Label: "a", Tolerance: 0.15}
	if err := repo.Create(tmpl); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tmpl.CreatedAt.IsZero() || tmpl.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}

	byID, err := repo.GetByID("tmpl-a")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Label != "a" || byID.Tolerance != 0.15 || byID.Samples != 0 {
		t.Errorf("GetByID() = %+v", byID)
	}

	byLabel, err := repo.GetByLabel("a")
	if err != nil {
		t.Fatalf("GetByLabel() error = %v", err)
	}
	if byLabel.ID != "tmpl-a" {
		t.Errorf("GetByLabel() returned %q", byLabel.ID)
	}
}

func TestTemplateRepository_DuplicateLabel(t *testing.T) {
	s := newTestStore(t)
	repo := s.Templates()

	if err := repo.Create(&Template{ID: "one", Label: "b", Tolerance: 0.1}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(&Template{ID: "two", Label: "b", Tolerance: 0.1}); err == nil {
		t.Error("creating a template with a duplicate label should fail")
	}
}

func TestTemplateRepository_ListUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Templates()

	for _, tmpl := range []*Template{
		{ID: "v", Label: "v", Tolerance: 0.2},
		{ID: "a", Label: "a", Tolerance: 0.2},
		{ID: "l", Label: "l", Tolerance: 0.2},
	} {
		if err := repo.Create(tmpl); err != nil {
			t.Fatalf("Create(%s) error = %v", tmpl.ID, err)
		}
	}

	list, err := repo.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var labels []string
	for _, tmpl := range list {
		labels = append(labels, tmpl.Label)
	}
	if diff := cmp.Diff([]string{"a", "l", "v"}, labels); diff != "" {
		t.Errorf("List() labels mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Update(&Template{ID: "v", Label: "w", Tolerance: 0.3}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := repo.GetByID("v")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Label != "w" || got.Tolerance != 0.3 {
		t.Errorf("after Update got %+v", got)
	}

	if err := repo.Delete("v"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID("v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after Delete = %v, want ErrNotFound", err)
	}
}

func TestTemplateRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Templates()

	tests := []struct {
		name string
		op   func() error
	}{
		{"get by id", func() error { _, err := repo.GetByID("missing"); return err }},
		{"get by label", func() error { _, err := repo.GetByLabel("missing"); return err }},
		{"update", func() error { return repo.Update(&Template{ID: "missing", Label: "x"}) }},
		{"delete", func() error { return repo.Delete("missing") }},
		{"set landmarks", func() error { return repo.SetLandmarks("missing", []Landmark{{X: 1}}) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.op(); !errors.Is(err, ErrNotFound) {
				t.Errorf("got %v, want ErrNotFound", err)
			}
		})
	}
}

func TestTemplateRepository_Landmarks(t *testing.T) {
	s := newTestStore(t)
	repo := s.Templates()

	if err := repo.Create(&Template{ID: "y", Label: "y", Tolerance: 0.15}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	empty, err := repo.GetLandmarks("y")
	if err != nil || len(empty) != 0 {
		t.Fatalf("GetLandmarks() on untrained template = %v, %v", empty, err)
	}

	first := []Landmark{{X: 0, Y: 0}, {X: 0.5, Y: -0.25}, {X: 1, Y: 1, Z: 0.1}}
	if err := repo.SetLandmarks("y", first); err != nil {
		t.Fatalf("SetLandmarks() error = %v", err)
	}

	second := []Landmark{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}
	if err := repo.SetLandmarks("y", second); err != nil {
		t.Fatalf("SetLandmarks() replace error = %v", err)
	}

	got, err := repo.GetLandmarks("y")
	if err != nil {
		t.Fatalf("GetLandmarks() error = %v", err)
	}
	want := []Landmark{{Index: 0, X: 0.1, Y: 0.2}, {Index: 1, X: 0.3, Y: 0.4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetLandmarks() mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Delete("y"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM template_landmarks`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d landmarks left after deleting their template", n)
	}
}

func TestSampleRepository(t *testing.T) {
	s := newTestStore(t)
	if err := s.Templates().Create(&Template{ID: "l", Label: "l", Tolerance: 0.15}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	repo := s.Samples()

	batch := func(ts ...int) []json.RawMessage {
		var out []json.RawMessage
		for _, v := range ts {
			out = append(out, json.RawMessage(fmt.Sprintf(`{"timestamp":%d}`, v)))
		}
		return out
	}

	if err := repo.Create("l", batch(1, 2)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create("l", batch(3)); err != nil {
		t.Fatalf("Create() append error = %v", err)
	}

	samples, err := repo.GetByTemplateID("l")
	if err != nil {
		t.Fatalf("GetByTemplateID() error = %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}
	for i, sample := range samples {
		if sample.SampleIndex != i {
			t.Errorf("sample %d has index %d", i, sample.SampleIndex)
		}
	}
	if string(samples[2].Data) != `{"timestamp":3}` {
		t.Errorf("last sample data = %s", samples[2].Data)
	}

	tmpl, err := s.Templates().GetByID("l")
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Samples != 3 {
		t.Errorf("template sample count = %d, want 3", tmpl.Samples)
	}

	if err := repo.DeleteByTemplateID("l"); err != nil {
		t.Fatalf("DeleteByTemplateID() error = %v", err)
	}
	tmpl, _ = s.Templates().GetByID("l")
	if tmpl.Samples != 0 {
		t.Errorf("template sample count after delete = %d, want 0", tmpl.Samples)
	}
	if samples, _ := repo.GetByTemplateID("l"); len(samples) != 0 {
		t.Errorf("%d samples left after delete", len(samples))
	}
}
