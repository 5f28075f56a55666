package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Template is a sign template definition: the label the classifier reports
// and the match tolerance.
type Template struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Tolerance float64   `json:"tolerance"`
	Samples   int       `json:"samples"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Landmark is one trained landmark position of a template.
type Landmark struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
}

// TemplateRepository provides CRUD operations for sign templates.
type TemplateRepository struct {
	db *sql.DB
}

// Templates returns the template repository for this store.
func (s *Store) Templates() *TemplateRepository {
	return &TemplateRepository{db: s.db}
}

const templateColumns = `id, label, tolerance, samples, created_at, updated_at`

// Create inserts a new template.
func (r *TemplateRepository) Create(t *Template) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO sign_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Label, t.Tolerance, t.Samples, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetByID retrieves a template by its ID.
func (r *TemplateRepository) GetByID(id string) (*Template, error) {
	return r.getOne(`SELECT `+templateColumns+` FROM sign_templates WHERE id = ?`, id)
}

// GetByLabel retrieves a template by its label.
func (r *TemplateRepository) GetByLabel(label string) (*Template, error) {
	return r.getOne(`SELECT `+templateColumns+` FROM sign_templates WHERE label = ?`, label)
}

func (r *TemplateRepository) getOne(query string, arg string) (*Template, error) {
	t := &Template{}
	err := r.db.QueryRow(query, arg).
		Scan(&t.ID, &t.Label, &t.Tolerance, &t.Samples, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves all templates ordered by label.
func (r *TemplateRepository) List() ([]*Template, error) {
	rows, err := r.db.Query(`SELECT ` + templateColumns + ` FROM sign_templates ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*Template
	for rows.Next() {
		t := &Template{}
		if err := rows.Scan(&t.ID, &t.Label, &t.Tolerance, &t.Samples, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// Update updates the label and tolerance of an existing template.
func (r *TemplateRepository) Update(t *Template) error {
	t.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(
		`UPDATE sign_templates SET label = ?, tolerance = ?, updated_at = ? WHERE id = ?`,
		t.Label, t.Tolerance, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Delete removes a template with its landmarks and samples.
func (r *TemplateRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sign_templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// SetLandmarks replaces the trained landmarks of a template.
func (r *TemplateRepository) SetLandmarks(id string, landmarks []Landmark) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sign_templates WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM template_landmarks WHERE template_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO template_landmarks (template_id, landmark_index, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, l := range landmarks {
		if _, err := stmt.Exec(id, i, l.X, l.Y, l.Z); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`UPDATE sign_templates SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
		return err
	}

	return tx.Commit()
}

// GetLandmarks returns the trained landmarks of a template in index order.
// An untrained template has none.
func (r *TemplateRepository) GetLandmarks(id string) ([]Landmark, error) {
	rows, err := r.db.Query(
		`SELECT landmark_index, x, y, z FROM template_landmarks
		 WHERE template_id = ? ORDER BY landmark_index`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var landmarks []Landmark
	for rows.Next() {
		var l Landmark
		if err := rows.Scan(&l.Index, &l.X, &l.Y, &l.Z); err != nil {
			return nil, err
		}
		landmarks = append(landmarks, l)
	}

	return landmarks, rows.Err()
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
