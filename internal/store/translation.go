package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/translate"
)

// TranslationRecord is a saved history entry.
type TranslationRecord struct {
	ID        string       `json:"id"`
	Sentence  string       `json:"sentence"`
	SignCount int          `json:"sign_count"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Signs     []SignRecord `json:"signs,omitempty"`
}

// SignRecord is one committed sign of a history entry. The captured image is
// fetched separately with TranslationRepository.Image.
type SignRecord struct {
	Seq         int       `json:"seq"`
	Label       string    `json:"label"`
	Confidence  float64   `json:"confidence"`
	Auto        bool      `json:"auto"`
	CommittedAt time.Time `json:"committed_at"`
	HasImage    bool      `json:"has_image"`
}

// TranslationRepository stores the translation history. It implements
// translate.HistorySink.
type TranslationRepository struct {
	db         *sql.DB
	maxEntries int
}

var _ translate.HistorySink = (*TranslationRepository)(nil)

// Translations returns the translation history repository for this store.
func (s *Store) Translations() *TranslationRepository {
	return &TranslationRepository{db: s.db, maxEntries: s.maxEntries}
}

// Persist writes t, replacing any earlier entry with the same ID together
// with its signs, then trims the history to the configured maximum.
func (r *TranslationRepository) Persist(ctx context.Context, t translate.Translation) error {
	if t.ID == "" {
		return errors.New("translation has no id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt := t.CreatedAt.UTC()
	if t.CreatedAt.IsZero() {
		createdAt = now
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO translations (id, sentence, sign_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			sentence = excluded.sentence,
			sign_count = excluded.sign_count,
			updated_at = excluded.updated_at`,
		t.ID, t.Sentence, len(t.Signs), createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert translation: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM translation_signs WHERE translation_id = ?`, t.ID); err != nil {
		return fmt.Errorf("replace signs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO translation_signs (translation_id, seq, label, confidence, auto, committed_at, image)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sign := range t.Signs {
		var image []byte
		if sign.FrameStatus == translate.FrameCaptured && len(sign.Frame) > 0 {
			image = sign.Frame
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, sign.Seq, sign.Label, sign.Confidence, sign.Auto, sign.CommittedAt.UTC(), image,
		); err != nil {
			return fmt.Errorf("insert sign %d: %w", sign.Seq, err)
		}
	}

	if r.maxEntries > 0 {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM translations WHERE id NOT IN (
				SELECT id FROM translations ORDER BY created_at DESC, rowid DESC LIMIT ?
			)`,
			r.maxEntries,
		)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	return tx.Commit()
}

// List returns history entries newest first, without their signs. A limit
// of zero or less returns every entry.
func (r *TranslationRepository) List(ctx context.Context, limit int) ([]*TranslationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sentence, sign_count, created_at, updated_at
		 FROM translations ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*TranslationRecord
	for rows.Next() {
		rec := &TranslationRecord{}
		if err := rows.Scan(&rec.ID, &rec.Sentence, &rec.SignCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// GetByID returns one history entry with its signs.
func (r *TranslationRepository) GetByID(ctx context.Context, id string) (*TranslationRecord, error) {
	rec := &TranslationRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sentence, sign_count, created_at, updated_at FROM translations WHERE id = ?`,
		id,
	).Scan(&rec.ID, &rec.Sentence, &rec.SignCount, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, label, confidence, auto, committed_at, image IS NOT NULL
		 FROM translation_signs WHERE translation_id = ? ORDER BY seq`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s SignRecord
		if err := rows.Scan(&s.Seq, &s.Label, &s.Confidence, &s.Auto, &s.CommittedAt, &s.HasImage); err != nil {
			return nil, err
		}
		rec.Signs = append(rec.Signs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rec, nil
}

// Image returns the captured frame of sign seq. ErrNotFound is returned when
// the sign does not exist or has no image.
func (r *TranslationRepository) Image(ctx context.Context, id string, seq int) ([]byte, error) {
	var image []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT image FROM translation_signs WHERE translation_id = ? AND seq = ?`,
		id, seq,
	).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(image) == 0 {
		return nil, ErrNotFound
	}
	return image, nil
}

// Delete removes one history entry.
func (r *TranslationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM translations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// Clear removes every history entry and returns how many were deleted.
func (r *TranslationRepository) Clear(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM translations`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of history entries.
func (r *TranslationRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n)
	return n, err
}
