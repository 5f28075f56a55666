package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Saved sentences, one row per session
		`CREATE TABLE IF NOT EXISTS translations (
			id TEXT PRIMARY KEY,
			sentence TEXT NOT NULL,
			sign_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Committed signs of a translation with their captured frame
		`CREATE TABLE IF NOT EXISTS translation_signs (
			translation_id TEXT NOT NULL REFERENCES translations(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			label TEXT NOT NULL,
			confidence REAL NOT NULL,
			auto INTEGER NOT NULL DEFAULT 0,
			committed_at DATETIME NOT NULL,
			image BLOB,
			PRIMARY KEY (translation_id, seq)
		)`,

		// Reference poses used by the template classifier
		`CREATE TABLE IF NOT EXISTS sign_templates (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			tolerance REAL NOT NULL DEFAULT 0.15,
			samples INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Trained landmark positions of a template
		`CREATE TABLE IF NOT EXISTS template_landmarks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			template_id TEXT NOT NULL REFERENCES sign_templates(id) ON DELETE CASCADE,
			landmark_index INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL
		)`,

		// Raw recorded samples for training
		`CREATE TABLE IF NOT EXISTS template_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			template_id TEXT NOT NULL REFERENCES sign_templates(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_translations_created_at ON translations(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_template_landmarks_template_id ON template_landmarks(template_id)`,
		`CREATE INDEX IF NOT EXISTS idx_template_samples_template_id ON template_samples(template_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
