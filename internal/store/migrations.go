package store

import "fmt"

// migrations run in order; each entry is one schema version. The meta
// table records the current version so restarts only apply new entries.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS journeys (
		id              TEXT PRIMARY KEY,
		question        TEXT NOT NULL,
		max_depth       INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		synthesis_count INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL,
		updated_at      INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stages (
		id           TEXT PRIMARY KEY,
		journey_id   TEXT NOT NULL REFERENCES journeys(id),
		seq          INTEGER NOT NULL,
		type         TEXT NOT NULL,
		status       TEXT NOT NULL,
		output       TEXT,
		reasoning    TEXT,
		error        TEXT,
		started_at   INTEGER NOT NULL,
		completed_at INTEGER,
		UNIQUE (journey_id, seq)
	);
	CREATE TABLE IF NOT EXISTS artifacts (
		id         TEXT PRIMARY KEY,
		stage_id   TEXT NOT NULL REFERENCES stages(id),
		type       TEXT NOT NULL,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS insights (
		id         TEXT PRIMARY KEY,
		journey_id TEXT NOT NULL REFERENCES journeys(id),
		category   TEXT NOT NULL,
		text       TEXT NOT NULL,
		score      REAL NOT NULL DEFAULT 0,
		ordinal    INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE (journey_id, ordinal)
	);
	CREATE INDEX IF NOT EXISTS idx_stages_journey ON stages(journey_id, seq);
	CREATE INDEX IF NOT EXISTS idx_artifacts_stage ON artifacts(stage_id);
	CREATE INDEX IF NOT EXISTS idx_insights_journey ON insights(journey_id, ordinal);`,
}

// migrate applies any pending migrations.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var version int
	_ = s.db.QueryRow(`SELECT CAST(value AS INTEGER) FROM meta WHERE key='schema_version'`).Scan(&version)

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`, i+1); err != nil {
			return fmt.Errorf("record schema version %d: %w", i+1, err)
		}
		s.logger.Debug().Int("version", i+1).Msg("migration applied")
	}
	return nil
}
