package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expedition-ai/expedition/internal/journey"
)

// CreateJourney inserts a new journey record.
func (s *Store) CreateJourney(j *journey.Journey) error {
	lock := s.journeyLock(j.ID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO journeys (id, question, max_depth, status, synthesis_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Question, j.MaxDepth, j.Status, j.SynthesisCount,
		j.CreatedAt.UnixMilli(), j.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create journey: %w", err)
	}
	s.cache.Delete(j.ID)
	return nil
}

// AppendStage persists a finished stage and its artifacts in one
// transaction, enforcing contiguous sequence numbers.
func (s *Store) AppendStage(journeyID string, st journey.Stage) error {
	lock := s.journeyLock(journeyID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append stage: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM stages WHERE journey_id = ?`, journeyID).Scan(&count); err != nil {
		return fmt.Errorf("count stages: %w", err)
	}
	if st.Seq != count+1 {
		return fmt.Errorf("stage seq %d out of order for journey %s, expected %d", st.Seq, journeyID, count+1)
	}

	var completedAt sql.NullInt64
	if !st.CompletedAt.IsZero() {
		completedAt = sql.NullInt64{Int64: st.CompletedAt.UnixMilli(), Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO stages (id, journey_id, seq, type, status, output, reasoning, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, journeyID, st.Seq, st.Type, st.Status,
		nullString(st.Output), nullString(st.ReasoningTrace), nullString(st.Error),
		st.StartedAt.UnixMilli(), completedAt,
	); err != nil {
		return fmt.Errorf("insert stage: %w", err)
	}

	for _, a := range st.Artifacts {
		meta, _ := json.Marshal(a.Metadata)
		if _, err := tx.Exec(`
			INSERT INTO artifacts (id, stage_id, type, title, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, st.ID, a.Type, a.Title, a.Content, string(meta), a.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE journeys SET updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), journeyID); err != nil {
		return fmt.Errorf("touch journey: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append stage: %w", err)
	}
	s.cache.Delete(journeyID)
	return nil
}

// AppendInsight persists an insight, assigning the next ordinal when
// the caller left it unset.
func (s *Store) AppendInsight(journeyID string, in journey.Insight) error {
	lock := s.journeyLock(journeyID)
	lock.Lock()
	defer lock.Unlock()

	if in.Ordinal == 0 {
		var max sql.NullInt64
		if err := s.db.QueryRow(
			`SELECT MAX(ordinal) FROM insights WHERE journey_id = ?`, journeyID).Scan(&max); err != nil {
			return fmt.Errorf("next insight ordinal: %w", err)
		}
		in.Ordinal = int(max.Int64) + 1
	}

	_, err := s.db.Exec(`
		INSERT INTO insights (id, journey_id, category, text, score, ordinal, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.ID, journeyID, in.Category, in.Text, in.Score, in.Ordinal, in.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert insight: %w", err)
	}
	s.cache.Delete(journeyID)
	return nil
}

// UpdateJourneyStatus records a status transition.
func (s *Store) UpdateJourneyStatus(journeyID string, status journey.JourneyStatus) error {
	lock := s.journeyLock(journeyID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.Exec(`UPDATE journeys SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UnixMilli(), journeyID)
	if err != nil {
		return fmt.Errorf("update journey status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journey not found: %s", journeyID)
	}
	s.cache.Delete(journeyID)
	return nil
}

// IncrementSynthesisCount bumps the journey's synthesis counter.
func (s *Store) IncrementSynthesisCount(journeyID string) error {
	lock := s.journeyLock(journeyID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.Exec(`
		UPDATE journeys SET synthesis_count = synthesis_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), journeyID)
	if err != nil {
		return fmt.Errorf("increment synthesis count: %w", err)
	}
	s.cache.Delete(journeyID)
	return nil
}

// GetJourney loads a journey with its stages (and their artifacts) and
// insights in order. Returns nil without error when no journey exists.
// Results come from a read-through cache invalidated on every write;
// callers must not mutate the returned value.
func (s *Store) GetJourney(id string) (*journey.Journey, error) {
	if j, ok := s.cache.Get(id); ok {
		return j, nil
	}

	j := &journey.Journey{}
	var createdAt, updatedAt int64
	err := s.db.QueryRow(`
		SELECT id, question, max_depth, status, synthesis_count, created_at, updated_at
		FROM journeys WHERE id = ?`, id).Scan(
		&j.ID, &j.Question, &j.MaxDepth, &j.Status, &j.SynthesisCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get journey: %w", err)
	}
	j.CreatedAt = time.UnixMilli(createdAt).UTC()
	j.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	if j.Stages, err = s.loadStages(id); err != nil {
		return nil, err
	}
	if j.Insights, err = s.loadInsights(id); err != nil {
		return nil, err
	}

	s.cache.Put(id, j)
	return j, nil
}

func (s *Store) loadStages(journeyID string) ([]journey.Stage, error) {
	rows, err := s.db.Query(`
		SELECT id, seq, type, status, output, reasoning, error, started_at, completed_at
		FROM stages WHERE journey_id = ? ORDER BY seq`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("load stages: %w", err)
	}
	defer rows.Close()

	var stages []journey.Stage
	for rows.Next() {
		st := journey.Stage{JourneyID: journeyID}
		var output, reasoning, errMsg sql.NullString
		var startedAt int64
		var completedAt sql.NullInt64
		if err := rows.Scan(&st.ID, &st.Seq, &st.Type, &st.Status,
			&output, &reasoning, &errMsg, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Output = output.String
		st.ReasoningTrace = reasoning.String
		st.Error = errMsg.String
		st.StartedAt = time.UnixMilli(startedAt).UTC()
		if completedAt.Valid {
			st.CompletedAt = time.UnixMilli(completedAt.Int64).UTC()
		}

		if st.Artifacts, err = s.loadArtifacts(st.ID); err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

func (s *Store) loadArtifacts(stageID string) ([]journey.Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, type, title, content, metadata, created_at
		FROM artifacts WHERE stage_id = ? ORDER BY created_at, id`, stageID)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []journey.Artifact
	for rows.Next() {
		var a journey.Artifact
		var meta sql.NullString
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Title, &a.Content, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		if meta.Valid && meta.String != "" && meta.String != "null" {
			_ = json.Unmarshal([]byte(meta.String), &a.Metadata)
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *Store) loadInsights(journeyID string) ([]journey.Insight, error) {
	rows, err := s.db.Query(`
		SELECT id, category, text, score, ordinal, created_at
		FROM insights WHERE journey_id = ? ORDER BY ordinal`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}
	defer rows.Close()

	var insights []journey.Insight
	for rows.Next() {
		in := journey.Insight{JourneyID: journeyID}
		var createdAt int64
		if err := rows.Scan(&in.ID, &in.Category, &in.Text, &in.Score, &in.Ordinal, &createdAt); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		in.CreatedAt = time.UnixMilli(createdAt).UTC()
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
