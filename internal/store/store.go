// Package store persists journeys, stages, insights, and artifacts in
// SQLite. The engine treats it as durable and single-writer-per-journey;
// writes for the same journey are serialized with a keyed mutex.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/lru"
)

// journeyCacheSize bounds the read-through cache for GetJourney.
const journeyCacheSize = 64

// Store manages the SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	cache  *lru.Cache[string, *journey.Journey]

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-journey write locks
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
		cache:  lru.New[string, *journey.Journey](journeyCacheSize),
		locks:  make(map[string]*sync.Mutex),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("store initialized")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// journeyLock returns the write lock for a journey id, creating it on
// first use.
func (s *Store) journeyLock(journeyID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[journeyID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[journeyID] = l
	}
	return l
}
