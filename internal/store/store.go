// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/endure/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// A running game and the stats command may open the same file.
const dsnPragmas = "?_pragma=busy_timeout(5000)"

// Store wraps SQLite access for session data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			timer1_min INTEGER NOT NULL,
			timer1_max INTEGER NOT NULL,
			timer1_max_repeats INTEGER NOT NULL,
			final_max_repeats INTEGER NOT NULL,
			timer2_enabled INTEGER NOT NULL,
			timer2_min INTEGER NOT NULL,
			timer2_max INTEGER NOT NULL,
			max_repeats_reached INTEGER NOT NULL,
			timer2_sequences INTEGER NOT NULL,
			warn_delay_sum INTEGER NOT NULL,
			delay_after_second_sum INTEGER NOT NULL,
			base_after_third_sum INTEGER NOT NULL,
			jitter_sum INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores an ended session and returns its id. A new id is
// generated when stats.ID is empty.
func (s *Store) InsertSession(ctx context.Context, stats model.SessionStats) (string, error) {
	id := stats.ID
	if id == "" {
		id = uuid.NewString()
	}
	cfg := stats.Config
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, timer1_min, timer1_max, timer1_max_repeats, final_max_repeats,
			timer2_enabled, timer2_min, timer2_max, max_repeats_reached, timer2_sequences,
			warn_delay_sum, delay_after_second_sum, base_after_third_sum, jitter_sum)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		stats.StartedAt.UTC().Format(time.RFC3339Nano),
		stats.EndedAt.UTC().Format(time.RFC3339Nano),
		cfg.Timer1Range.MinSeconds,
		cfg.Timer1Range.MaxSeconds,
		cfg.Timer1MaxRepeats,
		stats.Timer1FinalMaxRepeats,
		stats.Timer2Enabled,
		cfg.Timer2Range.MinSeconds,
		cfg.Timer2Range.MaxSeconds,
		stats.Timer1MaxRepeatsReached,
		stats.Timer2SequenceCount,
		stats.Timer2WarnDelaySum,
		stats.Timer2DelayAfter2Sum,
		stats.Timer2BaseAfter3Sum,
		stats.Timer2JitterSum,
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// RecordSession persists a session snapshot. It lets the store act as the
// engine's stats sink.
func (s *Store) RecordSession(ctx context.Context, stats model.SessionStats) error {
	_, err := s.InsertSession(ctx, stats)
	return err
}

// ListSessions returns sessions filtered by stats config, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionStats, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.UTC().Format(time.RFC3339Nano))
	}
	limit := -1
	if cfg.Last > 0 {
		limit = cfg.Last
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT * FROM (
		SELECT id, started_at, ended_at, timer1_min, timer1_max, timer1_max_repeats, final_max_repeats,
			timer2_enabled, timer2_min, timer2_max, max_repeats_reached, timer2_sequences,
			warn_delay_sum, delay_after_second_sum, base_after_third_sum, jitter_sum
		FROM sessions
		WHERE %s
		ORDER BY ended_at DESC
		LIMIT ?
	) ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionStats
	for rows.Next() {
		var st model.SessionStats
		var startedAt, endedAt string
		if err := rows.Scan(
			&st.ID, &startedAt, &endedAt,
			&st.Config.Timer1Range.MinSeconds, &st.Config.Timer1Range.MaxSeconds,
			&st.Config.Timer1MaxRepeats, &st.Timer1FinalMaxRepeats,
			&st.Timer2Enabled, &st.Config.Timer2Range.MinSeconds, &st.Config.Timer2Range.MaxSeconds,
			&st.Timer1MaxRepeatsReached, &st.Timer2SequenceCount,
			&st.Timer2WarnDelaySum, &st.Timer2DelayAfter2Sum, &st.Timer2BaseAfter3Sum, &st.Timer2JitterSum,
		); err != nil {
			return nil, err
		}
		if st.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		if st.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return nil, err
		}
		st.Config.Timer2Enabled = st.Timer2Enabled
		sessions = append(sessions, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}
