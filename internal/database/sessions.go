package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginSession records the start of a capture session and returns a recorder
// that stores its reports
func (db *DB) BeginSession(library, folder string, period time.Duration, startedAt time.Time) (*Recorder, error) {
	id := uuid.NewString()

	err := db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sessions (id, library, folder, period_ms, started_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, library, folder, period.Milliseconds(), startedAt)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Recorder{db: db, sessionID: id}, nil
}

// EndSession marks a session as stopped
func (db *DB) EndSession(id string, stoppedAt time.Time, ticks int) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE sessions SET stopped_at = ?, ticks = ?
			WHERE id = ?
		`, stoppedAt, ticks, id)
		if err != nil {
			return fmt.Errorf("failed to end session: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("session not found: %s", id)
		}
		return nil
	})
}

// GetSession retrieves a session by ID
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.conn.QueryRow(`
		SELECT id, library, folder, period_ms, started_at, stopped_at, ticks
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessions returns the most recent sessions first. limit <= 0 returns all.
func (db *DB) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.Query(`
		SELECT id, library, folder, period_ms, started_at, stopped_at, ticks
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// DeleteSession removes a session with its results
func (db *DB) DeleteSession(id string) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
		return err
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s         Session
		stoppedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Library, &s.Folder, &s.PeriodMs, &s.StartedAt, &stoppedAt, &s.Ticks)
	if err != nil {
		return nil, err
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time
		s.StoppedAt = &t
	}
	return &s, nil
}
