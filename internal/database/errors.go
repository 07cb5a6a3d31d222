package database

import (
	"database/sql"
	"fmt"
	"time"

	mapperr "jordanella.com/screen-mapper/internal/errors"
	"jordanella.com/screen-mapper/internal/events"
)

// LogError records an error. sessionID may be nil for errors outside a session.
func (db *DB) LogError(sessionID *string, source, message string, cause error, occurredAt time.Time) (int64, error) {
	var code, detail *string
	if cause != nil {
		d := cause.Error()
		detail = &d
		if c := mapperr.CodeOf(cause); c != "" {
			s := string(c)
			code = &s
		}
	}
	return db.insertError(sessionID, source, message, code, detail, occurredAt)
}

func (db *DB) insertError(sessionID *string, source, message string, code, detail *string, occurredAt time.Time) (int64, error) {
	var errorID int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO error_log (session_id, source, message, error_code, detail, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sessionID, source, message, code, detail, occurredAt)
		if err != nil {
			return fmt.Errorf("failed to insert error log: %w", err)
		}

		errorID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}

	return errorID, nil
}

// GetRecentErrors returns the newest errors first
func (db *DB) GetRecentErrors(limit int) ([]*ErrorLog, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, source, message, error_code, detail, occurred_at
		FROM error_log
		ORDER BY occurred_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var logs []*ErrorLog
	for rows.Next() {
		var (
			e                        ErrorLog
			sessionID, code, detail sql.NullString
		)
		if err := rows.Scan(&e.ID, &sessionID, &e.Source, &e.Message, &code, &detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan error log: %w", err)
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if code.Valid {
			e.ErrorCode = &code.String
		}
		if detail.Valid {
			e.Detail = &detail.String
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

// GetErrorStatsByCode counts errors per code since the given time
func (db *DB) GetErrorStatsByCode(since time.Time) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT COALESCE(error_code, ''), COUNT(*)
		FROM error_log
		WHERE occurred_at >= ?
		GROUP BY error_code
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query error stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var code string
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		stats[code] = count
	}
	return stats, rows.Err()
}

// DeleteOldErrors removes errors older than the given time
func (db *DB) DeleteOldErrors(olderThan time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM error_log WHERE occurred_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RecordErrors stores every error event published on bus against sessionID
// until the returned function is called.
func (db *DB) RecordErrors(bus events.EventBus, sessionID string) func() {
	id := bus.Subscribe(events.EventTypeError, func(e events.Event) {
		message, _ := e.Data["message"].(string)
		var code, detail *string
		if s, ok := e.Data["code"].(string); ok {
			code = &s
		}
		if s, ok := e.Data["error"].(string); ok {
			detail = &s
		}
		if _, err := db.insertError(&sessionID, e.Source, message, code, detail, e.Timestamp); err != nil {
			db.logger.Error("Failed to record error event", err)
		}
	})
	return func() { bus.Unsubscribe(id) }
}
