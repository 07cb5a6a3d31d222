package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"jordanella.com/screen-mapper/internal/capture"
	mapperr "jordanella.com/screen-mapper/internal/errors"
	"jordanella.com/screen-mapper/internal/library"
)

// Recorder stores the reports of one session. It implements capture.Sink.
type Recorder struct {
	db        *DB
	sessionID string
}

var _ capture.Sink = (*Recorder)(nil)

// SessionID returns the ID of the session being recorded
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Consume writes every result of the report in one transaction
func (r *Recorder) Consume(report *capture.Report) error {
	return r.db.ExecTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO rule_results (
				session_id, tick, captured_at, frame_path, rule_name, kind,
				text, number, matches, error, error_code
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare result insert: %w", err)
		}
		defer stmt.Close()

		for _, res := range report.Results {
			var (
				text, matches, errText, errCode sql.NullString
				number                          sql.NullFloat64
			)

			if res.Err != nil {
				errText = sql.NullString{String: res.Err.Error(), Valid: true}
				if code := mapperr.CodeOf(res.Err); code != "" {
					errCode = sql.NullString{String: string(code), Valid: true}
				}
			} else {
				switch res.Kind {
				case library.KindText:
					text = sql.NullString{String: res.Value.Text, Valid: true}
				case library.KindNumber:
					number = sql.NullFloat64{Float64: res.Value.Number, Valid: true}
				case library.KindTemplateMatch:
					encoded, err := encodeMatches(res.Value.Matches)
					if err != nil {
						return err
					}
					matches = sql.NullString{String: encoded, Valid: true}
				}
			}

			_, err := stmt.Exec(r.sessionID, report.Tick, report.CapturedAt, report.FramePath,
				res.Name, res.Kind.String(), text, number, matches, errText, errCode)
			if err != nil {
				return fmt.Errorf("failed to insert result for %s: %w", res.Name, err)
			}
		}
		return nil
	})
}

// End marks the recorded session as stopped
func (r *Recorder) End(stoppedAt time.Time, ticks int) error {
	return r.db.EndSession(r.sessionID, stoppedAt, ticks)
}

// SetFolder records where the session's frames are written. The folder is only
// known once the capture session has started.
func (r *Recorder) SetFolder(folder string) error {
	return r.db.ExecTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE sessions SET folder = ? WHERE id = ?`, folder, r.sessionID); err != nil {
			return fmt.Errorf("failed to set session folder: %w", err)
		}
		return nil
	})
}

// ResultsForSession returns a session's results in tick order, rules in evaluation order
func (db *DB) ResultsForSession(sessionID string) ([]*RuleResult, error) {
	rows, err := db.conn.Query(`
		SELECT id, session_id, tick, captured_at, frame_path, rule_name, kind,
			text, number, matches, error, error_code
		FROM rule_results
		WHERE session_id = ?
		ORDER BY tick, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// RuleHistory returns the newest results of a rule across sessions. limit <= 0 returns all.
func (db *DB) RuleHistory(ruleName string, limit int) ([]*RuleResult, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.Query(`
		SELECT id, session_id, tick, captured_at, frame_path, rule_name, kind,
			text, number, matches, error, error_code
		FROM rule_results
		WHERE rule_name = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ?
	`, ruleName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule history: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// RuleFailureCounts returns failures per rule for a session
func (db *DB) RuleFailureCounts(sessionID string) (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT rule_name, COUNT(*)
		FROM rule_results
		WHERE session_id = ? AND error IS NOT NULL
		GROUP BY rule_name
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count failures: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

func scanResults(rows *sql.Rows) ([]*RuleResult, error) {
	var results []*RuleResult
	for rows.Next() {
		var (
			r                               RuleResult
			text, matches, errText, errCode sql.NullString
			number                          sql.NullFloat64
		)
		err := rows.Scan(&r.ID, &r.SessionID, &r.Tick, &r.CapturedAt, &r.FramePath,
			&r.RuleName, &r.Kind, &text, &number, &matches, &errText, &errCode)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		if text.Valid {
			r.Text = &text.String
		}
		if number.Valid {
			r.Number = &number.Float64
		}
		if matches.Valid {
			if r.Matches, err = decodeMatches(matches.String); err != nil {
				return nil, err
			}
		}
		if errText.Valid {
			r.Error = &errText.String
		}
		if errCode.Valid {
			r.ErrorCode = &errCode.String
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

// Matches are stored as [[x, y], ...]
func encodeMatches(points []image.Point) (string, error) {
	pairs := make([][2]int, len(points))
	for i, p := range points {
		pairs[i] = [2]int{p.X, p.Y}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("failed to encode matches: %w", err)
	}
	return string(data), nil
}

func decodeMatches(s string) ([]image.Point, error) {
	var pairs [][2]int
	if err := json.Unmarshal([]byte(s), &pairs); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	points := make([]image.Point, len(pairs))
	for i, p := range pairs {
		points[i] = image.Pt(p[0], p[1])
	}
	return points, nil
}
