package database

import (
	"image"
	"time"
)

// Session is one recorded capture session
type Session struct {
	ID        string     `db:"id"`
	Library   string     `db:"library"` // artifact path, empty for plain recordings
	Folder    string     `db:"folder"`
	PeriodMs  int64      `db:"period_ms"`
	StartedAt time.Time  `db:"started_at"`
	StoppedAt *time.Time `db:"stopped_at"`
	Ticks     int        `db:"ticks"`
}

// Running reports whether the session has not been ended
func (s *Session) Running() bool {
	return s.StoppedAt == nil
}

// RuleResult is one rule's outcome on one tick. Text, Number and Matches are
// set according to Kind; Error is set instead when the rule failed.
type RuleResult struct {
	ID         int64         `db:"id"`
	SessionID  string        `db:"session_id"`
	Tick       int           `db:"tick"`
	CapturedAt time.Time     `db:"captured_at"`
	FramePath  string        `db:"frame_path"`
	RuleName   string        `db:"rule_name"`
	Kind       string        `db:"kind"`
	Text       *string       `db:"text"`
	Number     *float64      `db:"number"`
	Matches    []image.Point `db:"matches"`
	Error      *string       `db:"error"`
	ErrorCode  *string       `db:"error_code"`
}

// Failed reports whether the rule failed on this tick
func (r *RuleResult) Failed() bool {
	return r.Error != nil
}

// ErrorLog is an error raised while a session ran
type ErrorLog struct {
	ID         int64     `db:"id"`
	SessionID  *string   `db:"session_id"`
	Source     string    `db:"source"`
	Message    string    `db:"message"`
	ErrorCode  *string   `db:"error_code"`
	Detail     *string   `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}
