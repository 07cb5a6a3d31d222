package database

import (
	"database/sql"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jordanella.com/screen-mapper/internal/capture"
	mapperr "jordanella.com/screen-mapper/internal/errors"
	"jordanella.com/screen-mapper/internal/events"
	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "nested", "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// Running again is a no-op
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to re-run migrations: %v", err)
	}

	version, err := db.GetVersion()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), version)
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	for _, table := range []string{"sessions", "rule_results", "error_log"} {
		if n, ok := stats[table]; !ok || n != 0 {
			t.Errorf("Expected empty %s table, got %v (present=%v)", table, n, ok)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	started := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	rec, err := db.BeginSession("libs/hud.go", "captures/03 05_10:00:00", 500*time.Millisecond, started)
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}
	if len(rec.SessionID()) != 36 {
		t.Errorf("Expected a UUID session id, got %q", rec.SessionID())
	}

	s, err := db.GetSession(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if !s.Running() || s.PeriodMs != 500 || s.Library != "libs/hud.go" {
		t.Errorf("Unexpected session: %+v", s)
	}
	if !s.StartedAt.Equal(started) {
		t.Errorf("Expected start %v, got %v", started, s.StartedAt)
	}

	if err := rec.SetFolder("captures/03 05_10:00:01"); err != nil {
		t.Fatalf("Failed to set folder: %v", err)
	}

	stopped := started.Add(time.Minute)
	if err := rec.End(stopped, 120); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}

	s, err = db.GetSession(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if s.Running() || s.Ticks != 120 || !s.StoppedAt.Equal(stopped) || s.Folder != "captures/03 05_10:00:01" {
		t.Errorf("Session not ended correctly: %+v", s)
	}

	if err := db.EndSession("no-such-session", stopped, 1); err == nil {
		t.Error("Expected error ending unknown session")
	}
	if _, err := db.GetSession("no-such-session"); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestListSessions(t *testing.T) {
	db := openTestDB(t)

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := db.BeginSession("", "folder", time.Second, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("Failed to begin session: %v", err)
		}
		ids = append(ids, rec.SessionID())
	}

	sessions, err := db.ListSessions(2)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != ids[2] || sessions[1].ID != ids[1] {
		t.Errorf("Sessions not newest first")
	}

	all, err := db.ListSessions(0)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 sessions, got %d", len(all))
	}
}

func sampleReport(tick int, at time.Time) *capture.Report {
	return &capture.Report{
		Tick:       tick,
		CapturedAt: at,
		FramePath:  "frame.png",
		Results: []capture.RuleResult{
			{Name: "title", Kind: library.KindText, Value: extract.Result{Kind: library.KindText, Text: "Level 3"}},
			{Name: "score", Kind: library.KindNumber, Value: extract.Result{Kind: library.KindNumber, Number: 42}},
			{Name: "logo", Kind: library.KindTemplateMatch, Value: extract.Result{
				Kind: library.KindTemplateMatch, Matches: []image.Point{{10, 20}, {30, 40}},
			}},
			{Name: "gold", Kind: library.KindNumber, Err: mapperr.NewNotANumber("12O")},
		},
	}
}

func TestRecorderStoresReports(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	rec, err := db.BeginSession("hud.go", "folder", time.Second, base)
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}

	var sink capture.Sink = rec
	for tick := 1; tick <= 2; tick++ {
		if err := sink.Consume(sampleReport(tick, base.Add(time.Duration(tick)*time.Second))); err != nil {
			t.Fatalf("Failed to consume report: %v", err)
		}
	}

	results, err := db.ResultsForSession(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to get results: %v", err)
	}
	if len(results) != 8 {
		t.Fatalf("Expected 8 results, got %d", len(results))
	}

	first := results[:4]
	if first[0].RuleName != "title" || first[0].Text == nil || *first[0].Text != "Level 3" {
		t.Errorf("Unexpected text result: %+v", first[0])
	}
	if first[1].Number == nil || *first[1].Number != 42 {
		t.Errorf("Unexpected number result: %+v", first[1])
	}
	if len(first[2].Matches) != 2 || first[2].Matches[1] != image.Pt(30, 40) {
		t.Errorf("Unexpected matches: %v", first[2].Matches)
	}
	if !first[3].Failed() || first[3].ErrorCode == nil || *first[3].ErrorCode != "NOT_A_NUMBER" {
		t.Errorf("Unexpected failure: %+v", first[3])
	}
	if first[3].Number != nil {
		t.Error("Failed rule should not store a value")
	}
	if results[4].Tick != 2 {
		t.Errorf("Results not in tick order")
	}

	counts, err := db.RuleFailureCounts(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to count failures: %v", err)
	}
	if counts["gold"] != 2 || len(counts) != 1 {
		t.Errorf("Unexpected failure counts: %v", counts)
	}
}

func TestRuleHistory(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		rec, err := db.BeginSession("hud.go", "folder", time.Second, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("Failed to begin session: %v", err)
		}
		if err := rec.Consume(sampleReport(1, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Failed to consume report: %v", err)
		}
	}

	history, err := db.RuleHistory("score", 0)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(history))
	}
	if !history[0].CapturedAt.After(history[1].CapturedAt) {
		t.Error("History not newest first")
	}

	limited, err := db.RuleHistory("score", 1)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 result, got %d", len(limited))
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	db := openTestDB(t)

	rec, err := db.BeginSession("hud.go", "folder", time.Second, time.Now())
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}
	if err := rec.Consume(sampleReport(1, time.Now())); err != nil {
		t.Fatalf("Failed to consume report: %v", err)
	}

	if err := db.DeleteSession(rec.SessionID()); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}

	results, err := db.ResultsForSession(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to get results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected results to be deleted, got %d", len(results))
	}
}

func TestErrorLogging(t *testing.T) {
	db := openTestDB(t)
	now := time.Now()

	if _, err := db.LogError(nil, "cli", "plain failure", errors.New("boom"), now.Add(-time.Hour)); err != nil {
		t.Fatalf("Failed to log error: %v", err)
	}

	rec, err := db.BeginSession("", "folder", time.Second, now)
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}
	id := rec.SessionID()

	bus := events.NewEventBus(8)
	unsubscribe := db.RecordErrors(bus, id)
	bus.Publish(events.NewErrorEvent("capture", "Frame capture failed", mapperr.NewCaptureFailed(errors.New("asleep"))))
	bus.Stop()
	unsubscribe()

	logs, err := db.GetRecentErrors(10)
	if err != nil {
		t.Fatalf("Failed to get errors: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(logs))
	}

	latest := logs[0]
	if latest.SessionID == nil || *latest.SessionID != id {
		t.Errorf("Expected error bound to session %s", id)
	}
	if latest.ErrorCode == nil || *latest.ErrorCode != "CAPTURE_FAILED" {
		t.Errorf("Unexpected error code: %v", latest.ErrorCode)
	}
	if logs[1].SessionID != nil || logs[1].ErrorCode != nil {
		t.Errorf("Unexpected plain error: %+v", logs[1])
	}

	stats, err := db.GetErrorStatsByCode(now.Add(-2 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats["CAPTURE_FAILED"] != 1 || stats[""] != 1 {
		t.Errorf("Unexpected stats: %v", stats)
	}

	deleted, err := db.DeleteOldErrors(now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Failed to delete errors: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted error, got %d", deleted)
	}
}

func TestTransactions(t *testing.T) {
	db := openTestDB(t)

	rec, err := db.BeginSession("", "folder", time.Second, time.Now())
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}

	err = db.ExecTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE sessions SET ticks = 99 WHERE id = ?`, rec.SessionID()); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("Expected transaction error")
	}

	s, err := db.GetSession(rec.SessionID())
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if s.Ticks != 0 {
		t.Errorf("Transaction was not rolled back, ticks = %d", s.Ticks)
	}
}

func TestBackupAndVacuum(t *testing.T) {
	db := openTestDB(t)

	rec, err := db.BeginSession("hud.go", "folder", time.Second, time.Now())
	if err != nil {
		t.Fatalf("Failed to begin session: %v", err)
	}
	if err := rec.End(time.Now(), 3); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}
	if err := db.Vacuum(); err != nil {
		t.Fatalf("Failed to vacuum: %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "backups", "results.db")
	if err := db.Backup(backupPath); err != nil {
		t.Fatalf("Failed to back up: %v", err)
	}
	if err := db.Backup(backupPath); err == nil {
		t.Error("Expected an existing backup to be refused")
	}

	backup, err := Open(backupPath)
	if err != nil {
		t.Fatalf("Failed to open backup: %v", err)
	}
	defer backup.Close()

	sessions, err := backup.ListSessions(0)
	if err != nil {
		t.Fatalf("Failed to list backed up sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != rec.SessionID() || sessions[0].Ticks != 3 {
		t.Errorf("Unexpected backed up sessions: %+v", sessions)
	}
}
