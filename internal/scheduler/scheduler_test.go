package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	// One connection so the in-memory database is shared by all goroutines.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE printer_profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			price_eur TEXT NOT NULL DEFAULT '0',
			expected_life_hours REAL NOT NULL
		);
		CREATE TABLE print_jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL DEFAULT '',
			packaging_cost_eur TEXT NOT NULL DEFAULT '0',
			status TEXT NOT NULL DEFAULT 'pending',
			started_at DATETIME,
			estimated_completion_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE print_job_printers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			print_job_id INTEGER NOT NULL REFERENCES print_jobs(id),
			printer_id INTEGER NOT NULL REFERENCES printer_profiles(id),
			printers_qty INTEGER NOT NULL,
			hours_each REAL NOT NULL,
			UNIQUE (print_job_id, printer_id)
		);
		CREATE TABLE printing_slots (
			printer_id INTEGER PRIMARY KEY REFERENCES printer_profiles(id),
			print_job_id INTEGER NOT NULL REFERENCES print_jobs(id)
		);
	`)
	if err != nil {
		t.Fatalf("failed creating scheduler schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func seedPrinter(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	res, err := db.Exec(`
		INSERT INTO printer_profiles (name, price_eur, expected_life_hours) VALUES (?, '500', 2000)
	`, name)
	if err != nil {
		t.Fatalf("failed to seed printer: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read printer id: %v", err)
	}
	return id
}

func seedJob(t *testing.T, db *sql.DB, status model.JobStatus, printers ...int64) int64 {
	t.Helper()
	res, err := db.Exec(`INSERT INTO print_jobs (status) VALUES (?)`, status)
	if err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read job id: %v", err)
	}
	for _, printerID := range printers {
		if _, err := db.Exec(`
			INSERT INTO print_job_printers (print_job_id, printer_id, printers_qty, hours_each)
			VALUES (?, ?, 1, 2)
		`, jobID, printerID); err != nil {
			t.Fatalf("failed to seed printer assignment: %v", err)
		}
	}
	return jobID
}

func jobState(t *testing.T, db *sql.DB, jobID int64) (model.JobStatus, sql.NullTime, sql.NullTime) {
	t.Helper()
	var (
		status    model.JobStatus
		startedAt sql.NullTime
		estimated sql.NullTime
	)
	err := db.QueryRow(`
		SELECT status, started_at, estimated_completion_at FROM print_jobs WHERE id = ?
	`, jobID).Scan(&status, &startedAt, &estimated)
	if err != nil {
		t.Fatalf("failed to read job state: %v", err)
	}
	return status, startedAt, estimated
}

func TestStartJobSetsTimestamps(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	s := NewWithClock(db, func() time.Time { return now })
	ctx := context.Background()

	printerA := seedPrinter(t, db, "MK4 #1")
	printerB := seedPrinter(t, db, "MK4 #2")
	jobID := seedJob(t, db, model.StatusPending, printerA, printerB) // 2 printers x 1 x 2h

	if err := s.StartJob(ctx, jobID); err != nil {
		t.Fatalf("StartJob returned error: %v", err)
	}

	status, startedAt, estimated := jobState(t, db, jobID)
	if status != model.StatusPrinting {
		t.Fatalf("status = %s, want printing", status)
	}
	if !startedAt.Valid || !startedAt.Time.Equal(now) {
		t.Fatalf("started_at = %v, want %v", startedAt, now)
	}
	wantEnd := now.Add(4 * time.Hour)
	if !estimated.Valid || !estimated.Time.Equal(wantEnd) {
		t.Fatalf("estimated_completion_at = %v, want %v", estimated, wantEnd)
	}
}

func TestStartJobRejectsNonPendingStates(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	printer := seedPrinter(t, db, "Ender 3")

	for _, status := range []model.JobStatus{model.StatusPrinting, model.StatusCompleted, model.StatusFailed} {
		jobID := seedJob(t, db, status, printer)
		err := s.StartJob(ctx, jobID)
		var serr *model.InvalidStateError
		if !errors.As(err, &serr) {
			t.Fatalf("StartJob on %s job: expected InvalidStateError, got %v", status, err)
		}
		if serr.Status != status {
			t.Fatalf("InvalidStateError.Status = %s, want %s", serr.Status, status)
		}
	}

	if err := s.StartJob(ctx, 9999); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("StartJob on unknown job: expected ErrNotFound, got %v", err)
	}
}

func TestStartJobConflictIsAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()

	contested := seedPrinter(t, db, "XL")
	free := seedPrinter(t, db, "Mini")

	holder := seedJob(t, db, model.StatusPending, contested)
	if err := s.StartJob(ctx, holder); err != nil {
		t.Fatalf("StartJob(holder) returned error: %v", err)
	}

	// Second job wants the free printer first, then the contested one: the
	// conflict must reject the start without leaving the free printer claimed.
	second := seedJob(t, db, model.StatusPending, free, contested)
	err := s.StartJob(ctx, second)
	var cerr *model.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.PrinterID != contested || cerr.PrinterName != "XL" || cerr.HeldByJobID != holder {
		t.Fatalf("unexpected conflict detail: %+v", cerr)
	}

	status, startedAt, _ := jobState(t, db, second)
	if status != model.StatusPending || startedAt.Valid {
		t.Fatalf("rejected job was partially started: status=%s started_at=%v", status, startedAt)
	}

	var slots int
	if err := db.QueryRow(`SELECT COUNT(*) FROM printing_slots`).Scan(&slots); err != nil {
		t.Fatalf("failed to count slots: %v", err)
	}
	if slots != 1 {
		t.Fatalf("expected only the holder's slot, got %d slots", slots)
	}
}

func TestFinishingJobFreesPrinter(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()

	printer := seedPrinter(t, db, "MK3S")
	first := seedJob(t, db, model.StatusPending, printer)
	second := seedJob(t, db, model.StatusPending, printer)

	if err := s.StartJob(ctx, first); err != nil {
		t.Fatalf("StartJob(first) returned error: %v", err)
	}
	var cerr *model.ConflictError
	if err := s.StartJob(ctx, second); !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError while first job is printing, got %v", err)
	}

	if err := s.CompleteJob(ctx, first); err != nil {
		t.Fatalf("CompleteJob returned error: %v", err)
	}
	if err := s.StartJob(ctx, second); err != nil {
		t.Fatalf("StartJob(second) after completion returned error: %v", err)
	}

	if err := s.FailJob(ctx, second); err != nil {
		t.Fatalf("FailJob returned error: %v", err)
	}
	var slots int
	if err := db.QueryRow(`SELECT COUNT(*) FROM printing_slots`).Scan(&slots); err != nil {
		t.Fatalf("failed to count slots: %v", err)
	}
	if slots != 0 {
		t.Fatalf("expected no held slots after terminal transitions, got %d", slots)
	}
}

func TestFinishRequiresPrintingState(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()
	jobID := seedJob(t, db, model.StatusPending)

	var serr *model.InvalidStateError
	if err := s.CompleteJob(ctx, jobID); !errors.As(err, &serr) {
		t.Fatalf("CompleteJob on pending job: expected InvalidStateError, got %v", err)
	}
	if err := s.FailJob(ctx, jobID); !errors.As(err, &serr) {
		t.Fatalf("FailJob on pending job: expected InvalidStateError, got %v", err)
	}
	if err := s.CompleteJob(ctx, 4242); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("CompleteJob on unknown job: expected ErrNotFound, got %v", err)
	}
}

func TestSlotPrimaryKeyViolationIsDetected(t *testing.T) {
	db := newTestDB(t)
	printer := seedPrinter(t, db, "MK4")
	jobID := seedJob(t, db, model.StatusPending, printer)

	if _, err := db.Exec(`INSERT INTO printing_slots (printer_id, print_job_id) VALUES (?, ?)`, printer, jobID); err != nil {
		t.Fatalf("first slot insert returned error: %v", err)
	}
	_, err := db.Exec(`INSERT INTO printing_slots (printer_id, print_job_id) VALUES (?, ?)`, printer, jobID)
	if err == nil {
		t.Fatal("expected the duplicate slot insert to fail")
	}
	if !isConstraintViolation(err) {
		t.Fatalf("duplicate slot error not recognized as a constraint violation: %v", err)
	}
	if isConstraintViolation(errors.New("busy")) {
		t.Fatal("arbitrary errors must not count as constraint violations")
	}
}

func TestConcurrentStartsExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	s := New(db)
	ctx := context.Background()

	printer := seedPrinter(t, db, "contended")
	jobA := seedJob(t, db, model.StatusPending, printer)
	jobB := seedJob(t, db, model.StatusPending, printer)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, jobID := range []int64{jobA, jobB} {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			results <- s.StartJob(ctx, id)
		}(jobID)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var cerr *model.ConflictError
			if !errors.As(err, &cerr) {
				t.Fatalf("unexpected error from concurrent start: %v", err)
			}
			conflicts++
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one success and one conflict, got %d successes, %d conflicts", successes, conflicts)
	}
}
