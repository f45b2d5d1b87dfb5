// Package scheduler owns the print-job lifecycle: pending → printing via
// StartJob, printing → completed/failed via CompleteJob/FailJob. The printer
// conflict invariant (at most one printing job per printer) is held by the
// printing_slots table, written and cleared here inside one transaction with
// the status change.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

// Scheduler drives print-job state transitions against the shared store.
type Scheduler struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Scheduler {
	return &Scheduler{db: db, now: time.Now}
}

// NewWithClock is used by tests that need a deterministic clock.
func NewWithClock(db *sql.DB, now func() time.Time) *Scheduler {
	return &Scheduler{db: db, now: now}
}

type assignment struct {
	printerID   int64
	printerName string
	printersQty int64
	hoursEach   float64
}

// StartJob transitions a pending job to printing. The conflict check and the
// state change run in one write transaction (taken immediately, see db.Open),
// so two concurrent starts for the same printer serialize: one succeeds, the
// other sees the committed slot and gets a ConflictError. No partial start: a
// conflict on any assigned printer rejects the whole operation.
func (s *Scheduler) StartJob(ctx context.Context, jobID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin start-job transaction: %w", err)
	}
	defer tx.Rollback()

	var status model.JobStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM print_jobs WHERE id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("print job", jobID)
	}
	if err != nil {
		return fmt.Errorf("query print job status: %w", err)
	}
	if status != model.StatusPending {
		return &model.InvalidStateError{JobID: jobID, Status: status, Wanted: model.StatusPending}
	}

	assignments, err := s.assignmentsTx(ctx, tx, jobID)
	if err != nil {
		return err
	}

	for _, a := range assignments {
		var holder int64
		err := tx.QueryRowContext(ctx, `
			SELECT print_job_id FROM printing_slots WHERE printer_id = ?
		`, a.printerID).Scan(&holder)
		if err == nil {
			return &model.ConflictError{PrinterID: a.printerID, PrinterName: a.printerName, HeldByJobID: holder}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check printing slot: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO printing_slots (printer_id, print_job_id) VALUES (?, ?)
		`, a.printerID, jobID); err != nil {
			// The primary key is the storage-level backstop for the same invariant.
			if isConstraintViolation(err) {
				var holder int64
				_ = tx.QueryRowContext(ctx, `
					SELECT print_job_id FROM printing_slots WHERE printer_id = ?
				`, a.printerID).Scan(&holder)
				return &model.ConflictError{PrinterID: a.printerID, PrinterName: a.printerName, HeldByJobID: holder}
			}
			return fmt.Errorf("claim printing slot: %w", err)
		}
	}

	totalHrs := 0.0
	for _, a := range assignments {
		totalHrs += a.hoursEach * float64(a.printersQty)
	}

	startedAt := s.now().UTC()
	estimated := startedAt.Add(time.Duration(totalHrs * float64(time.Hour)))

	if _, err := tx.ExecContext(ctx, `
		UPDATE print_jobs
		SET status = ?, started_at = ?, estimated_completion_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, model.StatusPrinting, startedAt, estimated, jobID); err != nil {
		return fmt.Errorf("mark job printing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit start-job transaction: %w", err)
	}
	return nil
}

// CompleteJob transitions a printing job to completed and frees its printers.
func (s *Scheduler) CompleteJob(ctx context.Context, jobID int64) error {
	return s.finishJob(ctx, jobID, model.StatusCompleted)
}

// FailJob transitions a printing job to failed and frees its printers.
func (s *Scheduler) FailJob(ctx context.Context, jobID int64) error {
	return s.finishJob(ctx, jobID, model.StatusFailed)
}

// finishJob applies a terminal transition. Leaving the printing status and
// releasing the printing slots happen in the same transaction, so the printer
// is free for the next StartJob the instant the new status is visible.
func (s *Scheduler) finishJob(ctx context.Context, jobID int64, terminal model.JobStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish-job transaction: %w", err)
	}
	defer tx.Rollback()

	var status model.JobStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM print_jobs WHERE id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("print job", jobID)
	}
	if err != nil {
		return fmt.Errorf("query print job status: %w", err)
	}
	if status != model.StatusPrinting {
		return &model.InvalidStateError{JobID: jobID, Status: status, Wanted: model.StatusPrinting}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM printing_slots WHERE print_job_id = ?`, jobID); err != nil {
		return fmt.Errorf("release printing slots: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE print_jobs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, terminal, jobID); err != nil {
		return fmt.Errorf("mark job %s: %w", terminal, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish-job transaction: %w", err)
	}
	return nil
}

// isConstraintViolation matches the driver's typed error for any SQLITE_CONSTRAINT
// result, extended codes included.
func isConstraintViolation(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func (s *Scheduler) assignmentsTx(ctx context.Context, tx *sql.Tx, jobID int64) ([]assignment, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.printer_id, p.name, a.printers_qty, a.hours_each
		FROM print_job_printers a
		JOIN printer_profiles p ON p.id = a.printer_id
		WHERE a.print_job_id = ?
		ORDER BY a.id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query printer assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]assignment, 0)
	for rows.Next() {
		var a assignment
		if err := rows.Scan(&a.printerID, &a.printerName, &a.printersQty, &a.hoursEach); err != nil {
			return nil, fmt.Errorf("scan printer assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate printer assignments: %w", err)
	}

	return assignments, nil
}
