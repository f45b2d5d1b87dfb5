package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func validateJob(j model.PrintJob) error {
	if j.PackagingCostEUR.IsNegative() {
		return model.Validationf("packaging_cost_eur", "must not be negative")
	}
	if len(j.Products) == 0 {
		return model.Validationf("products", "at least one product line is required")
	}
	for _, line := range j.Products {
		if line.ProductID <= 0 {
			return model.Validationf("product_id", "is required")
		}
		if line.ItemsQty < 1 {
			return model.Validationf("items_qty", "must be at least 1")
		}
	}
	seen := make(map[int64]bool, len(j.Printers))
	for _, a := range j.Printers {
		if a.PrinterID <= 0 {
			return model.Validationf("printer_id", "is required")
		}
		if a.PrintersQty < 1 {
			return model.Validationf("printers_qty", "must be at least 1")
		}
		if a.HoursEach < 0 {
			return model.Validationf("hours_each", "must not be negative")
		}
		if seen[a.PrinterID] {
			return model.Validationf("printer_id", "printer %d appears more than once in the same job", a.PrinterID)
		}
		seen[a.PrinterID] = true
	}
	return nil
}

// CreateJob inserts a print job in pending state with its product and printer
// line items.
func (s *Store) CreateJob(ctx context.Context, j model.PrintJob) (model.PrintJob, error) {
	if err := validateJob(j); err != nil {
		return model.PrintJob{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("begin job transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO print_jobs (name, packaging_cost_eur, status)
		VALUES (?, ?, ?)
	`, j.Name, j.PackagingCostEUR, model.StatusPending)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("insert print job: %w", err)
	}
	jobID, err := res.LastInsertId()
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("read print job id: %w", err)
	}

	for _, line := range j.Products {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, line.ProductID).Scan(&exists); err != nil {
			return model.PrintJob{}, fmt.Errorf("check product existence: %w", err)
		}
		if !exists {
			return model.PrintJob{}, model.NotFound("product", line.ProductID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO print_job_products (print_job_id, product_id, items_qty)
			VALUES (?, ?, ?)
		`, jobID, line.ProductID, line.ItemsQty); err != nil {
			return model.PrintJob{}, fmt.Errorf("insert job product line: %w", err)
		}
	}

	for _, a := range j.Printers {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM printer_profiles WHERE id = ?)`, a.PrinterID).Scan(&exists); err != nil {
			return model.PrintJob{}, fmt.Errorf("check printer existence: %w", err)
		}
		if !exists {
			return model.PrintJob{}, model.NotFound("printer", a.PrinterID)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO print_job_printers (print_job_id, printer_id, printers_qty, hours_each)
			VALUES (?, ?, ?, ?)
		`, jobID, a.PrinterID, a.PrintersQty, a.HoursEach); err != nil {
			return model.PrintJob{}, fmt.Errorf("insert job printer assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.PrintJob{}, fmt.Errorf("commit job transaction: %w", err)
	}

	return s.GetJob(ctx, jobID)
}

// GetJob loads a full job aggregate: job row, product lines with their product
// aggregates (for costing), and printer assignments with profiles.
func (s *Store) GetJob(ctx context.Context, id int64) (model.PrintJob, error) {
	var (
		j         model.PrintJob
		startedAt sql.NullTime
		estimated sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, packaging_cost_eur, status, started_at, estimated_completion_at, created_at, updated_at
		FROM print_jobs
		WHERE id = ?
	`, id).Scan(&j.ID, &j.Name, &j.PackagingCostEUR, &j.Status, &startedAt, &estimated, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrintJob{}, model.NotFound("print job", id)
	}
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("query print job: %w", err)
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if estimated.Valid {
		j.EstimatedCompletionAt = &estimated.Time
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, items_qty
		FROM print_job_products
		WHERE print_job_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("query job product lines: %w", err)
	}
	defer rows.Close()

	j.Products = make([]model.JobProduct, 0)
	for rows.Next() {
		var line model.JobProduct
		if err := rows.Scan(&line.ProductID, &line.ItemsQty); err != nil {
			return model.PrintJob{}, fmt.Errorf("scan job product line: %w", err)
		}
		j.Products = append(j.Products, line)
	}
	if err := rows.Err(); err != nil {
		return model.PrintJob{}, fmt.Errorf("iterate job product lines: %w", err)
	}

	for i := range j.Products {
		j.Products[i].Product, err = s.GetProduct(ctx, j.Products[i].ProductID)
		if err != nil {
			return model.PrintJob{}, err
		}
	}

	printerRows, err := s.db.QueryContext(ctx, `
		SELECT printer_id, printers_qty, hours_each
		FROM print_job_printers
		WHERE print_job_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return model.PrintJob{}, fmt.Errorf("query job printer assignments: %w", err)
	}
	defer printerRows.Close()

	j.Printers = make([]model.JobPrinter, 0)
	for printerRows.Next() {
		var a model.JobPrinter
		if err := printerRows.Scan(&a.PrinterID, &a.PrintersQty, &a.HoursEach); err != nil {
			return model.PrintJob{}, fmt.Errorf("scan job printer assignment: %w", err)
		}
		j.Printers = append(j.Printers, a)
	}
	if err := printerRows.Err(); err != nil {
		return model.PrintJob{}, fmt.Errorf("iterate job printer assignments: %w", err)
	}

	for i := range j.Printers {
		j.Printers[i].Printer, err = s.GetPrinter(ctx, j.Printers[i].PrinterID)
		if err != nil {
			return model.PrintJob{}, err
		}
	}

	return j, nil
}

// ListJobs returns all job aggregates, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]model.PrintJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM print_jobs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query print jobs: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan print job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate print jobs: %w", err)
	}

	jobs := make([]model.PrintJob, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// DeleteJob removes a job and its line items. A job that is actively printing
// must be completed or failed first.
func (s *Store) DeleteJob(ctx context.Context, id int64) error {
	var status model.JobStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM print_jobs WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NotFound("print job", id)
	}
	if err != nil {
		return fmt.Errorf("query print job status: %w", err)
	}
	if status == model.StatusPrinting {
		return model.Validationf("status", "cannot delete a job while it is printing")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM print_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete print job: %w", err)
	}
	return nil
}
