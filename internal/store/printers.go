package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func validatePrinter(p model.PrinterProfile) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.Validationf("name", "is required")
	}
	if p.PriceEUR.IsNegative() {
		return model.Validationf("price_eur", "must not be negative")
	}
	if p.ExpectedLifeHours <= 0 {
		return model.Validationf("expected_life_hours", "must be greater than 0")
	}
	return nil
}

// CreatePrinter inserts a new printer profile.
func (s *Store) CreatePrinter(ctx context.Context, p model.PrinterProfile) (model.PrinterProfile, error) {
	if err := validatePrinter(p); err != nil {
		return model.PrinterProfile{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO printer_profiles (name, price_eur, expected_life_hours)
		VALUES (?, ?, ?)
	`, p.Name, p.PriceEUR, p.ExpectedLifeHours)
	if err != nil {
		return model.PrinterProfile{}, fmt.Errorf("insert printer profile: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.PrinterProfile{}, fmt.Errorf("read printer id: %w", err)
	}

	return s.GetPrinter(ctx, id)
}

// GetPrinter returns one printer profile by id.
func (s *Store) GetPrinter(ctx context.Context, id int64) (model.PrinterProfile, error) {
	var p model.PrinterProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_eur, expected_life_hours, created_at, updated_at
		FROM printer_profiles
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.PriceEUR, &p.ExpectedLifeHours, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrinterProfile{}, model.NotFound("printer", id)
	}
	if err != nil {
		return model.PrinterProfile{}, fmt.Errorf("query printer profile: %w", err)
	}
	return p, nil
}

// ListPrinters returns all printer profiles, newest first.
func (s *Store) ListPrinters(ctx context.Context) ([]model.PrinterProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_eur, expected_life_hours, created_at, updated_at
		FROM printer_profiles
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query printer profiles: %w", err)
	}
	defer rows.Close()

	printers := make([]model.PrinterProfile, 0)
	for rows.Next() {
		var p model.PrinterProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceEUR, &p.ExpectedLifeHours, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan printer profile: %w", err)
		}
		printers = append(printers, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate printer profiles: %w", err)
	}

	return printers, nil
}

// UpdatePrinter replaces a printer profile's fields.
func (s *Store) UpdatePrinter(ctx context.Context, p model.PrinterProfile) (model.PrinterProfile, error) {
	if err := validatePrinter(p); err != nil {
		return model.PrinterProfile{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE printer_profiles
		SET name = ?, price_eur = ?, expected_life_hours = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.PriceEUR, p.ExpectedLifeHours, p.ID)
	if err != nil {
		return model.PrinterProfile{}, fmt.Errorf("update printer profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.PrinterProfile{}, fmt.Errorf("update printer profile: %w", err)
	}
	if affected == 0 {
		return model.PrinterProfile{}, model.NotFound("printer", p.ID)
	}

	return s.GetPrinter(ctx, p.ID)
}

// DeletePrinter removes a printer profile. Rejected while any job assignment
// still references it.
func (s *Store) DeletePrinter(ctx context.Context, id int64) error {
	var referenced bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM print_job_printers WHERE printer_id = ?)
	`, id).Scan(&referenced); err != nil {
		return fmt.Errorf("check printer references: %w", err)
	}
	if referenced {
		return fmt.Errorf("printer %d: %w", id, model.ErrInUse)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM printer_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete printer profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete printer profile: %w", err)
	}
	if affected == 0 {
		return model.NotFound("printer", id)
	}
	return nil
}
