package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func validateFilament(f model.Filament) error {
	if strings.TrimSpace(f.Brand) == "" {
		return model.Validationf("brand", "is required")
	}
	if strings.TrimSpace(f.Material) == "" {
		return model.Validationf("material", "is required")
	}
	if strings.TrimSpace(f.Color) == "" {
		return model.Validationf("color", "is required")
	}
	if f.MinStockKg != nil && *f.MinStockKg < 0 {
		return model.Validationf("min_stock_kg", "must not be negative")
	}
	return nil
}

// CreateFilament inserts a new filament with zero stock. Stock and price are
// only ever changed through ledger purchases.
func (s *Store) CreateFilament(ctx context.Context, f model.Filament) (model.Filament, error) {
	if err := validateFilament(f); err != nil {
		return model.Filament{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO filaments (brand, material, color, min_stock_kg)
		VALUES (?, ?, ?, ?)
	`, f.Brand, f.Material, f.Color, f.MinStockKg)
	if err != nil {
		return model.Filament{}, fmt.Errorf("insert filament: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Filament{}, fmt.Errorf("read filament id: %w", err)
	}

	return s.GetFilament(ctx, id)
}

// GetFilament returns one filament by id.
func (s *Store) GetFilament(ctx context.Context, id int64) (model.Filament, error) {
	var f model.Filament
	err := s.db.QueryRowContext(ctx, `
		SELECT id, brand, material, color, total_qty_kg, price_per_kg, min_stock_kg, created_at, updated_at
		FROM filaments
		WHERE id = ?
	`, id).Scan(&f.ID, &f.Brand, &f.Material, &f.Color, &f.TotalQtyKg, &f.PricePerKg, &f.MinStockKg, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Filament{}, model.NotFound("filament", id)
	}
	if err != nil {
		return model.Filament{}, fmt.Errorf("query filament: %w", err)
	}
	return f, nil
}

// ListFilaments returns all filaments, newest first.
func (s *Store) ListFilaments(ctx context.Context) ([]model.Filament, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand, material, color, total_qty_kg, price_per_kg, min_stock_kg, created_at, updated_at
		FROM filaments
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query filaments: %w", err)
	}
	defer rows.Close()

	filaments := make([]model.Filament, 0)
	for rows.Next() {
		var f model.Filament
		if err := rows.Scan(&f.ID, &f.Brand, &f.Material, &f.Color, &f.TotalQtyKg, &f.PricePerKg, &f.MinStockKg, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan filament: %w", err)
		}
		filaments = append(filaments, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filaments: %w", err)
	}

	return filaments, nil
}

// UpdateFilament changes the descriptive fields of a filament. Stock and price
// stay under the ledger's control.
func (s *Store) UpdateFilament(ctx context.Context, f model.Filament) (model.Filament, error) {
	if err := validateFilament(f); err != nil {
		return model.Filament{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE filaments
		SET
			brand = ?,
			material = ?,
			color = ?,
			min_stock_kg = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, f.Brand, f.Material, f.Color, f.MinStockKg, f.ID)
	if err != nil {
		return model.Filament{}, fmt.Errorf("update filament: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Filament{}, fmt.Errorf("update filament: %w", err)
	}
	if affected == 0 {
		return model.Filament{}, model.NotFound("filament", f.ID)
	}

	return s.GetFilament(ctx, f.ID)
}

// DeleteFilament removes a filament and its purchase history. Rejected while
// any plate or legacy product usage still references the filament.
func (s *Store) DeleteFilament(ctx context.Context, id int64) error {
	var referenced bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM plate_filament_usages WHERE filament_id = ?)
		    OR EXISTS(SELECT 1 FROM product_filament_usages WHERE filament_id = ?)
	`, id, id).Scan(&referenced)
	if err != nil {
		return fmt.Errorf("check filament references: %w", err)
	}
	if referenced {
		return fmt.Errorf("filament %d: %w", id, model.ErrInUse)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM filaments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete filament: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete filament: %w", err)
	}
	if affected == 0 {
		return model.NotFound("filament", id)
	}
	return nil
}
