package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

// CreatePlate adds a plate to an existing product.
func (s *Store) CreatePlate(ctx context.Context, productID int64, p model.Plate) (model.Plate, error) {
	if err := validatePlate(p); err != nil {
		return model.Plate{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Plate{}, fmt.Errorf("begin plate transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = ?)`, productID).Scan(&exists); err != nil {
		return model.Plate{}, fmt.Errorf("check product existence: %w", err)
	}
	if !exists {
		return model.Plate{}, model.NotFound("product", productID)
	}

	plateID, err := insertPlateTx(ctx, tx, productID, p)
	if err != nil {
		return model.Plate{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, productID); err != nil {
		return model.Plate{}, fmt.Errorf("touch product: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Plate{}, fmt.Errorf("commit plate transaction: %w", err)
	}

	return s.GetPlate(ctx, plateID)
}

// GetPlate returns one plate with its filament usages.
func (s *Store) GetPlate(ctx context.Context, id int64) (model.Plate, error) {
	var p model.Plate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, name, quantity, print_time_hrs, file_path
		FROM plates
		WHERE id = ?
	`, id).Scan(&p.ID, &p.ProductID, &p.Name, &p.Quantity, &p.PrintTimeHrs, &p.FilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plate{}, model.NotFound("plate", id)
	}
	if err != nil {
		return model.Plate{}, fmt.Errorf("query plate: %w", err)
	}

	p.FilamentUsages, err = s.usagesFor(ctx, `
		SELECT id, filament_id, grams_used
		FROM plate_filament_usages
		WHERE plate_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return model.Plate{}, err
	}

	return p, nil
}

// UpdatePlate replaces a plate's fields and its filament usages. Edits are
// last-write-wins; costs computed afterwards pick up the new composition.
func (s *Store) UpdatePlate(ctx context.Context, p model.Plate) (model.Plate, error) {
	if err := validatePlate(p); err != nil {
		return model.Plate{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Plate{}, fmt.Errorf("begin plate transaction: %w", err)
	}
	defer tx.Rollback()

	var productID int64
	err = tx.QueryRowContext(ctx, `SELECT product_id FROM plates WHERE id = ?`, p.ID).Scan(&productID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plate{}, model.NotFound("plate", p.ID)
	}
	if err != nil {
		return model.Plate{}, fmt.Errorf("query plate: %w", err)
	}

	var dup bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM plates WHERE product_id = ? AND name = ? AND id != ?)
	`, productID, p.Name, p.ID).Scan(&dup); err != nil {
		return model.Plate{}, fmt.Errorf("check plate name uniqueness: %w", err)
	}
	if dup {
		return model.Plate{}, model.Validationf("name", "plate %q already exists on this product", p.Name)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE plates
		SET name = ?, quantity = ?, print_time_hrs = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.Quantity, p.PrintTimeHrs, p.ID); err != nil {
		return model.Plate{}, fmt.Errorf("update plate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM plate_filament_usages WHERE plate_id = ?`, p.ID); err != nil {
		return model.Plate{}, fmt.Errorf("clear plate filament usages: %w", err)
	}
	for _, u := range p.FilamentUsages {
		if err := filamentExists(ctx, tx, u.FilamentID); err != nil {
			return model.Plate{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plate_filament_usages (plate_id, filament_id, grams_used)
			VALUES (?, ?, ?)
		`, p.ID, u.FilamentID, u.GramsUsed); err != nil {
			return model.Plate{}, fmt.Errorf("insert plate filament usage: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, productID); err != nil {
		return model.Plate{}, fmt.Errorf("touch product: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Plate{}, fmt.Errorf("commit plate transaction: %w", err)
	}

	return s.GetPlate(ctx, p.ID)
}

// DeletePlate removes a plate; its usages cascade.
func (s *Store) DeletePlate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plate: %w", err)
	}
	if affected == 0 {
		return model.NotFound("plate", id)
	}
	return nil
}

// SetPlateFilePath stores the opaque path of an uploaded plate file.
func (s *Store) SetPlateFilePath(ctx context.Context, id int64, path string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plates SET file_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, path, id)
	if err != nil {
		return fmt.Errorf("update plate file path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plate file path: %w", err)
	}
	if affected == 0 {
		return model.NotFound("plate", id)
	}
	return nil
}
