package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func validateUsages(usages []model.FilamentUsage) error {
	seen := make(map[int64]bool, len(usages))
	for _, u := range usages {
		if u.FilamentID <= 0 {
			return model.Validationf("filament_id", "is required")
		}
		if u.GramsUsed <= 0 {
			return model.Validationf("grams_used", "must be greater than 0")
		}
		if seen[u.FilamentID] {
			return model.Validationf("filament_id", "filament %d appears more than once in the same plate", u.FilamentID)
		}
		seen[u.FilamentID] = true
	}
	return nil
}

func validatePlate(p model.Plate) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.Validationf("name", "is required")
	}
	if p.Quantity < 1 {
		return model.Validationf("quantity", "must be at least 1")
	}
	if p.PrintTimeHrs < 0 {
		return model.Validationf("print_time_hrs", "must not be negative")
	}
	if len(p.FilamentUsages) == 0 {
		return model.Validationf("filament_usages", "at least one usage is required")
	}
	return validateUsages(p.FilamentUsages)
}

// filamentExists distinguishes an unknown filament reference (404) from the
// generic foreign-key failure sqlite would report.
func filamentExists(ctx context.Context, tx *sql.Tx, filamentID int64) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM filaments WHERE id = ?)`, filamentID).Scan(&exists); err != nil {
		return fmt.Errorf("check filament existence: %w", err)
	}
	if !exists {
		return model.NotFound("filament", filamentID)
	}
	return nil
}

func insertPlateTx(ctx context.Context, tx *sql.Tx, productID int64, p model.Plate) (int64, error) {
	var dup bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM plates WHERE product_id = ? AND name = ?)
	`, productID, p.Name).Scan(&dup); err != nil {
		return 0, fmt.Errorf("check plate name uniqueness: %w", err)
	}
	if dup {
		return 0, model.Validationf("name", "plate %q already exists on this product", p.Name)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO plates (product_id, name, quantity, print_time_hrs, file_path)
		VALUES (?, ?, ?, ?, ?)
	`, productID, p.Name, p.Quantity, p.PrintTimeHrs, p.FilePath)
	if err != nil {
		return 0, fmt.Errorf("insert plate: %w", err)
	}
	plateID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read plate id: %w", err)
	}

	for _, u := range p.FilamentUsages {
		if err := filamentExists(ctx, tx, u.FilamentID); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO plate_filament_usages (plate_id, filament_id, grams_used)
			VALUES (?, ?, ?)
		`, plateID, u.FilamentID, u.GramsUsed); err != nil {
			return 0, fmt.Errorf("insert plate filament usage: %w", err)
		}
	}

	return plateID, nil
}

// CreateProduct inserts a product with its plates, or with legacy direct
// usages when no plates are given. One of the two must be present.
func (s *Store) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Product{}, model.Validationf("name", "is required")
	}
	if len(p.Plates) == 0 && len(p.FilamentUsages) == 0 {
		return model.Product{}, model.Validationf("plates", "at least one plate or filament usage is required")
	}
	if p.PrintTimeHrs < 0 {
		return model.Product{}, model.Validationf("print_time_hrs", "must not be negative")
	}
	for _, plate := range p.Plates {
		if err := validatePlate(plate); err != nil {
			return model.Product{}, err
		}
	}
	if len(p.Plates) == 0 {
		if err := validateUsages(p.FilamentUsages); err != nil {
			return model.Product{}, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Product{}, fmt.Errorf("begin product transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO products (name, license, print_time_hrs)
		VALUES (?, ?, ?)
	`, p.Name, p.License, p.PrintTimeHrs)
	if err != nil {
		return model.Product{}, fmt.Errorf("insert product: %w", err)
	}
	productID, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, fmt.Errorf("read product id: %w", err)
	}

	if len(p.Plates) > 0 {
		for _, plate := range p.Plates {
			if _, err := insertPlateTx(ctx, tx, productID, plate); err != nil {
				return model.Product{}, err
			}
		}
	} else {
		for _, u := range p.FilamentUsages {
			if err := filamentExists(ctx, tx, u.FilamentID); err != nil {
				return model.Product{}, err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO product_filament_usages (product_id, filament_id, grams_used)
				VALUES (?, ?, ?)
			`, productID, u.FilamentID, u.GramsUsed); err != nil {
				return model.Product{}, fmt.Errorf("insert product filament usage: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Product{}, fmt.Errorf("commit product transaction: %w", err)
	}

	return s.GetProduct(ctx, productID)
}

// GetProduct loads a product aggregate: row, plates with their usages, and the
// legacy direct usages.
func (s *Store) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, license, print_time_hrs, created_at, updated_at
		FROM products
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.License, &p.PrintTimeHrs, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, model.NotFound("product", id)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("query product: %w", err)
	}

	p.Plates, err = s.platesForProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}

	p.FilamentUsages, err = s.usagesFor(ctx, `
		SELECT id, filament_id, grams_used
		FROM product_filament_usages
		WHERE product_id = ?
		ORDER BY id
	`, id)
	if err != nil {
		return model.Product{}, err
	}

	return p, nil
}

// ListProducts returns all product aggregates, newest first.
func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM products ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	products := make([]model.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// UpdateProduct changes the product's own fields; plates are managed through
// the plate operations.
func (s *Store) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return model.Product{}, model.Validationf("name", "is required")
	}
	if p.PrintTimeHrs < 0 {
		return model.Product{}, model.Validationf("print_time_hrs", "must not be negative")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, license = ?, print_time_hrs = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, p.Name, p.License, p.PrintTimeHrs, p.ID)
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Product{}, fmt.Errorf("update product: %w", err)
	}
	if affected == 0 {
		return model.Product{}, model.NotFound("product", p.ID)
	}

	return s.GetProduct(ctx, p.ID)
}

// DeleteProduct removes a product; plates and usages cascade. Rejected while a
// print job still references the product.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	var referenced bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM print_job_products WHERE product_id = ?)
	`, id).Scan(&referenced); err != nil {
		return fmt.Errorf("check product references: %w", err)
	}
	if referenced {
		return fmt.Errorf("product %d: %w", id, model.ErrInUse)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected == 0 {
		return model.NotFound("product", id)
	}
	return nil
}

func (s *Store) platesForProduct(ctx context.Context, productID int64) ([]model.Plate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, name, quantity, print_time_hrs, file_path
		FROM plates
		WHERE product_id = ?
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("query plates: %w", err)
	}
	defer rows.Close()

	plates := make([]model.Plate, 0)
	for rows.Next() {
		var p model.Plate
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Name, &p.Quantity, &p.PrintTimeHrs, &p.FilePath); err != nil {
			return nil, fmt.Errorf("scan plate: %w", err)
		}
		plates = append(plates, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plates: %w", err)
	}

	for i := range plates {
		plates[i].FilamentUsages, err = s.usagesFor(ctx, `
			SELECT id, filament_id, grams_used
			FROM plate_filament_usages
			WHERE plate_id = ?
			ORDER BY id
		`, plates[i].ID)
		if err != nil {
			return nil, err
		}
	}

	return plates, nil
}

func (s *Store) usagesFor(ctx context.Context, query string, ownerID int64) ([]model.FilamentUsage, error) {
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query filament usages: %w", err)
	}
	defer rows.Close()

	usages := make([]model.FilamentUsage, 0)
	for rows.Next() {
		var u model.FilamentUsage
		if err := rows.Scan(&u.ID, &u.FilamentID, &u.GramsUsed); err != nil {
			return nil, fmt.Errorf("scan filament usage: %w", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filament usages: %w", err)
	}

	return usages, nil
}
