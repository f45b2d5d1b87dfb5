// Package ledger tracks filament purchases and the denormalized stock/price
// totals on the filament itself.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

// Ledger records purchases and answers price/stock queries for costing.
type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordPurchase appends an immutable purchase record and, in the same
// transaction, bumps the filament's stock total and current price. The current
// price is the price of the most recently recorded purchase (last known cost).
func (l *Ledger) RecordPurchase(ctx context.Context, filamentID int64, quantityKg float64, pricePerKg decimal.Decimal, purchaseDate time.Time) (model.FilamentPurchase, error) {
	if quantityKg <= 0 {
		return model.FilamentPurchase{}, model.Validationf("quantity_kg", "must be greater than 0")
	}
	if pricePerKg.IsNegative() {
		return model.FilamentPurchase{}, model.Validationf("price_per_kg", "must not be negative")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("begin purchase transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM filaments WHERE id = ?)`, filamentID).Scan(&exists); err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("check filament existence: %w", err)
	}
	if !exists {
		return model.FilamentPurchase{}, model.NotFound("filament", filamentID)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO filament_purchases (filament_id, quantity_kg, price_per_kg, purchase_date)
		VALUES (?, ?, ?, ?)
	`, filamentID, quantityKg, pricePerKg, purchaseDate)
	if err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("insert filament purchase: %w", err)
	}

	purchaseID, err := res.LastInsertId()
	if err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("read purchase id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE filaments
		SET
			total_qty_kg = total_qty_kg + ?,
			price_per_kg = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, quantityKg, pricePerKg, filamentID); err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("update filament totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.FilamentPurchase{}, fmt.Errorf("commit purchase transaction: %w", err)
	}

	return model.FilamentPurchase{
		ID:           purchaseID,
		FilamentID:   filamentID,
		QuantityKg:   quantityKg,
		PricePerKg:   pricePerKg,
		PurchaseDate: purchaseDate,
	}, nil
}

// CurrentPrice returns the price per kg to use for costing.
func (l *Ledger) CurrentPrice(ctx context.Context, filamentID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := l.db.QueryRowContext(ctx, `SELECT price_per_kg FROM filaments WHERE id = ?`, filamentID).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, model.NotFound("filament", filamentID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query filament price: %w", err)
	}
	return price, nil
}

// CurrentStock returns the gross purchased kilograms of a filament.
// Consumption by finished prints is not tracked.
func (l *Ledger) CurrentStock(ctx context.Context, filamentID int64) (float64, error) {
	var stock float64
	err := l.db.QueryRowContext(ctx, `SELECT total_qty_kg FROM filaments WHERE id = ?`, filamentID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.NotFound("filament", filamentID)
	}
	if err != nil {
		return 0, fmt.Errorf("query filament stock: %w", err)
	}
	return stock, nil
}

// Purchases returns a filament's purchase history, newest first.
func (l *Ledger) Purchases(ctx context.Context, filamentID int64) ([]model.FilamentPurchase, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, filament_id, quantity_kg, price_per_kg, purchase_date, created_at
		FROM filament_purchases
		WHERE filament_id = ?
		ORDER BY datetime(purchase_date) DESC, id DESC
	`, filamentID)
	if err != nil {
		return nil, fmt.Errorf("query filament purchases: %w", err)
	}
	defer rows.Close()

	purchases := make([]model.FilamentPurchase, 0)
	for rows.Next() {
		var p model.FilamentPurchase
		if err := rows.Scan(&p.ID, &p.FilamentID, &p.QuantityKg, &p.PricePerKg, &p.PurchaseDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan filament purchase: %w", err)
		}
		purchases = append(purchases, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filament purchases: %w", err)
	}

	return purchases, nil
}
