package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE filaments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			brand TEXT NOT NULL,
			material TEXT NOT NULL,
			color TEXT NOT NULL,
			total_qty_kg REAL NOT NULL DEFAULT 0,
			price_per_kg TEXT NOT NULL DEFAULT '0',
			min_stock_kg REAL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE filament_purchases (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filament_id INTEGER NOT NULL REFERENCES filaments(id),
			quantity_kg REAL NOT NULL,
			price_per_kg TEXT NOT NULL,
			purchase_date DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("failed creating ledger schema: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func seedFilament(t *testing.T, db *sql.DB, brand string) int64 {
	t.Helper()

	res, err := db.Exec(`
		INSERT INTO filaments (brand, material, color) VALUES (?, 'PLA', 'black')
	`, brand)
	if err != nil {
		t.Fatalf("failed to seed filament: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read filament id: %v", err)
	}
	return id
}

func TestRecordPurchaseUpdatesStockAndPrice(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	id := seedFilament(t, db, "Prusament")

	_, err := l.RecordPurchase(ctx, id, 1, decimal.RequireFromString("24.99"), time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("first RecordPurchase returned error: %v", err)
	}
	_, err = l.RecordPurchase(ctx, id, 2.5, decimal.RequireFromString("22.50"), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second RecordPurchase returned error: %v", err)
	}

	price, err := l.CurrentPrice(ctx, id)
	if err != nil {
		t.Fatalf("CurrentPrice returned error: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("22.50")) {
		t.Fatalf("current price = %s, want 22.50 (most recent purchase)", price)
	}

	stock, err := l.CurrentStock(ctx, id)
	if err != nil {
		t.Fatalf("CurrentStock returned error: %v", err)
	}
	if stock != 3.5 {
		t.Fatalf("current stock = %v kg, want 3.5", stock)
	}
}

func TestRecordPurchaseValidation(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	id := seedFilament(t, db, "eSun")

	_, err := l.RecordPurchase(ctx, id, 0, decimal.NewFromInt(20), time.Now())
	var verr *model.ValidationError
	if !errors.As(err, &verr) || verr.Field != "quantity_kg" {
		t.Fatalf("expected quantity_kg validation error, got %v", err)
	}

	_, err = l.RecordPurchase(ctx, id, 1, decimal.NewFromInt(-1), time.Now())
	if !errors.As(err, &verr) || verr.Field != "price_per_kg" {
		t.Fatalf("expected price_per_kg validation error, got %v", err)
	}

	// Nothing may have been persisted by the rejected calls.
	stock, err := l.CurrentStock(ctx, id)
	if err != nil {
		t.Fatalf("CurrentStock returned error: %v", err)
	}
	if stock != 0 {
		t.Fatalf("stock changed by rejected purchases: %v", stock)
	}
}

func TestRecordPurchaseUnknownFilament(t *testing.T) {
	db := newTestDB(t)
	l := New(db)

	_, err := l.RecordPurchase(context.Background(), 404, 1, decimal.NewFromInt(20), time.Now())
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPurchasesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	l := New(db)
	ctx := context.Background()
	id := seedFilament(t, db, "Polymaker")

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if _, err := l.RecordPurchase(ctx, id, 1, decimal.NewFromInt(30), older); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}
	if _, err := l.RecordPurchase(ctx, id, 2, decimal.NewFromInt(28), newer); err != nil {
		t.Fatalf("RecordPurchase returned error: %v", err)
	}

	purchases, err := l.Purchases(ctx, id)
	if err != nil {
		t.Fatalf("Purchases returned error: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("expected 2 purchases, got %d", len(purchases))
	}
	if purchases[0].QuantityKg != 2 || purchases[1].QuantityKg != 1 {
		t.Fatalf("purchases are not sorted newest first: %+v", purchases)
	}
}
