package costing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

type fakePrices map[int64]string

func (f fakePrices) CurrentPrice(_ context.Context, filamentID int64) (decimal.Decimal, error) {
	raw, ok := f[filamentID]
	if !ok {
		return decimal.Zero, model.NotFound("filament", filamentID)
	}
	return decimal.RequireFromString(raw), nil
}

func wantDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s = %s, want %s", name, got, want)
	}
}

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestPlateCost_QuantityIsLinear(t *testing.T) {
	prices := fakePrices{1: "30"}
	usages := []model.FilamentUsage{{FilamentID: 1, GramsUsed: 15}}

	single, err := PlateCost(context.Background(), prices, model.Plate{Quantity: 1, FilamentUsages: usages})
	if err != nil {
		t.Fatalf("PlateCost quantity 1 returned error: %v", err)
	}
	triple, err := PlateCost(context.Background(), prices, model.Plate{Quantity: 3, FilamentUsages: usages})
	if err != nil {
		t.Fatalf("PlateCost quantity 3 returned error: %v", err)
	}

	wantDecimal(t, "single", single, "0.45")
	wantDecimal(t, "triple", triple, "1.35")
	if !triple.Equal(single.Mul(decimal.NewFromInt(3))) {
		t.Fatalf("plate cost is not linear in quantity: %s vs 3*%s", triple, single)
	}
}

func TestPlateCost_MissingFilamentFailsWhole(t *testing.T) {
	prices := fakePrices{1: "30"}
	plate := model.Plate{
		Quantity: 1,
		FilamentUsages: []model.FilamentUsage{
			{FilamentID: 1, GramsUsed: 10},
			{FilamentID: 99, GramsUsed: 10},
		},
	}

	_, err := PlateCost(context.Background(), prices, plate)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing filament, got %v", err)
	}
}

func TestPlateCost_RejectsNonPositiveGrams(t *testing.T) {
	plate := model.Plate{
		Quantity:       1,
		FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 0}},
	}

	_, err := PlateCost(context.Background(), fakePrices{1: "30"}, plate)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "grams_used" {
		t.Fatalf("unexpected field %q", verr.Field)
	}
}

func TestProductCOP_SumsPlates(t *testing.T) {
	// Plate A: 1x 15g TPU at 30/kg = 0.45. Plate B: 2x 5g PLA at 25/kg = 0.25.
	prices := fakePrices{1: "30", 2: "25"}
	product := model.Product{
		Plates: []model.Plate{
			{Name: "A", Quantity: 1, FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 15}}},
			{Name: "B", Quantity: 2, FilamentUsages: []model.FilamentUsage{{FilamentID: 2, GramsUsed: 5}}},
		},
	}

	cop, err := ProductCOP(context.Background(), prices, product)
	if err != nil {
		t.Fatalf("ProductCOP returned error: %v", err)
	}
	wantDecimal(t, "cop", cop, "0.70")
}

func TestProductCOP_LegacyUsagesMatchImplicitPlate(t *testing.T) {
	prices := fakePrices{1: "30", 2: "25"}
	usages := []model.FilamentUsage{
		{FilamentID: 1, GramsUsed: 15},
		{FilamentID: 2, GramsUsed: 5},
	}

	legacy := model.Product{FilamentUsages: usages}
	modern := model.Product{Plates: []model.Plate{{Quantity: 1, FilamentUsages: usages}}}

	legacyCOP, err := ProductCOP(context.Background(), prices, legacy)
	if err != nil {
		t.Fatalf("legacy ProductCOP returned error: %v", err)
	}
	modernCOP, err := ProductCOP(context.Background(), prices, modern)
	if err != nil {
		t.Fatalf("modern ProductCOP returned error: %v", err)
	}

	if !legacyCOP.Equal(modernCOP) {
		t.Fatalf("legacy COP %s != implicit single-plate COP %s", legacyCOP, modernCOP)
	}
}

func TestProductCOP_PlatesShadowLegacyUsages(t *testing.T) {
	prices := fakePrices{1: "30"}
	product := model.Product{
		Plates:         []model.Plate{{Quantity: 1, FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 10}}}},
		FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 500}},
	}

	cop, err := ProductCOP(context.Background(), prices, product)
	if err != nil {
		t.Fatalf("ProductCOP returned error: %v", err)
	}
	wantDecimal(t, "cop", cop, "0.30")
}

func TestProductCOP_EmptyProductIsZero(t *testing.T) {
	cop, err := ProductCOP(context.Background(), fakePrices{}, model.Product{})
	if err != nil {
		t.Fatalf("ProductCOP returned error: %v", err)
	}
	wantDecimal(t, "cop", cop, "0")
}

func TestProductCOP_IsIdempotent(t *testing.T) {
	prices := fakePrices{1: "21.37"}
	product := model.Product{
		Plates: []model.Plate{{Quantity: 3, FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 12.5}}}},
	}

	first, err := ProductCOP(context.Background(), prices, product)
	if err != nil {
		t.Fatalf("first ProductCOP returned error: %v", err)
	}
	second, err := ProductCOP(context.Background(), prices, product)
	if err != nil {
		t.Fatalf("second ProductCOP returned error: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("ProductCOP is not idempotent: %s then %s", first, second)
	}
}

func TestProductPrintTimeHrs(t *testing.T) {
	withPlates := model.Product{
		PrintTimeHrs: 99, // ignored once plates exist
		Plates: []model.Plate{
			{Quantity: 2, PrintTimeHrs: 1.5},
			{Quantity: 1, PrintTimeHrs: 4},
		},
	}
	nearlyEqual(t, "plates print time", ProductPrintTimeHrs(withPlates), 7)

	legacy := model.Product{PrintTimeHrs: 3.25}
	nearlyEqual(t, "legacy print time", ProductPrintTimeHrs(legacy), 3.25)
}

func TestJobCOGS_Composition(t *testing.T) {
	// COP(P) = 0.70; printer 500/2000h = 0.25/h over 3h; packaging 1.
	prices := fakePrices{1: "30", 2: "25"}
	product := model.Product{
		Plates: []model.Plate{
			{Name: "A", Quantity: 1, FilamentUsages: []model.FilamentUsage{{FilamentID: 1, GramsUsed: 15}}},
			{Name: "B", Quantity: 2, FilamentUsages: []model.FilamentUsage{{FilamentID: 2, GramsUsed: 5}}},
		},
	}
	job := model.PrintJob{
		PackagingCostEUR: decimal.RequireFromString("1"),
		Products:         []model.JobProduct{{Product: product, ItemsQty: 2}},
		Printers: []model.JobPrinter{{
			Printer:     model.PrinterProfile{PriceEUR: decimal.RequireFromString("500"), ExpectedLifeHours: 2000},
			PrintersQty: 1,
			HoursEach:   3,
		}},
	}

	cogs, err := JobCOGS(context.Background(), prices, job)
	if err != nil {
		t.Fatalf("JobCOGS returned error: %v", err)
	}
	wantDecimal(t, "cogs", cogs, "3.15")
}

func TestJobCOGS_PropagatesCostingErrors(t *testing.T) {
	job := model.PrintJob{
		Products: []model.JobProduct{{
			Product:  model.Product{FilamentUsages: []model.FilamentUsage{{FilamentID: 7, GramsUsed: 10}}},
			ItemsQty: 1,
		}},
	}

	_, err := JobCOGS(context.Background(), fakePrices{}, job)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJobTotalPrintTimeHrs(t *testing.T) {
	job := model.PrintJob{
		Printers: []model.JobPrinter{
			{PrintersQty: 2, HoursEach: 3},
			{PrintersQty: 1, HoursEach: 0.5},
		},
	}
	nearlyEqual(t, "total print time", JobTotalPrintTimeHrs(job), 6.5)
}

func TestProgress_Boundaries(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)

	nearlyEqual(t, "at start", Progress(start, end, start), 0)
	nearlyEqual(t, "midway", Progress(start, end, start.Add(2*time.Hour)), 0.5)
	nearlyEqual(t, "at end", Progress(start, end, end), 1)
	nearlyEqual(t, "past end", Progress(start, end, end.Add(time.Hour)), 1)
	nearlyEqual(t, "before start", Progress(start, end, start.Add(-time.Minute)), 0)
	nearlyEqual(t, "zero window", Progress(start, start, start), 1)
}
