// Package costing computes material costs, print times, and job COGS from the
// entity aggregates. All functions are pure recomputations over current state:
// nothing here caches, so a price change is reflected on the next read.
package costing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

// PriceSource resolves the current price per kilogram of a filament.
// The filament ledger is the production implementation.
type PriceSource interface {
	CurrentPrice(ctx context.Context, filamentID int64) (decimal.Decimal, error)
}

var gramsPerKg = decimal.NewFromInt(1000)

// usagesCost sums grams/1000 * current price over the usages. All-or-nothing:
// a single unresolvable filament fails the whole sum.
func usagesCost(ctx context.Context, prices PriceSource, usages []model.FilamentUsage) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, u := range usages {
		if u.GramsUsed <= 0 {
			return decimal.Zero, model.Validationf("grams_used", "must be greater than 0")
		}
		price, err := prices.CurrentPrice(ctx, u.FilamentID)
		if err != nil {
			return decimal.Zero, err
		}
		kg := decimal.NewFromFloat(u.GramsUsed).Div(gramsPerKg)
		total = total.Add(kg.Mul(price))
	}
	return total, nil
}

// PlateCost returns the material cost of one plate: the cost of its filament
// usages multiplied by the plate quantity.
func PlateCost(ctx context.Context, prices PriceSource, plate model.Plate) (decimal.Decimal, error) {
	if plate.Quantity < 1 {
		return decimal.Zero, model.Validationf("quantity", "must be at least 1")
	}
	cost, err := usagesCost(ctx, prices, plate.FilamentUsages)
	if err != nil {
		return decimal.Zero, err
	}
	return cost.Mul(decimal.NewFromInt(plate.Quantity)), nil
}

// PlatePrintTimeHrs returns the plate's print time. The value is authoritative
// input from the plate's creator, not derived from filament or printer data.
func PlatePrintTimeHrs(plate model.Plate) float64 {
	return plate.PrintTimeHrs
}

// ProductCOP returns the cost of product: the sum of its plate costs when
// plates exist, otherwise the legacy direct-usage cost, otherwise zero.
// Plate quantity is already folded into PlateCost.
func ProductCOP(ctx context.Context, prices PriceSource, product model.Product) (decimal.Decimal, error) {
	if len(product.Plates) > 0 {
		total := decimal.Zero
		for _, plate := range product.Plates {
			cost, err := PlateCost(ctx, prices, plate)
			if err != nil {
				return decimal.Zero, err
			}
			total = total.Add(cost)
		}
		return total, nil
	}

	if len(product.FilamentUsages) > 0 {
		return usagesCost(ctx, prices, product.FilamentUsages)
	}

	return decimal.Zero, nil
}

// ProductPrintTimeHrs returns the total print time for one unit of product.
func ProductPrintTimeHrs(product model.Product) float64 {
	if len(product.Plates) == 0 {
		return product.PrintTimeHrs
	}
	total := 0.0
	for _, plate := range product.Plates {
		total += plate.PrintTimeHrs * float64(plate.Quantity)
	}
	return total
}

// JobCOGS returns the cost of goods sold for a print job: product costs by
// quantity, amortized printer cost by hours used, and packaging.
func JobCOGS(ctx context.Context, prices PriceSource, job model.PrintJob) (decimal.Decimal, error) {
	productsCost := decimal.Zero
	for _, line := range job.Products {
		cop, err := ProductCOP(ctx, prices, line.Product)
		if err != nil {
			return decimal.Zero, err
		}
		productsCost = productsCost.Add(cop.Mul(decimal.NewFromInt(line.ItemsQty)))
	}

	printerCost := decimal.Zero
	for _, a := range job.Printers {
		hours := decimal.NewFromFloat(a.HoursEach).Mul(decimal.NewFromInt(a.PrintersQty))
		printerCost = printerCost.Add(a.Printer.HourlyRate().Mul(hours))
	}

	return productsCost.Add(printerCost).Add(job.PackagingCostEUR), nil
}

// JobTotalPrintTimeHrs returns the scheduling basis for a job: the sum of
// hours_each * printers_qty over its printer assignments. Printer assignments
// are authoritative here; product print times are never cross-validated.
func JobTotalPrintTimeHrs(job model.PrintJob) float64 {
	total := 0.0
	for _, a := range job.Printers {
		total += a.HoursEach * float64(a.PrintersQty)
	}
	return total
}

// Progress derives completion progress in [0, 1] from the stored timestamps.
// A non-positive window counts as immediately complete.
func Progress(startedAt, estimatedCompletionAt, now time.Time) float64 {
	total := estimatedCompletionAt.Sub(startedAt)
	if total <= 0 {
		return 1
	}
	p := float64(now.Sub(startedAt)) / float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
