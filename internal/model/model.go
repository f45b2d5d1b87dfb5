package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filament identifies a distinct purchasable material (brand + material + color).
// TotalQtyKg and PricePerKg are denormalized from the purchase ledger: both are
// updated in the same transaction that records a purchase, and PricePerKg always
// reflects the most recent purchase (last-known-cost accounting).
type Filament struct {
	ID         int64
	Brand      string
	Material   string
	Color      string
	TotalQtyKg float64
	PricePerKg decimal.Decimal
	MinStockKg *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BelowMinStock reports whether the filament has a minimum-stock threshold set
// and the current stock is under it.
func (f Filament) BelowMinStock() bool {
	return f.MinStockKg != nil && f.TotalQtyKg < *f.MinStockKg
}

// FilamentPurchase is an immutable record of a stock acquisition.
type FilamentPurchase struct {
	ID           int64
	FilamentID   int64
	QuantityKg   float64
	PricePerKg   decimal.Decimal
	PurchaseDate time.Time
	CreatedAt    time.Time
}

// FilamentUsage attributes grams of a filament to a plate or, on the legacy
// cost model, directly to a product.
type FilamentUsage struct {
	ID         int64
	FilamentID int64
	GramsUsed  float64
}

// Plate is one physical component of a product: a named sub-assembly printed
// Quantity times per unit of product, with its own filament usages and print time.
type Plate struct {
	ID             int64
	ProductID      int64
	Name           string
	Quantity       int64
	PrintTimeHrs   float64
	FilePath       string
	FilamentUsages []FilamentUsage
}

// Product is a sellable item. When Plates is non-empty the plates are
// authoritative for costing and the legacy fields are ignored; otherwise the
// direct FilamentUsages and PrintTimeHrs carry the old single-assembly model.
type Product struct {
	ID             int64
	Name           string
	License        string
	PrintTimeHrs   float64
	Plates         []Plate
	FilamentUsages []FilamentUsage
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PrinterProfile is a printer model/unit available for jobs. Its acquisition
// price amortized over the expected life yields the hourly rate used in COGS.
type PrinterProfile struct {
	ID                int64
	Name              string
	PriceEUR          decimal.Decimal
	ExpectedLifeHours float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HourlyRate returns the amortized cost per printing hour.
func (p PrinterProfile) HourlyRate() decimal.Decimal {
	if p.ExpectedLifeHours <= 0 {
		return decimal.Zero
	}
	return p.PriceEUR.Div(decimal.NewFromFloat(p.ExpectedLifeHours))
}

// JobStatus is the print-job lifecycle state.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusPrinting  JobStatus = "printing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPrinting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobProduct is a (product, quantity) line item of a print job.
type JobProduct struct {
	ProductID int64
	Product   Product
	ItemsQty  int64
}

// JobPrinter assigns PrintersQty printers of one profile to a job, each
// printing for HoursEach hours.
type JobPrinter struct {
	PrinterID   int64
	Printer     PrinterProfile
	PrintersQty int64
	HoursEach   float64
}

// PrintJob is a unit of scheduled work.
type PrintJob struct {
	ID                    int64
	Name                  string
	PackagingCostEUR      decimal.Decimal
	Status                JobStatus
	StartedAt             *time.Time
	EstimatedCompletionAt *time.Time
	Products              []JobProduct
	Printers              []JobPrinter
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
