package main

import (
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

type filamentRequest struct {
	Brand      string   `json:"brand"`
	Material   string   `json:"material"`
	Color      string   `json:"color"`
	MinStockKg *float64 `json:"min_stock_kg"`
}

type filamentResponse struct {
	ID            int64           `json:"id"`
	Brand         string          `json:"brand"`
	Material      string          `json:"material"`
	Color         string          `json:"color"`
	TotalQtyKg    float64         `json:"total_qty_kg"`
	PricePerKg    decimal.Decimal `json:"price_per_kg"`
	MinStockKg    *float64        `json:"min_stock_kg,omitempty"`
	BelowMinStock bool            `json:"below_min_stock"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toFilamentResponse(f model.Filament) filamentResponse {
	return filamentResponse{
		ID:            f.ID,
		Brand:         f.Brand,
		Material:      f.Material,
		Color:         f.Color,
		TotalQtyKg:    f.TotalQtyKg,
		PricePerKg:    f.PricePerKg,
		MinStockKg:    f.MinStockKg,
		BelowMinStock: f.BelowMinStock(),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func (s *server) handleFilamentsList(w http.ResponseWriter, r *http.Request) {
	filaments, err := s.store.ListFilaments(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lo.Map(filaments, func(f model.Filament, _ int) filamentResponse {
		return toFilamentResponse(f)
	}))
}

func (s *server) handleFilamentCreate(w http.ResponseWriter, r *http.Request) {
	var req filamentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	f, err := s.store.CreateFilament(r.Context(), model.Filament{
		Brand:      req.Brand,
		Material:   req.Material,
		Color:      req.Color,
		MinStockKg: req.MinStockKg,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toFilamentResponse(f))
}

func (s *server) handleFilamentGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.store.GetFilament(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFilamentResponse(f))
}

func (s *server) handleFilamentUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req filamentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	f, err := s.store.UpdateFilament(r.Context(), model.Filament{
		ID:         id,
		Brand:      req.Brand,
		Material:   req.Material,
		Color:      req.Color,
		MinStockKg: req.MinStockKg,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFilamentResponse(f))
}

func (s *server) handleFilamentDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteFilament(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

type purchaseRequest struct {
	QuantityKg   float64         `json:"quantity_kg"`
	PricePerKg   decimal.Decimal `json:"price_per_kg"`
	PurchaseDate string          `json:"purchase_date"`
}

type purchaseResponse struct {
	ID           int64           `json:"id"`
	FilamentID   int64           `json:"filament_id"`
	QuantityKg   float64         `json:"quantity_kg"`
	PricePerKg   decimal.Decimal `json:"price_per_kg"`
	PurchaseDate time.Time       `json:"purchase_date"`
}

func parsePurchaseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.Validationf("purchase_date", "must be RFC 3339 or YYYY-MM-DD")
}

func (s *server) handlePurchaseCreate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	date, err := parsePurchaseDate(req.PurchaseDate)
	if err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.ledger.RecordPurchase(r.Context(), id, req.QuantityKg, req.PricePerKg, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, purchaseResponse{
		ID:           p.ID,
		FilamentID:   p.FilamentID,
		QuantityKg:   p.QuantityKg,
		PricePerKg:   p.PricePerKg,
		PurchaseDate: p.PurchaseDate,
	})
}

func (s *server) handlePurchasesList(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetFilament(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	purchases, err := s.ledger.Purchases(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lo.Map(purchases, func(p model.FilamentPurchase, _ int) purchaseResponse {
		return purchaseResponse{
			ID:           p.ID,
			FilamentID:   p.FilamentID,
			QuantityKg:   p.QuantityKg,
			PricePerKg:   p.PricePerKg,
			PurchaseDate: p.PurchaseDate,
		}
	}))
}
