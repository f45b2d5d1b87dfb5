package main

import (
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

type printerRequest struct {
	Name              string          `json:"name"`
	PriceEUR          decimal.Decimal `json:"price_eur"`
	ExpectedLifeHours float64         `json:"expected_life_hours"`
}

type printerResponse struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	PriceEUR          decimal.Decimal `json:"price_eur"`
	ExpectedLifeHours float64         `json:"expected_life_hours"`
	HourlyRateEUR     decimal.Decimal `json:"hourly_rate_eur"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func toPrinterResponse(p model.PrinterProfile) printerResponse {
	return printerResponse{
		ID:                p.ID,
		Name:              p.Name,
		PriceEUR:          p.PriceEUR,
		ExpectedLifeHours: p.ExpectedLifeHours,
		HourlyRateEUR:     p.HourlyRate(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (s *server) handlePrintersList(w http.ResponseWriter, r *http.Request) {
	printers, err := s.store.ListPrinters(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, lo.Map(printers, func(p model.PrinterProfile, _ int) printerResponse {
		return toPrinterResponse(p)
	}))
}

func (s *server) handlePrinterCreate(w http.ResponseWriter, r *http.Request) {
	var req printerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.store.CreatePrinter(r.Context(), model.PrinterProfile{
		Name:              req.Name,
		PriceEUR:          req.PriceEUR,
		ExpectedLifeHours: req.ExpectedLifeHours,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPrinterResponse(p))
}

func (s *server) handlePrinterGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.store.GetPrinter(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPrinterResponse(p))
}

func (s *server) handlePrinterUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req printerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.store.UpdatePrinter(r.Context(), model.PrinterProfile{
		ID:                id,
		Name:              req.Name,
		PriceEUR:          req.PriceEUR,
		ExpectedLifeHours: req.ExpectedLifeHours,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPrinterResponse(p))
}

func (s *server) handlePrinterDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeletePrinter(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
