package main

import (
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/costing"
	"github.com/printfarmhq/printfarmhq/internal/model"
)

type usageRequest struct {
	FilamentID int64   `json:"filament_id"`
	GramsUsed  float64 `json:"grams_used"`
}

type usageResponse struct {
	FilamentID int64   `json:"filament_id"`
	GramsUsed  float64 `json:"grams_used"`
}

type plateRequest struct {
	Name           string         `json:"name"`
	Quantity       int64          `json:"quantity"`
	PrintTimeHrs   float64        `json:"print_time_hrs"`
	FilamentUsages []usageRequest `json:"filament_usages"`
}

type plateResponse struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	Quantity       int64           `json:"quantity"`
	PrintTimeHrs   float64         `json:"print_time_hrs"`
	FilePath       string          `json:"file_path,omitempty"`
	FilamentUsages []usageResponse `json:"filament_usages"`
}

type productRequest struct {
	Name           string         `json:"name"`
	License        string         `json:"license"`
	PrintTimeHrs   float64        `json:"print_time_hrs"`
	Plates         []plateRequest `json:"plates"`
	FilamentUsages []usageRequest `json:"filament_usages"`
}

type productResponse struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	License        string          `json:"license,omitempty"`
	COP            decimal.Decimal `json:"cop"`
	PrintTimeHrs   float64         `json:"print_time_hrs"`
	Plates         []plateResponse `json:"plates"`
	FilamentUsages []usageResponse `json:"filament_usages,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toUsageModels(reqs []usageRequest) []model.FilamentUsage {
	return lo.Map(reqs, func(u usageRequest, _ int) model.FilamentUsage {
		return model.FilamentUsage{FilamentID: u.FilamentID, GramsUsed: u.GramsUsed}
	})
}

func toPlateModel(req plateRequest) model.Plate {
	return model.Plate{
		Name:           req.Name,
		Quantity:       req.Quantity,
		PrintTimeHrs:   req.PrintTimeHrs,
		FilamentUsages: toUsageModels(req.FilamentUsages),
	}
}

func toUsageResponses(usages []model.FilamentUsage) []usageResponse {
	return lo.Map(usages, func(u model.FilamentUsage, _ int) usageResponse {
		return usageResponse{FilamentID: u.FilamentID, GramsUsed: u.GramsUsed}
	})
}

func toPlateResponse(p model.Plate) plateResponse {
	return plateResponse{
		ID:             p.ID,
		ProductID:      p.ProductID,
		Name:           p.Name,
		Quantity:       p.Quantity,
		PrintTimeHrs:   p.PrintTimeHrs,
		FilePath:       p.FilePath,
		FilamentUsages: toUsageResponses(p.FilamentUsages),
	}
}

// toProductResponse recomputes COP and total print time on every read, so the
// response always reflects current filament prices.
func (s *server) toProductResponse(r *http.Request, p model.Product) (productResponse, error) {
	cop, err := costing.ProductCOP(r.Context(), s.ledger, p)
	if err != nil {
		return productResponse{}, err
	}

	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		License:      p.License,
		COP:          cop,
		PrintTimeHrs: costing.ProductPrintTimeHrs(p),
		Plates: lo.Map(p.Plates, func(plate model.Plate, _ int) plateResponse {
			return toPlateResponse(plate)
		}),
		FilamentUsages: toUsageResponses(p.FilamentUsages),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}, nil
}

func (s *server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	responses := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp, err := s.toProductResponse(r, p)
		if err != nil {
			s.writeError(w, err)
			return
		}
		responses = append(responses, resp)
	}
	s.writeJSON(w, http.StatusOK, responses)
}

func (s *server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.store.CreateProduct(r.Context(), model.Product{
		Name:         req.Name,
		License:      req.License,
		PrintTimeHrs: req.PrintTimeHrs,
		Plates: lo.Map(req.Plates, func(pr plateRequest, _ int) model.Plate {
			return toPlateModel(pr)
		}),
		FilamentUsages: toUsageModels(req.FilamentUsages),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.toProductResponse(r, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *server) handleProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.toProductResponse(r, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.store.UpdateProduct(r.Context(), model.Product{
		ID:           id,
		Name:         req.Name,
		License:      req.License,
		PrintTimeHrs: req.PrintTimeHrs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.toProductResponse(r, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}
