package main

import (
	"context"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/printfarmhq/printfarmhq/internal/costing"
	"github.com/printfarmhq/printfarmhq/internal/model"
)

type jobProductRequest struct {
	ProductID int64 `json:"product_id"`
	ItemsQty  int64 `json:"items_qty"`
}

type jobPrinterRequest struct {
	PrinterID   int64   `json:"printer_id"`
	PrintersQty int64   `json:"printers_qty"`
	HoursEach   float64 `json:"hours_each"`
}

type jobRequest struct {
	Name             string              `json:"name"`
	PackagingCostEUR decimal.Decimal     `json:"packaging_cost_eur"`
	Products         []jobProductRequest `json:"products"`
	Printers         []jobPrinterRequest `json:"printers"`
}

type jobProductResponse struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	ItemsQty    int64  `json:"items_qty"`
}

type jobPrinterResponse struct {
	PrinterID   int64   `json:"printer_id"`
	PrinterName string  `json:"printer_name"`
	PrintersQty int64   `json:"printers_qty"`
	HoursEach   float64 `json:"hours_each"`
}

type jobResponse struct {
	ID                    int64                `json:"id"`
	Name                  string               `json:"name,omitempty"`
	Status                model.JobStatus      `json:"status"`
	PackagingCostEUR      decimal.Decimal      `json:"packaging_cost_eur"`
	CalculatedCOGSEUR     decimal.Decimal      `json:"calculated_cogs_eur"`
	TotalPrintTimeHrs     float64              `json:"total_print_time_hrs"`
	Products              []jobProductResponse `json:"products"`
	Printers              []jobPrinterResponse `json:"printers"`
	StartedAt             *time.Time           `json:"started_at,omitempty"`
	EstimatedCompletionAt *time.Time           `json:"estimated_completion_at,omitempty"`
	Progress              *float64             `json:"progress,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	UpdatedAt             time.Time            `json:"updated_at"`
}

// toJobResponse recomputes COGS from current prices and derives progress from
// the stored timestamps; nothing computed here is persisted.
func (s *server) toJobResponse(r *http.Request, j model.PrintJob) (jobResponse, error) {
	cogs, err := costing.JobCOGS(r.Context(), s.ledger, j)
	if err != nil {
		return jobResponse{}, err
	}

	resp := jobResponse{
		ID:                j.ID,
		Name:              j.Name,
		Status:            j.Status,
		PackagingCostEUR:  j.PackagingCostEUR,
		CalculatedCOGSEUR: cogs,
		TotalPrintTimeHrs: costing.JobTotalPrintTimeHrs(j),
		Products: lo.Map(j.Products, func(line model.JobProduct, _ int) jobProductResponse {
			return jobProductResponse{
				ProductID:   line.ProductID,
				ProductName: line.Product.Name,
				ItemsQty:    line.ItemsQty,
			}
		}),
		Printers: lo.Map(j.Printers, func(a model.JobPrinter, _ int) jobPrinterResponse {
			return jobPrinterResponse{
				PrinterID:   a.PrinterID,
				PrinterName: a.Printer.Name,
				PrintersQty: a.PrintersQty,
				HoursEach:   a.HoursEach,
			}
		}),
		StartedAt:             j.StartedAt,
		EstimatedCompletionAt: j.EstimatedCompletionAt,
		CreatedAt:             j.CreatedAt,
		UpdatedAt:             j.UpdatedAt,
	}

	if j.Status == model.StatusPrinting && j.StartedAt != nil && j.EstimatedCompletionAt != nil {
		progress := costing.Progress(*j.StartedAt, *j.EstimatedCompletionAt, time.Now().UTC())
		resp.Progress = &progress
	}

	return resp, nil
}

func (s *server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp, err := s.toJobResponse(r, j)
		if err != nil {
			s.writeError(w, err)
			return
		}
		responses = append(responses, resp)
	}
	s.writeJSON(w, http.StatusOK, responses)
}

func (s *server) handleJobCreate(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	j, err := s.store.CreateJob(r.Context(), model.PrintJob{
		Name:             req.Name,
		PackagingCostEUR: req.PackagingCostEUR,
		Products: lo.Map(req.Products, func(line jobProductRequest, _ int) model.JobProduct {
			return model.JobProduct{ProductID: line.ProductID, ItemsQty: line.ItemsQty}
		}),
		Printers: lo.Map(req.Printers, func(a jobPrinterRequest, _ int) model.JobPrinter {
			return model.JobPrinter{PrinterID: a.PrinterID, PrintersQty: a.PrintersQty, HoursEach: a.HoursEach}
		}),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.toJobResponse(r, j)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *server) handleJobGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.toJobResponse(r, j)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleJobDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeleteJob(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *server) handleJobStart(w http.ResponseWriter, r *http.Request) {
	s.handleJobTransition(w, r, s.sched.StartJob)
}

func (s *server) handleJobComplete(w http.ResponseWriter, r *http.Request) {
	s.handleJobTransition(w, r, s.sched.CompleteJob)
}

func (s *server) handleJobFail(w http.ResponseWriter, r *http.Request) {
	s.handleJobTransition(w, r, s.sched.FailJob)
}

func (s *server) handleJobTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, id int64) error) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := transition(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	j, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.toJobResponse(r, j)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
