package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/printfarmhq/printfarmhq/internal/logger"
	"github.com/printfarmhq/printfarmhq/internal/model"
)

type errorResponse struct {
	Error       string `json:"error"`
	Field       string `json:"field,omitempty"`
	PrinterID   int64  `json:"printer_id,omitempty"`
	PrinterName string `json:"printer_name,omitempty"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("encode response", logger.Error(err))
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. Unexpected
// errors are logged and reported generically so storage details never leak.
func (s *server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *model.ValidationError
		cerr *model.ConflictError
		serr *model.InvalidStateError
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &cerr):
		s.writeJSON(w, http.StatusConflict, errorResponse{
			Error:       cerr.Error(),
			PrinterID:   cerr.PrinterID,
			PrinterName: cerr.PrinterName,
		})
	case errors.As(err, &serr):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: serr.Error()})
	case errors.Is(err, model.ErrInUse):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.log.Error("internal error", logger.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return model.Validationf("body", "invalid JSON: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validationf("id", "must be a positive integer")
	}
	return id, nil
}
