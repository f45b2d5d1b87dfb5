package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/printfarmhq/printfarmhq/internal/model"
)

const maxPlateFileBytes = 64 << 20 // model + gcode files stay well under this

func (s *server) handlePlateCreate(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req plateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	p, err := s.store.CreatePlate(r.Context(), productID, toPlateModel(req))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPlateResponse(p))
}

func (s *server) handlePlateUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req plateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	plate := toPlateModel(req)
	plate.ID = id
	updated, err := s.store.UpdatePlate(r.Context(), plate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPlateResponse(updated))
}

func (s *server) handlePlateDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.DeletePlate(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

// handlePlateFileUpload stores an uploaded model/gcode file under a fresh
// uuid-based name and records the path on the plate. The path stays opaque to
// the rest of the system.
func (s *server) handlePlateFileUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetPlate(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxPlateFileBytes); err != nil {
		s.writeError(w, model.Validationf("file", "invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, model.Validationf("file", "is required"))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		s.writeError(w, fmt.Errorf("create upload dir: %w", err))
		return
	}

	name := uuid.NewString() + filepath.Ext(header.Filename)
	path := filepath.Join(s.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		s.writeError(w, fmt.Errorf("create upload file: %w", err))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		s.writeError(w, fmt.Errorf("write upload file: %w", err))
		return
	}

	if err := s.store.SetPlateFilePath(r.Context(), id, path); err != nil {
		s.writeError(w, err)
		return
	}

	plate, err := s.store.GetPlate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPlateResponse(plate))
}
