package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/medtrack-core/internal/patient"
)

type patientRequest struct {
	Name    string `json:"patient_name"`
	DOB     string `json:"patient_dob"`
	Allergy string `json:"patient_allergy"`
	MD      string `json:"patient_md"`
}

// handleListPatients returns all patients owned by the authenticated user.
func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := s.patients.ListByUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.logger.Error("list patients failed", "error", err)
		writeInternalError(w, "failed to list patients")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"patients": patients,
		"count":    len(patients),
	})
}

// handleCreatePatient creates a patient record for the authenticated user.
func (s *Server) handleCreatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &patient.Patient{
		UserID:  userIDFromContext(r.Context()),
		Name:    req.Name,
		DOB:     req.DOB,
		Allergy: req.Allergy,
		MD:      req.MD,
	}
	if err := p.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.patients.Create(r.Context(), p); err != nil {
		s.logger.Error("create patient failed", "error", err)
		writeInternalError(w, "failed to create patient")
		return
	}

	s.logger.Info("patient created", "patient_id", p.ID, "user_id", p.UserID)
	writeJSON(w, http.StatusCreated, p)
}

// handleGetPatient returns a single patient owned by the authenticated user.
func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := s.patients.Get(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			writeNotFound(w, "patient not found")
			return
		}
		s.logger.Error("get patient failed", "error", err)
		writeInternalError(w, "failed to get patient")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleUpdatePatient replaces a patient's mutable fields.
func (s *Server) handleUpdatePatient(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p := &patient.Patient{
		ID:      chi.URLParam(r, "id"),
		UserID:  userIDFromContext(r.Context()),
		Name:    req.Name,
		DOB:     req.DOB,
		Allergy: req.Allergy,
		MD:      req.MD,
	}
	if err := p.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.patients.Update(r.Context(), p); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			writeNotFound(w, "patient not found")
			return
		}
		s.logger.Error("update patient failed", "error", err)
		writeInternalError(w, "failed to update patient")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleDeletePatient removes a patient and, via cascade, their medications
// and schedules.
func (s *Server) handleDeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.patients.Delete(r.Context(), userIDFromContext(r.Context()), id); err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			writeNotFound(w, "patient not found")
			return
		}
		s.logger.Error("delete patient failed", "error", err)
		writeInternalError(w, "failed to delete patient")
		return
	}

	s.logger.Info("patient deleted", "patient_id", id)
	w.WriteHeader(http.StatusNoContent)
}
