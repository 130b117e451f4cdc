package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/medtrack-core/internal/medication"
)

type medicationRequest struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"med_name"`
	Dose      string `json:"med_dose"`
}

type scheduleEntryRequest struct {
	Time  string `json:"med_time"`
	Taken bool   `json:"med_taken"`
}

// handleListMedications returns all medications owned by the authenticated user.
func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := s.medications.ListByUser(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		s.logger.Error("list medications failed", "error", err)
		writeInternalError(w, "failed to list medications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"medications": meds,
		"count":       len(meds),
	})
}

// handleCreateMedication creates a medication for one of the user's patients.
func (s *Server) handleCreateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	m := &medication.Medication{
		PatientID: req.PatientID,
		UserID:    userIDFromContext(r.Context()),
		Name:      req.Name,
		Dose:      req.Dose,
	}
	if err := m.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.medications.Create(r.Context(), m); err != nil {
		if errors.Is(err, medication.ErrPatientNotFound) {
			writeNotFound(w, "patient not found")
			return
		}
		s.logger.Error("create medication failed", "error", err)
		writeInternalError(w, "failed to create medication")
		return
	}

	s.logger.Info("medication created", "medication_id", m.ID, "patient_id", m.PatientID)
	writeJSON(w, http.StatusCreated, m)
}

// handleGetMedication returns a single medication owned by the user.
func (s *Server) handleGetMedication(w http.ResponseWriter, r *http.Request) {
	m, err := s.medications.Get(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			writeNotFound(w, "medication not found")
			return
		}
		s.logger.Error("get medication failed", "error", err)
		writeInternalError(w, "failed to get medication")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// handleUpdateMedication replaces a medication's name and dose.
func (s *Server) handleUpdateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Name == "" || req.Dose == "" {
		writeValidationError(w, "med_name and med_dose are required")
		return
	}

	m := &medication.Medication{
		ID:     chi.URLParam(r, "id"),
		UserID: userIDFromContext(r.Context()),
		Name:   req.Name,
		Dose:   req.Dose,
	}

	if err := s.medications.Update(r.Context(), m); err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			writeNotFound(w, "medication not found")
			return
		}
		s.logger.Error("update medication failed", "error", err)
		writeInternalError(w, "failed to update medication")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// handleDeleteMedication removes a medication and its schedule entries.
func (s *Server) handleDeleteMedication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.medications.Delete(r.Context(), userIDFromContext(r.Context()), id); err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			writeNotFound(w, "medication not found")
			return
		}
		s.logger.Error("delete medication failed", "error", err)
		writeInternalError(w, "failed to delete medication")
		return
	}

	s.logger.Info("medication deleted", "medication_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleListSchedule returns a medication's dose schedule.
func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	entries, err := s.medications.ListSchedule(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			writeNotFound(w, "medication not found")
			return
		}
		s.logger.Error("list schedule failed", "error", err)
		writeInternalError(w, "failed to list schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedule": entries,
		"count":    len(entries),
	})
}

// handleCreateScheduleEntry adds a dose time to a medication's schedule.
func (s *Server) handleCreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var req scheduleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	e := &medication.ScheduleEntry{
		MedicationID: chi.URLParam(r, "id"),
		Time:         req.Time,
		Taken:        req.Taken,
	}
	if err := e.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.medications.CreateScheduleEntry(r.Context(), userIDFromContext(r.Context()), e); err != nil {
		if errors.Is(err, medication.ErrNotFound) {
			writeNotFound(w, "medication not found")
			return
		}
		s.logger.Error("create schedule entry failed", "error", err)
		writeInternalError(w, "failed to create schedule entry")
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

// handleUpdateScheduleEntry changes a dose time or marks it taken.
func (s *Server) handleUpdateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var req scheduleEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	e := &medication.ScheduleEntry{
		ID:    chi.URLParam(r, "id"),
		Time:  req.Time,
		Taken: req.Taken,
	}
	if err := e.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.medications.UpdateScheduleEntry(r.Context(), userIDFromContext(r.Context()), e); err != nil {
		if errors.Is(err, medication.ErrScheduleNotFound) {
			writeNotFound(w, "schedule entry not found")
			return
		}
		s.logger.Error("update schedule entry failed", "error", err)
		writeInternalError(w, "failed to update schedule entry")
		return
	}

	writeJSON(w, http.StatusOK, e)
}

// handleDeleteScheduleEntry removes a dose entry.
func (s *Server) handleDeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.medications.DeleteScheduleEntry(r.Context(), userIDFromContext(r.Context()), id); err != nil {
		if errors.Is(err, medication.ErrScheduleNotFound) {
			writeNotFound(w, "schedule entry not found")
			return
		}
		s.logger.Error("delete schedule entry failed", "error", err)
		writeInternalError(w, "failed to delete schedule entry")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
