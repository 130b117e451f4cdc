package medication

import (
	"errors"
	"time"
)

// Medication represents one medication prescribed to a patient.
type Medication struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"med_name"`
	Dose        string    `json:"med_dose"`
	PatientName string    `json:"patient_name,omitempty"` // joined on list/get
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScheduleEntry represents one dose time for a medication and whether the
// dose has been taken.
type ScheduleEntry struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	Time         string    `json:"med_time"`
	Taken        bool      `json:"med_taken"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for medication operations.
var (
	ErrNotFound         = errors.New("medication not found")
	ErrScheduleNotFound = errors.New("schedule entry not found")
	ErrPatientNotFound  = errors.New("patient not found")
)

// Validate checks required medication fields.
func (m *Medication) Validate() error {
	if m.Name == "" {
		return errors.New("med_name is required")
	}
	if m.Dose == "" {
		return errors.New("med_dose is required")
	}
	if m.PatientID == "" {
		return errors.New("patient_id is required")
	}
	return nil
}

// Validate checks required schedule entry fields.
func (s *ScheduleEntry) Validate() error {
	if s.Time == "" {
		return errors.New("med_time is required")
	}
	return nil
}
