package patient

import (
	"errors"
	"time"
)

// Patient represents one person whose medications are tracked.
// Every patient belongs to exactly one user account; all queries are
// scoped by the owning user's ID.
type Patient struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"patient_name"`
	DOB       string    `json:"patient_dob"` // YYYY-MM-DD
	Allergy   string    `json:"patient_allergy,omitempty"`
	MD        string    `json:"patient_md,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sentinel errors for patient operations.
var (
	ErrNotFound   = errors.New("patient not found")
	ErrInvalidDOB = errors.New("patient_dob must be in YYYY-MM-DD format")
)

// dobFormat is the accepted date-of-birth layout.
const dobFormat = "2006-01-02"

// Validate checks required fields and the date-of-birth format.
func (p *Patient) Validate() error {
	if p.Name == "" {
		return errors.New("patient_name is required")
	}
	if p.DOB == "" {
		return errors.New("patient_dob is required")
	}
	if _, err := time.Parse(dobFormat, p.DOB); err != nil {
		return ErrInvalidDOB
	}
	return nil
}
