package medication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for medication and schedule persistence.
// Like the patient repository, all single-row operations are scoped by the
// owning user's ID.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Medication, error)
	Get(ctx context.Context, userID, id string) (*Medication, error)
	Create(ctx context.Context, m *Medication) error
	Update(ctx context.Context, m *Medication) error
	Delete(ctx context.Context, userID, id string) error

	ListSchedule(ctx context.Context, userID, medicationID string) ([]ScheduleEntry, error)
	CreateScheduleEntry(ctx context.Context, userID string, e *ScheduleEntry) error
	UpdateScheduleEntry(ctx context.Context, userID string, e *ScheduleEntry) error
	DeleteScheduleEntry(ctx context.Context, userID, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed medication repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// medicationSelect joins the patient name the way the original listing did.
const medicationSelect = `
	SELECT m.id, m.patient_id, m.user_id, m.med_name, m.med_dose, p.patient_name, m.created_at, m.updated_at
	FROM medications m
	JOIN patients p ON p.id = m.patient_id`

// ListByUser returns all medications owned by a user, with patient names.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Medication, error) {
	rows, err := r.db.QueryContext(ctx,
		medicationSelect+" WHERE m.user_id = ? ORDER BY m.created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		meds = append(meds, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating medications: %w", err)
	}

	if meds == nil {
		meds = []Medication{}
	}
	return meds, nil
}

// Get retrieves a single medication owned by the user.
func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (*Medication, error) {
	row := r.db.QueryRowContext(ctx,
		medicationSelect+" WHERE m.id = ? AND m.user_id = ?", id, userID)
	return scanMedication(row)
}

// Create inserts a new medication. The target patient must belong to the
// medication's UserID; otherwise Create reports ErrPatientNotFound.
func (r *SQLiteRepository) Create(ctx context.Context, m *Medication) error {
	var patientOwner string
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id FROM patients WHERE id = ?", m.PatientID).Scan(&patientOwner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("checking patient: %w", err)
	}
	if patientOwner != m.UserID {
		return ErrPatientNotFound
	}

	if m.ID == "" {
		m.ID = "med-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	m.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	m.UpdatedAt = m.CreatedAt

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO medications (id, patient_id, user_id, med_name, med_dose, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PatientID, m.UserID, m.Name, m.Dose, now, now,
	)
	if err != nil {
		return fmt.Errorf("creating medication: %w", err)
	}
	return nil
}

// Update modifies a medication's name and dose.
func (r *SQLiteRepository) Update(ctx context.Context, m *Medication) error {
	now := time.Now().UTC().Format(time.RFC3339)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE medications SET med_name = ?, med_dose = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		m.Name, m.Dose, now, m.ID, m.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating medication: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a medication owned by the user. Schedule entries cascade.
func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM medications WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting medication: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSchedule returns the dose schedule for a medication owned by the user.
func (r *SQLiteRepository) ListSchedule(ctx context.Context, userID, medicationID string) ([]ScheduleEntry, error) {
	// Confirm ownership first so a foreign medication reads as missing.
	if _, err := r.Get(ctx, userID, medicationID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, medication_id, med_time, med_taken, created_at, updated_at
		 FROM schedule WHERE medication_id = ? ORDER BY med_time ASC`, medicationID)
	if err != nil {
		return nil, fmt.Errorf("listing schedule: %w", err)
	}
	defer rows.Close()

	var entries []ScheduleEntry
	for rows.Next() {
		e, err := scanScheduleEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedule: %w", err)
	}

	if entries == nil {
		entries = []ScheduleEntry{}
	}
	return entries, nil
}

// CreateScheduleEntry inserts a dose time for a medication owned by the user.
func (r *SQLiteRepository) CreateScheduleEntry(ctx context.Context, userID string, e *ScheduleEntry) error {
	if _, err := r.Get(ctx, userID, e.MedicationID); err != nil {
		return err
	}

	if e.ID == "" {
		e.ID = "sch-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	e.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedule (id, medication_id, med_time, med_taken, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.MedicationID, e.Time, boolToInt(e.Taken), now, now,
	)
	if err != nil {
		return fmt.Errorf("creating schedule entry: %w", err)
	}
	return nil
}

// UpdateScheduleEntry modifies a dose time or its taken flag. Ownership is
// enforced through the medication join.
func (r *SQLiteRepository) UpdateScheduleEntry(ctx context.Context, userID string, e *ScheduleEntry) error {
	now := time.Now().UTC().Format(time.RFC3339)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE schedule SET med_time = ?, med_taken = ?, updated_at = ?
		 WHERE id = ? AND medication_id IN (SELECT id FROM medications WHERE user_id = ?)`,
		e.Time, boolToInt(e.Taken), now, e.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule entry: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// DeleteScheduleEntry removes a dose entry owned (via its medication) by the user.
func (r *SQLiteRepository) DeleteScheduleEntry(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM schedule
		 WHERE id = ? AND medication_id IN (SELECT id FROM medications WHERE user_id = ?)`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting schedule entry: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanMedication(s scanner) (*Medication, error) {
	var m Medication
	var createdAt, updatedAt string

	err := s.Scan(&m.ID, &m.PatientID, &m.UserID, &m.Name, &m.Dose, &m.PatientName, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning medication: %w", err)
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &m, nil
}

func scanScheduleEntry(s scanner) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var taken int
	var createdAt, updatedAt string

	err := s.Scan(&e.ID, &e.MedicationID, &e.Time, &taken, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scanning schedule entry: %w", err)
	}

	e.Taken = taken != 0
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
