package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for patient record persistence.
// Every method that targets a single row takes the owning user's ID and
// only touches rows belonging to that user.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Patient, error)
	Get(ctx context.Context, userID, id string) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, userID, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed patient repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const patientColumns = "id, user_id, patient_name, patient_dob, patient_allergy, patient_md, created_at, updated_at"

// ListByUser returns all patients owned by a user, oldest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]Patient, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE user_id = ? ORDER BY created_at ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patients: %w", err)
	}

	if patients == nil {
		patients = []Patient{}
	}
	return patients, nil
}

// Get retrieves a single patient owned by the user.
func (r *SQLiteRepository) Get(ctx context.Context, userID, id string) (*Patient, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE id = ? AND user_id = ?", id, userID)
	return scanPatient(row)
}

// Create inserts a new patient record. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = "pat-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	p.CreatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO patients (id, user_id, patient_name, patient_dob, patient_allergy, patient_md, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.DOB, nullString(p.Allergy), nullString(p.MD), now, now,
	)
	if err != nil {
		return fmt.Errorf("creating patient: %w", err)
	}
	return nil
}

// Update modifies a patient's mutable fields. The row must belong to the
// patient's UserID or the update reports ErrNotFound.
func (r *SQLiteRepository) Update(ctx context.Context, p *Patient) error {
	now := time.Now().UTC().Format(time.RFC3339)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, now) //nolint:errcheck // format is controlled

	result, err := r.db.ExecContext(ctx,
		`UPDATE patients SET patient_name = ?, patient_dob = ?, patient_allergy = ?, patient_md = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.Name, p.DOB, nullString(p.Allergy), nullString(p.MD), now, p.ID, p.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating patient: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a patient owned by the user. Medications and schedule
// entries cascade via foreign keys.
func (r *SQLiteRepository) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM patients WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("deleting patient: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanPatient scans a patient from a row or rows.
func scanPatient(s scanner) (*Patient, error) {
	var p Patient
	var allergy, md sql.NullString
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.UserID, &p.Name, &p.DOB, &allergy, &md, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning patient: %w", err)
	}

	if allergy.Valid {
		p.Allergy = allergy.String
	}
	if md.Valid {
		p.MD = md.String
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
