package repository

import (
	"context"
	"database/sql"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// EmployeeRepository handles employee persistence, including the
// face-enrolment columns consumed by the punch pipeline.
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository.
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `emp_id, emp_code, name, phone, ward_id, designation_id,
	face_embedding_ref, face_id, face_confidence`

// GetByID fetches an employee by primary key.
func (r *EmployeeRepository) GetByID(ctx context.Context, empID int64) (*domain.Employee, error) {
	var e domain.Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE emp_id = $1`
	err := r.db.GetContext(ctx, &e, query, empID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByFaceID resolves an employee from the face-service's own identifier,
// the preferred resolution path per §4.4 step 2.
func (r *EmployeeRepository) GetByFaceID(ctx context.Context, faceID string) (*domain.Employee, error) {
	var e domain.Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE face_id = $1`
	err := r.db.GetContext(ctx, &e, query, faceID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByEmpCode fetches an employee by their external code, the fallback
// resolution path when a face match does not carry a face_id.
func (r *EmployeeRepository) GetByEmpCode(ctx context.Context, empCode string) (*domain.Employee, error) {
	var e domain.Employee
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE emp_code = $1`
	err := r.db.GetContext(ctx, &e, query, empCode)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("employee")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetEnrolment records a successful face enrolment.
func (r *EmployeeRepository) SetEnrolment(ctx context.Context, empID int64, embeddingRef, faceID string, confidence float64) error {
	query := `
		UPDATE employees
		SET face_embedding_ref = $2, face_id = $3, face_confidence = $4
		WHERE emp_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, empID, embeddingRef, faceID, confidence)
	return err
}

// ClearEnrolment un-enrols an employee, clearing both face_embedding_ref and
// face_id per invariant 5.
func (r *EmployeeRepository) ClearEnrolment(ctx context.Context, empID int64) error {
	query := `
		UPDATE employees
		SET face_embedding_ref = NULL, face_id = NULL, face_confidence = NULL
		WHERE emp_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, empID)
	return err
}
