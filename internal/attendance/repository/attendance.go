package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

const attendanceColumns = `attendance_id, emp_id, logical_date, ward_id,
	punch_in_time, punch_out_time, punch_in_image_ref, punch_out_image_ref,
	latitude_in, longitude_in, latitude_out, longitude_out,
	in_address, out_address, duration, punched_in_by, punched_out_by`

// AttendanceRepository persists Attendance rows.
type AttendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// GetByEmpAndDate fetches the attendance row for an employee on a logical
// date, or nil (not an error) if no such row exists.
func (r *AttendanceRepository) GetByEmpAndDate(ctx context.Context, empID int64, logicalDate string) (*domain.Attendance, error) {
	var a domain.Attendance
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE emp_id = $1 AND logical_date = $2`
	err := r.db.GetContext(ctx, &a, query, empID, logicalDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByID fetches a single attendance row by its primary key, or nil (not
// an error) if it does not exist.
func (r *AttendanceRepository) GetByID(ctx context.Context, attendanceID int64) (*domain.Attendance, error) {
	var a domain.Attendance
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE attendance_id = $1`
	err := r.db.GetContext(ctx, &a, query, attendanceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOpenCarryForward looks for the most recent PunchedIn row for an
// employee whose logical_date falls in [fromDate, toDate] (inclusive),
// per §4.3's carry-forward window.
func (r *AttendanceRepository) FindOpenCarryForward(ctx context.Context, empID int64, fromDate, toDate string) (*domain.Attendance, error) {
	var a domain.Attendance
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE emp_id = $1
		  AND logical_date BETWEEN $2 AND $3
		  AND punch_in_time IS NOT NULL
		  AND punch_out_time IS NULL
		ORDER BY logical_date DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &a, query, empID, fromDate, toDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetOrCreate inserts a new Absent row for (empID, logicalDate) if one does
// not exist, using ON CONFLICT DO NOTHING RETURNING to let the unique
// constraint on (emp_id, logical_date) serialise concurrent creators (§5).
// It returns the row plus whether this call created it.
func (r *AttendanceRepository) GetOrCreate(ctx context.Context, empID int64, logicalDate string, wardID int64) (*domain.Attendance, bool, error) {
	var a domain.Attendance
	insertQuery := `
		INSERT INTO attendance (emp_id, logical_date, ward_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (emp_id, logical_date) DO NOTHING
		RETURNING ` + attendanceColumns

	err := r.db.GetContext(ctx, &a, insertQuery, empID, logicalDate, wardID)
	if err == nil {
		return &a, true, nil
	}
	if err != sql.ErrNoRows {
		if appErr := database.MapPQError(err); appErr != nil {
			return nil, false, appErr
		}
		return nil, false, err
	}

	existing, err := r.GetByEmpAndDate(ctx, empID, logicalDate)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.Internal("attendance row vanished after conflicting insert")
	}
	return existing, false, nil
}

// PunchInUpdate stamps the punch-in side of a row. It only succeeds when the
// row is still Absent (punch_in_time IS NULL), giving the UPDATE itself the
// concurrency-safety property described in §5.
func (r *AttendanceRepository) PunchInUpdate(ctx context.Context, attendanceID int64, u PunchInFields) (bool, error) {
	query := `
		UPDATE attendance
		SET punch_in_time = $2, punch_in_image_ref = $3,
		    latitude_in = $4, longitude_in = $5, in_address = $6,
		    punched_in_by = $7
		WHERE attendance_id = $1 AND punch_in_time IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, attendanceID, u.At, u.ImageRef, u.Lat, u.Lng, u.Address, u.ActorID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// PunchOutUpdate stamps the punch-out side of a row. It only succeeds when
// the row is still PunchedIn (punch_in_time set, punch_out_time NULL).
func (r *AttendanceRepository) PunchOutUpdate(ctx context.Context, attendanceID int64, u PunchOutFields) (bool, error) {
	query := `
		UPDATE attendance
		SET punch_out_time = $2, punch_out_image_ref = $3,
		    latitude_out = $4, longitude_out = $5, out_address = $6,
		    punched_out_by = $7, duration = $8
		WHERE attendance_id = $1 AND punch_in_time IS NOT NULL AND punch_out_time IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, attendanceID, u.At, u.ImageRef, u.Lat, u.Lng, u.Address, u.ActorID, u.DurationSeconds)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// PunchInFields carries the columns stamped by PunchInUpdate.
type PunchInFields struct {
	At       time.Time
	ImageRef *string
	Lat      *float64
	Lng      *float64
	Address  *string
	ActorID  *string
}

// PunchOutFields carries the columns stamped by PunchOutUpdate.
type PunchOutFields struct {
	At              time.Time
	ImageRef        *string
	Lat             *float64
	Lng             *float64
	Address         *string
	ActorID         *string
	DurationSeconds int64
}
