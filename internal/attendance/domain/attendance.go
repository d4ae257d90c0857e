// Package domain holds the Attendance entity and its state-machine types,
// per spec §3 and §4.3.
package domain

import "time"

// Status is the derived state of an attendance row.
type Status string

const (
	StatusAbsent    Status = "absent"
	StatusPunchedIn Status = "punched_in"
	StatusCompleted Status = "completed"
)

// PunchType distinguishes the two punch events.
type PunchType string

const (
	PunchIn  PunchType = "IN"
	PunchOut PunchType = "OUT"
)

// Attendance is the per-(employee, logical-date) record.
type Attendance struct {
	AttendanceID int64   `json:"attendance_id" db:"attendance_id"`
	EmpID        int64   `json:"emp_id" db:"emp_id"`
	LogicalDate  string  `json:"logical_date" db:"logical_date"` // YYYY-MM-DD
	WardID       int64   `json:"ward_id" db:"ward_id"`

	PunchInTime  *time.Time `json:"punch_in_time,omitempty" db:"punch_in_time"`
	PunchOutTime *time.Time `json:"punch_out_time,omitempty" db:"punch_out_time"`

	PunchInImageRef  *string `json:"punch_in_image_ref,omitempty" db:"punch_in_image_ref"`
	PunchOutImageRef *string `json:"punch_out_image_ref,omitempty" db:"punch_out_image_ref"`

	LatitudeIn   *float64 `json:"latitude_in,omitempty" db:"latitude_in"`
	LongitudeIn  *float64 `json:"longitude_in,omitempty" db:"longitude_in"`
	LatitudeOut  *float64 `json:"latitude_out,omitempty" db:"latitude_out"`
	LongitudeOut *float64 `json:"longitude_out,omitempty" db:"longitude_out"`

	InAddress  *string `json:"in_address,omitempty" db:"in_address"`
	OutAddress *string `json:"out_address,omitempty" db:"out_address"`

	Duration *int64 `json:"duration,omitempty" db:"duration"` // seconds

	PunchedInBy  *string `json:"punched_in_by,omitempty" db:"punched_in_by"`
	PunchedOutBy *string `json:"punched_out_by,omitempty" db:"punched_out_by"`
}

// Status derives the current state per §4.3.
func (a *Attendance) Status() Status {
	if a.PunchInTime == nil {
		return StatusAbsent
	}
	if a.PunchOutTime == nil {
		return StatusPunchedIn
	}
	return StatusCompleted
}

// GeoPoint is a captured punch location.
type GeoPoint struct {
	Lat     *float64
	Lng     *float64
	Address *string
}
