// Package service implements the Attendance State Machine (§4.3): logical
// date resolution with night-shift rollover, get-or-create, and the
// punch(IN)/punch(OUT) transitions with carry-forward.
package service

import (
	"context"
	"time"

	attdomain "github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	"github.com/fieldpunch/attendance-backend/internal/attendance/repository"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// Service implements the attendance state machine.
type Service struct {
	repo         *repository.AttendanceRepository
	timezone     *time.Location
	rolloverHour int
}

// NewService creates a new attendance service. rolloverHour must be in
// 0..23; timezone is the location logical dates are computed in and must
// not be nil.
func NewService(repo *repository.AttendanceRepository, timezone *time.Location, rolloverHour int) *Service {
	return &Service{repo: repo, timezone: timezone, rolloverHour: rolloverHour}
}

// LogicalDate derives the calendar date `now` is attributed to per §3
// invariant 3 / §4.3: events before the rollover hour are attributed to the
// previous calendar date. The comparison is strict (`<`), so a punch at
// exactly the rollover hour belongs to the new day.
func (s *Service) LogicalDate(now time.Time) string {
	local := now.In(s.timezone)
	if local.Hour() < s.rolloverHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format("2006-01-02")
}

// GetOrCreate returns today's (or the caller-supplied instant's) attendance
// row for an employee, creating an Absent one if none exists yet.
func (s *Service) GetOrCreate(ctx context.Context, empID, wardID int64, now time.Time) (*attdomain.Attendance, bool, error) {
	logicalDate := s.LogicalDate(now)
	return s.repo.GetOrCreate(ctx, empID, logicalDate, wardID)
}

// PunchInput carries the fields common to both punch directions.
type PunchInput struct {
	Now      time.Time
	Geo      attdomain.GeoPoint
	ImageRef *string
	ActorID  *string // nil for self-service punches
}

// PunchIn transitions Absent → PunchedIn. Reject cases per §4.3's transition
// table: PunchedIn/Completed reject with "already punched in".
func (s *Service) PunchIn(ctx context.Context, empID, wardID int64, in PunchInput) (*attdomain.Attendance, error) {
	logicalDate := s.LogicalDate(in.Now)

	row, _, err := s.repo.GetOrCreate(ctx, empID, logicalDate, wardID)
	if err != nil {
		return nil, err
	}

	switch row.Status() {
	case attdomain.StatusPunchedIn, attdomain.StatusCompleted:
		return nil, errors.BadRequest("already punched in")
	}

	ok, err := s.repo.PunchInUpdate(ctx, row.AttendanceID, repository.PunchInFields{
		At:       in.Now,
		ImageRef: in.ImageRef,
		Lat:      in.Geo.Lat,
		Lng:      in.Geo.Lng,
		Address:  in.Geo.Address,
		ActorID:  in.ActorID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another request won the race between GetOrCreate and the UPDATE,
		// so the row is already punched in; report that without re-reading.
		return nil, errors.BadRequest("already punched in")
	}

	return s.repo.GetByEmpAndDate(ctx, empID, logicalDate)
}

// PunchOut transitions PunchedIn → Completed, resolving the target row per
// §4.3's carry-forward rule: look at today's logical date first, then the
// most recent open record within [date-1, date].
func (s *Service) PunchOut(ctx context.Context, empID int64, in PunchInput) (*attdomain.Attendance, error) {
	logicalDate := s.LogicalDate(in.Now)

	row, err := s.repo.GetByEmpAndDate(ctx, empID, logicalDate)
	if err != nil {
		return nil, err
	}

	if row == nil || row.PunchInTime == nil {
		priorDate := addDays(logicalDate, -1)
		carryForward, err := s.repo.FindOpenCarryForward(ctx, empID, priorDate, logicalDate)
		if err != nil {
			return nil, err
		}
		if carryForward == nil {
			return nil, errors.BadRequest("must punch in first")
		}
		row = carryForward
	}

	switch row.Status() {
	case attdomain.StatusAbsent:
		return nil, errors.BadRequest("must punch in first")
	case attdomain.StatusCompleted:
		return nil, errors.BadRequest("already punched out")
	}

	duration := int64(in.Now.Sub(*row.PunchInTime).Seconds())
	if duration < 0 {
		duration = 0
	}

	ok, err := s.repo.PunchOutUpdate(ctx, row.AttendanceID, repository.PunchOutFields{
		At:              in.Now,
		ImageRef:        in.ImageRef,
		Lat:             in.Geo.Lat,
		Lng:             in.Geo.Lng,
		Address:         in.Geo.Address,
		ActorID:         in.ActorID,
		DurationSeconds: duration,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.BadRequest("already punched out")
	}

	return s.repo.GetByEmpAndDate(ctx, empID, row.LogicalDate)
}

func addDays(logicalDate string, days int) string {
	t, err := time.Parse("2006-01-02", logicalDate)
	if err != nil {
		return logicalDate
	}
	return t.AddDate(0, 0, days).Format("2006-01-02")
}
