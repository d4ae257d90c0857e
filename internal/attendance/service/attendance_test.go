package service_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldpunch/attendance-backend/internal/attendance/repository"
	"github.com/fieldpunch/attendance-backend/internal/attendance/service"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

var attendanceCols = []string{
	"attendance_id", "emp_id", "logical_date", "ward_id",
	"punch_in_time", "punch_out_time", "punch_in_image_ref", "punch_out_image_ref",
	"latitude_in", "longitude_in", "latitude_out", "longitude_out",
	"in_address", "out_address", "duration", "punched_in_by", "punched_out_by",
}

func newTestService(t *testing.T, rolloverHour int) (*service.Service, sqlmock.Sqlmock) {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	sqlxDB := sqlx.NewDb(rawDB, "postgres")
	db := database.NewFromSqlxDB(sqlxDB, logger.New("test", "test"))
	repo := repository.NewAttendanceRepository(db)

	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	return service.NewService(repo, loc, rolloverHour), mock
}

func TestLogicalDate_RolloverBoundary(t *testing.T) {
	svc, _ := newTestService(t, 5)

	loc, _ := time.LoadLocation("Asia/Kolkata")

	beforeRollover := time.Date(2026, 8, 2, 4, 59, 0, 0, loc)
	assert.Equal(t, "2026-08-01", svc.LogicalDate(beforeRollover))

	atRollover := time.Date(2026, 8, 2, 5, 0, 0, 0, loc)
	assert.Equal(t, "2026-08-02", svc.LogicalDate(atRollover))

	afterRollover := time.Date(2026, 8, 2, 23, 0, 0, 0, loc)
	assert.Equal(t, "2026-08-02", svc.LogicalDate(afterRollover))
}

func TestLogicalDate_ZeroRolloverIsCalendarDay(t *testing.T) {
	svc, _ := newTestService(t, 0)
	loc, _ := time.LoadLocation("Asia/Kolkata")

	midnight := time.Date(2026, 8, 2, 0, 0, 0, 0, loc)
	assert.Equal(t, "2026-08-02", svc.LogicalDate(midnight))
}

func TestPunchIn_CreatesAndStamps(t *testing.T) {
	svc, mock := newTestService(t, 5)
	now := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	createdRows := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), int64(7), "2026-08-02", int64(3),
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("INSERT INTO attendance").WillReturnRows(createdRows)

	mock.ExpectExec("UPDATE attendance SET punch_in_time").WillReturnResult(sqlmock.NewResult(0, 1))

	punchedInAt := now
	finalRows := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), int64(7), "2026-08-02", int64(3),
		punchedInAt, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(finalRows)

	row, err := svc.PunchIn(context.Background(), 7, 3, service.PunchInput{Now: now})
	require.NoError(t, err)
	require.NotNil(t, row.PunchInTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPunchIn_RejectsAlreadyPunchedIn(t *testing.T) {
	svc, mock := newTestService(t, 5)
	now := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)

	alreadyIn := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), int64(7), "2026-08-02", int64(3),
		now.Add(-time.Hour), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("INSERT INTO attendance").WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(alreadyIn)

	_, err := svc.PunchIn(context.Background(), 7, 3, service.PunchInput{Now: now})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already punched in")
}

func TestPunchOut_RejectsWithoutPunchIn(t *testing.T) {
	svc, mock := newTestService(t, 5)
	now := time.Date(2026, 8, 2, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectQuery("SELECT (.+) FROM attendance").
		WillReturnRows(sqlmock.NewRows(attendanceCols))

	_, err := svc.PunchOut(context.Background(), 7, service.PunchInput{Now: now})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must punch in first")
}

func TestPunchOut_CarryForwardAcrossMidnight(t *testing.T) {
	svc, mock := newTestService(t, 5)
	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Date(2026, 8, 2, 2, 0, 0, 0, loc) // before rollover -> logical date 2026-08-01

	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(sqlmock.NewRows(attendanceCols))

	priorPunchIn := now.Add(-8 * time.Hour)
	carryForward := sqlmock.NewRows(attendanceCols).AddRow(
		int64(2), int64(7), "2026-07-31", int64(3),
		priorPunchIn, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("logical_date BETWEEN").WillReturnRows(carryForward)

	mock.ExpectExec("UPDATE attendance SET punch_out_time").WillReturnResult(sqlmock.NewResult(0, 1))

	completedRows := sqlmock.NewRows(attendanceCols).AddRow(
		int64(2), int64(7), "2026-07-31", int64(3),
		priorPunchIn, now, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(completedRows)

	row, err := svc.PunchOut(context.Background(), 7, service.PunchInput{Now: now})
	require.NoError(t, err)
	require.NotNil(t, row.PunchOutTime)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPunchOut_RejectsAlreadyPunchedOut(t *testing.T) {
	svc, mock := newTestService(t, 5)
	now := time.Date(2026, 8, 2, 18, 0, 0, 0, time.UTC)

	completed := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), int64(7), "2026-08-02", int64(3),
		now.Add(-8*time.Hour), now.Add(-time.Minute), nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").
		WillReturnRows(completed)

	_, err := svc.PunchOut(context.Background(), 7, service.PunchInput{Now: now})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already punched out")
}
