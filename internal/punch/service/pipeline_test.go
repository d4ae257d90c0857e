package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attdomain "github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	attrepo "github.com/fieldpunch/attendance-backend/internal/attendance/repository"
	attservice "github.com/fieldpunch/attendance-backend/internal/attendance/service"
	"github.com/fieldpunch/attendance-backend/internal/faceservice"
	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/objectstore"
	"github.com/fieldpunch/attendance-backend/internal/punch/service"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

var employeeCols = []string{
	"emp_id", "emp_code", "name", "phone", "ward_id", "designation_id",
	"face_embedding_ref", "face_id", "face_confidence",
}

var userCols = []string{"id", "name", "emp_code", "email", "phone", "primary_role", "department", "password_hash", "created_at", "updated_at"}

var attendanceCols = []string{
	"attendance_id", "emp_id", "logical_date", "ward_id",
	"punch_in_time", "punch_out_time", "punch_in_image_ref", "punch_out_image_ref",
	"latitude_in", "longitude_in", "latitude_out", "longitude_out",
	"in_address", "out_address", "duration", "punched_in_by", "punched_out_by",
}

// fakeFaceAdapter is a hand-written faceservice.Adapter double; each method
// is backed by a function field so a test can wire only the behaviour it
// needs.
type fakeFaceAdapter struct {
	detectFn  func(ctx context.Context, image []byte) ([]faceservice.Detection, error)
	searchFn  func(ctx context.Context, image []byte) ([]faceservice.Match, error)
	compareFn func(ctx context.Context, reference, captured []byte) (float64, error)
	indexFn   func(ctx context.Context, faceID string, image []byte) error
	deindexFn func(ctx context.Context, faceID string) error
}

func (f *fakeFaceAdapter) Detect(ctx context.Context, image []byte) ([]faceservice.Detection, error) {
	return f.detectFn(ctx, image)
}
func (f *fakeFaceAdapter) Search(ctx context.Context, image []byte) ([]faceservice.Match, error) {
	return f.searchFn(ctx, image)
}
func (f *fakeFaceAdapter) Compare(ctx context.Context, reference, captured []byte) (float64, error) {
	return f.compareFn(ctx, reference, captured)
}
func (f *fakeFaceAdapter) Index(ctx context.Context, faceID string, image []byte) error {
	return f.indexFn(ctx, faceID, image)
}
func (f *fakeFaceAdapter) Deindex(ctx context.Context, faceID string) error {
	return f.deindexFn(ctx, faceID)
}

// fakeStore is a hand-written objectstore.Store double backed by an
// in-memory map.
type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ref := "local://" + key
	f.objects[ref] = data
	return ref, nil
}

func (f *fakeStore) Get(ctx context.Context, ref string) (*objectstore.Object, error) {
	data, ok := f.objects[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return &objectstore.Object{Body: io.NopCloser(bytes.NewReader(data)), ContentType: "image/jpeg"}, nil
}

func (f *fakeStore) Classify(ref string) objectstore.Kind {
	return objectstore.KindLocal
}

// pipelineHarness bundles a Pipeline under test with the sqlmock handles for
// its repositories, so a test can script employee and attendance query
// expectations independently.
type pipelineHarness struct {
	pipeline     *service.Pipeline
	employeeDB   sqlmock.Sqlmock
	attendanceDB sqlmock.Sqlmock
	faces        *fakeFaceAdapter
	store        *fakeStore
}

func newPipelineHarness(t *testing.T, threshold float64, withUsers bool) *pipelineHarness {
	t.Helper()
	log := logger.New("test", "test")

	empRaw, empMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { empRaw.Close() })
	empDB := database.NewFromSqlxDB(sqlx.NewDb(empRaw, "postgres"), log)
	employeeRepo := repository.NewEmployeeRepository(empDB)

	var userRepo *repository.UserRepository
	if withUsers {
		userRaw, _, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { userRaw.Close() })
		userDB := database.NewFromSqlxDB(sqlx.NewDb(userRaw, "postgres"), log)
		userRepo = repository.NewUserRepository(userDB)
	}

	attRaw, attMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { attRaw.Close() })
	attDB := database.NewFromSqlxDB(sqlx.NewDb(attRaw, "postgres"), log)
	attendanceRepo := attrepo.NewAttendanceRepository(attDB)
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	attendanceService := attservice.NewService(attendanceRepo, loc, 5)

	faces := &fakeFaceAdapter{}
	store := newFakeStore()
	router := objectstore.NewRouter(nil, nil, store)

	pipeline := service.New(employeeRepo, userRepo, attendanceService, faces, router, nil, threshold, log)

	return &pipelineHarness{pipeline: pipeline, employeeDB: empMock, attendanceDB: attMock, faces: faces, store: store}
}

func fakeJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 6), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func expectEmployeeByFaceID(mock sqlmock.Sqlmock, faceID string, row []driverValue) {
	q := mock.ExpectQuery("FROM employees WHERE face_id = \\$1").WithArgs(faceID)
	if row == nil {
		q.WillReturnRows(sqlmock.NewRows(employeeCols))
		return
	}
	rows := sqlmock.NewRows(employeeCols)
	rows.AddRow(row[0], row[1], row[2], row[3], row[4], row[5], row[6], row[7], row[8])
	q.WillReturnRows(rows)
}

// driverValue is a tiny alias to keep the helper signature above readable.
type driverValue = interface{}

func expectPunchInSequence(mock sqlmock.Sqlmock, empID, wardID int64, logicalDate string, now time.Time) {
	created := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), empID, logicalDate, wardID,
		nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("INSERT INTO attendance").WillReturnRows(created)
	mock.ExpectExec("UPDATE attendance SET punch_in_time").WillReturnResult(sqlmock.NewResult(0, 1))

	final := sqlmock.NewRows(attendanceCols).AddRow(
		int64(1), empID, logicalDate, wardID,
		now, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT (.+) FROM attendance WHERE emp_id = \\$1 AND logical_date = \\$2").WillReturnRows(final)
}

func TestPipeline_PunchSingle_Success(t *testing.T) {
	h := newPipelineHarness(t, 80, false)
	now := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	captured := []byte("captured-frame")
	reference := []byte("reference-frame")

	h.faces.searchFn = func(ctx context.Context, image []byte) ([]faceservice.Match, error) {
		return []faceservice.Match{{FaceID: "emp-7", Similarity: 95}}, nil
	}
	h.faces.compareFn = func(ctx context.Context, ref, cap []byte) (float64, error) {
		assert.Equal(t, reference, ref)
		return 96, nil
	}

	embeddingRef := "local://enrolment/e007/emp-7.jpg"
	h.store.objects[embeddingRef] = reference

	expectEmployeeByFaceID(h.employeeDB, "emp-7", []driverValue{
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, embeddingRef, "emp-7", 92.0,
	})
	expectPunchInSequence(h.attendanceDB, 7, 3, "2026-08-02", now)

	result, err := h.pipeline.PunchSingle(context.Background(), service.Input{
		PunchType: attdomain.PunchIn,
		Image:     captured,
		Now:       now,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(7), result.EmployeeID)
	assert.Equal(t, "Asha Devi", result.EmployeeName)
	assert.Equal(t, float64(96), result.Similarity)
	require.NoError(t, h.employeeDB.ExpectationsWereMet())
	require.NoError(t, h.attendanceDB.ExpectationsWereMet())
}

func TestPipeline_PunchSingle_NoMatchRejected(t *testing.T) {
	h := newPipelineHarness(t, 80, false)

	h.faces.searchFn = func(ctx context.Context, image []byte) ([]faceservice.Match, error) {
		return nil, nil
	}

	_, err := h.pipeline.PunchSingle(context.Background(), service.Input{
		PunchType: attdomain.PunchIn,
		Image:     []byte("captured-frame"),
		Now:       time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no face matched")
}

func TestPipeline_PunchSingle_BelowThresholdRejected(t *testing.T) {
	h := newPipelineHarness(t, 90, false)
	reference := []byte("reference-frame")
	embeddingRef := "local://enrolment/e007/emp-7.jpg"
	h.store.objects[embeddingRef] = reference

	h.faces.searchFn = func(ctx context.Context, image []byte) ([]faceservice.Match, error) {
		return []faceservice.Match{{FaceID: "emp-7", Similarity: 95}}, nil
	}
	h.faces.compareFn = func(ctx context.Context, ref, cap []byte) (float64, error) {
		return 70, nil
	}

	expectEmployeeByFaceID(h.employeeDB, "emp-7", []driverValue{
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, embeddingRef, "emp-7", 92.0,
	})

	_, err := h.pipeline.PunchSingle(context.Background(), service.Input{
		PunchType: attdomain.PunchIn,
		Image:     []byte("captured-frame"),
		Now:       time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no face matched")
	require.NoError(t, h.employeeDB.ExpectationsWereMet())
}

func TestPipeline_PunchSingle_EnrollmentMissing(t *testing.T) {
	h := newPipelineHarness(t, 80, false)

	h.faces.searchFn = func(ctx context.Context, image []byte) ([]faceservice.Match, error) {
		return []faceservice.Match{{FaceID: "emp-7", Similarity: 95}}, nil
	}

	expectEmployeeByFaceID(h.employeeDB, "emp-7", []driverValue{
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, nil, nil, nil,
	})

	_, err := h.pipeline.PunchSingle(context.Background(), service.Input{
		PunchType: attdomain.PunchIn,
		Image:     []byte("captured-frame"),
		Now:       time.Now(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "face enrollment missing")
	require.NoError(t, h.employeeDB.ExpectationsWereMet())
}

func TestPipeline_PunchSingle_UnresolvedActorStillPunches(t *testing.T) {
	h := newPipelineHarness(t, 80, true)
	now := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	reference := []byte("reference-frame")
	embeddingRef := "local://enrolment/e007/emp-7.jpg"
	h.store.objects[embeddingRef] = reference

	h.faces.searchFn = func(ctx context.Context, image []byte) ([]faceservice.Match, error) {
		return []faceservice.Match{{FaceID: "emp-7", Similarity: 95}}, nil
	}
	h.faces.compareFn = func(ctx context.Context, ref, cap []byte) (float64, error) {
		return 96, nil
	}

	expectEmployeeByFaceID(h.employeeDB, "emp-7", []driverValue{
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, embeddingRef, "emp-7", 92.0,
	})
	expectPunchInSequence(h.attendanceDB, 7, 3, "2026-08-02", now)

	actorID := "ghost-user"
	result, err := h.pipeline.PunchSingle(context.Background(), service.Input{
		PunchType: attdomain.PunchIn,
		Image:     []byte("captured-frame"),
		ActorID:   &actorID,
		Now:       now,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestPipeline_Enroll_IndexesAndStores(t *testing.T) {
	h := newPipelineHarness(t, 80, false)

	h.faces.indexFn = func(ctx context.Context, faceID string, image []byte) error {
		assert.Equal(t, "emp-7", faceID)
		return nil
	}

	rows := sqlmock.NewRows(employeeCols).AddRow(
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, nil, nil, nil,
	)
	h.employeeDB.ExpectQuery("FROM employees WHERE emp_id = \\$1").WithArgs(int64(7)).WillReturnRows(rows)
	h.employeeDB.ExpectExec("UPDATE employees").WillReturnResult(sqlmock.NewResult(0, 1))

	err := h.pipeline.Enroll(context.Background(), 7, fakeJPEG(t))
	require.NoError(t, err)
	require.NoError(t, h.employeeDB.ExpectationsWereMet())
}

func TestPipeline_Unenroll_DeindexesAndClears(t *testing.T) {
	h := newPipelineHarness(t, 80, false)

	faceID := "emp-7"
	rows := sqlmock.NewRows(employeeCols).AddRow(
		int64(7), "E007", "Asha Devi", nil, int64(3), nil, "enrolment/e007/emp-7.jpg", faceID, 92.0,
	)
	h.employeeDB.ExpectQuery("FROM employees WHERE emp_id = \\$1").WithArgs(int64(7)).WillReturnRows(rows)

	deindexed := false
	h.faces.deindexFn = func(ctx context.Context, id string) error {
		deindexed = true
		assert.Equal(t, faceID, id)
		return nil
	}

	h.employeeDB.ExpectExec("UPDATE employees").WillReturnResult(sqlmock.NewResult(0, 1))

	err := h.pipeline.Unenroll(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, deindexed)
	require.NoError(t, h.employeeDB.ExpectationsWereMet())
}
