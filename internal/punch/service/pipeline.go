// Package service implements the Punch Pipeline (§4.4): normalise,
// identify, verify, transition, persist, record.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	attdomain "github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	attservice "github.com/fieldpunch/attendance-backend/internal/attendance/service"
	"github.com/fieldpunch/attendance-backend/internal/faceservice"
	identitydomain "github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/imaging"
	"github.com/fieldpunch/attendance-backend/internal/objectstore"
	punchdomain "github.com/fieldpunch/attendance-backend/internal/punch/domain"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
	"github.com/fieldpunch/attendance-backend/pkg/messaging"
)

// Pipeline wires together the collaborators the punch pipeline needs:
// employee lookup, the attendance state machine, the face adapter, image
// persistence, and event publication.
type Pipeline struct {
	employees  *repository.EmployeeRepository
	users      *repository.UserRepository // may be nil; used only to validate an assisted-punch actor id
	attendance *attservice.Service
	faces      faceservice.Adapter
	store      *objectstore.Router
	events     *messaging.Publisher // may be nil
	threshold  float64
	log        *logger.Logger
}

// New creates a new punch pipeline.
func New(employees *repository.EmployeeRepository, users *repository.UserRepository, attendance *attservice.Service, faces faceservice.Adapter, store *objectstore.Router, events *messaging.Publisher, threshold float64, log *logger.Logger) *Pipeline {
	return &Pipeline{employees: employees, users: users, attendance: attendance, faces: faces, store: store, events: events, threshold: threshold, log: log}
}

// Input carries the inputs common to both single and group mode, per
// §4.4's stated inputs.
type Input struct {
	PunchType attdomain.PunchType
	Image     []byte
	Geo       attdomain.GeoPoint
	ActorID   *string
	Now       time.Time
}

// PunchSingle runs the full pipeline in single mode: search the gallery
// with the full frame, verify against the enrolled reference, transition,
// persist, and record.
func (p *Pipeline) PunchSingle(ctx context.Context, in Input) (*punchdomain.SingleResult, error) {
	normalized, err := imaging.Normalize(in.Image)
	if err != nil {
		return nil, errors.Unprocessable("could not process image")
	}

	matches, err := p.faces.Search(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Unauthorized("no face matched above threshold")
	}
	best := matches[0]

	emp, err := p.resolveEmployee(ctx, best.FaceID)
	if err != nil {
		return nil, err
	}

	similarity, err := p.verify(ctx, emp, normalized)
	if err != nil {
		return nil, err
	}

	row, err := p.transitionAndPersist(ctx, emp, in, normalized)
	if err != nil {
		return nil, err
	}

	stamp := stampFor(row, in.PunchType)
	return &punchdomain.SingleResult{
		Success:      true,
		EmployeeID:   emp.EmpID,
		EmployeeName: emp.Name,
		Similarity:   similarity,
		AttendanceID: row.AttendanceID,
		PunchedAt:    stamp,
		Status:       string(row.Status()),
	}, nil
}

// PunchGroup runs group mode: detect every face, crop and search each one,
// suppress duplicate employees within the frame, and accumulate per-face
// outcomes rather than failing the whole batch on an individual rejection.
func (p *Pipeline) PunchGroup(ctx context.Context, in Input) (*punchdomain.GroupResult, error) {
	normalized, err := imaging.Normalize(in.Image)
	if err != nil {
		return nil, errors.Unprocessable("could not process image")
	}

	detections, err := p.faces.Detect(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		return nil, errors.Unprocessable("no face detected")
	}

	results := make([]punchdomain.FaceResult, 0, len(detections))
	seen := make(map[int64]bool)
	punched := 0

	for idx, det := range detections {
		result := punchdomain.FaceResult{FaceIndex: idx}

		crop, err := imaging.PaddedCrop(normalized, det.Box)
		if err != nil {
			result.Status = punchdomain.FaceStatusError
			result.Message = strPtr(err.Error())
			results = append(results, result)
			continue
		}

		matches, err := p.faces.Search(ctx, crop)
		if err != nil || len(matches) == 0 {
			result.Status = punchdomain.FaceStatusUnmatched
			results = append(results, result)
			continue
		}

		emp, err := p.resolveEmployee(ctx, matches[0].FaceID)
		if err != nil {
			result.Status = punchdomain.FaceStatusUnmatched
			results = append(results, result)
			continue
		}

		if seen[emp.EmpID] {
			result.Status = punchdomain.FaceStatusDuplicate
			result.EmployeeID = &emp.EmpID
			result.EmployeeName = &emp.Name
			results = append(results, result)
			continue
		}
		seen[emp.EmpID] = true

		similarity, err := p.verify(ctx, emp, crop)
		if err != nil {
			result.Status = punchdomain.FaceStatusSkipped
			result.EmployeeID = &emp.EmpID
			result.EmployeeName = &emp.Name
			result.Message = strPtr(err.Error())
			results = append(results, result)
			continue
		}

		row, err := p.transitionAndPersist(ctx, emp, in, crop)
		if err != nil {
			result.Status = punchdomain.FaceStatusSkipped
			result.EmployeeID = &emp.EmpID
			result.EmployeeName = &emp.Name
			result.Message = strPtr(err.Error())
			results = append(results, result)
			continue
		}

		stamp := stampFor(row, in.PunchType)
		result.Status = punchdomain.FaceStatusPunched
		result.EmployeeID = &emp.EmpID
		result.EmployeeName = &emp.Name
		result.Similarity = &similarity
		result.AttendanceID = &row.AttendanceID
		result.PunchedAt = &stamp
		results = append(results, result)
		punched++
	}

	return &punchdomain.GroupResult{
		Success:      punched > 0,
		TotalFaces:   len(detections),
		PunchedCount: punched,
		Results:      results,
	}, nil
}

// resolveEmployee prefers Employee.face_id resolution, per §4.4 step 2.
func (p *Pipeline) resolveEmployee(ctx context.Context, faceID string) (*identitydomain.Employee, error) {
	emp, err := p.employees.GetByFaceID(ctx, faceID)
	if err == nil {
		return emp, nil
	}
	return p.employees.GetByEmpCode(ctx, faceID)
}

// verify fetches the enrolled reference and runs a pairwise compare against
// the captured frame, per §4.4 step 3.
func (p *Pipeline) verify(ctx context.Context, emp *identitydomain.Employee, captured []byte) (float64, error) {
	if !emp.IsEnrolled() {
		return 0, errors.PreconditionFailed("face enrollment missing")
	}

	reference, err := p.store.Get(ctx, *emp.FaceEmbeddingRef)
	if err != nil {
		return 0, errors.PreconditionFailed("face enrollment missing")
	}
	defer reference.Body.Close()

	referenceBytes, err := io.ReadAll(reference.Body)
	if err != nil {
		return 0, errors.Internal("could not read enrolled reference image")
	}

	similarity, err := p.faces.Compare(ctx, referenceBytes, captured)
	if err != nil {
		return 0, err
	}
	if similarity < p.threshold {
		return 0, errors.Unauthorized("no face matched above threshold")
	}
	return similarity, nil
}

// transitionAndPersist runs §4.3's state transition, uploads the captured
// image at its deterministic key, and stamps the resulting reference and
// geo onto the row.
func (p *Pipeline) transitionAndPersist(ctx context.Context, emp *identitydomain.Employee, in Input, captured []byte) (*attdomain.Attendance, error) {
	now := in.Now
	key := imaging.ImageKey(now, imaging.Slug(emp.Name), imaging.Slug(locationLabel(in.Geo)), string(in.PunchType))

	ref, err := p.store.Put(ctx, key, captured, "image/jpeg")
	if err != nil {
		return nil, errors.Upstream("image upload failed")
	}

	actorID := p.checkActor(ctx, in.ActorID)

	punchIn := attservice.PunchInput{
		Now:      now,
		Geo:      in.Geo,
		ImageRef: &ref,
		ActorID:  actorID,
	}

	var row *attdomain.Attendance
	if in.PunchType == attdomain.PunchIn {
		row, err = p.attendance.PunchIn(ctx, emp.EmpID, emp.WardID, punchIn)
	} else {
		row, err = p.attendance.PunchOut(ctx, emp.EmpID, punchIn)
	}
	if err != nil {
		return nil, err
	}

	p.publishPunchEvent(ctx, emp, row, in.PunchType)
	return row, nil
}

// checkActor validates an assisted-punch actor id against the user table
// and returns the id to store as the audit actor. An id that does not
// resolve is logged at warn level and replaced by nil, so the punch still
// proceeds with a null actor. Without a user repository the id is returned
// unchecked.
func (p *Pipeline) checkActor(ctx context.Context, actorID *string) *string {
	if actorID == nil || p.users == nil {
		return actorID
	}
	if _, err := p.users.GetByID(ctx, *actorID); err != nil {
		p.log.Warn().Err(err).Str("actor_id", *actorID).Msg("audit actor unresolved")
		return nil
	}
	return actorID
}

func (p *Pipeline) publishPunchEvent(ctx context.Context, emp *identitydomain.Employee, row *attdomain.Attendance, punchType attdomain.PunchType) {
	if p.events == nil {
		return
	}
	eventType := messaging.EventPunchIn
	if punchType == attdomain.PunchOut {
		eventType = messaging.EventPunchOut
	}
	payload := map[string]interface{}{
		"emp_id":        emp.EmpID,
		"attendance_id": row.AttendanceID,
		"logical_date":  row.LogicalDate,
	}
	if err := p.events.Publish(ctx, eventType, payload); err != nil {
		p.log.Warn().Err(err).Msg("failed to publish punch event")
	}
}

// Enroll stores an employee's reference image and indexes it in the face
// gallery under a face id derived from their employee id ("emp-<id>").
func (p *Pipeline) Enroll(ctx context.Context, empID int64, image []byte) error {
	emp, err := p.employees.GetByID(ctx, empID)
	if err != nil {
		return err
	}

	normalized, err := imaging.Normalize(image)
	if err != nil {
		return errors.Unprocessable("could not process image")
	}

	faceID := fmt.Sprintf("emp-%d", emp.EmpID)
	if err := p.faces.Index(ctx, faceID, normalized); err != nil {
		return err
	}

	key := fmt.Sprintf("enrolment/%s/%s.jpg", imaging.Slug(emp.EmpCode), faceID)
	ref, err := p.store.Put(ctx, key, normalized, "image/jpeg")
	if err != nil {
		return errors.Upstream("image upload failed")
	}

	return p.employees.SetEnrolment(ctx, empID, ref, faceID, p.threshold)
}

// Unenroll removes an employee's face-gallery entry and clears their
// enrolment columns, per invariant 5.
func (p *Pipeline) Unenroll(ctx context.Context, empID int64) error {
	emp, err := p.employees.GetByID(ctx, empID)
	if err != nil {
		return err
	}
	if emp.FaceID != nil {
		if err := p.faces.Deindex(ctx, *emp.FaceID); err != nil {
			return err
		}
	}
	return p.employees.ClearEnrolment(ctx, empID)
}

func stampFor(row *attdomain.Attendance, punchType attdomain.PunchType) time.Time {
	if punchType == attdomain.PunchIn && row.PunchInTime != nil {
		return *row.PunchInTime
	}
	if row.PunchOutTime != nil {
		return *row.PunchOutTime
	}
	return time.Time{}
}

func locationLabel(geo attdomain.GeoPoint) string {
	if geo.Address != nil && *geo.Address != "" {
		return *geo.Address
	}
	return "unknown-location"
}

func strPtr(s string) *string { return &s }
