// Package handler exposes the Punch Pipeline over the mobile HTTP surface
// (§6): get-or-create, multipart punch, face-verified punch, enrolment.
package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	attdomain "github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	attservice "github.com/fieldpunch/attendance-backend/internal/attendance/service"
	"github.com/fieldpunch/attendance-backend/internal/imaging"
	"github.com/fieldpunch/attendance-backend/internal/objectstore"
	"github.com/fieldpunch/attendance-backend/internal/punch/service"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 12 << 20 // 12MB, generous for a single phone-camera JPEG

// Handler serves the mobile attendance endpoints.
type Handler struct {
	attendance *attservice.Service
	pipeline   *service.Pipeline
	store      *objectstore.Router
}

// NewHandler creates a new punch handler.
func NewHandler(attendance *attservice.Service, pipeline *service.Pipeline, store *objectstore.Router) *Handler {
	return &Handler{attendance: attendance, pipeline: pipeline, store: store}
}

type getOrCreateRequest struct {
	EmpID  int64 `json:"emp_id" validate:"required"`
	WardID int64 `json:"ward_id" validate:"required"`
}

// GetOrCreate handles POST /app/attendance/employee/ and POST /attendance:
// returns today's attendance row, creating an Absent one if needed.
func (h *Handler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req getOrCreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.EmpID == 0 || req.WardID == 0 {
		httputil.Error(w, fpErrors.BadRequest("emp_id and ward_id are required"))
		return
	}

	row, created, err := h.attendance.GetOrCreate(r.Context(), req.EmpID, req.WardID, time.Now())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if !created {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{"message": "Record exists, skipping", "attendance": row})
		return
	}
	httputil.Created(w, row)
}

type geoFields struct {
	lat, lng *float64
	address  *string
}

func parseGeo(r *http.Request) geoFields {
	var g geoFields
	if v := r.FormValue("lat"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			g.lat = &f
		}
	}
	if v := r.FormValue("lng"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			g.lng = &f
		}
	}
	if v := strings.TrimSpace(r.FormValue("address")); v != "" {
		g.address = &v
	}
	return g
}

func readUploadedImage(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, fpErrors.BadRequest("missing " + field + " image")
	}
	defer file.Close()
	return io.ReadAll(file)
}

// Punch handles PUT /app/attendance/employee/ (multipart): a
// non-face-verified punch identified by emp_id in the form body.
func (h *Handler) Punch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.Error(w, fpErrors.BadRequest("could not parse multipart form"))
		return
	}

	empID, err := strconv.ParseInt(r.FormValue("emp_id"), 10, 64)
	if err != nil {
		httputil.Error(w, fpErrors.BadRequest("emp_id is required"))
		return
	}
	wardID, _ := strconv.ParseInt(r.FormValue("ward_id"), 10, 64)
	punchType := strings.ToUpper(r.FormValue("punch_type"))
	if punchType != string(attdomain.PunchIn) && punchType != string(attdomain.PunchOut) {
		httputil.Error(w, fpErrors.BadRequest("punch_type must be IN or OUT"))
		return
	}

	geo := parseGeo(r)
	now := time.Now()

	var imageRef *string
	if _, _, err := r.FormFile("image"); err == nil {
		data, err := readUploadedImage(r, "image")
		if err != nil {
			httputil.Error(w, err)
			return
		}
		key := imaging.ImageKey(now, imaging.Slug(strconv.FormatInt(empID, 10)), imaging.Slug(manualLocationLabel(geo)), punchType)
		ref, err := h.store.Put(r.Context(), key, data, "image/jpeg")
		if err != nil {
			httputil.Error(w, err)
			return
		}
		imageRef = &ref
	}

	input := attservice.PunchInput{
		Now:      now,
		Geo:      attdomain.GeoPoint{Lat: geo.lat, Lng: geo.lng, Address: geo.address},
		ImageRef: imageRef,
	}

	var row *attdomain.Attendance
	if punchType == string(attdomain.PunchIn) {
		row, err = h.attendance.PunchIn(r.Context(), empID, wardID, input)
	} else {
		row, err = h.attendance.PunchOut(r.Context(), empID, input)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, row)
}

// FaceAttendance handles POST /app/attendance/employee/face-attendance
// (multipart): a face-verified punch in single or group mode.
func (h *Handler) FaceAttendance(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.Error(w, fpErrors.BadRequest("could not parse multipart form"))
		return
	}

	image, err := readUploadedImage(r, "image")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	punchType := strings.ToUpper(r.FormValue("punch_type"))
	if punchType != string(attdomain.PunchIn) && punchType != string(attdomain.PunchOut) {
		httputil.Error(w, fpErrors.BadRequest("punch_type must be IN or OUT"))
		return
	}

	groupMode := r.FormValue("group_mode") == "true"
	geo := parseGeo(r)

	var actorID *string
	if v := r.FormValue("actor_id"); v != "" {
		actorID = &v
	}

	in := service.Input{
		PunchType: attdomain.PunchType(punchType),
		Image:     image,
		Geo:       attdomain.GeoPoint{Lat: geo.lat, Lng: geo.lng, Address: geo.address},
		ActorID:   actorID,
		Now:       time.Now(),
	}

	if groupMode {
		result, err := h.pipeline.PunchGroup(r.Context(), in)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, result)
		return
	}

	result, err := h.pipeline.PunchSingle(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// StoreFace handles POST .../faceRoutes/store-face (multipart): enrolment.
func (h *Handler) StoreFace(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.Error(w, fpErrors.BadRequest("could not parse multipart form"))
		return
	}

	empID, err := strconv.ParseInt(r.FormValue("emp_id"), 10, 64)
	if err != nil {
		httputil.Error(w, fpErrors.BadRequest("emp_id is required"))
		return
	}

	image, err := readUploadedImage(r, "image")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.pipeline.Enroll(r.Context(), empID, image); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"message": "face enrolled"})
}

// RemoveFace handles DELETE .../faceRoutes/:empId.
func (h *Handler) RemoveFace(w http.ResponseWriter, r *http.Request) {
	empID, err := strconv.ParseInt(chi.URLParam(r, "empId"), 10, 64)
	if err != nil {
		httputil.Error(w, fpErrors.BadRequest("empId must be an integer"))
		return
	}
	if err := h.pipeline.Unenroll(r.Context(), empID); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

func manualLocationLabel(geo geoFields) string {
	if geo.address != nil && *geo.address != "" {
		return *geo.address
	}
	return "unknown-location"
}
