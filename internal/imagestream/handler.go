// Package imagestream implements the Image Streaming Proxy (§4.6):
// classifying a stored attendance-image reference and streaming its bytes
// back through with the origin's content type.
package imagestream

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/fieldpunch/attendance-backend/internal/attendance/domain"
	"github.com/fieldpunch/attendance-backend/internal/attendance/repository"
	"github.com/fieldpunch/attendance-backend/internal/objectstore"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

// Handler serves GET /app/attendance/employee/image.
type Handler struct {
	attendance *repository.AttendanceRepository
	store      *objectstore.Router
	http       *http.Client
	log        *logger.Logger
}

// NewHandler creates a new image-streaming handler.
func NewHandler(attendance *repository.AttendanceRepository, store *objectstore.Router, log *logger.Logger) *Handler {
	return &Handler{attendance: attendance, store: store, http: &http.Client{}, log: log}
}

// ServeImage streams the punch-in or punch-out image for an attendance row.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	attendanceIDStr := r.URL.Query().Get("attendance_id")
	punchType := r.URL.Query().Get("punch_type")

	attendanceID, err := strconv.ParseInt(attendanceIDStr, 10, 64)
	if err != nil {
		httputil.Error(w, fpErrors.BadRequest("attendance_id must be an integer"))
		return
	}

	row, err := h.attendance.GetByID(r.Context(), attendanceID)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if row == nil {
		httputil.Error(w, fpErrors.NotFound("attendance record"))
		return
	}

	var ref *string
	switch punchType {
	case string(domain.PunchIn), "in":
		ref = row.PunchInImageRef
	case string(domain.PunchOut), "out":
		ref = row.PunchOutImageRef
	default:
		httputil.Error(w, fpErrors.BadRequest("punch_type must be IN or OUT"))
		return
	}
	if ref == nil || *ref == "" {
		httputil.Error(w, fpErrors.NotFound("image"))
		return
	}

	kind := h.store.Classify(*ref)
	if kind == objectstore.KindExternalHTTP {
		h.streamExternal(w, r, *ref)
		return
	}

	obj, err := h.store.Get(r.Context(), *ref)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	defer obj.Body.Close()

	h.stream(w, obj.Body, obj.ContentType, basename(*ref))
}

func (h *Handler) streamExternal(w http.ResponseWriter, r *http.Request, ref string) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, ref, nil)
	if err != nil {
		httputil.Error(w, fpErrors.Internal("unable to build upstream image request"))
		return
	}

	resp, err := h.http.Do(req)
	if err != nil {
		httputil.Error(w, fpErrors.Upstream("image origin unreachable"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		httputil.Error(w, fpErrors.NotFound("image"))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	h.stream(w, resp.Body, contentType, basename(ref))
}

func (h *Handler) stream(w http.ResponseWriter, body io.Reader, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.Warn().Err(err).Msg("image stream interrupted")
	}
}

func basename(ref string) string {
	for i := len(ref) - 1; i >= 0; i-- {
		if ref[i] == '/' {
			return ref[i+1:]
		}
	}
	return ref
}
