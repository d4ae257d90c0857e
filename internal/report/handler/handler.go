// Package handler exposes the Report Engine over HTTP (§6):
// /attendance/download and /attendance/short-report.
package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldpunch/attendance-backend/internal/rbac"
	"github.com/fieldpunch/attendance-backend/internal/report/engine"
	"github.com/fieldpunch/attendance-backend/pkg/database"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
)

// Handler serves the reporting endpoints.
type Handler struct {
	engine *engine.Engine
	db     *database.DB
}

// NewHandler creates a new report handler.
func NewHandler(eng *engine.Engine, db *database.DB) *Handler {
	return &Handler{engine: eng, db: db}
}

func strParam(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}

func int64Param(r *http.Request, name string) *int64 {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &id
}

func boolParam(r *http.Request, name string) *bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func filtersFromQuery(r *http.Request) engine.Filters {
	return engine.Filters{
		Date:           strParam(r, "date"),
		StartDate:      strParam(r, "start_date"),
		EndDate:        strParam(r, "end_date"),
		ZoneID:         int64Param(r, "zone_id"),
		WardID:         int64Param(r, "ward_id"),
		CityID:         int64Param(r, "city_id"),
		SupervisorID:   strParam(r, "supervisor_id"),
		EmployeeID:     int64Param(r, "employee_id"),
		EmpCode:        strParam(r, "emp_code"),
		ZoneName:       strParam(r, "zoneName"),
		WardName:       strParam(r, "wardName"),
		CityName:       strParam(r, "cityName"),
		SupervisorName: strParam(r, "supervisorName"),
		Search:         strParam(r, "search"),
		Location:       strParam(r, "location"),
		HasPunchIn:     boolParam(r, "has_punch_in"),
		HasPunchOut:    boolParam(r, "has_punch_out"),
		AbsenteesOnly:  r.URL.Query().Get("absentees_only") == "true",
	}
}

// Download handles GET /attendance/download?format=csv|json&group_by=...
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	groupBy := r.URL.Query().Get("group_by")
	if groupBy == "" {
		groupBy = "detail"
	}
	locationType := r.URL.Query().Get("location_type")
	if locationType == "" {
		locationType = "both"
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	scope := rbac.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.Error(w, fpErrors.Forbidden("no city scope resolved for this request"))
		return
	}

	filters := filtersFromQuery(r)

	result, err := h.engine.Run(r.Context(), groupBy, locationType, filters, scope.City)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	switch format {
	case "json":
		body, err := result.RenderJSON(filters)
		if err != nil {
			httputil.Error(w, fpErrors.Internal("could not render report"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	default:
		body, err := result.RenderCSV()
		if err != nil {
			httputil.Error(w, fpErrors.Internal("could not render report"))
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", engine.Filename(groupBy, time.Now())))
		w.Write(body)
	}
}

// ShortReport handles GET /attendance/short-report: per-ward present vs
// registered tallies, scoped by city/zone name.
func (h *Handler) ShortReport(w http.ResponseWriter, r *http.Request) {
	scope := rbac.ScopeFromContext(r.Context())
	if scope == nil {
		httputil.Error(w, fpErrors.Forbidden("no city scope resolved for this request"))
		return
	}

	filters := engine.Filters{
		CityName: strParam(r, "cityName"),
		ZoneName: strParam(r, "zoneName"),
		Date:     strParam(r, "date"),
	}

	result, err := h.engine.Run(r.Context(), "ward_summary", "both", filters, scope.City)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}
