package handler

import (
	"net/http"
	"strconv"

	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/internal/rbac"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
)

// LocationHandler serves the city/zone/ward/department/designation lookup
// endpoints, scoped by the caller's resolved city scope.
type LocationHandler struct {
	locations *repository.LocationRepository
}

// NewLocationHandler creates a new location handler.
func NewLocationHandler(locations *repository.LocationRepository) *LocationHandler {
	return &LocationHandler{locations: locations}
}

// Cities handles GET /cities.
func (h *LocationHandler) Cities(w http.ResponseWriter, r *http.Request) {
	scope := rbac.ScopeFromContext(r.Context())
	var cityIDs []int64
	if scope != nil && !scope.City.All {
		if scope.City.Empty() {
			httputil.Error(w, fpErrors.Forbidden("no city access assigned"))
			return
		}
		cityIDs = scope.City.Cities
	}
	cities, err := h.locations.ListCities(r.Context(), cityIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, cities)
}

// Zones handles GET /zones.
func (h *LocationHandler) Zones(w http.ResponseWriter, r *http.Request) {
	scope := rbac.ScopeFromContext(r.Context())
	var zoneIDs []int64
	if scope != nil && !scope.Zone.All {
		if scope.Zone.Empty() {
			httputil.Error(w, fpErrors.Forbidden("no zone access assigned"))
			return
		}
		zoneIDs = scope.Zone.Cities
	}
	zones, err := h.locations.ListZones(r.Context(), zoneIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, zones)
}

// Wards handles GET /wards?zone_id=&zone_id=.... Requested zone ids are
// narrowed to the caller's zone scope so a supervisor cannot read wards
// belonging to a zone outside their assignment.
func (h *LocationHandler) Wards(w http.ResponseWriter, r *http.Request) {
	zoneIDs, err := parseZoneIDs(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	scope := rbac.ScopeFromContext(r.Context())
	if scope != nil && !scope.Zone.All {
		if scope.Zone.Empty() {
			httputil.Error(w, fpErrors.Forbidden("no zone access assigned"))
			return
		}
		zoneIDs = intersectIDs(zoneIDs, scope.Zone.Cities)
	}

	wards, err := h.locations.ListWardsByZones(r.Context(), zoneIDs)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, wards)
}

// Departments handles GET /departments.
func (h *LocationHandler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.locations.ListDepartments(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, departments)
}

// Designations handles GET /designations.
func (h *LocationHandler) Designations(w http.ResponseWriter, r *http.Request) {
	designations, err := h.locations.ListDesignations(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, designations)
}

// intersectIDs returns the subset of requested that also appears in allowed,
// preserving requested's order.
func intersectIDs(requested, allowed []int64) []int64 {
	allowedSet := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}
	out := make([]int64, 0, len(requested))
	for _, id := range requested {
		if _, ok := allowedSet[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func parseZoneIDs(r *http.Request) ([]int64, error) {
	values := r.URL.Query()["zone_id"]
	if len(values) == 0 {
		return nil, fpErrors.BadRequest("at least one zone_id is required")
	}
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fpErrors.BadRequest("zone_id must be an integer")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
