package repository

import (
	"context"

	"github.com/lib/pq"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/pkg/database"
)

// LocationRepository reads the city/zone/ward hierarchy, scope-filterable by
// the caller's resolved city/zone scope.
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// ListCities returns cities, optionally restricted to a set of ids.
// A nil cityIDs means unrestricted ("all" scope).
func (r *LocationRepository) ListCities(ctx context.Context, cityIDs []int64) ([]domain.City, error) {
	var cities []domain.City
	if cityIDs == nil {
		err := r.db.SelectContext(ctx, &cities, `SELECT id, name FROM cities ORDER BY name`)
		return cities, err
	}
	if len(cityIDs) == 0 {
		return cities, nil
	}
	err := r.db.SelectContext(ctx, &cities,
		`SELECT id, name FROM cities WHERE id = ANY($1) ORDER BY name`, pq.Array(cityIDs))
	return cities, err
}

// ListZones returns zones, optionally restricted to a set of ids.
func (r *LocationRepository) ListZones(ctx context.Context, zoneIDs []int64) ([]domain.Zone, error) {
	var zones []domain.Zone
	if zoneIDs == nil {
		err := r.db.SelectContext(ctx, &zones, `SELECT id, city_id, name FROM zones ORDER BY name`)
		return zones, err
	}
	if len(zoneIDs) == 0 {
		return zones, nil
	}
	err := r.db.SelectContext(ctx, &zones,
		`SELECT id, city_id, name FROM zones WHERE id = ANY($1) ORDER BY name`, pq.Array(zoneIDs))
	return zones, err
}

// ListWardsByZones returns wards belonging to the given zones.
func (r *LocationRepository) ListWardsByZones(ctx context.Context, zoneIDs []int64) ([]domain.Ward, error) {
	var wards []domain.Ward
	err := r.db.SelectContext(ctx, &wards,
		`SELECT id, zone_id, name FROM wards WHERE zone_id = ANY($1) ORDER BY name`, pq.Array(zoneIDs))
	return wards, err
}

// SupervisorWardIDs returns the ward ids a supervisor has been assigned.
func (r *LocationRepository) SupervisorWardIDs(ctx context.Context, supervisorID string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT ward_id FROM supervisor_wards WHERE supervisor_id = $1`, supervisorID)
	return ids, err
}

// ListDepartments returns the distinct department names assigned to users.
func (r *LocationRepository) ListDepartments(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names,
		`SELECT DISTINCT department FROM users WHERE department IS NOT NULL ORDER BY department`)
	return names, err
}

// ListDesignations returns every employee designation.
func (r *LocationRepository) ListDesignations(ctx context.Context) ([]domain.Designation, error) {
	var designations []domain.Designation
	err := r.db.SelectContext(ctx, &designations, `SELECT id, name FROM designations ORDER BY name`)
	return designations, err
}
