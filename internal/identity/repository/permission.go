package repository

import (
	"context"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/pkg/database"
)

// PermissionRow is a single resolved permission edge, whether contributed by
// a role or a direct user grant. CityID is nil when the grant is unscoped
// (applies to all cities) for that (module, action).
type PermissionRow struct {
	Module string `db:"module"`
	Action string `db:"action"`
	CityID *int64 `db:"city_id"`
}

// PermissionRepository reads the role/permission/grant tables that back the
// permission resolver (§4.1) and RBAC admin surface.
type PermissionRepository struct {
	db *database.DB
}

// NewPermissionRepository creates a new permission repository.
func NewPermissionRepository(db *database.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// RolePermissionRows returns every (module, action) a user holds through
// their assigned roles. Role grants are always unscoped (city_id = null),
// matching §4.1's "role→permission rows, contributing (module, action,
// city=null)".
func (r *PermissionRepository) RolePermissionRows(ctx context.Context, userID string) ([]PermissionRow, error) {
	var rows []PermissionRow
	query := `
		SELECT DISTINCT p.module, p.action, NULL::bigint AS city_id
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

// DirectPermissionRows returns every (module, action, city) a user holds
// through direct UserPermission grants.
func (r *PermissionRepository) DirectPermissionRows(ctx context.Context, userID string) ([]PermissionRow, error) {
	var rows []PermissionRow
	query := `
		SELECT p.module, p.action, up.city_id
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
	`
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

// UserCityAccessIDs returns the explicit city ids a user has been granted
// view access to via UserCityAccess.
func (r *PermissionRepository) UserCityAccessIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	query := `SELECT city_id FROM user_city_access WHERE user_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, err
	}
	return ids, nil
}

// UserZoneAccessIDs returns the explicit zone ids a user has been granted
// view access to via UserZoneAccess.
func (r *PermissionRepository) UserZoneAccessIDs(ctx context.Context, userID string) ([]int64, error) {
	var ids []int64
	query := `SELECT zone_id FROM user_zone_access WHERE user_id = $1`
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListPermissions returns every declared permission, for the RBAC admin
// surface's `GET /rbac/permissions`.
func (r *PermissionRepository) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	var permissions []domain.Permission
	query := `SELECT id, module, action, label, description FROM permissions ORDER BY module, action`
	if err := r.db.SelectContext(ctx, &permissions, query); err != nil {
		return nil, err
	}
	return permissions, nil
}

// ListRoles returns every role, for `GET /rbac/roles`.
func (r *PermissionRepository) ListRoles(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	query := `SELECT id, name, description, is_system, created_at, updated_at FROM roles ORDER BY name`
	if err := r.db.SelectContext(ctx, &roles, query); err != nil {
		return nil, err
	}
	return roles, nil
}
