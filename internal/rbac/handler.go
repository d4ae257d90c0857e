package rbac

import (
	"net/http"

	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
)

// AdminHandler serves the read side of the RBAC admin surface (§6
// `GET /rbac/permissions|roles|users`), gated by `permissions:manage`.
// Mutating role/permission/grant management is bootstrap-seeded per §9's
// design notes and amended directly against the tables; no write endpoints
// are exposed here.
type AdminHandler struct {
	perms *repository.PermissionRepository
	users *repository.UserRepository
}

// NewAdminHandler creates a new RBAC admin handler.
func NewAdminHandler(perms *repository.PermissionRepository, users *repository.UserRepository) *AdminHandler {
	return &AdminHandler{perms: perms, users: users}
}

// Permissions handles GET /rbac/permissions.
func (h *AdminHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.perms.ListPermissions(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, permissions)
}

// Roles handles GET /rbac/roles.
func (h *AdminHandler) Roles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.perms.ListRoles(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, roles)
}

// Users handles GET /rbac/users.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, users)
}
