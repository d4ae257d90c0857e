package rbac

import (
	"context"
	"net/http"
	"strings"

	"github.com/fieldpunch/attendance-backend/internal/identity/domain"
	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/pkg/actor"
	fpErrors "github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
	"github.com/fieldpunch/attendance-backend/pkg/permissions"
)

type ctxKey string

const (
	userIDKey        ctxKey = "rbac_user_id"
	userRoleKey      ctxKey = "rbac_user_role"
	scopeKey         ctxKey = "rbac_scope"
	permScopesKey    ctxKey = "rbac_permission_scopes"
	resolvedKey      ctxKey = "rbac_resolved"
)

// Chain wires the Authorization Middleware Chain (§4.2) together: token
// validation, user load, scope attachment, and per-route permission checks.
type Chain struct {
	tokens   *TokenManager
	resolver *Resolver
	scopes   *ScopeResolver
	userRepo *repository.UserRepository
	log      *logger.Logger
}

// NewChain creates a new middleware chain.
func NewChain(tokens *TokenManager, resolver *Resolver, scopes *ScopeResolver, userRepo *repository.UserRepository, log *logger.Logger) *Chain {
	return &Chain{tokens: tokens, resolver: resolver, scopes: scopes, userRepo: userRepo, log: log}
}

// extractToken pulls the bearer credential from cookie, Authorization
// header, x-access-token header, or token query param, first non-empty wins,
// per §4.2 step 1.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	if tok := r.Header.Get("x-access-token"); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}

// Authenticate extracts and verifies the bearer token, attaching
// {user_id, role} and the resolved Actor to the request context.
func (c *Chain) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.Error(w, fpErrors.Unauthorized("no token"))
			return
		}

		claims, err := c.tokens.Validate(token)
		if err != nil {
			httputil.Error(w, fpErrors.Forbidden("invalid or expired token"))
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, userRoleKey, claims.Role)

		if u, err := c.userRepo.GetByID(ctx, claims.UserID); err == nil {
			ctx = actor.WithActor(ctx, &actor.Actor{
				ID:        u.ID,
				FirstName: u.Name,
			})
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AttachCityScope computes {all, cities} via the Permission + Scope
// resolvers and stores both the Resolved permission set and the Scope on
// the request context. Admin short-circuits to all=true.
func (c *Chain) AttachCityScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, _ := ctx.Value(userIDKey).(string)
		role, _ := ctx.Value(userRoleKey).(string)
		isAdmin := role == string(domain.RoleAdmin)

		resolved, err := c.resolver.Resolve(ctx, userID, isAdmin)
		if err != nil {
			httputil.Error(w, fpErrors.Internal("unable to resolve city scope"))
			return
		}

		scope, err := c.scopes.Resolve(ctx, userID, isAdmin, resolved)
		if err != nil {
			httputil.Error(w, fpErrors.Internal("unable to resolve city scope"))
			return
		}

		ctx = context.WithValue(ctx, resolvedKey, resolved)
		ctx = context.WithValue(ctx, scopeKey, scope)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCityScope rejects requests whose city scope is empty (neither "all"
// nor a non-empty explicit set). allowEmptyForAdmin is accepted for call-site
// symmetry with the source pipeline, but admins always resolve to all=true
// upstream and so never reach the empty branch.
func (c *Chain) RequireCityScope(allowEmptyForAdmin bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope, _ := r.Context().Value(scopeKey).(*Scope)
			if scope == nil || scope.City.Empty() {
				httputil.Error(w, fpErrors.Forbidden("no city access assigned"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Authorize enforces a (module, action) permission requirement. Admin
// short-circuits; otherwise it checks the resolved permission set and, on
// success, copies that permission's city scope into the per-request
// permissionScopes bag for handlers to additionally filter by.
func (c *Chain) Authorize(module, action string) func(http.Handler) http.Handler {
	required := module + ":" + action
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role, _ := ctx.Value(userRoleKey).(string)
			if role == string(domain.RoleAdmin) {
				next.ServeHTTP(w, r)
				return
			}

			resolved, _ := ctx.Value(resolvedKey).(*Resolved)
			if resolved == nil || !permissions.HasPermission(resolved.Permissions(), required) {
				httputil.Error(w, fpErrors.Forbidden("missing permission: "+required))
				return
			}

			permScopes, _ := ctx.Value(permScopesKey).(map[string]CityScope)
			if permScopes == nil {
				permScopes = make(map[string]CityScope)
			}
			if scope, ok := resolved.CityMap[required]; ok {
				permScopes[required] = scope
			}
			ctx = context.WithValue(ctx, permScopesKey, permScopes)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID retrieves the authenticated user id from context.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// UserRole retrieves the authenticated user's primary role from context.
func UserRole(ctx context.Context) string {
	role, _ := ctx.Value(userRoleKey).(string)
	return role
}

// ScopeFromContext retrieves the resolved Scope from context.
func ScopeFromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey).(*Scope)
	return scope
}

// ResolvedFromContext retrieves the resolved permission set from context.
func ResolvedFromContext(ctx context.Context) *Resolved {
	resolved, _ := ctx.Value(resolvedKey).(*Resolved)
	return resolved
}

// PermissionScope retrieves the city scope attached by Authorize for a given
// (module, action), used by handlers that must additionally filter results.
func PermissionScope(ctx context.Context, module, action string) (CityScope, bool) {
	permScopes, _ := ctx.Value(permScopesKey).(map[string]CityScope)
	if permScopes == nil {
		return CityScope{}, false
	}
	scope, ok := permScopes[module+":"+action]
	return scope, ok
}
