package rbac

import (
	"context"

	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
)

// CityViewPermission is the permission key that determines whether a
// UserCityAccess/UserPermission grant confers city *view* scope, per
// invariant 7.
const CityViewPermission = "city:view"

// Scope is a user's resolved city and zone scope for a request.
type Scope struct {
	City CityScope
	Zone CityScope // reuses CityScope's {All, ids} shape for zone ids
}

// ScopeResolver derives a user's city/zone scope (§2 "Scope Resolver") from
// their resolved permissions and explicit access-grant tables.
type ScopeResolver struct {
	permRepo *repository.PermissionRepository
}

// NewScopeResolver creates a new scope resolver.
func NewScopeResolver(permRepo *repository.PermissionRepository) *ScopeResolver {
	return &ScopeResolver{permRepo: permRepo}
}

// Resolve computes the scope per invariant 7: admin gets all=true
// unconditionally; otherwise the scope is the union of explicit
// UserCityAccess grants and city:view-qualified UserPermission rows, with a
// single null-city city:view grant collapsing the whole scope to all.
func (s *ScopeResolver) Resolve(ctx context.Context, userID string, isAdmin bool, resolved *Resolved) (*Scope, error) {
	if isAdmin {
		return &Scope{City: CityScope{All: true}, Zone: CityScope{All: true}}, nil
	}

	cityViewScope, hasCityView := resolved.CityMap[CityViewPermission]
	if hasCityView && cityViewScope.All {
		return &Scope{City: CityScope{All: true}, Zone: CityScope{All: true}}, nil
	}

	explicitCities, err := s.permRepo.UserCityAccessIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	explicitZones, err := s.permRepo.UserZoneAccessIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	cities := explicitCities
	if hasCityView {
		for _, id := range cityViewScope.Cities {
			cities = appendUnique(cities, id)
		}
	}

	return &Scope{
		City: CityScope{All: false, Cities: cities},
		Zone: CityScope{All: false, Cities: explicitZones},
	}, nil
}

// Empty reports whether the scope grants access to nothing, used by
// RequireCityScope to reject with 403 rather than silently returning empty
// results.
func (s CityScope) Empty() bool {
	return !s.All && len(s.Cities) == 0
}
