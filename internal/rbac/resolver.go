package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldpunch/attendance-backend/internal/identity/repository"
	"github.com/fieldpunch/attendance-backend/pkg/logger"
)

// CityScope describes the cities a permission's grant covers: either "all"
// cities, or the explicit set in Cities.
type CityScope struct {
	All    bool    `json:"all"`
	Cities []int64 `json:"cities,omitempty"`
}

// Resolved is the output of the permission resolver (§4.1): the user's
// effective permission set and, per permission, the city scope it grants.
type Resolved struct {
	PermSet map[string]struct{}  `json:"-"`
	CityMap map[string]CityScope `json:"city_map"`
}

// Permissions returns the resolved permission set as a sorted-free slice,
// convenient for JSON responses and pkg/permissions checks.
func (r *Resolved) Permissions() []string {
	out := make([]string, 0, len(r.PermSet))
	for p := range r.PermSet {
		out = append(out, p)
	}
	return out
}

// Has reports whether the resolved set contains the given permission key.
func (r *Resolved) Has(key string) bool {
	_, ok := r.PermSet[key]
	return ok
}

type cacheEntry struct {
	version int64
	data    *Resolved
}

// Resolver computes and memoises effective permissions per §4.1. It keeps an
// in-process map keyed by (userID, version), bumping a monotonic version
// counter on any write to roles/permissions/role_permissions/user_roles/
// user_permissions so stale entries become unreachable. A Redis mirror
// shortens the cold-start tax for a freshly restarted replica (Open Question
// 1 in DESIGN.md) without attempting cross-replica invalidation broadcast.
type Resolver struct {
	permRepo *repository.PermissionRepository
	redis    *redis.Client
	log      *logger.Logger

	mu      sync.RWMutex
	version int64
	cache   map[string]cacheEntry
}

// NewResolver creates a permission resolver. redisClient may be nil, in
// which case the resolver operates purely in-process.
func NewResolver(permRepo *repository.PermissionRepository, redisClient *redis.Client, log *logger.Logger) *Resolver {
	return &Resolver{
		permRepo: permRepo,
		redis:    redisClient,
		log:      log,
		cache:    make(map[string]cacheEntry),
	}
}

// BumpVersion invalidates every in-process cache entry. Called after any
// write to the tables the resolver reads.
func (r *Resolver) BumpVersion() {
	atomic.AddInt64(&r.version, 1)
}

// Resolve computes (or returns the memoised) permission set and city scopes
// for a user. DB errors are returned wrapped (%w) as a retryable fault per
// §4.1's failure policy — the caller must not cache them.
func (r *Resolver) Resolve(ctx context.Context, userID string, isAdmin bool) (*Resolved, error) {
	version := atomic.LoadInt64(&r.version)

	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && entry.version == version {
		return entry.data, nil
	}

	if resolved := r.tryRedis(ctx, userID, version); resolved != nil {
		r.store(userID, version, resolved)
		return resolved, nil
	}

	resolved, err := r.resolveFromDB(ctx, userID, isAdmin)
	if err != nil {
		return nil, err
	}

	r.store(userID, version, resolved)
	r.mirrorToRedis(ctx, userID, version, resolved)

	return resolved, nil
}

func (r *Resolver) resolveFromDB(ctx context.Context, userID string, isAdmin bool) (*Resolved, error) {
	roleRows, err := r.permRepo.RolePermissionRows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve role permissions: %w", err)
	}
	directRows, err := r.permRepo.DirectPermissionRows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve direct permissions: %w", err)
	}

	permSet := make(map[string]struct{})
	cityMap := make(map[string]CityScope)

	apply := func(module, action string, cityID *int64) {
		key := module + ":" + action
		permSet[key] = struct{}{}

		scope, exists := cityMap[key]
		if !exists {
			scope = CityScope{}
		}
		if scope.All {
			cityMap[key] = scope
			return
		}
		if cityID == nil {
			cityMap[key] = CityScope{All: true}
			return
		}
		scope.Cities = appendUnique(scope.Cities, *cityID)
		cityMap[key] = scope
	}

	for _, row := range roleRows {
		apply(row.Module, row.Action, row.CityID) // role grants always carry CityID == nil
	}
	for _, row := range directRows {
		apply(row.Module, row.Action, row.CityID)
	}

	if isAdmin {
		permSet["*"] = struct{}{}
	}

	return &Resolved{PermSet: permSet, CityMap: cityMap}, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (r *Resolver) store(userID string, version int64, resolved *Resolved) {
	r.mu.Lock()
	r.cache[userID] = cacheEntry{version: version, data: resolved}
	r.mu.Unlock()
}

func (r *Resolver) redisKey(userID string, version int64) string {
	return fmt.Sprintf("perm:%s:%d", userID, version)
}

func (r *Resolver) tryRedis(ctx context.Context, userID string, version int64) *Resolved {
	if r.redis == nil {
		return nil
	}
	raw, err := r.redis.Get(ctx, r.redisKey(userID, version)).Bytes()
	if err != nil {
		return nil
	}
	var wire wireResolved
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil
	}
	return wire.toResolved()
}

func (r *Resolver) mirrorToRedis(ctx context.Context, userID string, version int64, resolved *Resolved) {
	if r.redis == nil {
		return
	}
	payload, err := json.Marshal(newWireResolved(resolved))
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, r.redisKey(userID, version), payload, 5*time.Minute).Err(); err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("failed to mirror resolved permissions to redis")
	}
}

// wireResolved is the JSON-safe shape for the Redis mirror (Resolved.PermSet
// is a map[string]struct{}, which the standard encoder can't round-trip).
type wireResolved struct {
	Perms   []string             `json:"perms"`
	CityMap map[string]CityScope `json:"city_map"`
}

func newWireResolved(r *Resolved) wireResolved {
	return wireResolved{Perms: r.Permissions(), CityMap: r.CityMap}
}

func (w wireResolved) toResolved() *Resolved {
	permSet := make(map[string]struct{}, len(w.Perms))
	for _, p := range w.Perms {
		permSet[p] = struct{}{}
	}
	return &Resolved{PermSet: permSet, CityMap: w.CityMap}
}
