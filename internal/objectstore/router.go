package objectstore

import (
	"context"
	"strings"

	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// Router dispatches Put to a preferred store and Get/Classify by the
// scheme prefix already recorded on the reference, so callers holding a
// stored reference never need to know which backend produced it.
type Router struct {
	primary   Store // may be nil if unconfigured
	secondary Store // may be nil if unconfigured
	local     Store
}

// NewRouter builds a router that prefers primary, falls back to secondary,
// and always keeps local available for development.
func NewRouter(primary, secondary, local Store) *Router {
	return &Router{primary: primary, secondary: secondary, local: local}
}

// Put uploads through the primary store when configured, otherwise the
// secondary, otherwise local.
func (r *Router) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if r.primary != nil {
		return r.primary.Put(ctx, key, data, contentType)
	}
	if r.secondary != nil {
		return r.secondary.Put(ctx, key, data, contentType)
	}
	return r.local.Put(ctx, key, data, contentType)
}

// Get dispatches to whichever backend's scheme prefix matches ref. External
// http(s):// references (KindExternalHTTP) are not handled here — the
// Image Streaming Proxy fetches those directly.
func (r *Router) Get(ctx context.Context, ref string) (*Object, error) {
	switch r.Classify(ref) {
	case KindPrimaryStore:
		return r.primary.Get(ctx, ref)
	case KindSecondaryStore:
		return r.secondary.Get(ctx, ref)
	case KindLocal:
		return r.local.Get(ctx, ref)
	default:
		return nil, errors.BadRequest("unrecognised image reference")
	}
}

// Classify implements §4.6's reference classification.
func (r *Router) Classify(ref string) Kind {
	switch {
	case strings.HasPrefix(ref, "s3://"):
		return KindPrimaryStore
	case strings.HasPrefix(ref, "secondary://"):
		return KindSecondaryStore
	case strings.HasPrefix(ref, "local://"):
		return KindLocal
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return KindExternalHTTP
	default:
		return ""
	}
}
