// Package objectstore implements the Object Store Adapter (§4.6): a
// primary S3-compatible store, a secondary token-authenticated HTTP store,
// and a local filesystem fallback, unified behind one interface.
package objectstore

import (
	"context"
	"io"
)

// Kind classifies a stored reference for the Image Streaming Proxy.
type Kind string

const (
	KindLocal            Kind = "local"
	KindPrimaryStore     Kind = "primary-object-store"
	KindSecondaryStore   Kind = "secondary-object-store"
	KindExternalHTTP     Kind = "external-http"
)

// Object is a retrieved object's bytes plus the content type reported by
// the origin.
type Object struct {
	Body        io.ReadCloser
	ContentType string
}

// Store persists and retrieves punch and enrolment images.
type Store interface {
	// Put uploads data under key and returns the reference to record on the
	// attendance/employee row.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get retrieves an object by the reference Put returned.
	Get(ctx context.Context, ref string) (*Object, error)
	// Classify determines how a stored reference should be interpreted by
	// the streaming proxy, per §4.6.
	Classify(ref string) Kind
}
