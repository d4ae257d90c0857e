package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// LocalStore is a filesystem-backed store used in local development when
// neither the primary nor secondary remote store is configured.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new local-filesystem store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Classify reports KindLocal for any local:// reference.
func (s *LocalStore) Classify(ref string) Kind {
	if strings.HasPrefix(ref, "local://") {
		return KindLocal
	}
	return ""
}

// Put writes data under key beneath the store's root directory.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Internal("local object store write failed")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Internal("local object store write failed")
	}
	return "local://" + key, nil
}

// Get reads an object by its "local://key" reference.
func (s *LocalStore) Get(ctx context.Context, ref string) (*Object, error) {
	key := strings.TrimPrefix(ref, "local://")
	path := filepath.Join(s.root, filepath.FromSlash(key))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NotFound("image")
	}
	return &Object{Body: f, ContentType: "image/jpeg"}, nil
}
