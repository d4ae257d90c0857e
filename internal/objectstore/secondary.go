package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// SecondaryStore is a token-authenticated HTTP object store used as a
// fallback path, per §4.6. Its authorization token is cached in-process for
// ~30 minutes and refreshed on 401/403.
type SecondaryStore struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewSecondaryStore creates a new secondary-store client.
func NewSecondaryStore(cfg config.ObjectStoreConfig) *SecondaryStore {
	return &SecondaryStore{
		baseURL:  cfg.SecondaryBaseURL,
		clientID: cfg.SecondaryClientID,
		secret:   cfg.SecondarySecret,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Classify reports KindSecondaryStore for any secondary:// reference.
func (s *SecondaryStore) Classify(ref string) Kind {
	if strings.HasPrefix(ref, "secondary://") {
		return KindSecondaryStore
	}
	return ""
}

// Put uploads data under key, returning a "secondary://key" reference.
func (s *SecondaryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if _, err := s.request(ctx, http.MethodPut, "/objects/"+key, contentType, bytes.NewReader(data), false); err != nil {
		return "", err
	}
	return "secondary://" + key, nil
}

// Get retrieves an object by its "secondary://key" reference.
func (s *SecondaryStore) Get(ctx context.Context, ref string) (*Object, error) {
	key := strings.TrimPrefix(ref, "secondary://")
	resp, err := s.request(ctx, http.MethodGet, "/objects/"+key, "", nil, false)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &Object{Body: resp.Body, ContentType: contentType}, nil
}

// request issues an authenticated call, retrying once with a freshly
// acquired token if the first attempt is rejected as unauthorized.
func (s *SecondaryStore) request(ctx context.Context, method, path, contentType string, body io.Reader, retried bool) (*http.Response, error) {
	token, err := s.tokenFor(ctx, retried)
	if err != nil {
		return nil, err
	}

	var buf []byte
	if body != nil {
		buf, err = io.ReadAll(body)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Upstream("secondary object store unreachable")
	}

	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && !retried {
		resp.Body.Close()
		s.invalidateToken()
		return s.request(ctx, method, path, contentType, bytes.NewReader(buf), true)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, errors.Upstream(fmt.Sprintf("secondary object store returned status %d", resp.StatusCode))
	}
	return resp, nil
}

func (s *SecondaryStore) invalidateToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}

func (s *SecondaryStore) tokenFor(ctx context.Context, forceRefresh bool) (string, error) {
	s.mu.Lock()
	if !forceRefresh && s.token != "" && time.Now().Before(s.expiresAt) {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	token, ttl, err := s.authenticate(ctx)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.token = token
	s.expiresAt = time.Now().Add(ttl)
	s.mu.Unlock()
	return token, nil
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *SecondaryStore) authenticate(ctx context.Context) (string, time.Duration, error) {
	payload, _ := json.Marshal(map[string]string{
		"client_id": s.clientID,
		"secret":    s.secret,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/token", bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", 0, errors.Upstream("secondary object store auth unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", 0, errors.Upstream("secondary object store authentication failed")
	}

	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}

	ttl := 30 * time.Minute
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}
	return out.Token, ttl, nil
}
