// Package notify forwards outbound notifications to the external
// messaging gateway (§6 `POST /whatsapp/report`).
package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// Gateway forwards report payloads to the external WhatsApp messaging
// gateway.
type Gateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewGateway creates a new messaging-gateway client.
func NewGateway(cfg config.GatewayConfig) *Gateway {
	return &Gateway{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, http: &http.Client{Timeout: 15 * time.Second}}
}

// ForwardReport relays a report request body to the gateway's
// /whatsapp/report endpoint, returning its response body verbatim.
func (g *Gateway) ForwardReport(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/whatsapp/report", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, errors.Upstream("messaging gateway unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Upstream("messaging gateway returned an unreadable response")
	}

	if resp.StatusCode >= 400 {
		return nil, errors.Upstream("messaging gateway rejected the report")
	}
	return respBody, nil
}
