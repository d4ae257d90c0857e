package notify

import (
	"io"
	"net/http"

	"github.com/fieldpunch/attendance-backend/pkg/errors"
	"github.com/fieldpunch/attendance-backend/pkg/httputil"
)

// Handler serves POST /whatsapp/report.
type Handler struct {
	gateway *Gateway
}

// NewHandler creates a new notify handler.
func NewHandler(gateway *Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// ForwardReport reads the request body and relays it to the messaging
// gateway unchanged.
func (h *Handler) ForwardReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.Error(w, errors.BadRequest("could not read request body"))
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	resp, err := h.gateway.ForwardReport(r.Context(), body, contentType)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(resp)
}
