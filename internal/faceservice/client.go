// Package faceservice adapts the external face-recognition collection used
// by the Punch Pipeline (§4.4): gallery search, enrolment, pairwise compare,
// and multi-face detection.
package faceservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/fieldpunch/attendance-backend/pkg/config"
	"github.com/fieldpunch/attendance-backend/pkg/errors"
)

// Box is a detected-face bounding box in source-image pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is one face found by Detect.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Match is one gallery hit returned by Search.
type Match struct {
	FaceID     string  `json:"face_id"`
	Similarity float64 `json:"similarity"`
}

// Adapter is the Face Verification Adapter contract (§4.4, Component Map).
// A concrete implementation talks to the external collection over HTTP; a
// test double can implement the same interface without a network call.
type Adapter interface {
	// Detect finds every face in the frame, used by group mode.
	Detect(ctx context.Context, image []byte) ([]Detection, error)
	// Search looks up the gallery for faces similar to image, strongest
	// match first. Used by both single mode (full frame) and group mode
	// (per-face crop).
	Search(ctx context.Context, image []byte) ([]Match, error)
	// Compare runs a pairwise similarity check between two images,
	// returning a percentage in [0, 100].
	Compare(ctx context.Context, reference, captured []byte) (float64, error)
	// Index enrols image under faceID in the gallery, replacing any
	// existing entry for that id.
	Index(ctx context.Context, faceID string, image []byte) error
	// Deindex removes faceID's enrolment from the gallery.
	Deindex(ctx context.Context, faceID string) error
}

// HTTPClient is the HTTP-backed Adapter implementation.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	collection string
	http       *http.Client
}

// NewHTTPClient creates a new face-service client from configuration.
func NewHTTPClient(cfg config.FaceServiceConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Detect calls the collection's detection endpoint.
func (c *HTTPClient) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	var out detectResponse
	if err := c.postImage(ctx, "/detect", nil, "image", image, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}

type searchResponse struct {
	Matches []Match `json:"matches"`
}

// Search calls the collection's gallery-search endpoint. An empty result
// (no error) means no match above the collection's own floor threshold.
func (c *HTTPClient) Search(ctx context.Context, image []byte) ([]Match, error) {
	var out searchResponse
	fields := map[string]string{"collection": c.collection}
	if err := c.postImage(ctx, "/search", fields, "image", image, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

type compareResponse struct {
	Similarity float64 `json:"similarity"`
}

// Compare runs a pairwise similarity check between a reference image and a
// freshly captured one.
func (c *HTTPClient) Compare(ctx context.Context, reference, captured []byte) (float64, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writeFormFile(writer, "reference", "reference.jpg", reference); err != nil {
		return 0, err
	}
	if err := writeFormFile(writer, "captured", "captured.jpg", captured); err != nil {
		return 0, err
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}

	var out compareResponse
	if err := c.do(ctx, http.MethodPost, "/compare", writer.FormDataContentType(), body, &out); err != nil {
		return 0, err
	}
	return out.Similarity, nil
}

// Index enrols an employee's reference image under faceID.
func (c *HTTPClient) Index(ctx context.Context, faceID string, image []byte) error {
	fields := map[string]string{"collection": c.collection, "face_id": faceID}
	return c.postImage(ctx, "/index", fields, "image", image, nil)
}

// Deindex removes an enrolment.
func (c *HTTPClient) Deindex(ctx context.Context, faceID string) error {
	body := &bytes.Buffer{}
	_ = json.NewEncoder(body).Encode(map[string]string{"collection": c.collection, "face_id": faceID})
	return c.do(ctx, http.MethodPost, "/deindex", "application/json", body, nil)
}

func writeFormFile(writer *multipart.Writer, field, filename string, data []byte) error {
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func (c *HTTPClient) postImage(ctx context.Context, path string, fields map[string]string, imageField string, image []byte, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := writeFormFile(writer, imageField, "frame.jpg", image); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, writer.FormDataContentType(), body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Upstream("face service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyHTTPStatus(resp.StatusCode, resp.Body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classifyHTTPStatus maps the collection's error responses per §7's
// propagation policy: no-face and collection-missing are distinguished from
// generic upstream failures.
func classifyHTTPStatus(status int, body io.Reader) error {
	var payload struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(body).Decode(&payload)

	switch payload.Reason {
	case "no_face_detected":
		return errors.Unprocessable("no face detected")
	case "collection_missing":
		return errors.Upstream("face collection not provisioned")
	}

	if status == http.StatusNotFound {
		return errors.Unprocessable("no face detected")
	}
	return errors.Upstream(fmt.Sprintf("face service returned status %d", status))
}
