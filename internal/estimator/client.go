// Package estimator talks to the external pose-estimation service. The
// detection algorithm itself lives behind that service; this client only
// ships frames and decodes pose-or-not-found answers.
package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/pose"
)

// Client exposes the subset of estimator functionality used by the
// streaming loop.
type Client interface {
	Estimate(ctx context.Context, imageBase64 string) (*pose.Estimate, error)
}

type frameRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// HTTPClient calls the estimator over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient builds a client for the estimator at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("estimator_client"),
	}
}

// Estimate posts one frame and returns the decoded result. A found=false
// answer is a normal outcome; any transport failure, non-2xx status, or
// undecodable body comes back as a pose.TransportError.
func (c *HTTPClient) Estimate(ctx context.Context, imageBase64 string) (*pose.Estimate, error) {
	body, err := json.Marshal(frameRequest{ImageBase64: imageBase64})
	if err != nil {
		return nil, &pose.TransportError{Op: "estimator.encode_request", Err: err}
	}

	url := c.baseURL + "/api/pose/estimate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &pose.TransportError{Op: "estimator.build_request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("estimation request failed", zap.Error(err))
		return nil, &pose.TransportError{Op: "estimator.estimate", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("estimator returned non-success status", zap.Int("status", resp.StatusCode))
		return nil, &pose.TransportError{
			Op:     "estimator.estimate",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	var estimate pose.Estimate
	if err := json.NewDecoder(resp.Body).Decode(&estimate); err != nil {
		return nil, &pose.TransportError{Op: "estimator.decode_response", Err: err}
	}
	return &estimate, nil
}
