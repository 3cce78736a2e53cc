// Package handoff forwards the latest estimate to the robot-facing
// ingress on operator command.
package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/poselog"
)

// Client posts enriched poses to the robot ingress.
type Client struct {
	robotURL   string
	httpClient *http.Client
	logbook    *poselog.Ring
	logger     *zap.Logger
}

// NewClient builds a handoff client for the ingress at robotURL.
func NewClient(robotURL string, logbook *poselog.Ring, logger *zap.Logger) *Client {
	return &Client{
		robotURL:   robotURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logbook:    logbook,
		logger:     logger.Named("handoff_client"),
	}
}

// Send forwards the estimate. An estimate without a detection is rejected
// locally, with a log entry and no network call. Millimeter fields come
// from the estimator when present, else from the configured scale via the
// same conversion the overlay uses. A non-success status or transport
// failure surfaces as a pose.TransportError.
func (c *Client) Send(ctx context.Context, estimate *pose.Estimate, scale float64) error {
	if !estimate.Complete() {
		c.logbook.Append("Cannot send: no rectangle detected")
		return pose.NewValidationError("pose", "no detection to send")
	}

	payload := pose.Payload{
		XPx:      estimate.XPx,
		YPx:      estimate.YPx,
		ThetaDeg: estimate.ThetaDeg,
		XMm:      pose.EnrichedMillimeters(estimate.XMm, *estimate.XPx, scale),
		YMm:      pose.EnrichedMillimeters(estimate.YMm, *estimate.YPx, scale),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &pose.TransportError{Op: "handoff.encode_payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.robotURL+"/api/pose/send", bytes.NewReader(body))
	if err != nil {
		return &pose.TransportError{Op: "handoff.build_request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logbook.Append("Send failed: " + err.Error())
		c.logger.Warn("handoff request failed", zap.Error(err))
		return &pose.TransportError{Op: "handoff.send", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		tErr := &pose.TransportError{
			Op:     "handoff.send",
			Status: resp.StatusCode,
			Err:    fmt.Errorf("HTTP %d", resp.StatusCode),
		}
		c.logbook.Append("Send failed: " + tErr.Error())
		c.logger.Warn("handoff rejected", zap.Int("status", resp.StatusCode))
		return tErr
	}

	c.logbook.Append("Pose sent to robot controller")
	return nil
}
