package pose

import (
	"math"
	"time"
)

// Estimate is a single-frame detection result returned by the estimator
// service. Position and orientation fields are pointers because the
// estimator omits them when nothing was found.
type Estimate struct {
	Found    bool         `json:"found"`
	XPx      *float64     `json:"x_px"`
	YPx      *float64     `json:"y_px"`
	ThetaDeg *float64     `json:"theta_deg"`
	XMm      *float64     `json:"x_mm"`
	YMm      *float64     `json:"y_mm"`
	Box      [][2]float64 `json:"box,omitempty"`
}

// Complete reports whether the estimate carries everything a handoff needs.
func (e *Estimate) Complete() bool {
	return e != nil && e.Found && e.XPx != nil && e.YPx != nil && e.ThetaDeg != nil
}

// Payload is the body of a pose submission to the robot ingress.
// x_mm and y_mm stay nil when neither the estimator nor a configured
// scale could supply them.
type Payload struct {
	XPx      *float64 `json:"x_px"`
	YPx      *float64 `json:"y_px"`
	ThetaDeg *float64 `json:"theta_deg"`
	XMm      *float64 `json:"x_mm"`
	YMm      *float64 `json:"y_mm"`
}

// Record is the value held by the pose store: the payload fields plus the
// acceptance timestamp. Records are immutable once published.
type Record struct {
	XPx        float64  `json:"x_px"`
	YPx        float64  `json:"y_px"`
	ThetaDeg   float64  `json:"theta_deg"`
	XMm        *float64 `json:"x_mm"`
	YMm        *float64 `json:"y_mm"`
	ReceivedAt string   `json:"receivedAt"`
}

// Timestamp formats an acceptance time the way records carry it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// IsFinite reports whether v is an ordinary number (not NaN or ±Inf).
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MillimetersFromPixels converts a pixel coordinate using a millimeters
// per pixel scale. Returns nil unless the scale is positive and finite.
// Both the overlay display path and the handoff enrichment path go
// through here so the two can never diverge.
func MillimetersFromPixels(px float64, scale float64) *float64 {
	if !IsFinite(scale) || scale <= 0 {
		return nil
	}
	mm := px * scale
	return &mm
}

// EnrichedMillimeters prefers the estimator-supplied value and falls back
// to scale derivation from the pixel coordinate.
func EnrichedMillimeters(supplied *float64, px float64, scale float64) *float64 {
	if supplied != nil {
		return supplied
	}
	return MillimetersFromPixels(px, scale)
}
