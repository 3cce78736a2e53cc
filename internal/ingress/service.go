package ingress

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/rectpose/internal/logging"
	"github.com/example/rectpose/internal/pose"
	"github.com/example/rectpose/internal/store"
)

// Service validates inbound pose submissions and maintains the latest
// accepted record through the configured store.
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewService constructs the ingress service.
func NewService(s store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.Named("pose_ingress"),
		now:    time.Now,
	}
}

// Submit validates the payload, stamps it with the acceptance time, and
// replaces the stored record. Returns a pose.ValidationError for any
// missing or non-finite required field; x_mm/y_mm are optional and
// silently dropped when non-finite.
func (s *Service) Submit(ctx context.Context, payload *pose.Payload) (*pose.Record, error) {
	if payload == nil {
		return nil, pose.NewValidationError("payload", "missing")
	}
	required := []struct {
		name  string
		value *float64
	}{
		{"x_px", payload.XPx},
		{"y_px", payload.YPx},
		{"theta_deg", payload.ThetaDeg},
	}
	for _, field := range required {
		if field.value == nil {
			return nil, pose.NewValidationError(field.name, "missing")
		}
		if !pose.IsFinite(*field.value) {
			return nil, pose.NewValidationError(field.name, "not finite")
		}
	}

	record := &pose.Record{
		XPx:        *payload.XPx,
		YPx:        *payload.YPx,
		ThetaDeg:   *payload.ThetaDeg,
		XMm:        coerceOptional(payload.XMm),
		YMm:        coerceOptional(payload.YMm),
		ReceivedAt: pose.Timestamp(s.now()),
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, logging.NewOperationError("ingress.store_put", "", err)
	}

	s.audit(record)
	return record, nil
}

// Latest returns the current record, or nil when nothing was received yet.
// Pure projection, no side effects.
func (s *Service) Latest(ctx context.Context) (*pose.Record, error) {
	return s.store.Latest(ctx)
}

func coerceOptional(v *float64) *float64 {
	if v == nil || !pose.IsFinite(*v) {
		return nil
	}
	return v
}

// audit mimics a robot controller acknowledging the pose it received.
// Logging failures never propagate to the caller.
func (s *Service) audit(record *pose.Record) {
	defer func() {
		_ = recover()
	}()
	requestID := uuid.NewString()
	logging.WithOperation(s.logger, "ingress.submit", requestID).Info("received pose",
		zap.Float64("x_px", record.XPx),
		zap.Float64("y_px", record.YPx),
		zap.Float64("theta_deg", record.ThetaDeg),
		zap.String("x_mm", formatOptional(record.XMm)),
		zap.String("y_mm", formatOptional(record.YMm)),
		zap.String("received_at", record.ReceivedAt),
	)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
