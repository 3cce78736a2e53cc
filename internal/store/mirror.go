package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/logging"
	"github.com/example/rectpose/internal/pose"
)

// MirrorKey is where the mirror publishes the latest accepted pose.
const MirrorKey = "rectpose:latest"

// Mirrored decorates a Store with a Redis write-through of each accepted
// record, letting dashboards and other processes read the latest pose
// without hitting this service. The inner store stays authoritative:
// reads never touch Redis and a failed mirror write is logged, not
// surfaced.
type Mirrored struct {
	inner          Store
	cache          Cache
	logger         *zap.Logger
	ttl            time.Duration
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewMirrored wraps inner with a cache mirror.
func NewMirrored(inner Store, cache Cache, logger *zap.Logger) *Mirrored {
	return &Mirrored{
		inner:          inner,
		cache:          cache,
		logger:         logger.Named("pose_mirror"),
		ttl:            time.Hour,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Put stores the record and then mirrors it.
func (m *Mirrored) Put(ctx context.Context, record *pose.Record) error {
	if err := m.inner.Put(ctx, record); err != nil {
		return err
	}

	serialized, err := json.Marshal(record)
	if err != nil {
		m.logger.Error("failed to serialize pose for mirror", zap.Error(err))
		return nil
	}

	if err := m.withCacheRetry(ctx, "mirror.set.latest", func() error {
		return m.cache.Set(ctx, MirrorKey, string(serialized), m.ttl)
	}); err != nil {
		m.logger.Warn("pose mirror write failed", zap.Error(err))
	}
	return nil
}

// Latest delegates to the inner store.
func (m *Mirrored) Latest(ctx context.Context) (*pose.Record, error) {
	return m.inner.Latest(ctx)
}

func (m *Mirrored) withCacheRetry(ctx context.Context, operation string, fn func() error) error {
	backoff := m.initialBackoff
	opLogger := logging.WithOperation(m.logger, operation, "")
	var err error
	for attempt := 0; attempt < m.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, "", ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= m.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("cache write succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == m.retryAttempts-1 {
			return logging.NewOperationError(operation, "", err)
		}

		opLogger.Warn("transient cache error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, "", err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
