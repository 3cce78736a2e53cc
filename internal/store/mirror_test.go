package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/rectpose/internal/pose"
)

type stubCache struct {
	setErrs []error
	setKeys []string
	values  []interface{}
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.setKeys = append(s.setKeys, key)
	s.values = append(s.values, value)
	if len(s.setErrs) == 0 {
		return nil
	}
	err := s.setErrs[0]
	s.setErrs = s.setErrs[1:]
	return err
}

type transientCacheError struct{}

func (transientCacheError) Error() string   { return "cache transient" }
func (transientCacheError) Timeout() bool   { return true }
func (transientCacheError) Temporary() bool { return true }

func newTestMirror(cache Cache) *Mirrored {
	m := NewMirrored(NewMemory(), cache, zap.NewNop())
	m.initialBackoff = time.Millisecond
	m.maxBackoff = 2 * time.Millisecond
	return m
}

func TestMirroredRetriesTransientSet(t *testing.T) {
	cache := &stubCache{setErrs: []error{transientCacheError{}}}
	m := newTestMirror(cache)

	rec := &pose.Record{XPx: 1, YPx: 2, ThetaDeg: 3, ReceivedAt: pose.Timestamp(time.Now())}
	if err := m.Put(context.Background(), rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	if len(cache.setKeys) != 2 {
		t.Fatalf("expected 2 set attempts, got %d", len(cache.setKeys))
	}
	if cache.setKeys[0] != MirrorKey || cache.setKeys[1] != MirrorKey {
		t.Fatalf("expected retry to target %s, got %v", MirrorKey, cache.setKeys)
	}
}

func TestMirroredSwallowsPersistentCacheFailure(t *testing.T) {
	cache := &stubCache{setErrs: []error{errors.New("boom")}}
	m := newTestMirror(cache)

	rec := &pose.Record{XPx: 7, YPx: 8, ThetaDeg: 9}
	if err := m.Put(context.Background(), rec); err != nil {
		t.Fatalf("mirror failure must not fail the put: %v", err)
	}

	got, err := m.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got != rec {
		t.Fatalf("inner store must hold the record regardless of mirror state")
	}
	if len(cache.setKeys) != 1 {
		t.Fatalf("permanent error must not be retried, got %d attempts", len(cache.setKeys))
	}
}
