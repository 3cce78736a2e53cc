package store

import (
	"context"
	"sync/atomic"

	"github.com/example/rectpose/internal/pose"
)

// Store holds the most recently accepted pose. Implementations follow
// last-write-wins: Put replaces the held record wholesale and Latest
// returns nil until the first Put.
type Store interface {
	Put(ctx context.Context, record *pose.Record) error
	Latest(ctx context.Context) (*pose.Record, error)
}

// Memory is the in-process single-slot store. The record is published by
// an atomic pointer swap, so concurrent readers either see the prior
// record or the new one in full, never a mix of fields.
type Memory struct {
	latest atomic.Pointer[pose.Record]
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

// Put replaces the current record. Callers must not mutate the record
// after handing it over.
func (m *Memory) Put(ctx context.Context, record *pose.Record) error {
	m.latest.Store(record)
	return nil
}

// Latest returns the current record, or nil if nothing was received yet.
func (m *Memory) Latest(ctx context.Context) (*pose.Record, error) {
	return m.latest.Load(), nil
}
