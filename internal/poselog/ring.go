// Package poselog keeps a small newest-first history of operator-visible
// events, mirroring the activity panel of the operator console.
package poselog

import (
	"sync"
	"time"
)

// Capacity is how many entries the ring retains.
const Capacity = 15

// Entry is a single operator-visible event.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// Ring is a fixed-capacity, newest-first event buffer. Appending beyond
// capacity drops the oldest entry. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewRing returns an empty ring.
func NewRing() *Ring {
	return &Ring{now: time.Now}
}

// Append records a message stamped with the current wall-clock time.
func (r *Ring) Append(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := Entry{Timestamp: r.now().Format("15:04:05"), Message: message}
	r.entries = append([]Entry{entry}, r.entries...)
	if len(r.entries) > Capacity {
		r.entries = r.entries[:Capacity]
	}
}

// Entries returns a newest-first snapshot.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	return snapshot
}
