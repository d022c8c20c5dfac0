// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of events a MemoryRecorder keeps when no
// capacity is given.
const DefaultCapacity = 1024

// MemoryRecorder keeps the most recent events in a ring buffer.
// Events are lost on process restart.
type MemoryRecorder struct {
	mu     sync.RWMutex
	events []*Event
	next   int
	full   bool
	total  int64
}

// NewMemoryRecorder creates a recorder holding up to capacity events.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRecorder{events: make([]*Event, capacity)}
}

// Record stores a copy of event, assigning an ID and timestamp when unset.
func (m *MemoryRecorder) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	cp := *event

	m.mu.Lock()
	m.events[m.next] = &cp
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	m.total++
	m.mu.Unlock()
	return nil
}

// Events returns matching events, newest first.
func (m *MemoryRecorder) Events(query Query) []*Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}
	var out []*Event
	for i := 0; i < n; i++ {
		idx := (m.next - 1 - i + len(m.events)) % len(m.events)
		e := m.events[idx]
		if !query.matches(e) {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out
}

// Total returns the number of events recorded, including evicted ones.
func (m *MemoryRecorder) Total() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}
