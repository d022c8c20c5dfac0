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

package docstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. Every write assigns a fresh revision,
// so conditional patches behave like the remote store's. Documents are
// copied on the way in and out.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	order []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*Document),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

// FindOne implements Store. Documents are scanned in creation order.
func (s *MemoryStore) FindOne(ctx context.Context, q Query) (*Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		doc := s.docs[id]
		if doc.Type != q.Type {
			continue
		}
		v, ok := doc.Lookup(q.Field)
		if ok && reflect.DeepEqual(v, q.Value) {
			return doc.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, doc *Document) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := doc.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := s.docs[stored.ID]; exists {
		return nil, ErrAlreadyExists
	}
	stored.Revision = uuid.NewString()
	s.docs[stored.ID] = stored
	s.order = append(s.order, stored.ID)
	return stored.Clone(), nil
}

// Patch implements Store.
func (s *MemoryStore) Patch(ctx context.Context, id string, p Patch) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.IfRevisionID != "" && p.IfRevisionID != doc.Revision {
		return nil, ErrConflict
	}

	updated := doc.Clone()
	for k, v := range p.Set {
		updated.Fields[k] = cloneValue(v)
	}
	updated.Revision = uuid.NewString()
	s.docs[id] = updated
	return updated.Clone(), nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored documents.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
