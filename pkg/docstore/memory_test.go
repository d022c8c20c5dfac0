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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Create(ctx, &Document{
		ID:     "inv-1",
		Type:   "invitation",
		Fields: map[string]any{"label": "friend"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.Revision)

	got, err := s.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "friend", got.String("label"))

	got.Fields["label"] = "mutated"
	again, err := s.Get(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "friend", again.String("label"))

	_, err = s.Create(ctx, &Document{ID: "inv-1", Type: "invitation"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateAssignsID(t *testing.T) {
	s := NewMemoryStore()
	doc, err := s.Create(context.Background(), &Document{Type: "invitation"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_FindOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Create(ctx, &Document{ID: "p1", Type: "post", Fields: map[string]any{
		"slug":         map[string]any{"current": "hello"},
		"requiresAuth": true,
	}})
	require.NoError(t, err)
	_, err = s.Create(ctx, &Document{ID: "i1", Type: "invitation", Fields: map[string]any{"code": "hello"}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		query   Query
		wantID  string
		wantErr error
	}{
		{"nested field", Query{Type: "post", Field: "slug.current", Value: "hello"}, "p1", nil},
		{"type filter", Query{Type: "invitation", Field: "code", Value: "hello"}, "i1", nil},
		{"no match", Query{Type: "invitation", Field: "code", Value: "other"}, "", ErrNotFound},
		{"bad field", Query{Type: "post", Field: "slug current", Value: "x"}, "", ErrInvalidQuery},
		{"empty type", Query{Field: "code", Value: "x"}, "", ErrInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := s.FindOne(ctx, tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, doc.ID)
		})
	}
}

func TestMemoryStore_ConditionalPatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc, err := s.Create(ctx, &Document{ID: "inv", Type: "invitation", Fields: map[string]any{"used": false}})
	require.NoError(t, err)

	updated, err := s.Patch(ctx, "inv", Patch{Set: map[string]any{"used": true}, IfRevisionID: doc.Revision})
	require.NoError(t, err)
	assert.True(t, updated.Bool("used"))
	assert.NotEqual(t, doc.Revision, updated.Revision)

	_, err = s.Patch(ctx, "inv", Patch{Set: map[string]any{"used": false}, IfRevisionID: doc.Revision})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = s.Patch(ctx, "nope", Patch{Set: map[string]any{"used": true}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ConcurrentConditionalPatchHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doc, err := s.Create(ctx, &Document{ID: "inv", Type: "invitation"})
	require.NoError(t, err)

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Patch(ctx, "inv", Patch{Set: map[string]any{"used": true}, IfRevisionID: doc.Revision})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestDocument_Time(t *testing.T) {
	d := &Document{Fields: map[string]any{
		"createdAt": "2025-03-01T10:00:00Z",
		"bad":       "yesterday",
	}}
	assert.Equal(t, 2025, d.Time("createdAt").Year())
	assert.True(t, d.Time("bad").IsZero())
	assert.True(t, d.Time("missing").IsZero())
}
