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

package passkey

import (
	"context"
	"testing"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	for _, p := range []struct {
		slug   string
		gated  bool
		docTyp string
	}{
		{"members-only", true, PostDocumentType},
		{"welcome", false, PostDocumentType},
		{"draft", true, "draft"},
	} {
		_, err := store.Create(ctx, &docstore.Document{
			Type: p.docTyp,
			Fields: map[string]any{
				"title":        p.slug,
				"slug":         map[string]any{"current": p.slug},
				"requiresAuth": p.gated,
			},
		})
		require.NoError(t, err)
	}
	return store
}

func TestPostGate_Allow(t *testing.T) {
	gate, err := NewPostGate(newPostStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	anonymous := &Session{}
	member := &Session{Authenticated: true, UserID: "u1"}

	post, ok, err := gate.Allow(ctx, anonymous, "welcome")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, post.RequiresAuth)

	post, ok, err = gate.Allow(ctx, anonymous, "members-only")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, post.RequiresAuth)
	assert.Equal(t, "members-only", post.Slug)

	_, ok, err = gate.Allow(ctx, nil, "members-only")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = gate.Allow(ctx, member, "members-only")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostGate_Lookup_Errors(t *testing.T) {
	gate, err := NewPostGate(newPostStore(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = gate.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)

	// Documents of another type never match.
	_, err = gate.Lookup(ctx, "draft")
	assert.ErrorIs(t, err, ErrPostNotFound)

	_, err = gate.Lookup(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = NewPostGate(nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
