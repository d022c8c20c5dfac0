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
	"sync"
	"testing"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvitationService(t *testing.T) (*InvitationService, *docstore.MemoryStore) {
	t.Helper()
	docs := docstore.NewMemoryStore()
	svc, err := NewInvitationService(docs, "https://example.test/")
	require.NoError(t, err)
	return svc, docs
}

func TestNewInvitationService_RequiresStore(t *testing.T) {
	_, err := NewInvitationService(nil, "https://example.test")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestInvitationService_IssueAndValidate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInvitationService(t)

	inv, err := svc.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", inv.Label)
	assert.False(t, inv.Used)
	assert.False(t, inv.CreatedAt.IsZero())

	code, err := svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, code, InvitationCodeSize*2)

	handle, err := svc.Validate(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, InvitationHandle{ID: inv.ID, Used: false}, handle)

	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, code, stored.Code)
}

func TestInvitationService_ReissueInvalidatesPreviousCode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInvitationService(t)

	inv, err := svc.Create(ctx, "bob")
	require.NoError(t, err)
	first, err := svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = svc.Validate(ctx, first)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.Validate(ctx, second)
	assert.NoError(t, err)
}

func TestInvitationService_ValidateErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInvitationService(t)

	_, err := svc.Validate(ctx, "  ")
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = svc.Validate(ctx, "deadbeef")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	inv, err := svc.Create(ctx, "carol")
	require.NoError(t, err)
	code, err := svc.Issue(ctx, inv.ID)
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, inv.ID))

	handle, err := svc.Validate(ctx, code)
	assert.ErrorIs(t, err, ErrInvitationUsed)
	assert.Equal(t, InvitationHandle{ID: inv.ID, Used: true}, handle)
}

func TestInvitationService_IssueUnknown(t *testing.T) {
	svc, _ := newInvitationService(t)

	_, err := svc.Issue(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	_, err = svc.Issue(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestInvitationService_GetRejectsOtherTypes(t *testing.T) {
	ctx := context.Background()
	svc, docs := newInvitationService(t)

	doc, err := docs.Create(ctx, &docstore.Document{Type: "post", Fields: map[string]any{"code": "x"}})
	require.NoError(t, err)

	_, err = svc.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestInvitationService_MarkUsedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInvitationService(t)

	inv, err := svc.Create(ctx, "dave")
	require.NoError(t, err)

	require.NoError(t, svc.MarkUsed(ctx, inv.ID))
	require.NoError(t, svc.MarkUsed(ctx, inv.ID))

	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used)

	assert.ErrorIs(t, svc.MarkUsed(ctx, "missing"), ErrInvitationNotFound)
}

func TestInvitationService_MarkUsedConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newInvitationService(t)

	inv, err := svc.Create(ctx, "erin")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.MarkUsed(ctx, inv.ID)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		// Losers either see the used flag on re-read or exhaust retries.
		if err != nil {
			assert.ErrorIs(t, err, ErrPersistence)
		}
	}
	stored, err := svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.Used)
}

func TestInvitationService_Link(t *testing.T) {
	svc, _ := newInvitationService(t)
	assert.Equal(t, "https://example.test/register?code=abc123", svc.Link("abc123"))
}
