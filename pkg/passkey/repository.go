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
	"errors"
)

var (
	// ErrUserExists is returned by CreateUser when the invitation already has a user.
	ErrUserExists = errors.New("user already exists for invitation")

	// ErrUserHasCredential is returned by StoreCredential when the user
	// already owns a different credential.
	ErrUserHasCredential = errors.New("user already has a credential")
)

// CredentialRepository persists users and their passkeys.
//
// Implementations must be safe for concurrent use and must enforce at most
// one user per invitation, one credential per user and globally unique
// credential ids at the storage level, not by lookup-then-insert.
type CredentialRepository interface {
	// FindUser returns the user created from invitationID, or nil.
	FindUser(ctx context.Context, invitationID string) (*User, error)

	// CreateUser inserts a user bound to invitationID. It returns
	// ErrUserExists when another user already holds the invitation.
	CreateUser(ctx context.Context, invitationID string) (*User, error)

	// FindCredential returns the credential with the given id, or nil.
	FindCredential(ctx context.Context, credentialID []byte) (*CredentialRecord, error)

	// ListCredentials returns the credentials owned by userID.
	ListCredentials(ctx context.Context, userID string) ([]*CredentialRecord, error)

	// StoreCredential inserts rec. Storing an id that already belongs to
	// rec.UserID is a no-op; one that belongs to a different user fails with
	// ErrCredentialOwnedByOtherUser. A user that already owns another
	// credential fails with ErrUserHasCredential.
	StoreCredential(ctx context.Context, rec *CredentialRecord) error

	// UpdateSignCounter advances the stored counter to newCounter. The write
	// is conditional: it applies only when newCounter is greater than the
	// stored value, or both are zero. Otherwise ErrCounterRegression is
	// returned. A missing credential yields ErrUnknownCredential.
	UpdateSignCounter(ctx context.Context, credentialID []byte, newCounter uint32) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// CounterAdvances reports whether moving from stored to next satisfies the
// signature counter rule: strictly increasing, except 0 to 0 for
// authenticators that do not implement a counter.
func CounterAdvances(stored, next uint32) bool {
	if stored == 0 && next == 0 {
		return true
	}
	return next > stored
}
