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
	"bytes"
	"context"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCredentialRepository is an in-memory CredentialRepository.
// This is intended for development and testing only.
type MemoryCredentialRepository struct {
	mu           sync.RWMutex
	byInvitation map[string]*User
	credentials  map[string]*CredentialRecord
}

var _ CredentialRepository = (*MemoryCredentialRepository)(nil)

// NewMemoryCredentialRepository creates an empty repository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{
		byInvitation: make(map[string]*User),
		credentials:  make(map[string]*CredentialRecord),
	}
}

// FindUser implements CredentialRepository.
func (r *MemoryCredentialRepository) FindUser(ctx context.Context, invitationID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byInvitation[invitationID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// CreateUser implements CredentialRepository.
func (r *MemoryCredentialRepository) CreateUser(ctx context.Context, invitationID string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byInvitation[invitationID]; ok {
		return nil, ErrUserExists
	}
	u := &User{
		ID:           uuid.NewString(),
		InvitationID: invitationID,
		CreatedAt:    time.Now().UTC(),
	}
	r.byInvitation[invitationID] = u
	cp := *u
	return &cp, nil
}

// FindCredential implements CredentialRepository.
func (r *MemoryCredentialRepository) FindCredential(ctx context.Context, credentialID []byte) (*CredentialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.credentials[hex.EncodeToString(credentialID)]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

// ListCredentials implements CredentialRepository.
func (r *MemoryCredentialRepository) ListCredentials(ctx context.Context, userID string) ([]*CredentialRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*CredentialRecord
	for _, rec := range r.credentials {
		if rec.UserID == userID {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID, out[j].ID) < 0 })
	return out, nil
}

// StoreCredential implements CredentialRepository.
func (r *MemoryCredentialRepository) StoreCredential(ctx context.Context, rec *CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := hex.EncodeToString(rec.ID)
	if existing, ok := r.credentials[key]; ok {
		if existing.UserID != rec.UserID {
			return ErrCredentialOwnedByOtherUser
		}
		return nil
	}
	for _, existing := range r.credentials {
		if existing.UserID == rec.UserID {
			return ErrUserHasCredential
		}
	}
	stored := copyRecord(rec)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.credentials[key] = stored
	return nil
}

// UpdateSignCounter implements CredentialRepository.
func (r *MemoryCredentialRepository) UpdateSignCounter(ctx context.Context, credentialID []byte, newCounter uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.credentials[hex.EncodeToString(credentialID)]
	if !ok {
		return ErrUnknownCredential
	}
	if !CounterAdvances(rec.SignCount, newCounter) {
		return ErrCounterRegression
	}
	rec.SignCount = newCounter
	rec.LastUsedAt = time.Now().UTC()
	return nil
}

// Ping implements CredentialRepository.
func (r *MemoryCredentialRepository) Ping(ctx context.Context) error {
	return nil
}

// UserCount returns the number of users.
func (r *MemoryCredentialRepository) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byInvitation)
}

// CredentialCount returns the number of credentials.
func (r *MemoryCredentialRepository) CredentialCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.credentials)
}

func copyRecord(rec *CredentialRecord) *CredentialRecord {
	cp := *rec
	cp.ID = append([]byte(nil), rec.ID...)
	cp.PublicKey = append([]byte(nil), rec.PublicKey...)
	cp.AAGUID = append([]byte(nil), rec.AAGUID...)
	cp.Transports = append([]string(nil), rec.Transports...)
	return &cp
}
