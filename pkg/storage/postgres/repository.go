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

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
)

// Repository stores users and credentials in PostgreSQL.
type Repository struct {
	db DB
}

var _ passkey.CredentialRepository = (*Repository)(nil)

// NewRepository creates a Repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindUser(ctx context.Context, invitationID string) (*passkey.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, invitation_id, created_at FROM users WHERE invitation_id = $1`,
		invitationID)

	var u passkey.User
	err := row.Scan(&u.ID, &u.InvitationID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) CreateUser(ctx context.Context, invitationID string) (*passkey.User, error) {
	u := &passkey.User{
		ID:           uuid.NewString(),
		InvitationID: invitationID,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, invitation_id, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.InvitationID, u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, passkey.ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const selectCredential = `
	SELECT credential_id, user_id, public_key, sign_count, transports, aaguid,
	       attestation_type, backup_eligible, backup_state, created_at, last_used_at
	FROM passkey_credentials`

func scanCredential(row pgx.Row) (*passkey.CredentialRecord, error) {
	var (
		rec       passkey.CredentialRecord
		signCount int64
		lastUsed  *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.PublicKey,
		&signCount,
		&rec.Transports,
		&rec.AAGUID,
		&rec.AttestationType,
		&rec.BackupEligible,
		&rec.BackupState,
		&rec.CreatedAt,
		&lastUsed,
	)
	if err != nil {
		return nil, err
	}
	rec.SignCount = uint32(signCount)
	if lastUsed != nil {
		rec.LastUsedAt = *lastUsed
	}
	return &rec, nil
}

func (r *Repository) FindCredential(ctx context.Context, credentialID []byte) (*passkey.CredentialRecord, error) {
	rec, err := scanCredential(r.db.QueryRow(ctx, selectCredential+` WHERE credential_id = $1`, credentialID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *Repository) ListCredentials(ctx context.Context, userID string) ([]*passkey.CredentialRecord, error) {
	rows, err := r.db.Query(ctx, selectCredential+` WHERE user_id = $1 ORDER BY credential_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*passkey.CredentialRecord
	for rows.Next() {
		rec, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repository) StoreCredential(ctx context.Context, rec *passkey.CredentialRecord) error {
	transports := rec.Transports
	if transports == nil {
		transports = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO passkey_credentials (
			credential_id, user_id, public_key, sign_count, transports, aaguid,
			attestation_type, backup_eligible, backup_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.UserID, rec.PublicKey, int64(rec.SignCount), transports, rec.AAGUID,
		rec.AttestationType, rec.BackupEligible, rec.BackupState,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Either the credential id or the user's single credential slot is taken.
	var owner string
	err = r.db.QueryRow(ctx, `SELECT user_id FROM passkey_credentials WHERE credential_id = $1`, rec.ID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return passkey.ErrUserHasCredential
	}
	if err != nil {
		return err
	}
	if owner != rec.UserID {
		return passkey.ErrCredentialOwnedByOtherUser
	}
	return nil
}

func (r *Repository) UpdateSignCounter(ctx context.Context, credentialID []byte, newCounter uint32) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE passkey_credentials
		SET sign_count = $2, last_used_at = NOW()
		WHERE credential_id = $1
		  AND ($2 > sign_count OR ($2 = 0 AND sign_count = 0))`,
		credentialID, int64(newCounter))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM passkey_credentials WHERE credential_id = $1)`,
		credentialID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return passkey.ErrUnknownCredential
	}
	return passkey.ErrCounterRegression
}

func (r *Repository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
