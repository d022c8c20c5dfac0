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
	"fmt"
)

// schema is applied by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		invitation_id TEXT NOT NULL UNIQUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		credential_id    BYTEA PRIMARY KEY,
		user_id          UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		public_key       BYTEA NOT NULL,
		sign_count       BIGINT NOT NULL DEFAULT 0,
		transports       TEXT[] NOT NULL DEFAULT '{}',
		aaguid           BYTEA,
		attestation_type TEXT NOT NULL DEFAULT '',
		backup_eligible  BOOLEAN NOT NULL DEFAULT FALSE,
		backup_state     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used_at     TIMESTAMPTZ
	)`,
	`DROP INDEX IF EXISTS passkey_credentials_user_id_idx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS passkey_credentials_user_id_key ON passkey_credentials (user_id)`,
}

// Migrate creates the tables used by the repository.
func Migrate(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
