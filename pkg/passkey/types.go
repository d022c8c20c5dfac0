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
	"encoding/json"
	"time"
)

// Challenge is a one-time value bound to a session.
type Challenge struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Encoded returns the unpadded base64url form that browsers place in
// clientDataJSON.
func (c Challenge) Encoded() string {
	return EncodeBinary(c.Value)
}

// Session is the per-client state carried between requests. The cookie
// codec in pkg/session is its only persistence.
type Session struct {
	Authenticated bool       `json:"authenticated"`
	UserID        string     `json:"user_id,omitempty"`
	Challenge     *Challenge `json:"challenge,omitempty"`
}

// Invitation is an invitation document.
type Invitation struct {
	ID        string
	Label     string
	Code      string
	Used      bool
	CreatedAt time.Time
	Revision  string
}

// InvitationHandle is the result of a successful validation.
type InvitationHandle struct {
	ID   string `json:"invitationId"`
	Used bool   `json:"used"`
}

// User is a registered account, created from exactly one invitation.
type User struct {
	ID           string
	InvitationID string
	CreatedAt    time.Time
}

// CredentialRecord is a stored passkey.
type CredentialRecord struct {
	ID              []byte
	UserID          string
	PublicKey       []byte
	SignCount       uint32
	Transports      []string
	AAGUID          []byte
	AttestationType string
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	LastUsedAt      time.Time
}

// RegistrationRequest is the input of the registration ceremony. The
// invitation is referenced by id or by code; the id wins when both are set.
type RegistrationRequest struct {
	InvitationID string          `json:"invitationId,omitempty"`
	Code         string          `json:"code,omitempty"`
	Credential   json.RawMessage `json:"credential"`
}

// RegistrationResult is the output of a completed registration.
type RegistrationResult struct {
	UserID            string
	InvitationID      string
	CredentialID      []byte
	AlreadyRegistered bool
}

// AuthenticationResult is the output of a completed authentication.
type AuthenticationResult struct {
	UserID       string
	CredentialID []byte
	SignCount    uint32
}
