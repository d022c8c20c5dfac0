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

package http

import "encoding/json"

// ChallengeResponse is returned by GET /challenge. Challenge carries the raw
// bytes as a JSON number array; ChallengeB64 is the unpadded base64url form.
type ChallengeResponse struct {
	Challenge    []int  `json:"challenge"`
	ChallengeB64 string `json:"challengeB64"`
}

// ValidateInvitationRequest is the request body for POST /validate-invitation.
type ValidateInvitationRequest struct {
	Code string `json:"code"`
}

// ValidateInvitationResponse is returned for a valid, unused code.
type ValidateInvitationResponse struct {
	Valid        bool   `json:"valid"`
	InvitationID string `json:"invitationId"`
}

// RegisterRequest is the request body for POST /register. The invitation is
// referenced by id, by code, or both.
type RegisterRequest struct {
	InvitationID string          `json:"invitationId,omitempty"`
	Code         string          `json:"code,omitempty"`
	Credential   json.RawMessage `json:"credential"`
}

// VerifyRequest is the request body for POST /verify.
type VerifyRequest struct {
	Credential json.RawMessage `json:"credential"`
}

// CeremonyResponse is returned after a completed registration or login.
type CeremonyResponse struct {
	Success      bool   `json:"success"`
	UserID       string `json:"userId"`
	CredentialID string `json:"credentialId,omitempty"`
}

// SessionResponse is returned by GET /session.
type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"userId,omitempty"`
}

// GenerateInvitationRequest is the request body for POST /generate-invitation.
type GenerateInvitationRequest struct {
	InvitationID string `json:"invitationId"`
}

// GenerateInvitationResponse carries the link to send to the invitee.
type GenerateInvitationResponse struct {
	InvitationLink string `json:"invitationLink"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeMethodNotAllowed   = "method_not_allowed"
	ErrorCodeInvalidInvitation  = "invalid_invitation"
	ErrorCodeInvitationUsed     = "invitation_used"
	ErrorCodeChallengeExpired   = "challenge_expired"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeUnknownCredential  = "unknown_credential"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeUnauthorized       = "unauthorized"
	ErrorCodeRateLimited        = "rate_limited"
	ErrorCodeInternalError      = "internal_error"
)
