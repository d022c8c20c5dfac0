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

// Package passkey implements invitation-gated passkey registration and
// authentication.
//
// A Service owns three collaborators:
//
//   - ChallengeStore issues single-use, session-bound challenges.
//   - InvitationService validates, issues and consumes invitation codes held
//     in a document store.
//   - CredentialRepository persists users and their WebAuthn credentials.
//
// Register verifies an attestation against the pending challenge, binds the
// credential to the user created from the invitation, and marks the
// invitation used. Authenticate verifies an assertion against the stored
// public key and advances the signature counter. Both ceremonies mutate the
// caller's Session only on success.
package passkey
