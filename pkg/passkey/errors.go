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
	"errors"
	"fmt"
)

// Sentinel errors for passkey ceremonies.
var (
	// ErrMissingInput is returned when a required request field is absent.
	ErrMissingInput = errors.New("missing required input")

	// ErrMalformedInput is returned when a request field cannot be decoded.
	ErrMalformedInput = errors.New("malformed input")

	// ErrChallengeNotFound is returned when the session has no pending
	// challenge, either because it was consumed or because it expired.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrInvitationNotFound is returned when no invitation matches a code or id.
	ErrInvitationNotFound = errors.New("invitation not found")

	// ErrInvitationUsed is returned when an invitation has already been consumed.
	ErrInvitationUsed = errors.New("invitation already used")

	// ErrAttestationInvalid is returned when a registration response fails verification.
	ErrAttestationInvalid = errors.New("attestation verification failed")

	// ErrAssertionInvalid is returned when an authentication response fails verification.
	ErrAssertionInvalid = errors.New("assertion verification failed")

	// ErrUnknownCredential is returned when an assertion names a credential
	// that is not registered.
	ErrUnknownCredential = errors.New("no credentials found")

	// ErrPossibleCloning is returned when a signature counter did not advance.
	ErrPossibleCloning = errors.New("signature counter did not advance")

	// ErrCounterRegression is returned by repositories when a conditional
	// counter update finds a stored counter at or above the new value.
	ErrCounterRegression = errors.New("signature counter regression")

	// ErrCredentialOwnedByOtherUser is returned when storing a credential id
	// that is already bound to a different user.
	ErrCredentialOwnedByOtherUser = errors.New("credential registered to another user")

	// ErrPersistence wraps failures of the backing stores.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotConfigured is returned when a service is missing a dependency.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// Error records the ceremony operation that failed along with the cause.
type Error struct {
	Op  string
	Err error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error for op.
func NewError(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// WrapError wraps err with op, passing nil through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// classified joins a sentinel with the detailed cause so callers can match
// the class with errors.Is while logs keep the detail.
func classified(class, cause error) error {
	if cause == nil {
		return class
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// IsClientError reports whether err is caused by the caller's input or
// ceremony state rather than by the server.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrMissingInput,
		ErrMalformedInput,
		ErrChallengeNotFound,
		ErrInvitationNotFound,
		ErrInvitationUsed,
		ErrAttestationInvalid,
		ErrAssertionInvalid,
		ErrUnknownCredential,
		ErrPossibleCloning,
		ErrCredentialOwnedByOtherUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUnknownCredential reports whether err signals an unregistered credential.
func IsUnknownCredential(err error) bool {
	return errors.Is(err, ErrUnknownCredential)
}

// IsChallengeNotFound reports whether err signals a missing or expired challenge.
func IsChallengeNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound)
}
