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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
)

// Register runs the registration ceremony:
//
//	consume challenge -> verify attestation -> resolve invitation ->
//	resolve or create user -> store credential -> mark invitation used ->
//	establish session
//
// The invitation lookup happens after cryptographic verification so forged
// attempts cost no document store I/O. sess is only marked authenticated
// once every step has succeeded.
func (s *Service) Register(ctx context.Context, sess *Session, req RegistrationRequest) (*RegistrationResult, error) {
	const op = "register"

	if sess == nil || (req.InvitationID == "" && req.Code == "") || isEmptyJSON(req.Credential) {
		return nil, NewError(op, ErrMissingInput)
	}

	challenge, err := s.challenges.ConsumeChallenge(sess)
	if err != nil {
		return nil, err
	}

	credential, err := s.verifyAttestation(challenge, req.Credential)
	if err != nil {
		s.log.Warn(ctx, "attestation rejected", logger.String("detail", describe(err)))
		if errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrMissingInput) {
			return nil, NewError(op, err)
		}
		return nil, NewError(op, classified(ErrAttestationInvalid, err))
	}
	log := s.log.With(logger.String("credential_id", EncodeBinary(credential.ID)))

	inv, err := s.resolveInvitation(ctx, req)
	if err != nil {
		log.Warn(ctx, "invitation rejected", logger.Error(err))
		return nil, err
	}
	log = log.With(logger.String("invitation_id", inv.ID))

	existing, err := s.credentials.FindUser(ctx, inv.ID)
	if err != nil {
		return nil, s.persistenceFailure(ctx, log, op, "find user", err)
	}

	if inv.Used {
		// A retry of a registration that already completed carries the
		// same credential; anything else is a second use of the code.
		if existing != nil {
			owned, err := s.ownsCredential(ctx, existing.ID, credential.ID)
			if err != nil {
				return nil, s.persistenceFailure(ctx, log, op, "find credential", err)
			}
			if owned {
				log.Info(ctx, "registration retry recognized", logger.String("user_id", existing.ID))
				s.establish(sess, existing.ID)
				return &RegistrationResult{
					UserID:            existing.ID,
					InvitationID:      inv.ID,
					CredentialID:      credential.ID,
					AlreadyRegistered: true,
				}, nil
			}
		}
		log.Warn(ctx, "invitation already used")
		return nil, NewError(op, ErrInvitationUsed)
	}

	user, created, err := s.resolveUser(ctx, inv.ID, existing)
	if err != nil {
		return nil, s.persistenceFailure(ctx, log, op, "create user", err)
	}
	log = log.With(logger.String("user_id", user.ID))

	alreadyStored := false
	if !created {
		// Another request already created the user for this invitation.
		// StoreCredential decides atomically whether this attempt may join.
		alreadyStored, err = s.ownsCredential(ctx, user.ID, credential.ID)
		if err != nil {
			return nil, s.persistenceFailure(ctx, log, op, "find credential", err)
		}
	}

	rec := toCredentialRecord(user.ID, credential)
	if err := s.credentials.StoreCredential(ctx, rec); err != nil {
		switch {
		case errors.Is(err, ErrCredentialOwnedByOtherUser):
			log.Warn(ctx, "credential id belongs to another user")
			return nil, NewError(op, err)
		case errors.Is(err, ErrUserHasCredential):
			log.Warn(ctx, "invitation claimed by a concurrent registration")
			return nil, NewError(op, ErrInvitationUsed)
		default:
			return nil, s.persistenceFailure(ctx, log, op, "store credential", err)
		}
	}

	if err := s.invitations.MarkUsed(ctx, inv.ID); err != nil {
		return nil, s.persistenceFailure(ctx, log, op, "mark invitation used", err)
	}

	s.establish(sess, user.ID)
	log.Info(ctx, "registration completed",
		logger.Uint32("sign_count", rec.SignCount),
		logger.Bool("retry", alreadyStored))

	return &RegistrationResult{
		UserID:            user.ID,
		InvitationID:      inv.ID,
		CredentialID:      credential.ID,
		AlreadyRegistered: alreadyStored,
	}, nil
}

func (s *Service) verifyAttestation(challenge Challenge, raw json.RawMessage) (*webauthn.Credential, error) {
	body, err := CanonicalizeCredential(raw)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialCreationResponseBytes(body)
	if err != nil {
		return nil, err
	}
	session := webauthn.SessionData{
		Challenge:        challenge.Encoded(),
		RelyingPartyID:   s.config.RPID,
		UserID:           registrantHandle,
		UserVerification: s.config.UserVerificationRequirement(),
		CredParams:       webauthn.CredentialParametersDefault(),
	}
	return s.webauthn.CreateCredential(registrant{}, session, parsed)
}

func (s *Service) resolveInvitation(ctx context.Context, req RegistrationRequest) (*Invitation, error) {
	if req.InvitationID != "" {
		inv, err := s.invitations.Get(ctx, req.InvitationID)
		if err != nil {
			return nil, err
		}
		// An invitation without an issued code cannot be redeemed.
		if inv.Code == "" || (req.Code != "" && inv.Code != req.Code) {
			return nil, NewError("resolve invitation", ErrInvitationNotFound)
		}
		return inv, nil
	}

	handle, err := s.invitations.Validate(ctx, req.Code)
	if err != nil && !errors.Is(err, ErrInvitationUsed) {
		return nil, err
	}
	return s.invitations.Get(ctx, handle.ID)
}

// resolveUser returns the user for invitationID, creating it when needed.
// created reports whether this call inserted the row.
func (s *Service) resolveUser(ctx context.Context, invitationID string, existing *User) (*User, bool, error) {
	if existing != nil {
		return existing, false, nil
	}
	user, err := s.credentials.CreateUser(ctx, invitationID)
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, ErrUserExists) {
		return nil, false, err
	}
	user, err = s.credentials.FindUser(ctx, invitationID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, fmt.Errorf("user for invitation %q vanished after conflict", invitationID)
	}
	return user, false, nil
}

func (s *Service) ownsCredential(ctx context.Context, userID string, credentialID []byte) (bool, error) {
	rec, err := s.credentials.FindCredential(ctx, credentialID)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.UserID == userID && bytes.Equal(rec.ID, credentialID), nil
}

func (s *Service) establish(sess *Session, userID string) {
	*sess = Session{Authenticated: true, UserID: userID}
}

func (s *Service) persistenceFailure(ctx context.Context, log logger.Logger, op, step string, err error) error {
	log.Error(ctx, "ceremony persistence failure", logger.String("step", step), logger.Error(err))
	if errors.Is(err, ErrPersistence) {
		return NewError(op, err)
	}
	return NewError(op, classified(ErrPersistence, fmt.Errorf("%s: %w", step, err)))
}

func toCredentialRecord(userID string, c *webauthn.Credential) *CredentialRecord {
	transports := make([]string, 0, len(c.Transport))
	for _, t := range c.Transport {
		transports = append(transports, string(t))
	}
	return &CredentialRecord{
		ID:              c.ID,
		UserID:          userID,
		PublicKey:       c.PublicKey,
		SignCount:       c.Authenticator.SignCount,
		Transports:      transports,
		AAGUID:          c.Authenticator.AAGUID,
		AttestationType: c.AttestationType,
		BackupEligible:  c.Flags.BackupEligible,
		BackupState:     c.Flags.BackupState,
	}
}

// describe renders protocol errors with their debug info for logs.
func describe(err error) string {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		if perr.DevInfo != "" {
			return fmt.Sprintf("%s: %s (%s)", perr.Type, perr.Details, perr.DevInfo)
		}
		return fmt.Sprintf("%s: %s", perr.Type, perr.Details)
	}
	return err.Error()
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
