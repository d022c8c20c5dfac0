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
	"encoding/json"
	"errors"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
)

// Authenticate runs the authentication ceremony:
//
//	consume challenge -> look up credential -> verify assertion ->
//	advance counter -> establish session
//
// The owning user comes from the stored credential. The assertion's
// userHandle is not trusted for identity.
func (s *Service) Authenticate(ctx context.Context, sess *Session, raw json.RawMessage) (*AuthenticationResult, error) {
	const op = "authenticate"

	if sess == nil || isEmptyJSON(raw) {
		return nil, NewError(op, ErrMissingInput)
	}

	challenge, err := s.challenges.ConsumeChallenge(sess)
	if err != nil {
		return nil, err
	}

	body, err := CanonicalizeCredential(raw)
	if err != nil {
		return nil, NewError(op, err)
	}
	parsed, err := protocol.ParseCredentialRequestResponseBytes(body)
	if err != nil {
		s.log.Warn(ctx, "assertion could not be parsed", logger.String("detail", describe(err)))
		return nil, NewError(op, classified(ErrAssertionInvalid, err))
	}
	log := s.log.With(logger.String("credential_id", EncodeBinary(parsed.RawID)))

	rec, err := s.credentials.FindCredential(ctx, parsed.RawID)
	if err != nil {
		return nil, s.persistenceFailure(ctx, log, op, "find credential", err)
	}
	if rec == nil {
		log.Info(ctx, "assertion for unknown credential")
		return nil, NewError(op, ErrUnknownCredential)
	}
	log = log.With(logger.String("user_id", rec.UserID))

	verifyUser := s.config.UserVerificationRequirement() == protocol.VerificationRequired
	err = parsed.Verify(
		challenge.Encoded(),
		s.config.RPID,
		s.config.RPOrigins,
		nil,
		protocol.TopOriginIgnoreVerificationMode,
		"",
		verifyUser,
		true,
		rec.PublicKey,
	)
	if err != nil {
		log.Warn(ctx, "assertion rejected", logger.String("detail", describe(err)))
		return nil, NewError(op, classified(ErrAssertionInvalid, err))
	}

	next := parsed.Response.AuthenticatorData.Counter
	if !CounterAdvances(rec.SignCount, next) {
		log.Warn(ctx, "signature counter did not advance",
			logger.Uint32("stored", rec.SignCount),
			logger.Uint32("presented", next))
		return nil, NewError(op, ErrPossibleCloning)
	}

	if err := s.credentials.UpdateSignCounter(ctx, rec.ID, next); err != nil {
		switch {
		case errors.Is(err, ErrCounterRegression):
			log.Warn(ctx, "signature counter lost a concurrent update", logger.Uint32("presented", next))
			return nil, NewError(op, ErrPossibleCloning)
		case errors.Is(err, ErrUnknownCredential):
			return nil, NewError(op, ErrUnknownCredential)
		default:
			return nil, s.persistenceFailure(ctx, log, op, "update sign counter", err)
		}
	}

	s.establish(sess, rec.UserID)
	log.Info(ctx, "authentication completed", logger.Uint32("sign_count", next))

	return &AuthenticationResult{
		UserID:       rec.UserID,
		CredentialID: rec.ID,
		SignCount:    next,
	}, nil
}
