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
	"crypto/rand"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
)

// ServiceParams contains the dependencies of a Service.
type ServiceParams struct {
	Config      *Config
	Credentials CredentialRepository
	Invitations *InvitationService
	Logger      logger.Logger
}

// Service runs the registration and authentication ceremonies.
type Service struct {
	config      *Config
	webauthn    *webauthn.WebAuthn
	challenges  *ChallengeStore
	invitations *InvitationService
	credentials CredentialRepository
	log         logger.Logger
}

// NewService creates a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential repository is required")
	}
	if params.Invitations == nil {
		return nil, fmt.Errorf("invitation service is required")
	}

	cfg := *params.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(cfg.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	log := params.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Service{
		config:      &cfg,
		webauthn:    wa,
		challenges:  NewChallengeStore(cfg.ChallengeTTL),
		invitations: params.Invitations,
		credentials: params.Credentials,
		log:         log.With(logger.String("component", "passkey")),
	}, nil
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return *s.config
}

// Invitations returns the invitation service.
func (s *Service) Invitations() *InvitationService {
	return s.invitations
}

// Credentials returns the credential repository.
func (s *Service) Credentials() CredentialRepository {
	return s.credentials
}

// IssueChallenge issues a challenge on sess.
func (s *Service) IssueChallenge(sess *Session) (Challenge, error) {
	return s.challenges.IssueChallenge(sess)
}

// RegistrationOptions issues a challenge and wraps it in creation options
// for navigator.credentials.create.
func (s *Service) RegistrationOptions(sess *Session, displayName string) (*protocol.PublicKeyCredentialCreationOptions, error) {
	c, err := s.challenges.IssueChallenge(sess)
	if err != nil {
		return nil, err
	}
	handle := make([]byte, 16)
	if _, err := rand.Read(handle); err != nil {
		return nil, NewError("registration options", err)
	}
	if displayName == "" {
		displayName = "Invited user"
	}
	return &protocol.PublicKeyCredentialCreationOptions{
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: s.config.RPDisplayName},
			ID:               s.config.RPID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: displayName},
			DisplayName:      displayName,
			ID:               protocol.URLEncodedBase64(handle),
		},
		Challenge:  protocol.URLEncodedBase64(c.Value),
		Parameters: webauthn.CredentialParametersDefault(),
		Timeout:    int(s.config.Timeout.Milliseconds()),
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: s.config.UserVerificationRequirement(),
		},
		Attestation: protocol.PreferNoAttestation,
	}, nil
}

// AuthenticationOptions issues a challenge and wraps it in request options
// for navigator.credentials.get. No allow list is sent, so discoverable
// credentials are used.
func (s *Service) AuthenticationOptions(sess *Session) (*protocol.PublicKeyCredentialRequestOptions, error) {
	c, err := s.challenges.IssueChallenge(sess)
	if err != nil {
		return nil, err
	}
	return &protocol.PublicKeyCredentialRequestOptions{
		Challenge:        protocol.URLEncodedBase64(c.Value),
		Timeout:          int(s.config.Timeout.Milliseconds()),
		RelyingPartyID:   s.config.RPID,
		UserVerification: s.config.UserVerificationRequirement(),
	}, nil
}

// Logout clears authentication state and any pending challenge.
func (s *Service) Logout(sess *Session) {
	if sess == nil {
		return
	}
	*sess = Session{}
}

// registrant satisfies webauthn.User for attestation verification. The
// verified credential is bound to a user only after the invitation checks,
// so the handle carries no identity.
type registrant struct{}

var registrantHandle = []byte("passkeygate-registrant")

func (registrant) WebAuthnID() []byte                        { return registrantHandle }
func (registrant) WebAuthnName() string                      { return "registrant" }
func (registrant) WebAuthnDisplayName() string               { return "registrant" }
func (registrant) WebAuthnCredentials() []webauthn.Credential { return nil }
