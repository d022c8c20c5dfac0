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
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/stretchr/testify/require"
)

const testOrigin = "https://example.test"

type testEnv struct {
	svc         *Service
	docs        *docstore.MemoryStore
	repo        *MemoryCredentialRepository
	invitations *InvitationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	docs := docstore.NewMemoryStore()
	invitations, err := NewInvitationService(docs, testOrigin)
	require.NoError(t, err)
	repo := NewMemoryCredentialRepository()

	svc, err := NewService(ServiceParams{
		Config: &Config{
			RPDisplayName: "Example",
			RPOrigins:     []string{testOrigin},
		},
		Credentials: repo,
		Invitations: invitations,
	})
	require.NoError(t, err)

	return &testEnv{svc: svc, docs: docs, repo: repo, invitations: invitations}
}

// newInvitation creates an invitation document and issues a code for it.
func (e *testEnv) newInvitation(t *testing.T) (id, code string) {
	t.Helper()
	ctx := context.Background()
	inv, err := e.invitations.Create(ctx, "test")
	require.NoError(t, err)
	code, err = e.invitations.Issue(ctx, inv.ID)
	require.NoError(t, err)
	return inv.ID, code
}

// device is a virtual authenticator holding one credential.
type device struct {
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
	credential    virtualwebauthn.Credential
}

func newDevice(origin string) *device {
	return &device{
		rp: virtualwebauthn.RelyingParty{
			Name:   "Example",
			ID:     "example.test",
			Origin: origin,
		},
		authenticator: virtualwebauthn.NewAuthenticator(),
		credential:    virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2),
	}
}

// attest issues registration options on sess and returns the attestation
// the browser would post.
func (d *device) attest(t *testing.T, svc *Service, sess *Session) json.RawMessage {
	t.Helper()
	options, err := svc.RegistrationOptions(sess, "")
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options)
	require.NoError(t, err)
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	response := virtualwebauthn.CreateAttestationResponse(d.rp, d.authenticator, d.credential, *parsed)
	d.authenticator.AddCredential(d.credential)
	return json.RawMessage(response)
}

// assertion issues authentication options on sess and returns the signed
// assertion. The credential counter is used as-is.
func (d *device) assertion(t *testing.T, svc *Service, sess *Session) json.RawMessage {
	t.Helper()
	options, err := svc.AuthenticationOptions(sess)
	require.NoError(t, err)

	optionsJSON, err := json.Marshal(options)
	require.NoError(t, err)
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	return json.RawMessage(virtualwebauthn.CreateAssertionResponse(d.rp, d.authenticator, d.credential, *parsed))
}

// register runs a full registration for a fresh invitation.
func (e *testEnv) register(t *testing.T, d *device) (*RegistrationResult, *Session) {
	t.Helper()
	invitationID, _ := e.newInvitation(t)
	sess := &Session{}
	cred := d.attest(t, e.svc, sess)
	res, err := e.svc.Register(context.Background(), sess, RegistrationRequest{
		InvitationID: invitationID,
		Credential:   cred,
	})
	require.NoError(t, err)
	return res, sess
}

func snapshot(s *Session) *Session {
	cp := *s
	return &cp
}
