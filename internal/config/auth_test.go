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

package config

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminAuthenticator_Empty(t *testing.T) {
	cfg := &AdminConfig{}
	assert.False(t, cfg.Enabled())

	a, err := cfg.AdminAuthenticator()
	require.NoError(t, err)

	r := httptest.NewRequest("POST", "/generate-invitation", nil)
	r.Header.Set("X-API-Key", "anything-0123456789")
	_, err = a.AuthenticateHTTP(r)
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}

func TestAdminAuthenticator_Both(t *testing.T) {
	cfg := &AdminConfig{
		APIKeys:   map[string]string{"studio": "studio-key-0123456789"},
		JWTSecret: testSecret,
		JWTIssuer: "passkeygate",
	}
	a, err := cfg.AdminAuthenticator()
	require.NoError(t, err)
	assert.Equal(t, "chain(jwt,apikey)", a.Name())

	r := httptest.NewRequest("POST", "/generate-invitation", nil)
	r.Header.Set("X-API-Key", "studio-key-0123456789")
	id, err := a.AuthenticateHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "studio", id.Subject)

	issuer, err := cfg.JWTAuthenticator()
	require.NoError(t, err)
	token, err := issuer.Issue("ops", time.Minute)
	require.NoError(t, err)

	r = httptest.NewRequest("POST", "/generate-invitation", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	id, err = a.AuthenticateHTTP(r)
	require.NoError(t, err)
	assert.Equal(t, "ops", id.Subject)
}

func TestAdminAuthenticator_InvalidKey(t *testing.T) {
	cfg := &AdminConfig{APIKeys: map[string]string{"weak": "short"}}
	_, err := cfg.AdminAuthenticator()
	assert.Error(t, err)
}
