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

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// Keys maps key names to secret values.
	Keys map[string]string

	// HeaderName is the HTTP header name (default: "X-API-Key").
	// "Authorization: Bearer <key>" is accepted as well.
	HeaderName string
}

type apiKey struct {
	name   string
	digest [sha256.Size]byte
}

// APIKeyAuthenticator authenticates requests using static API keys.
// Keys are compared by SHA-256 digest in constant time.
type APIKeyAuthenticator struct {
	keys       []apiKey
	headerName string
}

// NewAPIKeyAuthenticator creates an API key authenticator.
func NewAPIKeyAuthenticator(config *APIKeyConfig) (*APIKeyAuthenticator, error) {
	if config == nil {
		config = &APIKeyConfig{}
	}
	headerName := config.HeaderName
	if headerName == "" {
		headerName = "X-API-Key"
	}

	a := &APIKeyAuthenticator{headerName: headerName}
	for name, secret := range config.Keys {
		if len(secret) < 16 {
			return nil, fmt.Errorf("api key %q is shorter than 16 characters", name)
		}
		a.keys = append(a.keys, apiKey{name: name, digest: sha256.Sum256([]byte(secret))})
	}
	return a, nil
}

// AuthenticateHTTP implements Authenticator.
func (a *APIKeyAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	presented := r.Header.Get(a.headerName)
	if presented == "" {
		presented = bearerToken(r, "Authorization")
	}
	if presented == "" {
		return nil, ErrNoCredentials
	}

	digest := sha256.Sum256([]byte(presented))
	match := ""
	for _, k := range a.keys {
		if subtle.ConstantTimeCompare(digest[:], k.digest[:]) == 1 {
			match = k.name
		}
	}
	if match == "" {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Subject: match,
		Claims:  map[string]interface{}{"roles": []string{"admin"}},
		Attributes: map[string]string{
			"auth_method": "apikey",
			"remote_addr": r.RemoteAddr,
		},
	}, nil
}

// Name implements Authenticator.
func (a *APIKeyAuthenticator) Name() string {
	return "apikey"
}
