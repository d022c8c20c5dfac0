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
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/auth"
)

// AdminAuthenticator builds the authenticator guarding admin endpoints.
// Bearer JWTs are tried before API keys. An empty chain rejects everything.
func (cfg *AdminConfig) AdminAuthenticator() (auth.Authenticator, error) {
	chain := auth.Chain{}

	if cfg.JWTSecret != "" {
		a, err := cfg.JWTAuthenticator()
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}

	if len(cfg.APIKeys) > 0 {
		a, err := auth.NewAPIKeyAuthenticator(&auth.APIKeyConfig{Keys: cfg.APIKeys})
		if err != nil {
			return nil, err
		}
		chain = append(chain, a)
	}

	return chain, nil
}

// JWTAuthenticator builds the HS256 authenticator. The CLI uses it to mint
// admin tokens.
func (cfg *AdminConfig) JWTAuthenticator() (*auth.JWTAuthenticator, error) {
	return auth.NewJWTAuthenticator(&auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
}

// Enabled reports whether any admin credential is configured.
func (cfg *AdminConfig) Enabled() bool {
	return cfg.JWTSecret != "" || len(cfg.APIKeys) > 0
}
