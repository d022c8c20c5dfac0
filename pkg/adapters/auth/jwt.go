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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Secret is the HS256 signing secret (required, at least 32 bytes).
	Secret []byte

	// Issuer is the expected issuer claim (optional).
	Issuer string

	// Audience is the expected audience claim (optional).
	Audience string

	// HeaderName is the HTTP header name (default: "Authorization").
	HeaderName string
}

// JWTAuthenticator authenticates requests carrying HS256 bearer tokens.
type JWTAuthenticator struct {
	secret     []byte
	issuer     string
	audience   string
	headerName string
	parser     *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator.
func NewJWTAuthenticator(config *JWTConfig) (*JWTAuthenticator, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if len(config.Secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}

	headerName := config.HeaderName
	if headerName == "" {
		headerName = "Authorization"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		secret:     config.Secret,
		issuer:     config.Issuer,
		audience:   config.Audience,
		headerName: headerName,
		parser:     jwt.NewParser(opts...),
	}, nil
}

// AuthenticateHTTP implements Authenticator.
func (a *JWTAuthenticator) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	tokenString := bearerToken(r, a.headerName)
	if tokenString == "" {
		return nil, ErrNoCredentials
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			// Not a JWT; another authenticator in a chain may accept it.
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("%w: missing subject claim", ErrInvalidCredentials)
	}

	identity := &Identity{
		Subject: sub,
		Claims:  make(map[string]interface{}, len(claims)),
		Attributes: map[string]string{
			"auth_method": "jwt",
			"remote_addr": r.RemoteAddr,
		},
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}
	if role, ok := claims["role"].(string); ok {
		identity.Claims["roles"] = []string{role}
	}
	return identity, nil
}

// Issue signs a token for subject valid for ttl. It is used by the CLI to
// mint admin tokens.
func (a *JWTAuthenticator) Issue(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
		"role": "admin",
	}
	if a.issuer != "" {
		claims["iss"] = a.issuer
	}
	if a.audience != "" {
		claims["aud"] = a.audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Name implements Authenticator.
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}
