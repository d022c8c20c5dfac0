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

// Package auth authenticates administrative HTTP requests.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNoCredentials is returned when a request carries no credentials
	// for the authenticator.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials is returned when credentials are present but rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Identity represents an authenticated caller.
type Identity struct {
	// Subject identifies the caller (API key name, JWT subject).
	Subject string

	// Claims carries authenticated information such as roles.
	Claims map[string]interface{}

	// Attributes records how authentication happened.
	Attributes map[string]string
}

// Authenticator authenticates HTTP requests.
type Authenticator interface {
	// AuthenticateHTTP returns the caller identity or an error wrapping
	// ErrNoCredentials or ErrInvalidCredentials.
	AuthenticateHTTP(r *http.Request) (*Identity, error)

	// Name returns the authenticator name for logging.
	Name() string
}

type contextKey struct{}

// GetIdentity extracts the identity from a context.
func GetIdentity(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(contextKey{}).(*Identity); ok {
		return identity
	}
	return nil
}

// WithIdentity adds an identity to a context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// HasRole checks if the identity has a specific role.
func (i *Identity) HasRole(role string) bool {
	if i == nil || i.Claims == nil {
		return false
	}
	switch r := i.Claims["roles"].(type) {
	case []string:
		for _, v := range r {
			if v == role {
				return true
			}
		}
	case []interface{}:
		for _, v := range r {
			if s, ok := v.(string); ok && s == role {
				return true
			}
		}
	case string:
		return r == role
	}
	return false
}

func bearerToken(r *http.Request, header string) string {
	v := r.Header.Get(header)
	if v == "" {
		return ""
	}
	if token, ok := strings.CutPrefix(v, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(v)
}

// Chain tries each authenticator in order and returns the first success.
// An empty chain rejects every request.
type Chain []Authenticator

// AuthenticateHTTP implements Authenticator.
func (c Chain) AuthenticateHTTP(r *http.Request) (*Identity, error) {
	err := ErrNoCredentials
	for _, a := range c {
		identity, aerr := a.AuthenticateHTTP(r)
		if aerr == nil {
			return identity, nil
		}
		// Prefer reporting a rejected credential over an absent one.
		if errors.Is(aerr, ErrInvalidCredentials) || errors.Is(err, ErrNoCredentials) {
			err = aerr
		}
	}
	return nil, err
}

// Name implements Authenticator.
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, a := range c {
		names = append(names, a.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Middleware authenticates requests with a and stores the identity in the
// request context. Failures are passed to deny, which writes the response.
func Middleware(a Authenticator, deny func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.AuthenticateHTTP(r)
			if err != nil {
				deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
