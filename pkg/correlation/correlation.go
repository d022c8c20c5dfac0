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

// Package correlation carries a per-request id through contexts and HTTP
// headers so ceremony logs from one request can be joined.
package correlation

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey struct{}

const (
	// Header is the response and preferred request header.
	Header = "X-Correlation-ID"

	// RequestIDHeader is accepted as a fallback on requests.
	RequestIDHeader = "X-Request-ID"
)

// Client-supplied ids are echoed into logs and headers, so only a
// conservative character set is accepted.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// NewContext returns ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the id carried by ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// NewID generates a UUID v4 id.
func NewID() string {
	return uuid.NewString()
}

// Middleware takes the id from X-Correlation-ID or X-Request-ID, or
// generates one, stores it in the request context and echoes it back.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = r.Header.Get(RequestIDHeader)
		}
		if !validID.MatchString(id) {
			id = NewID()
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
	})
}
