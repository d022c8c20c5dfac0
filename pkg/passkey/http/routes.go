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

package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountChi mounts the passkey routes on a chi router. Handlers are
// registered for every method so they answer 405 in the JSON error format.
//
// Example:
//
//	handler := passkeyhttp.NewHandler(svc, sessions)
//	r.Route("/api/auth", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
func MountChi(r chi.Router, h *Handler) {
	for _, route := range h.Routes() {
		r.HandleFunc(route.Path, route.Handler)
	}
}

// MountPosts mounts the post gate at /posts/{slug}.
func MountPosts(r chi.Router, h *Handler) {
	r.HandleFunc("/posts/{slug}", h.Post)
}

// RouteEntry represents a single route with its method, path, and handler.
type RouteEntry struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Routes returns a slice of route entries for manual mounting. Admin routes
// come wrapped with the admin authenticator.
func (h *Handler) Routes() []RouteEntry {
	return []RouteEntry{
		{Method: http.MethodGet, Path: "/challenge", Handler: h.Challenge},
		{Method: http.MethodGet, Path: "/options/registration", Handler: h.RegistrationOptions},
		{Method: http.MethodGet, Path: "/options/authentication", Handler: h.AuthenticationOptions},
		{Method: http.MethodPost, Path: "/validate-invitation", Handler: h.ValidateInvitation},
		{Method: http.MethodPost, Path: "/register", Handler: h.Register},
		{Method: http.MethodPost, Path: "/verify", Handler: h.Verify},
		{Method: http.MethodGet, Path: "/session", Handler: h.Session},
		{Method: http.MethodPost, Path: "/logout", Handler: h.Logout},
		{Method: http.MethodPost, Path: "/generate-invitation", Handler: h.adminOnly(h.GenerateInvitation)},
	}
}
