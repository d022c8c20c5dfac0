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

// Package http provides HTTP handlers for invitation-gated passkey
// registration and authentication.
//
// Ceremony state lives in an encrypted session cookie managed by
// pkg/session, so the handlers are stateless and can run behind any number
// of replicas sharing the session secret.
//
// Endpoints, relative to the mount point:
//
//	GET  /challenge                 issue a challenge
//	GET  /options/registration      creation options around a fresh challenge
//	GET  /options/authentication    request options around a fresh challenge
//	POST /validate-invitation       check an invitation code
//	POST /register                  complete registration
//	POST /verify                    complete authentication
//	GET  /session                   report the session state
//	POST /logout                    clear the session
//	POST /generate-invitation       issue an invitation code (admin)
//
// Usage with chi:
//
//	handler := passkeyhttp.NewHandler(svc, sessions).WithAdmin(admin)
//	r.Route("/api/auth", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
package http
