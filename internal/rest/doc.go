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

// Package rest provides the passkeygate HTTP server.
//
// The server mounts the passkey ceremony endpoints under /api/auth, the
// post gate at /posts/{slug}, Kubernetes-style health probes and the
// Prometheus metrics endpoint, behind recovery, correlation, logging,
// metrics and CORS middleware. Ceremony endpoints are rate limited per
// client.
//
// # Server Setup
//
//	handler := passkeyhttp.NewHandler(svc, sessions).WithAdmin(admin)
//	server, _ := rest.NewServer(&rest.Config{
//	    Addr:     ":8080",
//	    Passkeys: handler,
//	    Health:   checker,
//	    Limiter:  ratelimit.New(cfg.RateLimit),
//	})
//
//	go server.Start()
//
//	// Graceful shutdown
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	server.Stop(ctx)
//
// # Endpoints
//
//   - /api/auth/*        passkey ceremonies (see pkg/passkey/http)
//   - GET /posts/{slug}  gated content
//   - GET /health/live, /health/ready, /health/startup
//   - GET /metrics       Prometheus exposition
//   - GET /version       build version
package rest
