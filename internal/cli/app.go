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

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jeremyhahn/go-passkeygate/internal/config"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/auth"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/jeremyhahn/go-passkeygate/pkg/docstore/sanity"
	"github.com/jeremyhahn/go-passkeygate/pkg/health"
	"github.com/jeremyhahn/go-passkeygate/pkg/metrics"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	passkeyhttp "github.com/jeremyhahn/go-passkeygate/pkg/passkey/http"
	"github.com/jeremyhahn/go-passkeygate/pkg/session"
	"github.com/jeremyhahn/go-passkeygate/pkg/storage/postgres"
)

// App holds the components built from a server configuration.
type App struct {
	Config      *config.Config
	Logger      logger.Logger
	Docs        docstore.Store
	Credentials passkey.CredentialRepository
	Invitations *passkey.InvitationService
	Service     *passkey.Service
	Sessions    *session.Manager
	Posts       *passkey.PostGate
	Admin       auth.Authenticator
	Audit       audit.Recorder
	Health      *health.Checker

	pool *pgxpool.Pool
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig, out io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{
		Level:  level,
		Format: cfg.Format,
		Output: out,
	}), nil
}

// NewApp connects the configured stores and builds the passkey service on
// top of them. Close releases the database pool.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	app := &App{Config: cfg, Logger: log, Audit: audit.NewLogRecorder(log)}

	docs, err := openDocStore(cfg.DocStore)
	if err != nil {
		return nil, err
	}
	app.Docs = docs

	if err := app.openCredentials(ctx); err != nil {
		return nil, err
	}

	app.Invitations, err = passkey.NewInvitationService(docs, cfg.Invitations.SiteURL)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Service, err = passkey.NewService(passkey.ServiceParams{
		Config:      &cfg.WebAuthn,
		Credentials: app.Credentials,
		Invitations: app.Invitations,
		Logger:      log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Sessions, err = session.NewManager(cfg.Session)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("session: %w", err)
	}

	app.Posts, err = passkey.NewPostGate(docs)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Admin, err = cfg.Admin.AdminAuthenticator()
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Health = health.NewChecker(cfg.Health.Timeout)
	app.Health.Register("docstore", health.PingCheck("docstore", docs, func(healthy bool) {
		metrics.SetStoreHealth("docstore", healthy)
	}))
	app.Health.Register("credentials", health.PingCheck("credentials", app.Credentials, func(healthy bool) {
		metrics.SetStoreHealth("credentials", healthy)
	}))

	return app, nil
}

func openDocStore(cfg config.DocStoreConfig) (docstore.Store, error) {
	switch cfg.Backend {
	case config.BackendSanity:
		client, err := sanity.New(cfg.Sanity)
		if err != nil {
			return nil, fmt.Errorf("docstore: %w", err)
		}
		return client, nil
	case config.BackendMemory, "":
		return docstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown docstore backend: %s", cfg.Backend)
	}
}

func (a *App) openCredentials(ctx context.Context) error {
	switch a.Config.Database.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, a.Config.Database.Postgres, a.Logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.pool = pool
		a.Credentials = postgres.NewRepository(pool)
	case config.BackendMemory, "":
		a.Credentials = passkey.NewMemoryCredentialRepository()
	default:
		return fmt.Errorf("unknown database backend: %s", a.Config.Database.Backend)
	}
	return nil
}

// Ephemeral reports whether invitations live only in process memory.
func (a *App) Ephemeral() bool {
	_, ok := a.Docs.(*docstore.MemoryStore)
	return ok
}

// Handler builds the passkey HTTP handler.
func (a *App) Handler() *passkeyhttp.Handler {
	return passkeyhttp.NewHandler(a.Service, a.Sessions).
		WithLogger(a.Logger).
		WithAdmin(a.Admin).
		WithPostGate(a.Posts).
		WithAudit(a.Audit)
}

// record writes a successful invitation event attributed to the CLI.
func (a *App) record(ctx context.Context, typ audit.EventType, invitationID string) {
	err := a.Audit.Record(ctx, &audit.Event{
		Type:         typ,
		Outcome:      audit.OutcomeSuccess,
		Actor:        "cli",
		InvitationID: invitationID,
	})
	if err != nil {
		a.Logger.Error(ctx, "audit record failed", logger.Error(err))
	}
}

// Close releases held connections.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}
