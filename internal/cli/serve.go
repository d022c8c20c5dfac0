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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passkeygate/internal/config"
	"github.com/jeremyhahn/go-passkeygate/internal/rest"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeygate/pkg/metrics"
	"github.com/jeremyhahn/go-passkeygate/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkeygate/pkg/storage/postgres"
	"github.com/spf13/cobra"
)

const resourceInterval = 15 * time.Second

var serveMigrate bool

// serveCmd runs the HTTP API until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the passkey HTTP API",
	Long: `Load the configuration, connect the document store and credential
database, and serve the passkey API until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false,
		"apply the PostgreSQL schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfig().LoadServerConfig()
	if err != nil {
		return err
	}
	log, err := NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if serveMigrate {
		if app.pool == nil {
			return fmt.Errorf("--migrate requires the %s database backend", config.BackendPostgres)
		}
		if err := postgres.Migrate(ctx, app.pool); err != nil {
			return err
		}
		log.Info(ctx, "database schema applied")
	}
	if app.Ephemeral() {
		log.Warn(ctx, "invitations are held in memory and will not survive a restart")
	}

	srv, err := NewServer(app)
	if err != nil {
		return err
	}

	go metrics.CollectResources(ctx, resourceInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	log.Info(ctx, "passkeygate started",
		logger.String("addr", cfg.Server.Addr()),
		logger.String("version", Version),
		logger.String("docstore", cfg.DocStore.Backend),
		logger.String("database", cfg.Database.Backend))

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// NewServer builds the REST server for app.
func NewServer(app *App) (*rest.Server, error) {
	cfg := app.Config

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	restCfg := &rest.Config{
		Addr:         cfg.Server.Addr(),
		Passkeys:     app.Handler(),
		CORSOrigins:  cfg.Server.CORSOrigins,
		Version:      Version,
		Logger:       app.Logger,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.Metrics.Enabled {
		restCfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Health.Enabled {
		restCfg.Health = app.Health
	}
	if cfg.RateLimit.Enabled {
		restCfg.Limiter = ratelimit.New(cfg.RateLimit)
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := cfg.TLS.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		restCfg.TLSConfig = tlsConfig
	}
	return rest.NewServer(restCfg)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
