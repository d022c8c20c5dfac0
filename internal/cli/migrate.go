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
	"fmt"

	"github.com/jeremyhahn/go-passkeygate/internal/config"
	"github.com/jeremyhahn/go-passkeygate/pkg/storage/postgres"
	"github.com/spf13/cobra"
)

// migrateCmd applies the credential schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL credential schema",
	Long: `Create the users and passkey_credentials tables in the configured
PostgreSQL database. Statements are idempotent and safe to re-run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig().LoadServerConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Backend != config.BackendPostgres {
			return fmt.Errorf("migrate requires the postgres database backend, configured: %s", cfg.Database.Backend)
		}
		log, err := NewLogger(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		pool, err := postgres.Connect(ctx, cfg.Database.Postgres, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		printVerbose(cmd.ErrOrStderr(), "applying schema")
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		return printerFor(cmd).PrintSuccess("Schema is up to date")
	},
}
