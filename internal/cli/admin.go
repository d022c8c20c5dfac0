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
	"time"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

// adminCmd groups admin API tooling.
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin API tooling",
}

// adminTokenCmd mints an HS256 bearer token for the admin endpoints.
var adminTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token",
	Long: `Sign a short-lived JWT with admin.jwt_secret. The token is accepted
by POST /api/auth/generate-invitation in the Authorization header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenSubject == "" {
			return fmt.Errorf("--subject is required")
		}
		if tokenTTL <= 0 {
			return fmt.Errorf("--ttl must be positive")
		}
		cfg, err := getConfig().LoadServerConfig()
		if err != nil {
			return err
		}
		a, err := cfg.Admin.JWTAuthenticator()
		if err != nil {
			return err
		}

		expires := time.Now().Add(tokenTTL)
		token, err := a.Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		printVerbose(cmd.ErrOrStderr(), "issued token for %s", tokenSubject)
		return printerFor(cmd).PrintToken(tokenSubject, token, expires)
	},
}

func init() {
	adminTokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject (required)")
	adminTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	adminCmd.AddCommand(adminTokenCmd)
}
