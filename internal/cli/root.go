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

// Package cli implements the passkeygate command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global configuration
	globalConfig = NewConfig()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "passkeygate",
	Short: "Invitation-gated passkey authentication server",
	Long: `passkeygate serves WebAuthn registration and login for sites where
accounts are created only from single-use invitation codes.

Commands:
  serve     run the HTTP API
  invite    create invitations and issue codes
  migrate   create the PostgreSQL credential schema
  admin     mint tokens for the admin API`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfig.ConfigFile, "config", "",
		"config file (default is $"+ConfigEnv+")")
	rootCmd.PersistentFlags().StringVarP(&globalConfig.OutputFormat, "output", "o", "text",
		"output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&globalConfig.Verbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inviteCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(adminCmd)
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// printerFor returns a Printer writing to the command's output.
func printerFor(cmd *cobra.Command) *Printer {
	return NewPrinter(getConfig().OutputFormat, cmd.OutOrStdout())
}

// HandleError prints an error to stderr and exits with code 1
func HandleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(w, "[VERBOSE] "+format+"\n", args...)
	}
}
