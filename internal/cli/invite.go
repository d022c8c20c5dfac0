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

	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeygate/pkg/metrics"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	"github.com/spf13/cobra"
)

var (
	inviteLabel string
	inviteIssue bool
	inviteID    string
	inviteCode  string
)

// inviteCmd groups invitation management.
var inviteCmd = &cobra.Command{
	Use:   "invite",
	Short: "Manage invitations",
	Long: `Create invitation documents and issue single-use codes. Issuing a
code replaces any earlier code for the same invitation.`,
}

var inviteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an invitation",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *App) error {
			inv, err := app.Invitations.Create(ctx, inviteLabel)
			if err != nil {
				return err
			}
			app.record(ctx, audit.EventInvitationCreate, inv.ID)
			link := ""
			if inviteIssue {
				code, err := app.Invitations.Issue(ctx, inv.ID)
				if err != nil {
					return err
				}
				metrics.RecordInvitationEvent(metrics.EventIssued)
				app.record(ctx, audit.EventInvitationIssue, inv.ID)
				link = app.Invitations.Link(code)
			}
			return printerFor(cmd).PrintInvitation(inv, link, nil, nil)
		})
	},
}

var inviteIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a fresh code for an invitation and print its link",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inviteID == "" {
			return fmt.Errorf("--id is required")
		}
		return withApp(cmd, func(ctx context.Context, app *App) error {
			code, err := app.Invitations.Issue(ctx, inviteID)
			if err != nil {
				return err
			}
			metrics.RecordInvitationEvent(metrics.EventIssued)
			app.record(ctx, audit.EventInvitationIssue, inviteID)
			return printerFor(cmd).PrintLink(inviteID, app.Invitations.Link(code))
		})
	},
}

var inviteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show an invitation by id or code",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inviteID == "" && inviteCode == "" {
			return fmt.Errorf("--id or --code is required")
		}
		return withApp(cmd, func(ctx context.Context, app *App) error {
			id := inviteID
			if id == "" {
				// A used invitation still resolves to its id.
				handle, err := app.Invitations.Validate(ctx, inviteCode)
				if handle.ID == "" {
					return err
				}
				id = handle.ID
			}
			inv, err := app.Invitations.Get(ctx, id)
			if err != nil {
				return err
			}
			user, err := app.Credentials.FindUser(ctx, inv.ID)
			if err != nil {
				return err
			}
			var creds []*passkey.CredentialRecord
			if user != nil {
				if creds, err = app.Credentials.ListCredentials(ctx, user.ID); err != nil {
					return err
				}
			}
			return printerFor(cmd).PrintInvitation(inv, "", user, creds)
		})
	},
}

func init() {
	inviteCreateCmd.Flags().StringVar(&inviteLabel, "label", "", "human-readable label")
	inviteCreateCmd.Flags().BoolVar(&inviteIssue, "issue", false, "issue a code and print the link")
	inviteIssueCmd.Flags().StringVar(&inviteID, "id", "", "invitation id (required)")
	inviteShowCmd.Flags().StringVar(&inviteID, "id", "", "invitation id")
	inviteShowCmd.Flags().StringVar(&inviteCode, "code", "", "invitation code")

	inviteCmd.AddCommand(inviteCreateCmd)
	inviteCmd.AddCommand(inviteIssueCmd)
	inviteCmd.AddCommand(inviteShowCmd)
}

// withApp loads the configuration, builds an App and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	cfg, err := getConfig().LoadServerConfig()
	if err != nil {
		return err
	}
	log, err := NewLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Ephemeral() {
		printVerbose(cmd.ErrOrStderr(), "memory docstore: invitations are discarded on exit")
	}
	return fn(ctx, app)
}
