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
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintInvitation prints an invitation and, when issued, its link. user is
// the account created from the invitation, if any, with its passkeys.
func (p *Printer) PrintInvitation(inv *passkey.Invitation, link string, user *passkey.User, creds []*passkey.CredentialRecord) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"id":        inv.ID,
			"label":     inv.Label,
			"used":      inv.Used,
			"createdAt": inv.CreatedAt.Format(time.RFC3339),
		}
		if link != "" {
			out["invitationLink"] = link
		}
		if user != nil {
			ids := make([]string, 0, len(creds))
			for _, c := range creds {
				ids = append(ids, passkey.EncodeBinary(c.ID))
			}
			out["userId"] = user.ID
			out["credentialIds"] = ids
		}
		return p.printJSON(out)
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Invitation: %s\n", inv.ID)
		if inv.Label != "" {
			fmt.Fprintf(p.writer, "  Label: %s\n", inv.Label)
		}
		fmt.Fprintf(p.writer, "  Used:  %t\n", inv.Used)
		if link != "" {
			fmt.Fprintf(p.writer, "  Link:  %s\n", link)
		}
		if user != nil {
			fmt.Fprintf(p.writer, "  User:  %s\n", user.ID)
			for _, c := range creds {
				fmt.Fprintf(p.writer, "  Passkey: %s (sign count %d)\n", passkey.EncodeBinary(c.ID), c.SignCount)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintLink prints a freshly issued invitation link.
func (p *Printer) PrintLink(invitationID, link string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]string{
			"id":             invitationID,
			"invitationLink": link,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, link)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintToken prints an admin bearer token.
func (p *Printer) PrintToken(subject, token string, expires time.Time) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]string{
			"subject":   subject,
			"token":     token,
			"expiresAt": expires.UTC().Format(time.RFC3339),
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, token)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVersion prints build information.
func (p *Printer) PrintVersion() error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]string{
			"version":    Version,
			"commit":     GitCommit,
			"build_date": BuildDate,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		})
	case OutputFormatText:
		fmt.Fprintf(p.writer, "passkeygate version %s\n", Version)
		fmt.Fprintf(p.writer, "Git commit: %s\n", GitCommit)
		fmt.Fprintf(p.writer, "Build date: %s\n", BuildDate)
		fmt.Fprintf(p.writer, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(p.writer, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"success": true,
			"message": message,
		})
	case OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
