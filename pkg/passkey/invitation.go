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

package passkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
)

const (
	// InvitationDocumentType is the document type holding invitations.
	InvitationDocumentType = "invitation"

	// InvitationCodeSize is the number of random bytes in a code (128 bits).
	InvitationCodeSize = 16

	markUsedAttempts = 3
)

// InvitationService manages single-use invitation codes in a document store.
type InvitationService struct {
	store   docstore.Store
	siteURL string
	random  io.Reader
	now     func() time.Time
}

// NewInvitationService creates an invitation service. siteURL is the public
// base used to render registration links.
func NewInvitationService(store docstore.Store, siteURL string) (*InvitationService, error) {
	if store == nil {
		return nil, NewError("new invitation service", fmt.Errorf("%w: document store is required", ErrNotConfigured))
	}
	return &InvitationService{
		store:   store,
		siteURL: strings.TrimRight(siteURL, "/"),
		random:  rand.Reader,
		now:     time.Now,
	}, nil
}

// Validate looks up the invitation holding code. It performs no mutation.
func (s *InvitationService) Validate(ctx context.Context, code string) (InvitationHandle, error) {
	const op = "validate invitation"
	if strings.TrimSpace(code) == "" {
		return InvitationHandle{}, NewError(op, ErrMissingInput)
	}

	doc, err := s.store.FindOne(ctx, docstore.Query{
		Type:  InvitationDocumentType,
		Field: "code",
		Value: code,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return InvitationHandle{}, NewError(op, ErrInvitationNotFound)
	}
	if err != nil {
		return InvitationHandle{}, NewError(op, classified(ErrPersistence, err))
	}

	inv := toInvitation(doc)
	if inv.Used {
		return InvitationHandle{ID: inv.ID, Used: true}, NewError(op, ErrInvitationUsed)
	}
	return InvitationHandle{ID: inv.ID, Used: false}, nil
}

// Get returns the invitation with the given id.
func (s *InvitationService) Get(ctx context.Context, invitationID string) (*Invitation, error) {
	const op = "get invitation"
	if invitationID == "" {
		return nil, NewError(op, ErrMissingInput)
	}
	doc, err := s.store.Get(ctx, invitationID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, NewError(op, ErrInvitationNotFound)
	}
	if err != nil {
		return nil, NewError(op, classified(ErrPersistence, err))
	}
	if doc.Type != InvitationDocumentType {
		return nil, NewError(op, ErrInvitationNotFound)
	}
	return toInvitation(doc), nil
}

// Create stores a new invitation document without a code.
func (s *InvitationService) Create(ctx context.Context, label string) (*Invitation, error) {
	doc, err := s.store.Create(ctx, &docstore.Document{
		Type: InvitationDocumentType,
		Fields: map[string]any{
			"label":     label,
			"used":      false,
			"createdAt": s.now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, NewError("create invitation", classified(ErrPersistence, err))
	}
	return toInvitation(doc), nil
}

// Issue generates a fresh code for invitationID and stores it with
// used=false, replacing any earlier code.
func (s *InvitationService) Issue(ctx context.Context, invitationID string) (string, error) {
	const op = "issue invitation"
	if invitationID == "" {
		return "", NewError(op, ErrMissingInput)
	}

	raw := make([]byte, InvitationCodeSize)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return "", NewError(op, fmt.Errorf("failed to read random bytes: %w", err))
	}
	code := hex.EncodeToString(raw)

	_, err := s.store.Patch(ctx, invitationID, docstore.Patch{
		Set: map[string]any{"code": code, "used": false},
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return "", NewError(op, ErrInvitationNotFound)
	}
	if err != nil {
		return "", NewError(op, classified(ErrPersistence, err))
	}
	return code, nil
}

// Link renders the registration link for code.
func (s *InvitationService) Link(code string) string {
	return s.siteURL + "/register?code=" + url.QueryEscape(code)
}

// MarkUsed sets used=true with a revision-conditional patch. Marking an
// invitation that is already used succeeds.
func (s *InvitationService) MarkUsed(ctx context.Context, invitationID string) error {
	const op = "mark invitation used"
	for attempt := 0; attempt < markUsedAttempts; attempt++ {
		inv, err := s.Get(ctx, invitationID)
		if err != nil {
			return err
		}
		if inv.Used {
			return nil
		}
		_, err = s.store.Patch(ctx, invitationID, docstore.Patch{
			Set:          map[string]any{"used": true},
			IfRevisionID: inv.Revision,
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return NewError(op, classified(ErrPersistence, err))
		}
	}
	return NewError(op, classified(ErrPersistence, fmt.Errorf("too much contention updating %q", invitationID)))
}

func toInvitation(doc *docstore.Document) *Invitation {
	return &Invitation{
		ID:        doc.ID,
		Label:     doc.String("label"),
		Code:      doc.String("code"),
		Used:      doc.Bool("used"),
		CreatedAt: doc.Time("createdAt"),
		Revision:  doc.Revision,
	}
}
