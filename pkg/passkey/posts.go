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
	"errors"
	"strings"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
)

// PostDocumentType is the document type of gated content.
const PostDocumentType = "post"

// ErrPostNotFound is returned when no post has the requested slug.
var ErrPostNotFound = errors.New("post not found")

// Post is the gating view of a content document.
type Post struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Title        string `json:"title,omitempty"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// PostGate decides whether a session may read a post.
type PostGate struct {
	store docstore.Store
}

// NewPostGate creates a gate backed by store.
func NewPostGate(store docstore.Store) (*PostGate, error) {
	if store == nil {
		return nil, NewError("new post gate", ErrNotConfigured)
	}
	return &PostGate{store: store}, nil
}

// Lookup finds the post whose slug.current equals slug.
func (g *PostGate) Lookup(ctx context.Context, slug string) (*Post, error) {
	const op = "lookup post"
	if strings.TrimSpace(slug) == "" {
		return nil, NewError(op, ErrMissingInput)
	}
	doc, err := g.store.FindOne(ctx, docstore.Query{
		Type:  PostDocumentType,
		Field: "slug.current",
		Value: slug,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, NewError(op, ErrPostNotFound)
	}
	if err != nil {
		return nil, NewError(op, classified(ErrPersistence, err))
	}
	return &Post{
		ID:           doc.ID,
		Slug:         doc.String("slug.current"),
		Title:        doc.String("title"),
		RequiresAuth: doc.Bool("requiresAuth"),
	}, nil
}

// Allow reports whether sess may read the post. Posts that do not require
// authentication are open to everyone.
func (g *PostGate) Allow(ctx context.Context, sess *Session, slug string) (*Post, bool, error) {
	post, err := g.Lookup(ctx, slug)
	if err != nil {
		return nil, false, err
	}
	if !post.RequiresAuth {
		return post, true, nil
	}
	return post, sess != nil && sess.Authenticated && sess.UserID != "", nil
}
