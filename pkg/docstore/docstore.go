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

// Package docstore defines the narrow document store contract used for
// invitation and post documents, with an in-memory implementation.
//
// Documents are schemaless field maps identified by id and type. A store can
// fetch a document by id, find the first document of a type whose field
// equals a value, create documents, and apply set-patches. A patch may carry
// the revision it was computed against; the store rejects it with
// ErrConflict when the document has moved on.
package docstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("docstore: not found")

	// ErrConflict is returned when a conditional patch loses to a concurrent write.
	ErrConflict = errors.New("docstore: revision conflict")

	// ErrAlreadyExists is returned when creating a document whose id is taken.
	ErrAlreadyExists = errors.New("docstore: already exists")

	// ErrInvalidQuery is returned for queries with an unusable type or field path.
	ErrInvalidQuery = errors.New("docstore: invalid query")
)

// Store is the document store contract.
type Store interface {
	// Get returns the document with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// FindOne returns the first document matching the query or ErrNotFound.
	FindOne(ctx context.Context, q Query) (*Document, error)

	// Create stores a new document. An empty ID is assigned by the store.
	Create(ctx context.Context, doc *Document) (*Document, error)

	// Patch sets fields on an existing document and returns the result.
	Patch(ctx context.Context, id string, p Patch) (*Document, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// Query selects documents of Type whose Field equals Value. Field may be a
// dotted path into nested objects, e.g. "slug.current".
type Query struct {
	Type  string
	Field string
	Value any
}

var fieldPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Validate checks the query is safe to render for a remote store.
func (q Query) Validate() error {
	if q.Type == "" || !fieldPathPattern.MatchString(q.Type) {
		return ErrInvalidQuery
	}
	if !fieldPathPattern.MatchString(q.Field) {
		return ErrInvalidQuery
	}
	return nil
}

// Patch describes a set-patch. IfRevisionID, when non-empty, makes the
// patch conditional on the document still being at that revision.
type Patch struct {
	Set          map[string]any
	IfRevisionID string
}

// Document is a stored document.
type Document struct {
	ID       string
	Type     string
	Revision string
	Fields   map[string]any
}

// Lookup resolves a dotted field path.
func (d *Document) Lookup(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	var cur any = d.Fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path, or "".
func (d *Document) String(path string) string {
	v, _ := d.Lookup(path)
	s, _ := v.(string)
	return s
}

// Bool returns the bool at path, or false.
func (d *Document) Bool(path string) bool {
	v, _ := d.Lookup(path)
	b, _ := v.(bool)
	return b
}

// Time parses an RFC 3339 timestamp at path. The zero time is returned when
// the field is absent or malformed.
func (d *Document) Time(path string) time.Time {
	v, _ := d.Lookup(path)
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{
		ID:       d.ID,
		Type:     d.Type,
		Revision: d.Revision,
		Fields:   cloneMap(d.Fields),
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
