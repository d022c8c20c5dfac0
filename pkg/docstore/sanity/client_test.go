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

package sanity

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groqFieldPattern = regexp.MustCompile(`&& ([A-Za-z0-9_.]+) == \$value`)

// fakeSanity serves the subset of the data API the client uses, backed by a
// docstore.MemoryStore.
type fakeSanity struct {
	store *docstore.MemoryStore

	mu        sync.Mutex
	lastToken string
}

func (f *fakeSanity) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastToken
}

func (f *fakeSanity) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.lastToken = r.Header.Get("Authorization")
	f.mu.Unlock()
	ctx := r.Context()

	switch {
	case strings.Contains(r.URL.Path, "/data/doc/"):
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		doc, err := f.store.Get(ctx, id)
		if err != nil {
			writeFake(w, http.StatusOK, map[string]any{"documents": []any{}})
			return
		}
		writeFake(w, http.StatusOK, map[string]any{"documents": []any{render(doc)}})

	case strings.Contains(r.URL.Path, "/data/query/"):
		q := r.URL.Query()
		m := groqFieldPattern.FindStringSubmatch(q.Get("query"))
		if m == nil {
			writeFake(w, http.StatusOK, map[string]any{"result": 1})
			return
		}
		var docType string
		var value any
		_ = json.Unmarshal([]byte(q.Get("$type")), &docType)
		_ = json.Unmarshal([]byte(q.Get("$value")), &value)
		doc, err := f.store.FindOne(ctx, docstore.Query{Type: docType, Field: m[1], Value: value})
		if err != nil {
			writeFake(w, http.StatusOK, map[string]any{"result": nil})
			return
		}
		writeFake(w, http.StatusOK, map[string]any{"result": render(doc)})

	case strings.Contains(r.URL.Path, "/data/mutate/"):
		var body struct {
			Mutations []struct {
				Create map[string]any `json:"create"`
				Patch  *struct {
					ID           string         `json:"id"`
					IfRevisionID string         `json:"ifRevisionID"`
					Set          map[string]any `json:"set"`
				} `json:"patch"`
			} `json:"mutations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Mutations) != 1 {
			writeFake(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"description": "bad mutation"}})
			return
		}
		mut := body.Mutations[0]
		var (
			doc *docstore.Document
			err error
		)
		if mut.Create != nil {
			id, _ := mut.Create["_id"].(string)
			docType, _ := mut.Create["_type"].(string)
			delete(mut.Create, "_id")
			delete(mut.Create, "_type")
			doc, err = f.store.Create(ctx, &docstore.Document{ID: id, Type: docType, Fields: mut.Create})
		} else {
			doc, err = f.store.Patch(ctx, mut.Patch.ID, docstore.Patch{Set: mut.Patch.Set, IfRevisionID: mut.Patch.IfRevisionID})
		}
		switch {
		case errors.Is(err, docstore.ErrNotFound):
			writeFake(w, http.StatusNotFound, map[string]any{"error": map[string]any{"type": "documentNotFoundError"}})
		case errors.Is(err, docstore.ErrConflict), errors.Is(err, docstore.ErrAlreadyExists):
			writeFake(w, http.StatusConflict, map[string]any{"error": map[string]any{"type": "mutationError"}})
		case err != nil:
			writeFake(w, http.StatusInternalServerError, map[string]any{"message": err.Error()})
		default:
			writeFake(w, http.StatusOK, map[string]any{
				"transactionId": "tx",
				"results":       []any{map[string]any{"id": doc.ID, "document": render(doc)}},
			})
		}

	default:
		http.NotFound(w, r)
	}
}

func render(doc *docstore.Document) map[string]any {
	out := map[string]any{"_id": doc.ID, "_type": doc.Type, "_rev": doc.Revision}
	for k, v := range doc.Fields {
		out[k] = v
	}
	return out
}

func writeFake(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeSanity) {
	t.Helper()
	fake := &fakeSanity{store: docstore.NewMemoryStore()}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Dataset: "production", Token: "secret"})
	require.NoError(t, err)
	return client, fake
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ProjectID: "abc"})
	assert.Error(t, err)

	_, err = New(Config{Dataset: "production"})
	assert.Error(t, err)

	c, err := New(Config{ProjectID: "abc", Dataset: "production", APIVersion: "v2023-05-03"})
	require.NoError(t, err)
	assert.Equal(t, "https://abc.api.sanity.io", c.baseURL)
	assert.Equal(t, "2023-05-03", c.apiVersion)
}

func TestClient_CreateGetFind(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := t.Context()

	created, err := client.Create(ctx, &docstore.Document{
		ID:     "invitation-1",
		Type:   "invitation",
		Fields: map[string]any{"label": "Alice", "code": "c0de", "used": false},
	})
	require.NoError(t, err)
	assert.Equal(t, "invitation-1", created.ID)
	assert.NotEmpty(t, created.Revision)
	assert.Equal(t, "Bearer secret", fake.token())

	got, err := client.Get(ctx, "invitation-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.String("label"))
	assert.NotContains(t, got.Fields, "_id")

	found, err := client.FindOne(ctx, docstore.Query{Type: "invitation", Field: "code", Value: "c0de"})
	require.NoError(t, err)
	assert.Equal(t, "invitation-1", found.ID)

	_, err = client.FindOne(ctx, docstore.Query{Type: "invitation", Field: "code", Value: "nope"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = client.Get(ctx, "missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = client.Create(ctx, &docstore.Document{ID: "invitation-1", Type: "invitation"})
	assert.ErrorIs(t, err, docstore.ErrAlreadyExists)
}

func TestClient_Patch(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := t.Context()

	created, err := client.Create(ctx, &docstore.Document{ID: "inv", Type: "invitation", Fields: map[string]any{"used": false}})
	require.NoError(t, err)

	patched, err := client.Patch(ctx, "inv", docstore.Patch{
		Set:          map[string]any{"used": true},
		IfRevisionID: created.Revision,
	})
	require.NoError(t, err)
	assert.True(t, patched.Bool("used"))

	_, err = client.Patch(ctx, "inv", docstore.Patch{
		Set:          map[string]any{"used": false},
		IfRevisionID: created.Revision,
	})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	_, err = client.Patch(ctx, "missing", docstore.Patch{Set: map[string]any{"used": true}})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestClient_FindOneRejectsUnsafeField(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.FindOne(t.Context(), docstore.Query{Type: "invitation", Field: "code] | *[true", Value: "x"})
	assert.ErrorIs(t, err, docstore.ErrInvalidQuery)
}

func TestClient_Ping(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.Ping(t.Context()))
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFake(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{"description": "boom"}})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL, Dataset: "production"})
	require.NoError(t, err)

	_, err = client.Get(t.Context(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
