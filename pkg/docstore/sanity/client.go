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

// Package sanity implements docstore.Store over the Sanity HTTP data API
// (query, doc and mutate endpoints).
package sanity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkeygate/pkg/docstore"
	"github.com/tidwall/gjson"
)

const (
	// DefaultAPIVersion is the dated API version used when none is configured.
	DefaultAPIVersion = "2024-01-01"

	defaultTimeout = 10 * time.Second
)

// Config configures the Sanity client.
type Config struct {
	// ProjectID is the Sanity project id (required unless BaseURL is set).
	ProjectID string `yaml:"project_id" json:"project_id"`

	// Dataset is the dataset name (required).
	Dataset string `yaml:"dataset" json:"dataset"`

	// APIVersion is the dated API version, e.g. "2024-01-01".
	APIVersion string `yaml:"api_version" json:"api_version"`

	// Token is a write-capable API token (required for mutations).
	Token string `yaml:"token" json:"-"`

	// BaseURL overrides https://<project>.api.sanity.io.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// HTTPClient overrides the default client.
	HTTPClient *http.Client `yaml:"-" json:"-"`
}

// Client is a docstore.Store backed by Sanity.
type Client struct {
	baseURL    string
	dataset    string
	apiVersion string
	token      string
	httpClient *http.Client
}

var _ docstore.Store = (*Client)(nil)

// New creates a Sanity client.
func New(cfg Config) (*Client, error) {
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("sanity: dataset is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if cfg.ProjectID == "" {
			return nil, fmt.Errorf("sanity: project id is required")
		}
		base = fmt.Sprintf("https://%s.api.sanity.io", cfg.ProjectID)
	}
	version := strings.TrimPrefix(cfg.APIVersion, "v")
	if version == "" {
		version = DefaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    base,
		dataset:    cfg.Dataset,
		apiVersion: version,
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

// Get implements docstore.Store.
func (c *Client) Get(ctx context.Context, id string) (*docstore.Document, error) {
	path := fmt.Sprintf("/v%s/data/doc/%s/%s", c.apiVersion, url.PathEscape(c.dataset), url.PathEscape(id))
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	doc := gjson.GetBytes(body, "documents.0")
	if !doc.Exists() {
		return nil, docstore.ErrNotFound
	}
	return toDocument(doc)
}

// FindOne implements docstore.Store with a GROQ filter on type and field.
func (c *Client) FindOne(ctx context.Context, q docstore.Query) (*docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	groq := fmt.Sprintf(`*[_type == $type && %s == $value][0]`, q.Field)

	params := url.Values{}
	params.Set("query", groq)
	if err := setParam(params, "type", q.Type); err != nil {
		return nil, err
	}
	if err := setParam(params, "value", q.Value); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/v%s/data/query/%s?%s", c.apiVersion, url.PathEscape(c.dataset), params.Encode())
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	result := gjson.GetBytes(body, "result")
	if !result.Exists() || result.Type == gjson.Null {
		return nil, docstore.ErrNotFound
	}
	return toDocument(result)
}

// Create implements docstore.Store.
func (c *Client) Create(ctx context.Context, doc *docstore.Document) (*docstore.Document, error) {
	payload := make(map[string]any, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		payload[k] = v
	}
	payload["_type"] = doc.Type
	if doc.ID != "" {
		payload["_id"] = doc.ID
	}

	body, err := c.mutate(ctx, map[string]any{"create": payload})
	if errors.Is(err, docstore.ErrConflict) {
		return nil, docstore.ErrAlreadyExists
	}
	if err != nil {
		return nil, err
	}
	return firstResult(body)
}

// Patch implements docstore.Store.
func (c *Client) Patch(ctx context.Context, id string, p docstore.Patch) (*docstore.Document, error) {
	patch := map[string]any{
		"id":  id,
		"set": p.Set,
	}
	if p.IfRevisionID != "" {
		patch["ifRevisionID"] = p.IfRevisionID
	}
	body, err := c.mutate(ctx, map[string]any{"patch": patch})
	if err != nil {
		return nil, err
	}
	return firstResult(body)
}

func (c *Client) mutate(ctx context.Context, mutation map[string]any) ([]byte, error) {
	path := fmt.Sprintf("/v%s/data/mutate/%s?returnDocuments=true&visibility=sync", c.apiVersion, url.PathEscape(c.dataset))
	return c.do(ctx, http.MethodPost, path, map[string]any{
		"mutations": []any{mutation},
	})
}

// Ping checks the dataset is reachable.
func (c *Client) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("query", `count(*[_type == "invitation"][0...1])`)
	path := fmt.Sprintf("/v%s/data/query/%s?%s", c.apiVersion, url.PathEscape(c.dataset), params.Encode())
	_, err := c.do(ctx, http.MethodGet, path, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("sanity: failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("sanity: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sanity: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sanity: failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, docstore.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, docstore.ErrConflict
	case resp.StatusCode >= 400:
		errType := gjson.GetBytes(respBody, "error.type").String()
		if errType == "documentNotFoundError" {
			return nil, docstore.ErrNotFound
		}
		msg := gjson.GetBytes(respBody, "error.description").String()
		if msg == "" {
			msg = gjson.GetBytes(respBody, "message").String()
		}
		return nil, fmt.Errorf("sanity: status %d: %s", resp.StatusCode, msg)
	}
	return respBody, nil
}

func setParam(params url.Values, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sanity: failed to encode parameter %s: %w", name, err)
	}
	params.Set("$"+name, string(encoded))
	return nil
}

func firstResult(body []byte) (*docstore.Document, error) {
	doc := gjson.GetBytes(body, "results.0.document")
	if !doc.Exists() {
		return nil, fmt.Errorf("sanity: mutation response carried no document")
	}
	return toDocument(doc)
}

func toDocument(r gjson.Result) (*docstore.Document, error) {
	if !r.IsObject() {
		return nil, fmt.Errorf("sanity: expected document object, got %s", r.Type)
	}
	fields, _ := r.Value().(map[string]any)
	doc := &docstore.Document{
		ID:       r.Get("_id").String(),
		Type:     r.Get("_type").String(),
		Revision: r.Get("_rev").String(),
		Fields:   fields,
	}
	delete(doc.Fields, "_id")
	delete(doc.Fields, "_type")
	delete(doc.Fields, "_rev")
	return doc, nil
}
