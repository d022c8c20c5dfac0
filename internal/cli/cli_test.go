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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeremyhahn/go-passkeygate/internal/config"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/audit"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSessionSecret = "0123456789abcdef0123456789abcdef"
	testJWTSecret     = "fedcba9876543210fedcba9876543210"
	testAPIKey        = "studio-key-0123456789"
)

func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	content := `
logging:
  level: "error"
  format: "text"

webauthn:
  rp_display_name: "Example"
  rp_origins: ["https://example.test"]

session:
  secret: "` + testSessionSecret + `"

invitations:
  site_url: "https://example.test/"

docstore:
  backend: "memory"

database:
  backend: "memory"
` + extra
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	*globalConfig = *NewConfig()
	inviteLabel, inviteIssue, inviteID, inviteCode = "", false, "", ""
	tokenSubject, tokenTTL = "", time.Hour
	serveMigrate = false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
	assert.NotEmpty(t, got["go_version"])

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "passkeygate version "+Version)
}

func TestInviteCreate(t *testing.T) {
	path := writeConfig(t, "")

	out, err := execute(t, "--config", path, "invite", "create", "--label", "alice", "--issue", "-o", "json")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.NotEmpty(t, got["id"])
	assert.Equal(t, "alice", got["label"])
	assert.Equal(t, false, got["used"])
	link, _ := got["invitationLink"].(string)
	assert.True(t, strings.HasPrefix(link, "https://example.test/register?code="), link)

	out, err = execute(t, "--config", path, "invite", "create")
	require.NoError(t, err)
	assert.Contains(t, out, "Invitation: ")
	assert.NotContains(t, out, "Link:")
}

func TestInvite_ConfigFromEnv(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, ""))
	out, err := execute(t, "invite", "create", "--label", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Label: bob")
}

func TestInvite_FlagErrors(t *testing.T) {
	path := writeConfig(t, "")

	_, err := execute(t, "--config", path, "invite", "issue")
	assert.EqualError(t, err, "--id is required")

	_, err = execute(t, "--config", path, "invite", "show")
	assert.EqualError(t, err, "--id or --code is required")

	_, err = execute(t, "--config", path, "invite", "issue", "--id", "missing")
	assert.Error(t, err)

	_, err = execute(t, "--config", path, "invite", "show", "--code", "nope")
	assert.Error(t, err)
}

func TestInvite_BadConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "invite", "create")
	assert.Error(t, err)
}

func TestAdminToken(t *testing.T) {
	path := writeConfig(t, `
admin:
  jwt_secret: "`+testJWTSecret+`"
  jwt_issuer: "passkeygate"
`)

	out, err := execute(t, "--config", path, "admin", "token", "--subject", "ops", "--ttl", "5m", "-o", "json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "ops", got["subject"])
	require.NotEmpty(t, got["token"])

	cfg, err := config.Load(path)
	require.NoError(t, err)
	a, err := cfg.Admin.AdminAuthenticator()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/generate-invitation", nil)
	req.Header.Set("Authorization", "Bearer "+got["token"])
	identity, err := a.AuthenticateHTTP(req)
	require.NoError(t, err)
	assert.Equal(t, "ops", identity.Subject)
}

func TestAdminToken_Errors(t *testing.T) {
	path := writeConfig(t, "")

	_, err := execute(t, "--config", path, "admin", "token")
	assert.EqualError(t, err, "--subject is required")

	_, err = execute(t, "--config", path, "admin", "token", "--subject", "ops", "--ttl", "0s")
	assert.EqualError(t, err, "--ttl must be positive")

	// No jwt_secret configured.
	_, err = execute(t, "--config", path, "admin", "token", "--subject", "ops")
	assert.Error(t, err)
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t, ""), "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestServe_MigrateRequiresPostgres(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t, ""), "serve", "--migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--migrate")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	log.Info(context.Background(), "hello", logger.String("k", "v"))
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.LoggingConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}

func TestNewApp_Memory(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
admin:
  api_keys:
    studio: "`+testAPIKey+`"
`))
	require.NoError(t, err)

	ctx := context.Background()
	app, err := NewApp(ctx, cfg, nil)
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Ephemeral())

	inv, err := app.Invitations.Create(ctx, "carol")
	require.NoError(t, err)

	recorder := audit.NewMemoryRecorder(0)
	app.Audit = recorder
	srv, err := NewServer(app)
	require.NoError(t, err)
	defer func() { _ = srv.Stop(context.Background()) }()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/health/ready")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	body := strings.NewReader(`{"invitationId":"` + inv.ID + `"}`)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/generate-invitation", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got["invitationLink"], "https://example.test/register?code="))

	issued := recorder.Events(audit.Query{Types: []audit.EventType{audit.EventInvitationIssue}})
	require.Len(t, issued, 1)
	assert.Equal(t, "studio", issued[0].Actor)
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	cfg.DocStore.Backend = "couch"

	_, err = NewApp(context.Background(), cfg, nil)
	assert.EqualError(t, err, "unknown docstore backend: couch")
}

func TestPrinter_UnknownFormat(t *testing.T) {
	p := NewPrinter("table", &bytes.Buffer{})
	assert.Error(t, p.PrintLink("id", "https://example.test/register?code=x"))
	assert.Error(t, p.PrintSuccess("ok"))
}

func TestPrinter_Token(t *testing.T) {
	var buf bytes.Buffer
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, NewPrinter("text", &buf).PrintToken("ops", "abc.def.ghi", expires))
	assert.Equal(t, "abc.def.ghi\n", buf.String())

	buf.Reset()
	require.NoError(t, NewPrinter("json", &buf).PrintToken("ops", "abc.def.ghi", expires))
	assert.Contains(t, buf.String(), `"expiresAt": "2030-01-02T03:04:05Z"`)
}

func TestPrinter_InvitationWithUser(t *testing.T) {
	inv := &passkey.Invitation{ID: "inv-1", Label: "alice", Used: true, CreatedAt: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)}
	user := &passkey.User{ID: "user-1", InvitationID: "inv-1"}
	creds := []*passkey.CredentialRecord{{ID: []byte{1, 2, 3}, UserID: "user-1", SignCount: 4}}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter("text", &buf).PrintInvitation(inv, "", user, creds))
	assert.Contains(t, buf.String(), "User:  user-1")
	assert.Contains(t, buf.String(), "Passkey: AQID (sign count 4)")

	buf.Reset()
	require.NoError(t, NewPrinter("json", &buf).PrintInvitation(inv, "", user, creds))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "user-1", got["userId"])
	assert.Equal(t, []interface{}{"AQID"}, got["credentialIds"])

	buf.Reset()
	require.NoError(t, NewPrinter("text", &buf).PrintInvitation(inv, "https://example.test/register?code=x", nil, nil))
	assert.NotContains(t, buf.String(), "User:")
	assert.Contains(t, buf.String(), "Link:  https://example.test/register?code=x")
}
