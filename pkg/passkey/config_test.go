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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{RPOrigins: []string{"https://login.example.test:8443"}}
	cfg.SetDefaults()

	assert.Equal(t, "login.example.test", cfg.RPID)
	assert.Equal(t, "login.example.test", cfg.RPDisplayName)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{RPID: "example.test", RPOrigins: []string{"https://example.test"}}, false},
		{"no origins", Config{RPID: "example.test"}, true},
		{"relative origin", Config{RPID: "example.test", RPOrigins: []string{"example.test"}}, true},
		{"no rp id", Config{RPOrigins: []string{"https://example.test"}}, true},
		{"bad uv", Config{RPID: "example.test", RPOrigins: []string{"https://example.test"}, UserVerification: "always"}, true},
		{"negative ttl", Config{RPID: "example.test", RPOrigins: []string{"https://example.test"}, ChallengeTTL: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_UserVerificationRequirement(t *testing.T) {
	assert.Equal(t, protocol.VerificationRequired, (&Config{UserVerification: "required"}).UserVerificationRequirement())
	assert.Equal(t, protocol.VerificationDiscouraged, (&Config{UserVerification: "discouraged"}).UserVerificationRequirement())
	assert.Equal(t, protocol.VerificationPreferred, (&Config{}).UserVerificationRequirement())
}

func TestConfig_ToWebAuthnConfig(t *testing.T) {
	cfg := &Config{RPOrigins: []string{"https://example.test"}}
	cfg.SetDefaults()

	wc := cfg.ToWebAuthnConfig()
	assert.Equal(t, "example.test", wc.RPID)
	assert.Equal(t, []string{"https://example.test"}, wc.RPOrigins)
	assert.True(t, wc.Timeouts.Login.Enforce)
	assert.Equal(t, 60*time.Second, wc.Timeouts.Registration.Timeout)
}
