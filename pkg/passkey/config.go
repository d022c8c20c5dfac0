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
	"fmt"
	"net/url"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config configures the relying party and ceremony policy.
type Config struct {
	// RPID is the relying party id. Defaults to the hostname of the first origin.
	RPID string `yaml:"rp_id" json:"rp_id"`

	// RPDisplayName is shown by authenticators during registration.
	RPDisplayName string `yaml:"rp_display_name" json:"rp_display_name"`

	// RPOrigins are the web origins allowed in clientDataJSON.
	// Example: []string{"https://example.test"}
	RPOrigins []string `yaml:"rp_origins" json:"rp_origins"`

	// UserVerification is "required", "preferred" or "discouraged".
	// Only "required" makes the UV flag mandatory during verification.
	UserVerification string `yaml:"user_verification" json:"user_verification"`

	// ChallengeTTL bounds how long an issued challenge stays consumable.
	// Default: 5 minutes
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// Timeout is the client-side ceremony timeout advertised in options.
	// Default: 60 seconds
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Debug enables go-webauthn debug output.
	Debug bool `yaml:"debug" json:"debug"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.RPID == "" && len(c.RPOrigins) > 0 {
		if u, err := url.Parse(c.RPOrigins[0]); err == nil {
			c.RPID = u.Hostname()
		}
	}
	if c.RPDisplayName == "" {
		c.RPDisplayName = c.RPID
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RP origin is required")
	}
	for _, origin := range c.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid RP origin: %q", origin)
		}
	}
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	switch c.UserVerification {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user verification: %s", c.UserVerification)
	}
	if c.ChallengeTTL < 0 {
		return fmt.Errorf("challenge TTL must not be negative")
	}
	return nil
}

// UserVerificationRequirement returns the protocol value for the policy.
func (c *Config) UserVerificationRequirement() protocol.UserVerificationRequirement {
	switch c.UserVerification {
	case "required":
		return protocol.VerificationRequired
	case "discouraged":
		return protocol.VerificationDiscouraged
	default:
		return protocol.VerificationPreferred
	}
}

// ToWebAuthnConfig converts the Config to the go-webauthn configuration.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	cfg := &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPDisplayName,
		RPOrigins:             c.RPOrigins,
		AttestationPreference: protocol.PreferNoAttestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: c.UserVerificationRequirement(),
		},
		Debug: c.Debug,
	}
	if c.Timeout > 0 {
		timeout := webauthn.TimeoutConfig{
			Enforce:    true,
			Timeout:    c.Timeout,
			TimeoutUVD: c.Timeout,
		}
		cfg.Timeouts = webauthn.TimeoutsConfig{Login: timeout, Registration: timeout}
	}
	return cfg
}
