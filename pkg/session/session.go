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

// Package session stores passkey sessions in an encrypted cookie.
//
// The cookie value is a compact JWE (dir + A256GCM) whose plaintext is the
// JSON session envelope. The content key is derived from the configured
// secret with HKDF-SHA256, so any secret of sufficient length works.
package session

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/jeremyhahn/go-passkeygate/pkg/passkey"
	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultCookieName is the cookie holding the session.
	DefaultCookieName = "auth_session"

	// MinSecretLength is the minimum accepted secret length in bytes.
	MinSecretLength = 32

	keyInfo = "passkeygate session cookie v1"
)

var (
	// ErrInvalid is returned when a cookie cannot be decrypted or decoded.
	ErrInvalid = errors.New("invalid session cookie")

	// ErrExpired is returned when a cookie is past its expiry.
	ErrExpired = errors.New("session cookie expired")
)

// Config configures the cookie manager.
type Config struct {
	CookieName string        `yaml:"cookie_name" json:"cookie_name"`
	Secret     string        `yaml:"secret" json:"-"`
	MaxAge     time.Duration `yaml:"max_age" json:"max_age"`
	Secure     bool          `yaml:"secure" json:"secure"`
	Path       string        `yaml:"path" json:"path"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.MaxAge == 0 {
		c.MaxAge = 24 * time.Hour
	}
	if c.Path == "" {
		c.Path = "/"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("session max age must not be negative")
	}
	return nil
}

// envelope is the encrypted cookie payload.
type envelope struct {
	Session   passkey.Session `json:"session"`
	IssuedAt  int64           `json:"iat"`
	ExpiresAt int64           `json:"exp"`
}

// Manager loads and saves sessions as encrypted cookies.
type Manager struct {
	cfg       Config
	key       []byte
	encrypter jose.Encrypter
	now       func() time.Time
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key, err := deriveKey([]byte(cfg.Secret))
	if err != nil {
		return nil, err
	}

	encrypter, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{
		Algorithm: jose.DIRECT,
		Key:       key,
	}, &jose.EncrypterOptions{Compression: jose.NONE})
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}

	return &Manager{cfg: cfg, key: key, encrypter: encrypter, now: time.Now}, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	kdf := hkdf.New(sha256.New, secret, nil, []byte(keyInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive session key: %w", err)
	}
	return key, nil
}

// Encode seals sess into a compact JWE.
func (m *Manager) Encode(sess *passkey.Session) (string, error) {
	if sess == nil {
		sess = &passkey.Session{}
	}
	now := m.now()
	plaintext, err := json.Marshal(envelope{
		Session:   *sess,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.cfg.MaxAge).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	obj, err := m.encrypter.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	return obj.CompactSerialize()
}

// Decode opens a compact JWE produced by Encode.
func (m *Manager) Decode(value string) (*passkey.Session, error) {
	if value == "" {
		return nil, ErrInvalid
	}
	obj, err := jose.ParseEncrypted(value,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	plaintext, err := obj.Decrypt(m.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if env.ExpiresAt != 0 && m.now().Unix() >= env.ExpiresAt {
		return nil, ErrExpired
	}
	return &env.Session, nil
}

// Load returns the request's session. A missing, tampered or expired
// cookie yields a fresh anonymous session and the decode error, which
// callers normally only log.
func (m *Manager) Load(r *http.Request) (*passkey.Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return &passkey.Session{}, nil
	}
	sess, err := m.Decode(c.Value)
	if err != nil {
		return &passkey.Session{}, err
	}
	return sess, nil
}

// Save writes sess to the response.
func (m *Manager) Save(w http.ResponseWriter, sess *passkey.Session) error {
	value, err := m.Encode(sess)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     m.cfg.Path,
		MaxAge:   int(m.cfg.MaxAge.Seconds()),
		Expires:  m.now().Add(m.cfg.MaxAge),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string {
	return m.cfg.CookieName
}
