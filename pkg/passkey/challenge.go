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
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// ChallengeSize is the number of random bytes in a challenge.
const ChallengeSize = 32

// ChallengeStore issues and consumes session-bound challenges. At most one
// challenge is outstanding per session.
type ChallengeStore struct {
	ttl    time.Duration
	random io.Reader
	now    func() time.Time
}

// NewChallengeStore creates a store whose challenges expire after ttl.
// A zero ttl disables expiry.
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{
		ttl:    ttl,
		random: rand.Reader,
		now:    time.Now,
	}
}

// IssueChallenge generates a challenge, replaces any pending one on sess and
// returns it.
func (s *ChallengeStore) IssueChallenge(sess *Session) (Challenge, error) {
	if sess == nil {
		return Challenge{}, NewError("issue challenge", ErrMissingInput)
	}
	value := make([]byte, ChallengeSize)
	if _, err := io.ReadFull(s.random, value); err != nil {
		return Challenge{}, NewError("issue challenge", fmt.Errorf("failed to read random bytes: %w", err))
	}
	c := Challenge{Value: value, CreatedAt: s.now().UTC()}
	sess.Challenge = &Challenge{Value: append([]byte(nil), value...), CreatedAt: c.CreatedAt}
	return c, nil
}

// ConsumeChallenge returns and clears the pending challenge. It fails with
// ErrChallengeNotFound when nothing is pending or the challenge expired; the
// session is cleared either way.
func (s *ChallengeStore) ConsumeChallenge(sess *Session) (Challenge, error) {
	if sess == nil || sess.Challenge == nil || len(sess.Challenge.Value) == 0 {
		return Challenge{}, NewError("consume challenge", ErrChallengeNotFound)
	}
	c := *sess.Challenge
	sess.Challenge = nil

	if s.ttl > 0 && s.now().Sub(c.CreatedAt) > s.ttl {
		return Challenge{}, NewError("consume challenge", ErrChallengeNotFound)
	}
	return c, nil
}
