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
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeStore_IssueAndConsume(t *testing.T) {
	store := NewChallengeStore(time.Minute)
	sess := &Session{}

	issued, err := store.IssueChallenge(sess)
	require.NoError(t, err)
	assert.Len(t, issued.Value, ChallengeSize)
	require.NotNil(t, sess.Challenge)

	consumed, err := store.ConsumeChallenge(sess)
	require.NoError(t, err)
	assert.Equal(t, issued.Value, consumed.Value)
	assert.Nil(t, sess.Challenge)

	_, err = store.ConsumeChallenge(sess)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestChallengeStore_IssueReplacesPending(t *testing.T) {
	store := NewChallengeStore(time.Minute)
	sess := &Session{}

	first, err := store.IssueChallenge(sess)
	require.NoError(t, err)
	second, err := store.IssueChallenge(sess)
	require.NoError(t, err)
	assert.NotEqual(t, first.Value, second.Value)

	consumed, err := store.ConsumeChallenge(sess)
	require.NoError(t, err)
	assert.Equal(t, second.Value, consumed.Value)
}

func TestChallengeStore_StoredCopyIsIndependent(t *testing.T) {
	store := NewChallengeStore(time.Minute)
	sess := &Session{}

	issued, err := store.IssueChallenge(sess)
	require.NoError(t, err)
	issued.Value[0] ^= 0xff

	consumed, err := store.ConsumeChallenge(sess)
	require.NoError(t, err)
	assert.NotEqual(t, issued.Value, consumed.Value)
}

func TestChallengeStore_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewChallengeStore(5 * time.Minute)
	store.now = func() time.Time { return now }

	sess := &Session{}
	_, err := store.IssueChallenge(sess)
	require.NoError(t, err)

	now = now.Add(5*time.Minute + time.Second)
	_, err = store.ConsumeChallenge(sess)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
	assert.Nil(t, sess.Challenge, "expired challenge must still be cleared")
}

func TestChallengeStore_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewChallengeStore(0)
	store.now = func() time.Time { return now }

	sess := &Session{}
	_, err := store.IssueChallenge(sess)
	require.NoError(t, err)

	now = now.Add(24 * time.Hour)
	_, err = store.ConsumeChallenge(sess)
	assert.NoError(t, err)
}

func TestChallengeStore_NilSession(t *testing.T) {
	store := NewChallengeStore(time.Minute)

	_, err := store.IssueChallenge(nil)
	assert.ErrorIs(t, err, ErrMissingInput)

	_, err = store.ConsumeChallenge(nil)
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestChallengeStore_RandomFailure(t *testing.T) {
	store := NewChallengeStore(time.Minute)
	store.random = failingReader{}

	sess := &Session{}
	_, err := store.IssueChallenge(sess)
	require.Error(t, err)
	assert.Nil(t, sess.Challenge)
}

func TestChallenge_EncodedRoundTrip(t *testing.T) {
	value := bytes.Repeat([]byte{0xfb, 0xff, 0x01}, 11)[:ChallengeSize]
	c := Challenge{Value: value}

	encoded := c.Encoded()
	assert.NotContains(t, encoded, "=")
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")

	decoded, err := DecodeBinaryString(encoded)
	require.NoError(t, err)
	assert.Equal(t, value, decoded)
}
