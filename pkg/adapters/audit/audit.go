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

// Package audit records security-relevant passkeygate events: invitations
// created and issued, registrations, logins, logouts and rejected admin
// requests.
//
// Recorders are adapters in the same manner as the auth and logger
// packages. The server writes audit events through the structured logger
// by default; MemoryRecorder keeps a bounded history for tests and
// diagnostics.
package audit

import (
	"context"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventInvitationCreate EventType = "invitation.create"
	EventInvitationIssue  EventType = "invitation.issue"
	EventRegister         EventType = "passkey.register"
	EventLogin            EventType = "passkey.login"
	EventLogout           EventType = "passkey.logout"
	EventAdminDenied      EventType = "admin.denied"
)

// Outcome indicates the result of an operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Event is a single audit entry.
type Event struct {
	// ID is assigned by the recorder when empty.
	ID string

	// Timestamp is set by the recorder when zero.
	Timestamp time.Time

	Type    EventType
	Outcome Outcome

	// Actor is the admin subject, "cli", or empty for anonymous browsers.
	Actor string

	InvitationID string
	UserID       string
	CredentialID string

	// RequestID correlates the event with the request log.
	RequestID string

	SourceIP string

	// Detail holds the error or outcome label for failures.
	Detail string
}

// Recorder stores audit events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Query filters recorded events. Zero values match everything.
type Query struct {
	Types    []EventType
	Outcomes []Outcome
	UserID   string
	Limit    int
}

func (q *Query) matches(e *Event) bool {
	if len(q.Types) > 0 && !contains(q.Types, e.Type) {
		return false
	}
	if len(q.Outcomes) > 0 && !contains(q.Outcomes, e.Outcome) {
		return false
	}
	if q.UserID != "" && q.UserID != e.UserID {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Nop returns a Recorder that discards events.
func Nop() Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *Event) error { return nil }

// Tee fans events out to every recorder and returns the first error.
func Tee(recorders ...Recorder) Recorder {
	return tee(recorders)
}

type tee []Recorder

func (t tee) Record(ctx context.Context, event *Event) error {
	var first error
	for _, r := range t {
		if err := r.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
