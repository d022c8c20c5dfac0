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

package audit

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
)

// LogRecorder writes events through the structured logger. Successful
// events log at info, failures and denials at warn.
type LogRecorder struct {
	log logger.Logger
}

// NewLogRecorder creates a LogRecorder.
func NewLogRecorder(log logger.Logger) *LogRecorder {
	if log == nil {
		log = logger.Nop()
	}
	return &LogRecorder{log: log.With(logger.String("component", "audit"))}
}

// Record implements Recorder.
func (l *LogRecorder) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	fields := []logger.Field{
		logger.String("event", string(event.Type)),
		logger.String("outcome", string(event.Outcome)),
	}
	for _, f := range []struct{ key, value string }{
		{"actor", event.Actor},
		{"invitation_id", event.InvitationID},
		{"user_id", event.UserID},
		{"credential_id", event.CredentialID},
		{"request_id", event.RequestID},
		{"source_ip", event.SourceIP},
		{"detail", event.Detail},
	} {
		if f.value != "" {
			fields = append(fields, logger.String(f.key, f.value))
		}
	}

	if event.Outcome == OutcomeSuccess {
		l.log.Info(ctx, "audit", fields...)
	} else {
		l.log.Warn(ctx, "audit", fields...)
	}
	return nil
}
