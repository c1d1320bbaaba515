package authcore

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Audit event types emitted by the Engine.
const (
	AuditLoginSuccess          = "login_success"
	AuditLoginFailure          = "login_failure"
	AuditLoginSecondFactor     = "login_second_factor_required"
	AuditSecondFactorSuccess   = "second_factor_success"
	AuditSecondFactorFailure   = "second_factor_failure"
	AuditLogout                = "logout"
	AuditLogoutOthers          = "logout_other_sessions"
	AuditTwoFactorEnabled      = "two_factor_enabled"
	AuditTwoFactorConfirmed    = "two_factor_confirmed"
	AuditTwoFactorDisabled     = "two_factor_disabled"
	AuditPasswordResetRequest  = "password_reset_request"
	AuditPasswordResetPreview  = "password_reset_preview"
	AuditPasswordReset         = "password_reset"
	AuditPasswordChanged       = "password_changed"
	AuditRegistered            = "registered"
	AuditEmailVerified         = "email_verified"
	AuditProfileUpdated        = "profile_updated"
	AuditAccountCreated        = "account_created"
	AuditAccountUpdated        = "account_updated"
	AuditAccountDeleted        = "account_deleted"
	AuditAuthorizationDenied   = "authorization_denied"
	AuditDisabledSessionClosed = "disabled_session_closed"
	AuditRateLimited           = "rate_limited"
	AuditAntiForgeryMismatch   = "anti_forgery_mismatch"
)

// AuditEvent is one security-relevant occurrence.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	AccountID string            `json:"account_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a buffered channel. Useful in tests.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// ZerologSink writes events as structured log lines.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *ZerologSink) Emit(_ context.Context, event AuditEvent) {
	ev := s.logger.Info()
	if !event.Success {
		ev = s.logger.Warn()
	}
	ev = ev.Time("at", event.Timestamp).
		Str("event", event.EventType).
		Str("account_id", event.AccountID).
		Str("ip", event.IP).
		Bool("success", event.Success)
	if event.Error != "" {
		ev = ev.Str("error", event.Error)
	}
	if len(event.Metadata) > 0 {
		ev = ev.Interface("metadata", event.Metadata)
	}
	ev.Msg("audit")
}

/*
====================================
REQUEST RECORDS
====================================
*/

// RedactedValue replaces sensitive payload values.
const RedactedValue = "[REDACTED]"

// RequestRecord is the per-request context handed to an external request
// logger. Payload has already been redacted.
type RequestRecord struct {
	AccountID *string        `json:"user_id"`
	Method    string         `json:"method"`
	Path      string         `json:"path"`
	Status    int            `json:"status"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

// Redact returns a copy of payload with every key in keys (case-insensitive,
// at any depth) replaced by RedactedValue.
func Redact(payload map[string]any, keys []string) map[string]any {
	if payload == nil {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return redactMap(payload, set)
}

func redactMap(in map[string]any, keys map[string]struct{}) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if _, hit := keys[strings.ToLower(k)]; hit {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v, keys)
	}
	return out
}

func redactValue(v any, keys map[string]struct{}) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t, keys)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(t[i], keys)
		}
		return out
	default:
		return v
	}
}
