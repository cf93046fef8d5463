// Package audit records security-relevant events emitted by the session
// and credential lifecycle operations. Sinks must be safe for concurrent
// use; Emit never fails the calling operation.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	EventRegister     = "register"
	EventLogin        = "login"
	EventLockout      = "lockout"
	EventRefresh      = "token_refresh"
	EventResetRequest = "password_reset_request"
	EventResetConfirm = "password_reset_confirm"
	EventForceLogout  = "force_logout"
)

type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	IdentityID string            `json:"identity_id,omitempty"`
	Email      string            `json:"email,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// SlogSink writes events through a structured logger. This is the default
// production sink.
type SlogSink struct {
	logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Emit(ctx context.Context, event Event) {
	attrs := []any{
		"event_type", event.EventType,
		"success", event.Success,
	}
	if event.IdentityID != "" {
		attrs = append(attrs, "identity_id", event.IdentityID)
	}
	if event.Email != "" {
		attrs = append(attrs, "email", event.Email)
	}
	if event.IP != "" {
		attrs = append(attrs, "ip", event.IP)
	}
	if event.Error != "" {
		attrs = append(attrs, "error", event.Error)
	}
	for k, v := range event.Metadata {
		attrs = append(attrs, k, v)
	}
	if event.Success {
		s.logger.InfoContext(ctx, "audit event", attrs...)
	} else {
		s.logger.WarnContext(ctx, "audit event", attrs...)
	}
}

// JSONWriterSink appends one JSON document per event to a writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
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
