package tanglr

import (
	"context"
	"errors"
	"io"
	"net/http"

	internalaudit "github.com/artyultra/tanglr-client/internal/audit"
	"github.com/rs/zerolog"
)

type (
	// AuditEvent records one session lifecycle change.
	AuditEvent = internalaudit.Event
	// AuditSink receives audit events from a background dispatcher.
	AuditSink = internalaudit.Sink
	// NoOpSink discards audit events.
	NoOpSink = internalaudit.NoOpSink
	// ChannelSink buffers audit events on a channel.
	ChannelSink = internalaudit.ChannelSink
	// JSONWriterSink writes audit events as JSON lines.
	JSONWriterSink = internalaudit.JSONWriterSink
	// LogSink writes audit events through zerolog.
	LogSink = internalaudit.LogSink
)

// Audit event types.
const (
	AuditLoginSuccess   = "login_success"
	AuditLoginFailure   = "login_failure"
	AuditRefreshSuccess = "refresh_success"
	AuditRefreshFailure = "refresh_failure"
	AuditSessionExpired = "session_expired"
	AuditLogout         = "logout"
	AuditRevokeFailure  = "revoke_failure"
	AuditRequestRetry   = "request_retry"
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

func (c *Client) emitAudit(ctx context.Context, event AuditEvent) {
	if c.audit == nil {
		return
	}
	c.audit.Emit(ctx, event)
}

// auditEndpoints names the API call behind each event type that has one.
var auditEndpoints = map[string]struct{ method, path string }{
	AuditLoginSuccess:   {http.MethodPost, "/login"},
	AuditLoginFailure:   {http.MethodPost, "/login"},
	AuditRefreshSuccess: {http.MethodPost, "/refresh-token"},
	AuditRefreshFailure: {http.MethodPost, "/refresh-token"},
	AuditRevokeFailure:  {http.MethodDelete, "/refresh-token"},
}

func (c *Client) auditSession(ctx context.Context, eventType string, s *sessionIdentity, err error) {
	if c.audit == nil {
		return
	}
	ev := AuditEvent{
		Type:    eventType,
		Success: err == nil,
	}
	if ep, ok := auditEndpoints[eventType]; ok {
		ev.Method = ep.method
		ev.Path = ep.path
	}
	if s != nil {
		ev.UserID = s.userID
		ev.Username = s.username
	}
	if err != nil {
		ev.Error = err.Error()
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			ev.Status = httpErr.Status
		}
	}
	c.emitAudit(ctx, ev)
}

type sessionIdentity struct {
	userID   string
	username string
}

// AuditDropped returns the number of audit events dropped because the buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}
