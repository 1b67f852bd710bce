package tanglr

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func buildAuditTestClient(t *testing.T, api *fakeAPI, sink AuditSink, enabled bool) *Client {
	t.Helper()
	cfg := testConfig(api)
	cfg.Audit.Enabled = enabled
	cfg.Audit.BufferSize = 64

	c, err := New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// drain closes c so the dispatcher flushes, then collects what reached sink.
func drain(c *Client, sink *ChannelSink) []AuditEvent {
	_ = c.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	api := newFakeAPI(t)
	sink := &countingSink{}
	c := buildAuditTestClient(t, api, sink, false)

	_, _ = c.Login(t.Context(), testUsername, "wrong-password")
	_, _ = c.Login(t.Context(), testUsername, testPassword)
	time.Sleep(30 * time.Millisecond)

	if got := sink.count.Load(); got != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", got)
	}
}

func TestAuditLoginFailureDoesNotLeakPassword(t *testing.T) {
	api := newFakeAPI(t)
	sink := NewChannelSink(8)
	c := buildAuditTestClient(t, api, sink, true)

	if _, err := c.Login(t.Context(), testUsername, "hunter2-secret"); err == nil {
		t.Fatal("expected login failure")
	}

	events := drain(c, sink)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != AuditLoginFailure || ev.Success {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Username != testUsername {
		t.Fatalf("expected username %q, got %q", testUsername, ev.Username)
	}
	if ev.Method != "POST" || ev.Path != "/login" || ev.Status != 401 {
		t.Fatalf("expected POST /login 401, got %s %s %d", ev.Method, ev.Path, ev.Status)
	}
	if ev.Error == "" {
		t.Fatal("expected error to be populated")
	}
	if strings.Contains(ev.Error, "hunter2-secret") {
		t.Fatal("password leaked in error")
	}
	for _, v := range ev.Metadata {
		if v == "hunter2-secret" {
			t.Fatal("password leaked in metadata")
		}
	}
}

func TestAuditRefreshFailureRecordsSessionExpiry(t *testing.T) {
	api := newFakeAPI(t)
	sink := NewChannelSink(16)
	c := buildAuditTestClient(t, api, sink, true)

	if _, err := c.Login(t.Context(), testUsername, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	api.expireAll()
	api.failRefresh.Store(true)

	if _, err := c.GetAllPosts(t.Context()); err == nil {
		t.Fatal("expected session expiry")
	}

	var types []string
	for _, ev := range drain(c, sink) {
		types = append(types, ev.Type)
		if ev.Type == AuditSessionExpired && ev.UserID != testUserID {
			t.Fatalf("expected user %q on session expiry, got %q", testUserID, ev.UserID)
		}
	}
	want := []string{AuditLoginSuccess, AuditRefreshFailure, AuditSessionExpired}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, types)
	}
}

func TestJSONWriterSinkThroughClient(t *testing.T) {
	api := newFakeAPI(t)
	var buf bytes.Buffer
	c := buildAuditTestClient(t, api, NewJSONWriterSink(&buf), true)

	if _, err := c.Login(t.Context(), testUsername, testPassword); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := c.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	_ = c.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != AuditLoginSuccess || ev.UserID != testUserID || ev.Path != "/login" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}
}

func TestLogSinkThroughClient(t *testing.T) {
	api := newFakeAPI(t)
	var buf bytes.Buffer
	c := buildAuditTestClient(t, api, NewLogSink(zerolog.New(&buf)), true)

	_, _ = c.Login(t.Context(), testUsername, "wrong-password")
	_ = c.Close()

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"event":"login_failure"`) {
		t.Fatalf("expected warn entry for login failure, got %s", out)
	}
	if !strings.Contains(out, `"status":401`) {
		t.Fatalf("expected status in entry, got %s", out)
	}
}
