package softoken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

var errUnexpected = errors.New("unexpected")

func newAuditedEngine(t *testing.T, sink AuditSink) *Engine {
	t.Helper()

	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64
	cfg.Audit.DropIfFull = false

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(quietLogger()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func drain(sink *ChannelSink) []AuditEvent {
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
	_, rdb := newTestRedis(t)
	sink := NewChannelSink(8)

	engine, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithLogger(quietLogger()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	mustCreate(t, engine, "1", 0)
	engine.Close()

	if got := len(drain(sink)); got != 0 {
		t.Fatalf("expected no events with audit disabled, got %d", got)
	}
}

func TestAuditLifecycleEvents(t *testing.T) {
	sink := NewChannelSink(64)
	engine := newAuditedEngine(t, sink)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	token, err := engine.Create(ctx, CreateRequest{UID: "1"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := engine.Get(ctx, "invalid token"); err == nil {
		t.Fatal("expected rejection")
	}
	if _, err := engine.Extend(ctx, token); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if _, err := engine.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	mustCreate(t, engine, "2", time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if _, err := engine.Cleanup(ctx, false); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := engine.DestroyUser(ctx, "3"); err != nil {
		t.Fatalf("DestroyUser failed: %v", err)
	}

	engine.Close()
	events := drain(sink)

	byType := map[string]AuditEvent{}
	for _, ev := range events {
		if _, seen := byType[ev.EventType]; !seen {
			byType[ev.EventType] = ev
		}
	}

	created, ok := byType[auditEventSessionCreated]
	if !ok || !created.Success || created.UserID != "1" {
		t.Fatalf("missing or wrong session_created event: %+v", created)
	}
	if created.IP != "203.0.113.7" {
		t.Fatalf("expected client ip on event, got %q", created.IP)
	}
	if created.TokenID == "" || created.TokenID == token {
		t.Fatalf("expected token fingerprint, got %q", created.TokenID)
	}
	if created.Metadata["expires_at"] == "" {
		t.Fatal("expected expires_at metadata")
	}

	rejected, ok := byType[auditEventSessionRejected]
	if !ok || rejected.Success || rejected.Error != string(auditErrMalformedToken) {
		t.Fatalf("missing or wrong session_rejected event: %+v", rejected)
	}

	for _, typ := range []string{auditEventSessionExtended, auditEventSessionDestroyed, auditEventCleanupSweep, auditEventUserSessionsDestroyed} {
		if _, ok := byType[typ]; !ok {
			t.Fatalf("missing %s event in %d events", typ, len(events))
		}
	}
	if byType[auditEventUserSessionsDestroyed].Metadata["removed"] != "0" {
		t.Fatalf("expected removed=0, got %v", byType[auditEventUserSessionsDestroyed].Metadata)
	}
}

func TestAuditWipeEvent(t *testing.T) {
	sink := NewChannelSink(16)
	engine := newAuditedEngine(t, sink)

	mustCreate(t, engine, "1", 0)
	if _, err := engine.Cleanup(context.Background(), true); err != nil {
		t.Fatalf("Cleanup(force) failed: %v", err)
	}
	engine.Close()

	for _, ev := range drain(sink) {
		if ev.EventType == auditEventCleanupWipe {
			if ev.Metadata["removed"] != "1" {
				t.Fatalf("expected removed=1, got %v", ev.Metadata)
			}
			return
		}
	}
	t.Fatal("missing cleanup_wipe event")
}

func TestAuditNoTokensInEvents(t *testing.T) {
	sink := NewChannelSink(64)
	engine := newAuditedEngine(t, sink)
	ctx := context.Background()

	token := mustCreate(t, engine, "1", 0)
	if _, err := engine.Get(ctx, token); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := engine.Extend(ctx, token); err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	if _, err := engine.Destroy(ctx, token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := engine.Get(ctx, token); err == nil {
		t.Fatal("expected unknown token")
	}
	engine.Close()

	events := drain(sink)
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	for _, ev := range events {
		if strings.Contains(ev.TokenID, token) || strings.Contains(ev.Error, token) {
			t.Fatalf("token leaked in %s event", ev.EventType)
		}
		for k, v := range ev.Metadata {
			if strings.Contains(v, token) {
				t.Fatalf("token leaked in metadata %s of %s", k, ev.EventType)
			}
		}
	}
}

func TestAuditErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want AuditErrorCode
	}{
		{nil, ""},
		{ErrMalformedToken, auditErrMalformedToken},
		{ErrInvalidToken, auditErrInvalidToken},
		{ErrUnknownToken, auditErrUnknownToken},
		{ErrValidation, auditErrValidation},
		{ErrStoreUnavailable, auditErrUnavailable},
		{context.Canceled, auditErrContextCanceled},
		{errUnexpected, auditErrInternal},
	}
	for _, tc := range cases {
		if got := auditErrorCode(tc.err); got != tc.want {
			t.Fatalf("auditErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
