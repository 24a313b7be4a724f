package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), newAuditEvent(AuditLoginFailed, false, SeverityMedium))
	}
	d.Close()

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 5 {
				t.Fatalf("expected 5 events after drain, got %d", got)
			}
			return
		}
	}
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NewChannelSink(1))
	if d != nil {
		t.Fatal("disabled config must not start a dispatcher")
	}
	// nil receivers are safe.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reports zero drops")
	}
}

func TestDispatcherCloseStopsIntake(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	d.Emit(context.Background(), newAuditEvent(AuditLogout, true, SeverityLow))
	d.Close()
	d.Close()
	d.Emit(context.Background(), newAuditEvent(AuditLogout, true, SeverityLow))

	got := 0
	for {
		select {
		case <-sink.Events():
			got++
		default:
			if got != 1 {
				t.Fatalf("expected exactly the pre-close event, got %d", got)
			}
			return
		}
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// One event occupies the goroutine, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), newAuditEvent(AuditLoginFailed, false, SeverityMedium))
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected dropped events")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	event := newAuditEvent(AuditLoginSuccess, true, SeverityLow)
	event.AccountID = "acct-1"
	sink.Emit(context.Background(), event)
	sink.Emit(context.Background(), newAuditEvent(AuditLogout, true, SeverityLow))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var decoded AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if decoded.EventType != AuditLoginSuccess || decoded.AccountID != "acct-1" {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
	if decoded.ID == "" || decoded.Timestamp.IsZero() {
		t.Fatal("expected id and timestamp populated")
	}
}

func TestLoginEmitsAuditTrail(t *testing.T) {
	cfg := testConfig()
	store := newMockCredentialStore()

	_, rdb := newTestRedis(t)
	sink := NewChannelSink(64)
	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	seedAccount(t, svc, store, "alice", testPassword)

	ctx := loginCtx("10.0.0.9", "ua")
	svc.Login(ctx, "alice", "Wr0ng!Passphrase")
	svc.Close()

	types := map[string]int{}
	for {
		select {
		case e := <-sink.Events():
			types[e.EventType]++
			if e.IP != "10.0.0.9" {
				t.Fatalf("expected caller IP on event, got %q", e.IP)
			}
		default:
			if types[AuditLoginFailed] == 0 {
				t.Fatal("expected login_failed event")
			}
			if types[AuditAccountLocked] == 0 {
				t.Fatal("expected account_locked event")
			}
			return
		}
	}
}
