package authcore

import (
	"sync"
	"testing"
)

func TestMetricsConcurrentInc(t *testing.T) {
	m := newMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricLoginSuccess)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 8000 {
		t.Fatalf("expected 8000, got %d", snap.Counters[MetricLoginSuccess])
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	snap := m.Snapshot()
	if len(snap.Counters) != 0 {
		t.Fatal("nil metrics snapshot must be empty")
	}
}

func TestServiceCountsLoginOutcomes(t *testing.T) {
	store := newMockCredentialStore()
	svc := newTestService(t, testConfig(), store)
	seedAccount(t, svc, store, "alice", testPassword)

	ctx := loginCtx("10.0.0.1", "ua")
	if _, err := svc.Login(ctx, "alice", testPassword); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := svc.Login(ctx, "alice", "Wr0ng!Passphrase"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := svc.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login_success = %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login_failure = %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("session_created = %d", snap.Counters[MetricSessionCreated])
	}
}

func TestMetricNames(t *testing.T) {
	if MetricLoginSuccess.String() != "login_success" {
		t.Fatal("unexpected metric name")
	}
	if MetricID(9999).String() != "unknown" {
		t.Fatal("out-of-range id must stringify as unknown")
	}
}
