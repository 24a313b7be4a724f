package authcore

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginRateLimited
	MetricLoginLocked
	MetricLoginDeactivated
	MetricLoginCompromised
	MetricSessionCreated
	MetricSessionEvicted
	MetricValidateSuccess
	MetricValidateFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricPasswordChanged
	MetricLogout
	metricCount
)

var metricNames = map[MetricID]string{
	MetricLoginSuccess:     "login_success",
	MetricLoginFailure:     "login_failure",
	MetricLoginRateLimited: "login_rate_limited",
	MetricLoginLocked:      "login_locked",
	MetricLoginDeactivated: "login_deactivated",
	MetricLoginCompromised: "login_compromised",
	MetricSessionCreated:   "session_created",
	MetricSessionEvicted:   "session_evicted",
	MetricValidateSuccess:  "validate_success",
	MetricValidateFailure:  "validate_failure",
	MetricRefreshSuccess:   "refresh_success",
	MetricRefreshFailure:   "refresh_failure",
	MetricPasswordChanged:  "password_changed",
	MetricLogout:           "logout",
}

// String returns the metric's stable export name.
func (id MetricID) String() string {
	if name, ok := metricNames[id]; ok {
		return name
	}
	return "unknown"
}

// Metrics is a fixed set of lock-free counters. Zero value is unusable; it is
// constructed by Build when Config.Metrics.Enabled is set.
type Metrics struct {
	counters [metricCount]atomic.Uint64
}

func newMetrics() *Metrics {
	return &Metrics{}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
