package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CacheHit()
	m.CacheMiss()
	m.ObserveAttempt("0", nil, time.Second)
	m.LockAttempt(true)
	m.LockReleased()
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.ObserveAttempt("1", errors.New("quota"), time.Millisecond)
	m.ObserveAttempt("2", nil, time.Millisecond)
	m.Rotated()
	m.LockAttempt(false)
	m.LockAttempt(true)

	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 cache hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.attempts.WithLabelValues("1", "error")); got != 1 {
		t.Fatalf("expected 1 failed attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.rotations); got != 1 {
		t.Fatalf("expected 1 rotation, got %v", got)
	}
	if got := testutil.ToFloat64(m.lockHeld); got != 1 {
		t.Fatalf("expected lock held gauge 1, got %v", got)
	}

	m.LockReleased()
	if got := testutil.ToFloat64(m.lockHeld); got != 0 {
		t.Fatalf("expected lock held gauge 0, got %v", got)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gather: n=%d err=%v", n, err)
	}
}
