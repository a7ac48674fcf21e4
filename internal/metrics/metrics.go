package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hr_support"

// Metrics holds the collectors shared by the extraction engine, the request
// orchestrator and the lock coordinator. A nil *Metrics records nothing.
type Metrics struct {
	extractions     *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	cacheEntries    prometheus.Gauge

	attempts        *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	inflight        prometheus.Gauge
	queued          prometheus.Gauge
	rotations       prometheus.Counter

	lockAcquire *prometheus.CounterVec
	lockHeld    prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests free of global state.
func New(reg prometheus.Registerer) *Metrics {
	buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extractions_total",
			Help: "Document extractions by method and outcome",
		}, []string{"method", "outcome"}),
		extractDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "extraction_seconds",
			Help: "Document extraction duration", Buckets: buckets,
		}, []string{"method"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Extraction cache lookups by result",
		}, []string{"result"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cache_entries",
			Help: "Entries currently held by the extraction cache",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_attempts_total",
			Help: "Model request attempts by credential index and outcome",
		}, []string{"credential", "outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_attempt_seconds",
			Help: "Model request attempt duration", Buckets: buckets,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "llm_inflight",
			Help: "Model requests currently executing",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "llm_queued",
			Help: "Model requests waiting for admission",
		}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "credential_rotations_total",
			Help: "Credential cursor advances after a failed attempt",
		}),
		lockAcquire: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "lock_acquire_total",
			Help: "Exclusive lock acquisition attempts by result",
		}, []string{"result"}),
		lockHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lock_held",
			Help: "1 while this process holds the exclusive lock",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.extractions, m.extractDuration, m.cacheLookups, m.cacheEntries,
			m.attempts, m.attemptDuration, m.inflight, m.queued, m.rotations,
			m.lockAcquire, m.lockHeld,
		)
	}

	return m
}

func (m *Metrics) ObserveExtraction(method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(method, outcome(err)).Inc()
	if err == nil {
		m.extractDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

func (m *Metrics) ObserveAttempt(credential string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(credential, outcome(err)).Inc()
	m.attemptDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Rotated() {
	if m == nil {
		return
	}
	m.rotations.Inc()
}

// Queued adjusts the waiting gauge by delta.
func (m *Metrics) Queued(delta int) {
	if m == nil {
		return
	}
	m.queued.Add(float64(delta))
}

// Inflight adjusts the executing gauge by delta.
func (m *Metrics) Inflight(delta int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(delta))
}

func (m *Metrics) LockAttempt(acquired bool) {
	if m == nil {
		return
	}
	result := "busy"
	if acquired {
		result = "acquired"
		m.lockHeld.Set(1)
	}
	m.lockAcquire.WithLabelValues(result).Inc()
}

func (m *Metrics) LockReleased() {
	if m == nil {
		return
	}
	m.lockHeld.Set(0)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
