package processor

import (
	"sync/atomic"
	"time"
)

// ServiceMetrics tracks per-process counters with atomics. Prometheus
// metrics live in pkg/prom; these feed the periodic log report.
type ServiceMetrics struct {
	totalReconciled int64
	totalFailed     int64
	totalDuplicates int64
	totalDurationNs int64
	lastResetNs     int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		lastResetNs: time.Now().UnixNano(),
	}
}

func (m *ServiceMetrics) RecordSuccess(duration time.Duration) {
	atomic.AddInt64(&m.totalReconciled, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))
}

func (m *ServiceMetrics) RecordFailure() {
	atomic.AddInt64(&m.totalFailed, 1)
}

func (m *ServiceMetrics) RecordDuplicate() {
	atomic.AddInt64(&m.totalDuplicates, 1)
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	reconciled := atomic.LoadInt64(&m.totalReconciled)
	failed := atomic.LoadInt64(&m.totalFailed)
	duplicates := atomic.LoadInt64(&m.totalDuplicates)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	lastResetNs := atomic.LoadInt64(&m.lastResetNs)

	elapsed := time.Since(time.Unix(0, lastResetNs)).Seconds()

	rate := 0.0
	if elapsed > 0 {
		rate = float64(reconciled) / elapsed
	}

	avgDuration := time.Duration(0)
	if reconciled > 0 {
		avgDuration = time.Duration(durationNs / reconciled)
	}

	return map[string]interface{}{
		"total_reconciled": reconciled,
		"total_failed":     failed,
		"total_duplicates": duplicates,
		"rate_per_second":  rate,
		"avg_duration_ms":  avgDuration.Milliseconds(),
		"uptime_seconds":   elapsed,
	}
}

func (m *ServiceMetrics) Reset() {
	atomic.StoreInt64(&m.totalReconciled, 0)
	atomic.StoreInt64(&m.totalFailed, 0)
	atomic.StoreInt64(&m.totalDuplicates, 0)
	atomic.StoreInt64(&m.totalDurationNs, 0)
	atomic.StoreInt64(&m.lastResetNs, time.Now().UnixNano())
}
