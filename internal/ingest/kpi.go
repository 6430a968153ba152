package ingest

import (
	"math"
	"sort"
	"sync"
	"time"
)

// kpiWindow caps the latency samples kept for percentiles; older samples roll off.
const kpiWindow = 1024

// KPI aggregates task outcomes for the dashboard report. Counts cover the
// process lifetime, latency percentiles the most recent kpiWindow completions.
type KPI struct {
	mu        sync.Mutex
	latencies []time.Duration
	completed int
	failed    int
}

// KPISnapshot is the reported view of KPI.
type KPISnapshot struct {
	SuccessRate     float64   `json:"success_rate"`
	P95LatencyMs    float64   `json:"p95_latency_ms"`
	MedianLatencyMs float64   `json:"median_latency_ms"`
	Completed       int       `json:"completed"`
	Failures        int       `json:"failures"`
	GeneratedAt     time.Time `json:"generated_at"`
}

func (k *KPI) Record(status TaskStatus, latency time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	switch status {
	case TaskCompleted:
		k.completed++
		if latency > 0 {
			if len(k.latencies) == kpiWindow {
				copy(k.latencies, k.latencies[1:])
				k.latencies = k.latencies[:kpiWindow-1]
			}
			k.latencies = append(k.latencies, latency)
		}
	case TaskError:
		k.failed++
	}
}

func (k *KPI) Snapshot() KPISnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := KPISnapshot{
		Completed:   k.completed,
		Failures:    k.failed,
		GeneratedAt: time.Now().UTC(),
	}
	if total := k.completed + k.failed; total > 0 {
		out.SuccessRate = float64(k.completed) / float64(total)
	}
	if len(k.latencies) > 0 {
		millis := make([]int64, len(k.latencies))
		for i, d := range k.latencies {
			millis[i] = d.Milliseconds()
		}
		sort.Slice(millis, func(i, j int) bool { return millis[i] < millis[j] })
		out.P95LatencyMs = percentile(millis, 95)
		out.MedianLatencyMs = percentile(millis, 50)
	}
	return out
}

// percentile expects values sorted ascending.
func percentile(values []int64, pct float64) float64 {
	if len(values) == 0 {
		return 0
	}
	idx := int(math.Round((pct / 100.0) * float64(len(values)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return float64(values[idx])
}
