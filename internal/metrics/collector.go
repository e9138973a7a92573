// Package metrics aggregates AI run-log statistics per operation.
package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/raphaelgruber/clipforge/internal/models"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Succeeded int64
	Failed    int64
	Active    int64

	// Timing covers terminal runs only.
	Timed     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Operation   models.Operation
	Count       int64
	Succeeded   int64
	Failed      int64
	Active      int64
	SuccessRate float64

	// Timing stats (nil if no terminal run reported a latency)
	AvgTimeMs *float64
	MinTimeMs *int64
	MaxTimeMs *int64

	TotalInputTokens  int64
	TotalOutputTokens int64
}

// Snapshot is the full set of statistics at a point in time.
type Snapshot struct {
	Total      OperationSnapshot
	Operations []OperationSnapshot
}

// Operation returns the snapshot for op, or nil if no run was recorded.
func (s Snapshot) Operation(op models.Operation) *OperationSnapshot {
	for i := range s.Operations {
		if s.Operations[i].Operation == op {
			return &s.Operations[i]
		}
	}
	return nil
}

// Collector aggregates run logs.
// All methods are thread-safe.
type Collector struct {
	mu   sync.RWMutex
	ops  map[models.Operation]*OperationMetrics
	seen map[string]struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		ops:  make(map[models.Operation]*OperationMetrics),
		seen: make(map[string]struct{}),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op models.Operation) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// Record adds one run log. Logs with an id that was already recorded are ignored.
func (c *Collector) Record(l models.AiRunLog) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l.ID != "" {
		if _, dup := c.seen[l.ID]; dup {
			return
		}
		c.seen[l.ID] = struct{}{}
	}

	m := c.getOrCreate(l.Operation)
	m.Count++
	switch {
	case l.Status == models.StatusSucceeded:
		m.Succeeded++
	case l.Status == models.StatusFailed:
		m.Failed++
	case l.Status.Active():
		m.Active++
	}

	if l.Status.Terminal() && l.LatencyMs > 0 {
		d := time.Duration(l.LatencyMs) * time.Millisecond
		m.Timed++
		m.TotalTime += d
		if d < m.MinTime {
			m.MinTime = d
		}
		if d > m.MaxTime {
			m.MaxTime = d
		}
	}

	m.TotalInputTokens += l.InputTokens
	m.TotalOutputTokens += l.OutputTokens
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(op models.Operation, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Operation:         op,
		Count:             m.Count,
		Succeeded:         m.Succeeded,
		Failed:            m.Failed,
		Active:            m.Active,
		TotalInputTokens:  m.TotalInputTokens,
		TotalOutputTokens: m.TotalOutputTokens,
	}
	if terminal := m.Succeeded + m.Failed; terminal > 0 {
		snap.SuccessRate = float64(m.Succeeded) / float64(terminal)
	}

	if m.Timed > 0 {
		avg := float64(m.TotalTime.Milliseconds()) / float64(m.Timed)
		minMs := m.MinTime.Milliseconds()
		maxMs := m.MaxTime.Milliseconds()
		snap.AvgTimeMs = &avg
		snap.MinTimeMs = &minMs
		snap.MaxTimeMs = &maxMs
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics, operations in
// pipeline order.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
	var snap Snapshot
	for _, op := range models.Operations {
		m := c.ops[op]
		if s := snapshotOp(op, m); s != nil {
			snap.Operations = append(snap.Operations, *s)
			merge(total, m)
		}
	}
	for op, m := range c.ops {
		if !knownOperation(op) {
			if s := snapshotOp(op, m); s != nil {
				snap.Operations = append(snap.Operations, *s)
				merge(total, m)
			}
		}
	}

	if s := snapshotOp("", total); s != nil {
		snap.Total = *s
	}
	return snap
}

// Summarize aggregates a slice of run logs.
func Summarize(logs []models.AiRunLog) Snapshot {
	c := NewCollector()
	for _, l := range logs {
		c.Record(l)
	}
	return c.Snapshot()
}

func merge(dst, src *OperationMetrics) {
	dst.Count += src.Count
	dst.Succeeded += src.Succeeded
	dst.Failed += src.Failed
	dst.Active += src.Active
	dst.Timed += src.Timed
	dst.TotalTime += src.TotalTime
	if src.Timed > 0 {
		dst.MinTime = min(dst.MinTime, src.MinTime)
		dst.MaxTime = max(dst.MaxTime, src.MaxTime)
	}
	dst.TotalInputTokens += src.TotalInputTokens
	dst.TotalOutputTokens += src.TotalOutputTokens
}

func knownOperation(op models.Operation) bool {
	for _, k := range models.Operations {
		if k == op {
			return true
		}
	}
	return false
}
