// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpImageFetch     = "image_fetch"
	OpVisionInfer    = "vision_infer"
	OpDBQuery        = "db_query"
	OpTriggerImage   = "trigger_image"
	OpTriggerConfirm = "trigger_confirm"
)

// opStats holds raw aggregates for one operation type.
type opStats struct {
	count     int64
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	failures  int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                      `json:"uptime_seconds"`
	Operations    map[string]OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector is a no-op.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*opStats
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*opStats),
	}
}

// Record adds one timed invocation of the named operation.
func (c *Collector) Record(op string, d time.Duration) {
	c.record(op, d, false)
}

// RecordFailure adds one timed, failed invocation of the named operation.
func (c *Collector) RecordFailure(op string, d time.Duration) {
	c.record(op, d, true)
}

func (c *Collector) record(op string, d time.Duration, failed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.ops[op]
	if !ok {
		s = &opStats{minTime: d, maxTime: d}
		c.ops[op] = s
	}

	s.count++
	s.totalTime += d
	if d < s.minTime {
		s.minTime = d
	}
	if d > s.maxTime {
		s.maxTime = d
	}
	if failed {
		s.failures++
	}
}

// Timed runs fn, recording its duration under op. The failure counter is
// bumped when fn returns an error.
func (c *Collector) Timed(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		c.RecordFailure(op, time.Since(start))
	} else {
		c.Record(op, time.Since(start))
	}
	return err
}

// Snapshot returns computed statistics for all operations.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Operations: map[string]OperationSnapshot{}}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]OperationSnapshot, len(c.ops)),
	}
	for op, s := range c.ops {
		os := OperationSnapshot{
			Count:       s.count,
			Failures:    s.failures,
			TotalTimeMs: s.totalTime.Milliseconds(),
			MinTimeMs:   s.minTime.Milliseconds(),
			MaxTimeMs:   s.maxTime.Milliseconds(),
		}
		if s.count > 0 {
			os.AvgTimeMs = float64(s.totalTime.Milliseconds()) / float64(s.count)
		}
		snap.Operations[op] = os
	}
	return snap
}
