// Package stats provides in-process request statistics for llmgate.
package stats

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects request statistics. It is safe for concurrent use.
type Collector struct {
	startTime time.Time

	requestCount  atomic.Int64
	tokenCount    atomic.Int64
	toolCallCount atomic.Int64
	errorCount    atomic.Int64
	totalDuration atomic.Int64 // nanoseconds

	mu           sync.Mutex
	errorsByKind map[string]int64
	toolUsage    map[string]int64
}

// NewCollector creates a new stats collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:    time.Now(),
		errorsByKind: make(map[string]int64),
		toolUsage:    make(map[string]int64),
	}
}

// Stats represents statistics at a point in time.
type Stats struct {
	MemoryStats MemoryStats `json:"memory"`
	Goroutines  int         `json:"goroutines"`
	Uptime      string      `json:"uptime"`

	RequestCount  int64            `json:"request_count"`
	TokenCount    int64            `json:"token_count"`
	ToolCallCount int64            `json:"tool_call_count"`
	ErrorCount    int64            `json:"error_count"`
	AvgLatencyMs  float64          `json:"avg_latency_ms"`
	ErrorsByKind  map[string]int64 `json:"errors_by_kind,omitempty"`
	ToolUsage     map[string]int64 `json:"tool_usage,omitempty"`

	// Usage ledger
	DBSize   int64   `json:"db_size_bytes"`
	DBSizeMB float64 `json:"db_size_mb"`
	DBPath   string  `json:"db_path,omitempty"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	HeapAllocMB  float64 `json:"heap_alloc_mb"`
	HeapSysMB    float64 `json:"heap_sys_mb"`
	HeapObjects  uint64  `json:"heap_objects"`
	StackInuseMB float64 `json:"stack_inuse_mb"`
	NumGC        uint32  `json:"num_gc"`
}

// Collect returns current statistics. dbSize and dbPath describe the usage
// ledger file and may be zero.
func (c *Collector) Collect(dbSize int64, dbPath string) *Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	requests := c.requestCount.Load()
	avgLatency := float64(0)
	if requests > 0 {
		avgLatency = float64(c.totalDuration.Load()) / float64(requests) / 1e6 // nanos to millis
	}

	c.mu.Lock()
	byKind := copyCounts(c.errorsByKind)
	tools := copyCounts(c.toolUsage)
	c.mu.Unlock()

	return &Stats{
		MemoryStats: MemoryStats{
			HeapAllocMB:  bytesToMB(int64(m.HeapAlloc)),
			HeapSysMB:    bytesToMB(int64(m.HeapSys)),
			HeapObjects:  m.HeapObjects,
			StackInuseMB: bytesToMB(int64(m.StackInuse)),
			NumGC:        m.NumGC,
		},
		Goroutines:    runtime.NumGoroutine(),
		Uptime:        time.Since(c.startTime).Truncate(time.Second).String(),
		RequestCount:  requests,
		TokenCount:    c.tokenCount.Load(),
		ToolCallCount: c.toolCallCount.Load(),
		ErrorCount:    c.errorCount.Load(),
		AvgLatencyMs:  avgLatency,
		ErrorsByKind:  byKind,
		ToolUsage:     tools,
		DBSize:        dbSize,
		DBSizeMB:      bytesToMB(dbSize),
		DBPath:        dbPath,
	}
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(tokens int, duration time.Duration) {
	c.requestCount.Add(1)
	c.tokenCount.Add(int64(tokens))
	c.totalDuration.Add(duration.Nanoseconds())
}

// RecordToolCall records one executed tool call.
func (c *Collector) RecordToolCall(name string) {
	c.toolCallCount.Add(1)
	c.mu.Lock()
	c.toolUsage[name]++
	c.mu.Unlock()
}

// RecordError records a failed request of the given kind.
func (c *Collector) RecordError(kind string) {
	c.errorCount.Add(1)
	c.mu.Lock()
	c.errorsByKind[kind]++
	c.mu.Unlock()
}

// StartTime returns when the collector started.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// GetMetrics returns current counters.
func (c *Collector) GetMetrics() (requests, tokens, errors int64, totalDuration time.Duration) {
	return c.requestCount.Load(), c.tokenCount.Load(), c.errorCount.Load(), time.Duration(c.totalDuration.Load())
}

func copyCounts(m map[string]int64) map[string]int64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// bytesToMB converts bytes to megabytes.
func bytesToMB(b int64) float64 {
	return float64(b) / 1024 / 1024
}
