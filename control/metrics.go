// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters shared by the endpoint drivers.
// Exposes counters in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"
)

// Metric keys recorded by the server and client drivers.
const (
	MetricConnectionsAccepted = "connections.accepted"
	MetricConnectionsRejected = "connections.rejected"
	MetricConnectionsActive   = "connections.active"
	MetricConnectionsClosed   = "connections.closed"
	MetricMessagesText        = "messages.text"
	MetricMessagesPing        = "messages.ping"
	MetricDecodeFailures      = "messages.decode_failures"
)

// MetricsRegistry holds counters and gauges by name.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value int64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add adds delta to key and returns the new value. Nil registries ignore
// the call so drivers can run without metrics.
func (mr *MetricsRegistry) Add(key string, delta int64) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	return mr.metrics[key]
}

// Get returns the value of key, or zero.
func (mr *MetricsRegistry) Get(key string) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// Updated returns the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
