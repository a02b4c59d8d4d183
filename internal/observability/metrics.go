package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	transitionCount   map[string]int64
	broadcastFailures map[string]int64
	importRows        map[string]int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests          map[string]int64 `json:"requests"`
	Errors            map[string]int64 `json:"errors"`
	Transitions       map[string]int64 `json:"transitions"`
	BroadcastFailures map[string]int64 `json:"broadcast_failures"`
	ImportRows        map[string]int64 `json:"import_rows"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:      make(map[string]int64),
		errorCount:        make(map[string]int64),
		transitionCount:   make(map[string]int64),
		broadcastFailures: make(map[string]int64),
		importRows:        make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts a committed ticket operation.
func (m *Metrics) RecordTransition(operation string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[operation]++
}

// RecordBroadcastFailure counts a snapshot that could not be published.
func (m *Metrics) RecordBroadcastFailure(topic string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcastFailures[topic]++
}

// RecordImport adds the outcome counts of one bulk import.
func (m *Metrics) RecordImport(created, duplicate, skipped int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.importRows["created"] += int64(created)
	m.importRows["duplicate"] += int64(duplicate)
	m.importRows["skipped"] += int64(skipped)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:          copyCounts(m.requestCount),
		Errors:            copyCounts(m.errorCount),
		Transitions:       copyCounts(m.transitionCount),
		BroadcastFailures: copyCounts(m.broadcastFailures),
		ImportRows:        copyCounts(m.importRows),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
