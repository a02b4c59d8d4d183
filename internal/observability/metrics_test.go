package observability

import (
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/api/tickets", "POST", "CONFLICT")
	m.RecordTransition("start")
	m.RecordBroadcastFailure("waiting")
	m.RecordImport(1, 2, 3)

	snap := m.Snapshot()
	if snap.Requests != nil || snap.Transitions != nil {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordRequest("/api/tickets", "POST", 201, time.Millisecond)
	m.RecordError("/api/tickets", "POST", "CONFLICT")
	m.RecordTransition("start")
	m.RecordBroadcastFailure("waiting")
	m.RecordImport(4, 1, 2)

	snap := m.Snapshot()
	if got := snap.Requests["/api/tickets|POST|201"]; got != 2 {
		t.Fatalf("expected 2 requests, got %d", got)
	}
	if got := snap.Errors["/api/tickets|POST|CONFLICT"]; got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if snap.Transitions["start"] != 1 || snap.BroadcastFailures["waiting"] != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
	if snap.ImportRows["created"] != 4 || snap.ImportRows["duplicate"] != 1 || snap.ImportRows["skipped"] != 2 {
		t.Fatalf("unexpected import rows %+v", snap.ImportRows)
	}

	snap.Transitions["start"] = 99
	if m.Snapshot().Transitions["start"] != 1 {
		t.Fatalf("snapshot must be a copy")
	}
}
