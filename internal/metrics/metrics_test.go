package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Received("bookmarks")
	m.Received("bookmarks")
	m.Sent("playerInfo")
	m.Dropped("decode")
	m.Reconnect()
	m.SetConnected(true)
	m.SetBookmarks(4)
	m.Seek("converged")

	if got := testutil.ToFloat64(m.messagesIn.WithLabelValues("bookmarks")); got != 2 {
		t.Fatalf("received = %v", got)
	}
	if got := testutil.ToFloat64(m.connected); got != 1 {
		t.Fatalf("connected = %v", got)
	}
	if got := testutil.ToFloat64(m.bookmarks); got != 4 {
		t.Fatalf("bookmarks = %v", got)
	}
	if got := testutil.ToFloat64(m.reconnects); got != 1 {
		t.Fatalf("reconnects = %v", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 7 {
		t.Fatalf("expected 7 metric families, got %d", len(families))
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Received("x")
	m.Sent("x")
	m.Dropped("x")
	m.Reconnect()
	m.SetConnected(false)
	m.SetBookmarks(1)
	m.Seek("x")
}
