package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"pkt.systems/varsync/internal/metrics"
	"pkt.systems/varsync/internal/session"
	"pkt.systems/varsync/schema"
)

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.Received("bookmarks")
	m.SetConnected(true)

	srv := httptest.NewServer(Handler(Config{Gatherer: reg}))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics", http.StatusOK)
	if !strings.Contains(body, `varsync_messages_received_total{route="bookmarks"} 1`) {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
	if !strings.Contains(body, "varsync_connected 1") {
		t.Fatalf("metrics output missing gauge:\n%s", body)
	}
}

func TestHealthAndStatus(t *testing.T) {
	status := func() (session.Status, error) {
		return session.Status{ID: "s1", State: schema.StateConnected, MediaURL: "file:///a.mkv", Bookmarks: 3, Cursor: -1}, nil
	}
	srv := httptest.NewServer(Handler(Config{Gatherer: prometheus.NewRegistry(), Status: status}))
	defer srv.Close()

	if body := get(t, srv.URL+"/healthz", http.StatusOK); body != "ok\n" {
		t.Fatalf("unexpected health body %q", body)
	}
	var resp statusResponse
	if err := json.Unmarshal([]byte(get(t, srv.URL+"/status", http.StatusOK)), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Session != "s1" || resp.State != schema.StateConnected.String() || resp.Bookmarks != 3 || resp.Cursor != -1 {
		t.Fatalf("unexpected status %+v", resp)
	}
	if resp.Tasks == nil {
		t.Fatalf("expected empty task list, got nil")
	}
}

func TestStatusUnavailable(t *testing.T) {
	status := func() (session.Status, error) {
		return session.Status{}, schema.ErrSessionClosed
	}
	srv := httptest.NewServer(Handler(Config{Gatherer: prometheus.NewRegistry(), Status: status}))
	defer srv.Close()
	get(t, srv.URL+"/status", http.StatusServiceUnavailable)

	empty := httptest.NewServer(Handler(Config{Gatherer: prometheus.NewRegistry()}))
	defer empty.Close()
	get(t, empty.URL+"/status", http.StatusServiceUnavailable)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, Handler(Config{Gatherer: prometheus.NewRegistry()})) }()

	get(t, "http://"+ln.Addr().String()+"/healthz", http.StatusOK)
	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("serve did not stop")
	}
}

func get(t *testing.T, url string, want int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", url, err)
	}
	if resp.StatusCode != want {
		t.Fatalf("get %s: status %d, want %d: %s", url, resp.StatusCode, want, data)
	}
	return string(data)
}
