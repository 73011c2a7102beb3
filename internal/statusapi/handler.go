// Package statusapi exposes prometheus metrics and the live session status
// over HTTP.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/pslog"
	"pkt.systems/varsync/internal/session"
)

// StatusFunc returns the current session snapshot.
type StatusFunc func() (session.Status, error)

// Config wires the handler to its sources.
type Config struct {
	Gatherer prometheus.Gatherer
	Status   StatusFunc
}

type statusResponse struct {
	Session   string   `json:"session"`
	State     string   `json:"state"`
	Media     string   `json:"media,omitempty"`
	Bookmarks int      `json:"bookmarks"`
	History   int      `json:"history"`
	Cursor    int      `json:"cursor"`
	Seeking   bool     `json:"seeking"`
	Tasks     []string `json:"tasks"`
}

// Handler serves /metrics, /healthz and /status.
func Handler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Status == nil {
			http.Error(w, "no session", http.StatusServiceUnavailable)
			return
		}
		st, err := cfg.Status()
		if err != nil {
			pslog.Ctx(r.Context()).Warn("status unavailable", "err", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		tasks := st.Tasks
		if tasks == nil {
			tasks = []string{}
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Session:   string(st.ID),
			State:     st.State.String(),
			Media:     st.MediaURL,
			Bookmarks: st.Bookmarks,
			History:   st.History,
			Cursor:    st.Cursor,
			Seeking:   st.Seeking,
			Tasks:     tasks,
		})
	})
	return withRequestLogging(mux)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type responseRecorder struct {
	status int
	bytes  int64
	writer http.ResponseWriter
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += int64(n)
	return n, err
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{writer: w}
		next.ServeHTTP(rec, r)
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		pslog.Ctx(r.Context()).Debug("http request", "method", r.Method, "path", r.URL.Path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds())
	})
}
