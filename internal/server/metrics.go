package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics are process-wide counters. Writers are the tick goroutine; the
// status endpoint reads them concurrently.
type Metrics struct {
	Packets         atomic.Int64 // client messages decoded and routed
	DecodeFailures  atomic.Int64
	RateLimited     atomic.Int64
	Unauthenticated atomic.Int64
	Connects        atomic.Int64
	Rejects         atomic.Int64
	Disconnects     atomic.Int64
	Timeouts        atomic.Int64
	Ticks           atomic.Int64
	TickNanos       atomic.Int64
	Players         atomic.Int64 // gauge
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) AddTick(d time.Duration) {
	m.Ticks.Add(1)
	m.TickNanos.Add(d.Nanoseconds())
}

// Snapshot returns a copy suitable for encoding.
func (m *Metrics) Snapshot() map[string]any {
	ticks := m.Ticks.Load()
	var avgMs float64
	if ticks > 0 {
		avgMs = float64(m.TickNanos.Load()) / float64(ticks) / 1e6
	}
	return map[string]any{
		"players":         m.Players.Load(),
		"packets":         m.Packets.Load(),
		"decode_failures": m.DecodeFailures.Load(),
		"rate_limited":    m.RateLimited.Load(),
		"unauthenticated": m.Unauthenticated.Load(),
		"connects":        m.Connects.Load(),
		"rejects":         m.Rejects.Load(),
		"disconnects":     m.Disconnects.Load(),
		"timeouts":        m.Timeouts.Load(),
		"tick_count":      ticks,
		"avg_tick_ms":     avgMs,
	}
}

// StatusHandler serves GET /metrics (JSON counters) and GET /healthz.
// extra, when non-nil, is merged into the metrics payload.
func StatusHandler(m *Metrics, extra func() map[string]any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload := m.Snapshot()
		if extra != nil {
			for k, v := range extra() {
				payload[k] = v
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
