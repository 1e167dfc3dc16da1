package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockUpstream serves three demo feeds with drifting data.
//
//	/weather  JSON conditions that change every few refreshes
//	/transit  plain-text departures, parsed with a regex transform
//	/markets  JSON quotes that fail roughly one request in three
type mockUpstream struct {
	mu    sync.Mutex
	temp  float64
	quote float64
}

// StartMockUpstream runs the demo upstream on addr.
// Call this in a goroutine before starting the board.
func StartMockUpstream(addr string) {
	m := &mockUpstream{temp: 12.5, quote: 101.25}

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", m.weather)
	mux.HandleFunc("/transit", m.transit)
	mux.HandleFunc("/markets", m.markets)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock upstream error", "error", err)
	}
}

func (m *mockUpstream) weather(w http.ResponseWriter, r *http.Request) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	m.mu.Lock()
	m.temp += rand.Float64() - 0.5
	temp := m.temp
	m.mu.Unlock()

	skies := []string{"clear", "cloudy", "rain"}
	writeJSON(w, map[string]any{
		"current": map[string]any{
			"temp_c": float64(int(temp*10)) / 10,
			"sky":    skies[rand.Intn(len(skies))],
		},
	})
}

func (m *mockUpstream) transit(w http.ResponseWriter, r *http.Request) {
	lines := []string{"N", "Q", "R", "W"}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Next %s train in %d min\n", lines[rand.Intn(len(lines))], 1+rand.Intn(12))
}

func (m *mockUpstream) markets(w http.ResponseWriter, r *http.Request) {
	if rand.Intn(3) == 0 {
		slog.Info("mock markets failing request")
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
		return
	}

	m.mu.Lock()
	m.quote += (rand.Float64() - 0.5) * 2
	quote := m.quote
	m.mu.Unlock()

	writeJSON(w, map[string]any{
		"symbol": "LIVE",
		"price":  float64(int(quote*100)) / 100,
		"at":     time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
