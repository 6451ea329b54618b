package main

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/matst80/spectroconnect/internal/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMetricsServer serves Prometheus metrics plus health, state and dashboard endpoints.
func newMetricsServer(addr string, state StateStore) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(collectStats(state))
	})
	mux.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		writePage(w, "dashboard", collectStats(state).ToTemplateMap())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if state.isClosing() || !state.isReady() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

// writePage renders the whole page before sending anything so a template
// failure still yields a clean 500.
func writePage(w http.ResponseWriter, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := web.Render(&buf, name, data); err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
