// Package api serves the read-only HTTP surface: wallet balances,
// wallet health, liveness, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eigenix/walletd/internal/config"
	"github.com/eigenix/walletd/internal/metrics"
)

// Server exposes the collector's view of the wallets over HTTP. All
// endpoints are read-only; nothing here can move funds or touch keys.
type Server struct {
	log       *config.Logger
	collector *metrics.Collector
	http      *http.Server
}

// New creates a server listening on addr.
func New(log *config.Logger, collector *metrics.Collector, addr string) *Server {
	if log == nil {
		log = config.NullLogger()
	}
	s := &Server{log: log, collector: collector}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/wallets/balances", s.handleBalances)
	mux.HandleFunc("GET /api/wallets/health", s.handleWalletHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.log.Info("http api listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Serve blocks serving HTTP on an existing listener. Used in tests.
func (s *Server) Serve(ln net.Listener) error {
	err := s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBalances returns the last scraped balance of every wallet.
func (s *Server) handleBalances(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		Currency string  `json:"currency"`
		Balance  float64 `json:"balance"`
	}

	statuses := s.collector.Status()
	entries := make([]entry, 0, len(statuses))
	for _, status := range statuses {
		entries = append(entries, entry{Currency: string(status.Currency), Balance: status.Balance})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"balances": entries})
}

// handleWalletHealth reports per-wallet status, answering 503 when any
// wallet failed its last scrape so load balancers can act on it.
func (s *Server) handleWalletHealth(w http.ResponseWriter, _ *http.Request) {
	statuses := s.collector.Status()
	code := http.StatusOK
	if !s.collector.Healthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, map[string]any{
		"healthy": code == http.StatusOK,
		"wallets": statuses,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encoding http response: %v", err)
	}
}
