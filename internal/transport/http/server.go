// Package httptransport builds the engine's HTTP server with timeouts that
// suit its short, JSON-only request cycle.
package httptransport

import (
	"net/http"
	"time"
)

// ServerConfig carries the listener address and per-phase timeouts. Ingest
// bodies are a few hundred bytes, so tight read timeouts are safe.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// NewServer returns an *http.Server wired with the configured timeouts.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
