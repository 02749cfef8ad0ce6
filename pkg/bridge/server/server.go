// Package server assembles the HTTP mux and middleware chain.
package server

import (
	"log/slog"
	"net/http"

	"github.com/hearthline/callbridge/pkg/bridge/config"
	"github.com/hearthline/callbridge/pkg/bridge/handlers"
	"github.com/hearthline/callbridge/pkg/bridge/mw"
)

// New builds the root handler: routes wrapped in RequestID, AccessLog and
// Recover. The media-stream route skips the access log so a long-lived call
// does not hold a log entry open for its whole duration.
func New(cfg config.Config, logger *slog.Logger, h *handlers.Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)
	mux.HandleFunc("GET /twiml", h.Twiml)
	mux.HandleFunc("POST /twiml", h.Twiml)
	mux.HandleFunc("GET /make-call", h.MakeCall)
	mux.HandleFunc("POST /make-call", h.MakeCall)
	mux.HandleFunc("GET /query", h.Query)
	mux.HandleFunc("POST /query", h.Query)

	logged := mw.RequestID(mw.AccessLog(logger, mw.Recover(logger, mux)))

	root := http.NewServeMux()
	root.HandleFunc("GET /media-stream", func(w http.ResponseWriter, r *http.Request) {
		mw.Recover(logger, http.HandlerFunc(h.MediaStream)).ServeHTTP(w, r)
	})
	root.Handle("/", logged)
	return root
}

// NewHTTPServer wraps the handler in an http.Server with the configured
// operational timeouts. Read timeouts stay unset because the media-stream
// WebSocket is long-lived.
func NewHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
