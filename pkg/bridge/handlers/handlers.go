// Package handlers implements the HTTP surface: health probes, the TwiML
// webhook, call origination, the retrieval debug endpoint and the
// media-stream WebSocket.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hearthline/callbridge/pkg/bridge/config"
	"github.com/hearthline/callbridge/pkg/bridge/lifecycle"
	"github.com/hearthline/callbridge/pkg/bridge/relay"
	"github.com/hearthline/callbridge/pkg/bridge/sessions"
	"github.com/hearthline/callbridge/pkg/bridge/store"
	"github.com/hearthline/callbridge/pkg/bridge/telephony"
)

// CallOriginator places outbound calls. *telephony.RestClient implements it.
type CallOriginator interface {
	Configured() bool
	CreateCall(ctx context.Context, toNumber, twimlURL string) (string, error)
}

// ModelDialer opens and initializes a model leg for one call.
type ModelDialer func(ctx context.Context) (relay.ModelLeg, error)

type Handlers struct {
	Cfg       config.Config
	Log       *slog.Logger
	Life      *lifecycle.Lifecycle
	Registry  *sessions.Registry
	Retriever relay.Retriever
	Store     store.Store
	Twilio    CallOriginator
	DialModel ModelDialer
}

func (h *Handlers) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Index is a plain liveness banner, useful for tunnel checks.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Call bridge is running",
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports 503 once shutdown draining starts so load balancers stop
// routing new calls here while live ones finish.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Life.IsDraining() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":        "draining",
			"live_sessions": h.Registry.Count(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Twiml answers the carrier webhook with the document that connects the
// call's audio to the media-stream WebSocket.
func (h *Handlers) Twiml(w http.ResponseWriter, r *http.Request) {
	host := h.Cfg.PublicHostname
	if host == "" {
		host = r.Host
	}
	body, err := telephony.ConnectStreamTwiML(host)
	if err != nil {
		h.logger().Error("twiml render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
