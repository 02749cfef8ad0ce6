package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthline/callbridge/pkg/bridge/relay"
	"github.com/hearthline/callbridge/pkg/bridge/telephony"
)

var upgrader = websocket.Upgrader{
	// The carrier connects from its own infrastructure; there is no browser
	// origin to check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// MediaStream upgrades the carrier connection and runs the relay for one
// call. It blocks until the call ends.
func (h *Handlers) MediaStream(w http.ResponseWriter, r *http.Request) {
	if h.Life.IsDraining() {
		http.Error(w, "draining", http.StatusServiceUnavailable)
		return
	}

	callID := strings.TrimSpace(r.Header.Get("X-Twilio-Call-Sid"))
	if callID == "" {
		callID = fmt.Sprintf("session_%d", time.Now().Unix())
	}
	log := h.logger().With("session_id", callID)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("media stream upgrade failed", "error", err)
		return
	}
	phone := telephony.NewConn(ws, h.Cfg.WSWriteTimeout)

	model, err := h.DialModel(r.Context())
	if err != nil {
		log.Error("model leg dial failed", "error", err)
		_ = phone.Close()
		return
	}

	sess, created := h.Registry.GetOrCreate(callID, "", "")
	if created {
		log.Info("media stream for unannounced call")
	}

	finalizer := &relay.Finalizer{Registry: h.Registry, Store: h.Store, Log: h.Log}
	coord := relay.NewCoordinator(sess, phone, model, h.Retriever, finalizer, h.Cfg.RetrievalTopK, h.Log)

	// Detach from the request context: the relay outlives HTTP semantics
	// and is canceled via the registry during shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Registry.SetCancel(callID, cancel)

	if err := coord.Run(ctx); err != nil {
		log.Warn("relay ended with error", "error", err)
	}
}
