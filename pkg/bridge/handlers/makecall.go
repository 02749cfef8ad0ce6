package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hearthline/callbridge/pkg/bridge/mw"
)

// MakeCall originates an outbound call to the given number and registers the
// session so the media stream can pick up the caller's details.
func (h *Handlers) MakeCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	to := strings.TrimSpace(r.FormValue("to"))
	name := strings.TrimSpace(r.FormValue("name"))
	if to == "" {
		mw.WriteError(ctx, w, http.StatusBadRequest, "invalid_request", "to is required", "to")
		return
	}
	if !strings.HasPrefix(to, "+") {
		mw.WriteError(ctx, w, http.StatusBadRequest, "invalid_request", "to must be in E.164 format", "to")
		return
	}

	if h.Twilio == nil || !h.Twilio.Configured() {
		mw.WriteError(ctx, w, http.StatusServiceUnavailable, "not_configured", "call origination is not configured", "")
		return
	}

	host := h.Cfg.PublicHostname
	if host == "" {
		host = r.Host
	}
	twimlURL := fmt.Sprintf("https://%s/twiml", host)

	callSID, err := h.Twilio.CreateCall(ctx, to, twimlURL)
	if err != nil {
		h.logger().Error("call origination failed", "to", to, "error", err)
		mw.WriteError(ctx, w, http.StatusBadGateway, "upstream_error", "call origination failed", "")
		return
	}

	h.Registry.GetOrCreate(callSID, name, to)
	h.logger().Info("call originated", "call_sid", callSID, "to", to)

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Call initiated",
		"call_sid": callSID,
	})
}
