package handlers

import (
	"net/http"
	"strings"

	"github.com/hearthline/callbridge/pkg/bridge/mw"
	"github.com/hearthline/callbridge/pkg/bridge/relay"
)

type queryMatch struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Text  string  `json:"text"`
}

// Query is a direct retrieval passthrough for debugging the knowledge base
// without placing a call.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := strings.TrimSpace(r.FormValue("q"))
	if raw == "" {
		mw.WriteError(ctx, w, http.StatusBadRequest, "invalid_request", "q is required", "q")
		return
	}
	if h.Retriever == nil {
		mw.WriteError(ctx, w, http.StatusServiceUnavailable, "not_configured", "retrieval is not configured", "")
		return
	}

	query := relay.NormalizeQuery(raw)
	matches, err := h.Retriever.Search(ctx, query, h.Cfg.RetrievalTopK)
	if err != nil {
		h.logger().Error("retrieval query failed", "query", query, "error", err)
		mw.WriteError(ctx, w, http.StatusBadGateway, "upstream_error", "retrieval failed", "")
		return
	}

	out := make([]queryMatch, 0, len(matches))
	for _, m := range matches {
		out = append(out, queryMatch{ID: m.ID, Score: m.Score, Text: m.Text})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"matches": out,
	})
}
