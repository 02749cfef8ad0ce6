package relay

import (
	"context"
	"strings"
)

const (
	noResultsFallback = "No results found for your query."
	errorFallback     = "Sorry, there was an error processing your request."
	resultsPrefix     = "Here is what I found: "
)

// NormalizeQuery turns a transcribed utterance into the retrieval query:
// lower-cased, the literal "query" keyword removed, surrounding whitespace
// trimmed.
func NormalizeQuery(utterance string) string {
	query := strings.ToLower(utterance)
	query = strings.ReplaceAll(query, "query", "")
	return strings.TrimSpace(query)
}

// inject looks the utterance up in the knowledge base and appends the result
// as an assistant message followed by a response request. Retrieval failure
// degrades to a fixed fallback utterance; nothing here ever ends the call.
//
// The lookup runs synchronously on the model reader loop, which preserves
// event ordering at the cost of stalling inbound model events for the
// duration of the search.
func (c *Coordinator) inject(ctx context.Context, utterance string) {
	if c.retriever == nil {
		return
	}
	query := NormalizeQuery(utterance)
	if query == "" {
		return
	}

	text := ""
	matches, err := c.retriever.Search(ctx, query, c.topK)
	switch {
	case err != nil:
		c.log.Warn("retrieval failed", "query", query, "error", err)
		text = errorFallback
	case len(matches) == 0:
		c.log.Info("retrieval found nothing", "query", query)
		text = noResultsFallback
	default:
		snippets := make([]string, 0, len(matches))
		for _, m := range matches {
			if m.Text != "" {
				snippets = append(snippets, m.Text)
			}
		}
		if len(snippets) == 0 {
			text = noResultsFallback
		} else {
			text = resultsPrefix + strings.Join(snippets, ", ")
		}
		c.log.Info("retrieval injected", "query", query, "matches", len(matches))
	}

	if err := c.model.CreateAssistantMessage(text); err != nil {
		c.log.Warn("inject item failed", "error", err)
		return
	}
	if err := c.model.CreateResponse(); err != nil {
		c.log.Warn("inject response request failed", "error", err)
	}
}
