package realtime

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const defaultRealtimeURL = "wss://api.openai.com/v1/realtime"

// SessionOptions configures the model session established right after dial.
type SessionOptions struct {
	Voice        string
	Instructions string
	Greeting     string
	Temperature  float64
}

// Channel is a connected realtime model session. Sends may come from both
// relay loops, so writes are serialized with a mutex; reads happen from a
// single loop.
type Channel struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
	open    atomic.Bool
}

// Dial connects to the realtime endpoint and returns an open channel. The
// caller still needs to Initialize the session before relaying audio.
func Dial(ctx context.Context, baseURL, model, apiKey string, writeTimeout time.Duration) (*Channel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("realtime api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultRealtimeURL
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	endpoint := baseURL
	if strings.TrimSpace(model) != "" {
		endpoint = fmt.Sprintf("%s?model=%s", strings.TrimRight(baseURL, "/"), model)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	c := &Channel{ws: ws, writeTimeout: writeTimeout}
	c.open.Store(true)
	return c, nil
}

// Initialize configures the session for phone audio and, when a greeting is
// set, seeds the conversation so the assistant speaks first.
func (c *Channel) Initialize(opts SessionOptions) error {
	if opts.Temperature == 0 {
		opts.Temperature = 0.8
	}
	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"turn_detection":      map[string]any{"type": "server_vad"},
			"input_audio_format":  "g711_ulaw",
			"output_audio_format": "g711_ulaw",
			"voice":               opts.Voice,
			"instructions":        opts.Instructions,
			"modalities":          []string{"text", "audio"},
			"temperature":         opts.Temperature,
		},
	}
	if err := c.writeJSON(update); err != nil {
		return fmt.Errorf("send session update: %w", err)
	}
	if strings.TrimSpace(opts.Greeting) == "" {
		return nil
	}
	item := map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": opts.Greeting},
			},
		},
	}
	if err := c.writeJSON(item); err != nil {
		return fmt.Errorf("send greeting item: %w", err)
	}
	if err := c.CreateResponse(); err != nil {
		return fmt.Errorf("request greeting response: %w", err)
	}
	return nil
}

// ReadEvent blocks until the next inbound model frame and decodes it.
func (c *Channel) ReadEvent() (Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		c.open.Store(false)
		return nil, err
	}
	return DecodeEvent(data)
}

// AppendAudio forwards one base64 caller-audio payload to the model's input
// buffer.
func (c *Channel) AppendAudio(payload string) error {
	return c.writeJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": payload,
	})
}

// CreateAssistantMessage appends an assistant-authored text item to the
// conversation. Used to inject retrieval results.
func (c *Channel) CreateAssistantMessage(text string) error {
	return c.writeJSON(map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	})
}

// CreateResponse asks the model to generate its next response.
func (c *Channel) CreateResponse() error {
	return c.writeJSON(map[string]any{"type": "response.create"})
}

// Truncate cuts the in-flight assistant item at audioEndMS so the model's
// conversation state matches what the caller actually heard.
func (c *Channel) Truncate(itemID string, audioEndMS int64) error {
	if strings.TrimSpace(itemID) == "" {
		return fmt.Errorf("item id is required")
	}
	return c.writeJSON(map[string]any{
		"type":          "conversation.item.truncate",
		"item_id":       itemID,
		"content_index": 0,
		"audio_end_ms":  audioEndMS,
	})
}

// IsOpen reports whether the channel is still usable for sends.
func (c *Channel) IsOpen() bool {
	return c != nil && c.open.Load()
}

// Close shuts the model connection down. Safe to call more than once.
func (c *Channel) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	return c.ws.Close()
}

func (c *Channel) writeJSON(v any) error {
	if !c.IsOpen() {
		return fmt.Errorf("realtime channel is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}
