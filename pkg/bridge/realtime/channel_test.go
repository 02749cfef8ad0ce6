package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeRealtimeServer upgrades the connection and forwards every frame it
// receives onto the returned channel.
func fakeRealtimeServer(t *testing.T, frames chan<- map[string]any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "realtime=v1" {
			t.Errorf("unexpected OpenAI-Beta header %q", got)
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		for {
			var frame map[string]any
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialTest(t *testing.T, server *httptest.Server) *Channel {
	t.Helper()
	c, err := Dial(context.Background(), wsURL(server), "test-model", "test-key", time.Second)
	if err != nil {
		t.Fatalf("Dial returned error: %v", err)
	}
	return c
}

func nextFrame(t *testing.T, frames <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return nil
	}
}

func TestInitializeSendsSessionUpdateAndGreeting(t *testing.T) {
	frames := make(chan map[string]any, 8)
	server := fakeRealtimeServer(t, frames)
	defer server.Close()

	c := dialTest(t, server)
	defer c.Close()

	err := c.Initialize(SessionOptions{
		Voice:        "alloy",
		Instructions: "help with loans",
		Greeting:     "Hello there!",
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	update := nextFrame(t, frames)
	if update["type"] != "session.update" {
		t.Fatalf("expected session.update first, got %v", update["type"])
	}
	session, ok := update["session"].(map[string]any)
	if !ok {
		t.Fatalf("session.update missing session object")
	}
	if session["input_audio_format"] != "g711_ulaw" || session["output_audio_format"] != "g711_ulaw" {
		t.Fatalf("unexpected audio formats: %v", session)
	}
	if session["voice"] != "alloy" || session["instructions"] != "help with loans" {
		t.Fatalf("unexpected session fields: %v", session)
	}
	if td, ok := session["turn_detection"].(map[string]any); !ok || td["type"] != "server_vad" {
		t.Fatalf("expected server_vad turn detection, got %v", session["turn_detection"])
	}

	item := nextFrame(t, frames)
	if item["type"] != "conversation.item.create" {
		t.Fatalf("expected conversation.item.create second, got %v", item["type"])
	}
	raw, _ := json.Marshal(item)
	if !strings.Contains(string(raw), "Hello there!") {
		t.Fatalf("greeting text missing from item: %s", raw)
	}
	if !strings.Contains(string(raw), `"role":"user"`) {
		t.Fatalf("greeting item should be user-authored: %s", raw)
	}

	create := nextFrame(t, frames)
	if create["type"] != "response.create" {
		t.Fatalf("expected response.create third, got %v", create["type"])
	}
}

func TestInitializeWithoutGreetingSkipsBootstrapItems(t *testing.T) {
	frames := make(chan map[string]any, 8)
	server := fakeRealtimeServer(t, frames)
	defer server.Close()

	c := dialTest(t, server)
	defer c.Close()

	if err := c.Initialize(SessionOptions{Voice: "alloy"}); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if frame := nextFrame(t, frames); frame["type"] != "session.update" {
		t.Fatalf("expected session.update, got %v", frame["type"])
	}
	select {
	case frame := <-frames:
		t.Fatalf("unexpected extra frame %v", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAppendAudioAndTruncate(t *testing.T) {
	frames := make(chan map[string]any, 8)
	server := fakeRealtimeServer(t, frames)
	defer server.Close()

	c := dialTest(t, server)
	defer c.Close()

	if err := c.AppendAudio("AAAA"); err != nil {
		t.Fatalf("AppendAudio returned error: %v", err)
	}
	frame := nextFrame(t, frames)
	if frame["type"] != "input_audio_buffer.append" || frame["audio"] != "AAAA" {
		t.Fatalf("unexpected append frame: %v", frame)
	}

	if err := c.Truncate("item_1", 250); err != nil {
		t.Fatalf("Truncate returned error: %v", err)
	}
	frame = nextFrame(t, frames)
	if frame["type"] != "conversation.item.truncate" {
		t.Fatalf("unexpected truncate frame: %v", frame)
	}
	if frame["item_id"] != "item_1" {
		t.Fatalf("unexpected item id: %v", frame["item_id"])
	}
	if frame["audio_end_ms"] != float64(250) {
		t.Fatalf("unexpected audio_end_ms: %v", frame["audio_end_ms"])
	}
	if frame["content_index"] != float64(0) {
		t.Fatalf("unexpected content_index: %v", frame["content_index"])
	}

	if err := c.Truncate("", 10); err == nil {
		t.Fatalf("expected error for empty item id")
	}
}

func TestCreateAssistantMessage(t *testing.T) {
	frames := make(chan map[string]any, 8)
	server := fakeRealtimeServer(t, frames)
	defer server.Close()

	c := dialTest(t, server)
	defer c.Close()

	if err := c.CreateAssistantMessage("retrieved facts"); err != nil {
		t.Fatalf("CreateAssistantMessage returned error: %v", err)
	}
	frame := nextFrame(t, frames)
	raw, _ := json.Marshal(frame)
	if frame["type"] != "conversation.item.create" {
		t.Fatalf("unexpected frame type: %v", frame["type"])
	}
	if !strings.Contains(string(raw), `"role":"assistant"`) {
		t.Fatalf("injected item should be assistant-authored: %s", raw)
	}
	if !strings.Contains(string(raw), "retrieved facts") {
		t.Fatalf("injected text missing: %s", raw)
	}
}

func TestCloseIsIdempotentAndStopsSends(t *testing.T) {
	frames := make(chan map[string]any, 8)
	server := fakeRealtimeServer(t, frames)
	defer server.Close()

	c := dialTest(t, server)
	if !c.IsOpen() {
		t.Fatalf("expected channel open after dial")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if c.IsOpen() {
		t.Fatalf("expected channel closed")
	}
	if err := c.AppendAudio("AAAA"); err == nil {
		t.Fatalf("expected error sending on closed channel")
	}
}

func TestDialRequiresAPIKey(t *testing.T) {
	if _, err := Dial(context.Background(), "", "model", "", time.Second); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}
