package realtime

import "testing"

func TestDecodeEventAudioDelta(t *testing.T) {
	frame := []byte(`{"type":"response.audio.delta","delta":"AAAA","item_id":"item_1"}`)
	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	delta, ok := event.(AudioDelta)
	if !ok {
		t.Fatalf("expected AudioDelta, got %T", event)
	}
	if delta.Delta != "AAAA" || delta.ItemID != "item_1" {
		t.Fatalf("unexpected delta event: %+v", delta)
	}
}

func TestDecodeEventAudioDeltaWithoutPayload(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"response.audio.delta"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	if _, ok := event.(UnknownEvent); !ok {
		t.Fatalf("expected payload-less delta to decode as UnknownEvent, got %T", event)
	}
}

func TestDecodeEventTranscriptionCompleted(t *testing.T) {
	frame := []byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"  hello there  "}`)
	event, err := DecodeEvent(frame)
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	tc, ok := event.(TranscriptionCompleted)
	if !ok {
		t.Fatalf("expected TranscriptionCompleted, got %T", event)
	}
	if tc.Transcript != "hello there" {
		t.Fatalf("expected trimmed transcript, got %q", tc.Transcript)
	}
}

func TestDecodeEventSpeechMarkers(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"input_audio_buffer.speech_started"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	if _, ok := event.(SpeechStarted); !ok {
		t.Fatalf("expected SpeechStarted, got %T", event)
	}

	event, err = DecodeEvent([]byte(`{"type":"input_audio_buffer.speech_stopped","transcript":"hi"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	stopped, ok := event.(SpeechStopped)
	if !ok {
		t.Fatalf("expected SpeechStopped, got %T", event)
	}
	if stopped.Transcript != "hi" {
		t.Fatalf("unexpected transcript %q", stopped.Transcript)
	}
}

func TestDecodeEventResponseDone(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"response.done"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	if _, ok := event.(ResponseDone); !ok {
		t.Fatalf("expected ResponseDone, got %T", event)
	}
}

func TestDecodeEventUnknownType(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"type":"rate_limits.updated"}`))
	if err != nil {
		t.Fatalf("DecodeEvent returned error: %v", err)
	}
	unknown, ok := event.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", event)
	}
	if unknown.Type != "rate_limits.updated" {
		t.Fatalf("unexpected type %q", unknown.Type)
	}
}

func TestDecodeEventMissingType(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing type")
	}
}

func TestDecodeEventInvalidJSON(t *testing.T) {
	if _, err := DecodeEvent([]byte(`{bad`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
