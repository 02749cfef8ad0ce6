// Package realtime implements the model leg of the relay: a WebSocket client
// for the speech-to-speech realtime API, with typed decoding of the inbound
// event stream and the small set of outbound control messages the bridge
// sends.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError marks an inbound frame that does not match the realtime
// protocol. Callers skip the frame; transport errors terminate the stream.
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string { return e.Message }

// Event is one inbound model event decoded from the realtime WebSocket.
type Event interface{ realtimeEvent() }

// AudioDelta carries one base64 chunk of synthesized assistant audio plus the
// id of the conversation item it belongs to.
type AudioDelta struct {
	Delta  string
	ItemID string
}

// TranscriptionCompleted reports the finished transcription of a caller
// utterance.
type TranscriptionCompleted struct {
	Transcript string
}

// SpeechStarted signals that the server-side voice activity detector heard
// the caller start speaking.
type SpeechStarted struct{}

// SpeechStopped signals the end of caller speech. Transcript is usually
// empty; when present it is an early partial transcription.
type SpeechStopped struct {
	Transcript string
}

// ResponseDone marks the completion of one assistant response.
type ResponseDone struct{}

// UnknownEvent wraps event types the bridge does not act on. They are logged
// and otherwise ignored.
type UnknownEvent struct {
	Type string
}

func (AudioDelta) realtimeEvent()             {}
func (TranscriptionCompleted) realtimeEvent() {}
func (SpeechStarted) realtimeEvent()          {}
func (SpeechStopped) realtimeEvent()          {}
func (ResponseDone) realtimeEvent()           {}
func (UnknownEvent) realtimeEvent()           {}

type inboundEnvelope struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// DecodeEvent parses one inbound realtime frame into its typed event.
func DecodeEvent(data []byte) (Event, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &DecodeError{Message: fmt.Sprintf("invalid realtime frame: %v", err)}
	}
	switch envelope.Type {
	case "response.audio.delta":
		if envelope.Delta == "" {
			return UnknownEvent{Type: envelope.Type}, nil
		}
		return AudioDelta{Delta: envelope.Delta, ItemID: envelope.ItemID}, nil
	case "conversation.item.input_audio_transcription.completed":
		return TranscriptionCompleted{Transcript: strings.TrimSpace(envelope.Transcript)}, nil
	case "input_audio_buffer.speech_started":
		return SpeechStarted{}, nil
	case "input_audio_buffer.speech_stopped":
		return SpeechStopped{Transcript: strings.TrimSpace(envelope.Transcript)}, nil
	case "response.done":
		return ResponseDone{}, nil
	case "":
		return nil, &DecodeError{Message: "realtime frame missing type"}
	default:
		return UnknownEvent{Type: envelope.Type}, nil
	}
}
