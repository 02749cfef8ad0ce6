// Package telephony implements the media-stream leg of the relay: decoding
// inbound stream events from the carrier WebSocket and encoding the outbound
// media, mark and clear frames the carrier expects.
package telephony

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeError describes an inbound frame the carrier sent that does not
// match the documented stream protocol.
type DecodeError struct {
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badFrame(message, param string) *DecodeError {
	return &DecodeError{Message: message, Param: param}
}

// Event is an inbound stream event decoded from the carrier WebSocket.
type Event interface{ telephonyEvent() }

// StartEvent announces a new media stream taking over the call.
type StartEvent struct {
	StreamSID string
	CallSID   string
}

// MediaEvent carries one base64 audio payload plus the stream-relative
// timestamp in milliseconds.
type MediaEvent struct {
	Payload     string
	TimestampMS int64
}

// MarkEvent is the playback acknowledgment echoed by the carrier once a
// previously sent audio chunk has finished playing.
type MarkEvent struct {
	Name string
}

// StopEvent announces the end of the media stream.
type StopEvent struct{}

func (StartEvent) telephonyEvent() {}
func (MediaEvent) telephonyEvent() {}
func (MarkEvent) telephonyEvent()  {}
func (StopEvent) telephonyEvent()  {}

type inboundEnvelope struct {
	Event string `json:"event"`
	Start *struct {
		StreamSID string `json:"streamSid"`
		CallSID   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media *struct {
		Payload   string `json:"payload"`
		Timestamp int64  `json:"timestamp,string"`
	} `json:"media,omitempty"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
	StreamSID string `json:"streamSid,omitempty"`
}

// DecodeInbound parses one carrier frame into its typed event.
func DecodeInbound(data []byte) (Event, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	switch strings.TrimSpace(envelope.Event) {
	case "start":
		if envelope.Start == nil || strings.TrimSpace(envelope.Start.StreamSID) == "" {
			return nil, badFrame("start.streamSid is required", "start.streamSid")
		}
		return StartEvent{
			StreamSID: envelope.Start.StreamSID,
			CallSID:   envelope.Start.CallSID,
		}, nil
	case "media":
		if envelope.Media == nil || envelope.Media.Payload == "" {
			return nil, badFrame("media.payload is required", "media.payload")
		}
		if envelope.Media.Timestamp < 0 {
			return nil, badFrame("media.timestamp must be >= 0", "media.timestamp")
		}
		return MediaEvent{
			Payload:     envelope.Media.Payload,
			TimestampMS: envelope.Media.Timestamp,
		}, nil
	case "mark":
		name := ""
		if envelope.Mark != nil {
			name = envelope.Mark.Name
		}
		return MarkEvent{Name: name}, nil
	case "stop":
		return StopEvent{}, nil
	case "":
		return nil, badFrame("missing event", "event")
	default:
		return nil, badFrame("unsupported event type", "event")
	}
}

type outboundMedia struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

type outboundMark struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
	Mark      struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"streamSid"`
}

// EncodeMedia builds the outbound audio frame for the carrier.
func EncodeMedia(streamSID, payload string) ([]byte, error) {
	frame := outboundMedia{Event: "media", StreamSID: streamSID}
	frame.Media.Payload = payload
	return json.Marshal(frame)
}

// EncodeMark builds the playback-progress mark frame paired with an audio
// chunk. The carrier echoes the mark back once the chunk has played.
func EncodeMark(streamSID, name string) ([]byte, error) {
	frame := outboundMark{Event: "mark", StreamSID: streamSID}
	frame.Mark.Name = name
	return json.Marshal(frame)
}

// EncodeClear builds the frame instructing the carrier to drop any buffered,
// not-yet-played audio for the stream.
func EncodeClear(streamSID string) ([]byte, error) {
	return json.Marshal(outboundClear{Event: "clear", StreamSID: streamSID})
}
