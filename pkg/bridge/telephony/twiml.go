package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlResponse struct {
	XMLName xml.Name      `xml:"Response"`
	Say     string        `xml:"Say,omitempty"`
	Pause   *twimlPause   `xml:"Pause,omitempty"`
	Connect *twimlConnect `xml:"Connect,omitempty"`
}

type twimlPause struct {
	Length int `xml:"length,attr"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// ConnectStreamTwiML renders the call-handling document that greets the
// caller and hands the call's audio to the media-stream WebSocket at the
// given host.
func ConnectStreamTwiML(host string) ([]byte, error) {
	doc := twimlResponse{
		Say:   "Please wait while we connect your call",
		Pause: &twimlPause{Length: 1},
		Connect: &twimlConnect{
			Stream: twimlStream{URL: fmt.Sprintf("wss://%s/media-stream", host)},
		},
	}
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
