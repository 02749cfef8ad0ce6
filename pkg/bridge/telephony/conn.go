package telephony

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps the accepted carrier WebSocket. Reads happen from a single
// loop; writes may come from either relay loop, so they are serialized with
// a mutex.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	closeMu sync.Mutex
	closed  bool
}

// NewConn wraps an already-upgraded WebSocket connection.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// ReadEvent blocks until the next inbound frame and decodes it.
func (c *Conn) ReadEvent() (Event, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeInbound(data)
}

// SendMedia forwards one base64 audio payload to the carrier.
func (c *Conn) SendMedia(streamSID, payload string) error {
	frame, err := EncodeMedia(streamSID, payload)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// SendMark sends the playback mark paired with the preceding audio chunk.
func (c *Conn) SendMark(streamSID, name string) error {
	frame, err := EncodeMark(streamSID, name)
	if err != nil {
		return err
	}
	return c.write(frame)
}

// SendClear instructs the carrier to stop playing buffered audio.
func (c *Conn) SendClear(streamSID string) error {
	frame, err := EncodeClear(streamSID)
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Conn) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Close shuts the WebSocket down. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ws.Close()
}
