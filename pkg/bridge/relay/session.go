// Package relay coordinates one live call: the carrier media stream on one
// side, the realtime model session on the other, with retrieval injection,
// barge-in interruption and end-of-call persistence in between.
package relay

import (
	"strings"
	"sync"
)

// Session is the shared mutable state of one live call. Both relay loops
// touch it, so every mutation goes through the mutex.
type Session struct {
	ID           string
	CallerName   string
	CallerNumber string

	mu sync.Mutex

	streamSID         string
	transcript        []string
	latestMediaTS     int64
	responseStartTS   int64
	responseStartSet  bool
	lastAssistantItem string
	markQueue         []string
}

// NewSession creates the state record for one call.
func NewSession(id, callerName, callerNumber string) *Session {
	return &Session{ID: id, CallerName: callerName, CallerNumber: callerNumber}
}

// StartStream records the carrier stream id and resets per-stream timing
// state. The carrier may restart the stream mid-call. The mark queue is left
// alone; it only shrinks via acknowledgments or a barge-in clear.
func (s *Session) StartStream(streamSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamSID = streamSID
	s.latestMediaTS = 0
	s.responseStartSet = false
	s.responseStartTS = 0
	s.lastAssistantItem = ""
}

// StreamSID returns the current carrier stream id, empty before start.
func (s *Session) StreamSID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamSID
}

// ObserveMedia advances the caller-side media clock.
func (s *Session) ObserveMedia(timestampMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestMediaTS = timestampMS
}

// LatestMediaTS returns the most recent caller media timestamp.
func (s *Session) LatestMediaTS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestMediaTS
}

// NoteAudioDelta records bookkeeping for one outbound assistant audio chunk:
// the response start timestamp is pinned to the media clock on the first
// chunk of a response, and the owning item id is remembered for truncation.
func (s *Session) NoteAudioDelta(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.responseStartSet {
		s.responseStartTS = s.latestMediaTS
		s.responseStartSet = true
	}
	if itemID != "" {
		s.lastAssistantItem = itemID
	}
}

// PushMark appends one playback mark token awaiting carrier acknowledgment.
func (s *Session) PushMark(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markQueue = append(s.markQueue, name)
}

// PopMark removes the oldest outstanding mark. A pop against an empty queue
// is a no-op; the carrier may echo marks that were cleared by a barge-in.
func (s *Session) PopMark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.markQueue) > 0 {
		s.markQueue = s.markQueue[1:]
	}
}

// MarkCount returns the number of outstanding playback marks.
func (s *Session) MarkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.markQueue)
}

// interruptState is the snapshot the interruption controller acts on.
type interruptState struct {
	streamSID string
	itemID    string
	elapsedMS int64
	active    bool
}

// takeInterrupt atomically decides whether a barge-in applies and, if so,
// captures the truncation offset and resets the playback state. No-op when
// nothing is playing (empty mark queue) or no response start is pinned.
func (s *Session) takeInterrupt() interruptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.markQueue) == 0 || !s.responseStartSet {
		return interruptState{}
	}
	state := interruptState{
		streamSID: s.streamSID,
		itemID:    s.lastAssistantItem,
		elapsedMS: s.latestMediaTS - s.responseStartTS,
		active:    true,
	}
	s.markQueue = nil
	s.lastAssistantItem = ""
	s.responseStartSet = false
	s.responseStartTS = 0
	return state
}

// AppendUserUtterance records one caller line in the running transcript.
func (s *Session) AppendUserUtterance(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, "User: "+text)
}

// Transcript returns the accumulated transcript lines.
func (s *Session) Transcript() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TranscriptText joins the transcript for persistence.
func (s *Session) TranscriptText() string {
	return strings.Join(s.Transcript(), "\n")
}

// snapshot for tests and interrupt verification.
func (s *Session) responseStart() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseStartTS, s.responseStartSet
}

func (s *Session) assistantItem() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAssistantItem
}
