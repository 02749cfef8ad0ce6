package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hearthline/callbridge/pkg/bridge/realtime"
	"github.com/hearthline/callbridge/pkg/bridge/retrieval"
	"github.com/hearthline/callbridge/pkg/bridge/telephony"
)

// TelephonyLeg is the carrier side of the relay.
type TelephonyLeg interface {
	ReadEvent() (telephony.Event, error)
	SendMedia(streamSID, payload string) error
	SendMark(streamSID, name string) error
	SendClear(streamSID string) error
	Close() error
}

// ModelLeg is the realtime model side of the relay.
type ModelLeg interface {
	ReadEvent() (realtime.Event, error)
	AppendAudio(payload string) error
	CreateAssistantMessage(text string) error
	CreateResponse() error
	Truncate(itemID string, audioEndMS int64) error
	IsOpen() bool
	Close() error
}

// Retriever answers normalized caller queries with ranked matches.
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]retrieval.Match, error)
}

// Coordinator runs the two relay loops of one call and finalizes the session
// exactly once when either leg ends.
type Coordinator struct {
	sess      *Session
	phone     TelephonyLeg
	model     ModelLeg
	retriever Retriever
	finalizer *Finalizer
	topK      int
	log       *slog.Logger

	finalizeOnce sync.Once
}

// NewCoordinator wires a coordinator for one call. retriever may be nil, in
// which case transcriptions are recorded but no injection happens.
func NewCoordinator(sess *Session, phone TelephonyLeg, model ModelLeg, retriever Retriever, finalizer *Finalizer, topK int, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if topK <= 0 {
		topK = 5
	}
	return &Coordinator{
		sess:      sess,
		phone:     phone,
		model:     model,
		retriever: retriever,
		finalizer: finalizer,
		topK:      topK,
		log:       log.With("session_id", sess.ID),
	}
}

// Run relays until a leg fails, the stream stops, or ctx is canceled. Both
// legs are closed and the session finalized before it returns.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- c.readTelephony(ctx)
	}()
	go func() {
		defer wg.Done()
		errCh <- c.readModel(ctx)
	}()

	var first error
	select {
	case first = <-errCh:
	case <-ctx.Done():
		first = ctx.Err()
	}

	// Unblock the other loop: cancel plus hard-close both sockets.
	cancel()
	_ = c.phone.Close()
	_ = c.model.Close()
	wg.Wait()

	c.finalizeOnce.Do(func() {
		c.finalizer.Finalize(context.Background(), c.sess, c.model)
	})

	if isExpectedClose(first) {
		return nil
	}
	return first
}

func (c *Coordinator) readTelephony(ctx context.Context) error {
	for {
		event, err := c.phone.ReadEvent()
		if err != nil {
			var decodeErr *telephony.DecodeError
			if errors.As(err, &decodeErr) {
				c.log.Warn("dropping malformed carrier frame", "error", decodeErr.Error())
				continue
			}
			return err
		}

		switch e := event.(type) {
		case telephony.StartEvent:
			c.sess.StartStream(e.StreamSID)
			c.log.Info("media stream started", "stream_sid", e.StreamSID)
		case telephony.MediaEvent:
			c.sess.ObserveMedia(e.TimestampMS)
			if !c.model.IsOpen() {
				continue
			}
			if err := c.model.AppendAudio(e.Payload); err != nil {
				return err
			}
		case telephony.MarkEvent:
			c.sess.PopMark()
		case telephony.StopEvent:
			c.log.Info("media stream stopped")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Coordinator) readModel(ctx context.Context) error {
	for {
		event, err := c.model.ReadEvent()
		if err != nil {
			var decodeErr *realtime.DecodeError
			if errors.As(err, &decodeErr) {
				c.log.Warn("dropping malformed model frame", "error", decodeErr.Error())
				continue
			}
			return err
		}

		switch e := event.(type) {
		case realtime.AudioDelta:
			if err := c.forwardAudio(e); err != nil {
				return err
			}
		case realtime.TranscriptionCompleted:
			if e.Transcript != "" {
				c.sess.AppendUserUtterance(e.Transcript)
				c.log.Info("caller utterance transcribed", "transcript", e.Transcript)
				c.inject(ctx, e.Transcript)
			}
		case realtime.SpeechStopped:
			if e.Transcript != "" {
				c.sess.AppendUserUtterance(e.Transcript)
			}
		case realtime.SpeechStarted:
			c.handleInterrupt()
		case realtime.ResponseDone:
			c.log.Info("assistant response completed")
		case realtime.UnknownEvent:
			c.log.Debug("ignoring model event", "type", e.Type)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// forwardAudio relays one assistant audio chunk to the caller and queues the
// playback mark that tells us how much of the response was actually heard.
func (c *Coordinator) forwardAudio(delta realtime.AudioDelta) error {
	streamSID := c.sess.StreamSID()
	if streamSID == "" {
		// Audio before the media stream starts has nowhere to go.
		return nil
	}
	if err := c.phone.SendMedia(streamSID, delta.Delta); err != nil {
		return err
	}
	c.sess.NoteAudioDelta(delta.ItemID)

	token := uuid.NewString()
	if err := c.phone.SendMark(streamSID, token); err != nil {
		return err
	}
	c.sess.PushMark(token)
	return nil
}

func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, context.Canceled)
}
