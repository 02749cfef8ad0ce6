package relay

// handleInterrupt runs the barge-in sequence when the caller starts speaking
// over an in-flight assistant response: truncate the model's conversation
// item at the amount of audio actually played, tell the carrier to drop its
// buffered audio, and reset playback state for the next response.
//
// The played amount is the caller media clock minus the media clock at the
// first audio chunk of the response. Marks outstanding means audio may still
// be playing; an empty mark queue or an unpinned response start makes the
// whole sequence a no-op.
func (c *Coordinator) handleInterrupt() {
	state := c.sess.takeInterrupt()
	if !state.active {
		return
	}

	c.log.Info("caller barge-in", "item_id", state.itemID, "audio_end_ms", state.elapsedMS)

	if state.itemID != "" {
		if err := c.model.Truncate(state.itemID, state.elapsedMS); err != nil {
			c.log.Warn("truncate failed", "error", err)
		}
	}
	if state.streamSID != "" {
		if err := c.phone.SendClear(state.streamSID); err != nil {
			c.log.Warn("clear failed", "error", err)
		}
	}
}
