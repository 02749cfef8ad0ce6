package relay

import (
	"context"
	"log/slog"

	"github.com/hearthline/callbridge/pkg/bridge/store"
)

// SessionRemover drops a finished session from the live registry. Remove
// reports false when the session was already gone.
type SessionRemover interface {
	Remove(callID string) bool
}

// Finalizer runs the end-of-call sequence: close the model leg, deregister
// the session, persist the call record. Safe to invoke more than once per
// session; the second invocation is a no-op.
type Finalizer struct {
	Registry SessionRemover
	Store    store.Store
	Log      *slog.Logger
}

// Placeholder values until transcript extraction is implemented. The loan
// officer reviews the stored transcript either way.
const (
	extractedInterested = "Yes"
	extractedLoanTerm   = "15 years"
	extractedLocation   = "New Delhi"
	extractedOtherLoan  = "No"
)

func (f *Finalizer) Finalize(ctx context.Context, sess *Session, model ModelLeg) {
	log := f.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", sess.ID)

	if model != nil && model.IsOpen() {
		if err := model.Close(); err != nil {
			log.Warn("closing model leg failed", "error", err)
		}
	}

	if f.Registry != nil && !f.Registry.Remove(sess.ID) {
		// Already finalized by an earlier invocation.
		return
	}

	log.Info("call finished", "caller_number", sess.CallerNumber, "transcript_lines", len(sess.Transcript()))

	if f.Store == nil {
		return
	}
	rec := store.Record{
		Name:                 sess.CallerName,
		ContactNumber:        sess.CallerNumber,
		InterestedInHomeLoan: extractedInterested,
		TimePeriodOfLoan:     extractedLoanTerm,
		LocationOfHome:       extractedLocation,
		AnyOtherHomeLoan:     extractedOtherLoan,
		Transcript:           sess.TranscriptText(),
	}
	if err := f.Store.SaveCallRecord(ctx, rec); err != nil {
		log.Error("saving call record failed", "error", err)
	}
}
