package sessions

import (
	"context"
	"testing"
	"time"
)

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry()
	sess, created := r.GetOrCreate("CA1", "Asha", "+15550001111")
	if !created {
		t.Fatalf("expected first GetOrCreate to create")
	}
	if sess.CallerName != "Asha" || sess.CallerNumber != "+15550001111" {
		t.Fatalf("unexpected session fields: %+v", sess)
	}

	again, created := r.GetOrCreate("CA1", "Other", "+15559998888")
	if created {
		t.Fatalf("expected second GetOrCreate to reuse")
	}
	if again != sess {
		t.Fatalf("expected the same session instance")
	}
	if again.CallerName != "Asha" {
		t.Fatalf("existing session fields should be preserved, got %q", again.CallerName)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestRemoveIsExactlyOnce(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("CA1", "", "")

	if !r.Remove("CA1") {
		t.Fatalf("expected first Remove to report removal")
	}
	if r.Remove("CA1") {
		t.Fatalf("expected second Remove to be a no-op")
	}
	if r.Count() != 0 {
		t.Fatalf("expected count 0, got %d", r.Count())
	}

	// The wait group must be balanced: Wait returns immediately.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !r.Wait(ctx) {
		t.Fatalf("expected Wait to return true after removal")
	}
}

func TestWaitTimesOutWithLiveSession(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("CA1", "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if r.Wait(ctx) {
		t.Fatalf("expected Wait to time out while a session is live")
	}

	r.Remove("CA1")
	if !r.Wait(context.Background()) {
		t.Fatalf("expected Wait to succeed after removal")
	}
}

func TestCancelAll(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("CA1", "", "")
	r.GetOrCreate("CA2", "", "")

	fired := make(map[string]bool)
	r.SetCancel("CA1", func() { fired["CA1"] = true })
	r.SetCancel("CA2", func() { fired["CA2"] = true })
	// CA3 never registered; SetCancel on it must be harmless.
	r.SetCancel("CA3", func() { fired["CA3"] = true })

	if got := r.CancelAll(); got != 2 {
		t.Fatalf("expected 2 cancels, got %d", got)
	}
	if !fired["CA1"] || !fired["CA2"] || fired["CA3"] {
		t.Fatalf("unexpected cancel set: %v", fired)
	}
}
