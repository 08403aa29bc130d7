package session

import (
	"testing"
	"time"

	"rfidd/internal/driver"
)

func TestTuningAfterSilence(t *testing.T) {
	h := scanningHarness(t)
	mark := h.drv.mark()
	h.clock.Advance(4400 * time.Millisecond)
	if n := len(h.pub.Named(EventTuningApplied)); n != 0 {
		t.Fatalf("tuned before the quiet window: %d", n)
	}
	h.clock.Advance(100 * time.Millisecond)
	ev := h.pub.Named(EventTuningApplied)
	if len(ev) != 1 {
		t.Fatalf("expected one tuning step, got %d", len(ev))
	}
	if ev[0].Fields["index"] != 1 {
		t.Fatalf("first step should move to index 1: %+v", ev[0].Fields)
	}
	want := []string{"power 33", "trigger false", "antenna 0", "region 0 0 6", "start 0"}
	got := h.drv.callsSince(mark)
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
	if st := h.status(t); st.TuningIndex != 1 || st.Candidate.Power != 33 {
		t.Fatalf("status not updated: %+v", st)
	}

	// the new configuration gets a full quiet window before the next step
	h.clock.Advance(4400 * time.Millisecond)
	if n := len(h.pub.Named(EventTuningApplied)); n != 1 {
		t.Fatalf("stepped again too soon: %d", n)
	}
	h.clock.Advance(100 * time.Millisecond)
	if n := len(h.pub.Named(EventTuningApplied)); n != 2 {
		t.Fatalf("expected a second step, got %d", n)
	}
}

func TestTuningWraps(t *testing.T) {
	h := scanningHarness(t)
	h.s.cursor = 31
	mark := h.drv.mark()
	h.clock.Advance(4500 * time.Millisecond)
	if h.s.cursor != 0 {
		t.Fatalf("cursor = %d, want 0", h.s.cursor)
	}
	got := h.drv.callsSince(mark)
	if len(got) < 4 || got[0] != "power 30" || got[2] != "antenna 0" || got[3] != "region 0 0 6" {
		t.Fatalf("unexpected calls after wrap: %v", got)
	}
}

func TestTagsSuppressTuning(t *testing.T) {
	h := scanningHarness(t)
	for i := 0; i < 10; i++ {
		h.clock.Advance(time.Second)
		h.drv.emitTag(driver.RawTag{EPC: "E2001122AABB"})
	}
	if n := len(h.pub.Named(EventTuningApplied)); n != 0 {
		t.Fatalf("tuned while tags were arriving: %d", n)
	}
	if n := len(h.pub.Named(EventTagRead)); n != 10 {
		t.Fatalf("expected 10 tag reads, got %d", n)
	}
}

func TestUnnormalizedTagStillCountsAsPresence(t *testing.T) {
	h := scanningHarness(t)
	for i := 0; i < 6; i++ {
		h.clock.Advance(time.Second)
		h.drv.emitTag(driver.RawTag{TID: "180"})
	}
	if n := len(h.pub.Named(EventTuningApplied)); n != 0 {
		t.Fatalf("tuned despite reader activity: %d", n)
	}
	if n := len(h.pub.Named(EventTagRead)); n != 0 {
		t.Fatalf("empty events should be dropped, got %d", n)
	}
}

func TestNoTuningWhileIdleOrPending(t *testing.T) {
	h := connectedHarness(t)
	h.clock.Advance(10 * time.Second)
	if n := len(h.pub.Named(EventTuningApplied)); n != 0 {
		t.Fatalf("idle session tuned")
	}

	h = scanningHarness(t)
	var c capture
	h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
	h.clock.Advance(3900 * time.Millisecond)
	if n := len(h.pub.Named(EventTuningApplied)); n != 0 {
		t.Fatalf("tuned while an operation was pending")
	}
}

func TestStaleTuningTickIsIgnored(t *testing.T) {
	h := scanningHarness(t)
	h.s.lastTagSeen = h.clock.Now().Add(-time.Minute)
	stale := h.s.tuneGen - 1
	mark := h.drv.mark()
	h.s.tuneTick(stale)
	if got := h.drv.callsSince(mark); len(got) != 0 {
		t.Fatalf("stale tick reached the driver: %v", got)
	}
	if h.s.cursor != 0 {
		t.Fatalf("stale tick moved the cursor")
	}
}

func TestTriggerPressRestartsScanning(t *testing.T) {
	h := connectedHarness(t)
	h.s.TriggerPressed()
	if st := h.status(t); !st.Scanning || len(h.drv.starts) != 1 {
		t.Fatalf("trigger press should start scanning: %+v starts=%v", st, h.drv.starts)
	}
	h.s.TriggerPressed()
	if len(h.drv.starts) != 1 || len(h.pub.Named(EventScanningChanged)) != 1 {
		t.Fatalf("second press should be a no-op")
	}
	h.s.TriggerReleased()
	h.s.TriggerReleased()
	if st := h.status(t); st.Scanning || len(h.pub.Named(EventScanningChanged)) != 2 {
		t.Fatalf("release should stop scanning once: %+v", st)
	}
}
