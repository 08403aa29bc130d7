package session

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"rfidd/internal/driver"
)

func TestSecondAccessRequestIsBusy(t *testing.T) {
	h := connectedHarness(t)
	var first, second, third, fourth capture
	h.s.ReadMemoryAsync(readReq("ABCD"), first.reply)
	h.s.ReadMemoryAsync(readReq("ABCD"), second.reply)
	h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Length: 1, Data: "1234"}, third.reply)
	h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: "1234"}, fourth.reply)

	if len(first.calls) != 0 {
		t.Fatalf("first request should still be pending")
	}
	for i, c := range []*capture{&second, &third, &fourth} {
		r := c.only(t)
		if !IsBusy(r.err) {
			t.Fatalf("request %d: expected busy, got %+v", i+2, r)
		}
	}
	if len(h.drv.reads) != 1 || len(h.drv.writes) != 0 {
		t.Fatalf("busy requests must not reach the driver: reads=%d writes=%d", len(h.drv.reads), len(h.drv.writes))
	}
	h.drv.emitOperationTag("AA BB")
	if r := first.only(t); !r.out.OK || r.out.Data != "AABB" {
		t.Fatalf("first read = %+v", r)
	}
	// the slot is free again
	var fifth capture
	h.s.ReadMemoryAsync(readReq("ABCD"), fifth.reply)
	if len(fifth.calls) != 0 || h.status(t).Pending == nil {
		t.Fatalf("new request should be admitted after completion")
	}
}

func TestBusyWinsOverMalformedInput(t *testing.T) {
	h := connectedHarness(t)
	var first, second capture
	h.s.ReadMemoryAsync(readReq("ABCD"), first.reply)
	h.s.ReadMemoryAsync(readReq("not hex"), second.reply)
	if r := second.only(t); !IsBusy(r.err) {
		t.Fatalf("expected busy, got %+v", r)
	}
	var third capture
	h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: -1, Length: 300, Data: "12"}, third.reply)
	if r := third.only(t); !IsBusy(r.err) {
		t.Fatalf("out-of-range request while busy: expected busy, got %+v", r)
	}
}

func TestOutOfRangeMemoryArgsAreMalformed(t *testing.T) {
	h := scanningHarness(t)
	cases := []func(Reply){
		func(r Reply) { h.s.ReadMemoryAsync(ReadRequest{EPC: "ABCD", Bank: 1, Start: 2, Length: 256}, r) },
		func(r Reply) { h.s.ReadMemoryAsync(ReadRequest{EPC: "ABCD", Bank: -1, Start: 2, Length: 6}, r) },
		func(r Reply) { h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Start: 300, Length: 1, Data: "12"}, r) },
	}
	for i, issue := range cases {
		var c capture
		issue(c.reply)
		if r := c.only(t); r.err != nil || r.out != (Outcome{}) {
			t.Fatalf("case %d: expected neutral outcome, got %+v", i, r)
		}
		if st := h.status(t); st.Pending != nil || !st.Scanning {
			t.Fatalf("case %d: op not cleaned up: %+v", i, st)
		}
	}
	if len(h.drv.reads) != 0 || len(h.drv.writes) != 0 {
		t.Fatalf("out-of-range requests must not reach the driver")
	}
}

func TestOversizedEpcIsMalformed(t *testing.T) {
	h := connectedHarness(t)
	var c capture
	// 512 bytes is 256 words, one more than a write command can carry
	h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: strings.Repeat("AB", 512)}, c.reply)
	if r := c.only(t); r.err != nil || r.out != (Outcome{}) {
		t.Fatalf("expected neutral outcome, got %+v", r)
	}
	if len(h.drv.writes) != 0 || h.status(t).Pending != nil {
		t.Fatalf("oversized EPC reached the driver: %d writes", len(h.drv.writes))
	}

	var largest capture
	h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: strings.Repeat("CD", 510)}, largest.reply)
	if len(largest.calls) != 0 || len(h.drv.writes) != 1 {
		t.Fatalf("255-word EPC should be written: replies=%d writes=%d", len(largest.calls), len(h.drv.writes))
	}
	if w := h.drv.writes[0]; w.length != 255 || len(w.data) != 510 {
		t.Fatalf("write length=%d data=%d bytes", w.length, len(w.data))
	}
}

func TestMalformedInputResolvesNeutral(t *testing.T) {
	h := scanningHarness(t)
	cases := []func(Reply){
		func(r Reply) { h.s.ReadMemoryAsync(readReq("XYZ"), r) },
		func(r Reply) {
			h.s.ReadMemoryAsync(ReadRequest{EPC: "ABCD", Bank: 1, Start: 2, Length: 1, Password: "pw"}, r)
		},
		func(r Reply) { h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Length: 1, Data: "zz"}, r) },
		func(r Reply) { h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: "12", Password: "g"}, r) },
	}
	for i, issue := range cases {
		var c capture
		issue(c.reply)
		if r := c.only(t); r.err != nil || r.out != (Outcome{}) {
			t.Fatalf("case %d: expected neutral outcome, got %+v", i, r)
		}
		if st := h.status(t); st.Pending != nil || !st.Scanning {
			t.Fatalf("case %d: op not cleaned up: %+v", i, st)
		}
	}
	if len(h.drv.reads) != 0 || len(h.drv.writes) != 0 {
		t.Fatalf("malformed requests must not reach the driver")
	}
}

func TestReadRejectedByDriver(t *testing.T) {
	h := connectedHarness(t)
	h.drv.readStatus = -2
	var c capture
	h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
	if r := c.only(t); r.err != nil || r.out != (Outcome{}) {
		t.Fatalf("expected neutral outcome, got %+v", r)
	}
	if h.drv.cancels != 1 {
		t.Fatalf("filter should be cleared on completion")
	}
}

func TestWriteArming(t *testing.T) {
	t.Run("rejected issue is never armed", func(t *testing.T) {
		h := connectedHarness(t)
		h.drv.writeStatus = -1
		var c capture
		h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Length: 1, Data: "1234"}, c.reply)
		if r := c.only(t); r.err != nil || r.out.OK {
			t.Fatalf("expected false, got %+v", r)
		}
		h.drv.emitStatus(0x03, driver.StatusWriteComplete)
		if len(c.calls) != 1 {
			t.Fatalf("late status resolved a finished write")
		}
		if h.status(t).Pending != nil {
			t.Fatalf("no operation should be pending")
		}
	})

	t.Run("armed write waits for the completion code", func(t *testing.T) {
		h := connectedHarness(t)
		var c capture
		h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Length: 1, Data: "1234"}, c.reply)
		if st := h.status(t); st.Pending == nil || !st.Pending.WriteArmed {
			t.Fatalf("write should be pending and armed: %+v", st.Pending)
		}
		h.drv.emitStatus(0x03, 0x05)
		h.drv.emitOperationTag("FFFF")
		if len(c.calls) != 0 {
			t.Fatalf("unrelated events resolved the write")
		}
		h.drv.emitStatus(0x03, driver.StatusWriteComplete)
		if r := c.only(t); r.err != nil || !r.out.OK {
			t.Fatalf("expected true, got %+v", r)
		}
	})

	t.Run("status while reading is ignored", func(t *testing.T) {
		h := connectedHarness(t)
		var c capture
		h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
		h.drv.emitStatus(0x03, driver.StatusWriteComplete)
		if len(c.calls) != 0 {
			t.Fatalf("status event resolved a read")
		}
	})
}

func TestWriteDataShaping(t *testing.T) {
	h := connectedHarness(t)
	var c capture
	h.s.WriteMemoryAsync(WriteRequest{EPC: "ab cd", Bank: 3, Start: 0, Length: 2, Data: "AB", Password: "11223344"}, c.reply)
	h.drv.emitStatus(0x03, driver.StatusWriteComplete)
	w := h.drv.writes[0]
	if w.bank != 3 || w.start != 0 || w.length != 2 || !bytes.Equal(w.data, []byte{0xAB, 0, 0, 0}) {
		t.Fatalf("unexpected write %+v", w)
	}
	if !bytes.Equal(w.password, []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Fatalf("unexpected password %X", w.password)
	}

	h.s.WriteMemoryAsync(WriteRequest{EPC: "ABCD", Bank: 3, Length: 1, Data: "0102030405"}, c.reply)
	h.drv.emitStatus(0x03, driver.StatusWriteComplete)
	if w := h.drv.writes[1]; !bytes.Equal(w.data, []byte{1, 2}) || !bytes.Equal(w.password, []byte{0, 0, 0, 0}) {
		t.Fatalf("data should be truncated and password zero-filled: %+v", w)
	}

	h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: "E2001"}, c.reply)
	h.drv.emitStatus(0x03, driver.StatusWriteComplete)
	w = h.drv.writes[2]
	if w.bank != 1 || w.start != 2 || w.length != 2 || !bytes.Equal(w.data, []byte{0xE2, 0x00, 0x10, 0x00}) {
		t.Fatalf("unexpected epc write %+v", w)
	}

	h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: ""}, c.reply)
	h.drv.emitStatus(0x03, driver.StatusWriteComplete)
	if w := h.drv.writes[3]; w.length != 1 || !bytes.Equal(w.data, []byte{0, 0}) {
		t.Fatalf("empty epc should write one zero word: %+v", w)
	}
	if len(c.calls) != 4 {
		t.Fatalf("expected 4 replies, got %d", len(c.calls))
	}
}

func TestStateRestoredAfterOperation(t *testing.T) {
	paths := map[string]func(h *harness){
		"success": func(h *harness) { h.drv.emitOperationTag("12 34") },
		"timeout": func(h *harness) { h.clock.Advance(4 * time.Second) },
	}
	for name, resolve := range paths {
		name, resolve := name, resolve
		t.Run(name, func(t *testing.T) {
			h := scanningHarness(t)
			var c capture
			h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
			if h.s.scanning {
				t.Fatalf("inventory must be paused while the op is pending")
			}
			resolve(h)
			c.only(t)
			st := h.status(t)
			if !st.Scanning || st.State != StateScanning || st.Pending != nil {
				t.Fatalf("scanning not restored: %+v", st)
			}
			h.clock.Advance(400 * time.Millisecond)
			if n := len(h.drv.starts); n != 2 || h.drv.starts[1] != 0 {
				t.Fatalf("inventory not restarted at state 0: %v", h.drv.starts)
			}
		})
	}

	t.Run("rejected", func(t *testing.T) {
		h := scanningHarness(t)
		h.drv.writeStatus = -1
		var c capture
		h.s.WriteEpcAsync(EpcWriteRequest{TargetEPC: "ABCD", NewEPC: "1234"}, c.reply)
		if r := c.only(t); r.out.OK {
			t.Fatalf("rejected write reported success")
		}
		if !h.status(t).Scanning {
			t.Fatalf("scanning not restored after rejection")
		}
		h.clock.Advance(400 * time.Millisecond)
		if len(h.drv.starts) != 2 {
			t.Fatalf("inventory not restarted: %v", h.drv.starts)
		}
	})

	t.Run("idle stays idle", func(t *testing.T) {
		h := connectedHarness(t)
		var c capture
		h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
		h.clock.Advance(4 * time.Second)
		if r := c.only(t); r.out != (Outcome{}) || r.err != nil {
			t.Fatalf("timeout should resolve neutral, got %+v", r)
		}
		h.clock.Advance(2 * time.Second)
		if h.status(t).Scanning || len(h.drv.starts) != 0 {
			t.Fatalf("idle session must not start scanning")
		}
	})
}

func TestTimeoutAfterCompletionIsNoop(t *testing.T) {
	h := connectedHarness(t)
	var c capture
	h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
	h.drv.emitOperationTag("")
	if r := c.only(t); !r.out.OK || r.out.Data != "" {
		t.Fatalf("read without data should resolve empty, got %+v", r)
	}
	h.clock.Advance(5 * time.Second)
	if len(c.calls) != 1 {
		t.Fatalf("timeout delivered a second reply")
	}
}

func TestHostRequestsDuringOperation(t *testing.T) {
	h := connectedHarness(t)
	var c capture
	h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
	ok, err := h.s.StartInventory(testContext(t))
	if !ok || err != nil {
		t.Fatalf("start during op: ok=%v err=%v", ok, err)
	}
	if len(h.drv.starts) != 0 {
		t.Fatalf("inventory started while an op is pending")
	}
	if st := h.status(t); !st.Scanning || st.Pending == nil || !st.Pending.WasScanning {
		t.Fatalf("start should be deferred to the op end: %+v", st)
	}
	h.drv.emitOperationTag("01")
	if len(h.drv.starts) != 1 {
		t.Fatalf("scanning should resume after the op, starts=%v", h.drv.starts)
	}

	h.s.ReadMemoryAsync(readReq("ABCD"), c.reply)
	h.s.TriggerReleased()
	h.drv.emitOperationTag("02")
	h.clock.Advance(time.Second)
	if h.status(t).Scanning || len(h.drv.starts) != 1 {
		t.Fatalf("release during op should keep scanning off, starts=%v", h.drv.starts)
	}
}

func TestScenarioReadWhileScanning(t *testing.T) {
	h := scanningHarness(t)
	h.clock.Advance(2 * time.Second)
	h.drv.emitRoundEnd(0)
	mark := h.drv.mark()

	var c capture
	h.s.ReadMemoryAsync(ReadRequest{EPC: "ABCD", Bank: 1, Start: 2, Length: 6, Password: "00000000"}, c.reply)
	if h.s.scanning {
		t.Fatalf("scanning should pause")
	}
	if !bytes.Equal(h.drv.match, []byte{0xAB, 0xCD}) {
		t.Fatalf("filter not set: %X", h.drv.match)
	}
	if r := h.drv.reads[0]; r.bank != 1 || r.start != 2 || r.length != 6 || !bytes.Equal(r.password, []byte{0, 0, 0, 0}) {
		t.Fatalf("unexpected read %+v", r)
	}
	// the round-end restart was cancelled with the pause
	h.clock.Advance(time.Second)
	if got := h.drv.callsSince(mark); len(got) != 2 {
		t.Fatalf("nothing but filter+read should be issued while pending, got %v", got)
	}

	h.drv.emitOperationTag("12 34 56 78")
	if r := c.only(t); !r.out.OK || r.out.Data != "12345678" || r.err != nil {
		t.Fatalf("unexpected read outcome %+v", r)
	}
	if h.drv.cancels != 1 {
		t.Fatalf("filter not cleared")
	}
	if !h.s.scanning {
		t.Fatalf("scanning should resume")
	}
	if got := h.drv.starts[len(h.drv.starts)-1]; got != 0 || len(h.drv.starts) != 2 {
		t.Fatalf("inventory should restart immediately at state 0, starts=%v", h.drv.starts)
	}
	// tuning is rescheduled after the grace window, not before
	h.s.lastTagSeen = h.clock.Now().Add(-10 * time.Second)
	h.clock.Advance(1400 * time.Millisecond)
	if len(h.pub.Named(EventTuningApplied)) != 0 {
		t.Fatalf("tuning ran inside the grace window")
	}
	h.clock.Advance(200 * time.Millisecond)
	if len(h.pub.Named(EventTuningApplied)) != 1 {
		t.Fatalf("tuning should run once the grace window elapses")
	}
}
