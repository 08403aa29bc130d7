package session

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"rfidd/internal/common/hexutil"
	"rfidd/internal/driver"
)

// begin admits a new access operation. It answers reply itself and returns
// nil when disconnected (neutral outcome) or busy (ErrBusy).
func (s *Session) begin(kind OpKind, reply Reply) *pendingOp {
	if s.link != linkUp {
		accessOperationsTotal.WithLabelValues(string(kind), resultDisconnected).Inc()
		reply(Outcome{}, nil)
		return nil
	}
	if s.pending != nil {
		accessOperationsTotal.WithLabelValues(string(kind), resultBusy).Inc()
		s.log.Debug().Str("event", "operation_busy").Str("kind", string(kind)).Str("pending", s.pending.id.String()).Msg("access rejected")
		reply(Outcome{}, ErrBusy)
		return nil
	}
	s.writeArmed = false
	op := &pendingOp{
		id:          uuid.New(),
		kind:        kind,
		reply:       reply,
		wasScanning: s.scanning,
		startedAt:   s.clock.Now(),
	}
	// paused, not stopped: the host is not told scanning changed
	s.scanning = false
	boolGauge(scanningGauge, false)
	s.cancelTuning()
	s.cancelInventoryTimers()
	s.pending = op
	stopTimer(s.opTimer)
	s.opTimer = s.after(s.timings.OpTimeout, func() { s.onOpTimeout(op) })
	s.log.Info().Str("event", EventOperationBegin).Str("op", op.id.String()).Str("kind", string(kind)).
		Bool("was_scanning", op.wasScanning).Msg("access operation started")
	s.publish(EventOperationBegin, map[string]any{"id": op.id.String(), "kind": string(kind)})
	return op
}

// finish is the single completion path. It is a no-op unless op is still
// the pending operation.
func (s *Session) finish(op *pendingOp, out Outcome, result string) {
	if op == nil || s.pending != op {
		return
	}
	s.pending = nil
	s.writeArmed = false
	stopTimer(s.opTimer)
	s.opTimer = nil
	if err := s.drv.CancelAccessEpcMatch(s.handle); err != nil {
		s.log.Warn().Err(err).Str("event", "cancel_match").Msg("clearing access filter failed")
	}
	if op.wasScanning {
		s.scanning = true
		boolGauge(scanningGauge, true)
		s.startInventory(stateFresh)
		s.scheduleTuning(s.timings.ResumeGrace)
	}
	s.recordOp(op, result)
	op.reply(out, nil)
}

func (s *Session) recordOp(op *pendingOp, result string) {
	elapsed := s.clock.Now().Sub(op.startedAt)
	accessOperationsTotal.WithLabelValues(string(op.kind), result).Inc()
	s.log.Info().Str("event", EventOperationEnd).Str("op", op.id.String()).Str("kind", string(op.kind)).
		Str("result", result).Dur("elapsed", elapsed).Msg("access operation finished")
	s.publish(EventOperationEnd, map[string]any{
		"id":         op.id.String(),
		"kind":       string(op.kind),
		"result":     result,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

func (s *Session) onOpTimeout(op *pendingOp) {
	if s.pending != op {
		return
	}
	s.finish(op, Outcome{}, resultTimeout)
}

// setMatch points the reader at one tag. Failure is logged, not fatal.
func (s *Session) setMatch(epc []byte) {
	if st := s.drv.SetAccessEpcMatch(s.handle, epc); st < 0 {
		s.log.Warn().Str("event", "set_match").Str("epc", hexutil.Encode(epc)).Int("status", st).Msg("access filter rejected")
	}
}

// ReadMemoryAsync starts a tag memory read. reply receives the stripped
// payload, the neutral outcome on failure, or ErrBusy.
func (s *Session) ReadMemoryAsync(req ReadRequest, reply Reply) {
	s.exec.Post(func() {
		op := s.begin(OpRead, reply)
		if op == nil {
			return
		}
		epc, okE := hexutil.Decode(req.EPC)
		pwd, okP := hexutil.Password(req.Password)
		bank, start, length, okA := memoryArgs(req.Bank, req.Start, req.Length)
		if !okE || !okP || !okA {
			s.finish(op, Outcome{}, resultMalformed)
			return
		}
		s.setMatch(epc)
		st := s.drv.ReadTag(s.handle, bank, start, length, pwd)
		s.log.Debug().Str("event", "read_tag").Str("op", op.id.String()).Int("status", st).Msg("read issued")
		if st < 0 {
			s.finish(op, Outcome{}, resultRejected)
		}
	})
}

// WriteMemoryAsync starts a tag memory write. Data is zero-padded or
// truncated to Length words.
func (s *Session) WriteMemoryAsync(req WriteRequest, reply Reply) {
	s.exec.Post(func() {
		op := s.begin(OpWrite, reply)
		if op == nil {
			return
		}
		epc, okE := hexutil.Decode(req.EPC)
		raw, okD := hexutil.Decode(req.Data)
		pwd, okP := hexutil.Password(req.Password)
		bank, start, length, okA := memoryArgs(req.Bank, req.Start, req.Length)
		if !okE || !okD || !okP || !okA {
			s.finish(op, Outcome{}, resultMalformed)
			return
		}
		s.issueWrite(op, epc, pwd, bank, start, length, hexutil.Fit(raw, int(length)*2))
	})
}

// WriteEpcAsync rewrites a tag's EPC. The new EPC is written from word 2 of
// the EPC bank, zero-padded to whole words.
func (s *Session) WriteEpcAsync(req EpcWriteRequest, reply Reply) {
	s.exec.Post(func() {
		op := s.begin(OpWrite, reply)
		if op == nil {
			return
		}
		epc, okE := hexutil.Decode(req.TargetEPC)
		raw, okD := hexutil.Decode(req.NewEPC)
		pwd, okP := hexutil.Password(req.Password)
		if !okE || !okD || !okP {
			s.finish(op, Outcome{}, resultMalformed)
			return
		}
		words := (len(raw) + 1) / 2
		if words < 1 {
			words = 1
		}
		if words > maxWords {
			s.finish(op, Outcome{}, resultMalformed)
			return
		}
		s.issueWrite(op, epc, pwd, DefaultBank, epcStartWord, byte(words), hexutil.Fit(raw, words*2))
	})
}

// memoryArgs narrows the host's memory coordinates to command bytes.
func memoryArgs(bank, start, length int) (byte, byte, byte, bool) {
	for _, v := range []int{bank, start, length} {
		if v < 0 || v > maxWords {
			return 0, 0, 0, false
		}
	}
	return byte(bank), byte(start), byte(length), true
}

// issueWrite sends the write and arms completion only if the reader
// accepted the command.
func (s *Session) issueWrite(op *pendingOp, epc, pwd []byte, bank, start, length byte, data []byte) {
	s.setMatch(epc)
	st := s.drv.WriteTag(s.handle, pwd, bank, start, length, data)
	s.log.Debug().Str("event", "write_tag").Str("op", op.id.String()).Int("status", st).Msg("write issued")
	if st < 0 {
		s.finish(op, Outcome{}, resultRejected)
		return
	}
	s.writeArmed = true
}

// onOperationTag resolves a pending read with the reported data.
func (s *Session) onOperationTag(ev driver.OperationTag) {
	op := s.pending
	if s.link != linkUp || op == nil || op.kind != OpRead {
		s.log.Debug().Str("event", "stray_operation_tag").Str("epc", ev.EPC).Msg("operation tag ignored")
		return
	}
	s.finish(op, Outcome{Data: strings.Join(strings.Fields(ev.Data), ""), OK: true}, resultOK)
}

// onCommandStatus resolves an armed write on the write-complete status.
func (s *Session) onCommandStatus(cmd, status byte) {
	op := s.pending
	if s.link != linkUp || op == nil || op.kind != OpWrite || !s.writeArmed {
		s.log.Debug().Str("event", "stray_status").Uint8("cmd", cmd).Uint8("status", status).Msg("command status ignored")
		return
	}
	if status != driver.StatusWriteComplete {
		s.log.Info().Str("event", "write_status").Uint8("cmd", cmd).Uint8("status", status).Msg("write still pending")
		return
	}
	s.finish(op, Outcome{OK: true}, resultOK)
}

type result struct {
	out Outcome
	err error
}

// wait blocks on an async access request.
func wait(ctx context.Context, start func(Reply)) (Outcome, error) {
	ch := make(chan result, 1)
	start(func(o Outcome, err error) { ch <- result{o, err} })
	select {
	case r := <-ch:
		return r.out, r.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// ReadMemory is the blocking form of ReadMemoryAsync.
func (s *Session) ReadMemory(ctx context.Context, req ReadRequest) (Outcome, error) {
	return wait(ctx, func(r Reply) { s.ReadMemoryAsync(req, r) })
}

// WriteMemory is the blocking form of WriteMemoryAsync.
func (s *Session) WriteMemory(ctx context.Context, req WriteRequest) (Outcome, error) {
	return wait(ctx, func(r Reply) { s.WriteMemoryAsync(req, r) })
}

// WriteEpc is the blocking form of WriteEpcAsync.
func (s *Session) WriteEpc(ctx context.Context, req EpcWriteRequest) (Outcome, error) {
	return wait(ctx, func(r Reply) { s.WriteEpcAsync(req, r) })
}
