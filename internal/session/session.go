package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"rfidd/internal/driver"
	"rfidd/internal/tuning"
)

// Session owns one reader connection. Fields below the marker are confined
// to the execution queue.
type Session struct {
	drv      driver.Driver
	clock    Clock
	exec     Executor
	disp     *Dispatcher
	pub      EventPublisher
	log      zerolog.Logger
	timings  Timings
	baseline tuning.Candidate
	space    tuning.Space
	listener *listener

	// readable from any goroutine
	connected atomic.Bool

	// queue-confined state
	link     link
	handle   driver.Handle
	scanning bool

	pending    *pendingOp
	writeArmed bool
	opTimer    Timer

	lastStart    time.Time
	pendingRetry bool
	retryState   byte
	retryTimer   Timer
	roundTimer   Timer

	cursor           int
	lastTagSeen      time.Time
	lastConfigChange time.Time
	tuneTimer        Timer
	tuneGen          uint64
	connGen          uint64

	tagsRead        uint64
	tuningSteps     uint64
	inventoryStarts uint64
}

// Run drains the execution queue until ctx is cancelled, then releases the
// reader. It is only needed with the built-in dispatcher.
func (s *Session) Run(ctx context.Context) error {
	if s.disp == nil {
		return ErrNotRunning
	}
	err := s.disp.Run(ctx)
	// the queue is stopped; this goroutine is the only one left touching state
	if s.teardown() {
		if derr := s.drv.Disconnect(); derr != nil {
			s.log.Warn().Err(derr).Str("event", "disconnect").Msg("driver disconnect failed")
		}
	}
	return err
}

// Connected reports whether the reader is connected. Safe from any goroutine.
func (s *Session) Connected() bool { return s.connected.Load() }

// call runs fn on the queue and waits for it. It gives up with ErrStopped
// when the built-in dispatcher stops before running fn.
func (s *Session) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	s.exec.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped():
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// stopped is nil, and so never ready, for external executors.
func (s *Session) stopped() <-chan struct{} {
	if s.disp == nil {
		return nil
	}
	return s.disp.Done()
}

// after schedules fn on the queue after d.
func (s *Session) after(d time.Duration, fn func()) Timer {
	return s.clock.AfterFunc(d, func() { s.exec.Post(fn) })
}

func (s *Session) publish(name string, fields map[string]any) {
	s.pub.Publish(Event{Name: name, At: s.clock.Now(), Fields: fields})
}

func (s *Session) state() State {
	switch {
	case s.link == linkConnecting:
		return StateConnecting
	case s.link != linkUp:
		return StateDisconnected
	case s.hostScanning():
		return StateScanning
	default:
		return StateIdle
	}
}

// setScanning changes the host-visible scanning flag and notifies the host.
func (s *Session) setScanning(on bool) {
	if s.scanning == on {
		return
	}
	s.scanning = on
	boolGauge(scanningGauge, on)
	s.notifyScanning(on)
}

func (s *Session) notifyScanning(on bool) {
	s.log.Info().Str("event", EventScanningChanged).Bool("scanning", on).Msg("scanning state changed")
	s.publish(EventScanningChanged, map[string]any{"scanning": on})
}

// hostScanning is what the host believes: scanning, or paused by an access
// operation that will resume it.
func (s *Session) hostScanning() bool {
	return s.scanning || (s.pending != nil && s.pending.wasScanning)
}

// setResume changes whether the pending operation resumes scanning.
func (s *Session) setResume(on bool) {
	if s.pending.wasScanning == on {
		return
	}
	s.pending.wasScanning = on
	s.notifyScanning(on)
}

func (s *Session) setConnected(on bool) {
	s.connected.Store(on)
	boolGauge(connectedGauge, on)
	s.log.Info().Str("event", EventConnectionChanged).Bool("connected", on).Uint8("handle", uint8(s.handle)).Msg("connection changed")
	s.publish(EventConnectionChanged, map[string]any{"connected": on})
}

// Connect opens the reader. It is a no-op while connected or connecting.
// Driver I/O runs on the caller's goroutine, outside the queue.
func (s *Session) Connect(ctx context.Context) error {
	proceed := false
	var gen uint64
	if err := s.call(ctx, func() {
		if s.link != linkDown {
			return
		}
		s.link = linkConnecting
		s.connGen++
		gen = s.connGen
		proceed = true
	}); err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	err := s.drv.Connect(ctx)
	if werr := s.call(context.Background(), func() { s.onConnectResult(gen, err) }); werr != nil {
		if err == nil {
			// the queue is gone and Run has already released the session
			if derr := s.drv.Disconnect(); derr != nil {
				s.log.Warn().Err(derr).Str("event", "disconnect").Msg("driver disconnect failed")
			}
		}
		return werr
	}
	return err
}

// onConnectResult applies the driver's answer to connect attempt gen.
func (s *Session) onConnectResult(gen uint64, err error) {
	if gen != s.connGen {
		// a later attempt owns the driver now
		s.log.Debug().Str("event", "connect").Uint64("attempt", gen).Msg("stale connect result ignored")
		return
	}
	if s.link != linkConnecting {
		// disconnected while the driver was connecting
		if err == nil {
			s.log.Warn().Str("event", "connect").Msg("connect finished after disconnect; releasing reader")
			go s.drv.Disconnect()
		}
		return
	}
	if err != nil {
		s.link = linkDown
		s.log.Error().Err(err).Str("event", "connect").Msg("reader connect failed")
		s.setConnected(false)
		return
	}
	s.link = linkUp
	s.handle = s.drv.Handle()
	s.drv.UnregisterListener(s.listener)
	s.drv.RegisterListener(s.listener)
	s.setConnected(true)
	s.applyConfig(s.baseline, "baseline")
	s.scanning = false
	s.lastTagSeen = s.clock.Now()
	s.lastConfigChange = time.Time{}
	s.cursor = 0
	s.lastStart = time.Time{}
}

// teardown drops every timer, abandons the pending operation and marks the
// session disconnected. It reports whether the driver needs releasing.
func (s *Session) teardown() bool {
	if s.link == linkDown {
		return false
	}
	wasScanning := s.hostScanning()
	s.scanning = false
	boolGauge(scanningGauge, false)
	s.cancelTuning()
	s.cancelInventoryTimers()
	if op := s.pending; op != nil {
		s.pending = nil
		s.writeArmed = false
		stopTimer(s.opTimer)
		s.opTimer = nil
		s.recordOp(op, resultAbandoned)
		op.reply(Outcome{}, nil)
	}
	if wasScanning {
		s.notifyScanning(false)
	}
	s.drv.UnregisterListener(s.listener)
	s.link = linkDown
	s.setConnected(false)
	return true
}

// Disconnect stops scanning, abandons any pending operation (its caller
// gets the neutral outcome) and releases the driver.
func (s *Session) Disconnect(ctx context.Context) error {
	release := false
	if err := s.call(ctx, func() { release = s.teardown() }); err != nil {
		return err
	}
	if !release {
		return nil
	}
	return s.drv.Disconnect()
}

// StartInventory begins continuous scanning. It returns false when
// disconnected or when the reader rejects the start command.
func (s *Session) StartInventory(ctx context.Context) (bool, error) {
	ok := false
	err := s.call(ctx, func() { ok = s.startScanning() })
	return ok, err
}

func (s *Session) startScanning() bool {
	if s.link != linkUp {
		return false
	}
	if s.pending != nil {
		// resume after the operation instead of colliding with it
		s.setResume(true)
		return true
	}
	s.setScanning(true)
	s.lastTagSeen = s.clock.Now()
	s.scheduleTuning(s.timings.TuneCadence)
	st, _ := s.startInventory(stateFresh)
	return st >= 0
}

// StopInventory ends continuous scanning.
func (s *Session) StopInventory(ctx context.Context) (bool, error) {
	err := s.call(ctx, func() { s.stopScanning() })
	return err == nil, err
}

func (s *Session) stopScanning() {
	if s.pending != nil {
		s.setResume(false)
		return
	}
	s.setScanning(false)
	s.cancelTuning()
	s.cancelInventoryTimers()
}

// TriggerPressed starts scanning unless it is already running.
func (s *Session) TriggerPressed() {
	s.exec.Post(func() {
		if s.link != linkUp {
			return
		}
		if s.hostScanning() {
			return
		}
		s.startScanning()
	})
}

// TriggerReleased stops scanning unless it is not running.
func (s *Session) TriggerReleased() {
	s.exec.Post(func() {
		if !s.hostScanning() {
			return
		}
		s.stopScanning()
	})
}

// SetOutputPower forwards a power change to the reader. It returns false
// when disconnected, out of range or rejected.
func (s *Session) SetOutputPower(ctx context.Context, power int) (bool, error) {
	ok := false
	err := s.call(ctx, func() {
		if s.link != linkUp || power < 0 || power > 255 {
			return
		}
		st := s.drv.SetOutputPower(s.handle, byte(power))
		s.log.Info().Str("event", "set_power").Int("power", power).Int("status", st).Msg("output power")
		ok = st >= 0
	})
	return ok, err
}

// applyConfig pushes the four radio settings of c. Statuses are logged;
// a rejected setting does not abort the others.
func (s *Session) applyConfig(c tuning.Candidate, reason string) {
	retP := s.drv.SetOutputPower(s.handle, c.Power)
	retT := s.drv.SetTrigger(c.Trigger)
	retA := s.drv.SetWorkAntenna(s.handle, c.Antenna)
	retF := s.drv.SetFrequencyRegion(s.handle, c.Frequency.Region, c.Frequency.Start, c.Frequency.End)
	ev := s.log.Info()
	if retP < 0 || retT < 0 || retA < 0 || retF < 0 {
		ev = s.log.Warn()
	}
	ev.Str("event", "apply_config").Str("reason", reason).Stringer("config", c).
		Int("ret_power", retP).Int("ret_trigger", retT).Int("ret_antenna", retA).Int("ret_frequency", retF).
		Msg("radio configuration applied")
}
