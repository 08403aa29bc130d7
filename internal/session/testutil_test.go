package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rfidd/internal/driver"
)

// testContext stands in for t.Context (Go 1.24+): a context canceled when
// the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// inlineExec runs posted closures on the caller's goroutine. Posts made
// while a closure runs are queued behind it, like the real dispatcher.
type inlineExec struct {
	running bool
	queue   []func()
}

func (e *inlineExec) Post(f func()) {
	e.queue = append(e.queue, f)
	if e.running {
		return
	}
	e.running = true
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		next()
	}
	e.running = false
}

// manualClock fires timers only from Advance, in deadline order, moving
// now to each deadline so timers armed by callbacks fire too.
type manualClock struct {
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	when    time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{when: c.now.Add(d), seq: c.seq, f: f}
	c.seq++
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	target := c.now.Add(d)
	for {
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.when.After(target) {
				continue
			}
			if next == nil || t.when.Before(next.when) || (t.when.Equal(next.when) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.when
		next.fired = true
		next.f()
	}
	c.now = target
}

// active counts timers that may still fire.
func (c *manualClock) active() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type writeCall struct {
	bank, start, length byte
	data                []byte
	password            []byte
}

type readCall struct {
	bank, start, length byte
	password            []byte
}

// fakeDriver records every command in order and delivers events
// synchronously to registered listeners.
type fakeDriver struct {
	mu sync.Mutex

	connectErr  error
	connects    int
	connected   bool
	disconnects int
	handle      driver.Handle

	startStatus int
	readStatus  int
	writeStatus int

	calls      []string
	starts     []byte
	match      []byte
	cancels    int
	reads      []readCall
	writes     []writeCall
	registers  int
	unregister int
	listeners  driver.Listeners
}

func newFakeDriver() *fakeDriver { return &fakeDriver{handle: 7} }

func (f *fakeDriver) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeDriver) Connect(context.Context) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeDriver) IsConnected() bool { return f.connected }

func (f *fakeDriver) Disconnect() error {
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeDriver) Handle() driver.Handle { return f.handle }

func (f *fakeDriver) SetOutputPower(_ driver.Handle, p byte) int {
	f.record("power %d", p)
	return 0
}

func (f *fakeDriver) SetTrigger(on bool) int {
	f.record("trigger %t", on)
	return 0
}

func (f *fakeDriver) SetWorkAntenna(_ driver.Handle, a byte) int {
	f.record("antenna %d", a)
	return 0
}

func (f *fakeDriver) SetFrequencyRegion(_ driver.Handle, r, s, e byte) int {
	f.record("region %d %d %d", r, s, e)
	return 0
}

func (f *fakeDriver) StartInventory(_ driver.Handle, session, state, target byte) int {
	f.record("start %d", state)
	f.starts = append(f.starts, state)
	return f.startStatus
}

func (f *fakeDriver) SetAccessEpcMatch(_ driver.Handle, epc []byte) int {
	f.record("match %X", epc)
	f.match = append([]byte(nil), epc...)
	return 0
}

func (f *fakeDriver) CancelAccessEpcMatch(driver.Handle) error {
	f.record("cancel_match")
	f.cancels++
	f.match = nil
	return nil
}

func (f *fakeDriver) ReadTag(_ driver.Handle, bank, start, length byte, pwd []byte) int {
	f.record("read %d %d %d", bank, start, length)
	f.reads = append(f.reads, readCall{bank, start, length, pwd})
	return f.readStatus
}

func (f *fakeDriver) WriteTag(_ driver.Handle, pwd []byte, bank, start, length byte, data []byte) int {
	f.record("write %d %d %d %X", bank, start, length, data)
	f.writes = append(f.writes, writeCall{bank, start, length, data, pwd})
	return f.writeStatus
}

func (f *fakeDriver) RegisterListener(l driver.Listener) {
	f.registers++
	f.listeners.Add(l)
}

func (f *fakeDriver) UnregisterListener(l driver.Listener) {
	f.unregister++
	f.listeners.Remove(l)
}

func (f *fakeDriver) emitTag(t driver.RawTag) {
	f.listeners.Each(func(l driver.Listener) { l.OnInventoryTag(t) })
}

func (f *fakeDriver) emitRoundEnd(tags int) {
	f.listeners.Each(func(l driver.Listener) { l.OnInventoryEnd(driver.RoundEnd{TagCount: tags}) })
}

func (f *fakeDriver) emitOperationTag(data string) {
	f.listeners.Each(func(l driver.Listener) { l.OnOperationTag(driver.OperationTag{Data: data}) })
}

func (f *fakeDriver) emitStatus(cmd, status byte) {
	f.listeners.Each(func(l driver.Listener) { l.OnCommandStatus(cmd, status) })
}

func (f *fakeDriver) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeDriver) callsSince(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls[i:]...)
}

func (f *fakeDriver) mark() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// gatedDriver holds each Connect until the test answers it on the gate with
// the same index. It is safe to use from the dispatcher and test goroutines.
type gatedDriver struct {
	*fakeDriver
	entered chan int
	gates   []chan error

	mu       sync.Mutex
	attempts int
	released atomic.Int32
}

func newGatedDriver(attempts int) *gatedDriver {
	g := &gatedDriver{fakeDriver: newFakeDriver(), entered: make(chan int, attempts)}
	for i := 0; i < attempts; i++ {
		g.gates = append(g.gates, make(chan error, 1))
	}
	return g
}

func (g *gatedDriver) Connect(context.Context) error {
	g.mu.Lock()
	i := g.attempts
	g.attempts++
	g.mu.Unlock()
	g.entered <- i
	return <-g.gates[i]
}

func (g *gatedDriver) Disconnect() error {
	g.released.Add(1)
	return nil
}

// awaitAttempt waits until Connect attempt i is blocked on its gate.
func (g *gatedDriver) awaitAttempt(t *testing.T, i int) {
	t.Helper()
	select {
	case got := <-g.entered:
		if got != i {
			t.Fatalf("connect attempt %d entered, want %d", got, i)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("connect attempt %d never reached the driver", i)
	}
}

// runSession starts s on its built-in dispatcher and returns a stop func
// that cancels and waits for Run.
func runSession(t *testing.T, s *Session) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Run: %v", err)
			}
		})
	}
	t.Cleanup(stop)
	return stop
}

type harness struct {
	s     *Session
	drv   *fakeDriver
	clock *manualClock
	pub   *MemoryPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{drv: newFakeDriver(), clock: newManualClock(), pub: NewMemoryPublisher()}
	h.s = New(Config{Driver: h.drv, Clock: h.clock, Executor: &inlineExec{}, Publisher: h.pub})
	return h
}

// connected returns a harness whose session is connected.
func connectedHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	if err := h.s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return h
}

// scanningHarness returns a connected harness with inventory running.
func scanningHarness(t *testing.T) *harness {
	t.Helper()
	h := connectedHarness(t)
	ok, err := h.s.StartInventory(context.Background())
	if err != nil || !ok {
		t.Fatalf("start inventory: ok=%v err=%v", ok, err)
	}
	return h
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.s.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return st
}

// capture returns a Reply that records every delivery.
type capture struct {
	calls []result
}

func (c *capture) reply(o Outcome, err error) { c.calls = append(c.calls, result{o, err}) }

func (c *capture) only(t *testing.T) result {
	t.Helper()
	if len(c.calls) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(c.calls))
	}
	return c.calls[0]
}

func readReq(epc string) ReadRequest {
	return ReadRequest{EPC: epc, Bank: DefaultBank, Start: DefaultStartWord, Length: DefaultWordCount, Password: "00000000"}
}
