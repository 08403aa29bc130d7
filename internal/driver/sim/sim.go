// Package sim is an in-process reader that answers driver commands from a
// configured tag population. It exists for demos and end-to-end tests.
package sim

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"rfidd/internal/common/hexutil"
	"rfidd/internal/driver"
)

const (
	defaultRoundTime = 50 * time.Millisecond
	defaultHandle    = driver.Handle(1)
	defaultPC        = "3000"
)

// Settings is the radio configuration currently applied to the simulated reader.
type Settings struct {
	Power   byte
	Antenna byte
	Trigger bool
	Region  byte
	Start   byte
	End     byte
}

// Tag is one simulated transponder.
type Tag struct {
	EPC  []byte
	RSSI byte
	// Visible restricts which configurations see the tag. nil means always.
	Visible func(Settings) bool
}

// Config configures a Reader.
type Config struct {
	Handle    driver.Handle
	Tags      []Tag
	RoundTime time.Duration
	// ConnectErr makes Connect fail.
	ConnectErr error
	// FailCommands makes every command return -1.
	FailCommands bool
	Logger       zerolog.Logger
}

type tagState struct {
	banks   [4][]byte
	epcLen  int
	rssi    byte
	visible func(Settings) bool
}

func (t *tagState) epc() []byte {
	return append([]byte(nil), t.banks[1][4:4+t.epcLen]...)
}

// Reader implements driver.Driver.
type Reader struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	connected bool
	settings  Settings
	match     []byte
	tags      []*tagState
	total     int
	rounds    int
	listeners driver.Listeners
}

var _ driver.Driver = (*Reader)(nil)

// New builds a simulated reader.
func New(cfg Config) *Reader {
	if cfg.Handle == 0 {
		cfg.Handle = defaultHandle
	}
	if cfg.RoundTime <= 0 {
		cfg.RoundTime = defaultRoundTime
	}
	r := &Reader{cfg: cfg, log: cfg.Logger.With().Str("driver", "sim").Logger()}
	for _, t := range cfg.Tags {
		r.tags = append(r.tags, newTagState(t))
	}
	return r
}

func newTagState(t Tag) *tagState {
	ts := &tagState{epcLen: len(t.EPC), rssi: t.RSSI, visible: t.Visible}
	// EPC bank: CRC(2) PC(2) EPC(n)
	ts.banks[1] = append([]byte{0x00, 0x00, 0x30, 0x00}, t.EPC...)
	ts.banks[2] = []byte{0xE2, 0x80, 0x11, 0x00}
	ts.banks[3] = make([]byte, 16)
	ts.banks[0] = make([]byte, 8)
	return ts
}

func (r *Reader) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.cfg.ConnectErr != nil {
		return errors.Wrap(r.cfg.ConnectErr, "sim connect")
	}
	r.mu.Lock()
	r.connected = true
	r.mu.Unlock()
	r.log.Debug().Str("event", "connect").Uint8("handle", uint8(r.cfg.Handle)).Msg("sim reader connected")
	return nil
}

func (r *Reader) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Reader) Disconnect() error {
	r.mu.Lock()
	r.connected = false
	r.match = nil
	r.mu.Unlock()
	return nil
}

func (r *Reader) Handle() driver.Handle { return r.cfg.Handle }

// Settings returns the applied radio configuration.
func (r *Reader) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Rounds is the number of inventory rounds run so far.
func (r *Reader) Rounds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rounds
}

// AddTag places a tag in the field.
func (r *Reader) AddTag(t Tag) {
	r.mu.Lock()
	r.tags = append(r.tags, newTagState(t))
	r.mu.Unlock()
}

// status applies fn under the lock if the reader accepts commands.
func (r *Reader) status(fn func()) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected || r.cfg.FailCommands {
		return -1
	}
	if fn != nil {
		fn()
	}
	return 0
}

func (r *Reader) SetOutputPower(_ driver.Handle, power byte) int {
	return r.status(func() { r.settings.Power = power })
}

func (r *Reader) SetTrigger(on bool) int {
	return r.status(func() { r.settings.Trigger = on })
}

func (r *Reader) SetWorkAntenna(_ driver.Handle, antenna byte) int {
	return r.status(func() { r.settings.Antenna = antenna })
}

func (r *Reader) SetFrequencyRegion(_ driver.Handle, region, start, end byte) int {
	return r.status(func() {
		r.settings.Region, r.settings.Start, r.settings.End = region, start, end
	})
}

func (r *Reader) StartInventory(_ driver.Handle, _, _, _ byte) int {
	st := r.status(nil)
	if st < 0 {
		return st
	}
	time.AfterFunc(r.cfg.RoundTime, r.runRound)
	return 0
}

func (r *Reader) runRound() {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return
	}
	settings := r.settings
	var seen []driver.RawTag
	for _, t := range r.tags {
		if t.visible != nil && !t.visible(settings) {
			continue
		}
		seen = append(seen, driver.RawTag{
			Antenna: settings.Antenna,
			Prefix:  defaultPC,
			EPC:     hexutil.EncodeSpaced(t.epc()),
			TID:     strconv.Itoa(int(t.rssi)),
			EPCLen:  t.epcLen,
		})
	}
	r.rounds++
	r.total += len(seen)
	end := driver.RoundEnd{Antenna: int(settings.Antenna), TagCount: len(seen), TotalCount: r.total}
	r.mu.Unlock()

	r.listeners.Each(func(l driver.Listener) {
		for _, tag := range seen {
			l.OnInventoryTag(tag)
		}
		l.OnInventoryEnd(end)
	})
}

func (r *Reader) SetAccessEpcMatch(_ driver.Handle, epc []byte) int {
	return r.status(func() { r.match = append([]byte(nil), epc...) })
}

func (r *Reader) CancelAccessEpcMatch(_ driver.Handle) error {
	if st := r.status(func() { r.match = nil }); st < 0 {
		return driver.ErrNotConnected
	}
	return nil
}

// target returns the matched tag. Caller holds mu.
func (r *Reader) target() *tagState {
	for _, t := range r.tags {
		if t.visible != nil && !t.visible(r.settings) {
			continue
		}
		if len(r.match) == 0 || bytes.Equal(t.epc(), r.match) {
			return t
		}
	}
	return nil
}

func (r *Reader) ReadTag(_ driver.Handle, bank, start, length byte, _ []byte) int {
	var (
		op    driver.OperationTag
		found bool
	)
	st := r.status(func() {
		t := r.target()
		if t == nil || int(bank) >= len(t.banks) {
			return
		}
		data := words(t.banks[bank], int(start), int(length))
		op = driver.OperationTag{
			TagType: "6C",
			Prefix:  defaultPC,
			EPC:     hexutil.Encode(t.epc()),
			Data:    hexutil.EncodeSpaced(data),
			DataLen: len(data),
			Antenna: r.settings.Antenna,
		}
		found = true
	})
	if st < 0 {
		return st
	}
	if found {
		time.AfterFunc(r.cfg.RoundTime, func() {
			r.listeners.Each(func(l driver.Listener) { l.OnOperationTag(op) })
		})
	}
	// no matching tag: the reader stays silent and the caller times out
	return 0
}

func (r *Reader) WriteTag(_ driver.Handle, _ []byte, bank, start, length byte, data []byte) int {
	found := false
	st := r.status(func() {
		t := r.target()
		if t == nil || int(bank) >= len(t.banks) {
			return
		}
		end := (int(start) + int(length)) * 2
		if len(t.banks[bank]) < end {
			t.banks[bank] = append(t.banks[bank], make([]byte, end-len(t.banks[bank]))...)
		}
		copy(t.banks[bank][int(start)*2:end], hexutil.Fit(data, int(length)*2))
		if bank == 1 && start == 2 {
			t.epcLen = int(length) * 2
		}
		found = true
	})
	if st < 0 {
		return st
	}
	if found {
		time.AfterFunc(r.cfg.RoundTime, func() {
			r.listeners.Each(func(l driver.Listener) { l.OnCommandStatus(0x03, driver.StatusWriteComplete) })
		})
	}
	return 0
}

func (r *Reader) RegisterListener(l driver.Listener)   { r.listeners.Add(l) }
func (r *Reader) UnregisterListener(l driver.Listener) { r.listeners.Remove(l) }

// Listeners reports how many listeners are registered.
func (r *Reader) Listeners() int { return r.listeners.Len() }

func words(b []byte, start, length int) []byte {
	out := make([]byte, length*2)
	if lo := start * 2; lo < len(b) {
		copy(out, b[lo:])
	}
	return out
}
