// Package serialdrv drives a UHFReader18-compatible module over a serial
// line. Commands are written without waiting for the answer; answers are
// decoded on a reader goroutine and delivered to listeners as events.
package serialdrv

import (
	"context"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"rfidd/internal/common/hexutil"
	"rfidd/internal/driver"
	"rfidd/internal/protocol/reader18"
)

const readBufSize = 256

// Config configures a Driver.
type Config struct {
	Port PortOptions
	// Address is the reader's bus address; reader18.BroadcastAddress reaches any.
	Address byte
	// ScanTime is the inventory window in 100 ms units.
	ScanTime byte
	// Open replaces the real serial port, for tests.
	Open   Opener
	Logger zerolog.Logger
}

// Driver implements driver.Driver on top of reader18 framing.
type Driver struct {
	cfg  Config
	log  zerolog.Logger
	open Opener

	writeMu sync.Mutex

	mu        sync.Mutex
	port      Port
	done      chan struct{}
	antenna   byte
	match     []byte
	roundTags int
	total     int

	listeners driver.Listeners
}

var _ driver.Driver = (*Driver)(nil)

// New builds a serial driver. The port is opened by Connect.
func New(cfg Config) *Driver {
	if cfg.ScanTime == 0 {
		cfg.ScanTime = reader18.DefaultScanTime
	}
	open := cfg.Open
	if open == nil {
		open = OpenSerial
	}
	return &Driver{cfg: cfg, open: open, log: cfg.Logger.With().Str("driver", "serial").Logger()}
}

func (d *Driver) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return nil
	}
	p, err := d.open(d.cfg.Port)
	if err != nil {
		return errors.Wrap(err, "connect reader")
	}
	d.port = p
	d.done = make(chan struct{})
	d.match = nil
	d.roundTags, d.total = 0, 0
	go d.readLoop(p, d.done)
	d.log.Info().Str("event", "connect").Str("path", d.cfg.Port.Path).Msg("serial reader connected")
	return nil
}

func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port != nil
}

func (d *Driver) Disconnect() error {
	d.mu.Lock()
	p, done := d.port, d.done
	d.port, d.done = nil, nil
	d.match = nil
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	d.writeMu.Lock()
	_, _ = p.Write(reader18.StopInventory(d.cfg.Address))
	d.writeMu.Unlock()
	err := p.Close()
	<-done
	if err != nil {
		return errors.Wrap(err, "close serial port")
	}
	return nil
}

func (d *Driver) Handle() driver.Handle { return driver.Handle(d.cfg.Address) }

// send writes one command frame. It returns 0 or -1 like the reader SDK.
func (d *Driver) send(pkt []byte) int {
	d.mu.Lock()
	p := d.port
	d.mu.Unlock()
	if p == nil {
		return -1
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if _, err := p.Write(pkt); err != nil {
		d.log.Warn().Err(errors.Wrap(err, "write command")).Msg("serial write failed")
		return -1
	}
	return 0
}

func (d *Driver) SetOutputPower(_ driver.Handle, power byte) int {
	return d.send(reader18.SetOutputPower(d.cfg.Address, power))
}

// SetTrigger is accepted for interface parity; the module has no trigger mode.
func (d *Driver) SetTrigger(bool) int { return 0 }

func (d *Driver) SetWorkAntenna(_ driver.Handle, antenna byte) int {
	st := d.send(reader18.SetAntennaMux(d.cfg.Address, reader18.AntennaMask(antenna)))
	if st >= 0 {
		d.mu.Lock()
		d.antenna = antenna
		d.mu.Unlock()
	}
	return st
}

func (d *Driver) SetFrequencyRegion(_ driver.Handle, region, start, end byte) int {
	return d.send(reader18.SetRegion(d.cfg.Address, region, start, end))
}

func (d *Driver) StartInventory(_ driver.Handle, session, state, target byte) int {
	d.mu.Lock()
	ant := d.antenna
	if state == 0 {
		d.total = 0
	}
	d.mu.Unlock()
	return d.send(reader18.Inventory(d.cfg.Address, reader18.InventoryRequest{
		Q:        reader18.DefaultQ,
		Session:  session,
		Target:   target,
		Antenna:  reader18.AntennaPort(ant),
		ScanTime: d.cfg.ScanTime,
	}))
}

// SetAccessEpcMatch stores the EPC addressed by the next read or write.
func (d *Driver) SetAccessEpcMatch(_ driver.Handle, epc []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return -1
	}
	d.match = append([]byte(nil), epc...)
	return 0
}

func (d *Driver) CancelAccessEpcMatch(driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return driver.ErrNotConnected
	}
	d.match = nil
	return nil
}

func (d *Driver) access(bank, start, length byte, password []byte) reader18.AccessRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return reader18.AccessRequest{EPC: d.match, Bank: bank, Start: start, Length: length, Password: password}
}

func (d *Driver) ReadTag(_ driver.Handle, bank, start, length byte, password []byte) int {
	pkt, err := reader18.ReadData(d.cfg.Address, d.access(bank, start, length, password))
	if err != nil {
		d.log.Warn().Err(err).Msg("read request rejected")
		return -1
	}
	return d.send(pkt)
}

func (d *Driver) WriteTag(_ driver.Handle, password []byte, bank, start, length byte, data []byte) int {
	pkt, err := reader18.WriteData(d.cfg.Address, d.access(bank, start, length, password), data)
	if err != nil {
		d.log.Warn().Err(err).Msg("write request rejected")
		return -1
	}
	return d.send(pkt)
}

func (d *Driver) RegisterListener(l driver.Listener)   { d.listeners.Add(l) }
func (d *Driver) UnregisterListener(l driver.Listener) { d.listeners.Remove(l) }

func (d *Driver) readLoop(p Port, done chan struct{}) {
	defer close(done)
	var dec reader18.Decoder
	buf := make([]byte, readBufSize)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				d.dispatch(f)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && d.IsConnected() {
				d.log.Error().Err(errors.Wrap(err, "read serial port")).Msg("reader loop stopped")
			}
			return
		}
		if n == 0 && !d.IsConnected() {
			return
		}
	}
}

func (d *Driver) dispatch(f reader18.Frame) {
	d.log.Debug().Str("frame", f.String()).Msg("answer")
	switch f.Command {
	case reader18.CmdInventory:
		d.onInventory(f)
	case reader18.CmdReadData:
		if f.Status != reader18.StatusSuccess {
			d.emitStatus(f.Command, f.Status)
			return
		}
		d.mu.Lock()
		epc := hexutil.Encode(d.match)
		ant := d.antenna
		d.mu.Unlock()
		op := driver.OperationTag{
			EPC:     epc,
			Data:    hexutil.EncodeSpaced(f.Data),
			DataLen: len(f.Data),
			Antenna: ant,
		}
		d.listeners.Each(func(l driver.Listener) { l.OnOperationTag(op) })
	case reader18.CmdWriteData:
		st := f.Status
		if st == reader18.StatusSuccess {
			st = driver.StatusWriteComplete
		}
		d.emitStatus(f.Command, st)
	default:
		d.emitStatus(f.Command, f.Status)
	}
}

func (d *Driver) emitStatus(cmd, status byte) {
	d.listeners.Each(func(l driver.Listener) { l.OnCommandStatus(cmd, status) })
}

func (d *Driver) onInventory(f reader18.Frame) {
	res, err := reader18.ParseInventory(f)
	if err != nil {
		d.log.Warn().Err(err).Msg("inventory answer dropped")
	}
	for _, t := range res.Tags {
		// the vendor SDK reports the RSSI byte in the TID slot
		raw := driver.RawTag{
			Antenna: byte(t.Antenna),
			EPC:     hexutil.EncodeSpaced(t.EPC),
			TID:     strconv.Itoa(int(t.RSSI)),
			EPCLen:  len(t.EPC),
		}
		d.listeners.Each(func(l driver.Listener) { l.OnInventoryTag(raw) })
	}
	d.mu.Lock()
	d.roundTags += len(res.Tags)
	d.total += len(res.Tags)
	if res.More {
		d.mu.Unlock()
		return
	}
	end := driver.RoundEnd{Antenna: int(d.antenna), TagCount: d.roundTags, TotalCount: d.total, Flag: f.Status}
	d.roundTags = 0
	d.mu.Unlock()
	d.listeners.Each(func(l driver.Listener) { l.OnInventoryEnd(end) })
}
