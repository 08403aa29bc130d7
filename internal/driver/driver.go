// Package driver defines the contract between the session coordinator and a
// physical (or simulated) RFID reader.
//
// Commands return a status code where a negative value means the reader
// rejected the command. Events arrive asynchronously on the driver's own
// goroutines through a registered Listener.
package driver

import (
	"context"
	"errors"
)

// Handle identifies the reader/antenna port assigned on connect.
type Handle byte

// StatusWriteComplete is the command-status code a reader reports when a tag
// write finished successfully.
const StatusWriteComplete byte = 0x10

// ErrNotConnected is returned by drivers asked to act without a connection.
var ErrNotConnected = errors.New("reader not connected")

// IsNotConnected reports whether err is or wraps ErrNotConnected.
func IsNotConnected(err error) bool { return errors.Is(err, ErrNotConnected) }

// RawTag is one tag-seen event. Firmware populates the string slots
// inconsistently; see package tagevent.
type RawTag struct {
	Antenna   byte
	Prefix    string
	EPC       string
	RSSI      string
	Frequency byte
	TID       string
	UserData  string
	EPCLen    int
	TIDLen    int
}

// RoundEnd reports the end of one inventory round.
type RoundEnd struct {
	Antenna    int
	TagCount   int
	ReadRate   int
	TotalCount int
	Flag       byte
}

// OperationTag is the result of a tag access (memory read) operation.
type OperationTag struct {
	TagType string
	Prefix  string
	EPC     string
	Data    string
	DataLen int
	Antenna byte
	State   byte
}

// Listener receives driver events. Implementations must not block.
type Listener interface {
	OnInventoryTag(RawTag)
	OnInventoryEnd(RoundEnd)
	OnOperationTag(OperationTag)
	OnCommandStatus(cmd, status byte)
	OnSettingsRefreshed()
}

// Driver is the primitive command set of a reader.
type Driver interface {
	Connect(ctx context.Context) error
	IsConnected() bool
	Disconnect() error
	Handle() Handle

	SetOutputPower(h Handle, power byte) int
	SetTrigger(on bool) int
	SetWorkAntenna(h Handle, antenna byte) int
	SetFrequencyRegion(h Handle, region, start, end byte) int

	StartInventory(h Handle, session, state, target byte) int

	SetAccessEpcMatch(h Handle, epc []byte) int
	CancelAccessEpcMatch(h Handle) error
	ReadTag(h Handle, bank, start, length byte, password []byte) int
	WriteTag(h Handle, password []byte, bank, start, length byte, data []byte) int

	RegisterListener(Listener)
	UnregisterListener(Listener)
}
