// Package reader18 encodes and decodes the UHFReader18 serial framing.
//
// Host command:  Len(1) Adr(1) Cmd(1) Data(n) CRC_L(1) CRC_H(1)
// Reader answer: Len(1) Adr(1) Cmd(1) Status(1) Data(n) CRC_L(1) CRC_H(1)
//
// Len counts every byte after itself. The CRC is CRC-16/MCRF4XX over all
// bytes before it.
package reader18

import "fmt"

// Command codes.
const (
	CmdInventory     byte = 0x01
	CmdReadData      byte = 0x02
	CmdWriteData     byte = 0x03
	CmdGetReaderInfo byte = 0x21
	CmdSetRegion     byte = 0x22
	CmdSetPower      byte = 0x2F
	CmdSetAntennaMux byte = 0x3F
	CmdStopInventory byte = 0x93
)

// Status codes.
const (
	StatusSuccess       byte = 0x00
	StatusInventoryDone byte = 0x01
	StatusScanOverflow  byte = 0x02
	StatusMoreData      byte = 0x03
	StatusBufferFull    byte = 0x04
	StatusNoTag         byte = 0xFB
	StatusCmdError      byte = 0xFE
	StatusCRCError      byte = 0xFF
)

// BroadcastAddress reaches any reader on the bus.
const BroadcastAddress byte = 0xFF

const (
	minFrameLen = 6
	// maxBuffered bounds a Decoder that never sees a valid frame.
	maxBuffered = 8192
)

// Frame is one decoded reader answer.
type Frame struct {
	Address byte
	Command byte
	Status  byte
	Data    []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("cmd=0x%02X status=0x%02X len=%d", f.Command, f.Status, len(f.Data))
}

// Build encodes one host command.
func Build(address, command byte, payload []byte) []byte {
	pkt := make([]byte, 0, len(payload)+5)
	pkt = append(pkt, byte(len(payload)+4), address, command)
	pkt = append(pkt, payload...)
	crc := checksum(pkt)
	return append(pkt, byte(crc), byte(crc>>8))
}

// EncodeFrame encodes a reader answer. The serial driver tests and the
// loopback port use it to play the reader side.
func EncodeFrame(f Frame) []byte {
	pkt := make([]byte, 0, len(f.Data)+6)
	pkt = append(pkt, byte(len(f.Data)+5), f.Address, f.Command, f.Status)
	pkt = append(pkt, f.Data...)
	crc := checksum(pkt)
	return append(pkt, byte(crc), byte(crc>>8))
}

// Valid reports whether pkt is one complete frame with a correct CRC.
func Valid(pkt []byte) bool {
	if len(pkt) < minFrameLen-1 || int(pkt[0])+1 != len(pkt) {
		return false
	}
	crc := checksum(pkt[:len(pkt)-2])
	return pkt[len(pkt)-2] == byte(crc) && pkt[len(pkt)-1] == byte(crc>>8)
}

// Decoder reassembles answer frames from a byte stream. Bytes that cannot
// start a valid frame are skipped one at a time.
type Decoder struct {
	buf []byte
}

// Feed appends p and returns every complete frame now available.
func (d *Decoder) Feed(p []byte) []Frame {
	d.buf = append(d.buf, p...)
	var out []Frame
	for len(d.buf) >= minFrameLen {
		total := int(d.buf[0]) + 1
		if total < minFrameLen {
			d.buf = d.buf[1:]
			continue
		}
		if total > len(d.buf) {
			break
		}
		raw := d.buf[:total]
		if !Valid(raw) {
			d.buf = d.buf[1:]
			continue
		}
		out = append(out, Frame{
			Address: raw[1],
			Command: raw[2],
			Status:  raw[3],
			Data:    append([]byte(nil), raw[4:total-2]...),
		})
		d.buf = d.buf[total:]
	}
	if len(d.buf) > maxBuffered {
		d.buf = append([]byte(nil), d.buf[len(d.buf)-maxBuffered/2:]...)
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return out
}

// Buffered is the number of bytes waiting for the rest of a frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset drops buffered bytes.
func (d *Decoder) Reset() { d.buf = nil }

// checksum is CRC-16/MCRF4XX (poly 0x8408 reflected, init 0xFFFF).
func checksum(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
