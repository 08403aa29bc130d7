package reader18

import (
	"fmt"

	"github.com/pkg/errors"
)

// Memory banks of an EPC Gen2 tag.
const (
	BankReserved byte = 0
	BankEPC      byte = 1
	BankTID      byte = 2
	BankUser     byte = 3
)

// DefaultQ is the slot-count exponent used for continuous inventory.
const DefaultQ byte = 4

// DefaultScanTime is the inventory window in 100 ms units.
const DefaultScanTime byte = 10

// ErrMalformed marks an answer payload that does not match its layout.
var ErrMalformed = errors.New("reader18: malformed payload")

// InventoryRequest describes one inventory (0x01) command.
type InventoryRequest struct {
	Q        byte
	Session  byte
	Target   byte
	Antenna  byte
	ScanTime byte
}

// Inventory builds an inventory command without TID capture.
func Inventory(address byte, r InventoryRequest) []byte {
	return Build(address, CmdInventory, []byte{r.Q, r.Session, r.Target, r.Antenna, r.ScanTime})
}

// AntennaPort maps a zero-based antenna index to the inventory antenna byte.
func AntennaPort(antenna byte) byte { return 0x80 | (antenna & 0x07) }

// AntennaMask maps a zero-based antenna index to the 0x3F bitmask.
func AntennaMask(antenna byte) byte { return 1 << (antenna & 0x07) }

// StopInventory interrupts a running inventory.
func StopInventory(address byte) []byte { return Build(address, CmdStopInventory, nil) }

// SetOutputPower sets the RF output power (dBm).
func SetOutputPower(address, power byte) []byte {
	return Build(address, CmdSetPower, []byte{power})
}

// SetAntennaMux selects the working antennas by bitmask.
func SetAntennaMux(address, mask byte) []byte {
	return Build(address, CmdSetAntennaMux, []byte{mask})
}

// RegionBytes packs a region code and channel window into the MaxFre/MinFre
// pair of command 0x22. The 4-bit region is split across the top two bits of
// each byte; the low six bits carry the channel index.
func RegionBytes(region, start, end byte) (hi, lo byte) {
	hi = (region&0x0C)<<4 | end&0x3F
	lo = (region&0x03)<<6 | start&0x3F
	return hi, lo
}

// SetRegion selects the frequency region and channel window.
func SetRegion(address, region, start, end byte) []byte {
	hi, lo := RegionBytes(region, start, end)
	return Build(address, CmdSetRegion, []byte{hi, lo})
}

// AccessRequest addresses one tag by EPC for a memory read or write.
type AccessRequest struct {
	EPC      []byte
	Bank     byte
	Start    byte // word pointer
	Length   byte // words
	Password []byte
}

func (r AccessRequest) header() ([]byte, error) {
	if len(r.EPC)%2 != 0 {
		return nil, fmt.Errorf("reader18: epc must be whole words, got %d bytes", len(r.EPC))
	}
	if len(r.EPC)/2 > 15 {
		return nil, fmt.Errorf("reader18: epc too long (%d words)", len(r.EPC)/2)
	}
	out := make([]byte, 0, len(r.EPC)+8)
	out = append(out, byte(len(r.EPC)/2))
	out = append(out, r.EPC...)
	return out, nil
}

func password(p []byte) []byte {
	out := make([]byte, 4)
	copy(out, p)
	return out
}

// ReadData builds a memory read (0x02).
// Payload: ENum EPC Mem WordPtr Num Pwd(4) MaskAdr MaskLen.
func ReadData(address byte, r AccessRequest) ([]byte, error) {
	p, err := r.header()
	if err != nil {
		return nil, err
	}
	p = append(p, r.Bank, r.Start, r.Length)
	p = append(p, password(r.Password)...)
	p = append(p, 0, 0)
	return Build(address, CmdReadData, p), nil
}

// WriteData builds a memory write (0x03). data must hold Length words.
// Payload: WNum ENum EPC Mem WordPtr Wdt Pwd(4) MaskAdr MaskLen.
func WriteData(address byte, r AccessRequest, data []byte) ([]byte, error) {
	if len(data) != int(r.Length)*2 {
		return nil, fmt.Errorf("reader18: write data is %d bytes, want %d", len(data), int(r.Length)*2)
	}
	h, err := r.header()
	if err != nil {
		return nil, err
	}
	p := make([]byte, 0, len(h)+len(data)+9)
	p = append(p, r.Length)
	p = append(p, h...)
	p = append(p, r.Bank, r.Start)
	p = append(p, data...)
	p = append(p, password(r.Password)...)
	p = append(p, 0, 0)
	return Build(address, CmdWriteData, p), nil
}

// InventoryTag is one tag from an inventory answer.
type InventoryTag struct {
	Antenna int
	EPC     []byte
	RSSI    byte
}

// InventoryResult is the decoded payload of an inventory answer.
type InventoryResult struct {
	Tags []InventoryTag
	// More is set when the reader will send further frames for this round.
	More bool
}

// ParseInventory decodes an inventory answer.
// Payload: AntMask TagNum [EpcLen EPC RSSI]...
func ParseInventory(f Frame) (InventoryResult, error) {
	if f.Command != CmdInventory {
		return InventoryResult{}, errors.Errorf("reader18: frame %s is not an inventory answer", f)
	}
	res := InventoryResult{More: f.Status == StatusMoreData}
	if len(f.Data) < 2 {
		return res, nil
	}
	ant := antennaIndex(f.Data[0])
	n := int(f.Data[1])
	cur := 2
	for i := 0; i < n; i++ {
		if cur >= len(f.Data) {
			return res, errors.Wrapf(ErrMalformed, "inventory truncated at tag %d", i)
		}
		l := int(f.Data[cur])
		cur++
		if l == 0 || cur+l >= len(f.Data) {
			return res, errors.Wrapf(ErrMalformed, "inventory epc length %d at tag %d", l, i)
		}
		res.Tags = append(res.Tags, InventoryTag{
			Antenna: ant,
			EPC:     append([]byte(nil), f.Data[cur:cur+l]...),
			RSSI:    f.Data[cur+l],
		})
		cur += l + 1
	}
	return res, nil
}

// antennaIndex returns the zero-based index of the lowest set bit.
func antennaIndex(mask byte) int {
	for i := 0; i < 8; i++ {
		if mask&(1<<i) != 0 {
			return i
		}
	}
	return 0
}
