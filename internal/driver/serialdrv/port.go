package serialdrv

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// readTimeout bounds a single blocking read so Disconnect is never stuck
// behind a silent reader.
const readTimeout = 200 * time.Millisecond

// Port is the part of a serial port the driver uses.
type Port interface {
	io.ReadWriter
	io.Closer
}

// Opener opens the serial line described by opts.
type Opener func(opts PortOptions) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(opts PortOptions) (Port, error) {
	n, err := opts.Normalize()
	if err != nil {
		return nil, err
	}
	mode, err := n.SerialMode()
	if err != nil {
		return nil, err
	}
	p, err := serial.Open(n.Path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", n.Path)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	return p, nil
}

// ListPorts returns the serial ports present on the host.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
