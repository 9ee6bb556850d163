// USB-CDC-serial backend. Used when the device enumerates as a CDC-ACM
// TTY (commonly /dev/ttyACMx) rather than a raw bulk interface; per
// spec.md §4.1 it opens at 115200 8N1 and needs no CDC line-coding setup
// since the OS serial stack already handles that.
package port

import (
	"sync"
	"time"

	"github.com/daedaluz/goserial"

	"mtkflash/internal/driverror"
)

const serialBaud = 115200

// SerialPort is the USB-CDC-serial Port backend.
type SerialPort struct {
	devicePath string
	conn       *goserial.Port
	kind       ConnectionKind
	timeout    time.Duration
	open       bool

	mu    sync.Mutex
	stats Stats
}

// NewSerialPort builds an unopened SerialPort for the given TTY path.
func NewSerialPort(devicePath string, kind ConnectionKind) *SerialPort {
	return &SerialPort{
		devicePath: devicePath,
		kind:       kind,
		timeout:    5 * time.Second,
	}
}

func (p *SerialPort) SetTimeout(d time.Duration) { p.timeout = d }

func (p *SerialPort) Open() error {
	conn, err := goserial.Open(&goserial.Config{
		Name:        p.devicePath,
		Baud:        serialBaud,
		DataBits:    8,
		StopBits:    1,
		Parity:      goserial.ParityNone,
		ReadTimeout: p.timeout,
	})
	if err != nil {
		return driverror.Wrap(driverror.IO, "open serial port "+p.devicePath, err)
	}
	p.conn = conn
	p.open = true
	return nil
}

func (p *SerialPort) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.open = false
	if err != nil {
		return driverror.Wrap(driverror.IO, "close serial port", err)
	}
	return nil
}

func (p *SerialPort) IsOpen() bool { return p.open }

func (p *SerialPort) ReadExact(buf []byte) error {
	if !p.open {
		return driverror.ErrPortNotOpen
	}
	total := 0
	for total < len(buf) {
		n, err := p.conn.Read(buf[total:])
		if err != nil {
			return driverror.Wrap(driverror.IO, "serial read", err)
		}
		if n == 0 {
			return driverror.New(driverror.IO, "serial read returned 0 bytes")
		}
		total += n
	}
	p.mu.Lock()
	p.stats.BytesRead += uint64(total)
	p.mu.Unlock()
	return nil
}

func (p *SerialPort) WriteAll(buf []byte) error {
	if !p.open {
		return driverror.ErrPortNotOpen
	}
	total := 0
	for total < len(buf) {
		n, err := p.conn.Write(buf[total:])
		if err != nil {
			return driverror.Wrap(driverror.IO, "serial write", err)
		}
		total += n
	}
	p.mu.Lock()
	p.stats.BytesWritten += uint64(total)
	p.mu.Unlock()
	return nil
}

func (p *SerialPort) Flush() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Flush()
}

// CtrlOut/CtrlIn are no-ops over a plain serial TTY; MediaTek's CDC-ACM
// line coding is already applied by the OS when the port is opened.
func (p *SerialPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}

func (p *SerialPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}

func (p *SerialPort) ConnectionKind() ConnectionKind { return p.kind }
func (p *SerialPort) Baudrate() int                  { return serialBaud }
func (p *SerialPort) PortName() string               { return p.devicePath }

func (p *SerialPort) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
