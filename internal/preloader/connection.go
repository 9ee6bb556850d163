// Package preloader implements the echoed, single-opcode-byte preloader
// command layer over a Port (spec.md §4.2, component C2). Every command
// writes a byte sequence the device is required to echo verbatim before
// a status word follows; Connection.Echo is the shared primitive every
// command method in commands.go is built from, mirroring the way the
// teacher's controller.go layers small framed helpers (buildRxStatusPacket,
// buildTxConfigPacket) under a handful of public operations.
package preloader

import (
	"encoding/binary"
	"time"

	"mtkflash/internal/driverror"
	"mtkflash/internal/logging"
	"mtkflash/internal/port"
)

// Connection owns a Port. It keeps no cached connection kind or
// baudrate; both accessors read them from the Port on every call.
type Connection struct {
	Port port.Port
	log  *logging.Logger
}

func New(p port.Port, log *logging.Logger) *Connection {
	if log == nil {
		log = logging.Discard()
	}
	return &Connection{Port: p, log: log}
}

func (c *Connection) ConnectionKind() port.ConnectionKind { return c.Port.ConnectionKind() }
func (c *Connection) Baudrate() int                       { return c.Port.Baudrate() }

// Handshake delegates to the Port-level BROM challenge/response.
func (c *Connection) Handshake() error {
	return port.Handshake(c.Port, c.log)
}

// Write sends data and reads back N bytes (the device's own response,
// not necessarily an echo). The commands in commands.go do not use it;
// Read32 reads its data payload with Port.ReadExact after Echo.
func (c *Connection) Write(data []byte, n int) ([]byte, error) {
	if err := c.Port.WriteAll(data); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := c.Port.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Echo writes data and verifies the device echoes it back byte-exact,
// per spec.md §4.2's echo discipline (also §8 property 3). This is the
// building block every command below is composed from.
func (c *Connection) Echo(data []byte) error {
	if err := c.Port.WriteAll(data); err != nil {
		return err
	}
	echoed := make([]byte, len(data))
	if err := c.Port.ReadExact(echoed); err != nil {
		return err
	}
	for i := range data {
		if echoed[i] != data[i] {
			return driverror.New(driverror.Protocol, "preloader echo mismatch")
		}
	}
	return nil
}

// statusBE/statusLE read a 16-bit status word in the given endianness
// and return the raw value; checkStatus is what turns a non-zero status
// into an error.
func (c *Connection) statusLE() (uint16, error) {
	buf := make([]byte, 2)
	if err := c.Port.ReadExact(buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

func (c *Connection) statusBE() (uint16, error) {
	buf := make([]byte, 2)
	if err := c.Port.ReadExact(buf); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func checkStatus(status uint16) error {
	if status != 0 {
		return driverror.WithCode(driverror.Core, int(status), "preloader command failed")
	}
	return nil
}

// readLengthPrefixedBE reads a u32-BE-length-prefixed byte blob, with a
// read timeout downgraded to an empty result (spec.md §5/§7: the device
// may legitimately not support the query).
func (c *Connection) readLengthPrefixedBE(timeout time.Duration) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if err := c.readWithTimeout(lenBuf, timeout); err != nil {
		if driverror.Is(err, driverror.IO) {
			return []byte{}, nil
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	if n == 0 {
		return []byte{}, nil
	}
	data := make([]byte, n)
	if err := c.Port.ReadExact(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Connection) readWithTimeout(buf []byte, timeout time.Duration) error {
	type setter interface{ SetTimeout(time.Duration) }
	if ts, ok := c.Port.(setter); ok {
		ts.SetTimeout(timeout)
		defer ts.SetTimeout(5 * time.Second)
	}
	return c.Port.ReadExact(buf)
}
