// Package port implements the uniform full-duplex byte channel spec.md
// §3/§4.1 calls Port: a USB-bulk backend and a USB-CDC-serial backend
// behind one interface, plus the BROM handshake and the KNOWN_PORTS
// enumeration table. The teacher's own internal/driver/device/usb_device.go
// is the model for claim/release-interface lifecycle and endpoint
// plumbing; this package generalizes it from one fixed Bitmain VID/PID to
// the MediaTek BROM/preloader/DA table and adds the serial backend the
// teacher never needed.
package port

import (
	"time"

	"mtkflash/internal/driverror"
	"mtkflash/internal/logging"
)

// ConnectionKind identifies which of the device's three boot stages the
// Port is currently talking to.
type ConnectionKind int

const (
	BROM ConnectionKind = iota
	Preloader
	DA
)

func (k ConnectionKind) String() string {
	switch k {
	case BROM:
		return "brom"
	case Preloader:
		return "preloader"
	case DA:
		return "da"
	default:
		return "unknown"
	}
}

const (
	BaudBROM     = 115200
	BaudUpstream = 921600 // preloader and DA
)

// KnownPort is one row of the static USB identification table.
type KnownPort struct {
	VendorID  uint16
	ProductID uint16
	Kind      ConnectionKind
}

// KnownPorts enumerates the MediaTek BROM, preloader, and DA USB
// identities this driver recognizes, per spec.md §6. Unlisted VID/PID
// pairs can still be opened explicitly via config overrides.
var KnownPorts = []KnownPort{
	{VendorID: 0x0E8D, ProductID: 0x0003, Kind: BROM},
	{VendorID: 0x0E8D, ProductID: 0x2000, Kind: Preloader},
	{VendorID: 0x0E8D, ProductID: 0x2001, Kind: Preloader},
	{VendorID: 0x0E8D, ProductID: 0x2002, Kind: Preloader},
}

// BaudFor returns the CDC line-coding baud rate for a connection kind.
func BaudFor(kind ConnectionKind) int {
	if kind == BROM {
		return BaudBROM
	}
	return BaudUpstream
}

// Stats tracks byte counters for diagnostics; HandshakeRetries is not
// updated by Handshake and stays 0.
// Mirrors the teacher's DeviceStats/DeviceStatsSnapshot split: a
// mutex-guarded live struct plus a plain snapshot type for callers.
type Stats struct {
	BytesRead        uint64
	BytesWritten     uint64
	HandshakeRetries uint64
}

// Port is the uniform byte channel every backend implements. The USB and
// serial backends' ReadExact/WriteAll, and Handshake, return
// driverror.ErrPortNotOpen when IsOpen() is false; the other methods do
// not check it.
type Port interface {
	Open() error
	Close() error
	IsOpen() bool

	ReadExact(buf []byte) error
	WriteAll(buf []byte) error
	Flush() error

	// CtrlOut/CtrlIn issue USB control transfers; no-ops over serial.
	CtrlOut(requestType, request uint8, value, index uint16, data []byte) error
	CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error)

	ConnectionKind() ConnectionKind
	Baudrate() int
	PortName() string
	Stats() Stats
}

// ReadWriter adapts a Port to io.Reader/io.Writer so the framed-protocol
// packages (internal/frame and its callers in xflash/xmlda) can layer
// stdlib io helpers like io.ReadFull over ReadExact/WriteAll.
type ReadWriter struct {
	P Port
}

func (rw ReadWriter) Read(p []byte) (int, error) {
	if err := rw.P.ReadExact(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (rw ReadWriter) Write(p []byte) (int, error) {
	if err := rw.P.WriteAll(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetTimeout configures the per-operation read/write deadline a backend
// should honor. Not part of the Port interface proper since it is a
// configuration knob rather than a protocol operation, but every backend
// in this package implements it.
type TimeoutSetter interface {
	SetTimeout(time.Duration)
}

const handshakeRetries = 100
const handshakeRetryPause = 5 * time.Millisecond

var handshakeTx = [4]byte{0xA0, 0x0A, 0x50, 0x05}
var handshakeRx = [4]byte{0x5F, 0xF5, 0xAF, 0xFA}

// Handshake performs the canonical four-byte BROM challenge/response
// exchange described in spec.md §4.1 and tested by §8 property 2. It is
// the sole retry loop anywhere in this module (spec.md §5/§7): on any
// mismatch other than an already-past-handshake device, it resets and
// retries up to handshakeRetries times before returning
// driverror.ErrHandshakeFailed.
func Handshake(p Port, log *logging.Logger) error {
	if !p.IsOpen() {
		return driverror.ErrPortNotOpen
	}
	if p.ConnectionKind() == DA {
		return nil
	}

	if p.ConnectionKind() == Preloader {
		// Some preloader variants require an initial wake-up byte
		// before the handshake sequence proper.
		if err := p.WriteAll([]byte{0xA0}); err != nil {
			return driverror.Wrap(driverror.IO, "handshake wake-up byte", err)
		}
	}

	for attempt := 0; attempt < handshakeRetries; attempt++ {
		ok, already, err := tryHandshakeOnce(p)
		if err != nil {
			return err
		}
		if already {
			log.Debug("handshake: device already past BROM challenge")
			return nil
		}
		if ok {
			log.Debug("handshake: completed after %d retries", attempt)
			return nil
		}
		time.Sleep(handshakeRetryPause)
	}
	return driverror.ErrHandshakeFailed
}

func tryHandshakeOnce(p Port) (ok bool, alreadyPast bool, err error) {
	rx := make([]byte, 1)
	for i := 0; i < 4; i++ {
		if err := p.WriteAll(handshakeTx[i : i+1]); err != nil {
			return false, false, driverror.Wrap(driverror.IO, "handshake write", err)
		}
		if err := p.ReadExact(rx); err != nil {
			return false, false, driverror.Wrap(driverror.IO, "handshake read", err)
		}
		if i == 0 && rx[0] == 0xA0 {
			return false, true, nil
		}
		if rx[0] != handshakeRx[i] {
			return false, false, nil
		}
	}
	return true, false, nil
}
