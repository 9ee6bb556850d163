package xflash

import (
	"encoding/binary"

	"mtkflash/internal/driverror"
	"mtkflash/internal/frame"
	"mtkflash/internal/logging"
	"mtkflash/internal/port"
)

// Client drives the XFlash v5 dialect over a raw Port once the
// connection has switched into DA mode (spec.md §4.6).
type Client struct {
	Port port.Port
	log  *logging.Logger

	writePacketSize uint32
	readPacketSize  uint32

	extensionsLoaded bool
}

// New wraps p as an XFlash client. p must already be in DA connection
// mode (preloader handshake/send_da/jump_da already completed).
func New(p port.Port, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{Port: p, log: log, writePacketSize: 4096, readPacketSize: 4096}
}

func (c *Client) sendCmd(opcode uint32) error {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, opcode)
	return frame.Write(port.ReadWriter{P: c.Port}, frame.DataTypeProtocol, payload)
}

func (c *Client) sendData(data []byte) error {
	return frame.Write(port.ReadWriter{P: c.Port}, frame.DataTypeProtocol, data)
}

func (c *Client) readFrame() (frame.Header, []byte, error) {
	return frame.ReadPayload(port.ReadWriter{P: c.Port})
}

func (c *Client) readStatus() (uint32, error) {
	_, payload, err := c.readFrame()
	if err != nil {
		return 0, err
	}
	return frame.DecodeStatus(payload), nil
}

func (c *Client) expectStatusOK() error {
	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if !frame.StatusOK(status) {
		return driverror.WithCode(driverror.XFlash, int(status), "device reported failure status")
	}
	return nil
}

// readByte reads exactly one raw byte off the port, bypassing framing —
// used only for the single DA1 sync byte spec.md §4.6 calls out.
func (c *Client) readByte() (byte, error) {
	buf := make([]byte, 1)
	if err := c.Port.ReadExact(buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// writeU32 encodes a slice of little-endian u32 values.
func writeU32(values ...uint32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}
