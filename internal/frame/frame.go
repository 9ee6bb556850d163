// Package frame implements the 12-byte packet header shared by both
// DA-era wire dialects (XFlash v5 binary and XML v6), as specified in
// spec.md §4.6/§4.7/§6. Both protocols layer their own payload semantics
// on top of the same header, so it is factored out once here instead of
// duplicated per dialect — the same way the teacher hand-rolls one
// packet-building routine (BuildTxTaskFromHeader) rather than a generic
// framing library, since no pack example ships one for a bespoke framed
// protocol like this.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"

	"mtkflash/internal/driverror"
)

const (
	Magic      uint32 = 0xFEEEEEEF
	HeaderSize        = 12

	DataTypeProtocol uint32 = 1
	DataTypeLog      uint32 = 2
)

// Header is the 12-byte LE frame header preceding every payload.
type Header struct {
	Magic    uint32
	DataType uint32
	Length   uint32
}

// Encode writes a full frame (header + payload) for the given data type.
func Encode(dataType uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], dataType)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))
	copy(buf[12:], payload)
	return buf
}

// ReadHeader reads and validates one 12-byte header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var hdr Header
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return hdr, driverror.Wrap(driverror.IO, "read frame header", err)
	}
	hdr.Magic = binary.LittleEndian.Uint32(buf[0:4])
	hdr.DataType = binary.LittleEndian.Uint32(buf[4:8])
	hdr.Length = binary.LittleEndian.Uint32(buf[8:12])
	if hdr.Magic != Magic {
		return hdr, driverror.New(driverror.Protocol, fmt.Sprintf("bad frame magic 0x%08X", hdr.Magic))
	}
	return hdr, nil
}

// ReadPayload reads a full frame (header already validated) and returns
// its payload.
func ReadPayload(r io.Reader) (Header, []byte, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return hdr, nil, err
	}
	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return hdr, nil, driverror.Wrap(driverror.IO, "read frame payload", err)
		}
	}
	return hdr, payload, nil
}

// Write encodes and writes one frame.
func Write(w io.Writer, dataType uint32, payload []byte) error {
	if _, err := w.Write(Encode(dataType, payload)); err != nil {
		return driverror.Wrap(driverror.IO, "write frame", err)
	}
	return nil
}

// DecodeStatus interprets a status payload per spec.md §4.6: length-2 is
// a u16 LE, length-4 is a u32 LE (with the frame magic itself mapped to a
// bare ack, i.e. 0), and any length >= 4 falls back to the first u32 LE.
func DecodeStatus(payload []byte) uint32 {
	switch {
	case len(payload) == 2:
		return uint32(binary.LittleEndian.Uint16(payload))
	case len(payload) == 4:
		v := binary.LittleEndian.Uint32(payload)
		if v == Magic {
			return 0
		}
		return v
	case len(payload) > 4:
		return binary.LittleEndian.Uint32(payload[:4])
	default:
		return 0
	}
}

const StatusSync uint32 = 0x434E5953 // "SYNC"

// StatusOK reports whether a decoded status indicates success.
func StatusOK(status uint32) bool {
	return status == 0 || status == StatusSync
}
