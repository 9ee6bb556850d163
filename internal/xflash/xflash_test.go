package xflash

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/frame"
	"mtkflash/internal/port"
	"mtkflash/internal/storage"
)

// fakeFramedPort is an in-memory Port that serves pre-encoded frames on
// read and records every write, letting tests script a DA-side peer the
// same way internal/port's handshake tests script a BROM peer.
type fakeFramedPort struct {
	rx     *bytes.Buffer
	writes [][]byte
	kind   port.ConnectionKind
}

func newFakeFramedPort() *fakeFramedPort {
	return &fakeFramedPort{rx: &bytes.Buffer{}, kind: port.DA}
}

func (f *fakeFramedPort) queueFrame(dataType uint32, payload []byte) {
	f.rx.Write(frame.Encode(dataType, payload))
}

func (f *fakeFramedPort) queueByte(b byte) {
	f.rx.WriteByte(b)
}

func (f *fakeFramedPort) Open() error  { return nil }
func (f *fakeFramedPort) Close() error { return nil }
func (f *fakeFramedPort) IsOpen() bool { return true }

func (f *fakeFramedPort) ReadExact(buf []byte) error {
	n, err := f.rx.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return bytes.ErrTooLarge
	}
	return nil
}

func (f *fakeFramedPort) WriteAll(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeFramedPort) Flush() error { return nil }
func (f *fakeFramedPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}
func (f *fakeFramedPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}
func (f *fakeFramedPort) ConnectionKind() port.ConnectionKind { return f.kind }
func (f *fakeFramedPort) Baudrate() int                       { return port.BaudFor(f.kind) }
func (f *fakeFramedPort) PortName() string                    { return "fake-da" }
func (f *fakeFramedPort) Stats() port.Stats                   { return port.Stats{} }

func TestNegotiatePacketLength(t *testing.T) {
	fp := newFakeFramedPort()
	resp := make([]byte, 8)
	binary.LittleEndian.PutUint32(resp[0:4], 65536)
	binary.LittleEndian.PutUint32(resp[4:8], 32768)
	fp.queueFrame(frame.DataTypeProtocol, resp)
	fp.queueFrame(frame.DataTypeProtocol, []byte{0, 0})

	c := New(fp, nil)
	err := c.negotiatePacketLength()
	require.NoError(t, err)
	require.Equal(t, uint32(65536), c.writePacketSize)
	require.Equal(t, uint32(32768), c.readPacketSize)
}

func TestFormatSendsNameAndChecksStatus(t *testing.T) {
	fp := newFakeFramedPort()
	fp.queueFrame(frame.DataTypeProtocol, []byte{0, 0})

	c := New(fp, nil)
	err := c.Format(context.Background(), "userdata")
	require.NoError(t, err)
	require.Len(t, fp.writes, 2) // opcode frame + name frame
}

func TestReadFlashStopsOnEmptyChunk(t *testing.T) {
	fp := newFakeFramedPort()
	fp.queueFrame(frame.DataTypeProtocol, []byte{0, 0}) // status OK
	fp.queueFrame(frame.DataTypeProtocol, []byte("hello"))
	fp.queueFrame(frame.DataTypeProtocol, []byte{}) // empty -> stop

	c := New(fp, nil)
	var out bytes.Buffer
	err := c.ReadFlash(context.Background(), storage.PartitionKind{Family: storage.Emmc}, 0, 100, &out, nil)
	require.NoError(t, err)
	require.Equal(t, "hello", out.String())
}

func TestAdditiveChecksum(t *testing.T) {
	require.Equal(t, uint16(3), additiveChecksum([]byte{1, 2}))
}
