package preloader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/port"
)

// scriptedPort replays a queue of read chunks and records every write,
// the same fake-transcript approach spec.md §8's end-to-end scenarios
// describe for a fake BROM/preloader peer.
type scriptedPort struct {
	reads   [][]byte
	writes  [][]byte
	kind    port.ConnectionKind
}

func (s *scriptedPort) Open() error  { return nil }
func (s *scriptedPort) Close() error { return nil }
func (s *scriptedPort) IsOpen() bool { return true }

func (s *scriptedPort) ReadExact(buf []byte) error {
	if len(s.reads) == 0 {
		return errEOF
	}
	chunk := s.reads[0]
	s.reads = s.reads[1:]
	copy(buf, chunk)
	return nil
}

func (s *scriptedPort) WriteAll(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	s.writes = append(s.writes, cp)
	return nil
}

func (s *scriptedPort) Flush() error { return nil }
func (s *scriptedPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}
func (s *scriptedPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}
func (s *scriptedPort) ConnectionKind() port.ConnectionKind { return s.kind }
func (s *scriptedPort) Baudrate() int                       { return port.BaudFor(s.kind) }
func (s *scriptedPort) PortName() string                    { return "scripted" }
func (s *scriptedPort) Stats() port.Stats                   { return port.Stats{} }

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errEOF = simpleErr("scripted port exhausted")

func TestGetHWCodeEndianness(t *testing.T) {
	// Payload is BE 0x0707, status is LE 0x0000.
	sp := &scriptedPort{
		kind: port.BROM,
		reads: [][]byte{
			{cmdGetHWCode}, // echo of the opcode byte
			{0x07, 0x07},   // BE payload
			{0x00, 0x00},   // LE status (success)
		},
	}
	conn := New(sp, nil)
	code, err := conn.GetHWCode()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0707), code)
}

func TestGetTargetConfigFlags(t *testing.T) {
	sp := &scriptedPort{
		kind: port.BROM,
		reads: [][]byte{
			{cmdGetTargetConfig},
			{0x00, 0x00, 0x00, 0x07}, // BE 0x00000007: SBC|SLA|DAA
			{0x00, 0x00},
		},
	}
	conn := New(sp, nil)
	tc, err := conn.GetTargetConfig()
	require.NoError(t, err)
	require.True(t, tc.SBC)
	require.True(t, tc.SLA)
	require.True(t, tc.DAA)
}

func TestEchoMismatchIsProtocolError(t *testing.T) {
	sp := &scriptedPort{
		kind:  port.BROM,
		reads: [][]byte{{0xFF}}, // wrong echo byte
	}
	conn := New(sp, nil)
	err := conn.Echo([]byte{cmdGetHWCode})
	require.Error(t, err)
}

func TestJumpDALittleEndianArgument(t *testing.T) {
	sp := &scriptedPort{
		kind: port.BROM,
		reads: [][]byte{
			{cmdJumpDA, 0x00, 0x00, 0x00, 0x40}, // echo of opcode+address
			{0x00, 0x00},
		},
	}
	conn := New(sp, nil)
	err := conn.JumpDA(0x40000000)
	require.NoError(t, err)
	require.Len(t, sp.writes, 1)
	require.Equal(t, []byte{cmdJumpDA, 0x00, 0x00, 0x00, 0x40}, sp.writes[0])
}
