package port

import (
	"mtkflash/internal/logging"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePort replays a scripted sequence of single-byte reads, one per
// ReadExact(1-byte-buf) call, and ignores what is written, matching the
// fake-device transcript style spec.md §8 describes for testable
// properties.
type fakePort struct {
	rx    [][]byte
	idx   int
	kind  ConnectionKind
	open  bool
}

func newFakePort(kind ConnectionKind, rx [][]byte) *fakePort {
	return &fakePort{rx: rx, kind: kind, open: true}
}

func (f *fakePort) Open() error  { f.open = true; return nil }
func (f *fakePort) Close() error { f.open = false; return nil }
func (f *fakePort) IsOpen() bool { return f.open }

func (f *fakePort) ReadExact(buf []byte) error {
	if f.idx >= len(f.rx) {
		// Ran out of script: never match, forcing a restart loop until
		// the handshake retry budget is exhausted.
		for i := range buf {
			buf[i] = 0x00
		}
		return nil
	}
	copy(buf, f.rx[f.idx])
	f.idx++
	return nil
}

func (f *fakePort) WriteAll(buf []byte) error { return nil }
func (f *fakePort) Flush() error              { return nil }

func (f *fakePort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}
func (f *fakePort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}

func (f *fakePort) ConnectionKind() ConnectionKind { return f.kind }
func (f *fakePort) Baudrate() int                  { return BaudFor(f.kind) }
func (f *fakePort) PortName() string               { return "fake" }
func (f *fakePort) Stats() Stats                   { return Stats{} }

func rxBytes(b [4]byte) [][]byte {
	return [][]byte{{b[0]}, {b[1]}, {b[2]}, {b[3]}}
}

func TestHandshakeCompletesOnValidTranscript(t *testing.T) {
	p := newFakePort(BROM, rxBytes(handshakeRx))
	err := Handshake(p, logging.Discard())
	require.NoError(t, err)
}

func TestHandshakeMutatedByteForcesRestart(t *testing.T) {
	mutated := handshakeRx
	mutated[2] ^= 0xFF
	rx := rxBytes(mutated)
	rx = append(rx, rxBytes(handshakeRx)...) // unread 4th byte fails attempt 2; attempt 3 succeeds
	p := newFakePort(BROM, rx)
	err := Handshake(p, logging.Discard())
	require.NoError(t, err)
}

func TestHandshakeAlreadyPastCompletesImmediately(t *testing.T) {
	p := newFakePort(BROM, [][]byte{{0xA0}})
	err := Handshake(p, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, 1, p.idx)
}

func TestHandshakeSkippedOnDAPort(t *testing.T) {
	p := newFakePort(DA, nil)
	err := Handshake(p, logging.Discard())
	require.NoError(t, err)
	require.Equal(t, 0, p.idx)
}

func TestHandshakeGivesUpAfterRetries(t *testing.T) {
	p := newFakePort(BROM, nil) // never matches
	err := Handshake(p, logging.Discard())
	require.Error(t, err)
}
