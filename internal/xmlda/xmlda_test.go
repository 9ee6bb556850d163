package xmlda

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/frame"
	"mtkflash/internal/port"
)

type fakeXMLPort struct {
	rx     [][]byte
	writes [][]byte
	kind   port.ConnectionKind
}

func (f *fakeXMLPort) queueText(s string) {
	f.rx = append(f.rx, frame.Encode(frame.DataTypeProtocol, []byte(s+"\x00")))
}

func (f *fakeXMLPort) Open() error  { return nil }
func (f *fakeXMLPort) Close() error { return nil }
func (f *fakeXMLPort) IsOpen() bool { return true }

func (f *fakeXMLPort) ReadExact(buf []byte) error {
	for len(f.rx) > 0 && len(f.rx[0]) == 0 {
		f.rx = f.rx[1:]
	}
	if len(f.rx) == 0 {
		return errXMLEOF
	}
	n := copy(buf, f.rx[0])
	f.rx[0] = f.rx[0][n:]
	return nil
}

func (f *fakeXMLPort) WriteAll(buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeXMLPort) Flush() error { return nil }
func (f *fakeXMLPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}
func (f *fakeXMLPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}
func (f *fakeXMLPort) ConnectionKind() port.ConnectionKind { return f.kind }
func (f *fakeXMLPort) Baudrate() int                       { return port.BaudFor(f.kind) }
func (f *fakeXMLPort) PortName() string                    { return "fake-xml" }
func (f *fakeXMLPort) Stats() port.Stats                   { return port.Stats{} }

type xmlEOFErr string

func (e xmlEOFErr) Error() string { return string(e) }

const errXMLEOF = xmlEOFErr("fake XML port exhausted")

func TestExpectOKParsesHexTail(t *testing.T) {
	fp := &fakeXMLPort{kind: port.DA}
	fp.queueText("OK@0x1000")
	c := New(fp)
	tail, err := c.expectOK()
	require.NoError(t, err)
	require.Equal(t, "1000", tail)
}

func TestExpectOKSurfacesUnsupported(t *testing.T) {
	fp := &fakeXMLPort{kind: port.DA}
	fp.queueText("ERR!UNSUPPORTED")
	c := New(fp)
	_, err := c.expectOK()
	require.Error(t, err)
}

func TestContainsCommandMatchesLifetimeMarker(t *testing.T) {
	require.True(t, containsCommand("<command>CMD:START</command>", "CMD:START"))
	require.False(t, containsCommand("<command>CMD:END</command>", "CMD:START"))
}

func TestExtractArgParsesPacketLength(t *testing.T) {
	text := "<arg><packet_length>512</packet_length></arg>"
	require.Equal(t, "512", extractArg(text, "packet_length"))
}

func TestHexArgFormatsNonZero(t *testing.T) {
	require.Equal(t, "0x40000000", hexArg(0x40000000))
	require.Equal(t, "0x0", hexArg(0))
}
