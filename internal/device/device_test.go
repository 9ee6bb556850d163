package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/daprotocol"
	"mtkflash/internal/port"
)

type noopPort struct{ kind port.ConnectionKind }

func (p *noopPort) Open() error  { return nil }
func (p *noopPort) Close() error { return nil }
func (p *noopPort) IsOpen() bool { return true }
func (p *noopPort) ReadExact(buf []byte) error {
	for i := range buf {
		buf[i] = 0
	}
	return nil
}
func (p *noopPort) WriteAll(buf []byte) error { return nil }
func (p *noopPort) Flush() error              { return nil }
func (p *noopPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	return nil
}
func (p *noopPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	return 0, nil
}
func (p *noopPort) ConnectionKind() port.ConnectionKind { return p.kind }
func (p *noopPort) Baudrate() int                       { return port.BaudFor(p.kind) }
func (p *noopPort) PortName() string                    { return "noop" }
func (p *noopPort) Stats() port.Stats                   { return port.Stats{} }

func TestEnterDAModeRequiresInitialized(t *testing.T) {
	d := New(&noopPort{kind: port.DA}, nil)
	factory := func(p port.Port) daprotocol.Protocol { return nil }
	err := d.EnterDAMode(context.Background(), make([]byte, 0x200), factory)
	require.Error(t, err)
}

func TestOperationsRequireDAMode(t *testing.T) {
	d := New(&noopPort{kind: port.DA}, nil)
	_, err := d.ReadPartition(context.Background(), "boot", nil)
	require.Error(t, err)

	err = d.WritePartition(context.Background(), "boot", []byte("x"), nil)
	require.Error(t, err)
}

func TestInitRequiresBuiltState(t *testing.T) {
	d := New(&noopPort{kind: port.DA}, nil)
	d.state = InDa
	err := d.Init()
	require.Error(t, err)
}
