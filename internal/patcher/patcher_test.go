package patcher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildUnpatchedDA2() []byte {
	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xEE
	}
	copy(buf[16:], Patterns[0].Pattern)  // dagent_reg_cmds
	copy(buf[48:], Patterns[1].Pattern)  // devc_read_register
	copy(buf[96:], Patterns[2].Pattern)  // unsupported_cmd
	copy(buf[128:], Patterns[3].Pattern) // register_major_cmd
	return buf
}

func TestPatchNoOpWhenAlreadyPresent(t *testing.T) {
	buf := append([]byte("cmd_boot_to already here"), buildUnpatchedDA2()...)
	result, err := Patch(buf, 0x40000000)
	require.NoError(t, err)
	require.False(t, result.Patched)
	require.Equal(t, buf, result.Data)
}

func TestPatchAppliesAndPreservesLength(t *testing.T) {
	buf := buildUnpatchedDA2()
	result, err := Patch(buf, 0x40000000)
	require.NoError(t, err)
	require.True(t, result.Patched)
	require.Len(t, result.Data, len(buf))
	require.NotEqual(t, buf, result.Data)
}

func TestPatchMissingSignatureErrors(t *testing.T) {
	buf := make([]byte, 512)
	_, err := Patch(buf, 0x40000000)
	require.Error(t, err)
}

func TestThumbAddrSetsLowBit(t *testing.T) {
	require.Equal(t, uint32(0x40000101), thumbAddr(0x40000000, 0x100))
}

func TestBuildRegistrationSequenceIsFourByteAligned(t *testing.T) {
	seq := buildRegistrationSequence(0x40000010, 0x40000080, 0x40000101)
	require.Equal(t, 0, len(seq)%4)
}

func TestBuildRegistrationSequenceNeedsNoNopPadding(t *testing.T) {
	// movw/movt r0, movw/movt r1 and the BL are five 4-byte Thumb-2
	// instructions, so the stream is already aligned and ends with the BL.
	seq := buildRegistrationSequence(0x40000010, 0x40000080, 0x40000101)
	require.Len(t, seq, 20)
	require.Equal(t, encodeBL(0x40000010+16, 0x40000080), seq[16:])
	require.False(t, bytes.Equal(seq[16:], thumbNop))
}
