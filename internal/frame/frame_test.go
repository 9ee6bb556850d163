package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01},
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for _, p := range payloads {
		encoded := Encode(DataTypeProtocol, p)
		hdr, got, err := ReadPayload(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, DataTypeProtocol, hdr.DataType)
		require.Equal(t, uint32(len(p)), hdr.Length)
		require.Equal(t, p, got)
	}
}

func TestBadMagic(t *testing.T) {
	buf := Encode(DataTypeProtocol, []byte{1, 2, 3})
	buf[0] ^= 0xFF
	_, _, err := ReadPayload(bytes.NewReader(buf))
	require.Error(t, err)
}

func TestDecodeStatus(t *testing.T) {
	require.True(t, StatusOK(DecodeStatus([]byte{0, 0})))
	require.True(t, StatusOK(DecodeStatus([]byte{0x53, 0x59, 0x4E, 0x43})))
	require.True(t, StatusOK(DecodeStatus([]byte{0xEF, 0xEE, 0xEE, 0xFE})))
	require.False(t, StatusOK(DecodeStatus([]byte{0x01, 0x00})))
}
