package dafile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEntry writes one DADA-magic entry at the given offset, with a
// single region record (region index 0).
func buildEntry(buf []byte, offset int, hwCode, hwSubCode uint16, regionOffset, regionLen uint32) {
	binary.LittleEndian.PutUint16(buf[offset:], EntryMagic)
	binary.LittleEndian.PutUint16(buf[offset+2:], hwCode)
	binary.LittleEndian.PutUint16(buf[offset+4:], hwSubCode)
	binary.LittleEndian.PutUint16(buf[offset+regionCountOffset:], 1)

	rec := offset + regionTableOffset
	binary.LittleEndian.PutUint32(buf[rec:], regionOffset)
	binary.LittleEndian.PutUint32(buf[rec+4:], regionLen)
	binary.LittleEndian.PutUint32(buf[rec+8:], 0x40000000)
	binary.LittleEndian.PutUint32(buf[rec+16:], 0)
}

func buildTestContainer(t *testing.T, withV6Marker bool) []byte {
	t.Helper()
	const payloadLen = 16
	const payloadOffset = MinContainerSize + StandardEntrySize*2
	total := payloadOffset + payloadLen

	buf := make([]byte, total)
	copy(buf, []byte("MTK_DOWNLOAD_AGENT"))
	if withV6Marker {
		copy(buf[20:], []byte("MTK_DA_v6"))
	}

	buildEntry(buf, EntryTableOffset, 0x6768, 0, uint32(payloadOffset), payloadLen)
	buildEntry(buf, EntryTableOffset+StandardEntrySize, 0x6785, 1, uint32(payloadOffset), payloadLen)
	return buf
}

func TestParseFindsAllEntries(t *testing.T) {
	buf := buildTestContainer(t, true)
	c, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, V6, c.Dialect)
	require.Len(t, c.Entries, 2)
	require.Equal(t, uint16(0x6768), c.Entries[0].HWCode)
	require.Equal(t, uint16(0x6785), c.Entries[1].HWCode)
}

func TestParseDefaultsToV5WithoutMarker(t *testing.T) {
	buf := buildTestContainer(t, false)
	c, err := Parse(buf)
	require.NoError(t, err)
	require.Equal(t, V5, c.Dialect)
}

func TestParseRejectsTooSmall(t *testing.T) {
	_, err := Parse(make([]byte, 16))
	require.Error(t, err)
}

func TestParseRejectsMissingHeaderTag(t *testing.T) {
	buf := make([]byte, MinContainerSize+StandardEntrySize)
	_, err := Parse(buf)
	require.Error(t, err)
}

func TestSelectByHWCodeMappedExample(t *testing.T) {
	buf := buildTestContainer(t, true)
	c, err := Parse(buf)
	require.NoError(t, err)

	// 0x0707 maps to 0x6768 per the lookup table, matching entry 0.
	entry, err := c.SelectByHWCode(0x0707)
	require.NoError(t, err)
	require.Equal(t, uint16(0x6768), entry.HWCode)
}

func TestSelectByHWCodeUnlistedPassesThrough(t *testing.T) {
	buf := buildTestContainer(t, true)
	c, err := Parse(buf)
	require.NoError(t, err)

	entry, err := c.SelectByHWCode(0x6785)
	require.NoError(t, err)
	require.Equal(t, uint16(1), entry.HWSubCode)
}

func TestSelectByHWCodeUnknownErrors(t *testing.T) {
	buf := buildTestContainer(t, true)
	c, err := Parse(buf)
	require.NoError(t, err)

	_, err = c.SelectByHWCode(0x9999)
	require.Error(t, err)
}
