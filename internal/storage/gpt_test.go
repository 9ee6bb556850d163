package storage

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/require"
)

func buildGPTFixture(t *testing.T, kind Kind) []byte {
	t.Helper()
	sectorSize := kind.SectorSize()
	total := 3 * sectorSize
	buf := make([]byte, total)

	header := buf[sectorSize:]
	copy(header, []byte(gptSignature))
	binary.LittleEndian.PutUint32(header[80:84], 1) // num entries
	binary.LittleEndian.PutUint32(header[84:88], entrySize)

	entry := buf[2*sectorSize : 2*sectorSize+entrySize]
	for i := 0; i < 16; i++ {
		entry[i] = 0x11 // non-zero type GUID
	}
	binary.LittleEndian.PutUint64(entry[32:40], 10) // first LBA
	binary.LittleEndian.PutUint64(entry[40:48], 19) // last LBA
	name := utf16.Encode([]rune("boot"))
	for i, u := range name {
		binary.LittleEndian.PutUint16(entry[nameOffset+i*2:], u)
	}
	return buf
}

func TestParseGPTEmmc(t *testing.T) {
	buf := buildGPTFixture(t, Emmc)
	parts, err := ParseGPT(buf, Emmc)
	require.NoError(t, err)
	require.Len(t, parts, 3) // 2 synthetic + 1 real

	boot := parts[2]
	require.Equal(t, "boot", boot.Name)
	require.Equal(t, uint64(10*512), boot.Address)
	require.Equal(t, uint64(10*512), boot.Size)
}

func TestParseGPTUfsSectorSize(t *testing.T) {
	buf := buildGPTFixture(t, Ufs)
	parts, err := ParseGPT(buf, Ufs)
	require.NoError(t, err)
	require.Equal(t, uint64(10*4096), parts[2].Address)
}

func TestParseGPTRejectsMissingSignature(t *testing.T) {
	_, err := ParseGPT(make([]byte, 4096), Emmc)
	require.Error(t, err)
}

func TestSyntheticPartitionsPrepended(t *testing.T) {
	parts := SyntheticPreloaderPartitions(Info{Kind: Emmc})
	require.Equal(t, "preloader", parts[0].Name)
	require.Equal(t, "preloader_backup", parts[1].Name)
}
