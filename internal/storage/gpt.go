package storage

import (
	"encoding/binary"
	"unicode/utf16"

	"mtkflash/internal/driverror"
)

const (
	gptHeaderLBA      = 1
	gptEntryArrayLBA  = 2
	gptSignature      = "EFI PART"
	entrySize         = 128
	nameOffset        = 56
	nameMaxUTF16Units = 36
)

// ParseGPT parses a GUID Partition Table from raw bytes spanning at
// least LBA 1 and the entry array at LBA 2, spec.md §4.8. Partitions
// are returned prepended with the two synthetic preloader entries.
func ParseGPT(data []byte, kind Kind) ([]Partition, error) {
	sectorSize := kind.SectorSize()

	headerOff := gptHeaderLBA * sectorSize
	if uint64(len(data)) < headerOff+92 {
		return nil, driverror.New(driverror.Core, "GPT header truncated")
	}
	header := data[headerOff:]
	if string(header[0:8]) != gptSignature {
		return nil, driverror.New(driverror.Core, "missing EFI PART signature")
	}

	numEntries := binary.LittleEndian.Uint32(header[80:84])
	entrySizeFromHeader := binary.LittleEndian.Uint32(header[84:88])
	if entrySizeFromHeader == 0 {
		entrySizeFromHeader = entrySize
	}

	arrayOff := gptEntryArrayLBA * sectorSize
	partitions := SyntheticPreloaderPartitions(Info{Kind: kind})
	userKind := UserPartitionKindOf(kind)

	for i := uint32(0); i < numEntries; i++ {
		off := arrayOff + uint64(i)*uint64(entrySizeFromHeader)
		if off+entrySize > uint64(len(data)) {
			break
		}
		entry := data[off : off+entrySize]

		typeGUID := entry[0:16]
		if isZeroGUID(typeGUID) {
			continue
		}

		firstLBA := binary.LittleEndian.Uint64(entry[32:40])
		lastLBA := binary.LittleEndian.Uint64(entry[40:48])
		name := decodeUTF16Name(entry[nameOffset : nameOffset+nameMaxUTF16Units*2])

		partitions = append(partitions, Partition{
			Name:    name,
			Address: firstLBA * sectorSize,
			Size:    (lastLBA - firstLBA + 1) * sectorSize,
			Kind:    userKind,
		})
	}

	return partitions, nil
}

func isZeroGUID(g []byte) bool {
	for _, b := range g {
		if b != 0 {
			return false
		}
	}
	return true
}

func decodeUTF16Name(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := binary.LittleEndian.Uint16(raw[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
