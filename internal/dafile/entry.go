// Package dafile parses the vendor multi-SoC Download Agent container
// (spec.md §3/§4.3, component C3): dissecting the DADA-magic entry table,
// classifying which of the three wire dialects an entry speaks, and
// selecting the entry matching a connected chip's hw_code. There is no
// general-purpose binary container parser in the example pack to build
// on — the teacher itself hand-rolls its own framed binary formats
// (BuildTxTaskFromHeader, ParseRxNonce in usb_device.go) with
// encoding/binary rather than a parsing library, so this package follows
// the same idiom.
package dafile

import (
	"encoding/binary"

	"mtkflash/internal/driverror"
)

type Dialect int

const (
	V5 Dialect = iota
	V6
	Legacy
)

func (d Dialect) String() string {
	switch d {
	case V5:
		return "v5"
	case V6:
		return "v6"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

const (
	EntryMagic = 0xDADA

	HeaderSize         = 0x6C
	EntryTableOffset   = 0x6C
	LegacyEntrySize    = 0xD8
	StandardEntrySize  = 0xDC
	MinContainerSize   = 0x148

	regionCountOffset = 0x12
	regionTableOffset = 0x14
	regionRecordSize  = 20

	// Region index 0 is metadata, 1 is DA1, 2 is DA2 (spec.md §3).
	RegionMetadata = 0
	RegionDA1      = 1
	RegionDA2      = 2
)

// DARegion is one slice of the container, spec.md §3.
type DARegion struct {
	Offset       uint32
	Length       uint32
	LoadAddr     uint32
	RegionLength uint32
	SigLen       uint32
	Bytes        []byte
}

// DAEntry is one per-SoC entry in the container, spec.md §3.
type DAEntry struct {
	Magic      uint16
	HWCode     uint16
	HWSubCode  uint16
	Dialect    Dialect
	Regions    []DARegion
}

func parseEntry(data []byte, offset int, entrySize int, dialect Dialect) (DAEntry, bool) {
	if offset+entrySize > len(data) {
		return DAEntry{}, false
	}
	entry := data[offset : offset+entrySize]

	magic := binary.LittleEndian.Uint16(entry[0:2])
	if magic != EntryMagic {
		return DAEntry{}, false
	}

	hwCode := binary.LittleEndian.Uint16(entry[2:4])
	hwSubCode := binary.LittleEndian.Uint16(entry[4:6])
	regionCount := binary.LittleEndian.Uint16(entry[regionCountOffset : regionCountOffset+2])

	regions := make([]DARegion, 0, regionCount)
	for i := 0; i < int(regionCount); i++ {
		recOff := regionTableOffset + i*regionRecordSize
		if recOff+regionRecordSize > len(entry) {
			break
		}
		rec := entry[recOff : recOff+regionRecordSize]
		region := DARegion{
			Offset:   binary.LittleEndian.Uint32(rec[0:4]),
			Length:   binary.LittleEndian.Uint32(rec[4:8]),
			LoadAddr: binary.LittleEndian.Uint32(rec[8:12]),
			SigLen:   binary.LittleEndian.Uint32(rec[16:20]),
		}
		region.RegionLength = region.Length - region.SigLen
		if int(region.Offset+region.Length) <= len(data) {
			region.Bytes = data[region.Offset : region.Offset+region.Length]
		}
		regions = append(regions, region)
	}

	return DAEntry{Magic: magic, HWCode: hwCode, HWSubCode: hwSubCode, Dialect: dialect, Regions: regions}, true
}

// Region returns the region at index, or an error if it's absent.
func (e DAEntry) Region(index int) (DARegion, error) {
	if index < 0 || index >= len(e.Regions) {
		return DARegion{}, driverror.New(driverror.Core, "DA entry has no such region")
	}
	return e.Regions[index], nil
}
