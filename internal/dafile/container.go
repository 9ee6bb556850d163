package dafile

import (
	"bytes"

	"mtkflash/internal/driverror"
)

var (
	headerTag    = []byte("MTK_DOWNLOAD_AGENT")
	v6Marker     = []byte("MTK_DA_v6")
	secroMarker  = []byte("AND_SECRO_v")
)

// Container holds a parsed DA file: raw bytes, its classified dialect,
// and the entries found in its table, spec.md §3.
type Container struct {
	Raw     []byte
	Dialect Dialect
	Entries []DAEntry
}

// Parse dissects a raw DA file per spec.md §4.3: classify the dialect,
// pick an entry size, walk the entry table from EntryTableOffset until
// the magic stops matching, then re-check each entry's DA2 region for
// the legacy AND_SECRO_v marker.
func Parse(data []byte) (*Container, error) {
	if len(data) < MinContainerSize {
		return nil, driverror.New(driverror.Core, "DA file too small")
	}
	if !bytes.Contains(data[:HeaderSize], headerTag) {
		return nil, driverror.New(driverror.Core, "missing MTK_DOWNLOAD_AGENT header tag")
	}

	dialect := classifyHeader(data)
	if dialect != V6 && legacyMagicAtEntryOffset(data) {
		dialect = Legacy
	}
	entrySize := StandardEntrySize
	if dialect == Legacy {
		entrySize = LegacyEntrySize
	}

	var entries []DAEntry
	offset := EntryTableOffset
	for {
		entry, ok := parseEntry(data, offset, entrySize, dialect)
		if !ok {
			break
		}
		entries = append(entries, entry)
		offset += entrySize
	}

	if len(entries) == 0 {
		return nil, driverror.New(driverror.Core, "no valid DA entries found")
	}

	if dialect != Legacy && containsSecroInDA2(entries) {
		dialect = Legacy
		for i := range entries {
			entries[i].Dialect = Legacy
		}
	}

	return &Container{Raw: data, Dialect: dialect, Entries: entries}, nil
}

// classifyHeader applies the marker rule of spec.md §4.3's dialect
// inference: the "MTK_DA_v6" marker upgrades to V6, otherwise default to
// V5 pending the legacy-magic and AND_SECRO_v downgrade checks.
func classifyHeader(data []byte) Dialect {
	if bytes.Contains(data[:HeaderSize], v6Marker) {
		return V6
	}
	return V5
}

// legacyMagicAtEntryOffset reports whether the entry table only parses
// as a valid DADA-magic entry under the legacy (0xD8-byte) entry size,
// not the standard (0xDC-byte) one: the "legacy magic offset" rule of
// spec.md §4.3, where a shorter legacy entry shifts where the magic of
// the *second* entry is expected to fall.
func legacyMagicAtEntryOffset(data []byte) bool {
	if EntryTableOffset+StandardEntrySize > len(data) {
		return false
	}
	magicAtStandard := uint16(data[EntryTableOffset+StandardEntrySize]) |
		uint16(data[EntryTableOffset+StandardEntrySize+1])<<8
	if magicAtStandard == EntryMagic {
		return false
	}
	if EntryTableOffset+LegacyEntrySize+2 > len(data) {
		return false
	}
	magicAtLegacy := uint16(data[EntryTableOffset+LegacyEntrySize]) |
		uint16(data[EntryTableOffset+LegacyEntrySize+1])<<8
	return magicAtLegacy == EntryMagic
}

func containsSecroInDA2(entries []DAEntry) bool {
	for _, e := range entries {
		da2, err := e.Region(RegionDA2)
		if err != nil || da2.Bytes == nil {
			continue
		}
		if bytes.Contains(da2.Bytes, secroMarker) {
			return true
		}
	}
	return false
}
