// Package storage models the detected flash medium (eMMC/UFS/NAND), its
// partition-kind taxonomy, and the GPT parser that turns a raw LBA
// sector range into a partition map, spec.md §3/§4.8, component C7.
package storage

// Kind is the detected storage medium.
type Kind int

const (
	Unknown Kind = iota
	Emmc
	Ufs
	Nand
)

func (k Kind) String() string {
	switch k {
	case Emmc:
		return "emmc"
	case Ufs:
		return "ufs"
	case Nand:
		return "nand"
	default:
		return "unknown"
	}
}

// SectorSize returns the GPT sector size for a storage kind, spec.md
// §4.8: 512 for eMMC/NAND, 4096 for UFS.
func (k Kind) SectorSize() uint64 {
	if k == Ufs {
		return 4096
	}
	return 512
}

// EmmcRegion/UfsLU identify the sub-area a PartitionKind refers to.
type EmmcRegion int

const (
	EmmcBoot1 EmmcRegion = iota
	EmmcBoot2
	EmmcRpmb
	EmmcUser
)

type UfsLU int

const (
	UfsLU0 UfsLU = iota
	UfsLU1
	UfsLU2
	UfsLU3
	UfsLU4
	UfsLU5
	UfsLU6
	UfsLU7
)

// PartitionKind is the tagged variant over storage spec.md §3 defines.
// At most one of the Emmc/Ufs selectors is meaningful, gated by Family;
// Nand has no sub-area selector.
type PartitionKind struct {
	Family  Kind
	Emmc    EmmcRegion
	Ufs     UfsLU
	IsValid bool
}

// UserPartitionKindOf returns the PartitionKind that identifies the
// general user data area for a storage kind, used when tagging GPT
// entries (spec.md §4.8).
func UserPartitionKindOf(kind Kind) PartitionKind {
	switch kind {
	case Emmc:
		return PartitionKind{Family: Emmc, Emmc: EmmcUser, IsValid: true}
	case Ufs:
		return PartitionKind{Family: Ufs, Ufs: UfsLU0, IsValid: true}
	case Nand:
		return PartitionKind{Family: Nand, IsValid: true}
	default:
		return PartitionKind{Family: Unknown}
	}
}

// Partition is one entry in the device's partition map, spec.md §3.
type Partition struct {
	Name    string
	Address uint64
	Size    uint64
	Kind    PartitionKind
}

// EmmcStorage mirrors the fixed-layout eMMC info struct spec.md §4.6
// describes: pl_part1/pl_part2 kinds and sizes, user-partition kind.
type EmmcStorage struct {
	PLPart1Kind  PartitionKind
	PLPart2Kind  PartitionKind
	PLPart1Size  uint64
	PLPart2Size  uint64
	UserCapacity uint64
}

// UfsStorage is the UFS analog of EmmcStorage.
type UfsStorage struct {
	PLPart1Kind  PartitionKind
	PLPart2Kind  PartitionKind
	PLPart1Size  uint64
	PLPart2Size  uint64
	BlockSize    uint64
	UserCapacity uint64
}

// Info is the detected storage medium plus its fixed-layout detail
// struct, spec.md §4.6's "first non-zero response wins" result.
type Info struct {
	Kind  Kind
	Emmc  *EmmcStorage
	Ufs   *UfsStorage
}

// SyntheticPreloaderPartitions returns the two partitions spec.md §3/§4.8
// prepend ahead of whatever the on-device GPT reports: "preloader" at
// offset 0 in pl_part1, "preloader_backup" in pl_part2.
func SyntheticPreloaderPartitions(info Info) []Partition {
	var pl1Kind, pl2Kind PartitionKind
	var pl1Size, pl2Size uint64
	switch info.Kind {
	case Emmc:
		if info.Emmc != nil {
			pl1Kind, pl2Kind = info.Emmc.PLPart1Kind, info.Emmc.PLPart2Kind
			pl1Size, pl2Size = info.Emmc.PLPart1Size, info.Emmc.PLPart2Size
		}
	case Ufs:
		if info.Ufs != nil {
			pl1Kind, pl2Kind = info.Ufs.PLPart1Kind, info.Ufs.PLPart2Kind
			pl1Size, pl2Size = info.Ufs.PLPart1Size, info.Ufs.PLPart2Size
		}
	}
	return []Partition{
		{Name: "preloader", Address: 0, Size: pl1Size, Kind: pl1Kind},
		{Name: "preloader_backup", Address: 0, Size: pl2Size, Kind: pl2Kind},
	}
}
