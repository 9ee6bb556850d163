// Package daprotocol defines the common contract both DA-resident wire
// dialects (XFlash v5 in internal/xflash, XML v6 in internal/xmlda)
// implement, spec.md §4.5. The façade (internal/device) talks only to
// this interface, the same way the teacher's controller.go talks to its
// DeviceDriver interface rather than to a concrete USB/kernel backend.
package daprotocol

import (
	"context"
	"io"

	"mtkflash/internal/storage"
)

// ProgressFunc reports done/total bytes for a long-running I/O
// operation. Callers may pass nil to ignore progress.
type ProgressFunc func(done, total uint64)

// BootMode is the reboot target named by original_source/tui/src/cli/
// commands/reboot.rs's RebootAction: Normal, HomeScreen and Fastboot are
// honored by both dialects, while Meta and Test are only meaningful on
// XML and fall back to Normal elsewhere, per that file's own doc comment.
type BootMode int

const (
	BootNormal BootMode = iota
	BootHomeScreen
	BootFastboot
	BootMeta
	BootTest
)

func (m BootMode) String() string {
	switch m {
	case BootNormal:
		return "normal"
	case BootHomeScreen:
		return "home_screen"
	case BootFastboot:
		return "fastboot"
	case BootMeta:
		return "meta"
	case BootTest:
		return "test"
	default:
		return "unknown"
	}
}

// Protocol is the operation set every DA dialect exposes once upload_da
// has completed, spec.md §4.5.
type Protocol interface {
	// UploadDA drives the DA1 upload handshake and, once DA1 is
	// running, uploads and boots DA2.
	UploadDA(ctx context.Context, da1, da2 []byte, da2LoadAddr uint32) error

	ReadFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64, w io.Writer, progress ProgressFunc) error
	WriteFlash(ctx context.Context, kind storage.PartitionKind, address uint64, r io.Reader, size uint64, progress ProgressFunc) error
	EraseFlash(ctx context.Context, kind storage.PartitionKind, address, size uint64) error

	Download(ctx context.Context, partName string, size uint64, r io.Reader, progress ProgressFunc) error
	Upload(ctx context.Context, partName string, w io.Writer, progress ProgressFunc) error
	Format(ctx context.Context, partName string) error

	Read32(ctx context.Context, address uint32) (uint32, error)
	Write32(ctx context.Context, address, value uint32) error

	// Peek reads raw memory through the extensions path; only valid
	// once an extensions payload has been loaded (spec.md §4.6/§4.10).
	Peek(ctx context.Context, address uint32, size uint32) ([]byte, error)

	GetUSBSpeed() (string, error)
	GetStorage() (storage.Info, error)
	GetPartitions() ([]storage.Partition, error)

	// Reboot drives the device into mode. Dialects that cannot honor a
	// requested mode fall back to BootNormal rather than erroring.
	Reboot(ctx context.Context, mode BootMode) error
}
