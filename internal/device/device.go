package device

import (
	"bytes"
	"context"
	"sync"

	"mtkflash/internal/dafile"
	"mtkflash/internal/daprotocol"
	"mtkflash/internal/driverror"
	"mtkflash/internal/exploits"
	"mtkflash/internal/logging"
	"mtkflash/internal/patcher"
	"mtkflash/internal/port"
	"mtkflash/internal/preloader"
	"mtkflash/internal/storage"
)

// State is the façade's monotone lifecycle, spec.md §4.9:
// Built -> Initialized -> InDa.
type State int

const (
	Built State = iota
	Initialized
	InDa
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Initialized:
		return "initialized"
	case InDa:
		return "in_da"
	default:
		return "unknown"
	}
}

// Device is the single entry point spec.md §4.9 describes: it owns the
// Port/Connection, drives the handshake and DA upload, and dispatches
// high-level operations to whichever protocol dialect ends up active.
type Device struct {
	mu    sync.Mutex
	state State

	conn *preloader.Connection
	info *DeviceInfo
	log  *logging.Logger

	protocol daprotocol.Protocol

	kamakiri2 exploits.Runner
	carbonara exploits.Runner
}

// New builds a Device bound to an already-open Port, in the Built state.
func New(p port.Port, log *logging.Logger) *Device {
	if log == nil {
		log = logging.Discard()
	}
	return &Device{
		state: Built,
		conn:  preloader.New(p, log),
		info:  NewDeviceInfo(),
		log:   log,
	}
}

// WithExploits registers the optional Kamakiri2 (DA1) and Carbonara
// (DA2) runners, spec.md §4.10. Passing nil for either disables that
// runner; with Carbonara nil, EnterDAMode applies the V5 patcher to DA2.
func (d *Device) WithExploits(kamakiri2, carbonara exploits.Runner) {
	d.kamakiri2 = kamakiri2
	d.carbonara = carbonara
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) requireState(want State) error {
	if d.state != want {
		return driverror.New(driverror.Core, "device is not in the required state for this operation")
	}
	return nil
}

// Init runs the BROM/preloader handshake and all metadata queries,
// filling DeviceInfo, spec.md §4.9.
func (d *Device) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireState(Built); err != nil {
		return err
	}

	if err := d.conn.Handshake(); err != nil {
		return err
	}

	hwCode, err := d.conn.GetHWCode()
	if err != nil {
		return err
	}
	socID, err := d.conn.GetSOCID()
	if err != nil {
		return err
	}
	meid, err := d.conn.GetMEID()
	if err != nil {
		return err
	}
	tc, err := d.conn.GetTargetConfig()
	if err != nil {
		return err
	}

	d.info.SetData(socID, meid, hwCode, tc.Raw)
	d.state = Initialized
	return nil
}

// EnterDAMode parses the DA container, selects the entry matching the
// device's reported hw_code, optionally runs the Kamakiri2/Carbonara
// exploits and the V5 patcher, uploads DA1+DA2, and switches into DA
// mode, spec.md §4.9.
func (d *Device) EnterDAMode(ctx context.Context, daData []byte, protocolFactory func(port.Port) daprotocol.Protocol) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireState(Initialized); err != nil {
		return err
	}

	container, err := dafile.Parse(daData)
	if err != nil {
		return err
	}
	entry, err := container.SelectByHWCode(d.info.HWCode())
	if err != nil {
		return err
	}
	da1Region, err := entry.Region(dafile.RegionDA1)
	if err != nil {
		return err
	}
	da2Region, err := entry.Region(dafile.RegionDA2)
	if err != nil {
		return err
	}

	da1Bytes := da1Region.Bytes
	da2Bytes := da2Region.Bytes

	if d.kamakiri2 != nil {
		if patched, ok := d.runExploit(d.kamakiri2, da1Bytes); ok {
			da1Bytes = patched
		}
	}
	if d.carbonara != nil {
		if patched, ok := d.runExploit(d.carbonara, da2Bytes); ok {
			da2Bytes = patched
		}
	} else {
		// Patcher failure is non-fatal, spec.md §4.4: fall back to the
		// original DA2 bytes on any error.
		if result, err := patcher.Patch(da2Bytes, da2Region.LoadAddr); err == nil {
			da2Bytes = result.Data
		}
	}

	if err := d.conn.SendDA(da1Bytes, da1Region.LoadAddr, da1Region.SigLen); err != nil {
		return err
	}

	protocol := protocolFactory(d.conn.Port)
	if err := protocol.UploadDA(ctx, da1Bytes, da2Bytes, da2Region.LoadAddr); err != nil {
		return err
	}
	d.protocol = protocol
	d.state = InDa

	if info, err := protocol.GetStorage(); err == nil {
		d.info.SetStorage(info)
		if parts, err := protocol.GetPartitions(); err == nil {
			d.info.SetPartitions(parts)
		}
	}

	return nil
}

func (d *Device) runExploit(runner exploits.Runner, da []byte) ([]byte, bool) {
	result, err := runner.Run(append([]byte(nil), da...))
	if err != nil {
		d.log.Warn("exploit runner failed, continuing with unpatched DA: %v", err)
		return nil, false
	}
	return result, true
}

func (d *Device) protocolOrErr() (daprotocol.Protocol, error) {
	if d.protocol == nil {
		return nil, driverror.New(driverror.Core, "device is not in DA mode")
	}
	return d.protocol, nil
}

// FindPartition looks up a partition by name from the table read during
// EnterDAMode, letting callers size a progress bar before issuing the
// read/write.
func (d *Device) FindPartition(name string) (storage.Partition, bool) {
	return d.info.FindPartition(name)
}

// ReadPartition reads an entire named partition's contents.
func (d *Device) ReadPartition(ctx context.Context, name string, progress daprotocol.ProgressFunc) ([]byte, error) {
	proto, err := d.protocolOrErr()
	if err != nil {
		return nil, err
	}
	part, ok := d.info.FindPartition(name)
	if !ok {
		return nil, driverror.ErrPartitionNotFound
	}
	var buf bytes.Buffer
	if err := proto.ReadFlash(ctx, part.Kind, part.Address, part.Size, &buf, progress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePartition writes data into a named partition, failing if data is
// larger than the partition, spec.md §3 edge case.
func (d *Device) WritePartition(ctx context.Context, name string, data []byte, progress daprotocol.ProgressFunc) error {
	proto, err := d.protocolOrErr()
	if err != nil {
		return err
	}
	part, ok := d.info.FindPartition(name)
	if !ok {
		return driverror.ErrPartitionNotFound
	}
	if uint64(len(data)) > part.Size {
		return driverror.ErrSizeExceedsPartition
	}
	return proto.WriteFlash(ctx, part.Kind, part.Address, bytes.NewReader(data), uint64(len(data)), progress)
}

// ReadOffset/WriteOffset operate on a raw byte range within a storage
// kind rather than a named partition, spec.md §4.9.
func (d *Device) ReadOffset(ctx context.Context, address, size uint64, kind storage.PartitionKind) ([]byte, error) {
	proto, err := d.protocolOrErr()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := proto.ReadFlash(ctx, kind, address, size, &buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Device) WriteOffset(ctx context.Context, address uint64, data []byte, kind storage.PartitionKind) error {
	proto, err := d.protocolOrErr()
	if err != nil {
		return err
	}
	return proto.WriteFlash(ctx, kind, address, bytes.NewReader(data), uint64(len(data)), nil)
}

// Download flashes data to a named partition via the protocol's
// flash-by-name path.
func (d *Device) Download(ctx context.Context, name string, data []byte) error {
	proto, err := d.protocolOrErr()
	if err != nil {
		return err
	}
	return proto.Download(ctx, name, uint64(len(data)), bytes.NewReader(data), nil)
}

// Partitions returns the partition table read during EnterDAMode.
func (d *Device) Partitions() []storage.Partition {
	return d.info.Partitions()
}

// Peek reads raw memory through the active protocol's extensions path,
// spec.md §4.6/§4.10, matching original_source/tui/src/cli/commands/
// peek.rs's "DA Extensions must be loaded" precondition.
func (d *Device) Peek(ctx context.Context, address uint32, size uint32) ([]byte, error) {
	proto, err := d.protocolOrErr()
	if err != nil {
		return nil, err
	}
	return proto.Peek(ctx, address, size)
}

// Reboot drives the device into mode via the active protocol.
func (d *Device) Reboot(ctx context.Context, mode daprotocol.BootMode) error {
	proto, err := d.protocolOrErr()
	if err != nil {
		return err
	}
	return proto.Reboot(ctx, mode)
}

// ReadAllPartitions reads every partition in the table, synthesizing a
// 4MiB "preloader" entry at offset 0 when the table doesn't already
// carry one, matching original_source/tui/src/cli/commands/readall.rs.
// Names in skip are excluded. onPartition is called after each
// partition finishes, receiving its name and contents. No progress is
// reported within a single partition's read: each read is issued with a
// nil ProgressFunc.
func (d *Device) ReadAllPartitions(ctx context.Context, skip map[string]bool, onPartition func(name string, data []byte)) error {
	parts := d.info.Partitions()

	havePreloader := false
	for _, p := range parts {
		if p.Name == "preloader" {
			havePreloader = true
			break
		}
	}
	if !havePreloader && !skip["preloader"] {
		const preloaderSize = 4 * 1024 * 1024
		data, err := d.ReadOffset(ctx, 0, preloaderSize, storage.PartitionKind{})
		if err != nil {
			return err
		}
		if onPartition != nil {
			onPartition("preloader", data)
		}
	}

	for _, p := range parts {
		if skip[p.Name] {
			continue
		}
		data, err := d.ReadPartition(ctx, p.Name, nil)
		if err != nil {
			return err
		}
		if onPartition != nil {
			onPartition(p.Name, data)
		}
	}
	return nil
}

// SetSecCfgLockState reads the seccfg partition, parses it, applies the
// requested lock state, recomputes the hash, and writes it back,
// spec.md §4.9. SEJ sealing of the hash is out of scope (external
// hardware) — see seccfg.go's Serialize doc comment.
func (d *Device) SetSecCfgLockState(ctx context.Context, lock bool) error {
	raw, err := d.ReadPartition(ctx, "seccfg", nil)
	if err != nil {
		return err
	}
	cfg, err := ParseSecCfgV4(raw)
	if err != nil {
		return err
	}
	if lock {
		cfg.Lock()
	} else {
		cfg.Unlock()
	}
	block := cfg.Serialize()
	return d.WritePartition(ctx, "seccfg", block, nil)
}
