package device

import (
	"crypto/sha256"
	"encoding/binary"

	"mtkflash/internal/driverror"
)

const (
	seccfgMagicBegin uint32 = 0x4D4D4D4D
	seccfgMagicEnd   uint32 = 0x45454545
	seccfgVersion    uint32 = 4
	seccfgHeaderSize uint32 = 20
	seccfgBlockSize         = 0x200

	LockStateLocked   uint32 = 4
	LockStateUnlocked uint32 = 3
	CriticalLocked    uint32 = 1
	CriticalUnlocked  uint32 = 0
)

// SecCfgV4 is the security-config partition format, spec.md §3: a
// 32-byte header (4-byte begin magic, 24-byte body, 4-byte end magic)
// followed by a SHA-256 hash of the header, the whole block zero-padded
// to a 0x200 boundary.
type SecCfgV4 struct {
	LockState         uint32
	CriticalLockState uint32
	SBootRuntime      uint32
	Algo              uint32
	EncHash           [32]byte
}

// ParseSecCfgV4 decodes a raw seccfg partition image, spec.md §3.
func ParseSecCfgV4(data []byte) (SecCfgV4, error) {
	var cfg SecCfgV4
	if len(data) < 64 {
		return cfg, driverror.New(driverror.Core, "seccfg image too small")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != seccfgMagicBegin {
		return cfg, driverror.New(driverror.Core, "seccfg missing begin magic")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	size := binary.LittleEndian.Uint32(data[8:12])
	if version != seccfgVersion || size != seccfgHeaderSize {
		return cfg, driverror.New(driverror.Core, "seccfg unsupported version/size")
	}
	cfg.LockState = binary.LittleEndian.Uint32(data[12:16])
	cfg.CriticalLockState = binary.LittleEndian.Uint32(data[16:20])
	cfg.SBootRuntime = binary.LittleEndian.Uint32(data[20:24])
	cfg.Algo = binary.LittleEndian.Uint32(data[24:28])
	if binary.LittleEndian.Uint32(data[28:32]) != seccfgMagicEnd {
		return cfg, driverror.New(driverror.Core, "seccfg missing end magic")
	}
	copy(cfg.EncHash[:], data[32:64])
	return cfg, nil
}

// header serializes the 32-byte {begin, version, size, lock_state,
// critical_lock_state, sboot_runtime, algo, end} block the hash covers.
func (cfg SecCfgV4) header() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], seccfgMagicBegin)
	binary.LittleEndian.PutUint32(buf[4:8], seccfgVersion)
	binary.LittleEndian.PutUint32(buf[8:12], seccfgHeaderSize)
	binary.LittleEndian.PutUint32(buf[12:16], cfg.LockState)
	binary.LittleEndian.PutUint32(buf[16:20], cfg.CriticalLockState)
	binary.LittleEndian.PutUint32(buf[20:24], cfg.SBootRuntime)
	binary.LittleEndian.PutUint32(buf[24:28], cfg.Algo)
	binary.LittleEndian.PutUint32(buf[28:32], seccfgMagicEnd)
	return buf
}

// Serialize recomputes the SHA-256 hash over the header, stores it in
// EncHash, and zero-pads to a 0x200 boundary, spec.md §3. The hash is
// written unsealed: no SEJ encryption is applied, and any EncHash value
// set before the call is overwritten.
func (cfg *SecCfgV4) Serialize() []byte {
	header := cfg.header()
	sum := sha256.Sum256(header)
	cfg.EncHash = sum

	block := make([]byte, seccfgBlockSize)
	copy(block, header)
	copy(block[32:], cfg.EncHash[:])
	return block
}

// Lock/Unlock set the canonical lock/critical-lock state pairs spec.md
// §3 defines.
func (cfg *SecCfgV4) Lock() {
	cfg.LockState = LockStateLocked
	cfg.CriticalLockState = CriticalLocked
}

func (cfg *SecCfgV4) Unlock() {
	cfg.LockState = LockStateUnlocked
	cfg.CriticalLockState = CriticalUnlocked
}
