// Package device implements the Device façade (spec.md §4.9, component
// C8): the state machine binding Port, Connection, DA container
// selection/patching, and a protocol dialect into the high-level
// read/write/download operations, plus the shared DeviceInfo record and
// SecCfgV4 lock-state format. Grounded on the teacher's controller.go,
// which plays the same "one façade in front of several backends" role
// for its DeviceDriver implementations.
package device

import (
	"sync"

	"mtkflash/internal/storage"
)

// DeviceInfo is the reference-counted, reader/writer-lock-protected
// record shared between the façade and the active protocol, spec.md
// §3/§5: many concurrent readers (getters), exclusive writers.
type DeviceInfo struct {
	mu sync.RWMutex

	chipset      string
	socID        []byte
	meid         []byte
	hwCode       uint16
	targetConfig uint32
	storageInfo  *storage.Info
	partitions   []storage.Partition

	refCount int32
}

// NewDeviceInfo returns a DeviceInfo with an initial reference count of 1.
func NewDeviceInfo() *DeviceInfo {
	return &DeviceInfo{refCount: 1}
}

// Retain/Release implement the reference-counting spec.md §3 calls for;
// Release returns true when the count reaches zero.
func (d *DeviceInfo) Retain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refCount++
}

func (d *DeviceInfo) Release() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refCount--
	return d.refCount <= 0
}

func (d *DeviceInfo) SetChipset(chipset string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chipset = chipset
}

func (d *DeviceInfo) Chipset() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.chipset
}

func (d *DeviceInfo) SetData(socID, meid []byte, hwCode uint16, targetConfig uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.socID = socID
	d.meid = meid
	d.hwCode = hwCode
	d.targetConfig = targetConfig
}

func (d *DeviceInfo) SoCID() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.socID
}

func (d *DeviceInfo) MEID() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meid
}

func (d *DeviceInfo) HWCode() uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hwCode
}

// TargetConfigBits returns the SBC/SLA/DAA capability bits, spec.md §3.
func (d *DeviceInfo) TargetConfigBits() (sbc, sla, daa bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.targetConfig&0x1 != 0, d.targetConfig&0x2 != 0, d.targetConfig&0x4 != 0
}

func (d *DeviceInfo) SetStorage(info storage.Info) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.storageInfo = &info
}

func (d *DeviceInfo) Storage() (storage.Info, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.storageInfo == nil {
		return storage.Info{}, false
	}
	return *d.storageInfo, true
}

func (d *DeviceInfo) SetPartitions(parts []storage.Partition) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partitions = parts
}

func (d *DeviceInfo) Partitions() []storage.Partition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]storage.Partition, len(d.partitions))
	copy(out, d.partitions)
	return out
}

func (d *DeviceInfo) FindPartition(name string) (storage.Partition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.partitions {
		if p.Name == name {
			return p, true
		}
	}
	return storage.Partition{}, false
}
