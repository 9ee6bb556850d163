package xflash

import (
	"bytes"
	"context"
	"encoding/binary"

	"mtkflash/internal/daprotocol"
	"mtkflash/internal/driverror"
	"mtkflash/internal/storage"
)

// GetStorage implements storage detection, spec.md §4.6: probe
// GetEmmcInfo then GetUfsInfo; the first response whose bytes are not
// all zero wins.
func (c *Client) GetStorage() (storage.Info, error) {
	if payload, err := c.probeStorage(cmdGetEmmcInfo); err == nil && nonZero(payload) {
		return storage.Info{Kind: storage.Emmc, Emmc: decodeEmmcInfo(payload)}, nil
	}
	if payload, err := c.probeStorage(cmdGetUfsInfo); err == nil && nonZero(payload) {
		return storage.Info{Kind: storage.Ufs, Ufs: decodeUfsInfo(payload)}, nil
	}
	return storage.Info{Kind: storage.Unknown}, driverror.New(driverror.XFlash, "no storage medium reported non-zero info")
}

func (c *Client) probeStorage(opcode uint32) ([]byte, error) {
	if err := c.sendCmd(opcode); err != nil {
		return nil, err
	}
	_, payload, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func nonZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

func decodeEmmcInfo(payload []byte) *storage.EmmcStorage {
	info := &storage.EmmcStorage{
		PLPart1Kind: storage.PartitionKind{Family: storage.Emmc, Emmc: storage.EmmcBoot1, IsValid: true},
		PLPart2Kind: storage.PartitionKind{Family: storage.Emmc, Emmc: storage.EmmcBoot2, IsValid: true},
	}
	if len(payload) >= 24 {
		info.PLPart1Size = binary.LittleEndian.Uint64(payload[0:8])
		info.PLPart2Size = binary.LittleEndian.Uint64(payload[8:16])
		info.UserCapacity = binary.LittleEndian.Uint64(payload[16:24])
	}
	return info
}

func decodeUfsInfo(payload []byte) *storage.UfsStorage {
	info := &storage.UfsStorage{
		PLPart1Kind: storage.PartitionKind{Family: storage.Ufs, Ufs: storage.UfsLU0, IsValid: true},
		PLPart2Kind: storage.PartitionKind{Family: storage.Ufs, Ufs: storage.UfsLU1, IsValid: true},
	}
	if len(payload) >= 32 {
		info.PLPart1Size = binary.LittleEndian.Uint64(payload[0:8])
		info.PLPart2Size = binary.LittleEndian.Uint64(payload[8:16])
		info.BlockSize = binary.LittleEndian.Uint64(payload[16:24])
		info.UserCapacity = binary.LittleEndian.Uint64(payload[24:32])
	}
	return info
}

// GetPartitions reads the on-device GPT (from LBA 0 through the entry
// array) and parses it, spec.md §4.8.
func (c *Client) GetPartitions() ([]storage.Partition, error) {
	info, err := c.GetStorage()
	if err != nil {
		return nil, err
	}
	sectorSize := info.Kind.SectorSize()
	gptSpan := sectorSize * 34 // header + entry array, standard 128-entry GPT

	var buf bytes.Buffer
	userKind := storage.UserPartitionKindOf(info.Kind)
	if err := c.ReadFlash(context.Background(), userKind, 0, gptSpan, &buf, nil); err != nil {
		return nil, err
	}
	return storage.ParseGPT(buf.Bytes(), info.Kind)
}

// GetUSBSpeed reports the negotiated USB transfer speed. XFlash has no
// dedicated opcode for this in spec.md; it is derived from the
// negotiated packet sizes instead, matching the spirit of "cache both;
// they govern chunk sizes" in §4.6 without inventing a wire command.
func (c *Client) GetUSBSpeed() (string, error) {
	if c.writePacketSize >= 1024*1024 {
		return "high-speed (large packets)", nil
	}
	return "full-speed", nil
}

var _ daprotocol.Protocol = (*Client)(nil)
