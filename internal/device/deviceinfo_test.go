package device

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mtkflash/internal/storage"
)

func TestDeviceInfoTargetConfigBits(t *testing.T) {
	info := NewDeviceInfo()
	info.SetData(nil, nil, 0x6768, 0x7)
	sbc, sla, daa := info.TargetConfigBits()
	require.True(t, sbc)
	require.True(t, sla)
	require.True(t, daa)
}

func TestDeviceInfoPartitionLookup(t *testing.T) {
	info := NewDeviceInfo()
	info.SetPartitions([]storage.Partition{{Name: "boot", Size: 100}})
	p, ok := info.FindPartition("boot")
	require.True(t, ok)
	require.Equal(t, uint64(100), p.Size)

	_, ok = info.FindPartition("missing")
	require.False(t, ok)
}

func TestDeviceInfoRefCounting(t *testing.T) {
	info := NewDeviceInfo()
	info.Retain()
	require.False(t, info.Release())
	require.True(t, info.Release())
}
