package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecCfgRoundTrip(t *testing.T) {
	cfg := SecCfgV4{SBootRuntime: 1, Algo: 2}
	cfg.Lock()
	block := cfg.Serialize()
	require.Len(t, block, seccfgBlockSize)

	parsed, err := ParseSecCfgV4(block)
	require.NoError(t, err)
	require.Equal(t, LockStateLocked, parsed.LockState)
	require.Equal(t, CriticalLocked, parsed.CriticalLockState)
	require.Equal(t, cfg.EncHash, parsed.EncHash)
}

func TestSecCfgLockUnlockStates(t *testing.T) {
	var cfg SecCfgV4
	cfg.Lock()
	require.Equal(t, LockStateLocked, cfg.LockState)
	require.Equal(t, CriticalLocked, cfg.CriticalLockState)

	cfg.Unlock()
	require.Equal(t, LockStateUnlocked, cfg.LockState)
	require.Equal(t, CriticalUnlocked, cfg.CriticalLockState)
}

func TestParseSecCfgRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 64)
	_, err := ParseSecCfgV4(buf)
	require.Error(t, err)
}

func TestParseSecCfgRejectsTooSmall(t *testing.T) {
	_, err := ParseSecCfgV4(make([]byte, 10))
	require.Error(t, err)
}
