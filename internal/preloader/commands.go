package preloader

import (
	"encoding/binary"
	"time"

	"mtkflash/internal/driverror"
)

// Command opcodes. send_da and jump_da are fixed by spec.md §4.2; the
// remaining metadata-query opcodes are not pinned to a specific numeric
// value by the spec text, only to their echo/status/payload shape, so
// they are collected here as one table precisely so a future revision
// can retarget them without touching the command bodies below — the
// design note in spec.md §9 ("table-drive it") applied to opcode
// assignment, not just endianness.
const (
	cmdGetHWCode        = 0xFD
	cmdGetHWSWVer       = 0xFC
	cmdGetTargetConfig  = 0xD8
	cmdGetSOCID         = 0xFE
	cmdGetMEID          = 0xE1
	cmdGetPLCapabilities = 0xFB
	cmdRead32           = 0xD1
	cmdSendDA           = 0xD7
	cmdJumpDA           = 0xD5
)

const probeTimeout = 500 * time.Millisecond

// GetHWCode drives DA-entry selection (spec.md §4.3). The status word is
// little-endian but the payload is big-endian — the endianness split
// spec.md §4.2/§8 property 5 calls out explicitly.
func (c *Connection) GetHWCode() (uint16, error) {
	if err := c.Echo([]byte{cmdGetHWCode}); err != nil {
		return 0, err
	}
	payload := make([]byte, 2)
	if err := c.Port.ReadExact(payload); err != nil {
		return 0, err
	}
	status, err := c.statusLE()
	if err != nil {
		return 0, err
	}
	if err := checkStatus(status); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(payload), nil
}

// GetHWSWVer returns (hw_sub_code, hw_ver, sw_ver), all little-endian.
func (c *Connection) GetHWSWVer() (hwSubCode, hwVer, swVer uint16, err error) {
	if err = c.Echo([]byte{cmdGetHWSWVer}); err != nil {
		return
	}
	payload := make([]byte, 6)
	if err = c.Port.ReadExact(payload); err != nil {
		return
	}
	status, sErr := c.statusLE()
	if sErr != nil {
		err = sErr
		return
	}
	if err = checkStatus(status); err != nil {
		return
	}
	hwSubCode = binary.LittleEndian.Uint16(payload[0:2])
	hwVer = binary.LittleEndian.Uint16(payload[2:4])
	swVer = binary.LittleEndian.Uint16(payload[4:6])
	return
}

// GetSOCID returns the device's SoC identifier, or an empty slice if the
// device does not support the query (a 500ms read timeout, per spec.md
// §5/§7).
func (c *Connection) GetSOCID() ([]byte, error) {
	if err := c.Echo([]byte{cmdGetSOCID}); err != nil {
		return nil, err
	}
	return c.readLengthPrefixedBE(probeTimeout)
}

// GetMEID returns the device's mobile equipment identifier, same
// timeout-downgrade semantics as GetSOCID.
func (c *Connection) GetMEID() ([]byte, error) {
	if err := c.Echo([]byte{cmdGetMEID}); err != nil {
		return nil, err
	}
	return c.readLengthPrefixedBE(probeTimeout)
}

// TargetConfig holds the three boolean capability bits spec.md §3
// defines for target_config.
type TargetConfig struct {
	Raw uint32
	SBC bool
	SLA bool
	DAA bool
}

func decodeTargetConfig(raw uint32) TargetConfig {
	return TargetConfig{
		Raw: raw,
		SBC: raw&0x1 != 0,
		SLA: raw&0x2 != 0,
		DAA: raw&0x4 != 0,
	}
}

// GetTargetConfig returns the SBC/SLA/DAA capability bits, big-endian.
func (c *Connection) GetTargetConfig() (TargetConfig, error) {
	if err := c.Echo([]byte{cmdGetTargetConfig}); err != nil {
		return TargetConfig{}, err
	}
	payload := make([]byte, 4)
	if err := c.Port.ReadExact(payload); err != nil {
		return TargetConfig{}, err
	}
	status, err := c.statusBE()
	if err != nil {
		return TargetConfig{}, err
	}
	if err := checkStatus(status); err != nil {
		return TargetConfig{}, err
	}
	return decodeTargetConfig(binary.BigEndian.Uint32(payload)), nil
}

// GetPLCapabilities returns the first of two u32 capability words the
// preloader reports.
func (c *Connection) GetPLCapabilities() (uint32, error) {
	if err := c.Echo([]byte{cmdGetPLCapabilities}); err != nil {
		return 0, err
	}
	payload := make([]byte, 8)
	if err := c.Port.ReadExact(payload); err != nil {
		return 0, err
	}
	status, err := c.statusBE()
	if err != nil {
		return 0, err
	}
	if err := checkStatus(status); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(payload[0:4]), nil
}

// Read32 reads size bytes starting at address, returned as a slice of
// little-endian 32-bit words, flanked by two status words.
func (c *Connection) Read32(address uint32, size uint32) ([]uint32, error) {
	args := make([]byte, 9)
	args[0] = cmdRead32
	binary.BigEndian.PutUint32(args[1:5], address)
	binary.BigEndian.PutUint32(args[5:9], size)
	if err := c.Echo(args); err != nil {
		return nil, err
	}

	status1, err := c.statusLE()
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status1); err != nil {
		return nil, err
	}

	count := size / 4
	words := make([]uint32, count)
	wordBuf := make([]byte, 4)
	for i := uint32(0); i < count; i++ {
		if err := c.Port.ReadExact(wordBuf); err != nil {
			return nil, err
		}
		words[i] = binary.LittleEndian.Uint32(wordBuf)
	}

	status2, err := c.statusLE()
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status2); err != nil {
		return nil, err
	}
	return words, nil
}

// SendDA uploads one DA region to SRAM/DRAM. Arguments are big-endian;
// two status words flank the transfer (pre-transfer, post-checksum).
func (c *Connection) SendDA(data []byte, loadAddress uint32, sigLen uint32) error {
	args := make([]byte, 13)
	args[0] = cmdSendDA
	binary.BigEndian.PutUint32(args[1:5], loadAddress)
	binary.BigEndian.PutUint32(args[5:9], uint32(len(data)))
	binary.BigEndian.PutUint32(args[9:13], sigLen)
	if err := c.Echo(args); err != nil {
		return err
	}

	preStatus, err := c.statusLE()
	if err != nil {
		return err
	}
	if err := checkStatus(preStatus); err != nil {
		return driverror.Wrap(driverror.Core, "send_da rejected before transfer", err)
	}

	if err := c.Port.WriteAll(data); err != nil {
		return err
	}

	postStatus, err := c.statusLE()
	if err != nil {
		return err
	}
	if err := checkStatus(postStatus); err != nil {
		return driverror.Wrap(driverror.Core, "send_da checksum rejected", err)
	}
	return nil
}

// JumpDA transfers execution to a previously uploaded DA region.
func (c *Connection) JumpDA(address uint32) error {
	args := make([]byte, 5)
	args[0] = cmdJumpDA
	binary.LittleEndian.PutUint32(args[1:5], address)
	if err := c.Echo(args); err != nil {
		return err
	}
	status, err := c.statusLE()
	if err != nil {
		return err
	}
	return checkStatus(status)
}
