package xflash

import (
	"context"
	"encoding/binary"

	"mtkflash/internal/driverror"
	"mtkflash/internal/frame"
	"mtkflash/internal/preloader"
)

const expectedSyncByte = 0xC0

// UploadStage1 drives upload_stage1, spec.md §4.6: send_da+jump_da via
// the preloader Connection, then read the sync byte and exchange the
// four setup messages.
func (c *Client) UploadStage1(conn *preloader.Connection, da1 []byte, loadAddr, sigLen uint32) error {
	if err := conn.SendDA(da1, loadAddr, sigLen); err != nil {
		return err
	}
	if err := conn.JumpDA(loadAddr); err != nil {
		return err
	}

	b, err := c.readByte()
	if err != nil {
		return err
	}
	if b != expectedSyncByte {
		return driverror.New(driverror.XFlash, "DA1 did not send expected sync byte")
	}

	if err := c.sendCmd(syncSignal); err != nil {
		return err
	}

	envPayload := writeU32(2, 1, 1, 0, 0) // da_log_level, log_channel, system_os=Linux, ufs_provision, reserved
	if err := c.sendCmd(cmdSetupEnvironment); err != nil {
		return err
	}
	if err := c.sendData(envPayload); err != nil {
		return err
	}

	hwInitPayload := writeU32(0, 0, 0, 0)
	if err := c.sendCmd(cmdSetupHwInitParams); err != nil {
		return err
	}
	if err := c.sendData(hwInitPayload); err != nil {
		return err
	}

	_, payload, err := c.readFrame()
	if err != nil {
		return err
	}
	if binary.LittleEndian.Uint32(payload) != syncSignal {
		return driverror.New(driverror.XFlash, "DA1 setup did not echo sync signal")
	}

	return c.negotiatePacketLength()
}

// negotiatePacketLength issues GetPacketLength through the DeviceCtrl
// sub-protocol and caches the negotiated chunk sizes, spec.md §4.6.
func (c *Client) negotiatePacketLength() error {
	if err := c.sendCmd(cmdDeviceCtrl); err != nil {
		return err
	}
	if err := c.sendCmd(cmdGetPacketLength); err != nil {
		return err
	}
	_, payload, err := c.readFrame()
	if err != nil {
		return err
	}
	if len(payload) < 8 {
		return driverror.New(driverror.XFlash, "GetPacketLength response too short")
	}
	c.writePacketSize = binary.LittleEndian.Uint32(payload[0:4])
	c.readPacketSize = binary.LittleEndian.Uint32(payload[4:8])
	return c.expectStatusOK()
}

// BootTo pushes DA2 and its boot-to arguments, spec.md §4.6.
func (c *Client) BootTo(ctx context.Context, atAddr, length uint64, da2 []byte) error {
	if err := c.sendCmd(cmdBootTo); err != nil {
		return err
	}
	args := make([]byte, 16)
	binary.LittleEndian.PutUint64(args[0:8], atAddr)
	binary.LittleEndian.PutUint64(args[8:16], length)
	if err := c.sendData(args); err != nil {
		return err
	}
	if err := c.sendData(da2); err != nil {
		return err
	}

	status, err := c.readStatus()
	if err != nil {
		return err
	}
	if !frame.StatusOK(status) {
		return driverror.WithCode(driverror.XFlash, int(status), "boot_to rejected")
	}
	return c.negotiatePacketLength()
}

// UploadDA implements daprotocol.Protocol.UploadDA for the XFlash
// dialect: stage1 is driven separately by the façade (it needs the
// preloader.Connection, not yet available once we're purely DA-side),
// so this entry point assumes stage1/BootTo already ran and only
// re-negotiates packet length, matching spec.md's "Renegotiate after
// DA2 starts" note in §4.6.
func (c *Client) UploadDA(ctx context.Context, da1, da2 []byte, da2LoadAddr uint32) error {
	return c.negotiatePacketLength()
}
