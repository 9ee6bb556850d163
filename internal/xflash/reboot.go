package xflash

import (
	"context"

	"mtkflash/internal/daprotocol"
)

// xflashBootModeCode maps the dialect-neutral daprotocol.BootMode to the
// mode byte SetRebootMode expects. Only Normal, HomeScreen and Fastboot
// are meaningful on XFlash/Legacy, per original_source/tui/src/cli/
// commands/reboot.rs's doc comment ("the rest will default to Normal");
// Meta and Test collapse to BootNormal's code here.
func xflashBootModeCode(mode daprotocol.BootMode) uint32 {
	switch mode {
	case daprotocol.BootHomeScreen:
		return 1
	case daprotocol.BootFastboot:
		return 2
	default:
		return 0
	}
}

// Reboot implements daprotocol.Protocol.Reboot via SetRebootMode.
func (c *Client) Reboot(ctx context.Context, mode daprotocol.BootMode) error {
	if err := c.sendCmd(cmdSetRebootMode); err != nil {
		return err
	}
	if err := c.sendData(writeU32(xflashBootModeCode(mode))); err != nil {
		return err
	}
	return c.expectStatusOK()
}
