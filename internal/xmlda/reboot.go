package xmlda

import (
	"context"

	"mtkflash/internal/daprotocol"
)

// Reboot implements daprotocol.Protocol.Reboot via the XML dialect's
// CMD:REBOOT command (original_source/core/src/da/xml/cmds.rs's Reboot
// struct, a single "action" tag), the one dialect that names Meta and
// Test as supported targets alongside Normal/HomeScreen/Fastboot.
func (c *Client) Reboot(ctx context.Context, mode daprotocol.BootMode) error {
	cmd := daCommand{
		Command: "CMD:REBOOT",
		Args:    []arg{newArg("action", mode.String())},
	}
	return c.runCommand(cmd, nil)
}
