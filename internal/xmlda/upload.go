package xmlda

import (
	"context"

	"mtkflash/internal/driverror"
)

// UploadDA implements daprotocol.Protocol.UploadDA for the XML dialect.
// DA1 upload itself runs over the preloader Connection's send_da/jump_da
// (shared with XFlash); once DA1 is alive the device announces its
// HostSupportedCommands gate, which this method answers, then boots DA2
// via BootTo, spec.md §4.7.
func (c *Client) UploadDA(ctx context.Context, da1, da2 []byte, da2LoadAddr uint32) error {
	cmd := daCommand{
		Command: "CMD:HOST-CAPABILITIES",
		Args:    []arg{newArg("supported_commands", hostSupportedCommands)},
	}
	if err := c.runCommand(cmd, nil); err != nil {
		return err
	}
	return c.BootTo(ctx, uint64(da2LoadAddr), uint64(len(da2)), da2)
}

// BootTo pushes DA2 via CMD:DOWNLOAD-FILE following the BootTo command
// envelope, spec.md §4.7.
func (c *Client) BootTo(ctx context.Context, atAddr, length uint64, da2 []byte) error {
	cmd := daCommand{
		Command: "CMD:BOOT-TO",
		Args: []arg{
			newArg("at_address", hexArg(atAddr)),
			newArg("jmp_address", hexArg(atAddr)),
			newArg("source_file", "DA2"),
		},
	}
	return c.runCommand(cmd, func() error {
		return c.serveDownloadFile(da2, nil)
	})
}

func hexArg(v uint64) string {
	const hexDigits = "0123456789abcdef"
	if v == 0 {
		return "0x0"
	}
	buf := make([]byte, 0, 18)
	buf = append(buf, '0', 'x')
	started := false
	for shift := 60; shift >= 0; shift -= 4 {
		nibble := (v >> uint(shift)) & 0xF
		if nibble != 0 {
			started = true
		}
		if started {
			buf = append(buf, hexDigits[nibble])
		}
	}
	return string(buf)
}

var errNotImplemented = driverror.New(driverror.Xml, "operation not supported by the XML dialect")
