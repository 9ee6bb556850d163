package xflash

import (
	"context"
	"encoding/binary"

	"mtkflash/internal/driverror"
)

// cmdExtensions is the registered extension command opcode the DA
// patcher wires up
// (spec.md §4.4 step 5: opcode 0x10008 passed to register_major_cmd).
// Subcommands mirror ext_read_mem/ext_write_mem/ext_read_register/
// ext_write_register from spec.md §4.6's "Extensions" paragraph.
const (
	cmdExtensions    = 0x010008
	extSubReadMem    = 1
	extSubWriteMem   = 2
	extSubReadReg    = 3
	extSubWriteReg   = 4
)

// LoadExtensions marks the client as having a running extensions
// payload, so Read32/Write32/Peek route through it instead of
// DeviceCtrl, spec.md §4.6/§4.10.
func (c *Client) LoadExtensions() {
	c.extensionsLoaded = true
}

// Read32 implements daprotocol.Protocol.Read32: through extensions when
// loaded, otherwise through DeviceCtrl's DeviceCtrlReadRegister opcode.
func (c *Client) Read32(ctx context.Context, address uint32) (uint32, error) {
	if c.extensionsLoaded {
		data, err := c.extCall(extSubReadReg, address, 4)
		if err != nil {
			return 0, err
		}
		if len(data) < 4 {
			return 0, driverror.New(driverror.XFlash, "extension read32 response too short")
		}
		return binary.LittleEndian.Uint32(data), nil
	}

	if err := c.sendCmd(cmdDeviceCtrl); err != nil {
		return 0, err
	}
	if err := c.sendCmd(cmdDeviceCtrlReadReg); err != nil {
		return 0, err
	}
	if err := c.sendData(writeU32(address)); err != nil {
		return 0, err
	}
	_, payload, err := c.readFrame()
	if err != nil {
		return 0, err
	}
	if len(payload) < 4 {
		return 0, driverror.New(driverror.XFlash, "DeviceCtrlReadRegister response too short")
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// Write32 implements daprotocol.Protocol.Write32.
func (c *Client) Write32(ctx context.Context, address, value uint32) error {
	if c.extensionsLoaded {
		_, err := c.extCall(extSubWriteReg, address, value)
		return err
	}

	if err := c.sendCmd(cmdDeviceCtrl); err != nil {
		return err
	}
	if err := c.sendCmd(cmdSetRegisterValue); err != nil {
		return err
	}
	if err := c.sendData(writeU32(address, value)); err != nil {
		return err
	}
	return c.expectStatusOK()
}

// Peek reads raw memory through the extensions path, spec.md §4.6/§4.10.
// Only valid once LoadExtensions has been called.
func (c *Client) Peek(ctx context.Context, address uint32, size uint32) ([]byte, error) {
	if !c.extensionsLoaded {
		return nil, driverror.New(driverror.XFlash, "peek requires loaded extensions")
	}
	return c.extCall(extSubReadMem, address, size)
}

func (c *Client) extCall(subCmd uint32, a, b uint32) ([]byte, error) {
	if err := c.sendCmd(cmdExtensions); err != nil {
		return nil, err
	}
	if err := c.sendData(writeU32(subCmd, a, b)); err != nil {
		return nil, err
	}
	_, payload, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	return payload, nil
}
