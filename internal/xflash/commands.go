// Package xflash implements the "XFlash" v5 binary DA wire dialect,
// spec.md §4.6, component C5: packet framing shared with XML (via
// internal/frame), DA1 upload/handshake, packet-length negotiation, the
// DeviceCtrl sub-protocol, and checksummed chunked flash I/O. Grounded
// on the teacher's own framed command/response idiom
// (SendTxTaskAndReadRxNonce in internal/driver/device/usb_device.go),
// generalized from one fixed 52-byte ASIC task frame to the DA's
// variable-length 12-byte-header frames.
package xflash

// Command opcodes, spec.md §4.6.
const (
	cmdDownload             = 0x010001
	cmdUpload               = 0x010002
	cmdWriteData            = 0x010004
	cmdReadData             = 0x010005
	cmdFormatPartition      = 0x010006
	cmdBootTo               = 0x010008
	cmdDeviceCtrl           = 0x010009
	cmdSetupEnvironment     = 0x010100
	cmdSetupHwInitParams    = 0x010101
	cmdDeviceCtrlReadReg    = 0x0E0003
	cmdSetRegisterValue     = 0x020009
	cmdGetEmmcInfo          = 0x040001
	cmdGetUfsInfo           = 0x040004
	cmdGetPacketLength      = 0x040007
	cmdSetRebootMode        = 0x02000E

	syncSignal = 0x434E5953
)

// DeviceCtrl sub-commands.
const (
	subCmdGetPacketLength = cmdGetPacketLength
)
