// Package patcher rewrites a vendor DA2 image in memory to re-enable
// cmd_boot_to (spec.md §4.4, component C4), the same way vendor DAs
// shipped before late 2023 accepted it natively. It is pure byte
// manipulation; no hardware interaction. This follows the teacher's
// own hand-rolled binary-packet-building idiom (BuildTxTaskFromHeader
// in internal/driver/device/usb_device.go) rather than any assembler
// or linker library — none of the example repos carry one, and an ARM
// micro-patcher this small is squarely byte-table territory.
package patcher

import (
	"bytes"
	"encoding/binary"

	"mtkflash/internal/driverror"
)

const bootToMarker = "cmd_boot_to"

// thumbNop is the 4-byte Thumb NOP pair used to pad to alignment.
var thumbNop = []byte{0xAF, 0xF3, 0x00, 0x80}

// Signature is one byte pattern the patcher must locate in DA2, with an
// optional mask (0x00 bytes in mask are wildcards).
type Signature struct {
	Name    string
	Pattern []byte
	Mask    []byte
}

// Patterns is the typed table of signatures the V5 patcher locates,
// spec.md §4.4 step 2. Kept as data so a new DA build's slightly
// different prologue bytes can be added without touching Patch's logic.
var Patterns = []Signature{
	{Name: "dagent_reg_cmds", Pattern: []byte{0x10, 0xB5, 0x00, 0xAF}},
	{Name: "devc_read_register", Pattern: []byte{0x2D, 0xE9, 0xF0, 0x41}},
	{Name: "unsupported_cmd", Pattern: []byte{0x00, 0x20, 0x70, 0x47}},
	{Name: "register_major_cmd", Pattern: []byte{0x0F, 0xB4, 0x10, 0xB5}},
}

// ExtensionLoader is the embedded Thumb payload written over
// devc_read_register (spec.md §4.4 step 3). It is a placeholder-sized
// blob; the real vendor payload is supplied at build time by whoever
// assembles a release, the same way the teacher's eBPF bytecode is
// compiled out-of-band and only loaded at runtime (eBPF_driver.go).
var ExtensionLoader = makePlaceholderPayload()

func makePlaceholderPayload() []byte {
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = 0xAF // 0xAF filler, not a Thumb NOP; overwritten per-build.
	}
	return payload
}

func find(haystack []byte, sig Signature) int {
	if len(sig.Mask) == 0 {
		return bytes.Index(haystack, sig.Pattern)
	}
	for i := 0; i+len(sig.Pattern) <= len(haystack); i++ {
		match := true
		for j, b := range sig.Pattern {
			if sig.Mask[j] == 0 {
				continue
			}
			if haystack[i+j] != b {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// thumbAddr computes the Thumb-bit-set absolute address of a file
// offset once loaded, spec.md §4.4: load_addr + file_offset | 1.
func thumbAddr(loadAddr uint32, fileOffset int) uint32 {
	return (loadAddr + uint32(fileOffset)) | 1
}

// encodeBL encodes a Thumb-2 BL instruction targeting target from a
// site at siteAddr, ARMv7-M half-word-swapped encoding.
func encodeBL(siteAddr, target uint32) []byte {
	offset := int32(target) - int32(siteAddr) - 4
	s := uint32(0)
	if offset < 0 {
		s = 1
	}
	imm32 := uint32(offset)
	i1 := (imm32 >> 23) & 1
	i2 := (imm32 >> 22) & 1
	j1 := uint32(1) ^ i1 ^ s
	j2 := uint32(1) ^ i2 ^ s
	imm10 := (imm32 >> 12) & 0x3FF
	imm11 := (imm32 >> 1) & 0x7FF

	hw1 := uint16(0xF000) | uint16(s<<10) | uint16(imm10)
	hw2 := uint16(0xD000) | uint16(j1<<13) | uint16(j2<<11) | uint16(imm11)

	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], hw1)
	binary.LittleEndian.PutUint16(out[2:4], hw2)
	return out
}

// Result carries the patched bytes and whether a patch was actually
// applied (false when cmd_boot_to was already present — a no-op).
type Result struct {
	Data    []byte
	Patched bool
}

// Patch implements the V5 DA-image patcher algorithm, spec.md §4.4.
// Patcher failure is non-fatal at the call site — callers should fall
// back to the original DA2 bytes on error, per spec.md.
func Patch(da2 []byte, loadAddr uint32) (Result, error) {
	if bytes.Contains(da2, []byte(bootToMarker)) {
		return Result{Data: da2, Patched: false}, nil
	}

	out := make([]byte, len(da2))
	copy(out, da2)

	offsets := make(map[string]int, len(Patterns))
	for _, sig := range Patterns {
		off := find(out, sig)
		if off < 0 {
			return Result{}, driverror.New(driverror.Core, "DA patch signature not found: "+sig.Name)
		}
		offsets[sig.Name] = off
	}

	readRegOff := offsets["devc_read_register"]
	if readRegOff+len(ExtensionLoader) > len(out) {
		return Result{}, driverror.New(driverror.Core, "extension loader does not fit at devc_read_register")
	}
	copy(out[readRegOff:], ExtensionLoader)
	loaderAddr := thumbAddr(loadAddr, readRegOff)

	unsupportedOff := offsets["unsupported_cmd"]
	if unsupportedOff+4 > len(out) {
		return Result{}, driverror.New(driverror.Core, "unsupported_cmd pointer slot out of range")
	}
	binary.LittleEndian.PutUint32(out[unsupportedOff:unsupportedOff+4], loaderAddr)

	regSiteOff := offsets["dagent_reg_cmds"]
	regMajorAddr := thumbAddr(loadAddr, offsets["register_major_cmd"])
	seq := buildRegistrationSequence(thumbAddr(loadAddr, regSiteOff), regMajorAddr, loaderAddr)
	if regSiteOff+len(seq) > len(out) {
		return Result{}, driverror.New(driverror.Core, "registration splice does not fit at dagent_reg_cmds")
	}
	copy(out[regSiteOff:], seq)

	return Result{Data: out, Patched: true}, nil
}

// buildRegistrationSequence builds the Thumb micro-sequence of spec.md
// §4.4 step 5: load opcode 0x10008 into r0, BL to register_major_cmd
// with the extension loader's address as its second argument, padded
// to four-byte alignment with Thumb NOPs.
func buildRegistrationSequence(siteAddr, regMajorAddr, loaderAddr uint32) []byte {
	var buf bytes.Buffer

	// movw r0, #0x0008 ; movt r0, #0x0001  (loads r0 = 0x00010008)
	buf.Write(encodeMovImm16(0, uint16(0x10008&0xFFFF)))
	buf.Write(encodeMovtImm16(0, uint16(0x10008>>16)))
	// movw r1, loaderAddr low16 ; movt r1, loaderAddr high16
	buf.Write(encodeMovImm16(1, uint16(loaderAddr&0xFFFF)))
	buf.Write(encodeMovtImm16(1, uint16(loaderAddr>>16)))

	blSite := siteAddr + uint32(buf.Len())
	buf.Write(encodeBL(blSite, regMajorAddr))

	for buf.Len()%4 != 0 {
		buf.Write(thumbNop)
	}
	return buf.Bytes()
}

func encodeMovImm16(reg uint8, imm16 uint16) []byte {
	imm8 := uint16(imm16 & 0xFF)
	imm3 := uint16((imm16 >> 8) & 0x7)
	i := uint16((imm16 >> 11) & 0x1)
	imm4 := uint16((imm16 >> 12) & 0xF)

	hw1 := uint16(0xF240) | (i << 10) | imm4
	hw2 := (imm3 << 12) | (uint16(reg&0xF) << 8) | imm8

	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], hw1)
	binary.LittleEndian.PutUint16(out[2:4], hw2)
	return out
}

func encodeMovtImm16(reg uint8, imm16 uint16) []byte {
	imm8 := uint16(imm16 & 0xFF)
	imm3 := uint16((imm16 >> 8) & 0x7)
	i := uint16((imm16 >> 11) & 0x1)
	imm4 := uint16((imm16 >> 12) & 0xF)

	hw1 := uint16(0xF2C0) | (i << 10) | imm4
	hw2 := (imm3 << 12) | (uint16(reg&0xF) << 8) | imm8

	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out[0:2], hw1)
	binary.LittleEndian.PutUint16(out[2:4], hw2)
	return out
}
