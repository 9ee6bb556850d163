//go:build !mips && !mipsle

// USB-bulk backend. Modeled directly on the teacher's
// internal/driver/device/usb_device.go (context/device/config/interface
// lifecycle, bulk endpoint discovery, ReadContext-based timeouts), but
// generalized from one fixed Bitmain VID/PID to the KNOWN_PORTS table and
// extended with the CDC-ACM line-coding control transfers spec.md §4.1
// requires for non-BROM connection kinds.
package port

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"

	"mtkflash/internal/driverror"
)

const (
	cdcSetLineCoding      = 0x20
	cdcSetControlLineState = 0x22
	cdcLineStateDTRRTS     = 0x03

	ctrlRequestTypeOut = 0x21 // host->device, class, interface
)

// USBPort is the USB-bulk Port backend.
type USBPort struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intfs  map[int]*gousb.Interface // interfaces 0 and 1, both claimed
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	kind       ConnectionKind
	name       string
	timeout    time.Duration
	autoDetach bool
	open       bool

	mu    sync.Mutex
	stats Stats
}

// FindUSBDevice enumerates attached USB devices, matches them against
// KnownPorts (or an explicit vid/pid override when non-zero), and
// returns an unopened USBPort for the first match.
func FindUSBDevice(overrideVID, overridePID uint16) (*USBPort, error) {
	ctx := gousb.NewContext()

	var match *KnownPort
	var found *gousb.Device

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		vid := uint16(desc.Vendor)
		pid := uint16(desc.Product)
		if overrideVID != 0 && overridePID != 0 {
			return vid == overrideVID && pid == overridePID
		}
		for i := range KnownPorts {
			if KnownPorts[i].VendorID == vid && KnownPorts[i].ProductID == pid {
				return true
			}
		}
		return false
	})
	if err != nil {
		ctx.Close()
		return nil, driverror.Wrap(driverror.IO, "enumerate USB devices", err)
	}

	for _, d := range devices {
		if found != nil {
			d.Close()
			continue
		}
		vid := uint16(d.Desc.Vendor)
		pid := uint16(d.Desc.Product)
		if overrideVID != 0 && overridePID != 0 {
			if vid == overrideVID && pid == overridePID {
				found = d
				match = &KnownPort{VendorID: vid, ProductID: pid, Kind: Preloader}
				continue
			}
		} else {
			for i := range KnownPorts {
				if KnownPorts[i].VendorID == vid && KnownPorts[i].ProductID == pid {
					found = d
					k := KnownPorts[i]
					match = &k
					break
				}
			}
		}
		if found != d {
			d.Close()
		}
	}

	if found == nil || match == nil {
		ctx.Close()
		return nil, driverror.New(driverror.IO, "no known MediaTek USB device found")
	}

	return &USBPort{
		ctx:        ctx,
		device:     found,
		kind:       match.Kind,
		name:       fmt.Sprintf("USB:%04X:%04X", match.VendorID, match.ProductID),
		timeout:    5 * time.Second,
		autoDetach: true,
	}, nil
}

func (p *USBPort) SetTimeout(d time.Duration) { p.timeout = d }

// Open claims interfaces 0 and 1 (the composite device's bulk-data and
// CDC-management interfaces, per spec.md §4.1 and confirmed against the
// original driver's open() double-claim loop), selects the first bulk
// IN/OUT endpoint pair found scanning all alt settings of all
// interfaces, and, for non-BROM connection kinds, issues the CDC-ACM
// line coding and control-line-state requests (failures there are
// non-fatal per spec.md §4.1).
func (p *USBPort) Open() error {
	if p.autoDetach {
		_ = p.device.SetAutoDetach(true)
	}

	config, err := p.device.Config(1)
	if err != nil {
		return driverror.Wrap(driverror.IO, "set USB config", err)
	}
	p.config = config

	bulkIface, bulkAlt, outNum, inNum, err := findBulkPair(config)
	if err != nil {
		config.Close()
		return err
	}

	intfs, err := claimInterfaces(config, bulkIface, bulkAlt)
	if err != nil {
		config.Close()
		return err
	}
	p.intfs = intfs

	bulkIntf := intfs[bulkIface]
	epOut, err := bulkIntf.OutEndpoint(outNum)
	if err != nil {
		p.releaseInterfaces()
		config.Close()
		return driverror.Wrap(driverror.IO, "open USB bulk OUT endpoint", err)
	}
	epIn, err := bulkIntf.InEndpoint(inNum)
	if err != nil {
		p.releaseInterfaces()
		config.Close()
		return driverror.Wrap(driverror.IO, "open USB bulk IN endpoint", err)
	}
	p.epOut = epOut
	p.epIn = epIn

	if p.kind != BROM {
		p.setupCDC() // best-effort; errors are discarded
	}

	p.open = true
	return nil
}

// claimInterfaces claims both interface 0 and interface 1, as spec.md
// §4.1 requires of a composite MediaTek USB device. Whichever of the two
// carries the bulk endpoint pair is claimed at bulkAlt; the other is
// claimed at its default alt setting 0.
func claimInterfaces(config *gousb.Config, bulkIface, bulkAlt int) (map[int]*gousb.Interface, error) {
	claimed := make(map[int]*gousb.Interface)
	for _, num := range []int{0, 1} {
		alt := 0
		if num == bulkIface {
			alt = bulkAlt
		}
		intf, err := config.Interface(num, alt)
		if err != nil {
			for _, c := range claimed {
				c.Close()
			}
			return nil, driverror.Wrap(driverror.IO, fmt.Sprintf("claim USB interface %d", num), err)
		}
		claimed[num] = intf
	}
	return claimed, nil
}

func (p *USBPort) releaseInterfaces() {
	for _, intf := range p.intfs {
		intf.Close()
	}
}

// findBulkPair scans every interface and every one of its alt settings
// in the active config descriptor for the first bulk IN/OUT endpoint
// pair, without claiming anything. Scanning every alt setting (not just
// the default) mirrors the original driver's find_bulk_endpoints, which
// walks every interface descriptor's every alt setting.
func findBulkPair(config *gousb.Config) (ifaceNum, altNum, outNum, inNum int, err error) {
	for _, ifaceDesc := range config.Desc.Interfaces {
		for _, alt := range ifaceDesc.AltSettings {
			var out, in gousb.EndpointDesc
			haveOut, haveIn := false, false
			for _, ep := range alt.Endpoints {
				if ep.TransferType != gousb.TransferTypeBulk {
					continue
				}
				if ep.Direction == gousb.EndpointDirectionOut && !haveOut {
					out = ep
					haveOut = true
				}
				if ep.Direction == gousb.EndpointDirectionIn && !haveIn {
					in = ep
					haveIn = true
				}
			}
			if haveOut && haveIn {
				return ifaceDesc.Number, alt.Alternate, out.Number, in.Number, nil
			}
		}
	}
	return 0, 0, 0, 0, driverror.New(driverror.IO, "no bulk IN/OUT endpoint pair found in any interface/alt setting")
}

// setupCDC issues the Set Line Coding and Set Control Line State
// requests. Failures are swallowed: not every MediaTek USB composite
// device exposes a CDC-ACM management interface, and spec.md §4.1 marks
// this step non-fatal.
func (p *USBPort) setupCDC() {
	baud := BaudFor(p.kind)
	lineCoding := []byte{
		byte(baud), byte(baud >> 8), byte(baud >> 16), byte(baud >> 24),
		0x00, // 1 stop bit
		0x00, // no parity
		0x08, // 8 data bits
	}
	_ = p.CtrlOut(ctrlRequestTypeOut, cdcSetLineCoding, 0, 0, lineCoding)
	_ = p.CtrlOut(ctrlRequestTypeOut, cdcSetControlLineState, cdcLineStateDTRRTS, 0, nil)
}

func (p *USBPort) Close() error {
	p.releaseInterfaces()
	if p.config != nil {
		p.config.Close()
	}
	if p.device != nil {
		p.device.Close()
	}
	if p.ctx != nil {
		p.ctx.Close()
	}
	p.open = false
	return nil
}

func (p *USBPort) IsOpen() bool { return p.open }

func (p *USBPort) ReadExact(buf []byte) error {
	if !p.open {
		return driverror.ErrPortNotOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	total := 0
	for total < len(buf) {
		n, err := p.epIn.ReadContext(ctx, buf[total:])
		if err != nil {
			return driverror.Wrap(driverror.IO, "USB bulk read", err)
		}
		if n == 0 {
			return driverror.New(driverror.IO, "USB bulk read returned 0 bytes")
		}
		total += n
	}
	p.mu.Lock()
	p.stats.BytesRead += uint64(total)
	p.mu.Unlock()
	return nil
}

func (p *USBPort) WriteAll(buf []byte) error {
	if !p.open {
		return driverror.ErrPortNotOpen
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	n, err := p.epOut.WriteContext(ctx, buf)
	if err != nil {
		return driverror.Wrap(driverror.IO, "USB bulk write", err)
	}
	if n != len(buf) {
		return driverror.New(driverror.IO, "short USB bulk write")
	}
	p.mu.Lock()
	p.stats.BytesWritten += uint64(n)
	p.mu.Unlock()
	return nil
}

func (p *USBPort) Flush() error { return nil }

func (p *USBPort) CtrlOut(requestType, request uint8, value, index uint16, data []byte) error {
	_, err := p.device.Control(requestType, request, value, index, data)
	if err != nil {
		return driverror.Wrap(driverror.IO, "USB control OUT", err)
	}
	return nil
}

func (p *USBPort) CtrlIn(requestType, request uint8, value, index uint16, data []byte) (int, error) {
	n, err := p.device.Control(requestType|0x80, request, value, index, data)
	if err != nil {
		return 0, driverror.Wrap(driverror.IO, "USB control IN", err)
	}
	return n, nil
}

func (p *USBPort) ConnectionKind() ConnectionKind { return p.kind }
func (p *USBPort) Baudrate() int                  { return BaudFor(p.kind) }
func (p *USBPort) PortName() string               { return p.name }

func (p *USBPort) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SetConnectionKind allows the caller to reclassify the port once the
// device identifies itself (e.g. after BROM-stage get_hw_code) or once
// DA2 takes over, per spec.md §3's "once DA2 is running the kind is DA"
// invariant.
func (p *USBPort) SetConnectionKind(kind ConnectionKind) { p.kind = kind }
