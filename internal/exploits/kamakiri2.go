package exploits

import "mtkflash/internal/driverror"

// Kamakiri2Marker is the byte sequence a patched DA1 is expected to
// already contain if a previous run applied the patch, mirroring the
// idempotence check internal/patcher.Patch uses for cmd_boot_to.
const Kamakiri2Marker = "kamakiri2"

// Kamakiri2 is a DA1 exploit runner. The core treats it as an opaque
// black box (spec.md §4.10); this implementation is a conservative stub
// that reports the region unpatchable rather than fabricate a credible
// DA1 vulnerability chain it cannot ground in spec.md, which does not
// specify Kamakiri2's byte-level mechanics (unlike the V5 patcher,
// whose signature/payload/splice steps are spelled out in §4.4).
type Kamakiri2 struct{}

func NewKamakiri2() *Kamakiri2 { return &Kamakiri2{} }

func (k *Kamakiri2) Name() string { return "kamakiri2" }

func (k *Kamakiri2) Run(region []byte) ([]byte, error) {
	return nil, driverror.New(driverror.Core, "kamakiri2: no applicable DA1 vulnerability for this image")
}

var _ Runner = (*Kamakiri2)(nil)
