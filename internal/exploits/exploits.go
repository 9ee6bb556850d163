// Package exploits defines the pluggable black-box exploit-runner
// interface, spec.md §4.10, component C9: Kamakiri2 (DA1) and Carbonara
// (DA2) are named runtime exploits that patch a DA region in memory to
// bypass signature checks. The core never inspects what a runner does —
// it only calls Run and adopts the result, the same way the teacher's
// controller.go treats a DeviceDriver as an opaque backend behind one
// interface rather than branching on concrete driver type.
package exploits

// Runner is the shared interface both named exploits implement. Run
// takes ownership of a cloned DA region and returns the patched bytes;
// a non-nil error means the caller should fall back to the unpatched
// region (spec.md §4.4's "patcher failure is non-fatal" rule applies to
// exploit runners too).
type Runner interface {
	Run(region []byte) ([]byte, error)
	Name() string
}
