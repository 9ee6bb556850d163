package exploits

import "mtkflash/internal/patcher"

// Carbonara is the named DA2 exploit runner, spec.md §4.10. Unlike
// Kamakiri2, DA2's patch target is fully specified in spec.md §4.4 (the
// cmd_boot_to re-enable sequence), so Carbonara is grounded directly on
// internal/patcher rather than stubbed out: it is the "exploit runner"
// framing around the same byte-patch algorithm the façade otherwise
// applies directly.
type Carbonara struct {
	LoadAddr uint32
}

func NewCarbonara(loadAddr uint32) *Carbonara {
	return &Carbonara{LoadAddr: loadAddr}
}

func (c *Carbonara) Name() string { return "carbonara" }

func (c *Carbonara) Run(region []byte) ([]byte, error) {
	result, err := patcher.Patch(region, c.LoadAddr)
	if err != nil {
		return nil, err
	}
	return result.Data, nil
}

var _ Runner = (*Carbonara)(nil)
