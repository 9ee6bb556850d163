package dafile

import "mtkflash/internal/driverror"

// hwCodeToDACode maps a runtime-reported hw_code (from
// preloader.GetHWCode) to the container's entry-selector code, per
// spec.md §3/§4.3. Unlisted codes map to themselves. This is a fixed
// table because the mapping is genuinely arbitrary per-SoC vendor data,
// the same way the teacher hardcodes its CRC lookup tables
// (chCRCHTalbe/chCRCLTalbe) rather than computing them at runtime.
var hwCodeToDACode = map[uint16]uint16{
	0x0279: 0x6797,
	0x0321: 0x6735,
	0x0326: 0x6755,
	0x0335: 0x6735,
	0x0337: 0x6735,
	0x0507: 0x6758,
	0x0551: 0x6757,
	0x0562: 0x6799,
	0x0601: 0x6755,
	0x0633: 0x6570,
	0x0688: 0x6758,
	0x0690: 0x6763,
	0x0699: 0x6739,
	0x0707: 0x6768,
	0x0717: 0x6761,
	0x0725: 0x6779,
	0x0766: 0x6765,
	0x0788: 0x6771,
	0x0813: 0x6785,
	0x0816: 0x6885,
	0x0886: 0x6873,
	0x0908: 0x8696,
	0x0930: 0x8195,
	0x0950: 0x6893,
	0x0959: 0x6877,
	0x0989: 0x6833,
	0x0996: 0x6853,
	0x1066: 0x6781,
	0x6583: 0x6589,
	0x8172: 0x8173,
	0x8176: 0x8173,
}

// DACodeForHWCode resolves a runtime hw_code through the lookup table,
// returning the code unchanged when unlisted.
func DACodeForHWCode(hwCode uint16) uint16 {
	if mapped, ok := hwCodeToDACode[hwCode]; ok {
		return mapped
	}
	return hwCode
}

// SelectByHWCode implements get_da_from_hw_code (spec.md §4.3): map
// hwCode through the lookup table, then return the first entry whose
// HWCode field matches.
func (c *Container) SelectByHWCode(hwCode uint16) (DAEntry, error) {
	daCode := DACodeForHWCode(hwCode)
	for _, entry := range c.Entries {
		if entry.HWCode == daCode {
			return entry, nil
		}
	}
	return DAEntry{}, driverror.ErrUnknownHWCode
}
