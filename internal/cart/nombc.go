package cart

// noMBC is a cartridge with no bank controller: a flat 32 KiB ROM image
// and no external RAM. Writes to any cartridge range are inert.
type noMBC struct {
	rom []byte
}

func newNoMBC(rom []byte) *noMBC { return &noMBC{rom: rom} }

func (c *noMBC) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	default: // 0xA000-0xBFFF and anything else
		return 0xFF
	}
}

func (c *noMBC) Write(addr uint16, value byte) {}
