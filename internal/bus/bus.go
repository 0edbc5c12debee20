// Package bus implements the DMG memory-management unit: 64 KiB address
// decode, I/O register semantics, the DIV/TIMA timer chain, OAM-DMA, the
// joypad mux, and interrupt-flag bookkeeping. It routes cartridge ranges
// to internal/cart and video ranges to internal/ppu.
package bus

import (
	"io"

	"github.com/dmgcore/gbcore/internal/cart"
	"github.com/dmgcore/gbcore/internal/joypad"
	"github.com/dmgcore/gbcore/internal/ppu"
)

// Interrupt bits, in priority order (lowest bit number wins ties).
const (
	IntVBlank = 0
	IntStat   = 1
	IntTimer  = 2
	IntSerial = 3
	IntJoypad = 4
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, the PPU
// and the joypad.
type Bus struct {
	cart cart.Cartridge
	pad  *joypad.Pad
	ppu  *ppu.PPU

	wram [0x2000]byte // C000-DFFF, echoed at E000-FDFF
	hram [0x7F]byte   // FF80-FFFE

	ie    byte // FFFF
	ifReg byte // FF0F, lower 5 bits used

	joypSelect byte // last value written to FF00 bits 5-4

	divInternal uint16 // free-running 16-bit divider; DIV (FF04) is its high byte
	tima        byte   // FF05
	tma         byte   // FF06
	tac         byte   // FF07, lower 3 bits used
	prevAndEdge bool   // previous (selected DIV bit AND timer enable) value

	sb byte      // FF01
	sc byte      // FF02
	sw io.Writer // optional serial debug sink

	dma       byte // FF46
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
}

// New constructs a Bus, building a cartridge from the raw ROM image via
// the cart factory.
func New(rom []byte) (*Bus, error) {
	c, err := cart.New(rom)
	if err != nil {
		return nil, err
	}
	return NewWithCartridge(c), nil
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c, pad: joypad.New()}
	b.ppu = ppu.New(func(bit int) { b.RequestInterrupt(bit) })
	b.applyPostBootDefaults()
	return b
}

// applyPostBootDefaults seeds the registers spec.md §3 lists as the
// DMG post-boot state, since boot ROM execution itself is a non-goal.
func (b *Bus) applyPostBootDefaults() {
	b.joypSelect = 0x00
	b.divInternal = 0xAB00
	b.ifReg = 0x01
	b.dma = 0xFF
	b.ppu.CPUWrite(0xFF40, 0x91)
	b.ppu.CPUWrite(0xFF41, 0x85)
	b.ppu.CPUWrite(0xFF47, 0xFC)
}

// PPU exposes the PPU so the orchestrator/host can pull completed
// framebuffers and feed scanline side effects.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart exposes the cartridge for battery-RAM persistence by the host.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// SetSerialWriter installs a sink that receives bytes written via the
// FF02==0x81 debug-print convention.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// Press/Release forward joypad button edges, requesting the joypad
// interrupt on any selected-line 1->0 transition (spec.md §4.2).
func (b *Bus) Press(button joypad.Button) {
	if b.pad.Press(button) {
		b.RequestInterrupt(IntJoypad)
	}
}

func (b *Bus) Release(button joypad.Button) { b.pad.Release(button) }

// RequestInterrupt OR-sets a pending bit in IF. Exported so the PPU
// callback and host-side edges (joypad, serial) share one path.
func (b *Bus) RequestInterrupt(bit int) { b.ifReg |= 1 << uint(bit) }

// IE/IF are read directly by the CPU's interrupt-dispatch phase.
func (b *Bus) IE() byte        { return b.ie }
func (b *Bus) IF() byte        { return b.ifReg }
func (b *Bus) ClearIF(bit int) { b.ifReg &^= 1 << uint(bit) }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		return b.wram[addr-0x2000-0xC000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr < 0xFF00:
		return 0x00
	case addr == 0xFF00:
		b.pad.SetSelect(b.joypSelect)
		return b.pad.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return byte(b.divInternal >> 8)
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return 0xF8 | (b.tac & 0x07)
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF46:
		return b.dma
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	default:
		return 0xFF
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
	case addr >= 0xE000 && addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr < 0xFF00:
		// unusable range: writes ignored
	case addr == 0xFF00:
		b.joypSelect = (b.joypSelect & 0xCF) | (value & 0x30)
		b.pad.SetSelect(b.joypSelect)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.RequestInterrupt(IntSerial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		b.divInternal = 0
	case addr == 0xFF05:
		b.tima = value
	case addr == 0xFF06:
		b.tma = value
	case addr == 0xFF07:
		b.tac = value & 0x07
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

// Tick advances the timer chain, OAM-DMA and the PPU by the given
// number of T-cycles, one cycle at a time so DMA bytes and timer edges
// land on the correct cycle.
func (b *Bus) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		b.tickTimer()
		b.tickDMA()
		b.ppu.Tick(1)
	}
}

func (b *Bus) tickTimer() {
	b.divInternal++

	timerEnabled := b.tac&0x04 != 0
	var bit uint
	switch b.tac & 0x03 {
	case 0x00:
		bit = 9 // 4096 Hz
	case 0x01:
		bit = 3 // 262144 Hz
	case 0x02:
		bit = 5 // 65536 Hz
	case 0x03:
		bit = 7 // 16384 Hz
	}
	divBit := (b.divInternal>>bit)&1 != 0
	andResult := divBit && timerEnabled
	if b.prevAndEdge && !andResult {
		b.tima++
		if b.tima == 0 {
			b.tima = b.tma
			b.RequestInterrupt(IntTimer)
		}
	}
	b.prevAndEdge = andResult
}

func (b *Bus) tickDMA() {
	if !b.dmaActive {
		return
	}
	if b.dmaIndex < 0xA0 {
		v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
		b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
		b.dmaIndex++
	}
	if b.dmaIndex >= 0xA0 {
		b.dmaActive = false
	}
}
