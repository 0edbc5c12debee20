// Package ppu implements the DMG picture processing unit: VRAM/OAM
// storage, the LCDC/STAT/LY/LYC register set, the OAMSCAN/RENDER/HBLANK
// mode state machine, and a FIFO-style background/window/sprite pixel
// pipeline that resolves a full scanline on entry to RENDER (mode 3).
package ppu

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// FrameCallback receives a completed frame at the start of VBlank.
type FrameCallback func(fb *Framebuffer)

// Framebuffer holds one rendered frame as packed ARGB8888 pixels.
type Framebuffer [144][160]uint32

// dmgColors maps the four DMG shade indices (0 lightest .. 3 darkest) to
// White/LightGray/DarkGray/Black, 0x00RRGGBB.
var dmgColors = [4]uint32{0xFAFBF6, 0xC6B7BE, 0x565A75, 0x0F0F1B}

func shade(palette byte, ci byte) uint32 {
	idx := (palette >> (ci * 2)) & 0x03
	return dmgColors[idx]
}

// LineRegisters captures the register state latched for a scanline's
// render, used by tests and by host debug tooling.
type LineRegisters struct {
	WinLine               byte
	SCX, SCY, WX, WY      byte
	BGP, OBP0, OBP1, LCDC byte
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, and the scanline FIFO
// pipeline. It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO regs.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	winLineCounter byte
	lineRegs       [154]LineRegisters

	fb        Framebuffer
	onFrame   FrameCallback
	req       InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// SetFrameCallback installs a sink invoked with the completed
// framebuffer once per frame, at VBlank entry.
func (p *PPU) SetFrameCallback(cb FrameCallback) { p.onFrame = cb }

// Framebuffer returns the most recently completed frame.
func (p *PPU) Framebuffer() *Framebuffer { return &p.fb }

// LineRegs returns the register snapshot latched when scanline ly was
// rendered; zero value if that line has not been rendered yet.
func (p *PPU) LineRegs(ly int) LineRegisters {
	if ly < 0 || ly >= len(p.lineRegs) {
		return LineRegisters{}
	}
	return p.lineRegs[ly]
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		prevMode := p.stat & 0x03
		p.setMode(mode)
		if prevMode == 2 && mode == 3 {
			p.renderScanline()
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
				if p.onFrame != nil {
					p.onFrame(&p.fb)
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCounter = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0:
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2:
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// vramAdapter lets renderScanline and the sprite fetch read VRAM/OAM
// without the CPU-visibility mode gate CPURead enforces.
type vramAdapter struct{ p *PPU }

func (a vramAdapter) Read(addr uint16) byte {
	if addr >= 0xFE00 && addr <= 0xFE9F {
		return a.p.oam[addr-0xFE00]
	}
	return a.p.vram[addr-0x8000]
}

func (p *PPU) windowVisibleThisLine() bool {
	return p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0 && p.wy <= p.ly && p.wx <= 166
}

// renderScanline resolves one full scanline of BG, window and sprite
// pixels on the OAMSCAN->RENDER transition. Sub-scanline timing (mid-line LCDC/palette
// writes affecting partial pixels) is not modeled.
func (p *PPU) renderScanline() {
	if p.ly >= 144 {
		return
	}
	mem := vramAdapter{p}
	ly := p.ly

	var bgci [160]byte
	if p.lcdc&0x01 != 0 {
		mapBase := uint16(0x9800)
		if p.lcdc&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(mem, mapBase, tileData8000, p.scx, p.scy, ly)
	}

	winLine := p.winLineCounter
	visible := p.windowVisibleThisLine()
	if visible {
		winMapBase := uint16(0x9800)
		if p.lcdc&0x40 != 0 {
			winMapBase = 0x9C00
		}
		tileData8000 := p.lcdc&0x10 != 0
		wxStart := int(p.wx) - 7
		winci := RenderWindowScanlineUsingFetcher(mem, winMapBase, tileData8000, wxStart, winLine)
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bgci[x] = winci[x]
		}
		p.winLineCounter++
	}

	p.lineRegs[ly] = LineRegisters{
		WinLine: winLine,
		SCX:     p.scx, SCY: p.scy, WX: p.wx, WY: p.wy,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, LCDC: p.lcdc,
	}

	var spriteci, spritePal [160]byte
	if p.lcdc&0x02 != 0 {
		tall := p.lcdc&0x04 != 0
		sprites := p.scanOAM(ly, tall)
		spriteci, spritePal = composeSpritePixmap(mem, sprites, ly, bgci, tall)
	}

	bgEnabled := p.lcdc&0x01 != 0
	for x := 0; x < 160; x++ {
		if spriteci[x] != 0 {
			obp := p.obp0
			if spritePal[x] == 1 {
				obp = p.obp1
			}
			p.fb[ly][x] = shade(obp, spriteci[x])
			continue
		}
		ci := byte(0)
		if bgEnabled {
			ci = bgci[x]
		}
		p.fb[ly][x] = shade(p.bgp, ci)
	}
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
