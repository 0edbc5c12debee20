// Package core wires the CPU, bus, PPU and cartridge into a single
// steppable machine that a host (the ebiten UI, a headless test runner)
// can drive one frame at a time.
package core

import (
	"fmt"
	"io"
	"os"

	"github.com/dmgcore/gbcore/internal/bus"
	"github.com/dmgcore/gbcore/internal/cart"
	"github.com/dmgcore/gbcore/internal/cpu"
	"github.com/dmgcore/gbcore/internal/joypad"
	"github.com/dmgcore/gbcore/internal/ppu"
)

// Config contains settings that affect emulation behavior.
type Config struct {
	Trace    bool // request CPU instruction logging; stored only, nothing reads it
	LimitFPS bool // request a ~60 Hz throttle; stored only, nothing reads it
}

// Fault wraps a CPU or cartridge panic (illegal opcode, unsupported MBC
// feature) with the program counter and scanline active when it fired, so
// a caller can print a diagnostic instead of a bare stack trace.
type Fault struct {
	Err error
	PC  uint16
	LY  byte
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v (PC=0x%04X LY=%d)", f.Err, f.PC, f.LY)
}

func (f *Fault) Unwrap() error { return f.Err }

// Machine owns the CPU/bus/PPU/cartridge for one loaded ROM.
type Machine struct {
	cfg     Config
	bus     *bus.Bus
	cpu     *cpu.CPU
	romPath string

	romTitle string

	frameReady bool
	fb         [160 * 144 * 4]byte
}

// New returns a Machine with no cartridge loaded yet.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// LoadCartridge constructs a fresh Bus/CPU pair around rom and resets the
// CPU to its post-boot state. Boot ROM execution is out of scope for this
// core (spec.md §1 Non-goals): the CPU always starts from the documented
// DMG post-boot register state directly.
func (m *Machine) LoadCartridge(rom []byte) error {
	b, err := bus.New(rom)
	if err != nil {
		return err
	}
	m.bus = b
	m.cpu = cpu.New(b)
	m.cpu.ResetNoBoot()
	m.bus.PPU().SetFrameCallback(func(*ppu.Framebuffer) { m.frameReady = true })
	m.romTitle = ""
	if h, err := cart.ParseHeader(rom); err == nil {
		m.romTitle = h.Title
	}
	return nil
}

// LoadROMFromFile reads path and loads it as the active cartridge,
// recording the path for save-RAM placement and window titling.
func (m *Machine) LoadROMFromFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(rom); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFromFile was last called with, or "".
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header title, or "" if none is loaded.
func (m *Machine) ROMTitle() string { return m.romTitle }

// SetSerialWriter routes the bus's serial port (FF01/FF02) to w, used by
// headless test ROMs that report pass/fail over the link cable.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// Press and Release forward a button edge to the joypad.
func (m *Machine) Press(btn joypad.Button) {
	if m.bus != nil {
		m.bus.Press(btn)
	}
}

func (m *Machine) Release(btn joypad.Button) {
	if m.bus != nil {
		m.bus.Release(btn)
	}
}

// SaveBattery returns the external RAM of any MBC1/MBC3/MBC5 cartridge,
// whether or not its header declares a battery.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBattery restores previously saved external RAM, if the cartridge
// supports it.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// StepFrame runs the CPU until the PPU reports a completed frame and
// refreshes the RGBA framebuffer returned by Framebuffer.
func (m *Machine) StepFrame() { m.runFrame(true) }

// StepFrameNoRender runs one frame without the RGBA conversion, for
// headless callers (test ROM runners) that only care about serial output.
func (m *Machine) StepFrameNoRender() { m.runFrame(false) }

func (m *Machine) runFrame(render bool) {
	defer func() {
		if r := recover(); r != nil {
			panic(m.wrapFault(r))
		}
	}()
	m.frameReady = false
	for !m.frameReady {
		m.cpu.Step()
	}
	if render {
		m.copyFramebuffer()
	}
}

func (m *Machine) wrapFault(r any) *Fault {
	var e error
	if err, ok := r.(error); ok {
		e = err
	} else {
		e = fmt.Errorf("%v", r)
	}
	f := &Fault{Err: e}
	if m.cpu != nil {
		f.PC = m.cpu.PC
	}
	if m.bus != nil {
		f.LY = m.bus.Read(0xFF44)
	}
	return f
}

// copyFramebuffer converts the PPU's packed-ARGB scanline buffer into the
// RGBA byte layout ebiten's Image.WritePixels expects.
func (m *Machine) copyFramebuffer() {
	fb := m.bus.PPU().Framebuffer()
	i := 0
	for y := 0; y < 144; y++ {
		for x := 0; x < 160; x++ {
			px := fb[y][x]
			m.fb[i+0] = byte(px >> 16) // R
			m.fb[i+1] = byte(px >> 8)  // G
			m.fb[i+2] = byte(px)       // B
			m.fb[i+3] = 0xFF           // A: the PPU's 0x00RRGGBB palette carries no alpha
			i += 4
		}
	}
}

// Framebuffer returns the most recently rendered frame as tightly packed
// RGBA8888, 160x144.
func (m *Machine) Framebuffer() []byte { return m.fb[:] }
