package ui

import (
	"github.com/dmgcore/gbcore/internal/core"
	"github.com/dmgcore/gbcore/internal/joypad"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// App is a thin ebiten host around a core.Machine: it blits the PPU's
// framebuffer each frame and forwards keyboard edges to the joypad.
type App struct {
	cfg Config
	m   *core.Machine
	tex *ebiten.Image
}

// keymap pairs a host key with the button it drives. Update forwards only
// just-pressed/just-released key edges; the bus decides whether a press
// raises the joypad interrupt.
var keymap = [8]struct {
	key ebiten.Key
	btn joypad.Button
}{
	{ebiten.KeyRight, joypad.Right},
	{ebiten.KeyLeft, joypad.Left},
	{ebiten.KeyUp, joypad.Up},
	{ebiten.KeyDown, joypad.Down},
	{ebiten.KeyZ, joypad.A},
	{ebiten.KeyX, joypad.B},
	{ebiten.KeyBackspace, joypad.Select},
	{ebiten.KeyEnter, joypad.Start},
}

func NewApp(cfg Config, m *core.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	return &App{cfg: cfg, m: m}
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) Update() error {
	for _, k := range keymap {
		switch {
		case inpututil.IsKeyJustPressed(k.key):
			a.m.Press(k.btn)
		case inpututil.IsKeyJustReleased(k.key):
			a.m.Release(k.btn)
		}
	}
	a.m.StepFrame()
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) { return 160, 144 }
