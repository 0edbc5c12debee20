package bus

import (
	"testing"

	"github.com/dmgcore/gbcore/internal/joypad"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b, err := New(make([]byte, 0x8000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestWRAM_ReadWrite(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xC010, 0xAB)
	if got := b.Read(0xC010); got != 0xAB {
		t.Fatalf("got %02X want AB", got)
	}
}

func TestEchoRAM_MirrorsWRAM(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xC010, 0x42)
	if got := b.Read(0xE010); got != 0x42 {
		t.Fatalf("echo read got %02X want 42", got)
	}
	b.Write(0xE020, 0x99)
	if got := b.Read(0xC020); got != 0x99 {
		t.Fatalf("echo write not mirrored: got %02X want 99", got)
	}
}

func TestHRAM_ReadWrite(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF80, 0x11)
	b.Write(0xFFFE, 0x22)
	if got := b.Read(0xFF80); got != 0x11 {
		t.Fatalf("HRAM start got %02X want 11", got)
	}
	if got := b.Read(0xFFFE); got != 0x22 {
		t.Fatalf("HRAM end got %02X want 22", got)
	}
}

func TestUnusableRegion_ReadsZero(t *testing.T) {
	b := newTestBus(t)
	if got := b.Read(0xFEA0); got != 0x00 {
		t.Fatalf("unusable read got %02X want 00", got)
	}
	b.Write(0xFEA0, 0xFF) // ignored
	if got := b.Read(0xFEA0); got != 0x00 {
		t.Fatalf("unusable write should be ignored, got %02X", got)
	}
}

func TestIF_IE_Masking(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFFFF, 0xFF)
	if got := b.Read(0xFFFF); got != 0xFF {
		t.Fatalf("IE got %02X want FF", got)
	}
	b.Write(0xFF0F, 0xFF)
	if got := b.Read(0xFF0F); got != 0xFF {
		t.Fatalf("IF read got %02X want FF (upper bits read high)", got)
	}
	b.ClearIF(IntVBlank)
	if got := b.Read(0xFF0F) & 0x01; got != 0 {
		t.Fatalf("VBlank bit not cleared")
	}
}

func TestJoypad_DefaultAndSelection(t *testing.T) {
	b := newTestBus(t)
	if got := b.Read(0xFF00); got != 0xCF {
		t.Fatalf("default JOYP got %02X want CF", got)
	}
	b.Write(0xFF00, 0x20) // select directions (P14=0, P15=1)
	b.Press(joypad.Right)
	if got := b.Read(0xFF00) & 0x01; got != 0 {
		t.Fatalf("Right not reflected: %02X", b.Read(0xFF00))
	}
}

func TestJoypad_PressRequestsInterruptOnSelectedLine(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF0F, 0)
	b.Write(0xFF00, 0x20) // select directions
	b.Press(joypad.Down)
	if b.Read(0xFF0F)&(1<<IntJoypad) == 0 {
		t.Fatalf("expected joypad IF bit set on press while directions selected")
	}
}

func TestJoypad_PressNoInterruptWhenNotSelected(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF0F, 0)
	b.Write(0xFF00, 0x10) // select buttons only
	b.Press(joypad.Down)  // a direction button
	if b.Read(0xFF0F)&(1<<IntJoypad) != 0 {
		t.Fatalf("unexpected joypad IF when directions not selected")
	}
}

func TestSerial_ImmediateTransferSetsIF(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF0F, 0)
	b.Write(0xFF01, 0x41)
	b.Write(0xFF02, 0x81)
	if b.Read(0xFF0F)&(1<<IntSerial) == 0 {
		t.Fatalf("expected serial IF set after transfer start")
	}
	if got := b.Read(0xFF02) & 0x80; got != 0 {
		t.Fatalf("transfer-start bit should clear after immediate completion")
	}
}

func TestTimer_FallingEdgeIncrementsTIMA(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF06, 0x00) // TMA
	b.Write(0xFF05, 0x00) // TIMA
	b.Write(0xFF07, 0x05) // enabled, select bit3 (262144 Hz)
	// One full period of bit3 (16 T-cycles) should produce exactly one edge.
	b.Tick(16)
	if got := b.Read(0xFF05); got != 0x01 {
		t.Fatalf("TIMA after one bit3 period got %02X want 01", got)
	}
}

func TestTimer_OverflowReloadsFromTMAAndRequestsInterrupt(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF06, 0x7F) // TMA
	b.Write(0xFF05, 0xFF) // TIMA about to overflow on next edge
	b.Write(0xFF07, 0x05)
	b.Write(0xFF0F, 0)
	b.Tick(16) // one falling edge
	if got := b.Read(0xFF05); got != 0x7F {
		t.Fatalf("TIMA after overflow got %02X want 7F (reloaded from TMA)", got)
	}
	if b.Read(0xFF0F)&(1<<IntTimer) == 0 {
		t.Fatalf("expected timer IF set on overflow")
	}
}

func TestTimer_DIVWriteResetsDivider(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF07, 0x05)
	b.Tick(8) // halfway through the bit3 period, no edge yet
	b.Write(0xFF04, 0x00)
	if got := b.Read(0xFF04); got != 0x00 {
		t.Fatalf("DIV after write got %02X want 00", got)
	}
}

func TestOAMDMA_CopiesFromSourceAfter640Cycles(t *testing.T) {
	b := newTestBus(t)
	for i := 0; i < 0xA0; i++ {
		b.Write(0xC000+uint16(i), byte(i))
	}
	b.Write(0xFF46, 0xC0)
	b.Tick(0xA0)
	for i := 0; i < 0xA0; i++ {
		if got := b.Read(0xFE00 + uint16(i)); got != byte(i) {
			t.Fatalf("OAM[%02X] got %02X want %02X", i, got, byte(i))
		}
	}
}

func TestOAMDMA_BlocksDirectOAMReadsWhileActive(t *testing.T) {
	b := newTestBus(t)
	b.Write(0xFF46, 0xC0)
	if got := b.Read(0xFE00); got != 0xFF {
		t.Fatalf("mid-DMA OAM read got %02X want FF", got)
	}
}
