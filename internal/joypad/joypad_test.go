package joypad

import "testing"

func TestDefaultReadNoneSelected(t *testing.T) {
	p := New()
	if got := p.Read(); got != 0xFF {
		t.Fatalf("got %02X want FF with nothing selected", got)
	}
}

func TestDirectionSelectReflectsPresses(t *testing.T) {
	p := New()
	p.SetSelect(0x20) // P14 low -> directions selected
	p.Press(Right)
	if got := p.Read(); got&0x01 != 0 {
		t.Fatalf("Right not reflected as pressed: %02X", got)
	}
	if got := p.Read(); got&0x0E != 0x0E {
		t.Fatalf("other direction bits should read high: %02X", got)
	}
	p.Release(Right)
	if got := p.Read(); got&0x01 == 0 {
		t.Fatalf("Right release not reflected: %02X", got)
	}
}

func TestButtonSelectIndependentOfDirections(t *testing.T) {
	p := New()
	p.Press(A)
	p.SetSelect(0x10) // P15 low -> buttons selected
	if got := p.Read(); got&0x01 != 0 {
		t.Fatalf("A not reflected with buttons selected: %02X", got)
	}
	p.SetSelect(0x20) // directions selected, A press must not leak
	if got := p.Read(); got&0x01 == 0 {
		t.Fatalf("A leaked into direction nibble: %02X", got)
	}
}

func TestPressReturnsEdgeOnlyWhenSelected(t *testing.T) {
	p := New()
	p.SetSelect(0x10) // buttons selected, directions not
	if edge := p.Press(Right); edge {
		t.Fatalf("Right press should not edge when directions not selected")
	}
	p.SetSelect(0x20) // directions selected, buttons not
	if edge := p.Press(A); edge {
		t.Fatalf("A press should not edge when buttons not selected")
	}
	if edge := p.Press(Up); !edge {
		t.Fatalf("Up press should edge when directions selected")
	}
}
