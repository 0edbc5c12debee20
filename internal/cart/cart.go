package cart

import "fmt"

// Cartridge is the minimal interface the MMU needs for ROM/RAM banking.
// Addresses are CPU-visible addresses (0000-7FFF ROM, A000-BFFF external RAM).
type Cartridge interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

// BatteryBacked exposes a cartridge's external RAM for persistence across
// sessions. Every MBC1/MBC3/MBC5 variant implements it, whether or not the
// header type byte declares a battery; NoMBC does not. Persistence itself is
// outside the core; this is only the interface a host drives.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// UnsupportedCartridgeError is returned when the header names an MBC type
// this core does not know how to route.
type UnsupportedCartridgeError struct {
	CartType byte
}

func (e *UnsupportedCartridgeError) Error() string {
	return fmt.Sprintf("unsupported cartridge type byte 0x%02X", e.CartType)
}

// NotImplementedError marks an MBC feature this core deliberately omits
// (MBC3's real-time clock). The core fails loudly rather than guessing.
type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string { return e.Feature + " not implemented" }

// New inspects the cartridge header (byte 0x0147) and constructs the
// matching bank-controller variant.
func New(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	ramSize := 0x0800 * ramBanks(h.RAMSizeCode)
	switch h.CartType {
	case 0x00:
		return newNoMBC(rom), nil
	case 0x01, 0x02, 0x03:
		return newMBC1(rom, ramSize, h.ROMBanks), nil
	case 0x11, 0x12, 0x13:
		return newMBC3(rom, ramSize), nil
	case 0x19, 0x1A, 0x1B:
		return newMBC5(rom, ramSize), nil
	default:
		return nil, &UnsupportedCartridgeError{CartType: h.CartType}
	}
}
