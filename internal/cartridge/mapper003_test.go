package cartridge

import (
	"testing"
)

func newMapper003Cart(prgBanks, chrBanks int) (*Cartridge, *Mapper003) {
	cart := &Cartridge{
		prgROM: make([]uint8, prgBanks*0x4000),
		chrROM: make([]uint8, chrBanks*0x2000),
	}
	for i := range cart.prgROM {
		cart.prgROM[i] = uint8((i & 0xFF) ^ (i >> 8))
	}
	for i := range cart.chrROM {
		cart.chrROM[i] = uint8((i/0x2000)*0x10 + 1)
	}
	m := NewMapper003(cart)
	cart.mapper = m
	return cart, m
}

func TestMapper003_PRGFixed_16KBMirrored(t *testing.T) {
	_, m := newMapper003Cart(1, 2)

	if got1, got2 := m.ReadPRG(0x8000), m.ReadPRG(0xC000); got1 != got2 {
		t.Errorf("Expected 16KB PRG to mirror across $8000/$C000, got %d vs %d", got1, got2)
	}
}

func TestMapper003_PRGFixed_32KBNotMirrored(t *testing.T) {
	_, m := newMapper003Cart(2, 2)

	got1, got2 := m.ReadPRG(0x8000), m.ReadPRG(0xC000)
	if got1 == got2 {
		t.Error("Expected 32KB PRG to differ between $8000 and $C000")
	}
}

func TestMapper003_CHRBankSwitchedByAnyWrite(t *testing.T) {
	_, m := newMapper003Cart(1, 4)

	m.WritePRG(0x8000, 2) // any $8000-$FFFF write selects CHR bank
	if got := m.ReadCHR(0x0000); got != 0x21 {
		t.Errorf("Expected CHR bank 2 selected, got 0x%02X", got)
	}

	m.WritePRG(0xFFFF, 0)
	if got := m.ReadCHR(0x0000); got != 0x01 {
		t.Errorf("Expected CHR bank 0 selected after write to $FFFF, got 0x%02X", got)
	}
}

func TestMapper003_CHRIsReadOnlyWithoutCHRRAM(t *testing.T) {
	_, m := newMapper003Cart(1, 1)

	before := m.ReadCHR(0x0010)
	m.WriteCHR(0x0010, 0xFF)
	if got := m.ReadCHR(0x0010); got != before {
		t.Error("Expected CHR ROM write to be ignored without hasCHRRAM")
	}
}

func TestMapper003_SaveLoadStateRoundTrip(t *testing.T) {
	_, m := newMapper003Cart(1, 4)
	m.WritePRG(0x8000, 3)
	m.WritePRG(0x6000, 0x77)

	saved := m.SaveState()
	fresh := NewMapper003(m.cart)
	fresh.LoadState(saved)

	if fresh.chrBank != m.chrBank {
		t.Error("LoadState did not restore chrBank")
	}
	if fresh.ReadPRG(0x6000) != 0x77 {
		t.Error("LoadState did not restore PRG RAM")
	}
}
