package cartridge

import (
	"testing"
)

func newMapper009Cart(prg8KBanks, chr4KBanks int) (*Cartridge, *Mapper009) {
	cart := &Cartridge{
		prgROM: make([]uint8, prg8KBanks*0x2000),
		chrROM: make([]uint8, chr4KBanks*0x1000),
	}
	for i := range cart.prgROM {
		cart.prgROM[i] = uint8(i / 0x2000)
	}
	for i := range cart.chrROM {
		cart.chrROM[i] = uint8(i/0x1000) + 0x40
	}
	m := NewMapper009(cart)
	cart.mapper = m
	return cart, m
}

func TestMapper009_PowerOnLatchesAre0xFE(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	if m.latch0 != 0xFE || m.latch1 != 0xFE {
		t.Errorf("Expected both latches to power on at 0xFE, got %02X/%02X", m.latch0, m.latch1)
	}
}

func TestMapper009_FixedUpperThreeBanks(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	if got, want := m.ReadPRG(0xA000), uint8(5); got != want { // prg8KBanks-3 = 5
		t.Errorf("Expected bank 5 fixed at $A000, got %d", got)
	}
	if got, want := m.ReadPRG(0xC000), uint8(6); got != want {
		t.Errorf("Expected bank 6 fixed at $C000, got %d", got)
	}
	if got, want := m.ReadPRG(0xE000), uint8(7); got != want {
		t.Errorf("Expected bank 7 fixed at $E000, got %d", got)
	}
}

func TestMapper009_SwitchablePRGBankAt8000(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	m.WritePRG(0xA000, 3)
	if got := m.ReadPRG(0x8000); got != 3 {
		t.Errorf("Expected switched bank 3 at $8000, got %d", got)
	}
}

func TestMapper009_LatchSwitchingOnCHRFetch(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	m.chr0FD = 1
	m.chr0FE = 2

	// latch0 defaults to FE -> bank 2
	if got := m.ReadCHR(0x0000); got != 0x42 {
		t.Errorf("Expected chr0FE bank (2) selected before trigger, got 0x%02X", got)
	}

	// Reading the 0xFD8 trigger address flips latch0 to FD.
	m.ReadCHR(0x0FD8)
	if got := m.ReadCHR(0x0000); got != 0x41 {
		t.Errorf("Expected chr0FD bank (1) selected after 0xFD8 trigger, got 0x%02X", got)
	}

	// Reading the 0xFE8 trigger address flips it back to FE.
	m.ReadCHR(0x0FE8)
	if got := m.ReadCHR(0x0000); got != 0x42 {
		t.Errorf("Expected chr0FE bank (2) selected after 0xFE8 trigger, got 0x%02X", got)
	}
}

func TestMapper009_IndependentSecondLatch(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	m.chr0FE = 2 // distinguishable latch0 bank, should stay untouched below
	m.chr1FD = 3
	m.chr1FE = 4
	m.ReadCHR(0x1FD8)

	if got := m.ReadCHR(0x1000); got != 0x43 {
		t.Errorf("Expected chr1FD bank (3) at $1000 after 0x1FD8 trigger, got 0x%02X", got)
	}
	// First latch must be unaffected by the second latch's trigger.
	if got := m.ReadCHR(0x0000); got != 0x42 {
		t.Errorf("Expected latch0 unaffected by latch1 trigger, got 0x%02X", got)
	}
}

func TestMapper009_MirrorModeFromF000(t *testing.T) {
	_, m := newMapper009Cart(8, 8)

	m.WritePRG(0xF000, 1)
	if got := m.MirrorMode(); got != MirrorHorizontal {
		t.Errorf("Expected MirrorHorizontal, got %v", got)
	}
	m.WritePRG(0xF000, 0)
	if got := m.MirrorMode(); got != MirrorVertical {
		t.Errorf("Expected MirrorVertical, got %v", got)
	}
}

func TestMapper009_SaveLoadStateRoundTrip(t *testing.T) {
	_, m := newMapper009Cart(8, 8)
	m.WritePRG(0xA000, 4)
	m.ReadCHR(0x0FD8)

	saved := m.SaveState()
	fresh := NewMapper009(m.cart)
	fresh.LoadState(saved)

	if fresh.prgBank != m.prgBank || fresh.latch0 != m.latch0 {
		t.Error("LoadState did not restore prgBank/latch0")
	}
}
