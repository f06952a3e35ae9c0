package cartridge

import (
	"testing"
)

func newMapper002Cart(prgBanks int) (*Cartridge, *Mapper002) {
	cart := &Cartridge{
		prgROM:    make([]uint8, prgBanks*0x4000),
		chrROM:    make([]uint8, 0x2000),
		hasCHRRAM: true,
	}
	for i := range cart.prgROM {
		cart.prgROM[i] = uint8(i / 0x4000)
	}
	m := NewMapper002(cart)
	cart.mapper = m
	return cart, m
}

func TestMapper002_LastBankFixedAtC000(t *testing.T) {
	_, m := newMapper002Cart(4)

	if got := m.ReadPRG(0xC000); got != 3 {
		t.Errorf("Expected last bank (3) fixed at $C000, got %d", got)
	}
	// Switching the low bank must not move the fixed high bank.
	m.WritePRG(0x8000, 0)
	if got := m.ReadPRG(0xC000); got != 3 {
		t.Errorf("Expected $C000 unaffected by bank switch, got %d", got)
	}
}

func TestMapper002_SwitchableBankAt8000(t *testing.T) {
	_, m := newMapper002Cart(4)

	m.WritePRG(0x8000, 2)
	if got := m.ReadPRG(0x8000); got != 2 {
		t.Errorf("Expected switched bank 2 at $8000, got %d", got)
	}

	m.WritePRG(0x8000, 0)
	if got := m.ReadPRG(0x8000); got != 0 {
		t.Errorf("Expected switched bank 0 at $8000, got %d", got)
	}
}

func TestMapper002_BankRegisterWraps(t *testing.T) {
	_, m := newMapper002Cart(2)

	// Any write value is accepted verbatim, but reads wrap modulo bank count.
	m.WritePRG(0x8000, 5)
	if got := m.ReadPRG(0x8000); got != 1 { // 5 % 2 == 1
		t.Errorf("Expected bank index to wrap to 1, got %d", got)
	}
}

func TestMapper002_PRGRAM(t *testing.T) {
	_, m := newMapper002Cart(2)

	m.WritePRG(0x6000, 0x7E)
	if got := m.ReadPRG(0x6000); got != 0x7E {
		t.Errorf("Expected PRG RAM round trip, got 0x%02X", got)
	}
}

func TestMapper002_SaveLoadStateRoundTrip(t *testing.T) {
	_, m := newMapper002Cart(4)
	m.WritePRG(0x8000, 3)
	m.WritePRG(0x6000, 0x11)

	saved := m.SaveState()
	fresh := NewMapper002(m.cart)
	fresh.LoadState(saved)

	if fresh.prgBank != m.prgBank {
		t.Error("LoadState did not restore prgBank")
	}
	if fresh.ReadPRG(0x6000) != 0x11 {
		t.Error("LoadState did not restore PRG RAM")
	}
}
