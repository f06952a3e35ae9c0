package cartridge

import (
	"testing"
)

// writeMMC1 performs a full 5-bit serial write to MMC1 at the given address.
func writeMMC1(m *Mapper001, address uint16, value uint8) {
	for i := 0; i < 5; i++ {
		m.WritePRG(address, (value>>uint(i))&0x01)
	}
}

func newMapper001Cart(prgBanks, chrBanks int) (*Cartridge, *Mapper001) {
	cart := &Cartridge{
		prgROM: make([]uint8, prgBanks*0x4000),
		chrROM: make([]uint8, chrBanks*0x1000),
	}
	for i := range cart.prgROM {
		cart.prgROM[i] = uint8((i / 0x4000) + 1)
	}
	m := NewMapper001(cart)
	cart.mapper = m
	return cart, m
}

func TestMapper001_PowerOnState_FixLastSwitchFirst(t *testing.T) {
	_, m := newMapper001Cart(4, 2)

	if m.prgMode() != 3 {
		t.Errorf("Expected power-on PRG mode 3 (fix-last/switch-first), got %d", m.prgMode())
	}
}

func TestMapper001_SerialLatch_CommitsOnFifthWrite(t *testing.T) {
	_, m := newMapper001Cart(4, 2)

	// Select CHR bank 0 register ($A000-BFFF) with value 5, one bit per write.
	m.WritePRG(0xA000, 1) // bit0=1
	m.WritePRG(0xA000, 0) // bit1=0
	m.WritePRG(0xA000, 1) // bit2=1
	m.WritePRG(0xA000, 0) // bit3=0
	m.WritePRG(0xA000, 0) // bit4=0 -> commits 0b00101 = 5

	if m.chrBank0 != 5 {
		t.Errorf("Expected chrBank0=5 after fifth write, got %d", m.chrBank0)
	}
	if m.writeCount != 0 || m.shiftReg != 0 {
		t.Error("Expected shift register and write count reset after commit")
	}
}

func TestMapper001_ResetBit_AbortsLatchAndForcesMode3(t *testing.T) {
	_, m := newMapper001Cart(4, 2)

	m.WritePRG(0x8000, 1)
	m.WritePRG(0x8000, 1)
	if m.writeCount != 2 {
		t.Fatalf("Expected writeCount=2 mid-sequence, got %d", m.writeCount)
	}

	// Bit 7 set resets the latch immediately, regardless of target address.
	m.WritePRG(0x8000, 0x80)

	if m.writeCount != 0 || m.shiftReg != 0 {
		t.Error("Expected latch reset after a bit-7 write")
	}
	if m.prgMode() != 3 {
		t.Errorf("Expected PRG mode forced to 3 after reset, got %d", m.prgMode())
	}
}

func TestMapper001_PRGBankSwitching_FixLastSwitchFirst(t *testing.T) {
	_, m := newMapper001Cart(4, 2)

	writeMMC1(m, 0xE000, 1) // select PRG bank 1 ($8000-BFFF)

	if got := m.ReadPRG(0x8000); got != 2 { // bank 1 filled with value 2
		t.Errorf("Expected switched bank value 2 at $8000, got %d", got)
	}
	if got := m.ReadPRG(0xC000); got != 4 { // last bank (3) fixed at $C000, value 4
		t.Errorf("Expected fixed last bank value 4 at $C000, got %d", got)
	}
}

func TestMapper001_PRGRAMDisable(t *testing.T) {
	_, m := newMapper001Cart(2, 2)

	m.WritePRG(0x6000, 0x42)
	if got := m.ReadPRG(0x6000); got != 0x42 {
		t.Fatalf("Expected PRG RAM write/read round trip, got %d", got)
	}

	// Commit prgBank register with bit 4 set (PRG RAM disable).
	writeMMC1(m, 0xE000, 0x10)

	if got := m.ReadPRG(0x6000); got != 0 {
		t.Errorf("Expected PRG RAM disabled to read 0, got %d", got)
	}
	m.WritePRG(0x6000, 0x99)
	writeMMC1(m, 0xE000, 0x00) // re-enable PRG RAM
	if got := m.ReadPRG(0x6000); got != 0x42 {
		t.Errorf("Expected write while disabled to be ignored, got %d", got)
	}
}

func TestMapper001_MirrorMode(t *testing.T) {
	_, m := newMapper001Cart(2, 2)

	cases := []struct {
		control uint8
		want    MirrorMode
	}{
		{0, MirrorSingleScreen0},
		{1, MirrorSingleScreen1},
		{2, MirrorVertical},
		{3, MirrorHorizontal},
	}
	for _, c := range cases {
		writeMMC1(m, 0x8000, c.control)
		if got := m.MirrorMode(); got != c.want {
			t.Errorf("control=%d: expected mirror %v, got %v", c.control, c.want, got)
		}
	}
}

func TestMapper001_SaveLoadStateRoundTrip(t *testing.T) {
	_, m := newMapper001Cart(4, 2)
	writeMMC1(m, 0xE000, 2)
	writeMMC1(m, 0xA000, 7)
	m.WritePRG(0x6000, 0x55)

	saved := m.SaveState()

	fresh := NewMapper001(m.cart)
	fresh.LoadState(saved)

	if fresh.prgBank != m.prgBank || fresh.chrBank0 != m.chrBank0 {
		t.Error("LoadState did not restore bank registers")
	}
	if fresh.ReadPRG(0x6000) != 0x55 {
		t.Error("LoadState did not restore PRG RAM")
	}
}
