package cartridge

// Mapper007 implements AxROM (§4.5): a switchable 32 KiB PRG bank, with
// single-screen mirroring selected by bit 4 of the bank register.
type Mapper007 struct {
	cart       *Cartridge
	prgBank    uint8
	mirror     MirrorMode
	prg32KBanks int
}

// NewMapper007 creates a new AxROM mapper.
func NewMapper007(cart *Cartridge) *Mapper007 {
	banks := len(cart.prgROM) / 0x8000
	if banks == 0 {
		banks = 1
	}
	return &Mapper007{cart: cart, prg32KBanks: banks, mirror: MirrorSingleScreen0}
}

func (m *Mapper007) ReadPRG(address uint16) uint8 {
	if address < 0x8000 {
		return 0
	}
	bank := int(m.prgBank) % m.prg32KBanks
	idx := bank*0x8000 + int(address-0x8000)
	if idx < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *Mapper007) WritePRG(address uint16, value uint8) {
	if address < 0x8000 {
		return
	}
	m.prgBank = value & 0x07
	if value&0x10 != 0 {
		m.mirror = MirrorSingleScreen1
	} else {
		m.mirror = MirrorSingleScreen0
	}
}

func (m *Mapper007) ReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *Mapper007) WriteCHR(address uint16, value uint8) {
	if address < 0x2000 && m.cart.hasCHRRAM && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *Mapper007) MirrorMode() MirrorMode { return m.mirror }

func (m *Mapper007) SaveState() []byte {
	buf := make([]byte, 0, 2+len(m.cart.chrROM))
	buf = append(buf, m.prgBank, uint8(m.mirror))
	if m.cart.hasCHRRAM {
		buf = append(buf, m.cart.chrROM...)
	}
	return buf
}

func (m *Mapper007) LoadState(data []byte) {
	if len(data) < 2 {
		return
	}
	m.prgBank = data[0]
	m.mirror = MirrorMode(data[1])
	if m.cart.hasCHRRAM && len(data) > 2 {
		copy(m.cart.chrROM, data[2:])
	}
}
