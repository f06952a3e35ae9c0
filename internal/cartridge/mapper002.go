package cartridge

// Mapper002 implements UxROM (§4.5): a single 16 KiB bank switchable at
// $8000, with the last bank fixed at $C000. CHR is typically RAM.
type Mapper002 struct {
	cart        *Cartridge
	prgBank     uint8
	prg16KBanks int
}

// NewMapper002 creates a new UxROM mapper.
func NewMapper002(cart *Cartridge) *Mapper002 {
	banks := len(cart.prgROM) / 0x4000
	if banks == 0 {
		banks = 1
	}
	return &Mapper002{cart: cart, prg16KBanks: banks}
}

func (m *Mapper002) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	if address < 0xC000 {
		bank := int(m.prgBank) % m.prg16KBanks
		idx := bank*0x4000 + int(address-0x8000)
		if idx < len(m.cart.prgROM) {
			return m.cart.prgROM[idx]
		}
		return 0
	}
	lastBank := m.prg16KBanks - 1
	idx := lastBank*0x4000 + int(address-0xC000)
	if idx < len(m.cart.prgROM) {
		return m.cart.prgROM[idx]
	}
	return 0
}

func (m *Mapper002) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	if address >= 0x8000 {
		m.prgBank = value
	}
}

func (m *Mapper002) ReadCHR(address uint16) uint8 {
	if address < 0x2000 && int(address) < len(m.cart.chrROM) {
		return m.cart.chrROM[address]
	}
	return 0
}

func (m *Mapper002) WriteCHR(address uint16, value uint8) {
	if address < 0x2000 && m.cart.hasCHRRAM && int(address) < len(m.cart.chrROM) {
		m.cart.chrROM[address] = value
	}
}

func (m *Mapper002) MirrorMode() MirrorMode { return m.cart.mirror }

func (m *Mapper002) SaveState() []byte {
	buf := make([]byte, 0, 1+0x2000+len(m.cart.chrROM))
	buf = append(buf, m.prgBank)
	buf = append(buf, m.cart.sram[:]...)
	if m.cart.hasCHRRAM {
		buf = append(buf, m.cart.chrROM...)
	}
	return buf
}

func (m *Mapper002) LoadState(data []byte) {
	if len(data) < 1+0x2000 {
		return
	}
	m.prgBank = data[0]
	copy(m.cart.sram[:], data[1:1+0x2000])
	if m.cart.hasCHRRAM {
		copy(m.cart.chrROM, data[1+0x2000:])
	}
}
