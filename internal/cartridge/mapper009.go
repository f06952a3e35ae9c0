package cartridge

// Mapper009 implements MMC2 (§4.5): an 8 KiB switchable PRG bank at $8000
// with three fixed banks above it, and two independent CHR latches that
// flip between their 0xFD/0xFE bank selection when the PPU reads specific
// tile-row addresses within each 4 KiB half of the pattern table.
type Mapper009 struct {
	cart *Cartridge

	prgBank uint8 // 8 KiB bank at $8000

	chr0FD, chr0FE uint8 // banks for $0000-$0FFF, selected by latch0
	chr1FD, chr1FE uint8 // banks for $1000-$1FFF, selected by latch1
	latch0, latch1 uint8 // 0xFD or 0xFE

	mirror MirrorMode

	prg8KBanks int
	chr4KBanks int
}

// NewMapper009 creates a new MMC2 mapper with both latches defaulting to
// 0xFE, matching hardware power-up.
func NewMapper009(cart *Cartridge) *Mapper009 {
	prgBanks := len(cart.prgROM) / 0x2000
	if prgBanks == 0 {
		prgBanks = 1
	}
	chrBanks := len(cart.chrROM) / 0x1000
	if chrBanks == 0 {
		chrBanks = 2
	}
	return &Mapper009{
		cart:       cart,
		latch0:     0xFE,
		latch1:     0xFE,
		prg8KBanks: prgBanks,
		chr4KBanks: chrBanks,
		mirror:     MirrorVertical,
	}
}

func (m *Mapper009) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	switch {
	case address < 0xA000:
		bank := int(m.prgBank) % m.prg8KBanks
		return m.romByte(bank*0x2000 + int(address-0x8000))
	case address < 0xC000:
		return m.romByte((m.prg8KBanks-3)*0x2000 + int(address-0xA000))
	case address < 0xE000:
		return m.romByte((m.prg8KBanks-2)*0x2000 + int(address-0xC000))
	default:
		return m.romByte((m.prg8KBanks-1)*0x2000 + int(address-0xE000))
	}
}

func (m *Mapper009) romByte(idx int) uint8 {
	if idx < 0 || idx >= len(m.cart.prgROM) {
		return 0
	}
	return m.cart.prgROM[idx]
}

func (m *Mapper009) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	switch {
	case address >= 0xA000 && address < 0xB000:
		m.prgBank = value & 0x0F
	case address >= 0xB000 && address < 0xC000:
		m.chr0FD = value & 0x1F
	case address >= 0xC000 && address < 0xD000:
		m.chr0FE = value & 0x1F
	case address >= 0xD000 && address < 0xE000:
		m.chr1FD = value & 0x1F
	case address >= 0xE000 && address < 0xF000:
		m.chr1FE = value & 0x1F
	case address >= 0xF000:
		if value&0x01 != 0 {
			m.mirror = MirrorHorizontal
		} else {
			m.mirror = MirrorVertical
		}
	}
}

// ReadCHR reads a CHR byte and updates the relevant latch when the address
// matches one of MMC2's four tile-row trigger addresses.
func (m *Mapper009) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	value := m.chrByte(address)
	switch address {
	case 0x0FD8:
		m.latch0 = 0xFD
	case 0x0FE8:
		m.latch0 = 0xFE
	case 0x1FD8:
		m.latch1 = 0xFD
	case 0x1FE8:
		m.latch1 = 0xFE
	}
	return value
}

func (m *Mapper009) chrByte(address uint16) uint8 {
	var bank uint8
	var offset int
	if address < 0x1000 {
		if m.latch0 == 0xFD {
			bank = m.chr0FD
		} else {
			bank = m.chr0FE
		}
		offset = int(address)
	} else {
		if m.latch1 == 0xFD {
			bank = m.chr1FD
		} else {
			bank = m.chr1FE
		}
		offset = int(address - 0x1000)
	}
	idx := int(bank)%m.chr4KBanks*0x1000 + offset
	if idx < 0 || idx >= len(m.cart.chrROM) {
		return 0
	}
	return m.cart.chrROM[idx]
}

// WriteCHR is a no-op: MMC2 cartridges always ship CHR ROM.
func (m *Mapper009) WriteCHR(address uint16, value uint8) {}

func (m *Mapper009) MirrorMode() MirrorMode { return m.mirror }

func (m *Mapper009) SaveState() []byte {
	buf := make([]byte, 0, 8+0x2000)
	buf = append(buf, m.prgBank, m.chr0FD, m.chr0FE, m.chr1FD, m.chr1FE, m.latch0, m.latch1, uint8(m.mirror))
	buf = append(buf, m.cart.sram[:]...)
	return buf
}

func (m *Mapper009) LoadState(data []byte) {
	if len(data) < 8+0x2000 {
		return
	}
	m.prgBank, m.chr0FD, m.chr0FE = data[0], data[1], data[2]
	m.chr1FD, m.chr1FE, m.latch0, m.latch1 = data[3], data[4], data[5], data[6]
	m.mirror = MirrorMode(data[7])
	copy(m.cart.sram[:], data[8:8+0x2000])
}
