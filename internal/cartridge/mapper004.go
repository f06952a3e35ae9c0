package cartridge

// Mapper004 implements a partial MMC3 (§4.5): bank-select/bank-data
// register pair at $8000/$8001 with two PRG modes and two CHR modes, and
// mirroring at $A000. The scanline IRQ counter is modeled as specified —
// OnScanlineTick decrements it and latches a pending flag, but nothing in
// this release delivers that flag to the CPU as an actual IRQ.
type Mapper004 struct {
	cart *Cartridge

	bankSelect uint8 // target register + PRG/CHR mode bits
	registers  [8]uint8
	mirror     MirrorMode
	prgRAMProtect uint8

	irqLatch   uint8
	irqCounter uint8
	irqEnable  bool
	irqReload  bool
	IRQPending bool

	prg8KBanks int
	chr1KBanks int
}

// NewMapper004 creates a new MMC3 mapper.
func NewMapper004(cart *Cartridge) *Mapper004 {
	prgBanks := len(cart.prgROM) / 0x2000
	if prgBanks == 0 {
		prgBanks = 1
	}
	chrBanks := len(cart.chrROM) / 0x400
	if chrBanks == 0 {
		chrBanks = 8
	}
	return &Mapper004{cart: cart, prg8KBanks: prgBanks, chr1KBanks: chrBanks, mirror: cart.mirror}
}

func (m *Mapper004) prgMode() uint8 { return (m.bankSelect >> 6) & 0x01 }
func (m *Mapper004) chrMode() uint8 { return (m.bankSelect >> 7) & 0x01 }

func (m *Mapper004) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	lastBank := m.prg8KBanks - 1
	secondLastBank := m.prg8KBanks - 2

	r6 := int(m.registers[6]) % m.prg8KBanks
	r7 := int(m.registers[7]) % m.prg8KBanks

	var bank int
	switch {
	case address < 0xA000:
		if m.prgMode() == 0 {
			bank = r6
		} else {
			bank = secondLastBank
		}
	case address < 0xC000:
		bank = r7
	case address < 0xE000:
		if m.prgMode() == 0 {
			bank = secondLastBank
		} else {
			bank = r6
		}
	default:
		bank = lastBank
	}
	offset := int(address & 0x1FFF)
	idx := bank*0x2000 + offset
	if idx < 0 || idx >= len(m.cart.prgROM) {
		return 0
	}
	return m.cart.prgROM[idx]
}

func (m *Mapper004) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
		return
	}
	if address < 0x8000 {
		return
	}
	even := address%2 == 0
	switch {
	case address < 0xA000:
		if even {
			m.bankSelect = value
		} else {
			m.registers[m.bankSelect&0x07] = value
		}
	case address < 0xC000:
		if even {
			if value&0x01 != 0 {
				m.mirror = MirrorHorizontal
			} else {
				m.mirror = MirrorVertical
			}
		} else {
			m.prgRAMProtect = value
		}
	case address < 0xE000:
		if even {
			m.irqLatch = value
		} else {
			m.irqReload = true
		}
	default:
		if even {
			m.irqEnable = false
			m.IRQPending = false
		} else {
			m.irqEnable = true
		}
	}
}

// OnScanlineTick decrements the IRQ counter once per visible scanline, per
// the stub contract described in §4.5.
func (m *Mapper004) OnScanlineTick() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnable {
		m.IRQPending = true
	}
}

func (m *Mapper004) ReadCHR(address uint16) uint8 {
	if address >= 0x2000 {
		return 0
	}
	idx := m.chrIndex(address)
	if idx < 0 || idx >= len(m.cart.chrROM) {
		return 0
	}
	return m.cart.chrROM[idx]
}

func (m *Mapper004) WriteCHR(address uint16, value uint8) {
	if address >= 0x2000 || !m.cart.hasCHRRAM {
		return
	}
	idx := m.chrIndex(address)
	if idx >= 0 && idx < len(m.cart.chrROM) {
		m.cart.chrROM[idx] = value
	}
}

func (m *Mapper004) chrIndex(address uint16) int {
	// Two 2 KiB regions (R0, R1 with low bit ignored) and four 1 KiB
	// regions (R2-R5), swapped between $0000/$1000 by the CHR mode bit.
	region := address
	if m.chrMode() != 0 {
		region ^= 0x1000
	}
	var bank int
	var offset int
	switch {
	case region < 0x0800:
		bank = int(m.registers[0] &^ 1)
		offset = int(region)
	case region < 0x1000:
		bank = int(m.registers[1] &^ 1)
		offset = int(region - 0x0800)
	case region < 0x1400:
		bank = int(m.registers[2])
		offset = int(region - 0x1000)
	case region < 0x1800:
		bank = int(m.registers[3])
		offset = int(region - 0x1400)
	case region < 0x1C00:
		bank = int(m.registers[4])
		offset = int(region - 0x1800)
	default:
		bank = int(m.registers[5])
		offset = int(region - 0x1C00)
	}
	bank = bank % m.chr1KBanks
	return bank*0x400 + offset
}

func (m *Mapper004) MirrorMode() MirrorMode { return m.mirror }

func (m *Mapper004) SaveState() []byte {
	buf := make([]byte, 0, 20+0x2000+len(m.cart.chrROM))
	buf = append(buf, m.bankSelect)
	buf = append(buf, m.registers[:]...)
	buf = append(buf, uint8(m.mirror), m.prgRAMProtect, m.irqLatch, m.irqCounter,
		boolToByte(m.irqEnable), boolToByte(m.irqReload), boolToByte(m.IRQPending))
	buf = append(buf, m.cart.sram[:]...)
	if m.cart.hasCHRRAM {
		buf = append(buf, m.cart.chrROM...)
	}
	return buf
}

func (m *Mapper004) LoadState(data []byte) {
	const headerLen = 1 + 8 + 7
	if len(data) < headerLen+0x2000 {
		return
	}
	i := 0
	m.bankSelect = data[i]
	i++
	copy(m.registers[:], data[i:i+8])
	i += 8
	m.mirror = MirrorMode(data[i])
	m.prgRAMProtect = data[i+1]
	m.irqLatch = data[i+2]
	m.irqCounter = data[i+3]
	m.irqEnable = data[i+4] != 0
	m.irqReload = data[i+5] != 0
	m.IRQPending = data[i+6] != 0
	i += 7
	copy(m.cart.sram[:], data[i:i+0x2000])
	i += 0x2000
	if m.cart.hasCHRRAM && len(data) > i {
		copy(m.cart.chrROM, data[i:])
	}
}
