// Package ppu implements the Picture Processing Unit for the NES (2C02).
package ppu

import (
	"github.com/golang/glog"

	"gones/internal/memory"
)

// SpriteYMode selects how OAM sprite Y coordinates are interpreted (§4.3).
type SpriteYMode uint8

const (
	SpriteYHardware SpriteYMode = iota // OAM Y == top-1; Y >= 0xF0 hides
	SpriteYTest                        // OAM Y == top exactly
)

// LeftColumnMode controls how the leftmost 8 pixels are masked (§6).
type LeftColumnMode uint8

const (
	LeftColumnAsMask LeftColumnMode = iota // honor MASK show-left-8 bits
	LeftColumnAlwaysVisible
	LeftColumnAlwaysBlank
)

const (
	maxSpritesHardware = 8
	maxSpritesUnlimited = 64
)

// PPU represents the NES Picture Processing Unit (2C02).
type PPU struct {
	// PPU Registers (CPU-visible)
	ppuCtrl   uint8 // $2000 - PPUCTRL
	ppuMask   uint8 // $2001 - PPUMASK
	ppuStatus uint8 // $2002 - PPUSTATUS
	oamAddr   uint8 // $2003 - OAMADDR

	// Internal PPU state (loopy registers)
	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle

	memory *memory.PPUMemory

	// Timing
	scanline   int // -1..260
	cycle      int // 0..340
	frameCount uint64
	oddFrame   bool
	readBuffer uint8 // PPUDATA buffered-read delay

	// Background fetch pipeline: latches filled by the 8-cycle fetch and
	// shifted into the 16-bit shift registers on phase 0 (§4.3).
	ntLatch, atLatch, patLoLatch, patHiLatch uint8
	bgShiftPatternLo, bgShiftPatternHi       uint16
	bgShiftAttrLo, bgShiftAttrHi             uint16

	// Sprite evaluation / rendering
	oam            [256]uint8
	secondaryOAM   []uint8 // up to 4*maxSprites bytes (Y, tile, attr, X) for next line
	spriteIndex    []uint8 // original OAM index per prepared sprite
	spritePatLo    []uint8
	spritePatHi    []uint8
	spriteAttr     []uint8
	spriteX        []uint8
	spriteCount    int
	spriteZeroIn   bool // sprite 0 is among the prepared sprites for this line
	sprite0Hit     bool
	spriteOverflow bool

	// Background opacity of the pixel just composited, needed for the
	// sprite-zero-hit test on the same cycle (§3's "pre-sprite buffer").
	bgOpaqueThisPixel bool

	frameBuffer [256 * 240]uint32

	nmiLine     bool // current logical NMI output line state
	nmiCallback func(state bool)
	onFrame     func()

	spriteYMode     SpriteYMode
	unlimitedSprite bool
	leftColumnMode  LeftColumnMode
}

// New creates a new PPU instance.
func New() *PPU {
	p := &PPU{
		scanline: -1,
	}
	p.secondaryOAM = make([]uint8, 0, maxSpritesUnlimited*4)
	p.spriteIndex = make([]uint8, 0, maxSpritesUnlimited)
	p.spritePatLo = make([]uint8, 0, maxSpritesUnlimited)
	p.spritePatHi = make([]uint8, 0, maxSpritesUnlimited)
	p.spriteAttr = make([]uint8, 0, maxSpritesUnlimited)
	p.spriteX = make([]uint8, 0, maxSpritesUnlimited)
	return p
}

// Reset reinitializes the PPU to the pre-render-line, cleared-shift-register
// state described in §3's Lifecycle: mapper/VRAM content is untouched.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0
	p.oamAddr = 0

	p.v = 0
	p.t = 0
	p.x = 0
	p.w = false

	p.scanline = -1
	p.cycle = 0
	p.oddFrame = false
	p.readBuffer = 0

	p.ntLatch, p.atLatch, p.patLoLatch, p.patHiLatch = 0, 0, 0, 0
	p.bgShiftPatternLo, p.bgShiftPatternHi = 0, 0
	p.bgShiftAttrLo, p.bgShiftAttrHi = 0, 0

	p.secondaryOAM = p.secondaryOAM[:0]
	p.spriteIndex = p.spriteIndex[:0]
	p.spritePatLo = p.spritePatLo[:0]
	p.spritePatHi = p.spritePatHi[:0]
	p.spriteAttr = p.spriteAttr[:0]
	p.spriteX = p.spriteX[:0]
	p.spriteCount = 0
	p.spriteZeroIn = false
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.nmiLine = false
	if p.nmiCallback != nil {
		p.nmiCallback(false)
	}
}

// SetMemory attaches the PPU-side memory bus (CHR/nametable/palette).
func (p *PPU) SetMemory(m *memory.PPUMemory) { p.memory = m }

// SetNMICallback registers the sink for NMI line-state changes. The edge
// detector that decides whether a 0->1 transition fires an interrupt lives
// in the CPU (cpu.SetNMI); the PPU only reports the line's logical level.
func (p *PPU) SetNMICallback(callback func(state bool)) { p.nmiCallback = callback }

// SetFrameCompleteCallback registers a callback invoked once per completed
// frame (scanline -1, cycle 0 boundary).
func (p *PPU) SetFrameCompleteCallback(callback func()) { p.onFrame = callback }

// SetSpriteYMode selects hardware or test OAM-Y semantics (§4.3); persisted
// across save-state via SaveState/LoadState.
func (p *PPU) SetSpriteYMode(mode SpriteYMode) { p.spriteYMode = mode }

// SetUnlimitedSprites lifts the 8-sprites-per-line rendering limit for
// visual debugging; it never affects the overflow flag (§4.3).
func (p *PPU) SetUnlimitedSprites(enabled bool) { p.unlimitedSprite = enabled }

// SetLeftColumnMode overrides how the left 8 pixels are masked (§6).
func (p *PPU) SetLeftColumnMode(mode LeftColumnMode) { p.leftColumnMode = mode }

func (p *PPU) maxSprites() int {
	if p.unlimitedSprite {
		return maxSpritesUnlimited
	}
	return maxSpritesHardware
}

// ReadRegister handles CPU reads of $2000-$2007 (mirrored every 8 bytes by
// the bus).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address & 7 {
	case 2: // PPUSTATUS
		status := p.ppuStatus & 0xE0
		p.ppuStatus &^= 0x80 // clear vblank
		p.w = false
		return status
	case 4: // OAMDATA
		// §9 open question: rendering-time reads are not specially
		// modeled; return the current byte at OAMADDR.
		return p.oam[p.oamAddr]
	case 7: // PPUDATA
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister handles CPU writes of $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address & 7 {
	case 0: // PPUCTRL
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | (uint16(value&0x03) << 10)
		p.updateNMILine()
	case 1: // PPUMASK
		p.ppuMask = value
	case 3: // OAMADDR
		p.oamAddr = value
	case 4: // OAMDATA
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 5: // PPUSCROLL
		p.writePPUScroll(value)
	case 6: // PPUADDR
		p.writePPUAddr(value)
	case 7: // PPUDATA
		p.writePPUData(value)
	}
}

func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
	} else {
		p.t = (p.t & 0x8FFF) | (uint16(value&0x07) << 12)
		p.t = (p.t & 0xFC1F) | (uint16(value&0xF8) << 2)
	}
	p.w = !p.w
}

func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x00FF) | (uint16(value&0x3F) << 8)
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t & 0x7FFF
	}
	p.w = !p.w
}

func (p *PPU) readPPUData() uint8 {
	addr := p.v & 0x3FFF
	var result uint8
	if addr >= 0x3F00 {
		result = p.memory.Read(addr)
		p.readBuffer = p.memory.Read(addr - 0x1000)
	} else {
		result = p.readBuffer
		p.readBuffer = p.memory.Read(addr)
	}
	p.v = (p.v + p.vramIncrement()) & 0x7FFF
	return result
}

func (p *PPU) writePPUData(value uint8) {
	p.memory.Write(p.v&0x3FFF, value)
	p.v = (p.v + p.vramIncrement()) & 0x7FFF
}

func (p *PPU) vramIncrement() uint16 {
	if p.ppuCtrl&0x04 != 0 {
		return 32
	}
	return 1
}

// WriteOAM writes a byte into primary OAM, used by the bus during OAM DMA.
func (p *PPU) WriteOAM(address uint8, value uint8) { p.oam[address] = value }

func (p *PPU) showBackground() bool { return p.ppuMask&0x08 != 0 }
func (p *PPU) showSprites() bool    { return p.ppuMask&0x10 != 0 }
func (p *PPU) renderingEnabled() bool {
	return p.showBackground() || p.showSprites()
}

// Step advances the PPU by exactly one PPU cycle.
func (p *PPU) Step() {
	p.tickVisibleOrPrerender()

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.onFrame != nil {
				p.onFrame()
			}
		}
	} else if p.scanline == -1 && p.cycle == 339 && p.oddFrame && p.renderingEnabled() {
		// Odd-frame cycle skip: jump straight to scanline 0, cycle 0.
		p.cycle = 0
		p.scanline = 0
		p.frameCount++
		p.oddFrame = !p.oddFrame
		if p.onFrame != nil {
			p.onFrame()
		}
	}
}

func (p *PPU) tickVisibleOrPrerender() {
	isPrerender := p.scanline == -1
	isVisible := p.scanline >= 0 && p.scanline <= 239

	if isPrerender && p.cycle == 1 {
		p.ppuStatus &^= 0xE0 // clear vblank, sprite0, overflow
		p.sprite0Hit = false
		p.spriteOverflow = false
		p.updateNMILine()
	}

	if isVisible || isPrerender {
		if (p.cycle >= 1 && p.cycle <= 256) || (p.cycle >= 321 && p.cycle <= 336) {
			p.backgroundFetchCycle()
		}
		if p.cycle == 256 {
			p.incrementY()
		}
		if p.cycle == 257 {
			p.copyHorizontal()
		}
		if isPrerender && p.cycle >= 280 && p.cycle <= 304 {
			p.copyVertical()
		}
		if p.cycle == 257 {
			p.evaluateSprites()
		}
		if p.cycle == 340 {
			p.loadSpritePatterns()
		}
	}

	if isVisible && p.cycle >= 1 && p.cycle <= 256 {
		p.renderPixel(p.cycle-1, p.scanline)
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80 // vblank
		p.updateNMILine()
	}
}

// backgroundFetchCycle implements the 8-phase tile fetch of §4.3.
func (p *PPU) backgroundFetchCycle() {
	if !p.renderingEnabled() {
		return
	}
	switch (p.cycle - 1) % 8 {
	case 0:
		p.loadBackgroundShifters()
		p.ntLatch = p.memory.Read(0x2000 | (p.v & 0x0FFF))
	case 2:
		attrAddr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		attr := p.memory.Read(attrAddr)
		shift := ((p.v >> 4) & 0x04) | (p.v & 0x02)
		p.atLatch = (attr >> shift) & 0x03
	case 4:
		base := uint16(0)
		if p.ppuCtrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.ntLatch)*16 + fineY
		p.patLoLatch = p.memory.Read(addr)
	case 6:
		base := uint16(0)
		if p.ppuCtrl&0x10 != 0 {
			base = 0x1000
		}
		fineY := (p.v >> 12) & 0x07
		addr := base + uint16(p.ntLatch)*16 + fineY + 8
		p.patHiLatch = p.memory.Read(addr)
	case 7:
		p.incrementX()
	}
}

func (p *PPU) loadBackgroundShifters() {
	p.bgShiftPatternLo = (p.bgShiftPatternLo & 0xFF00) | uint16(p.patLoLatch)
	p.bgShiftPatternHi = (p.bgShiftPatternHi & 0xFF00) | uint16(p.patHiLatch)
	attrLo := uint16(0)
	attrHi := uint16(0)
	if p.atLatch&0x01 != 0 {
		attrLo = 0xFF
	}
	if p.atLatch&0x02 != 0 {
		attrHi = 0xFF
	}
	p.bgShiftAttrLo = (p.bgShiftAttrLo & 0xFF00) | attrLo
	p.bgShiftAttrHi = (p.bgShiftAttrHi & 0xFF00) | attrHi
}

func (p *PPU) shiftBackground() {
	if !p.showBackground() {
		return
	}
	p.bgShiftPatternLo <<= 1
	p.bgShiftPatternHi <<= 1
	p.bgShiftAttrLo <<= 1
	p.bgShiftAttrHi <<= 1
}

// incrementX implements coarse-X wraparound with nametable toggle (§4.3).
func (p *PPU) incrementX() {
	if !p.renderingEnabled() {
		return
	}
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY implements fine-Y rollover into coarse Y with the 29/31
// wraparound rules of §4.3/§8.
func (p *PPU) incrementY() {
	if !p.renderingEnabled() {
		return
	}
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	coarseY := (p.v & 0x03E0) >> 5
	switch coarseY {
	case 29:
		coarseY = 0
		p.v ^= 0x0800
	case 31:
		coarseY = 0
	default:
		coarseY++
	}
	p.v = (p.v &^ 0x03E0) | (coarseY << 5)
}

func (p *PPU) copyHorizontal() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v &^ 0x041F) | (p.t & 0x041F)
}

func (p *PPU) copyVertical() {
	if !p.renderingEnabled() {
		return
	}
	p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0)
}

func (p *PPU) updateNMILine() {
	line := p.ppuStatus&0x80 != 0 && p.ppuCtrl&0x80 != 0
	if line != p.nmiLine {
		p.nmiLine = line
		if p.nmiCallback != nil {
			p.nmiCallback(line)
		}
	}
}

// renderPixel composites the background and sprite pixel at (x, scanline)
// into the frame buffer and evaluates sprite-zero hit (§4.3), then shifts
// the background registers.
func (p *PPU) renderPixel(x, y int) {
	bgPixel, bgPalette := p.backgroundPixelAt(x)
	spPixel, spPalette, spBehind, spIsZero := p.spritePixelAt(x)

	bgOpaque := bgPixel != 0
	spOpaque := spPixel != 0
	p.bgOpaqueThisPixel = bgOpaque

	var paletteIndex uint16
	switch {
	case !bgOpaque && !spOpaque:
		paletteIndex = 0x3F00
	case !bgOpaque && spOpaque:
		paletteIndex = 0x3F10 + uint16(spPalette)*4 + uint16(spPixel)
	case bgOpaque && !spOpaque:
		paletteIndex = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
	default:
		if spBehind {
			paletteIndex = 0x3F00 + uint16(bgPalette)*4 + uint16(bgPixel)
		} else {
			paletteIndex = 0x3F10 + uint16(spPalette)*4 + uint16(spPixel)
		}
		if spIsZero && bgOpaque && p.showBackground() && p.showSprites() && p.spriteZeroIn {
			// Sprite-0 hit in columns 0-7 additionally requires BOTH left-8
			// masking bits set: if either layer is clipped there, hardware
			// never reports a hit in that region.
			if p.leftOk(x, 0x06) {
				p.sprite0Hit = true
				p.ppuStatus |= 0x40
			}
		}
	}

	colorIndex := p.memory.Read(paletteIndex) & 0x3F
	p.frameBuffer[y*256+x] = NESColorToRGB(colorIndex)

	p.shiftBackground()
	p.shiftSprites()
}

// leftOkBG reports whether background pixels in columns 0-7 are visible,
// gated solely by MASK bit 1 (show-BG-left-8) per spec.
func (p *PPU) leftOkBG(x int) bool {
	return p.leftOk(x, 0x02)
}

// leftOkSprite reports whether sprite pixels in columns 0-7 are visible,
// gated solely by MASK bit 2 (show-SPR-left-8). Independent of leftOkBG:
// a ROM that sets only one of the two bits must not blank the other layer.
func (p *PPU) leftOkSprite(x int) bool {
	return p.leftOk(x, 0x04)
}

// leftOk reports whether pixel x is visible under the left-column masking
// rule currently in effect for a single MASK bit (0x02 for background,
// 0x04 for sprites).
func (p *PPU) leftOk(x int, maskBit uint8) bool {
	if x >= 8 {
		return true
	}
	switch p.leftColumnMode {
	case LeftColumnAlwaysVisible:
		return true
	case LeftColumnAlwaysBlank:
		return false
	default:
		return p.ppuMask&maskBit != 0
	}
}

func (p *PPU) backgroundPixelAt(x int) (pixel uint8, palette uint8) {
	if !p.showBackground() {
		return 0, 0
	}
	if x < 8 && !p.leftOkBG(x) {
		return 0, 0
	}
	mux := uint16(0x8000) >> p.x
	patLo := uint8(0)
	patHi := uint8(0)
	if p.bgShiftPatternLo&mux != 0 {
		patLo = 1
	}
	if p.bgShiftPatternHi&mux != 0 {
		patHi = 1
	}
	attrLo := uint8(0)
	attrHi := uint8(0)
	if p.bgShiftAttrLo&mux != 0 {
		attrLo = 1
	}
	if p.bgShiftAttrHi&mux != 0 {
		attrHi = 1
	}
	pixel = (patHi << 1) | patLo
	palette = (attrHi << 1) | attrLo
	return pixel, palette
}

func (p *PPU) spritePixelAt(x int) (pixel uint8, palette uint8, behind bool, isZero bool) {
	if !p.showSprites() {
		return 0, 0, false, false
	}
	if x < 8 && !p.leftOkSprite(x) {
		return 0, 0, false, false
	}
	for i := 0; i < p.spriteCount; i++ {
		offset := x - int(p.spriteX[i])
		if offset < 0 || offset > 7 {
			continue
		}
		lo := (p.spritePatLo[i] >> uint(7-offset)) & 1
		hi := (p.spritePatHi[i] >> uint(7-offset)) & 1
		value := (hi << 1) | lo
		if value == 0 {
			continue
		}
		attr := p.spriteAttr[i]
		return value, attr & 0x03, attr&0x20 != 0, p.spriteIndex[i] == 0
	}
	return 0, 0, false, false
}

func (p *PPU) shiftSprites() {
	if !p.showSprites() {
		return
	}
	for i := 0; i < p.spriteCount; i++ {
		if p.spriteX[i] > 0 {
			p.spriteX[i]--
		}
	}
}

// evaluateSprites prepares the sprite list for the scanline that will next
// become visible (§4.3, §8's "prepared-sprite-list line" invariant).
func (p *PPU) evaluateSprites() {
	targetLine := p.scanline + 1
	p.secondaryOAM = p.secondaryOAM[:0]
	p.spriteIndex = p.spriteIndex[:0]
	count := 0
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}
	limit := p.maxSprites()
	overflowSeen := false
	for i := 0; i < 64; i++ {
		y := p.oam[i*4]
		top := p.spriteTop(y)
		if targetLine < top || targetLine >= top+spriteHeight {
			continue
		}
		if count < limit {
			p.secondaryOAM = append(p.secondaryOAM,
				p.oam[i*4], p.oam[i*4+1], p.oam[i*4+2], p.oam[i*4+3])
			p.spriteIndex = append(p.spriteIndex, uint8(i))
			count++
		} else {
			overflowSeen = true
			break
		}
	}
	p.spriteCount = count
	p.spriteZeroIn = count > 0 && p.spriteIndex[0] == 0
	if overflowSeen {
		p.spriteOverflow = true
		p.ppuStatus |= 0x20
	}
}

// spriteTop converts a raw OAM Y byte to the sprite's top scanline per the
// configured sprite-Y semantics (§4.3).
func (p *PPU) spriteTop(y uint8) int {
	if p.spriteYMode == SpriteYTest {
		return int(y)
	}
	if y >= 0xF0 {
		return 1 << 20 // hidden on all lines
	}
	return int(y) + 1
}

// loadSpritePatterns fetches pattern bytes for each prepared sprite at
// cycle 340, matching hardware's dummy-fetch-driven loading.
func (p *PPU) loadSpritePatterns() {
	count := p.spriteCount
	p.spritePatLo = p.spritePatLo[:0]
	p.spritePatHi = p.spritePatHi[:0]
	p.spriteAttr = p.spriteAttr[:0]
	p.spriteX = p.spriteX[:0]

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}
	targetLine := p.scanline + 1

	for i := 0; i < count; i++ {
		y := p.secondaryOAM[i*4]
		tile := p.secondaryOAM[i*4+1]
		attr := p.secondaryOAM[i*4+2]
		x := p.secondaryOAM[i*4+3]

		top := p.spriteTop(y)
		row := targetLine - top
		flipV := attr&0x80 != 0
		flipH := attr&0x40 != 0
		if flipV {
			row = spriteHeight - 1 - row
		}

		var addr uint16
		if spriteHeight == 16 {
			table := uint16(tile&0x01) * 0x1000
			tileIndex := uint16(tile &^ 0x01)
			if row >= 8 {
				tileIndex++
				row -= 8
			}
			addr = table + tileIndex*16 + uint16(row)
		} else {
			table := uint16(0)
			if p.ppuCtrl&0x08 != 0 {
				table = 0x1000
			}
			addr = table + uint16(tile)*16 + uint16(row)
		}

		lo := p.memory.Read(addr)
		hi := p.memory.Read(addr + 8)
		if flipH {
			lo = flipByte(lo)
			hi = flipByte(hi)
		}
		p.spritePatLo = append(p.spritePatLo, lo)
		p.spritePatHi = append(p.spritePatHi, hi)
		p.spriteAttr = append(p.spriteAttr, attr)
		p.spriteX = append(p.spriteX, x)
	}
}

func flipByte(b uint8) uint8 {
	b = (b&0xF0)>>4 | (b&0x0F)<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// GetFrameBuffer returns the current RGB frame buffer.
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 { return p.frameBuffer }

// GetFrameCount returns the number of frames completed.
func (p *PPU) GetFrameCount() uint64 { return p.frameCount }

// SetFrameCount overrides the frame counter (used when synchronizing with
// the scheduler on reset or load-state).
func (p *PPU) SetFrameCount(count uint64) { p.frameCount = count }

// GetScanline returns the current scanline (-1..260).
func (p *PPU) GetScanline() int { return p.scanline }

// GetCycle returns the current PPU cycle within the scanline (0..340).
func (p *PPU) GetCycle() int { return p.cycle }

// IsRenderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool { return p.renderingEnabled() }

// IsVBlank reports the current vblank flag.
func (p *PPU) IsVBlank() bool { return p.ppuStatus&0x80 != 0 }

// ClearFrameBuffer fills the frame buffer with a solid color (diagnostics).
func (p *PPU) ClearFrameBuffer(color uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = color
	}
}

// NES 2C02 master color palette (NTSC), 64 entries.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES palette index into packed 0xAARRGGBB.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		glog.Warningf("palette index out of range: %d", colorIndex)
		return 0xFF000000
	}
	return nesColorPalette[colorIndex]
}

// NESColorToRGB is the PPU-method form of the package function, kept for
// call sites that hold only a *PPU.
func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 { return NESColorToRGB(colorIndex) }

// SaveState serializes PPU register/timing/VRAM state per §4.6. The frame
// buffer is explicitly excluded — it is regenerated by the next frame.
func (p *PPU) SaveState() []byte {
	buf := make([]byte, 0, 64+2048+32)
	put16 := func(v uint16) { buf = append(buf, uint8(v), uint8(v>>8)) }
	put64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf = append(buf, uint8(v>>(8*i)))
		}
	}

	buf = append(buf, p.ppuCtrl, p.ppuMask, p.ppuStatus, p.oamAddr)
	put16(p.v)
	put16(p.t)
	buf = append(buf, p.x, boolToByte(p.w))
	put16(uint16(p.scanline + 1)) // biased so -1 round-trips through uint16
	put16(uint16(p.cycle))
	put64(p.frameCount)
	buf = append(buf, boolToByte(p.oddFrame), p.readBuffer)
	buf = append(buf, p.ntLatch, p.atLatch, p.patLoLatch, p.patHiLatch)
	put16(p.bgShiftPatternLo)
	put16(p.bgShiftPatternHi)
	put16(p.bgShiftAttrLo)
	put16(p.bgShiftAttrHi)
	buf = append(buf, boolToByte(p.sprite0Hit), boolToByte(p.spriteOverflow))
	buf = append(buf, boolToByte(p.nmiLine))
	buf = append(buf, uint8(p.spriteYMode), boolToByte(p.unlimitedSprite), uint8(p.leftColumnMode))

	buf = append(buf, p.oam[:]...)

	if p.memory != nil {
		nametables, palette := p.memory.SnapshotVRAM()
		buf = append(buf, nametables[:]...)
		buf = append(buf, palette[:]...)
	}
	return buf
}

// LoadState restores PPU state from a buffer produced by SaveState, then
// runs the §4.6 normalize-after-load step (nothing extra needed here since
// the shift registers and OAM are restored verbatim).
func (p *PPU) LoadState(buf []byte) {
	const headerSize = 4 + 2 + 2 + 1 + 1 + 2 + 2 + 8 + 1 + 1 + 4 + 2 + 2 + 2 + 2 + 1 + 1 + 1 + 1 + 1 + 1
	if len(buf) < headerSize+256 {
		glog.Warning("ppu load-state buffer too small, ignoring")
		return
	}
	i := 0
	get16 := func() uint16 {
		v := uint16(buf[i]) | uint16(buf[i+1])<<8
		i += 2
		return v
	}
	get64 := func() uint64 {
		var v uint64
		for b := 0; b < 8; b++ {
			v |= uint64(buf[i+b]) << (8 * b)
		}
		i += 8
		return v
	}

	p.ppuCtrl, p.ppuMask, p.ppuStatus, p.oamAddr = buf[i], buf[i+1], buf[i+2], buf[i+3]
	i += 4
	p.v = get16()
	p.t = get16()
	p.x, p.w = buf[i], buf[i+1] != 0
	i += 2
	p.scanline = int(get16()) - 1
	p.cycle = int(get16())
	p.frameCount = get64()
	p.oddFrame, p.readBuffer = buf[i] != 0, buf[i+1]
	i += 2
	p.ntLatch, p.atLatch, p.patLoLatch, p.patHiLatch = buf[i], buf[i+1], buf[i+2], buf[i+3]
	i += 4
	p.bgShiftPatternLo = get16()
	p.bgShiftPatternHi = get16()
	p.bgShiftAttrLo = get16()
	p.bgShiftAttrHi = get16()
	p.sprite0Hit, p.spriteOverflow = buf[i] != 0, buf[i+1] != 0
	i += 2
	p.nmiLine = buf[i] != 0
	i++
	p.spriteYMode = SpriteYMode(buf[i])
	p.unlimitedSprite = buf[i+1] != 0
	p.leftColumnMode = LeftColumnMode(buf[i+2])
	i += 3

	copy(p.oam[:], buf[i:i+256])
	i += 256

	if p.memory != nil && len(buf) >= i+0x1000+32 {
		var nametables [0x1000]uint8
		var palette [32]uint8
		copy(nametables[:], buf[i:i+0x1000])
		copy(palette[:], buf[i+0x1000:i+0x1000+32])
		p.memory.RestoreVRAM(nametables, palette)
	}

	// normalize_after_load (§4.6): park on the pre-render line with cleared
	// transient pipeline state; persistent VRAM/OAM/palette are untouched.
	p.scanline = -1
	p.cycle = 0
	p.ntLatch, p.atLatch, p.patLoLatch, p.patHiLatch = 0, 0, 0, 0
	p.bgShiftPatternLo, p.bgShiftPatternHi = 0, 0
	p.bgShiftAttrLo, p.bgShiftAttrHi = 0, 0
	p.spriteCount = 0
	p.secondaryOAM = p.secondaryOAM[:0]
	p.spriteIndex = p.spriteIndex[:0]
	p.spritePatLo = p.spritePatLo[:0]
	p.spritePatHi = p.spritePatHi[:0]
	p.spriteAttr = p.spriteAttr[:0]
	p.spriteX = p.spriteX[:0]

	if p.nmiCallback != nil {
		p.nmiCallback(p.nmiLine)
	}
}

func boolToByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
