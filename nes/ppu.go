/*
PPU
2C02 图像处理单元，按点(dot)推进

每帧 262 根扫描线，每线 341 点
0-239 可见，240 空闲，241 点1 进入VBlank，261 预渲染线
PPU时钟是CPU三倍
*/
package nes

import (
	"image"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 240

	vblankLine    = 241
	preRenderLine = 261
	lastDot       = 340
)

// loopy v/t 寄存器各字段
const (
	coarseXBits  uint16 = 0x001f
	coarseYBits  uint16 = 0x03e0
	nameTableX   uint16 = 0x0400
	nameTableY   uint16 = 0x0800
	fineYBits    uint16 = 0x7000
	horizontalVT uint16 = coarseXBits | nameTableX
	verticalVT   uint16 = fineYBits | nameTableY | coarseYBits
)

// $2000 PPUCTRL
type ppuCtrl byte

func (c ppuCtrl) nameTable() uint16 { return uint16(c & 0x03) }

// PPUDATA 访问后地址增量
func (c ppuCtrl) addressStep() uint16 {
	if c&0x04 != 0 {
		return 32
	}
	return 1
}

func (c ppuCtrl) spriteTable() uint16     { return uint16(c>>3&1) << 12 }
func (c ppuCtrl) backgroundTable() uint16 { return uint16(c>>4&1) << 12 }

func (c ppuCtrl) spriteHeight() int {
	if c&0x20 != 0 {
		return 16
	}
	return 8
}

func (c ppuCtrl) nmiEnabled() bool { return c&0x80 != 0 }

// $2001 PPUMASK
type ppuMask byte

const (
	maskGrayscale ppuMask = 1 << iota
	maskLeftBackground
	maskLeftSprites
	maskBackground
	maskSprites
)

func (m ppuMask) has(bit ppuMask) bool { return m&bit != 0 }

// 当前扫描线上选中的一个精灵
type spriteSlot struct {
	pattern uint32 // 8个点，每点4bit(调色板2bit+颜色2bit)
	x       byte
	behind  bool // 在背景之后
	index   byte // OAM编号，0号用于命中检测
}

type PPU struct {
	Cycle    int // 0-340
	ScanLine int // 0-261
	Frame    uint64

	oam   [256]byte
	front *image.RGBA
	back  *image.RGBA

	ctrl ppuCtrl
	mask ppuMask

	// PPUSTATUS
	vblank         bool
	spriteZeroHit  bool
	spriteOverflow bool

	latch      byte // 最近一次写入寄存器的值，读$2002低5位
	oamAddr    byte
	readBuffer byte // PPUDATA 延迟读缓冲

	nmiLine    bool // vblank && nmiEnabled
	nmiPending bool // 等待console转发给CPU

	// loopy
	v        uint16
	t        uint16
	x        byte // fine X
	w        bool // 双写寄存器的第二次
	oddFrame bool

	// 背景取数
	tileIndex   byte
	tilePalette byte
	tileLow     byte
	tileHigh    byte
	bgShift     uint64 // 高32bit是正在输出的tile

	// 关闭数量限制时一行最多64个
	spriteLimit bool
	spriteCount int
	sprites     [64]spriteSlot
}

func NewPPU() PPU {
	ppu := PPU{spriteLimit: true}
	ppu.front = image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	ppu.back = image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	ppu.Reset()
	return ppu
}

func (ppu *PPU) Reset() {
	ppu.ctrl = 0
	ppu.mask = 0
	ppu.oamAddr = 0
	ppu.vblank = false
	ppu.nmiLine = false
	ppu.nmiPending = false
	ppu.w = false
	ppu.Cycle = lastDot
	ppu.ScanLine = 240
	ppu.Frame = 0
}

// Buffer 最近一帧完成的图像
func (ppu *PPU) Buffer() *image.RGBA {
	return ppu.front
}

// VBlank $2002 D7 当前状态，不产生读副作用
func (ppu *PPU) VBlank() bool {
	return ppu.vblank
}

func (ppu *PPU) renderingEnabled() bool {
	return ppu.mask.has(maskBackground) || ppu.mask.has(maskSprites)
}

func (ppu *PPU) nextFrame() {
	ppu.ScanLine = 0
	ppu.Frame++
	ppu.oddFrame = !ppu.oddFrame
}

func (ppu *PPU) tick() {
	// 奇数帧开启渲染时预渲染线少一个点
	if ppu.oddFrame && ppu.ScanLine == preRenderLine && ppu.Cycle == lastDot-1 && ppu.renderingEnabled() {
		ppu.Cycle = 0
		ppu.nextFrame()
		return
	}
	if ppu.Cycle++; ppu.Cycle <= lastDot {
		return
	}
	ppu.Cycle = 0
	if ppu.ScanLine++; ppu.ScanLine > preRenderLine {
		ppu.nextFrame()
	}
}

// Step 推进一个PPU点
func (ppu *PPU) Step(mem *PPUMemory) {
	ppu.tick()

	if ppu.renderingEnabled() {
		ppu.render(mem)
	}

	if ppu.Cycle != 1 {
		return
	}
	switch ppu.ScanLine {
	case vblankLine:
		ppu.setVBlank()
	case preRenderLine:
		ppu.clearVBlank()
		ppu.spriteZeroHit = false
		ppu.spriteOverflow = false
	}
}

// 可见线和预渲染线上的取数、滚动和精灵计算
func (ppu *PPU) render(mem *PPUMemory) {
	dot := ppu.Cycle
	visible := ppu.ScanLine < ScreenHeight
	if !visible && ppu.ScanLine != preRenderLine {
		return
	}

	drawing := dot >= 1 && dot <= ScreenWidth
	if visible && drawing {
		ppu.renderPixel(mem)
	}

	// 321-336 预取下一行的前两个tile
	if drawing || (dot >= 321 && dot <= 336) {
		ppu.bgShift <<= 4
		ppu.fetchBackground(mem, dot%8)
		if dot%8 == 0 {
			ppu.incrementX()
		}
	}

	switch dot {
	case 256:
		ppu.incrementY()
	case 257:
		ppu.copyX()
		if visible {
			ppu.evaluateSprites(mem)
		} else {
			ppu.spriteCount = 0
		}
	case 260:
		// MMC3 计数器
		mem.clockScanline()
	}

	if ppu.ScanLine == preRenderLine && dot >= 280 && dot <= 304 {
		ppu.copyY()
	}
}

// 每8个点一组: 1 名称表 3 属性表 5 图样低位 7 图样高位 0 装入移位寄存器
func (ppu *PPU) fetchBackground(mem *PPUMemory, phase int) {
	switch phase {
	case 1:
		ppu.tileIndex = mem.Read(0x2000 | ppu.v&0x0fff)
	case 3:
		coarseX := ppu.v & coarseXBits
		coarseY := (ppu.v & coarseYBits) >> 5
		// 每个属性字节管4x4个tile，每2x2一组占2bit
		address := 0x23c0 | ppu.v&(nameTableX|nameTableY) | coarseY>>2<<3 | coarseX>>2
		shift := (coarseY&2)<<1 | coarseX&2
		ppu.tilePalette = (mem.Read(address) >> shift & 3) << 2
	case 5:
		ppu.tileLow = mem.Read(ppu.backgroundAddress())
	case 7:
		ppu.tileHigh = mem.Read(ppu.backgroundAddress() + 8)
	case 0:
		ppu.bgShift |= uint64(decodeRow(ppu.tileLow, ppu.tileHigh, ppu.tilePalette, false))
	}
}

func (ppu *PPU) backgroundAddress() uint16 {
	fineY := (ppu.v & fineYBits) >> 12
	return ppu.ctrl.backgroundTable() + uint16(ppu.tileIndex)*16 + fineY
}

// 两个位平面合成8个4bit点，左边的点在高位
func decodeRow(low, high, palette byte, mirrored bool) uint32 {
	var row uint32
	for i := 0; i < 8; i++ {
		bit := 7 - i
		if mirrored {
			bit = i
		}
		pixel := (low>>bit)&1 | ((high>>bit)&1)<<1
		row = row<<4 | uint32(palette|pixel)
	}
	return row
}

func (ppu *PPU) renderPixel(mem *PPUMemory) {
	x := ppu.Cycle - 1
	y := ppu.ScanLine

	bg := ppu.backgroundPixel()
	slot, sp := ppu.spritePixel()
	if x < 8 && !ppu.mask.has(maskLeftBackground) {
		bg = 0
	}
	if x < 8 && !ppu.mask.has(maskLeftSprites) {
		sp = 0
	}

	var index byte
	switch opaqueBg, opaqueSp := bg&3 != 0, sp&3 != 0; {
	case opaqueBg && opaqueSp:
		if ppu.sprites[slot].index == 0 && x < ScreenWidth-1 {
			ppu.spriteZeroHit = true
		}
		if ppu.sprites[slot].behind {
			index = bg
		} else {
			index = 0x10 | sp
		}
	case opaqueSp:
		index = 0x10 | sp
	case opaqueBg:
		index = bg
	}

	color := mem.readPalette(uint16(index)) & 0x3f
	if ppu.mask.has(maskGrayscale) {
		color &= 0x30
	}
	ppu.back.SetRGBA(x, y, Palette[color])
}

func (ppu *PPU) backgroundPixel() byte {
	if !ppu.mask.has(maskBackground) {
		return 0
	}
	current := uint32(ppu.bgShift >> 32)
	return byte(current>>((7-ppu.x)*4)) & 0x0f
}

// 返回命中的槽位和颜色，编号小的精灵优先
func (ppu *PPU) spritePixel() (int, byte) {
	if !ppu.mask.has(maskSprites) {
		return 0, 0
	}
	for i := 0; i < ppu.spriteCount; i++ {
		s := &ppu.sprites[i]
		column := ppu.Cycle - 1 - int(s.x)
		if column < 0 || column > 7 {
			continue
		}
		pixel := byte(s.pattern>>((7-column)*4)) & 0x0f
		if pixel&3 != 0 {
			return i, pixel
		}
	}
	return 0, 0
}

// https://github.com/dustpg/BlogFM/issues/17
func (ppu *PPU) evaluateSprites(mem *PPUMemory) {
	height := ppu.ctrl.spriteHeight()
	limit := len(ppu.sprites)
	if ppu.spriteLimit {
		limit = 8
	}

	found := 0
	for i := 0; i < 64; i++ {
		entry := ppu.oam[i*4 : i*4+4]
		row := ppu.ScanLine - int(entry[0])
		if row < 0 || row >= height {
			continue
		}
		if found < limit {
			ppu.sprites[found] = spriteSlot{
				pattern: ppu.fetchSpritePattern(mem, i, row),
				x:       entry[3],
				behind:  entry[2]&0x20 != 0,
				index:   byte(i),
			}
		}
		found++
	}
	// 硬件一行只取8个
	if found > 8 {
		ppu.spriteOverflow = true
	}
	ppu.spriteCount = min(found, limit)
}

// i 是OAM编号，row 是精灵内的行
func (ppu *PPU) fetchSpritePattern(mem *PPUMemory, i, row int) uint32 {
	tile := uint16(ppu.oam[i*4+1])
	attribute := ppu.oam[i*4+2]
	height := ppu.ctrl.spriteHeight()

	if attribute&0x80 != 0 {
		row = height - 1 - row
	}

	var address uint16
	if height == 8 {
		address = ppu.ctrl.spriteTable() + tile*16 + uint16(row)
	} else {
		// 8x16 由tile的D0选择图样表，上下两块连续
		table := (tile & 1) << 12
		tile &^= 1
		if row > 7 {
			tile++
			row -= 8
		}
		address = table + tile*16 + uint16(row)
	}

	palette := (attribute & 3) << 2
	return decodeRow(mem.Read(address), mem.Read(address+8), palette, attribute&0x40 != 0)
}

func (ppu *PPU) copyX() {
	ppu.v = ppu.v&^horizontalVT | ppu.t&horizontalVT
}

func (ppu *PPU) copyY() {
	ppu.v = ppu.v&^verticalVT | ppu.t&verticalVT
}

func (ppu *PPU) incrementX() {
	if ppu.v&coarseXBits == coarseXBits {
		ppu.v &^= coarseXBits
		ppu.v ^= nameTableX
		return
	}
	ppu.v++
}

func (ppu *PPU) incrementY() {
	if ppu.v&fineYBits != fineYBits {
		ppu.v += 0x1000
		return
	}
	ppu.v &^= fineYBits
	coarseY := (ppu.v & coarseYBits) >> 5
	switch coarseY {
	case 29:
		coarseY = 0
		ppu.v ^= nameTableY
	case 31:
		// 属性区，不切换名称表
		coarseY = 0
	default:
		coarseY++
	}
	ppu.v = ppu.v&^coarseYBits | coarseY<<5
}

func (ppu *PPU) setVBlank() {
	ppu.front, ppu.back = ppu.back, ppu.front
	ppu.vblank = true
	ppu.nmiChange()
}

func (ppu *PPU) clearVBlank() {
	ppu.vblank = false
	ppu.nmiChange()
}

// VBlank和$2000 D7同时为真的上升沿产生一次NMI
func (ppu *PPU) nmiChange() {
	line := ppu.vblank && ppu.ctrl.nmiEnabled()
	if line && !ppu.nmiLine {
		ppu.nmiPending = true
	}
	ppu.nmiLine = line
}

// 取走等待中的NMI
func (ppu *PPU) pollNMI() bool {
	pending := ppu.nmiPending
	ppu.nmiPending = false
	return pending
}

func (ppu *PPU) readRegister(address uint16, mem *PPUMemory) byte {
	switch address {
	case 0x2002:
		return ppu.readStatus()
	case 0x2004:
		return ppu.readOAMData()
	case 0x2007:
		return ppu.readData(mem)
	}
	return 0
}

// https://wiki.nesdev.org/w/index.php?title=PPU_registers
func (ppu *PPU) writeRegister(address uint16, value byte, mem *PPUMemory) {
	ppu.latch = value
	switch address {
	case 0x2000:
		ppu.writeControl(value)
	case 0x2001:
		ppu.writeMask(value)
	case 0x2003:
		ppu.oamAddr = value
	case 0x2004:
		ppu.writeOAMData(value)
	case 0x2005:
		ppu.writeScroll(value)
	case 0x2006:
		ppu.writeAddress(value)
	case 0x2007:
		mem.Write(ppu.v, value)
		ppu.incrementAddress()
	}
}

func (ppu *PPU) writeControl(value byte) {
	ppu.ctrl = ppuCtrl(value)
	ppu.nmiChange()
	ppu.t = ppu.t&^(nameTableX|nameTableY) | ppu.ctrl.nameTable()<<10
}

func (ppu *PPU) writeMask(value byte) {
	ppu.mask = ppuMask(value)
}

// $2002 读取清除VBlank和写入锁存
func (ppu *PPU) readStatus() byte {
	status := ppu.latch & 0x1f
	if ppu.spriteOverflow {
		status |= 0x20
	}
	if ppu.spriteZeroHit {
		status |= 0x40
	}
	if ppu.vblank {
		status |= 0x80
	}
	ppu.vblank = false
	ppu.nmiChange()
	ppu.w = false
	return status
}

// 读不增加地址，属性字节的D2-D4不存在
func (ppu *PPU) readOAMData() byte {
	value := ppu.oam[ppu.oamAddr]
	if ppu.oamAddr&0x03 == 0x02 {
		value &= 0xe3
	}
	return value
}

func (ppu *PPU) writeOAMData(value byte) {
	ppu.oam[ppu.oamAddr] = value
	ppu.oamAddr++
}

// $2005 第一次写X，第二次写Y
func (ppu *PPU) writeScroll(value byte) {
	if !ppu.w {
		ppu.t = ppu.t&^coarseXBits | uint16(value>>3)
		ppu.x = value & 0x07
	} else {
		ppu.t = ppu.t&^(fineYBits|coarseYBits) | uint16(value&0x07)<<12 | uint16(value>>3)<<5
	}
	ppu.w = !ppu.w
}

// $2006 先高6位后低8位，第二次写入后v=t
func (ppu *PPU) writeAddress(value byte) {
	if !ppu.w {
		ppu.t = ppu.t&0x00ff | uint16(value&0x3f)<<8
	} else {
		ppu.t = ppu.t&0xff00 | uint16(value)
		ppu.v = ppu.t
	}
	ppu.w = !ppu.w
}

func (ppu *PPU) incrementAddress() {
	ppu.v = (ppu.v + ppu.ctrl.addressStep()) & 0x7fff
}

// $2007 调色板直接返回，其余延迟一次
func (ppu *PPU) readData(mem *PPUMemory) byte {
	value := mem.Read(ppu.v)
	if ppu.v&0x3fff < 0x3f00 {
		value, ppu.readBuffer = ppu.readBuffer, value
	} else {
		value &= 0x3f
		// 缓冲区拿到调色板下面的名称表
		ppu.readBuffer = mem.Read(ppu.v - 0x1000)
	}
	ppu.incrementAddress()
	return value
}
