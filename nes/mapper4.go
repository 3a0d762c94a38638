package nes

/*
mapper4 (MMC3)
4对寄存器，都在>=0x8000，奇偶地址各对应一个：
$8000-$9FFF 偶: bank select  奇: bank data
$A000-$BFFF 偶: mirroring    奇: PRG RAM 保护
$C000-$DFFF 偶: IRQ latch    奇: IRQ reload
$E000-$FFFF 偶: IRQ disable  奇: IRQ enable

Bank select ($8000-$9FFE, even)
7  bit  0
---- ----
CPMx xRRR
|||   |||
|||   +++- 下次写 bank data 时更新 R0-R7 中的哪一个
|||          R0/R1: 2KB CHR bank, R2-R5: 1KB CHR bank, R6/R7: 8KB PRG bank
|+-------- PRG ROM bank mode (0: $8000 可切换, $C000 固定倒数第二块; 1: 反过来)
+--------- CHR A12 inversion (0: 2KB bank 在 $0000-$0FFF; 1: 在 $1000-$1FFF)
*/

type Mapper4 struct {
	cartView
	regIndex  byte    // 寄存器索引
	registers [8]byte // R0-R7
	prgMode   byte
	chrMode   byte

	mirror    MirrorMode
	mirrorSet bool // 写过$A000之前使用头部镜像

	irqLatch   byte // 计数器重载值
	irqCounter byte // 计数器当前值
	irqReload  bool
	irqEnable  bool
	irqPending bool

	// 每个bank对应的地址offset
	prgOffsets [4]int
	chrOffsets [8]int
}

func NewMapper4(view cartView) *Mapper4 {
	m := Mapper4{cartView: view}
	m.calculateBank()
	return &m
}

// ClockIRQ PPU每条扫描线调用一次
func (m *Mapper4) ClockIRQ() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnable {
		m.irqPending = true
	}
}

func (m *Mapper4) HasIRQ() bool {
	return m.irqPending
}

func (m *Mapper4) setBankSelect(value byte) {
	m.regIndex = value & 7
	m.prgMode = (value >> 6) & 1
	m.chrMode = (value >> 7) & 1
	m.calculateBank()
}

func (m *Mapper4) setBankData(value byte) {
	m.registers[m.regIndex] = value
	m.calculateBank()
}

func (m *Mapper4) setMirroring(value byte) {
	if value&1 == 1 {
		m.mirror = MirrorHorizontal
	} else {
		m.mirror = MirrorVertical
	}
	m.mirrorSet = true
}

func (m *Mapper4) writeRegister(addr uint16, value byte) {
	even := addr%2 == 0
	switch {
	case addr <= 0x9fff && even:
		m.setBankSelect(value)
	case addr <= 0x9fff:
		m.setBankData(value)
	case addr <= 0xbfff && even:
		m.setMirroring(value)
	case addr <= 0xbfff:
		// PRG RAM 保护，不实现
	case addr <= 0xdfff && even:
		m.irqLatch = value
	case addr <= 0xdfff:
		m.irqCounter = 0
		m.irqReload = true
	case even:
		// 关闭的同时确认已挂起的中断
		m.irqEnable = false
		m.irqPending = false
	default:
		m.irqEnable = true
	}
}

func (m *Mapper4) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		newAddr := addr - 0x8000
		bank := newAddr / 0x2000
		offset := newAddr % 0x2000
		return m.prg[(m.prgOffsets[bank]+int(offset))%len(m.prg)]
	case addr >= 0x6000:
		return m.readSRAM(addr)
	}
	return 0
}

func (m *Mapper4) Write(addr uint16, value byte) {
	switch {
	case addr >= 0x8000:
		m.writeRegister(addr, value)
	case addr >= 0x6000:
		m.writeSRAM(addr, value)
	}
}

func (m *Mapper4) ChrRead(addr uint16) byte {
	addr &= 0x1fff
	bank := addr / 0x0400
	offset := addr % 0x0400
	return m.readCHR(m.chrOffsets[bank] + int(offset))
}

func (m *Mapper4) ChrWrite(addr uint16, value byte) {
	addr &= 0x1fff
	bank := addr / 0x0400
	offset := addr % 0x0400
	m.writeCHR(m.chrOffsets[bank]+int(offset), value)
}

func (m *Mapper4) MirroringMode() (MirrorMode, bool) {
	return m.mirror, m.mirrorSet
}

func (m *Mapper4) prgOffset(value int) int {
	return bankOffset(value, len(m.prg), 0x2000)
}

func (m *Mapper4) chrOffset(value int) int {
	return bankOffset(value, len(m.chr), 0x0400)
}

// https://wiki.nesdev.org/w/index.php/MMC3 的表格
func (m *Mapper4) calculateBank() {
	r := m.registers
	if m.prgMode == 0 {
		m.prgOffsets[0] = m.prgOffset(int(r[6]))
		m.prgOffsets[1] = m.prgOffset(int(r[7]))
		m.prgOffsets[2] = m.prgOffset(-2)
	} else {
		m.prgOffsets[0] = m.prgOffset(-2)
		m.prgOffsets[1] = m.prgOffset(int(r[7]))
		m.prgOffsets[2] = m.prgOffset(int(r[6]))
	}
	m.prgOffsets[3] = m.prgOffset(-1)

	// 2KB bank 占两个1KB位置，低位忽略
	var low, high [4]int
	low[0] = m.chrOffset(int(r[0]) & 0xfe)
	low[1] = m.chrOffset(int(r[0]) | 0x01)
	low[2] = m.chrOffset(int(r[1]) & 0xfe)
	low[3] = m.chrOffset(int(r[1]) | 0x01)
	for i := 0; i < 4; i++ {
		high[i] = m.chrOffset(int(r[2+i]))
	}
	if m.chrMode == 1 {
		low, high = high, low
	}
	copy(m.chrOffsets[0:4], low[:])
	copy(m.chrOffsets[4:8], high[:])
}
