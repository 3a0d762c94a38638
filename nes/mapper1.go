package nes

// mapper1 (MMC1)，中东战争可以用来测试
// 寄存器通过5次串行写入，每次写D0

type Mapper1 struct {
	cartView
	noIRQ
	shiftRegister byte
	ctrlRegister  byte
	prgMode       byte
	chrMode       byte
	chrBank0      byte
	chrBank1      byte
	prgBank       byte
	prgOffsets    [2]int
	chrOffsets    [2]int
}

func NewMapper1(view cartView) *Mapper1 {
	m := Mapper1{cartView: view}
	m.shiftRegister = 0x10
	// 上电时固定最后一个bank在0xC000
	m.writeControl(0x0c)
	return &m
}

func (m *Mapper1) writeRegister(addr uint16, value byte) {
	switch {
	case addr <= 0x9fff:
		m.writeControl(value)
	case addr <= 0xbfff:
		m.writeCHRBank0(value)
	case addr <= 0xdfff:
		m.writeCHRBank1(value)
	default:
		m.writePRGBank(value)
	}
}

// Control (internal, $8000-$9FFF)
// 4bit0
// -----
// CPPMM
func (m *Mapper1) writeControl(value byte) {
	m.ctrlRegister = value
	m.prgMode = (value >> 2) & 0x3
	m.chrMode = (value >> 4) & 1
	m.updateOffsets()
}

// CHR bank 0 (internal, $A000-$BFFF)
func (m *Mapper1) writeCHRBank0(value byte) {
	m.chrBank0 = value
	m.updateOffsets()
}

// CHR bank 1 (internal, $C000-$DFFF)
func (m *Mapper1) writeCHRBank1(value byte) {
	m.chrBank1 = value
	m.updateOffsets()
}

// PRG bank (internal, $E000-$FFFF)
func (m *Mapper1) writePRGBank(value byte) {
	m.prgBank = value & 0x0f
	m.updateOffsets()
}

func (m *Mapper1) loadRegister(addr uint16, value byte) {
	// D7==1 复位移位寄存器
	if value&0x80 == 0x80 {
		m.shiftRegister = 0x10
		m.writeControl(m.ctrlRegister | 0x0c)
		return
	}
	// 初始的1移到最低位时说明这是第5次写
	complete := m.shiftRegister&1 == 1
	m.shiftRegister >>= 1
	m.shiftRegister |= (value & 1) << 4
	if complete {
		m.writeRegister(addr, m.shiftRegister)
		m.shiftRegister = 0x10
	}
}

// PRG ROM bank mode (0, 1: switch 32 KB at $8000, ignoring low bit of bank number;
//                    2: fix first bank at $8000 and switch 16 KB bank at $C000;
//                    3: fix last bank at $C000 and switch 16 KB bank at $8000)
// CHR ROM bank mode (0: switch 8 KB at a time; 1: switch two separate 4 KB banks)
func (m *Mapper1) updateOffsets() {
	prg := len(m.prg)
	switch m.prgMode {
	case 0, 1:
		m.prgOffsets[0] = bankOffset(int(m.prgBank&0xfe), prg, 0x4000)
		m.prgOffsets[1] = bankOffset(int(m.prgBank|0x01), prg, 0x4000)
	case 2:
		m.prgOffsets[0] = 0
		m.prgOffsets[1] = bankOffset(int(m.prgBank), prg, 0x4000)
	case 3:
		m.prgOffsets[0] = bankOffset(int(m.prgBank), prg, 0x4000)
		m.prgOffsets[1] = bankOffset(-1, prg, 0x4000)
	}
	chr := len(m.chr)
	switch m.chrMode {
	case 0:
		m.chrOffsets[0] = bankOffset(int(m.chrBank0&0xfe), chr, 0x1000)
		m.chrOffsets[1] = bankOffset(int(m.chrBank0|0x01), chr, 0x1000)
	case 1:
		m.chrOffsets[0] = bankOffset(int(m.chrBank0), chr, 0x1000)
		m.chrOffsets[1] = bankOffset(int(m.chrBank1), chr, 0x1000)
	}
}

func (m *Mapper1) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		addr = addr - 0x8000
		bank := addr / 0x4000
		offset := addr % 0x4000
		return m.prg[(m.prgOffsets[bank]+int(offset))%len(m.prg)]
	case addr >= 0x6000:
		return m.readSRAM(addr)
	}
	return 0
}

func (m *Mapper1) Write(addr uint16, value byte) {
	switch {
	case addr >= 0x8000:
		m.loadRegister(addr, value)
	case addr >= 0x6000:
		m.writeSRAM(addr, value)
	}
}

func (m *Mapper1) ChrRead(addr uint16) byte {
	addr &= 0x1fff
	bank := addr / 0x1000
	offset := addr % 0x1000
	return m.readCHR(m.chrOffsets[bank] + int(offset))
}

func (m *Mapper1) ChrWrite(addr uint16, value byte) {
	addr &= 0x1fff
	bank := addr / 0x1000
	offset := addr % 0x1000
	m.writeCHR(m.chrOffsets[bank]+int(offset), value)
}

// 这里mirror值和MirrorMode并不是直接对应的
func (m *Mapper1) MirroringMode() (MirrorMode, bool) {
	switch m.ctrlRegister & 0x3 {
	case 0:
		return MirrorSingle0, true
	case 1:
		return MirrorSingle1, true
	case 2:
		return MirrorVertical, true
	}
	return MirrorHorizontal, true
}
