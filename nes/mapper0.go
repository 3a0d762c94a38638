package nes

/**
mapper0 (NROM)
没有寄存器
0x8000-0xFFFF PRG，只有16KB时0xC000开始是0x8000的镜像
0x6000-0x7FFF SRAM
*/

type Mapper0 struct {
	cartView
	noIRQ
}

func NewMapper0(view cartView) *Mapper0 {
	return &Mapper0{cartView: view}
}

func (m *Mapper0) Read(addr uint16) byte {
	switch {
	case addr >= 0x8000:
		// len(prg)为16KB时取余得到镜像
		return m.prg[int(addr-0x8000)%len(m.prg)]
	case addr >= 0x6000:
		return m.readSRAM(addr)
	}
	return 0
}

func (m *Mapper0) Write(addr uint16, value byte) {
	if addr >= 0x6000 && addr < 0x8000 {
		m.writeSRAM(addr, value)
	}
}

func (m *Mapper0) ChrRead(addr uint16) byte {
	return m.readCHR(int(addr & 0x1fff))
}

func (m *Mapper0) ChrWrite(addr uint16, value byte) {
	m.writeCHR(int(addr&0x1fff), value)
}

func (m *Mapper0) MirroringMode() (MirrorMode, bool) {
	return 0, false
}
