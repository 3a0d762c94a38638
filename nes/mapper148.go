package nes

// mapper148 (Sachen SA-008-A)
// 写0x8000-0xFFFF一个字节同时选择 CHR bank(D0-D2) 和 32KB PRG bank(D3-D7)
type Mapper148 struct {
	cartView
	noIRQ
	prgBank int
	chrBank int
}

func NewMapper148(view cartView) *Mapper148 {
	return &Mapper148{cartView: view}
}

func (m *Mapper148) Read(addr uint16) byte {
	if addr < 0x8000 {
		return 0
	}
	index := m.prgBank*0x8000 + int(addr-0x8000)
	return m.prg[index%len(m.prg)]
}

func (m *Mapper148) Write(addr uint16, value byte) {
	if addr < 0x8000 {
		return
	}
	m.chrBank = int(value & 0x07)
	m.prgBank = int(value>>3) & 0x1f
}

func (m *Mapper148) ChrRead(addr uint16) byte {
	return m.readCHR(m.chrBank*0x2000 + int(addr&0x1fff))
}

func (m *Mapper148) ChrWrite(addr uint16, value byte) {
	m.writeCHR(m.chrBank*0x2000+int(addr&0x1fff), value)
}

func (m *Mapper148) MirroringMode() (MirrorMode, bool) {
	return 0, false
}
