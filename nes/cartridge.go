package nes

const (
	prgBankSize = 0x4000
	chrBankSize = 0x2000
	sramSize    = 0x2000
)

// Cartridge 卡带，持有PRG/CHR数据以及mapper
type Cartridge struct {
	PRG     []byte
	CHR     []byte
	SRAM    []byte     // 卡带SRAM 0x6000-0x7FFF
	Mirror  MirrorMode // 头部给出的镜像方式
	Mapper  byte       // mapper种类
	Battery bool
	Trainer bool
	chrRAM  bool // 头部CHR块数为0时使用8KB CHR-RAM

	mapper Mapper
}

func NewCartridge(prg []byte, chr []byte, mapper byte, mirror MirrorMode) *Cartridge {
	card := &Cartridge{
		PRG:    prg,
		CHR:    chr,
		SRAM:   make([]byte, sramSize),
		Mirror: mirror,
		Mapper: mapper,
	}
	if len(chr) == 0 {
		card.CHR = make([]byte, chrBankSize)
		card.chrRAM = true
	}
	return card
}

// MapperChip 返回卡带上的mapper
func (card *Cartridge) MapperChip() Mapper {
	return card.mapper
}

// CHRIsRAM CHR区是否可写
func (card *Cartridge) CHRIsRAM() bool {
	return card.chrRAM
}

func (card *Cartridge) view() cartView {
	return cartView{prg: card.PRG, chr: card.CHR, sram: card.SRAM, chrRAM: card.chrRAM}
}

// mapper看到的卡带存储，只是引用，不拥有数据
type cartView struct {
	prg    []byte
	chr    []byte
	sram   []byte
	chrRAM bool
}

func (v *cartView) readSRAM(address uint16) byte {
	if len(v.sram) == 0 {
		return 0
	}
	return v.sram[int(address-0x6000)%len(v.sram)]
}

func (v *cartView) writeSRAM(address uint16, value byte) {
	if len(v.sram) == 0 {
		return
	}
	v.sram[int(address-0x6000)%len(v.sram)] = value
}

func (v *cartView) readCHR(index int) byte {
	return v.chr[index%len(v.chr)]
}

func (v *cartView) writeCHR(index int, value byte) {
	// CHR-ROM不可写
	if !v.chrRAM {
		return
	}
	v.chr[index%len(v.chr)] = value
}
