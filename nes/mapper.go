package nes

// Mapper 卡带上的地址转换电路
// CPU侧 0x4020-0xFFFF 走 Read/Write，PPU侧 0x0000-0x1FFF 走 ChrRead/ChrWrite
type Mapper interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	ChrRead(address uint16) byte
	ChrWrite(address uint16, value byte)
	// mapper4在每条扫描线的260点由PPU驱动一次
	HasIRQ() bool
	ClockIRQ()
	// ok为false时使用卡带头里的镜像方式
	MirroringMode() (mode MirrorMode, ok bool)
}

func NewMapper(card *Cartridge) (Mapper, error) {
	view := card.view()
	switch card.Mapper {
	case 0:
		return NewMapper0(view), nil
	case 1:
		return NewMapper1(view), nil
	case 4:
		return NewMapper4(view), nil
	case 148:
		return NewMapper148(view), nil
	}
	return nil, &UnsupportedMapperError{Mapper: card.Mapper}
}

// MirrorMode nametable镜像方式
type MirrorMode byte

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorSingle0
	MirrorSingle1
)

// 4个逻辑nametable映射到2个物理nametable
var mirrorLookup = [...][4]uint16{
	MirrorHorizontal: {0, 0, 1, 1},
	MirrorVertical:   {0, 1, 0, 1},
	MirrorSingle0:    {0, 0, 0, 0},
	MirrorSingle1:    {1, 1, 1, 1},
}

func (m MirrorMode) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorSingle0:
		return "single-0"
	case MirrorSingle1:
		return "single-1"
	}
	return "unknown"
}

// 0x2000-0x3EFF 转换为2KB nametable RAM内的偏移
func mirrorAddress(mode MirrorMode, address uint16) uint16 {
	address = (address - 0x2000) % 0x1000
	table := address / 0x0400
	offset := address % 0x0400
	return mirrorLookup[mode][table]*0x0400 + offset
}

// 没有扫描线计数器的mapper共用
type noIRQ struct{}

func (noIRQ) HasIRQ() bool { return false }
func (noIRQ) ClockIRQ()    {}

// 银行偏移计算，寄存器值对银行数取模，负数从末尾倒数
func bankOffset(value int, size int, bankSize int) int {
	count := size / bankSize
	if count == 0 {
		return 0
	}
	offset := (value % count) * bankSize
	if offset < 0 {
		offset += count * bankSize
	}
	return offset
}
