package nes

/*
[$0000, $2000) cpu 内存{0-0x0800，[0x0800-0x1000, 0x1000-0x1800, 0x1800-0x2000]都是0-0x0800的镜像}
[$2000, $4000) PPU 寄存器，每8字节镜像
[$4000, $4020) pAPU寄存器、手柄、DMA
[$4020, $6000) 扩展区域
[$6000, $8000) 存档用SRAM区
[$8000, $0x10000) 程序代码区 PRG-ROM
*/

type Memory interface {
	Write(addr uint16, value byte)
	Read(addr uint16) byte
}

// Read Console本身就是CPU总线
func (console *Console) Read(addr uint16) byte {
	switch {
	case addr < 0x2000:
		return console.RAM[addr%0x0800]
	case addr < 0x4000:
		// 这边addr访问ppu寄存器，存在镜像，需要对8取余
		return console.PPU.readRegister(0x2000+addr%8, &console.VRAM)
	case addr == 0x4015:
		return console.APU.readStatus()
	case addr == 0x4016:
		return console.Controller1.Read()
	case addr == 0x4017:
		return console.Controller2.Read()
	case addr < 0x4020:
		return 0
	default:
		return console.Cartridge.mapper.Read(addr)
	}
}

func (console *Console) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		console.RAM[addr%0x0800] = value
	case addr < 0x4000:
		console.PPU.writeRegister(0x2000+addr%8, value, &console.VRAM)
	case addr == 0x4014:
		console.writeDMA(value)
	case addr == 0x4016:
		console.Controller1.Write(value)
		console.Controller2.Write(value)
	case addr <= 0x4017:
		console.APU.writeRegister(addr, value)
	case addr < 0x4020:
		// 测试模式寄存器，忽略
	default:
		if addr < 0x6000 && !console.expansionLogged {
			console.expansionLogged = true
			console.logger.Printf("write $%02X to expansion area $%04X, mapper %d has nothing there",
				value, addr, console.Cartridge.Mapper)
		}
		console.Cartridge.mapper.Write(addr, value)
	}
}

// 0x4014 将0xXX00-0xXXff的内存复制到精灵OAM 256byte内存
func (console *Console) writeDMA(value byte) {
	address := uint16(value) << 8
	for i := 0; i < 256; i++ {
		console.PPU.writeOAMData(console.Read(address))
		address++
	}
	console.CPU.addDMAStall()
}

// PPUMemory PPU总线，0-0x3FFF
type PPUMemory struct {
	nameTable [2048]byte
	palette   [32]byte
	mapper    Mapper
	mirror    MirrorMode // 卡带头的镜像方式
}

func NewPPUMemory(card *Cartridge) PPUMemory {
	return PPUMemory{mapper: card.mapper, mirror: card.Mirror}
}

// Mirroring mapper可以覆盖头部镜像方式
func (mem *PPUMemory) Mirroring() MirrorMode {
	if mode, ok := mem.mapper.MirroringMode(); ok {
		return mode
	}
	return mem.mirror
}

func (mem *PPUMemory) Read(addr uint16) byte {
	// PPU拥有16kb的地址空间，高于0x3fff的会被镜像，所以需要对0x4000取余
	addr = addr % 0x4000
	switch {
	// 0-0x2000是pattern table图样表，来自卡带的CHR
	case addr < 0x2000:
		return mem.mapper.ChrRead(addr)
	case addr < 0x3f00:
		return mem.nameTable[mirrorAddress(mem.Mirroring(), addr)]
	default:
		return mem.readPalette(addr % 32)
	}
}

func (mem *PPUMemory) Write(addr uint16, value byte) {
	addr = addr % 0x4000
	switch {
	case addr < 0x2000:
		mem.mapper.ChrWrite(addr, value)
	case addr < 0x3f00:
		mem.nameTable[mirrorAddress(mem.Mirroring(), addr)] = value
	default:
		mem.writePalette(addr%32, value)
	}
}

// 0x10/0x14/0x18/0x1C 是 0x00/0x04/0x08/0x0C 的镜像
func (mem *PPUMemory) readPalette(addr uint16) byte {
	if addr >= 16 && addr%4 == 0 {
		addr -= 16
	}
	return mem.palette[addr]
}

func (mem *PPUMemory) writePalette(addr uint16, value byte) {
	if addr >= 16 && addr%4 == 0 {
		addr -= 16
	}
	mem.palette[addr] = value
}

// 扫描线计数，给mapper4用
func (mem *PPUMemory) clockScanline() {
	mem.mapper.ClockIRQ()
}
