package nes

// 非官方指令
// 读-改-写组合指令行为稳定；XAA/LXA/SHA/SHX/SHY/TAS 与芯片批次有关，
// 这里用社区通用的近似实现(常量0xEE，与 高字节+1 相与)

// SLO = ASL + ORA
func (cpu *CPU) slo(info *stepInfo) {
	value := cpu.shiftLeft(cpu.Read(info.address))
	cpu.Write(info.address, value)
	cpu.A |= value
	cpu.setZN(cpu.A)
}

// RLA = ROL + AND
func (cpu *CPU) rla(info *stepInfo) {
	value := cpu.rotateLeft(cpu.Read(info.address))
	cpu.Write(info.address, value)
	cpu.A &= value
	cpu.setZN(cpu.A)
}

// SRE = LSR + EOR
func (cpu *CPU) sre(info *stepInfo) {
	value := cpu.shiftRight(cpu.Read(info.address))
	cpu.Write(info.address, value)
	cpu.A ^= value
	cpu.setZN(cpu.A)
}

// RRA = ROR + ADC，ADC使用ROR移出的C
func (cpu *CPU) rra(info *stepInfo) {
	value := cpu.rotateRight(cpu.Read(info.address))
	cpu.Write(info.address, value)
	cpu.addWithCarry(value)
}

// DCP = DEC + CMP
func (cpu *CPU) dcp(info *stepInfo) {
	value := cpu.Read(info.address) - 1
	cpu.Write(info.address, value)
	cpu.compare(cpu.A, value)
}

// ISC(ISB) = INC + SBC
func (cpu *CPU) isc(info *stepInfo) {
	value := cpu.Read(info.address) + 1
	cpu.Write(info.address, value)
	cpu.addWithCarry(value ^ 0xff)
}

// SAX 存 A&X，不影响标志
func (cpu *CPU) sax(info *stepInfo) {
	cpu.Write(info.address, cpu.A&cpu.X)
}

// LAX = LDA + LDX
func (cpu *CPU) lax(info *stepInfo) {
	value := cpu.Read(info.address)
	cpu.A = value
	cpu.X = value
	cpu.setZN(value)
}

// ANC = AND #imm，C = N
func (cpu *CPU) anc(info *stepInfo) {
	cpu.A &= cpu.Read(info.address)
	cpu.setZN(cpu.A)
	cpu.C = cpu.N
}

// ALR(ASR) = AND #imm + LSR A
func (cpu *CPU) alr(info *stepInfo) {
	cpu.A = cpu.shiftRight(cpu.A & cpu.Read(info.address))
	cpu.setZN(cpu.A)
}

// ARR = AND #imm + ROR A，C取结果bit6，V取bit6^bit5
func (cpu *CPU) arr(info *stepInfo) {
	value := cpu.A & cpu.Read(info.address)
	cpu.A = (value >> 1) | (cpu.C << 7)
	cpu.setZN(cpu.A)
	cpu.C = (cpu.A >> 6) & 1
	cpu.V = ((cpu.A >> 6) ^ (cpu.A >> 5)) & 1
}

// AXS(SBX) X = (A&X) - imm，C同CMP
func (cpu *CPU) axs(info *stepInfo) {
	value := cpu.Read(info.address)
	ax := cpu.A & cpu.X
	cpu.X = ax - value
	if ax >= value {
		cpu.C = 1
	} else {
		cpu.C = 0
	}
	cpu.setZN(cpu.X)
}

// LAS = (M & SP) 存入 A X SP
func (cpu *CPU) las(info *stepInfo) {
	value := cpu.Read(info.address) & cpu.SP
	cpu.A = value
	cpu.X = value
	cpu.SP = value
	cpu.setZN(value)
}

// XAA(ANE) 不稳定: A = (A|0xEE) & X & imm
func (cpu *CPU) xaa(info *stepInfo) {
	cpu.A = (cpu.A | 0xee) & cpu.X & cpu.Read(info.address)
	cpu.setZN(cpu.A)
}

// LXA 不稳定: A = X = (A|0xEE) & imm
func (cpu *CPU) lxa(info *stepInfo) {
	value := (cpu.A | 0xee) & cpu.Read(info.address)
	cpu.A = value
	cpu.X = value
	cpu.setZN(value)
}

// SHA/AHX 存 A&X&(H+1)
func (cpu *CPU) ahx(info *stepInfo) {
	cpu.unstableStore(info, cpu.A&cpu.X, cpu.Y)
}

// TAS(SHS) SP = A&X，存 SP&(H+1)
func (cpu *CPU) tas(info *stepInfo) {
	cpu.SP = cpu.A & cpu.X
	cpu.unstableStore(info, cpu.SP, cpu.Y)
}

// SHY 存 Y&(H+1)，X变址
func (cpu *CPU) shy(info *stepInfo) {
	cpu.unstableStore(info, cpu.Y, cpu.X)
}

// SHX 存 X&(H+1)，Y变址
func (cpu *CPU) shx(info *stepInfo) {
	cpu.unstableStore(info, cpu.X, cpu.Y)
}

// 值与基址高字节+1相与；跨页时目标地址的高字节也被结果替换
func (cpu *CPU) unstableStore(info *stepInfo, value byte, index byte) {
	base := info.address - uint16(index)
	result := value & (byte(base>>8) + 1)
	address := info.address
	if pageDiff(base, address) {
		address = uint16(result)<<8 | address&0xff
	}
	cpu.Write(address, result)
}
