package nes

/*
CPU模块 (2A03，没有十进制模式的6502)
对外接口：
Reset
Step 执行一条指令，返回消耗的周期数
TriggerNMI / TriggerIRQ
总线由调用方传入，CPU本身不持有内存
*/

// 各中断的地址信息，2byte
const (
	// NMI中断
	NMI = 0xfffa
	// 每次启动触发
	RESET = 0xfffc
	// IRQ/BRK共用中断地址
	IRQ = 0xfffe
)

const CPUFrequency = 1789773

// 寻址方式
const (
	_ = iota
	modeAbsolute
	modeAbsoluteX
	modeAbsoluteY
	modeAccumulator
	modeImmediate
	modeImplied
	modeIndexedIndirect
	modeIndirect
	modeIndirectIndexed
	modeRelative
	modeZeroPage
	modeZeroPageX
	modeZeroPageY
)

// 寻址方式
var instructionModes = [256]byte{
	6, 7, 6, 7, 11, 11, 11, 11, 6, 5, 4, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
	1, 7, 6, 7, 11, 11, 11, 11, 6, 5, 4, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
	6, 7, 6, 7, 11, 11, 11, 11, 6, 5, 4, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
	6, 7, 6, 7, 11, 11, 11, 11, 6, 5, 4, 5, 8, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
	5, 7, 5, 7, 11, 11, 11, 11, 6, 5, 6, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 13, 13, 6, 3, 6, 3, 2, 2, 3, 3,
	5, 7, 5, 7, 11, 11, 11, 11, 6, 5, 6, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 13, 13, 6, 3, 6, 3, 2, 2, 3, 3,
	5, 7, 5, 7, 11, 11, 11, 11, 6, 5, 6, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
	5, 7, 5, 7, 11, 11, 11, 11, 6, 5, 6, 5, 1, 1, 1, 1,
	10, 9, 6, 9, 12, 12, 12, 12, 6, 3, 6, 3, 2, 2, 2, 2,
}

// 每种寻址方式的指令字节大小
var modeSizes = [...]byte{
	modeAbsolute:        3,
	modeAbsoluteX:       3,
	modeAbsoluteY:       3,
	modeAccumulator:     1,
	modeImmediate:       2,
	modeImplied:         1,
	modeIndexedIndirect: 2,
	modeIndirect:        3,
	modeIndirectIndexed: 2,
	modeRelative:        2,
	modeZeroPage:        2,
	modeZeroPageX:       2,
	modeZeroPageY:       2,
}

// 每个指令字节大小，由寻址方式推出
var instructionSizes [256]byte

// 指令占用基础周期数，不包括额外的周期
var instructionCycles = [256]byte{
	7, 6, 2, 8, 3, 3, 5, 5, 3, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 4, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 3, 2, 2, 2, 3, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	6, 6, 2, 8, 3, 3, 5, 5, 4, 2, 2, 2, 5, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	2, 6, 2, 6, 3, 3, 3, 3, 2, 2, 2, 2, 4, 4, 4, 4,
	2, 6, 2, 6, 4, 4, 4, 4, 2, 5, 2, 5, 5, 5, 5, 5,
	2, 6, 2, 6, 3, 3, 3, 3, 2, 2, 2, 2, 4, 4, 4, 4,
	2, 5, 2, 5, 4, 4, 4, 4, 2, 4, 2, 4, 4, 4, 4, 4,
	2, 6, 2, 8, 3, 3, 5, 5, 2, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
	2, 6, 2, 8, 3, 3, 5, 5, 2, 2, 2, 2, 4, 4, 6, 6,
	2, 5, 2, 8, 4, 4, 6, 6, 2, 4, 2, 7, 4, 4, 7, 7,
}

// 指令跨page时是否+1周期
var instructionPageCycles = [256]byte{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 1, 0, 0, 0, 0, 0, 1, 0, 1, 1, 1, 1, 1,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 1, 1, 0, 0,
}

// 指令名，和nestest日志一致
var instructionNames = [256]string{
	"BRK", "ORA", "JAM", "SLO", "NOP", "ORA", "ASL", "SLO",
	"PHP", "ORA", "ASL", "ANC", "NOP", "ORA", "ASL", "SLO",
	"BPL", "ORA", "JAM", "SLO", "NOP", "ORA", "ASL", "SLO",
	"CLC", "ORA", "NOP", "SLO", "NOP", "ORA", "ASL", "SLO",
	"JSR", "AND", "JAM", "RLA", "BIT", "AND", "ROL", "RLA",
	"PLP", "AND", "ROL", "ANC", "BIT", "AND", "ROL", "RLA",
	"BMI", "AND", "JAM", "RLA", "NOP", "AND", "ROL", "RLA",
	"SEC", "AND", "NOP", "RLA", "NOP", "AND", "ROL", "RLA",
	"RTI", "EOR", "JAM", "SRE", "NOP", "EOR", "LSR", "SRE",
	"PHA", "EOR", "LSR", "ALR", "JMP", "EOR", "LSR", "SRE",
	"BVC", "EOR", "JAM", "SRE", "NOP", "EOR", "LSR", "SRE",
	"CLI", "EOR", "NOP", "SRE", "NOP", "EOR", "LSR", "SRE",
	"RTS", "ADC", "JAM", "RRA", "NOP", "ADC", "ROR", "RRA",
	"PLA", "ADC", "ROR", "ARR", "JMP", "ADC", "ROR", "RRA",
	"BVS", "ADC", "JAM", "RRA", "NOP", "ADC", "ROR", "RRA",
	"SEI", "ADC", "NOP", "RRA", "NOP", "ADC", "ROR", "RRA",
	"NOP", "STA", "NOP", "SAX", "STY", "STA", "STX", "SAX",
	"DEY", "NOP", "TXA", "ANE", "STY", "STA", "STX", "SAX",
	"BCC", "STA", "JAM", "SHA", "STY", "STA", "STX", "SAX",
	"TYA", "STA", "TXS", "TAS", "SHY", "STA", "SHX", "SHA",
	"LDY", "LDA", "LDX", "LAX", "LDY", "LDA", "LDX", "LAX",
	"TAY", "LDA", "TAX", "LXA", "LDY", "LDA", "LDX", "LAX",
	"BCS", "LDA", "JAM", "LAX", "LDY", "LDA", "LDX", "LAX",
	"CLV", "LDA", "TSX", "LAS", "LDY", "LDA", "LDX", "LAX",
	"CPY", "CMP", "NOP", "DCP", "CPY", "CMP", "DEC", "DCP",
	"INY", "CMP", "DEX", "SBX", "CPY", "CMP", "DEC", "DCP",
	"BNE", "CMP", "JAM", "DCP", "NOP", "CMP", "DEC", "DCP",
	"CLD", "CMP", "NOP", "DCP", "NOP", "CMP", "DEC", "DCP",
	"CPX", "SBC", "NOP", "ISB", "CPX", "SBC", "INC", "ISB",
	"INX", "SBC", "NOP", "SBC", "CPX", "SBC", "INC", "ISB",
	"BEQ", "SBC", "JAM", "ISB", "NOP", "SBC", "INC", "ISB",
	"SED", "SBC", "NOP", "ISB", "NOP", "SBC", "INC", "ISB",
}

// 非官方指令，日志里用*标出
var instructionIllegal [256]bool

// 256个指令，nil为未定义(JAM)，执行到即停机
var instructionTable [256]func(*CPU, *stepInfo)

func init() {
	for op, mode := range instructionModes {
		instructionSizes[op] = modeSizes[mode]
	}
	// BRK 后面跟一个填充字节
	instructionSizes[0x00] = 2

	instructionTable = [256]func(*CPU, *stepInfo){
		(*CPU).brk, (*CPU).ora, nil, (*CPU).slo, (*CPU).nop, (*CPU).ora, (*CPU).asl, (*CPU).slo,
		(*CPU).php, (*CPU).ora, (*CPU).asl, (*CPU).anc, (*CPU).nop, (*CPU).ora, (*CPU).asl, (*CPU).slo,
		(*CPU).bpl, (*CPU).ora, nil, (*CPU).slo, (*CPU).nop, (*CPU).ora, (*CPU).asl, (*CPU).slo,
		(*CPU).clc, (*CPU).ora, (*CPU).nop, (*CPU).slo, (*CPU).nop, (*CPU).ora, (*CPU).asl, (*CPU).slo,
		(*CPU).jsr, (*CPU).and, nil, (*CPU).rla, (*CPU).bit, (*CPU).and, (*CPU).rol, (*CPU).rla,
		(*CPU).plp, (*CPU).and, (*CPU).rol, (*CPU).anc, (*CPU).bit, (*CPU).and, (*CPU).rol, (*CPU).rla,
		(*CPU).bmi, (*CPU).and, nil, (*CPU).rla, (*CPU).nop, (*CPU).and, (*CPU).rol, (*CPU).rla,
		(*CPU).sec, (*CPU).and, (*CPU).nop, (*CPU).rla, (*CPU).nop, (*CPU).and, (*CPU).rol, (*CPU).rla,
		(*CPU).rti, (*CPU).eor, nil, (*CPU).sre, (*CPU).nop, (*CPU).eor, (*CPU).lsr, (*CPU).sre,
		(*CPU).pha, (*CPU).eor, (*CPU).lsr, (*CPU).alr, (*CPU).jmp, (*CPU).eor, (*CPU).lsr, (*CPU).sre,
		(*CPU).bvc, (*CPU).eor, nil, (*CPU).sre, (*CPU).nop, (*CPU).eor, (*CPU).lsr, (*CPU).sre,
		(*CPU).cli, (*CPU).eor, (*CPU).nop, (*CPU).sre, (*CPU).nop, (*CPU).eor, (*CPU).lsr, (*CPU).sre,
		(*CPU).rts, (*CPU).adc, nil, (*CPU).rra, (*CPU).nop, (*CPU).adc, (*CPU).ror, (*CPU).rra,
		(*CPU).pla, (*CPU).adc, (*CPU).ror, (*CPU).arr, (*CPU).jmp, (*CPU).adc, (*CPU).ror, (*CPU).rra,
		(*CPU).bvs, (*CPU).adc, nil, (*CPU).rra, (*CPU).nop, (*CPU).adc, (*CPU).ror, (*CPU).rra,
		(*CPU).sei, (*CPU).adc, (*CPU).nop, (*CPU).rra, (*CPU).nop, (*CPU).adc, (*CPU).ror, (*CPU).rra,
		(*CPU).nop, (*CPU).sta, (*CPU).nop, (*CPU).sax, (*CPU).sty, (*CPU).sta, (*CPU).stx, (*CPU).sax,
		(*CPU).dey, (*CPU).nop, (*CPU).txa, (*CPU).xaa, (*CPU).sty, (*CPU).sta, (*CPU).stx, (*CPU).sax,
		(*CPU).bcc, (*CPU).sta, nil, (*CPU).ahx, (*CPU).sty, (*CPU).sta, (*CPU).stx, (*CPU).sax,
		(*CPU).tya, (*CPU).sta, (*CPU).txs, (*CPU).tas, (*CPU).shy, (*CPU).sta, (*CPU).shx, (*CPU).ahx,
		(*CPU).ldy, (*CPU).lda, (*CPU).ldx, (*CPU).lax, (*CPU).ldy, (*CPU).lda, (*CPU).ldx, (*CPU).lax,
		(*CPU).tay, (*CPU).lda, (*CPU).tax, (*CPU).lxa, (*CPU).ldy, (*CPU).lda, (*CPU).ldx, (*CPU).lax,
		(*CPU).bcs, (*CPU).lda, nil, (*CPU).lax, (*CPU).ldy, (*CPU).lda, (*CPU).ldx, (*CPU).lax,
		(*CPU).clv, (*CPU).lda, (*CPU).tsx, (*CPU).las, (*CPU).ldy, (*CPU).lda, (*CPU).ldx, (*CPU).lax,
		(*CPU).cpy, (*CPU).cmp, (*CPU).nop, (*CPU).dcp, (*CPU).cpy, (*CPU).cmp, (*CPU).dec, (*CPU).dcp,
		(*CPU).iny, (*CPU).cmp, (*CPU).dex, (*CPU).axs, (*CPU).cpy, (*CPU).cmp, (*CPU).dec, (*CPU).dcp,
		(*CPU).bne, (*CPU).cmp, nil, (*CPU).dcp, (*CPU).nop, (*CPU).cmp, (*CPU).dec, (*CPU).dcp,
		(*CPU).cld, (*CPU).cmp, (*CPU).nop, (*CPU).dcp, (*CPU).nop, (*CPU).cmp, (*CPU).dec, (*CPU).dcp,
		(*CPU).cpx, (*CPU).sbc, (*CPU).nop, (*CPU).isc, (*CPU).cpx, (*CPU).sbc, (*CPU).inc, (*CPU).isc,
		(*CPU).inx, (*CPU).sbc, (*CPU).nop, (*CPU).sbc, (*CPU).cpx, (*CPU).sbc, (*CPU).inc, (*CPU).isc,
		(*CPU).beq, (*CPU).sbc, nil, (*CPU).isc, (*CPU).nop, (*CPU).sbc, (*CPU).inc, (*CPU).isc,
		(*CPU).sed, (*CPU).sbc, (*CPU).nop, (*CPU).isc, (*CPU).nop, (*CPU).sbc, (*CPU).inc, (*CPU).isc,
	}

	official := map[string]bool{}
	for _, name := range []string{
		"ADC", "AND", "ASL", "BCC", "BCS", "BEQ", "BIT", "BMI", "BNE", "BPL", "BRK", "BVC", "BVS",
		"CLC", "CLD", "CLI", "CLV", "CMP", "CPX", "CPY", "DEC", "DEX", "DEY", "EOR", "INC", "INX",
		"INY", "JMP", "JSR", "LDA", "LDX", "LDY", "LSR", "NOP", "ORA", "PHA", "PHP", "PLA", "PLP",
		"ROL", "ROR", "RTI", "RTS", "SBC", "SEC", "SED", "SEI", "STA", "STX", "STY", "TAX", "TAY",
		"TSX", "TXA", "TXS", "TYA",
	} {
		official[name] = true
	}
	for op, name := range instructionNames {
		instructionIllegal[op] = !official[name]
	}
	// 同名但不是官方编码的
	for _, op := range []int{0xeb, 0x1a, 0x3a, 0x5a, 0x7a, 0xda, 0xfa, 0x80, 0x82, 0x89, 0xc2, 0xe2,
		0x04, 0x44, 0x64, 0x14, 0x34, 0x54, 0x74, 0xd4, 0xf4, 0x0c, 0x1c, 0x3c, 0x5c, 0x7c, 0xdc, 0xfc} {
		instructionIllegal[op] = true
	}
}

type CPU struct {
	Cycles uint64
	PC     uint16
	SP     byte // 堆栈寄存器
	A      byte
	X      byte
	Y      byte
	C      byte // 8个状态FLAG C - 进位标志
	Z      byte // Z - 结果为零标志
	I      byte // I - 中断屏蔽
	D      byte // D - 十进制，2A03上无效
	B      byte // BRK
	U      byte // 未使用，恒为1
	V      byte // 溢出标志，计算结果产生溢出
	N      byte // 负标志，结果为负

	bus        Memory // 只在一次调用期间有效
	stall      int    // 剩余等待时钟数(DMA)
	lastCycles uint64 // 上次Step返回时的Cycles
	halted     *OpcodeError
	tracer     Tracer
}

// 指令执行需要的信息
type stepInfo struct {
	address uint16
	pc      uint16
	mode    byte
}

func (cpu *CPU) Read(addr uint16) byte {
	return cpu.bus.Read(addr)
}

func (cpu *CPU) Write(addr uint16, value byte) {
	cpu.bus.Write(addr, value)
}

func (cpu *CPU) Read16(addr uint16) uint16 {
	low := cpu.Read(addr)
	high := cpu.Read(addr + 1)
	return (uint16(high) << 8) | uint16(low)
}

// 这里模拟cpu的bug，读取16位数据
// 例如JMP ($10FF), 理论上讲是读取$10FF和$1100这两个字节的数据, 但是实际上是读取的$10FF和$1000这两个字节的数据.
func (cpu *CPU) read16bug(address uint16) uint16 {
	a := address
	b := (a & 0xFF00) | uint16(byte(a)+1)
	lo := cpu.Read(a)
	hi := cpu.Read(b)
	return (uint16(hi) << 8) | uint16(lo)
}

// 栈操作：push/push16/pull/pull16
// 压栈 SP指针向0x00靠近
func (cpu *CPU) push(value byte) {
	cpu.Write(0x100|uint16(cpu.SP), value)
	cpu.SP--
}

func (cpu *CPU) push16(value uint16) {
	cpu.push(byte(value >> 8))
	cpu.push(byte(value))
}

func (cpu *CPU) pull() byte {
	cpu.SP++
	return cpu.Read(0x100 | uint16(cpu.SP))
}

func (cpu *CPU) pull16() uint16 {
	lo := uint16(cpu.pull())
	hi := uint16(cpu.pull())
	return (hi << 8) | lo
}

// 零标志
func (cpu *CPU) setZ(value byte) {
	if value == 0 {
		cpu.Z = 1
	} else {
		cpu.Z = 0
	}
}

// 负标志
func (cpu *CPU) setN(value byte) {
	cpu.N = (value >> 7) & 1
}

func (cpu *CPU) setZN(value byte) {
	cpu.setN(value)
	cpu.setZ(value)
}

// Flags 组合成状态寄存器P
func (cpu *CPU) Flags() byte {
	var flags byte
	flags |= cpu.C << 0
	flags |= cpu.Z << 1
	flags |= cpu.I << 2
	flags |= cpu.D << 3
	flags |= cpu.B << 4
	flags |= cpu.U << 5
	flags |= cpu.V << 6
	flags |= cpu.N << 7
	return flags
}

func (cpu *CPU) SetFlags(p byte) {
	cpu.C = (p >> 0) & 1
	cpu.Z = (p >> 1) & 1
	cpu.I = (p >> 2) & 1
	cpu.D = (p >> 3) & 1
	cpu.B = (p >> 4) & 1
	cpu.U = (p >> 5) & 1
	cpu.V = (p >> 6) & 1
	cpu.N = (p >> 7) & 1
}

// Halted 执行到未定义指令后返回对应错误
func (cpu *CPU) Halted() error {
	if cpu.halted == nil {
		return nil
	}
	return cpu.halted
}

// SetTracer 每条指令执行前回调，nil关闭
func (cpu *CPU) SetTracer(tracer Tracer) {
	cpu.tracer = tracer
}

// TriggerNMI 立即执行NMI中断序列，7个周期计入下次Step
func (cpu *CPU) TriggerNMI(mem Memory) {
	if cpu.halted != nil {
		return
	}
	cpu.bus = mem
	cpu.interrupt(NMI)
	cpu.bus = nil
}

// TriggerIRQ I标志置位时忽略，返回是否响应
func (cpu *CPU) TriggerIRQ(mem Memory) bool {
	if cpu.I != 0 || cpu.halted != nil {
		return false
	}
	cpu.bus = mem
	cpu.interrupt(IRQ)
	cpu.bus = nil
	return true
}

// irq/nmi共用，压栈的状态B=0 U=1
func (cpu *CPU) interrupt(vector uint16) {
	cpu.push16(cpu.PC)
	cpu.push(cpu.Flags()&^0x10 | 0x20)
	cpu.I = 1
	cpu.PC = cpu.Read16(vector)
	cpu.Cycles += 7
}

// 特殊处理，如果是跨branch（地址跳转），cycle++，如果跨page，cycle再+1
func (cpu *CPU) addBranchCycles(info *stepInfo) {
	cpu.Cycles++
	if pageDiff(info.pc, info.address) {
		cpu.Cycles++
	}
}

// 判断地址是否跨页, 跨页则返回true
func pageDiff(a uint16, b uint16) bool {
	return a&0xff00 != b&0xff00
}

func (cpu *CPU) Reset(mem Memory) {
	cpu.bus = mem
	cpu.PC = cpu.Read16(RESET)
	cpu.bus = nil
	// 复位序列占7个周期
	cpu.Cycles = 7
	cpu.lastCycles = cpu.Cycles
	cpu.A = 0
	cpu.X = 0
	cpu.Y = 0
	// 栈指针初始化为$FD即指向$1FD
	cpu.SP = 0xfd
	cpu.SetFlags(0x24)
	cpu.stall = 0
	cpu.halted = nil
}

// 完成一次DMA需要CPU等待的周期
func (cpu *CPU) addDMAStall() {
	cpu.stall += 513
	if cpu.Cycles%2 == 1 {
		cpu.stall++
	}
}

func (cpu *CPU) elapsed() int {
	cycles := int(cpu.Cycles - cpu.lastCycles)
	cpu.lastCycles = cpu.Cycles
	return cycles
}

// Step 执行一个指令：读指令-寻址-将数据提供给指令方法执行-计算时钟数
// 返回距离上次Step的周期数，包括中间触发的中断序列
func (cpu *CPU) Step(mem Memory) (int, error) {
	if cpu.halted != nil {
		return 0, cpu.halted
	}

	if cpu.stall > 0 {
		cpu.stall--
		cpu.Cycles++
		return cpu.elapsed(), nil
	}

	cpu.bus = mem

	// 初始1byte必定是opcode
	opcode := cpu.Read(cpu.PC)
	handler := instructionTable[opcode]
	if handler == nil {
		cpu.halted = &OpcodeError{Opcode: opcode, PC: cpu.PC}
		cpu.bus = nil
		return cpu.elapsed(), cpu.halted
	}

	if cpu.tracer != nil {
		cpu.trace(opcode)
	}

	mode := instructionModes[opcode]
	address, pageCrossed := cpu.operandAddress(mode)

	cpu.PC += uint16(instructionSizes[opcode])

	cpu.Cycles += uint64(instructionCycles[opcode])
	if pageCrossed {
		cpu.Cycles += uint64(instructionPageCycles[opcode])
	}

	info := stepInfo{address, cpu.PC, mode}
	handler(cpu, &info)

	cpu.bus = nil
	return cpu.elapsed(), nil
}

// 按寻址方式求操作数地址，第二个返回值表示变址是否跨页
// 参考这里： https://github.com/dustpg/BlogFM/issues/9
func (cpu *CPU) operandAddress(mode byte) (uint16, bool) {
	arg := cpu.PC + 1
	switch mode {
	case modeImmediate:
		return arg, false
	case modeZeroPage:
		return uint16(cpu.Read(arg)), false
	// 零页变址在零页内回绕
	case modeZeroPageX:
		return uint16(cpu.Read(arg) + cpu.X), false
	case modeZeroPageY:
		return uint16(cpu.Read(arg) + cpu.Y), false
	case modeAbsolute:
		return cpu.Read16(arg), false
	case modeAbsoluteX:
		base := cpu.Read16(arg)
		return base + uint16(cpu.X), pageDiff(base, base+uint16(cpu.X))
	case modeAbsoluteY:
		base := cpu.Read16(arg)
		return base + uint16(cpu.Y), pageDiff(base, base+uint16(cpu.Y))
	case modeIndirect:
		return cpu.read16bug(cpu.Read16(arg)), false
	// (zp,X)
	case modeIndexedIndirect:
		return cpu.read16bug(uint16(cpu.Read(arg) + cpu.X)), false
	// (zp),Y
	case modeIndirectIndexed:
		base := cpu.read16bug(uint16(cpu.Read(arg)))
		return base + uint16(cpu.Y), pageDiff(base, base+uint16(cpu.Y))
	case modeRelative:
		// 有符号偏移，相对下一条指令
		offset := int8(cpu.Read(arg))
		return cpu.PC + 2 + uint16(offset), false
	}
	// 累加器和隐含寻址没有操作数
	return 0, false
}

func (cpu *CPU) trace(opcode byte) {
	size := instructionSizes[opcode]
	event := TraceEvent{
		PC:      cpu.PC,
		Opcode:  opcode,
		Size:    size,
		Name:    instructionNames[opcode],
		Illegal: instructionIllegal[opcode],
		A:       cpu.A,
		X:       cpu.X,
		Y:       cpu.Y,
		P:       cpu.Flags(),
		SP:      cpu.SP,
		Cycles:  cpu.Cycles,
	}
	for i := byte(1); i < size; i++ {
		event.Operand[i-1] = cpu.Read(cpu.PC + uint16(i))
	}
	cpu.tracer.Trace(event)
}

// LDA - load "A"
func (cpu *CPU) lda(info *stepInfo) {
	cpu.A = cpu.Read(info.address)
	cpu.setZN(cpu.A)
}

// LDX - load "X"
func (cpu *CPU) ldx(info *stepInfo) {
	cpu.X = cpu.Read(info.address)
	cpu.setZN(cpu.X)
}

// LDY - load "Y"
func (cpu *CPU) ldy(info *stepInfo) {
	cpu.Y = cpu.Read(info.address)
	cpu.setZN(cpu.Y)
}

// STA - store "A"
func (cpu *CPU) sta(info *stepInfo) {
	cpu.Write(info.address, cpu.A)
}

// STX - store "X"
func (cpu *CPU) stx(info *stepInfo) {
	cpu.Write(info.address, cpu.X)
}

// STY - store "Y"
func (cpu *CPU) sty(info *stepInfo) {
	cpu.Write(info.address, cpu.Y)
}

// A = A + M + C，9位结果，第8位进C
// 溢出: 两个加数同号且结果符号不同
func (cpu *CPU) addWithCarry(value byte) {
	a := cpu.A
	sum := uint16(a) + uint16(value) + uint16(cpu.C)
	result := byte(sum)
	cpu.C = byte(sum >> 8)
	cpu.V = ((a ^ result) & (value ^ result) & 0x80) >> 7
	cpu.A = result
	cpu.setZN(result)
}

// ADC - add with carry
func (cpu *CPU) adc(info *stepInfo) {
	cpu.addWithCarry(cpu.Read(info.address))
}

// SBC - subtract with carry -- A = A - M - (1 - C)，等价于 ADC(~M)
func (cpu *CPU) sbc(info *stepInfo) {
	cpu.addWithCarry(cpu.Read(info.address) ^ 0xff)
}

// INC - Increment memory
func (cpu *CPU) inc(info *stepInfo) {
	value := cpu.Read(info.address) + 1
	cpu.Write(info.address, value)
	cpu.setZN(value)
}

// DEC - Decrement memory
func (cpu *CPU) dec(info *stepInfo) {
	value := cpu.Read(info.address) - 1
	cpu.Write(info.address, value)
	cpu.setZN(value)
}

// AND - "AND" memory with A
func (cpu *CPU) and(info *stepInfo) {
	cpu.A &= cpu.Read(info.address)
	cpu.setZN(cpu.A)
}

// ORA - "OR" memory with A
func (cpu *CPU) ora(info *stepInfo) {
	cpu.A |= cpu.Read(info.address)
	cpu.setZN(cpu.A)
}

// EOR - "Exclusive-Or" memory with A
func (cpu *CPU) eor(info *stepInfo) {
	cpu.A ^= cpu.Read(info.address)
	cpu.setZN(cpu.A)
}

func (cpu *CPU) inx(info *stepInfo) {
	cpu.X++
	cpu.setZN(cpu.X)
}

func (cpu *CPU) dex(info *stepInfo) {
	cpu.X--
	cpu.setZN(cpu.X)
}

func (cpu *CPU) iny(info *stepInfo) {
	cpu.Y++
	cpu.setZN(cpu.Y)
}

func (cpu *CPU) dey(info *stepInfo) {
	cpu.Y--
	cpu.setZN(cpu.Y)
}

func (cpu *CPU) tax(info *stepInfo) {
	cpu.X = cpu.A
	cpu.setZN(cpu.X)
}

func (cpu *CPU) txa(info *stepInfo) {
	cpu.A = cpu.X
	cpu.setZN(cpu.A)
}

func (cpu *CPU) tay(info *stepInfo) {
	cpu.Y = cpu.A
	cpu.setZN(cpu.Y)
}

func (cpu *CPU) tya(info *stepInfo) {
	cpu.A = cpu.Y
	cpu.setZN(cpu.A)
}

func (cpu *CPU) tsx(info *stepInfo) {
	cpu.X = cpu.SP
	cpu.setZN(cpu.X)
}

// TXS 不影响标志位
func (cpu *CPU) txs(info *stepInfo) {
	cpu.SP = cpu.X
}

func (cpu *CPU) clc(info *stepInfo) { cpu.C = 0 }
func (cpu *CPU) sec(info *stepInfo) { cpu.C = 1 }
func (cpu *CPU) cld(info *stepInfo) { cpu.D = 0 }
func (cpu *CPU) sed(info *stepInfo) { cpu.D = 1 }
func (cpu *CPU) clv(info *stepInfo) { cpu.V = 0 }
func (cpu *CPU) cli(info *stepInfo) { cpu.I = 0 }
func (cpu *CPU) sei(info *stepInfo) { cpu.I = 1 }

func (cpu *CPU) compare(a, b byte) {
	cpu.setZN(a - b)
	if a >= b {
		cpu.C = 1
	} else {
		cpu.C = 0
	}
}

// CMP - compare memory with A
func (cpu *CPU) cmp(info *stepInfo) {
	cpu.compare(cpu.A, cpu.Read(info.address))
}

// CPX - compare memory with X
func (cpu *CPU) cpx(info *stepInfo) {
	cpu.compare(cpu.X, cpu.Read(info.address))
}

// CPY - compare memory with Y
func (cpu *CPU) cpy(info *stepInfo) {
	cpu.compare(cpu.Y, cpu.Read(info.address))
}

// BIT - Bit test memory with A
func (cpu *CPU) bit(info *stepInfo) {
	value := cpu.Read(info.address)
	cpu.setZ(cpu.A & value)
	cpu.V = (value >> 6) & 1
	cpu.N = (value >> 7) & 1
}

// 移位类指令的累加器/内存两种形式
func (cpu *CPU) modify(info *stepInfo, op func(byte) byte) byte {
	if info.mode == modeAccumulator {
		cpu.A = op(cpu.A)
		cpu.setZN(cpu.A)
		return cpu.A
	}
	value := op(cpu.Read(info.address))
	cpu.Write(info.address, value)
	cpu.setZN(value)
	return value
}

// ASL - Arithmetic Shift Left --  C <- |7|6|5|4|3|2|1|0| <- 0
func (cpu *CPU) asl(info *stepInfo) {
	cpu.modify(info, cpu.shiftLeft)
}

// LSR - Logical Shift Right
func (cpu *CPU) lsr(info *stepInfo) {
	cpu.modify(info, cpu.shiftRight)
}

// ROL - Rotate Left
func (cpu *CPU) rol(info *stepInfo) {
	cpu.modify(info, cpu.rotateLeft)
}

// ROR - Rotate Right
func (cpu *CPU) ror(info *stepInfo) {
	cpu.modify(info, cpu.rotateRight)
}

func (cpu *CPU) shiftLeft(value byte) byte {
	cpu.C = (value >> 7) & 1
	return value << 1
}

func (cpu *CPU) shiftRight(value byte) byte {
	cpu.C = value & 1
	return value >> 1
}

func (cpu *CPU) rotateLeft(value byte) byte {
	c := cpu.C
	cpu.C = (value >> 7) & 1
	return (value << 1) | c
}

func (cpu *CPU) rotateRight(value byte) byte {
	c := cpu.C
	cpu.C = value & 1
	return (value >> 1) | (c << 7)
}

// PHA - Push A
func (cpu *CPU) pha(info *stepInfo) {
	cpu.push(cpu.A)
}

// PLA - Pull(Pop) A
func (cpu *CPU) pla(info *stepInfo) {
	cpu.A = cpu.pull()
	cpu.setZN(cpu.A)
}

// PHP - Push Processor-status，压栈时B和U都为1
func (cpu *CPU) php(info *stepInfo) {
	cpu.push(cpu.Flags() | 0x30)
}

// PLP - Pull Processor-status
func (cpu *CPU) plp(info *stepInfo) {
	cpu.SetFlags(cpu.pull()&0xef | 0x20)
}

// JMP - Jump
func (cpu *CPU) jmp(info *stepInfo) {
	cpu.PC = info.address
}

func (cpu *CPU) branch(info *stepInfo, cond bool) {
	if cond {
		cpu.PC = info.address
		cpu.addBranchCycles(info)
	}
}

// BEQ - Branch if Equal
func (cpu *CPU) beq(info *stepInfo) { cpu.branch(info, cpu.Z != 0) }

// BNE - Branch if Not Equal
func (cpu *CPU) bne(info *stepInfo) { cpu.branch(info, cpu.Z == 0) }

// BCS - Branch if Carry Set
func (cpu *CPU) bcs(info *stepInfo) { cpu.branch(info, cpu.C != 0) }

// BCC - Branch if Carry Clear
func (cpu *CPU) bcc(info *stepInfo) { cpu.branch(info, cpu.C == 0) }

// BMI - Branch if Minus
func (cpu *CPU) bmi(info *stepInfo) { cpu.branch(info, cpu.N != 0) }

// BPL - Branch if Plus
func (cpu *CPU) bpl(info *stepInfo) { cpu.branch(info, cpu.N == 0) }

// BVS - Branch if Overflow Set
func (cpu *CPU) bvs(info *stepInfo) { cpu.branch(info, cpu.V != 0) }

// BVC - Branch if Overflow Clear
func (cpu *CPU) bvc(info *stepInfo) { cpu.branch(info, cpu.V == 0) }

// JSR - Jump to Subroutine，压入的是返回地址-1
func (cpu *CPU) jsr(info *stepInfo) {
	cpu.push16(cpu.PC - 1)
	cpu.PC = info.address
}

// RTS - Return from Subroutine
func (cpu *CPU) rts(info *stepInfo) {
	cpu.PC = cpu.pull16() + 1
}

// NOP - do nothing... 哈？
func (cpu *CPU) nop(info *stepInfo) {}

// BRK 强制中断，PC已经跳过了填充字节
func (cpu *CPU) brk(info *stepInfo) {
	cpu.push16(cpu.PC)
	cpu.push(cpu.Flags() | 0x30)
	cpu.I = 1
	cpu.PC = cpu.Read16(IRQ)
}

// RTI - Return from Interrupt
func (cpu *CPU) rti(info *stepInfo) {
	cpu.SetFlags(cpu.pull()&0xef | 0x20)
	cpu.PC = cpu.pull16()
}
