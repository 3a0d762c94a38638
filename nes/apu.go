package nes

/*
APU
方波1 (pulse1)	Timer, length counter, envelope, sweep
方波2 (pulse2)	Timer, length counter, envelope, sweep
三角波 (triangle)	Timer, length counter, linear counter
噪声 (noise)	Timer, length counter, envelope, LFSR

$4000-$4003	方波1
$4004-$4007	方波2
$4008-$400B	三角波
$400C-$400F	噪声
$4015		声道使能/状态
$4017		帧序列器
DMC($4010-$4013)不实现，写入直接忽略
*/

// 5bit(<=31)的长度计数器值是索引，索引到下面的数组的值才是真实值
var lengthTable = [32]byte{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

var triangleTable = [32]byte{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// NTSC，单位是CPU周期
var noiseTable = [16]uint16{
	4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068,
}

// 占空比序列
var dutyTable = [4][8]byte{
	{0, 1, 0, 0, 0, 0, 0, 0},
	{0, 1, 1, 0, 0, 0, 0, 0},
	{0, 1, 1, 1, 1, 0, 0, 0},
	{1, 0, 0, 1, 1, 1, 1, 1},
}

// 帧序列器在这些CPU周期触发
const (
	frameStep1    = 7457
	frameStep2    = 14913
	frameStep3    = 22371
	frameStep4    = 29829
	frameEnd4     = 29830
	frameStep5    = 37281
	frameEnd5     = 37282
	maxSweepValue = 0x7ff
)

/*
查表法降低计算复杂度
                          95.88
    pulse_out = -----------------------
                        8128
                 ----------------- + 100
                 pulse1 + pulse2

                          159.79
    tnd_out = ------------------------------
                          1
              ------------------------ + 100
              triangle   noise
              -------- + -----
                8227     12241
*/
var pulseTable [31]float32
var tndTable [16][16]float32

func init() {
	for i := 1; i < 31; i++ {
		pulseTable[i] = float32(95.88 / (8128.0/float64(i) + 100))
	}
	for t := 0; t < 16; t++ {
		for n := 0; n < 16; n++ {
			if t == 0 && n == 0 {
				continue
			}
			sum := float64(t)/8227.0 + float64(n)/12241.0
			tndTable[t][n] = float32(159.79 / (1/sum + 100))
		}
	}
}

type APU struct {
	cycle uint64

	pulse1   Pulse
	pulse2   Pulse
	triangle Triangle
	noise    Noise

	frameCycle int  // 距离上次序列器复位的CPU周期
	frameMode  byte // 0：4 步模式，1：5 步模式
	irqInhibit bool // 中断禁止标志
	frameIRQ   bool // 帧中断标志, 读$4015后清除
}

func NewAPU() APU {
	apu := APU{}
	apu.pulse1.channel = 1
	apu.pulse2.channel = 2
	apu.noise.shiftRegister = 1
	return apu
}

// Reset 静音所有声道，保留LFSR种子
func (apu *APU) Reset() {
	apu.writeStatus(0)
	apu.writeFrameCounter(0)
	apu.frameIRQ = false
}

// Tick 推进一个CPU周期
func (apu *APU) Tick() {
	// 方波的timer是CPU时钟的一半, 三角波和噪声每个周期
	if apu.cycle%2 == 0 {
		apu.pulse1.stepTimer()
		apu.pulse2.stepTimer()
	}
	apu.triangle.stepTimer()
	apu.noise.stepTimer()
	apu.stepFrameSequencer()
	apu.cycle++
}

// Output 当前的混音结果
func (apu *APU) Output() float32 {
	p1 := apu.pulse1.output()
	p2 := apu.pulse2.output()
	t := apu.triangle.output()
	n := apu.noise.output()
	return pulseTable[p1+p2] + tndTable[t][n]
}

// IRQPending 帧中断等待CPU响应
func (apu *APU) IRQPending() bool {
	return apu.frameIRQ
}

/*
4 步模式	5 步模式	功能
- - - f	- - - - -	产生中断
- l - l	- l - - l	长度计数器和扫描单元
e e e e	e e e - e	包络与线性计数器
*/
func (apu *APU) stepFrameSequencer() {
	apu.frameCycle++
	switch apu.frameCycle {
	case frameStep1, frameStep3:
		apu.quarterFrame()
	case frameStep2:
		apu.quarterFrame()
		apu.halfFrame()
	case frameStep4:
		if apu.frameMode == 0 {
			apu.quarterFrame()
			apu.halfFrame()
			if !apu.irqInhibit {
				apu.frameIRQ = true
			}
		}
	case frameEnd4:
		if apu.frameMode == 0 {
			apu.frameCycle = 0
		}
	case frameStep5:
		apu.quarterFrame()
		apu.halfFrame()
	case frameEnd5:
		apu.frameCycle = 0
	}
}

// 包络与线性计数器
func (apu *APU) quarterFrame() {
	apu.pulse1.stepEnvelope()
	apu.pulse2.stepEnvelope()
	apu.noise.stepEnvelope()
	apu.triangle.stepLinear()
}

// 长度计数器与扫描单元
func (apu *APU) halfFrame() {
	apu.pulse1.stepLength()
	apu.pulse2.stepLength()
	apu.triangle.stepLength()
	apu.noise.stepLength()
	apu.pulse1.stepSweep()
	apu.pulse2.stepSweep()
}

func (apu *APU) writeRegister(addr uint16, value byte) {
	switch addr {
	case 0x4000:
		apu.pulse1.writeCtrl(value)
	case 0x4001:
		apu.pulse1.writeSweep(value)
	case 0x4002:
		apu.pulse1.writeTimerLow(value)
	case 0x4003:
		apu.pulse1.writeTimerHigh(value)
	case 0x4004:
		apu.pulse2.writeCtrl(value)
	case 0x4005:
		apu.pulse2.writeSweep(value)
	case 0x4006:
		apu.pulse2.writeTimerLow(value)
	case 0x4007:
		apu.pulse2.writeTimerHigh(value)
	case 0x4008:
		apu.triangle.writeLinearCtrl(value)
	case 0x400a:
		apu.triangle.writePeriodLow(value)
	case 0x400b:
		apu.triangle.writePeriodHigh(value)
	case 0x400c:
		apu.noise.writeEnvelope(value)
	case 0x400e:
		apu.noise.writeTimerPeriod(value)
	case 0x400f:
		apu.noise.writeLength(value)
	case 0x4015:
		apu.writeStatus(value)
	case 0x4017:
		apu.writeFrameCounter(value)
	}
}

// $4017 MI-- ----
func (apu *APU) writeFrameCounter(value byte) {
	apu.frameMode = (value >> 7) & 1
	apu.irqInhibit = (value>>6)&1 == 1
	if apu.irqInhibit {
		apu.frameIRQ = false
	}
	apu.frameCycle = 0
	// 5步模式写入时立即驱动一次
	if apu.frameMode == 1 {
		apu.quarterFrame()
		apu.halfFrame()
	}
}

// 0x4015 APU状态寄存器，唯一可读寄存器，读后清除帧中断
func (apu *APU) readStatus() byte {
	var status byte
	if apu.pulse1.lengthValue > 0 {
		status |= 1
	}
	if apu.pulse2.lengthValue > 0 {
		status |= 1 << 1
	}
	if apu.triangle.lengthValue > 0 {
		status |= 1 << 2
	}
	if apu.noise.lengthValue > 0 {
		status |= 1 << 3
	}
	if apu.frameIRQ {
		status |= 1 << 6
	}
	apu.frameIRQ = false
	return status
}

// 写0关闭声道，同时让长度计数器归零
func (apu *APU) writeStatus(value byte) {
	apu.pulse1.setEnabled(value&1 != 0)
	apu.pulse2.setEnabled(value&2 != 0)
	apu.triangle.setEnabled(value&4 != 0)
	apu.noise.setEnabled(value&8 != 0)
}

// 包络，方波和噪声共用
type envelope struct {
	start    bool
	loop     bool // 同时也是长度计数器暂停位
	constant bool // 使用固定音量
	period   byte // 分频器P值，也是固定音量
	value    byte // 分频器计时
	decay    byte // 衰减音量
}

func (e *envelope) write(value byte) {
	e.loop = (value>>5)&1 == 1
	e.constant = (value>>4)&1 == 1
	e.period = value & 0x0f
}

func (e *envelope) step() {
	if e.start {
		e.start = false
		e.decay = 15
		e.value = e.period
		return
	}
	if e.value > 0 {
		e.value--
		return
	}
	e.value = e.period
	if e.decay > 0 {
		e.decay--
	} else if e.loop {
		e.decay = 15
	}
}

func (e *envelope) volume() byte {
	if e.constant {
		return e.period
	}
	return e.decay
}

type Pulse struct {
	enabled     bool
	channel     byte // 哪个方波 1/2
	dutyMode    byte // 占空比模式
	dutyValue   byte // 占空比序列index
	lengthValue byte
	timerPeriod uint16
	timerValue  uint16
	envelope    envelope

	sweepEnable bool
	sweepPeriod byte
	sweepNegate bool
	sweepShift  byte
	sweepValue  byte
	sweepReload bool // 写入sweep时候设为true
}

func (p *Pulse) setEnabled(enabled bool) {
	p.enabled = enabled
	if !enabled {
		p.lengthValue = 0
	}
}

// DDLC VVVV
func (p *Pulse) writeCtrl(value byte) {
	p.dutyMode = (value >> 6) & 0x3
	p.envelope.write(value)
}

// EPPP NSSS 使能标志, 分频器周期(需要+1), 负向标志位, 位移数量
func (p *Pulse) writeSweep(value byte) {
	p.sweepEnable = (value>>7)&1 == 1
	p.sweepPeriod = (value >> 4) & 0x7
	p.sweepNegate = (value>>3)&1 == 1
	p.sweepShift = value & 0x7
	p.sweepReload = true
}

func (p *Pulse) writeTimerLow(value byte) {
	p.timerPeriod = (p.timerPeriod & 0xff00) | uint16(value)
}

// LLLL LHHH
func (p *Pulse) writeTimerHigh(value byte) {
	p.timerPeriod = (p.timerPeriod & 0x00ff) | (uint16(value&0x7) << 8)
	if p.enabled {
		p.lengthValue = lengthTable[value>>3]
	}
	p.envelope.start = true
	p.dutyValue = 0
}

func (p *Pulse) stepTimer() {
	if p.timerValue == 0 {
		p.timerValue = p.timerPeriod
		p.dutyValue = (p.dutyValue + 1) % 8
	} else {
		p.timerValue--
	}
}

func (p *Pulse) stepEnvelope() {
	p.envelope.step()
}

func (p *Pulse) stepLength() {
	if !p.envelope.loop && p.lengthValue > 0 {
		p.lengthValue--
	}
}

// 方波1用反码，方波2用补码
func (p *Pulse) targetPeriod() uint16 {
	delta := p.timerPeriod >> p.sweepShift
	if !p.sweepNegate {
		return p.timerPeriod + delta
	}
	if p.channel == 1 {
		if delta+1 > p.timerPeriod {
			return 0
		}
		return p.timerPeriod - delta - 1
	}
	if delta > p.timerPeriod {
		return 0
	}
	return p.timerPeriod - delta
}

// 声道周期<8或目标周期超过11bit都会静音，与sweep是否开启无关
func (p *Pulse) muted() bool {
	return p.timerPeriod < 8 || p.targetPeriod() > maxSweepValue
}

func (p *Pulse) stepSweep() {
	if p.sweepValue == 0 && p.sweepEnable && p.sweepShift > 0 && !p.muted() {
		p.timerPeriod = p.targetPeriod()
	}
	if p.sweepValue == 0 || p.sweepReload {
		p.sweepValue = p.sweepPeriod
		p.sweepReload = false
	} else {
		p.sweepValue--
	}
}

func (p *Pulse) output() byte {
	if !p.enabled || p.lengthValue == 0 {
		return 0
	}
	if dutyTable[p.dutyMode][p.dutyValue] == 0 {
		return 0
	}
	if p.muted() {
		return 0
	}
	return p.envelope.volume()
}

type Triangle struct {
	enabled           bool
	timerPeriod       uint16
	timerValue        uint16
	dutyValue         byte // 波形index
	lengthValue       byte
	control           bool // 长度计数器暂停，同时是线性计数器控制位
	linearValue       byte
	linearReload      bool
	linearReloadValue byte
}

func (t *Triangle) setEnabled(enabled bool) {
	t.enabled = enabled
	if !enabled {
		t.lengthValue = 0
	}
}

// CRRR RRRR
func (t *Triangle) writeLinearCtrl(value byte) {
	t.control = (value>>7)&1 == 1
	t.linearReloadValue = value & 0x7f
}

func (t *Triangle) writePeriodLow(value byte) {
	t.timerPeriod = (t.timerPeriod & 0xff00) | uint16(value)
}

func (t *Triangle) writePeriodHigh(value byte) {
	t.timerPeriod = (t.timerPeriod & 0x00ff) | (uint16(value&0x7) << 8)
	if t.enabled {
		t.lengthValue = lengthTable[value>>3]
	}
	t.linearReload = true
}

// 长度计数器和线性计数器都非0时才推进波形
func (t *Triangle) stepTimer() {
	if t.timerValue == 0 {
		t.timerValue = t.timerPeriod
		if t.lengthValue > 0 && t.linearValue > 0 {
			t.dutyValue = (t.dutyValue + 1) % 32
		}
	} else {
		t.timerValue--
	}
}

func (t *Triangle) stepLength() {
	if !t.control && t.lengthValue > 0 {
		t.lengthValue--
	}
}

func (t *Triangle) stepLinear() {
	if t.linearReload {
		t.linearValue = t.linearReloadValue
	} else if t.linearValue > 0 {
		t.linearValue--
	}
	if !t.control {
		t.linearReload = false
	}
}

// 周期小于3时频率超出可听范围，直接静音
func (t *Triangle) output() byte {
	if !t.enabled || t.lengthValue == 0 || t.linearValue == 0 || t.timerPeriod < 3 {
		return 0
	}
	return triangleTable[t.dutyValue]
}

type Noise struct {
	enabled       bool
	shortMode     bool
	shiftRegister uint16 // 15bit LFSR
	lengthValue   byte
	timerPeriod   uint16
	timerValue    uint16
	envelope      envelope
}

func (n *Noise) setEnabled(enabled bool) {
	n.enabled = enabled
	if !enabled {
		n.lengthValue = 0
	}
}

// $400C --LC VVVV
func (n *Noise) writeEnvelope(value byte) {
	n.envelope.write(value)
}

// $400E L--- PPPP
func (n *Noise) writeTimerPeriod(value byte) {
	n.shortMode = (value>>7)&1 == 1
	n.timerPeriod = noiseTable[value&0x0f]
}

// $400F LLLL L---
func (n *Noise) writeLength(value byte) {
	if n.enabled {
		n.lengthValue = lengthTable[value>>3]
	}
	n.envelope.start = true
}

// D0与D1异或, 短模式是D0与D6
// 右移一位, 结果作为最高位(D14)
func (n *Noise) stepLFSR() {
	tap := uint16(1)
	if n.shortMode {
		tap = 6
	}
	feedback := (n.shiftRegister & 1) ^ ((n.shiftRegister >> tap) & 1)
	n.shiftRegister = (n.shiftRegister >> 1) | (feedback << 14)
}

// 表里是CPU周期，计到period-1后更新一次
func (n *Noise) stepTimer() {
	if n.timerValue == 0 {
		if n.timerPeriod > 0 {
			n.timerValue = n.timerPeriod - 1
		}
		n.stepLFSR()
	} else {
		n.timerValue--
	}
}

func (n *Noise) stepEnvelope() {
	n.envelope.step()
}

func (n *Noise) stepLength() {
	if !n.envelope.loop && n.lengthValue > 0 {
		n.lengthValue--
	}
}

// LFSR最低位为0才输出音量
func (n *Noise) output() byte {
	if !n.enabled || n.lengthValue == 0 {
		return 0
	}
	if n.shiftRegister&1 == 1 {
		return 0
	}
	return n.envelope.volume()
}
