package nes

import (
	"image"
	"log"
)

/**
这个模块作为cpu/ppu/apu/mapper/card/RAM的封装
Console按值持有所有部件，本身实现CPU总线
*/

type Console struct {
	CPU         CPU
	PPU         PPU
	APU         APU
	Cartridge   Cartridge
	VRAM        PPUMemory // PPU总线
	RAM         [2048]byte
	Controller1 Controller
	Controller2 Controller

	logger     *log.Logger
	sampleRate float64 // 0 表示每个APU周期输出一个采样
	audioCycle uint64
	audio      []float32

	// 同类日志只打一次
	haltLogged      bool
	expansionLogged bool
}

func NewConsole(rom []byte, opts ...Option) (*Console, error) {
	card, err := LoadNESRom(rom)
	if err != nil {
		return nil, err
	}

	console := &Console{
		Cartridge: *card,
		VRAM:      NewPPUMemory(card),
		PPU:       NewPPU(),
		APU:       NewAPU(),
		logger:    defaultLogger(),
	}
	for _, opt := range opts {
		if err := opt(console); err != nil {
			return nil, err
		}
	}

	console.logger.Printf("loaded rom: mapper %d, PRG %dKB, CHR %dKB (ram=%v), mirror %v",
		card.Mapper, len(card.PRG)/1024, len(card.CHR)/1024, card.chrRAM, card.Mirror)

	console.CPU.Reset(console)
	return console, nil
}

func (console *Console) Reset() {
	console.CPU.Reset(console)
	console.PPU.Reset()
	console.APU.Reset()
	console.haltLogged = false
	console.expansionLogged = false
}

// Step 执行一条指令，PPU走三倍的周期，APU走相同周期，最后转发中断
func (console *Console) Step() (int, error) {
	cpuCycles, err := console.CPU.Step(console)

	// PPU的时钟是CPU三倍
	ppuCycles := cpuCycles * 3
	for i := 0; i < ppuCycles; i++ {
		console.PPU.Step(&console.VRAM)
	}
	for i := 0; i < cpuCycles; i++ {
		console.APU.Tick()
		console.sampleAudio()
	}

	if err != nil {
		if !console.haltLogged {
			console.logger.Printf("cpu halted: %v", err)
			console.haltLogged = true
		}
		return cpuCycles, err
	}

	if console.PPU.pollNMI() {
		console.CPU.TriggerNMI(console)
	}
	if console.Cartridge.mapper.HasIRQ() || console.APU.IRQPending() {
		console.CPU.TriggerIRQ(console)
	}
	return cpuCycles, nil
}

// StepFrame 执行到PPU完成一帧
func (console *Console) StepFrame() error {
	frame := console.PPU.Frame
	for frame == console.PPU.Frame {
		if _, err := console.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (console *Console) StepSeconds(seconds float64) error {
	cycles := int(CPUFrequency * seconds)
	for cycles > 0 {
		n, err := console.Step()
		if err != nil {
			return err
		}
		cycles -= n
	}
	return nil
}

// 按采样率抽取APU输出
func (console *Console) sampleAudio() {
	if console.sampleRate == 0 {
		console.audio = append(console.audio, console.APU.Output())
		return
	}
	period := float64(CPUFrequency) / console.sampleRate
	s1 := int(float64(console.audioCycle) / period)
	s2 := int(float64(console.audioCycle+1) / period)
	if s1 != s2 {
		console.audio = append(console.audio, console.APU.Output())
	}
	console.audioCycle++
}

// DrainAudio 取走上次调用之后产生的采样
func (console *Console) DrainAudio() []float32 {
	samples := console.audio
	console.audio = nil
	return samples
}

// SampleRate 0 表示APU原生速率
func (console *Console) SampleRate() float64 {
	if console.sampleRate == 0 {
		return CPUFrequency
	}
	return console.sampleRate
}

// SetButtons1 按键位图 bit0=A ... bit7=Right
func (console *Console) SetButtons1(buttons byte) {
	console.Controller1.SetButtons(buttons)
}

func (console *Console) SetButtons2(buttons byte) {
	console.Controller2.SetButtons(buttons)
}

func (console *Console) SetButton1(buttons [8]bool) {
	console.Controller1.SetButtons(ButtonMask(buttons))
}

func (console *Console) SetButton2(buttons [8]bool) {
	console.Controller2.SetButtons(ButtonMask(buttons))
}

func (console *Console) Buffer() *image.RGBA {
	return console.PPU.Buffer()
}
