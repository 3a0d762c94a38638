package nes

import "fmt"

// Tracer 指令级事件的观察者，由外部设置
type Tracer interface {
	Trace(event TraceEvent)
}

// TracerFunc 把普通函数当作Tracer
type TracerFunc func(event TraceEvent)

func (f TracerFunc) Trace(event TraceEvent) {
	f(event)
}

// TraceEvent 指令执行前的CPU状态
type TraceEvent struct {
	PC      uint16
	Opcode  byte
	Operand [2]byte
	Size    byte
	Name    string
	Illegal bool
	A       byte
	X       byte
	Y       byte
	P       byte
	SP      byte
	Cycles  uint64
}

// String 输出接近nestest.log的一行
func (e TraceEvent) String() string {
	w1, w2 := "  ", "  "
	if e.Size >= 2 {
		w1 = fmt.Sprintf("%02X", e.Operand[0])
	}
	if e.Size >= 3 {
		w2 = fmt.Sprintf("%02X", e.Operand[1])
	}
	mark := " "
	if e.Illegal {
		mark = "*"
	}
	return fmt.Sprintf(
		"%04X  %02X %s %s %s%s %28s"+
			"A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
		e.PC, e.Opcode, w1, w2, mark, e.Name, "",
		e.A, e.X, e.Y, e.P, e.SP, e.Cycles)
}
