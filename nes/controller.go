package nes

/*
bit:	7	6	5	4	3	2	1	0
button:	Right	Left	Down	Up	Start	Select	B	A
*/

/*
	只能往 4016 写（写 4017 给 APU 用了），
	读可以往 4016 和 4017 读。写 4016 时，对两个手柄都有效，
	读时则 4016 为 P1，4017 为 P2

	strobe 是选通，strobe从1变0时锁存按键状态，之后每次读移出一位
*/

const (
	ButtonA = iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// 读手柄时高位的open bus
const controllerOpenBus = 0x40

type Controller struct {
	buttons byte // 实时按键
	shift   byte // 锁存的按键
	index   byte
	strobe  bool
}

// SetButtons 按键位图 bit0=A ... bit7=Right
func (c *Controller) SetButtons(buttons byte) {
	c.buttons = buttons
}

// ButtonMask [8]bool 转成位图
func ButtonMask(buttons [8]bool) byte {
	var mask byte
	for i, pressed := range buttons {
		if pressed {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

func (c *Controller) Read() byte {
	if c.strobe {
		return c.buttons&1 | controllerOpenBus
	}
	value := byte(1)
	if c.index < 8 {
		value = (c.shift >> c.index) & 1
		c.index++
	}
	return value | controllerOpenBus
}

func (c *Controller) Write(value byte) {
	strobe := value&1 == 1
	if c.strobe && !strobe {
		c.shift = c.buttons
		c.index = 0
	}
	c.strobe = strobe
}
