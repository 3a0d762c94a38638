package nes

import "testing"

func newTestPPU(t *testing.T, mirror MirrorMode) (*PPU, *PPUMemory) {
	t.Helper()
	card := NewCartridge(make([]byte, prgBankSize), nil, 0, mirror)
	m, err := NewMapper(card)
	if err != nil {
		t.Fatal(err)
	}
	card.mapper = m
	mem := NewPPUMemory(card)
	ppu := NewPPU()
	return &ppu, &mem
}

// 执行到指定的扫描线和点
func stepTo(ppu *PPU, mem *PPUMemory, line, cycle int) {
	for ppu.ScanLine != line || ppu.Cycle != cycle {
		ppu.Step(mem)
	}
}

func TestVBlank(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	stepTo(ppu, mem, 241, 0)
	if ppu.VBlank() {
		t.Fatal("VBlank set before 241/1")
	}
	ppu.Step(mem)
	if !ppu.VBlank() {
		t.Fatal("VBlank not set at 241/1")
	}
	if ppu.pollNMI() {
		t.Error("NMI without $2000 bit 7")
	}

	status := ppu.readRegister(0x2002, mem)
	if status&0x80 == 0 {
		t.Error("status bit 7 clear during VBlank")
	}
	if ppu.readRegister(0x2002, mem)&0x80 != 0 {
		t.Error("reading status did not clear VBlank")
	}

	stepTo(ppu, mem, 261, 0)
	ppu.vblank = true
	ppu.Step(mem)
	if ppu.VBlank() {
		t.Error("VBlank not cleared at 261/1")
	}
}

func TestNMI(t *testing.T) {
	t.Run("enabled before vblank", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		ppu.writeRegister(0x2000, 0x80, mem)
		stepTo(ppu, mem, 241, 1)
		if !ppu.pollNMI() {
			t.Fatal("no NMI at VBlank")
		}
		if ppu.pollNMI() {
			t.Error("NMI delivered twice")
		}
	})

	t.Run("enabled during vblank", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		stepTo(ppu, mem, 245, 0)
		ppu.writeRegister(0x2000, 0x80, mem)
		if !ppu.pollNMI() {
			t.Fatal("enabling NMI during VBlank did not fire")
		}
		// 再次写入不会重复触发
		ppu.writeRegister(0x2000, 0x80, mem)
		if ppu.pollNMI() {
			t.Error("second write fired again")
		}
	})
}

func TestFrameSwap(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	before := ppu.Buffer()
	stepTo(ppu, mem, 241, 1)
	if ppu.Buffer() == before {
		t.Error("buffers not swapped at VBlank")
	}
}

func TestOddFrameSkip(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	ppu.writeRegister(0x2001, 0x08, mem)
	stepTo(ppu, mem, 0, 0)

	frameLength := func() int {
		n := 0
		frame := ppu.Frame
		for frame == ppu.Frame {
			ppu.Step(mem)
			n++
		}
		return n
	}
	a, b := frameLength(), frameLength()
	if a+b != 2*262*341-1 {
		t.Errorf("two frames took %d + %d dots", a, b)
	}

	// 关闭渲染不跳过
	ppu.writeRegister(0x2001, 0x00, mem)
	a, b = frameLength(), frameLength()
	if a != 262*341 || b != 262*341 {
		t.Errorf("rendering off: %d and %d dots", a, b)
	}
}

func TestPPUData(t *testing.T) {
	t.Run("buffered read", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		mem.Write(0x2400, 0xab)
		mem.Write(0x2401, 0xcd)
		ppu.writeRegister(0x2006, 0x24, mem)
		ppu.writeRegister(0x2006, 0x00, mem)
		ppu.readRegister(0x2007, mem)
		if got := ppu.readRegister(0x2007, mem); got != 0xab {
			t.Errorf("second read = %02X, want AB", got)
		}
		if got := ppu.readRegister(0x2007, mem); got != 0xcd {
			t.Errorf("third read = %02X, want CD", got)
		}
	})

	t.Run("palette read", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		mem.Write(0x3f00, 0x21)
		mem.Write(0x2f00, 0x99)
		ppu.writeRegister(0x2006, 0x3f, mem)
		ppu.writeRegister(0x2006, 0x00, mem)
		if got := ppu.readRegister(0x2007, mem); got != 0x21 {
			t.Errorf("palette read = %02X", got)
		}
		if ppu.readBuffer != 0x99 {
			t.Errorf("buffer = %02X, want nametable byte under palette", ppu.readBuffer)
		}
	})

	t.Run("increment 32", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		ppu.writeRegister(0x2000, 0x04, mem)
		ppu.writeRegister(0x2006, 0x20, mem)
		ppu.writeRegister(0x2006, 0x00, mem)
		ppu.writeRegister(0x2007, 1, mem)
		ppu.writeRegister(0x2007, 2, mem)
		if mem.Read(0x2000) != 1 || mem.Read(0x2020) != 2 {
			t.Errorf("writes landed at %02X %02X", mem.Read(0x2000), mem.Read(0x2020))
		}
	})

	t.Run("status resets latch", func(t *testing.T) {
		ppu, mem := newTestPPU(t, MirrorVertical)
		ppu.writeRegister(0x2006, 0x21, mem)
		ppu.readRegister(0x2002, mem)
		ppu.writeRegister(0x2006, 0x23, mem)
		ppu.writeRegister(0x2006, 0x45, mem)
		if ppu.v != 0x2345 {
			t.Errorf("v = %04X", ppu.v)
		}
	})
}

func TestScrollRegisters(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	ppu.writeRegister(0x2000, 0x03, mem)
	ppu.writeRegister(0x2005, 0x7d, mem)
	ppu.writeRegister(0x2005, 0x5e, mem)
	// t: .CBA..HG FED..... ; nametable 3, coarse X 15, fine X 5, coarse Y 11, fine Y 6
	if ppu.t != 0x6d6f || ppu.x != 5 || ppu.w {
		t.Errorf("t=%04X x=%d w=%v", ppu.t, ppu.x, ppu.w)
	}
}

func TestOAMRegisters(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	ppu.writeRegister(0x2003, 0x10, mem)
	ppu.writeRegister(0x2004, 0x55, mem)
	ppu.writeRegister(0x2004, 0xff, mem)
	if ppu.oam[0x10] != 0x55 || ppu.oamAddr != 0x12 {
		t.Fatalf("oam[10]=%02X addr=%02X", ppu.oam[0x10], ppu.oamAddr)
	}
	ppu.writeRegister(0x2003, 0x10, mem)
	if ppu.readRegister(0x2004, mem) != 0x55 || ppu.oamAddr != 0x10 {
		t.Error("OAM read changed the address")
	}
	// 属性字节 D2-D4 不存在
	ppu.writeRegister(0x2003, 0x12, mem)
	ppu.writeRegister(0x2004, 0xff, mem)
	ppu.writeRegister(0x2003, 0x12, mem)
	if got := ppu.readRegister(0x2004, mem); got != 0xe3 {
		t.Errorf("attribute read = %02X", got)
	}
}

func TestSpriteZeroHit(t *testing.T) {
	tests := []struct {
		name     string
		cycle    int
		position byte
		showLeft byte
		want     bool
	}{
		{"overlap", 11, 10, 1, true},
		{"left column masked", 5, 0, 0, false},
		{"left column shown", 5, 0, 1, true},
		{"x 255", 256, 250, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ppu, mem := newTestPPU(t, MirrorVertical)
			ppu.writeMask(0x18 | tt.showLeft<<1 | tt.showLeft<<2)
			ppu.ScanLine = 5
			ppu.Cycle = tt.cycle
			ppu.bgShift = 0x1111111100000000
			ppu.spriteCount = 1
			ppu.sprites[0] = spriteSlot{pattern: 0x22222222, x: tt.position}
			ppu.renderPixel(mem)
			if ppu.spriteZeroHit != tt.want {
				t.Errorf("hit = %v, want %v", ppu.spriteZeroHit, tt.want)
			}
		})
	}
}

func TestSpritePriority(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	mem.Write(0x3f01, 0x01)
	mem.Write(0x3f12, 0x02)
	ppu.writeMask(0x1e)
	ppu.ScanLine = 3
	ppu.Cycle = 21
	ppu.bgShift = 0x1111111100000000
	ppu.spriteCount = 1
	ppu.sprites[0] = spriteSlot{pattern: 0x22222222, x: 20, index: 1}

	ppu.renderPixel(mem)
	if got := ppu.back.RGBAAt(20, 3); got != Palette[0x02] {
		t.Errorf("front sprite pixel = %v", got)
	}
	ppu.sprites[0].behind = true
	ppu.renderPixel(mem)
	if got := ppu.back.RGBAAt(20, 3); got != Palette[0x01] {
		t.Errorf("behind sprite pixel = %v", got)
	}
}

func TestGrayscale(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	mem.Write(0x3f00, 0x16)
	ppu.writeMask(0x09)
	ppu.ScanLine = 0
	ppu.Cycle = 1
	ppu.renderPixel(mem)
	if got := ppu.back.RGBAAt(0, 0); got != Palette[0x10] {
		t.Errorf("gray pixel = %v, want %v", got, Palette[0x10])
	}
}

func TestSpriteEvaluation(t *testing.T) {
	for _, limit := range []bool{true, false} {
		ppu, mem := newTestPPU(t, MirrorVertical)
		ppu.spriteLimit = limit
		for i := 0; i < 9; i++ {
			ppu.oam[i*4+0] = 5
			ppu.oam[i*4+3] = byte(i * 10)
		}
		for i := 9; i < 64; i++ {
			ppu.oam[i*4+0] = 0xf0
		}
		ppu.ScanLine = 10
		ppu.evaluateSprites(mem)

		want := 8
		if !limit {
			want = 9
		}
		if ppu.spriteCount != want {
			t.Errorf("limit=%v: %d sprites, want %d", limit, ppu.spriteCount, want)
		}
		if !ppu.spriteOverflow {
			t.Errorf("limit=%v: overflow not set", limit)
		}
		if s := ppu.sprites[1]; s.index != 1 || s.x != 10 {
			t.Errorf("limit=%v: sprite 1 = index %d x %d", limit, s.index, s.x)
		}
	}
}

func TestSpritePatternFlip(t *testing.T) {
	ppu, mem := newTestPPU(t, MirrorVertical)
	// tile 1 第0行低位平面 1000_0001，第7行 0000_0011
	mem.Write(0x0010, 0x81)
	mem.Write(0x0017, 0x03)
	ppu.oam[1] = 1

	if got := ppu.fetchSpritePattern(mem, 0, 0); got != 0x10000001 {
		t.Errorf("plain = %08X", got)
	}
	ppu.oam[2] = 0x40
	if got := ppu.fetchSpritePattern(mem, 0, 7); got != 0x11000000 {
		t.Errorf("h flip = %08X", got)
	}
	ppu.oam[2] = 0x83
	if got := ppu.fetchSpritePattern(mem, 0, 0); got != 0xCCCCCCDD {
		t.Errorf("v flip = %08X", got)
	}
}

func TestMapperClockedByRendering(t *testing.T) {
	card := NewCartridge(make([]byte, 0x8000), nil, 4, MirrorVertical)
	m, err := NewMapper(card)
	if err != nil {
		t.Fatal(err)
	}
	card.mapper = m
	mem := NewPPUMemory(card)
	ppu := NewPPU()

	ppu.writeRegister(0x2001, 0x18, &mem)
	stepTo(&ppu, &mem, 0, 0)
	m.Write(0xc000, 9)
	m.Write(0xc001, 0)
	m.Write(0xe001, 0)

	// 第0行装载，1-9行递减
	stepTo(&ppu, &mem, 9, 259)
	if m.HasIRQ() {
		t.Fatal("IRQ before scanline 9")
	}
	stepTo(&ppu, &mem, 9, 261)
	if !m.HasIRQ() {
		t.Error("no IRQ after ten clocked scanlines")
	}
}
