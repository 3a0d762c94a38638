package nes

import "testing"

// 每 bankSize 字节填入bank号
func markedBanks(size, bankSize int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i / bankSize)
	}
	return data
}

func TestBankOffset(t *testing.T) {
	tests := []struct {
		value, size, bankSize int
		want                  int
	}{
		{0, 0x8000, 0x4000, 0},
		{1, 0x8000, 0x4000, 0x4000},
		{3, 0x8000, 0x4000, 0x4000},
		{-1, 0x20000, 0x2000, 0x1e000},
		{-2, 0x20000, 0x2000, 0x1c000},
		{5, 0x1000, 0x2000, 0},
		// 24个1KB银行，0x80 = 128 % 24 = 8
		{0x80, 24 * 0x400, 0x400, 8 * 0x400},
		{0xff, 24 * 0x400, 0x400, 15 * 0x400},
	}
	for _, tt := range tests {
		if got := bankOffset(tt.value, tt.size, tt.bankSize); got != tt.want {
			t.Errorf("bankOffset(%d, %#x, %#x) = %#x, want %#x", tt.value, tt.size, tt.bankSize, got, tt.want)
		}
	}
}

func TestMirrorAddress(t *testing.T) {
	tests := []struct {
		mode MirrorMode
		addr uint16
		want uint16
	}{
		{MirrorHorizontal, 0x2000, 0x000},
		{MirrorHorizontal, 0x2400, 0x000},
		{MirrorHorizontal, 0x2800, 0x400},
		{MirrorHorizontal, 0x2c10, 0x410},
		{MirrorVertical, 0x2400, 0x400},
		{MirrorVertical, 0x2800, 0x000},
		{MirrorVertical, 0x2c01, 0x401},
		{MirrorSingle0, 0x2c00, 0x000},
		{MirrorSingle1, 0x2000, 0x400},
		{MirrorVertical, 0x3000, 0x000},
	}
	for _, tt := range tests {
		if got := mirrorAddress(tt.mode, tt.addr); got != tt.want {
			t.Errorf("%v %04X -> %03X, want %03X", tt.mode, tt.addr, got, tt.want)
		}
	}
}

func TestMapper0(t *testing.T) {
	card := NewCartridge(markedBanks(0x4000, 0x100), nil, 0, MirrorHorizontal)
	m, err := NewMapper(card)
	if err != nil {
		t.Fatal(err)
	}
	// 16KB时0xC000镜像0x8000
	if m.Read(0x8123) != m.Read(0xc123) || m.Read(0xc123) != 0x01 {
		t.Errorf("8123=%02X c123=%02X", m.Read(0x8123), m.Read(0xc123))
	}
	m.Write(0x8000, 0xff)
	if m.Read(0x8000) != 0 {
		t.Error("PRG-ROM is writable")
	}
	m.Write(0x6005, 0x77)
	if m.Read(0x6005) != 0x77 {
		t.Error("SRAM write lost")
	}
	if _, ok := m.MirroringMode(); ok {
		t.Error("mapper 0 overrides header mirroring")
	}
}

// MMC1 串行写入5次
func writeMMC1(m Mapper, addr uint16, value byte) {
	for i := 0; i < 5; i++ {
		m.Write(addr, value>>uint(i)&1)
	}
}

func TestMapper1(t *testing.T) {
	card := NewCartridge(markedBanks(0x20000, 0x4000), markedBanks(0x8000, 0x1000), 1, MirrorHorizontal)
	m := NewMapper1(card.view())

	// 上电 mode 3
	if m.Read(0x8000) != 0 || m.Read(0xc000) != 7 {
		t.Fatalf("power on banks %d %d", m.Read(0x8000), m.Read(0xc000))
	}

	writeMMC1(m, 0xe000, 3)
	if m.Read(0x8000) != 3 || m.Read(0xffff) != 7 {
		t.Errorf("mode 3 banks %d %d", m.Read(0x8000), m.Read(0xffff))
	}

	writeMMC1(m, 0x8000, 0x08)
	if m.Read(0x8000) != 0 || m.Read(0xc000) != 3 {
		t.Errorf("mode 2 banks %d %d", m.Read(0x8000), m.Read(0xc000))
	}

	writeMMC1(m, 0x8000, 0x00)
	if m.Read(0x8000) != 2 || m.Read(0xc000) != 3 {
		t.Errorf("32KB mode banks %d %d", m.Read(0x8000), m.Read(0xc000))
	}
	if mode, ok := m.MirroringMode(); !ok || mode != MirrorSingle0 {
		t.Errorf("mirror = %v", mode)
	}

	// CHR 4KB 模式
	writeMMC1(m, 0x8000, 0x1e)
	writeMMC1(m, 0xa000, 5)
	writeMMC1(m, 0xc000, 2)
	if m.ChrRead(0x0000) != 5 || m.ChrRead(0x1000) != 2 {
		t.Errorf("chr banks %d %d", m.ChrRead(0x0000), m.ChrRead(0x1000))
	}
	if mode, _ := m.MirroringMode(); mode != MirrorVertical {
		t.Errorf("mirror = %v, want vertical", mode)
	}

	// CHR 8KB 模式，忽略低位
	writeMMC1(m, 0x8000, 0x0f)
	if m.ChrRead(0x0000) != 4 || m.ChrRead(0x1000) != 5 {
		t.Errorf("8KB chr banks %d %d", m.ChrRead(0x0000), m.ChrRead(0x1000))
	}
	if mode, _ := m.MirroringMode(); mode != MirrorHorizontal {
		t.Errorf("mirror = %v, want horizontal", mode)
	}
}

func TestMapper1ShiftReset(t *testing.T) {
	card := NewCartridge(markedBanks(0x20000, 0x4000), nil, 1, MirrorHorizontal)
	m := NewMapper1(card.view())
	m.Write(0xe000, 1)
	m.Write(0xe000, 1)
	m.Write(0xe000, 0x80)
	writeMMC1(m, 0xe000, 2)
	if m.Read(0x8000) != 2 {
		t.Errorf("bank = %d, want 2", m.Read(0x8000))
	}
}

// 银行数不是2的幂时，寄存器高位也只取模
func TestMapper4BankModulo(t *testing.T) {
	card := NewCartridge(markedBanks(0x8000, 0x2000), markedBanks(24*0x400, 0x400), 4, MirrorVertical)
	m := NewMapper4(card.view())

	tests := []struct {
		register byte
		value    byte
		addr     uint16
		want     byte
	}{
		{2, 0x80, 0x1000, 8},
		{3, 0x99, 0x1400, 9},
		{5, 0xff, 0x1c00, 15},
		{0, 0x82, 0x0000, 10},
		{0, 0x82, 0x0400, 11},
	}
	for _, tt := range tests {
		m.Write(0x8000, tt.register)
		m.Write(0x8001, tt.value)
		if got := m.ChrRead(tt.addr); got != tt.want {
			t.Errorf("R%d=%#02x: ChrRead(%04X) = bank %d, want %d", tt.register, tt.value, tt.addr, got, tt.want)
		}
	}

	// PRG 4个8KB银行，R6=0x85 -> 1
	m.Write(0x8000, 6)
	m.Write(0x8001, 0x85)
	if got := m.Read(0x8000); got != 1 {
		t.Errorf("R6=0x85: bank %d, want 1", got)
	}
}

func TestMapper4Banks(t *testing.T) {
	card := NewCartridge(markedBanks(0x20000, 0x2000), markedBanks(0x10000, 0x400), 4, MirrorVertical)
	m := NewMapper4(card.view())

	if m.Read(0x8000) != 0 || m.Read(0xc000) != 14 || m.Read(0xe000) != 15 {
		t.Fatalf("power on banks %d %d %d", m.Read(0x8000), m.Read(0xc000), m.Read(0xe000))
	}

	m.Write(0x8000, 6)
	m.Write(0x8001, 5)
	m.Write(0x8000, 7)
	m.Write(0x8001, 9)
	if m.Read(0x8000) != 5 || m.Read(0xa000) != 9 {
		t.Errorf("mode 0 banks %d %d", m.Read(0x8000), m.Read(0xa000))
	}

	m.Write(0x8000, 0x46)
	if m.Read(0x8000) != 14 || m.Read(0xc000) != 5 || m.Read(0xe000) != 15 {
		t.Errorf("mode 1 banks %d %d %d", m.Read(0x8000), m.Read(0xc000), m.Read(0xe000))
	}

	m.Write(0x8000, 0)
	m.Write(0x8001, 4)
	m.Write(0x8000, 2)
	m.Write(0x8001, 10)
	if m.ChrRead(0x0000) != 4 || m.ChrRead(0x0400) != 5 || m.ChrRead(0x1000) != 10 {
		t.Errorf("chr banks %d %d %d", m.ChrRead(0x0000), m.ChrRead(0x0400), m.ChrRead(0x1000))
	}
	m.Write(0x8000, 0x80)
	if m.ChrRead(0x1000) != 4 || m.ChrRead(0x0000) != 10 {
		t.Errorf("inverted chr banks %d %d", m.ChrRead(0x1000), m.ChrRead(0x0000))
	}

	if _, ok := m.MirroringMode(); ok {
		t.Error("mirroring set before $A000 write")
	}
	m.Write(0xa000, 1)
	if mode, ok := m.MirroringMode(); !ok || mode != MirrorHorizontal {
		t.Errorf("mirror = %v %v", mode, ok)
	}
	m.Write(0xa000, 0)
	if mode, _ := m.MirroringMode(); mode != MirrorVertical {
		t.Errorf("mirror = %v", mode)
	}

	m.Write(0x7fff, 0x12)
	if m.Read(0x7fff) != 0x12 {
		t.Error("PRG-RAM write lost")
	}
}

func TestMapper4IRQ(t *testing.T) {
	card := NewCartridge(markedBanks(0x8000, 0x2000), nil, 4, MirrorVertical)
	m := NewMapper4(card.view())

	m.Write(0xc000, 3)
	m.Write(0xc001, 0)
	m.Write(0xe001, 0)

	// 第一次时钟装载latch，之后3次递减到0
	for i := 0; i < 3; i++ {
		m.ClockIRQ()
		if m.HasIRQ() {
			t.Fatalf("IRQ after %d clocks", i+1)
		}
	}
	m.ClockIRQ()
	if !m.HasIRQ() {
		t.Fatal("no IRQ after 4 clocks")
	}

	// 计数器为0，下一次重新装载
	m.Write(0xe000, 0)
	if m.HasIRQ() {
		t.Fatal("$E000 did not acknowledge")
	}
	m.ClockIRQ()
	if m.HasIRQ() {
		t.Fatal("IRQ while disabled")
	}

	m.Write(0xe001, 0)
	for i := 0; i < 3; i++ {
		m.ClockIRQ()
	}
	if !m.HasIRQ() {
		t.Error("no IRQ after re-enable")
	}
}

func TestMapper148(t *testing.T) {
	card := NewCartridge(markedBanks(0x20000, 0x8000), markedBanks(0x8000, 0x2000), 148, MirrorHorizontal)
	m, err := NewMapper(card)
	if err != nil {
		t.Fatal(err)
	}
	if m.Read(0x8000) != 0 || m.ChrRead(0x0000) != 0 {
		t.Fatal("power on banks not zero")
	}
	m.Write(0x8000, 2<<3|1)
	if m.Read(0xffff) != 2 || m.ChrRead(0x1fff) != 1 {
		t.Errorf("banks %d %d", m.Read(0xffff), m.ChrRead(0x1fff))
	}
	// 超出的bank号取余
	m.Write(0xc000, 5<<3|6)
	if m.Read(0x8000) != 1 || m.ChrRead(0x0000) != 2 {
		t.Errorf("wrapped banks %d %d", m.Read(0x8000), m.ChrRead(0x0000))
	}
	if m.HasIRQ() {
		t.Error("mapper 148 has IRQ")
	}
}
