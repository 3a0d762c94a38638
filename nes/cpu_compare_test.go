package nes

import (
	"os"
	"path/filepath"
	"testing"

	fnes "github.com/fogleman/nes/nes"
)

// 只用官方指令的循环，覆盖各种寻址方式和跨页
var compareProgram = []byte{
	0xa9, 0x03,       // LDA #$03
	0x85, 0x21,       // STA $21
	0xa2, 0x00,       // LDX #$00
	0xa0, 0x10,       // LDY #$10
	0x8a,             // loop: TXA
	0x18,             // CLC
	0x69, 0x37,       // ADC #$37
	0x9d, 0x00, 0x02, // STA $0200,X
	0x2a,             // ROL A
	0x48,             // PHA
	0x68,             // PLA
	0x45, 0x10,       // EOR $10
	0x85, 0x10,       // STA $10
	0x38,             // SEC
	0xe9, 0x05,       // SBC #$05
	0x91, 0x20,       // STA ($20),Y
	0xc8,             // INY
	0xbd, 0xff, 0x01, // LDA $01FF,X
	0x24, 0x10,       // BIT $10
	0x7e, 0x00, 0x02, // ROR $0200,X
	0xe8,             // INX
	0xd0, 0xe1,       // BNE loop
	0x20, 0x2e, 0x80, // JSR sub
	0x4c, 0x04, 0x80, // JMP $8004
	0xea,             // 填充
	0x08,             // sub: PHP
	0x28,             // PLP
	0x60,             // RTS
}

func TestCPUAgainstReference(t *testing.T) {
	rom := programROM(compareProgram, 0)
	path := filepath.Join(t.TempDir(), "compare.nes")
	if err := os.WriteFile(path, rom, 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := fnes.NewConsole(path)
	if err != nil {
		t.Fatal(err)
	}
	console, err := NewConsole(rom, WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20000; i++ {
		want := ref.CPU
		got := &console.CPU
		pc := got.PC
		if got.PC != want.PC || got.A != want.A || got.X != want.X || got.Y != want.Y ||
			got.SP != want.SP || got.Flags() != want.Flags() {
			t.Fatalf("step %d: PC=%04X A=%02X X=%02X Y=%02X P=%02X SP=%02X, reference PC=%04X A=%02X X=%02X Y=%02X P=%02X SP=%02X",
				i, got.PC, got.A, got.X, got.Y, got.Flags(), got.SP,
				want.PC, want.A, want.X, want.Y, want.Flags(), want.SP)
		}
		refCycles := ref.Step()
		cycles, err := console.Step()
		if err != nil {
			t.Fatal(err)
		}
		if cycles != refCycles {
			t.Fatalf("step %d at %04X: %d cycles, reference %d", i, pc, cycles, refCycles)
		}
	}
	for addr := uint16(0x0200); addr < 0x0400; addr++ {
		if console.Read(addr) != ref.CPU.Read(addr) {
			t.Fatalf("RAM %04X = %02X, reference %02X", addr, console.Read(addr), ref.CPU.Read(addr))
		}
	}
}
