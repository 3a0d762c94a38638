package nes

import (
	"testing"

	"github.com/pkg/errors"
)

// 构造iNES镜像，PRG每个16KB bank填bank号，复位向量指向0x8000
func buildROM(prgBanks, chrBanks int, mapper byte, flag6 byte) []byte {
	header := []byte{'N', 'E', 'S', 0x1a, byte(prgBanks), byte(chrBanks), flag6 | mapper<<4, mapper & 0xf0,
		0, 0, 0, 0, 0, 0, 0, 0}
	rom := append([]byte{}, header...)
	for i := 0; i < prgBanks; i++ {
		bank := make([]byte, prgBankSize)
		for j := range bank {
			bank[j] = byte(i)
		}
		rom = append(rom, bank...)
	}
	for i := 0; i < chrBanks; i++ {
		bank := make([]byte, chrBankSize)
		for j := range bank {
			bank[j] = byte(0x80 | i)
		}
		rom = append(rom, bank...)
	}
	last := 16 + prgBanks*prgBankSize
	rom[last-4], rom[last-3] = 0x00, 0x80
	return rom
}

func TestLoadNESRom(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		card, err := LoadNESRom(buildROM(2, 1, 1, 0x03))
		if err != nil {
			t.Fatal(err)
		}
		if len(card.PRG) != 0x8000 || len(card.CHR) != 0x2000 {
			t.Errorf("PRG=%d CHR=%d", len(card.PRG), len(card.CHR))
		}
		if card.Mapper != 1 || card.Mirror != MirrorVertical || !card.Battery || card.CHRIsRAM() {
			t.Errorf("card = mapper %d mirror %v battery %v chrRAM %v", card.Mapper, card.Mirror, card.Battery, card.CHRIsRAM())
		}
		if _, ok := card.MapperChip().(*Mapper1); !ok {
			t.Errorf("mapper chip = %T", card.MapperChip())
		}
	})

	t.Run("chr ram", func(t *testing.T) {
		card, err := LoadNESRom(buildROM(1, 0, 0, 0))
		if err != nil {
			t.Fatal(err)
		}
		if !card.CHRIsRAM() || len(card.CHR) != chrBankSize {
			t.Fatalf("chrRAM=%v len=%d", card.CHRIsRAM(), len(card.CHR))
		}
		card.MapperChip().ChrWrite(0x0123, 0x5a)
		if got := card.MapperChip().ChrRead(0x0123); got != 0x5a {
			t.Errorf("CHR-RAM read %02X", got)
		}
	})

	t.Run("chr rom is read only", func(t *testing.T) {
		card, err := LoadNESRom(buildROM(1, 1, 0, 0))
		if err != nil {
			t.Fatal(err)
		}
		card.MapperChip().ChrWrite(0x0010, 0x00)
		if got := card.MapperChip().ChrRead(0x0010); got != 0x80 {
			t.Errorf("CHR-ROM changed to %02X", got)
		}
	})

	t.Run("trainer", func(t *testing.T) {
		rom := buildROM(1, 0, 0, 0x04)
		withTrainer := append(append(append([]byte{}, rom[:16]...), make([]byte, trainerSize)...), rom[16:]...)
		card, err := LoadNESRom(withTrainer)
		if err != nil {
			t.Fatal(err)
		}
		if !card.Trainer || card.PRG[0x3ffc] != 0x00 || card.PRG[0x3ffd] != 0x80 {
			t.Errorf("trainer not skipped")
		}
	})

	t.Run("diskdude", func(t *testing.T) {
		rom := buildROM(1, 1, 0, 0)
		rom[7] = 'D'
		copy(rom[8:16], "iskDude!")
		card, err := LoadNESRom(rom)
		if err != nil {
			t.Fatal(err)
		}
		if card.Mapper != 0 {
			t.Errorf("mapper = %d, want 0", card.Mapper)
		}
	})

	t.Run("mapper 148", func(t *testing.T) {
		card, err := LoadNESRom(buildROM(2, 1, 148, 0))
		if err != nil {
			t.Fatal(err)
		}
		if card.Mapper != 148 {
			t.Errorf("mapper = %d", card.Mapper)
		}
	})
}

func TestLoadNESRomErrors(t *testing.T) {
	truncated := buildROM(2, 1, 0, 0)
	truncated = truncated[:len(truncated)-1]

	badMagic := buildROM(1, 1, 0, 0)
	badMagic[3] = 0

	noPRG := buildROM(1, 1, 0, 0)
	noPRG[4] = 0

	tests := []struct {
		name string
		rom  []byte
		want error
	}{
		{"short header", []byte("NES"), ErrTruncated},
		{"bad magic", badMagic, ErrInvalidMagic},
		{"truncated", truncated, ErrTruncated},
		{"no prg", noPRG, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadNESRom(tt.rom)
			if errors.Cause(err) != tt.want {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("unsupported mapper", func(t *testing.T) {
		_, err := LoadNESRom(buildROM(1, 1, 2, 0))
		mapperErr, ok := err.(*UnsupportedMapperError)
		if !ok || mapperErr.Mapper != 2 {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestLoadNESFile(t *testing.T) {
	_, err := LoadNESFile("testdata/does-not-exist.nes")
	if err == nil {
		t.Fatal("expected error")
	}
}
