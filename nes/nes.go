package nes

import (
	"io/ioutil"

	"github.com/pkg/errors"
)

const (
	iNESMagic   = "NES\x1a"
	headerSize  = 16
	trainerSize = 512
)

// LoadNESFile 读取文件并解析
func LoadNESFile(path string) (*Cartridge, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "nes: read %s", path)
	}
	return LoadNESRom(data)
}

// LoadNESRom 解析iNES格式，构建卡带和mapper
func LoadNESRom(data []byte) (*Cartridge, error) {
	if len(data) < headerSize {
		return nil, errors.Wrapf(ErrTruncated, "header has %d bytes", len(data))
	}
	if string(data[0:4]) != iNESMagic {
		return nil, ErrInvalidMagic
	}

	prgNum := int(data[4]) // PRG块数目 一块大小为 16KB
	chrNum := int(data[5]) // CHR块数目 一块大小为 8KB

	flag := data[6]
	flag2 := data[7]

	mapper := (flag >> 4) | (flag2 & 0xf0)
	// 12-15字节非0一般是"DiskDude!"之类的脏数据，高4位不可信
	if data[12]|data[13]|data[14]|data[15] != 0 {
		mapper &= 0x0f
	}

	mirror := MirrorHorizontal
	if flag&1 == 1 {
		mirror = MirrorVertical
	}

	offset := headerSize
	trainer := flag&0x04 != 0
	if trainer {
		offset += trainerSize
	}

	if prgNum == 0 {
		return nil, errors.Wrap(ErrTruncated, "no PRG banks")
	}
	prgSize := prgNum * prgBankSize
	chrSize := chrNum * chrBankSize
	if len(data) < offset+prgSize+chrSize {
		return nil, errors.Wrapf(ErrTruncated, "need %d bytes, have %d", offset+prgSize+chrSize, len(data))
	}

	prg := make([]byte, prgSize)
	copy(prg, data[offset:offset+prgSize])
	offset += prgSize

	chr := make([]byte, chrSize)
	copy(chr, data[offset:offset+chrSize])

	card := NewCartridge(prg, chr, mapper, mirror)
	card.Battery = flag&0x02 != 0
	card.Trainer = trainer

	m, err := NewMapper(card)
	if err != nil {
		return nil, err
	}
	card.mapper = m
	return card, nil
}

/*
FLAG

76543210
||||||||
|||||||+- Mirroring: 0: 水平镜像
|||||||              1: 垂直镜像
||||||+-- 1: 卡带上有没有带电池的 SRAM
|||||+--- 1: Trainer 标志，头部之后多512字节
||||+---- 1: 4-Screen 模式
++++----- Mapper 号的低 4 bit

FLAG2
76543210
||||||||
|||||||+- VS Unisystem
||||||+-- PlayChoice-10
||||++--- 如果为 2，代表 NES 2.0 格式
++++----- Mapper 号的高 4 bit
*/
