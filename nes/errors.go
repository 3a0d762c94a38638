package nes

import (
	"fmt"

	"github.com/pkg/errors"
)

// 载入ROM阶段的错误，直接返回给调用方
var (
	ErrInvalidMagic = errors.New("nes: not an iNES image")
	ErrTruncated    = errors.New("nes: truncated iNES image")
)

// UnsupportedMapperError 卡带使用了未实现的mapper
type UnsupportedMapperError struct {
	Mapper byte
}

func (e *UnsupportedMapperError) Error() string {
	return fmt.Sprintf("nes: unsupported mapper %d", e.Mapper)
}

// OpcodeError 执行到没有定义的指令，CPU停机
type OpcodeError struct {
	Opcode byte
	PC     uint16
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("nes: unknown opcode 0x%02X at 0x%04X", e.Opcode, e.PC)
}
