package nes

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
)

type nestestLine struct {
	pc             uint16
	a, x, y, p, sp byte
	cycles         uint64
}

func parseNestestLine(line string) (nestestLine, error) {
	var l nestestLine
	pc, err := strconv.ParseUint(line[0:4], 16, 16)
	if err != nil {
		return l, err
	}
	l.pc = uint16(pc)
	i := strings.Index(line, "A:")
	if i < 0 {
		return l, fmt.Errorf("no registers in %q", line)
	}
	if _, err := fmt.Sscanf(line[i:], "A:%02X X:%02X Y:%02X P:%02X SP:%02X", &l.a, &l.x, &l.y, &l.p, &l.sp); err != nil {
		return l, err
	}
	j := strings.Index(line, "CYC:")
	if j < 0 {
		return l, fmt.Errorf("no cycle count in %q", line)
	}
	cycles, err := strconv.ParseUint(strings.TrimSpace(line[j+4:]), 10, 64)
	if err != nil {
		return l, err
	}
	l.cycles = cycles
	return l, nil
}

// 需要 testdata/nestest.nes 和 testdata/nestest.log
func TestNestest(t *testing.T) {
	rom, err := os.ReadFile("testdata/nestest.nes")
	if err != nil {
		t.Skip("testdata/nestest.nes not present")
	}
	logFile, err := os.Open("testdata/nestest.log")
	if err != nil {
		t.Skip("testdata/nestest.log not present")
	}
	defer logFile.Close()

	console, err := NewConsole(rom, WithLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	// 自动模式从 $C000 开始
	console.CPU.PC = 0xc000

	var last TraceEvent
	console.CPU.SetTracer(TracerFunc(func(e TraceEvent) { last = e }))

	scanner := bufio.NewScanner(logFile)
	n := 0
	for scanner.Scan() {
		n++
		want, err := parseNestestLine(scanner.Text())
		if err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		cpu := &console.CPU
		if cpu.PC != want.pc || cpu.A != want.a || cpu.X != want.x || cpu.Y != want.y ||
			cpu.Flags() != want.p || cpu.SP != want.sp || cpu.Cycles != want.cycles {
			t.Fatalf("line %d: got PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\nwant %s\nprev %s",
				n, cpu.PC, cpu.A, cpu.X, cpu.Y, cpu.Flags(), cpu.SP, cpu.Cycles, scanner.Text(), last)
		}
		if _, err := cpu.Step(console); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	// 结果码
	if console.RAM[2] != 0 || console.RAM[3] != 0 {
		t.Errorf("nestest result %02X %02X", console.RAM[2], console.RAM[3])
	}
}
