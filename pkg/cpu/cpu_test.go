package cpu

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"lc3tools/pkg/isa"
	"lc3tools/pkg/obj"
)

// loadProgram writes words into memory starting at origin and points the PC there.
func loadProgram(c *CPU, origin uint16, words ...uint16) {
	for i, w := range words {
		c.Memory[origin+uint16(i)] = w
	}
	c.PC = origin
}

// haltAt places AND R0,R0,#0 / STI R0,#0 / .FILL xFFFE at addr, which clears
// the machine control register.
func haltAt(c *CPU, addr uint16) {
	c.Memory[addr] = 0x5020
	c.Memory[addr+1] = 0xB000
	c.Memory[addr+2] = AddrMCR
}

func newTestCPU() (*CPU, *bytes.Buffer) {
	c := NewCPU()
	c.RandomDevice = false
	out := new(bytes.Buffer)
	c.Output = out
	return c, out
}

func TestResetState(t *testing.T) {
	c := NewCPU()
	if c.PSR != isa.CCZero {
		t.Errorf("PSR after reset: expected 0x%04X, got 0x%04X", isa.CCZero, c.PSR)
	}
	if c.SysBreakpoint != -1 {
		t.Errorf("SysBreakpoint after reset: expected -1, got %d", c.SysBreakpoint)
	}
}

func TestALU(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000, 0x1261, 0x1261, 0x1261) // ADD R1,R1,#1 x3
	haltAt(c, 0x3003)
	if s := c.Run(); s != StopHalted {
		t.Fatalf("Run: expected halted, got %v", s)
	}
	if c.Regs[1] != 3 {
		t.Errorf("ADD: expected R1=3, got %d", c.Regs[1])
	}

	c, _ = newTestCPU()
	c.Regs[1] = 0x00FF
	loadProgram(c, 0x3000, 0x967F) // NOT R3,R1
	c.Step()
	if c.Regs[3] != 0xFF00 {
		t.Errorf("NOT: expected 0xFF00, got 0x%04X", c.Regs[3])
	}
	if c.PSR&isa.CCMask != isa.CCNegative {
		t.Errorf("NOT: expected N, got %s", isa.CCName(c.PSR))
	}

	c, _ = newTestCPU()
	c.Regs[1] = 0x0F0F
	c.Regs[2] = 0x00F0
	loadProgram(c, 0x3000, 0x5642) // AND R3,R1,R2
	c.Step()
	if c.Regs[3] != 0 {
		t.Errorf("AND: expected 0, got 0x%04X", c.Regs[3])
	}
	if c.PSR&isa.CCMask != isa.CCZero {
		t.Errorf("AND: expected Z, got %s", isa.CCName(c.PSR))
	}
}

func TestBranchLoop(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000,
		0x1261, // ADD R1,R1,#1
		0x147B, // ADD R2,R1,#-5
		0x09FD, // BRn #-3
	)
	haltAt(c, 0x3003)
	c.Run()
	if c.Regs[1] != 5 {
		t.Errorf("loop: expected R1=5, got %d", c.Regs[1])
	}
}

func TestLoadStore(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000,
		0x2402, // LD R2,#2 -> x3003
		0xEA02, // LEA R5,#2 -> x3004
		0x6941, // LDR R4,R5,#1 -> x3005
		0x1234, // data
		0x0000, // data
		0xBEEF, // data
	)
	c.Step()
	if c.Regs[2] != 0x1234 {
		t.Errorf("LD: expected 0x1234, got 0x%04X", c.Regs[2])
	}
	c.Step()
	if c.Regs[5] != 0x3004 {
		t.Errorf("LEA: expected 0x3004, got 0x%04X", c.Regs[5])
	}
	if c.PSR&isa.CCMask != isa.CCPositive {
		t.Errorf("LEA: expected P, got %s", isa.CCName(c.PSR))
	}
	c.Step()
	if c.Regs[4] != 0xBEEF {
		t.Errorf("LDR: expected 0xBEEF, got 0x%04X", c.Regs[4])
	}

	c.Memory[0x3003] = 0x7942 // STR R4,R5,#2
	c.PC = 0x3003
	c.Step()
	if c.Memory[0x3006] != 0xBEEF {
		t.Errorf("STR: expected 0xBEEF at x3006, got 0x%04X", c.Memory[0x3006])
	}
}

func TestIndirect(t *testing.T) {
	c, _ := newTestCPU()
	c.Regs[3] = 0x0042
	loadProgram(c, 0x3000,
		0xA202, // LDI R1,#2 -> [[x3003]]
		0xB601, // STI R3,#1 -> [[x3003]]
		0x0000,
		0x4000, // pointer
	)
	c.Memory[0x4000] = 0x0007
	c.Step()
	if c.Regs[1] != 0x0007 {
		t.Errorf("LDI: expected 0x0007, got 0x%04X", c.Regs[1])
	}
	c.Step()
	if c.Memory[0x4000] != 0x0042 {
		t.Errorf("STI: expected 0x0042 at x4000, got 0x%04X", c.Memory[0x4000])
	}
}

func TestSubroutine(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000, 0x4804) // JSR #4 -> x3005
	haltAt(c, 0x3001)
	c.Memory[0x3005] = 0x1261 // ADD R1,R1,#1
	c.Memory[0x3006] = 0xC1C0 // RET
	c.Run()
	if c.Regs[1] != 1 {
		t.Errorf("JSR: expected R1=1, got %d", c.Regs[1])
	}
	if c.Regs[7] != 0x3001 {
		t.Errorf("JSR: expected R7=0x3001, got 0x%04X", c.Regs[7])
	}

	c, _ = newTestCPU()
	c.Regs[3] = 0x4000
	loadProgram(c, 0x3000, 0x40C0) // JSRR R3
	c.Step()
	if c.PC != 0x4000 || c.Regs[7] != 0x3001 {
		t.Errorf("JSRR: expected PC=0x4000 R7=0x3001, got PC=0x%04X R7=0x%04X", c.PC, c.Regs[7])
	}
	if c.LastFlags&isa.FlagSubroutine == 0 {
		t.Errorf("JSRR: expected subroutine flag")
	}
}

func TestTrapAndRTI(t *testing.T) {
	c, _ := newTestCPU()
	c.Memory[0x0025] = 0x0400
	loadProgram(c, 0x3000, 0xF025)
	c.Step()
	if c.PC != 0x0400 || c.Regs[7] != 0x3001 {
		t.Errorf("TRAP: expected PC=0x0400 R7=0x3001, got PC=0x%04X R7=0x%04X", c.PC, c.Regs[7])
	}

	c, _ = newTestCPU()
	c.Regs[6] = 0x2FFE
	c.Memory[0x2FFE] = 0x3010
	c.Memory[0x2FFF] = 0x8002
	loadProgram(c, 0x3000, 0x8000)
	c.Step()
	if c.PC != 0x3010 {
		t.Errorf("RTI: expected PC=0x3010, got 0x%04X", c.PC)
	}
	if c.PSR != 0x8002 {
		t.Errorf("RTI: expected PSR=0x8002, got 0x%04X", c.PSR)
	}
	if c.Regs[6] != 0x3000 {
		t.Errorf("RTI: expected R6=0x3000, got 0x%04X", c.Regs[6])
	}
}

func TestIllegalInstruction(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000, 0xD000)
	if s := c.Run(); s != StopIllegal {
		t.Fatalf("expected illegal stop, got %v", s)
	}
	if c.PC != 0x3000 {
		t.Errorf("PC should stay on the illegal word, got 0x%04X", c.PC)
	}
}

func TestBreakpoints(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000, 0x4804)
	haltAt(c, 0x3001)
	c.Memory[0x3005] = 0x1261
	c.Memory[0x3006] = 0xC1C0

	c.Breakpoints[0x3006] = true
	if s := c.Run(); s != StopBreakpoint {
		t.Fatalf("expected breakpoint, got %v", s)
	}
	if c.PC != 0x3006 {
		t.Errorf("breakpoint: expected PC=0x3006, got 0x%04X", c.PC)
	}
	if got := c.BreakpointList(); len(got) != 1 || got[0] != 0x3006 {
		t.Errorf("BreakpointList: got %v", got)
	}
	c.ClearBreakpoints()
	if got := c.BreakpointList(); len(got) != 0 {
		t.Errorf("ClearBreakpoints: got %v", got)
	}

	c.PC = 0x3000
	c.SysBreakpoint = 0x3001
	if s := c.Run(); s != StopSysBreakpoint {
		t.Fatalf("expected system breakpoint, got %v", s)
	}
}

func TestFinish(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3005,
		0x4803, // JSR #3 -> x3009
		0x2E01, // LD R7,#1
		0xC1C0, // RET
		0x3000, // caller
		0xC1C0, // x3009: RET
	)
	c.FinishDepth = 1
	if s := c.Run(); s != StopFinished {
		t.Fatalf("expected finish, got %v", s)
	}
	if c.PC != 0x3000 {
		t.Errorf("finish: expected PC=0x3000, got 0x%04X", c.PC)
	}
	if c.FinishDepth != 0 {
		t.Errorf("finish: expected depth 0, got %d", c.FinishDepth)
	}
}

func TestKeyboard(t *testing.T) {
	c, _ := newTestCPU()
	c.Keyboard = NewBytesKeyboard([]byte("A"))
	if v := c.Read(AddrKBSR); v != 0x8000 {
		t.Errorf("KBSR: expected 0x8000, got 0x%04X", v)
	}
	if v := c.Read(AddrKBDR); v != 'A' {
		t.Errorf("KBDR: expected 'A', got 0x%04X", v)
	}
	if v := c.Peek(AddrKBSR); v != 0 {
		t.Errorf("KBSR after read: expected 0, got 0x%04X", v)
	}

	c.Read(AddrKBSR)
	c.Read(AddrKBDR)
	if !errors.Is(c.Err(), ErrInputExhausted) {
		t.Errorf("expected ErrInputExhausted, got %v", c.Err())
	}
	if !c.Halted() {
		t.Errorf("expected halt after input ran out")
	}
}

func TestKeyboardProgram(t *testing.T) {
	c, _ := newTestCPU()
	c.Keyboard = NewBytesKeyboard([]byte("x"))
	loadProgram(c, 0x3000,
		0xA203, // LDI R1,#3 -> KBSR
		0x07FE, // BRzp #-2
		0xA002, // LDI R0,#2 -> KBDR
		0x0E02, // BRnzp #2
		AddrKBSR,
		AddrKBDR,
	)
	haltAt(c, 0x3006)
	c.Run()
	// R0 was cleared by the halt sequence; the character stays in KBDR.
	if c.Memory[AddrKBDR] != 'x' {
		t.Errorf("expected 'x' in KBDR, got 0x%04X", c.Memory[AddrKBDR])
	}
}

func TestDisplay(t *testing.T) {
	c, out := newTestCPU()
	c.Write(AddrDDR, 'a')
	if out.Len() != 0 {
		t.Errorf("DDR write before DSR poll should be dropped, got %q", out.String())
	}
	if v := c.Read(AddrDSR); v != 0x8000 {
		t.Errorf("DSR: expected 0x8000, got 0x%04X", v)
	}
	c.Write(AddrDDR, 'h')
	if out.String() != "h" {
		t.Errorf("DDR: expected \"h\", got %q", out.String())
	}
}

func TestOnChange(t *testing.T) {
	c, _ := newTestCPU()
	var changed []uint16
	c.OnChange = func(addr uint16) { changed = append(changed, addr) }
	c.Write(0x4000, 1)
	c.Write(0x4000, 1)
	c.Write(0x4001, 0)
	if len(changed) != 1 || changed[0] != 0x4000 {
		t.Errorf("OnChange: got %v", changed)
	}
}

func TestLoad(t *testing.T) {
	c, _ := newTestCPU()
	end := c.Load(obj.Image{Origin: 0x3000, Words: []uint16{1, 2, 3}})
	if end != 0x3003 {
		t.Errorf("Load: expected end 0x3003, got 0x%04X", end)
	}
	if c.Memory[0x3002] != 3 {
		t.Errorf("Load: expected 3 at x3002, got %d", c.Memory[0x3002])
	}
}

func TestRunForAndInterrupt(t *testing.T) {
	c, _ := newTestCPU()
	loadProgram(c, 0x3000, 0x0FFF) // BRnzp #-1
	if s := c.RunFor(100); s != StopBudget {
		t.Fatalf("expected budget stop, got %v", s)
	}
	c.Interrupt()
	if s := c.RunFor(100); s != StopHalted {
		t.Fatalf("expected halt after interrupt, got %v", s)
	}
	if !c.TakeStopNotice() {
		t.Errorf("expected stop notice")
	}
	if c.TakeStopNotice() {
		t.Errorf("stop notice should clear once taken")
	}
}

func TestRunMaxRate(t *testing.T) {
	c, _ := newTestCPU()
	for addr := 0x3000; addr < 0x4000; addr++ {
		c.Memory[addr] = 0x1020 // ADD R0,R0,#0
	}
	haltAt(c, 0x4000)
	c.PC = 0x3000
	c.MaxRate = 40960

	start := time.Now()
	if s := c.Run(); s != StopHalted {
		t.Fatalf("expected halt, got %v", s)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("4096 instructions at 40960/s took only %v", elapsed)
	}
}

func TestRandomDeviceEventuallyReady(t *testing.T) {
	c := NewCPU()
	c.Seed(1)
	ready := false
	for i := 0; i < 1000 && !ready; i++ {
		ready = c.Read(AddrDSR) == 0x8000
	}
	if !ready {
		t.Errorf("DSR never became ready")
	}
}
