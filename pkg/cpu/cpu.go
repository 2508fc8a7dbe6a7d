package cpu

import (
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"sync/atomic"
	"time"

	"lc3tools/pkg/isa"
	"lc3tools/pkg/obj"
)

// Device register addresses.
const (
	AddrKBSR uint16 = 0xFE00
	AddrKBDR uint16 = 0xFE02
	AddrDSR  uint16 = 0xFE04
	AddrDDR  uint16 = 0xFE06
	AddrMCR  uint16 = 0xFFFE
)

const (
	// MaxFinishDepth stops "finish" in a subroutine that recurses forever.
	MaxFinishDepth = 10000000

	// idlePolls is how many empty KBSR polls in a row are tolerated before
	// the machine starts sleeping between polls.
	idlePolls = 250

	readyBit uint16 = 0x8000
)

// ErrInputExhausted is reported when a program reads KBDR after the
// keyboard input has ended.
var ErrInputExhausted = errors.New("LC-3 read past end of input stream")

// Stop says why execution ended.
type Stop int

const (
	StopNone Stop = iota
	StopHalted
	StopBreakpoint
	StopSysBreakpoint
	StopFinished
	StopRecursion
	StopIllegal
	StopInputExhausted
	StopBudget
)

func (s Stop) String() string {
	switch s {
	case StopNone:
		return "running"
	case StopHalted:
		return "halted"
	case StopBreakpoint:
		return "breakpoint"
	case StopSysBreakpoint:
		return "next complete"
	case StopFinished:
		return "finish complete"
	case StopRecursion:
		return "recursion limit"
	case StopIllegal:
		return "illegal instruction"
	case StopInputExhausted:
		return "input exhausted"
	case StopBudget:
		return "budget exhausted"
	}
	return "unknown"
}

// CPU is an LC-3 machine: registers, memory, device registers and the
// debugger state the simulator needs while executing.
type CPU struct {
	Regs [8]uint16
	PC   uint16
	IR   uint16
	PSR  uint16

	Memory      [65536]uint16
	Breakpoints [65536]bool

	// SysBreakpoint is the address "next" waits for, or -1.
	SysBreakpoint int
	// FinishDepth counts open subroutine calls while "finish" runs.
	FinishDepth int
	// LastFlags holds the flags of the most recently executed instruction.
	LastFlags isa.Flags

	Keyboard Keyboard
	// Output receives characters written to DDR. If nil, os.Stdout is used.
	Output io.Writer
	// RandomDevice delays KBSR/DSR readiness randomly, as real devices do.
	RandomDevice bool
	// IdleSleep is slept on KBSR polls once input has been absent for a while.
	IdleSleep time.Duration
	// MaxRate caps Run at this many instructions a second. Zero means
	// no cap.
	MaxRate int
	// OnChange, if set, is called for every memory word whose value changes.
	OnChange func(addr uint16)

	kbsrReady bool
	dsrReady  bool
	kbsrWaits int

	halt   atomic.Bool
	notice atomic.Bool
	err    error
	rng    *rand.Rand
}

// NewCPU creates a reset machine with randomised device timing enabled.
func NewCPU() *CPU {
	seed := uint64(time.Now().UnixNano())
	c := &CPU{
		RandomDevice: true,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
	c.Reset()
	return c
}

// Reset clears registers, memory, breakpoints and device latches.
func (c *CPU) Reset() {
	c.Regs = [8]uint16{}
	c.PC = 0
	c.IR = 0
	c.PSR = isa.CCZero
	c.Memory = [65536]uint16{}
	c.Breakpoints = [65536]bool{}
	c.SysBreakpoint = -1
	c.FinishDepth = 0
	c.LastFlags = isa.FlagNone
	c.ResetDevices()
}

// ResetDevices forgets device readiness and any pending halt or error.
func (c *CPU) ResetDevices() {
	c.kbsrReady = false
	c.dsrReady = false
	c.kbsrWaits = 0
	c.err = nil
	c.halt.Store(false)
	c.notice.Store(false)
}

// Seed makes device timing reproducible.
func (c *CPU) Seed(seed uint64) {
	c.rng = rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

func (c *CPU) outputSink() io.Writer {
	if c.Output != nil {
		return c.Output
	}
	return os.Stdout
}

func (c *CPU) deviceReady() bool {
	return !c.RandomDevice || c.rng.IntN(16) == 0
}

// Read performs a memory read as the running program sees it, including
// device side effects.
func (c *CPU) Read(addr uint16) uint16 {
	switch addr {
	case AddrKBSR:
		if !c.kbsrReady {
			if c.Keyboard != nil && c.Keyboard.Ready() {
				c.kbsrWaits = 0
				c.kbsrReady = c.deviceReady()
			} else {
				if c.kbsrWaits < idlePolls {
					c.kbsrWaits++
				} else if c.IdleSleep > 0 {
					time.Sleep(c.IdleSleep)
				}
			}
		}
		if c.kbsrReady {
			return readyBit
		}
		return 0
	case AddrKBDR:
		if c.kbsrReady {
			b, err := c.Keyboard.ReadByte()
			if err != nil {
				c.err = ErrInputExhausted
				c.halt.Store(true)
			} else {
				c.Memory[AddrKBDR] = uint16(b)
			}
		}
		c.kbsrReady = false
		return c.Memory[AddrKBDR]
	case AddrDSR:
		if !c.dsrReady {
			c.dsrReady = c.deviceReady()
		}
		if c.dsrReady {
			return readyBit
		}
		return 0
	case AddrDDR:
		return 0
	case AddrMCR:
		return readyBit
	}
	return c.Memory[addr]
}

// Peek returns what Read would without touching device state. The
// debugger uses it for listings and dumps.
func (c *CPU) Peek(addr uint16) uint16 {
	switch addr {
	case AddrKBSR:
		if c.kbsrReady {
			return readyBit
		}
		return 0
	case AddrDSR:
		if c.dsrReady || !c.RandomDevice {
			return readyBit
		}
		return 0
	case AddrDDR:
		return 0
	case AddrMCR:
		return readyBit
	}
	return c.Memory[addr]
}

// Write performs a memory write with device side effects.
func (c *CPU) Write(addr uint16, val uint16) {
	switch addr {
	case AddrKBSR, AddrKBDR, AddrDSR:
		return
	case AddrDDR:
		if !c.dsrReady {
			return
		}
		_, _ = c.outputSink().Write([]byte{byte(val)})
		c.dsrReady = false
		return
	case AddrMCR:
		if val&readyBit == 0 {
			c.halt.Store(true)
		}
		return
	}
	if c.Memory[addr] != val {
		c.Memory[addr] = val
		if c.OnChange != nil {
			c.OnChange(addr)
		}
	}
}

// Load copies img into memory through Write and returns the address after
// the last word.
func (c *CPU) Load(img obj.Image) uint16 {
	addr := img.Origin
	for _, w := range img.Words {
		c.Write(addr, w)
		addr++
	}
	return addr
}

// Interrupt asks a running machine to stop and to report the stop, as
// Ctrl-C does. It is safe to call from another goroutine.
func (c *CPU) Interrupt() {
	c.notice.Store(true)
	c.halt.Store(true)
}

// RequestStop asks a running machine to stop quietly. Safe for concurrent use.
func (c *CPU) RequestStop() {
	c.halt.Store(true)
}

// TakeStopNotice reports (and clears) whether Interrupt was called.
func (c *CPU) TakeStopNotice() bool {
	return c.notice.Swap(false)
}

// Err returns the device error that stopped the machine, if any.
func (c *CPU) Err() error {
	return c.err
}

func (c *CPU) setCC(v uint16) {
	c.PSR = (c.PSR &^ isa.CCMask) | isa.CCFor(v)
}

// Step executes one instruction and reports whether execution should stop
// afterwards. An illegal instruction leaves the PC pointing at it.
func (c *CPU) Step() Stop {
	c.IR = c.Read(c.PC)
	c.PC++

	d := isa.Decode(c.IR)
	if d.Op == isa.OpIllegal {
		c.PC--
		return StopIllegal
	}
	c.LastFlags = d.Flags
	c.execute(d.Op, c.IR)

	if c.err != nil {
		return StopInputExhausted
	}
	if c.Breakpoints[c.PC] {
		return StopBreakpoint
	}
	if c.SysBreakpoint >= 0 && int(c.PC) == c.SysBreakpoint {
		return StopSysBreakpoint
	}
	if c.FinishDepth > 0 {
		if c.LastFlags&isa.FlagSubroutine != 0 {
			c.FinishDepth++
			if c.FinishDepth == MaxFinishDepth {
				c.FinishDepth = 0
				return StopRecursion
			}
		} else if c.LastFlags&isa.FlagReturn != 0 {
			c.FinishDepth--
			if c.FinishDepth == 0 {
				return StopFinished
			}
		}
	}
	return StopNone
}

func (c *CPU) execute(op isa.Op, ir uint16) {
	dr := isa.DR(ir)
	sr1 := isa.SR1(ir)

	switch op {
	case isa.OpADD, isa.OpAND:
		operand := c.Regs[isa.SR2(ir)]
		if isa.UsesImm(ir) {
			operand = uint16(isa.Imm5(ir))
		}
		if op == isa.OpADD {
			c.Regs[dr] = c.Regs[sr1] + operand
		} else {
			c.Regs[dr] = c.Regs[sr1] & operand
		}
		c.setCC(c.Regs[dr])

	case isa.OpBR:
		if isa.CC(ir)&c.PSR != 0 {
			c.PC = isa.Offset(c.PC, isa.Imm9(ir))
		}

	case isa.OpJMP:
		c.PC = c.Regs[sr1]

	case isa.OpJMPT:
		c.PC = c.Regs[sr1]
		c.PSR |= isa.PSRPrivilege

	case isa.OpJSR:
		c.Regs[7] = c.PC
		c.PC = isa.Offset(c.PC, isa.Imm11(ir))

	case isa.OpJSRR:
		target := c.Regs[sr1]
		c.Regs[7] = c.PC
		c.PC = target

	case isa.OpLD:
		c.Regs[dr] = c.Read(isa.Offset(c.PC, isa.Imm9(ir)))
		c.setCC(c.Regs[dr])

	case isa.OpLDI:
		c.Regs[dr] = c.Read(c.Read(isa.Offset(c.PC, isa.Imm9(ir))))
		c.setCC(c.Regs[dr])

	case isa.OpLDR:
		c.Regs[dr] = c.Read(isa.Offset(c.Regs[sr1], isa.Imm6(ir)))
		c.setCC(c.Regs[dr])

	case isa.OpLEA:
		c.Regs[dr] = isa.Offset(c.PC, isa.Imm9(ir))
		c.setCC(c.Regs[dr])

	case isa.OpNOT:
		c.Regs[dr] = ^c.Regs[sr1]
		c.setCC(c.Regs[dr])

	case isa.OpRTI:
		sp := c.Regs[6]
		c.PC = c.Read(sp)
		c.PSR = c.Read(sp + 1)
		c.Regs[6] = sp + 2

	case isa.OpST:
		c.Write(isa.Offset(c.PC, isa.Imm9(ir)), c.Regs[dr])

	case isa.OpSTI:
		c.Write(c.Read(isa.Offset(c.PC, isa.Imm9(ir))), c.Regs[dr])

	case isa.OpSTR:
		c.Write(isa.Offset(c.Regs[sr1], isa.Imm6(ir)), c.Regs[dr])

	case isa.OpTRAP:
		c.Regs[7] = c.PC
		c.PC = c.Read(isa.Vec8(ir))
	}
}

// Run executes until something stops the machine. A halt requested before
// Run is called is forgotten.
func (c *CPU) Run() Stop {
	c.halt.Store(false)
	start := time.Now()
	for n := 1; ; n++ {
		if c.halt.Load() {
			return c.haltReason()
		}
		if s := c.Step(); s != StopNone {
			return s
		}
		if c.MaxRate > 0 && n%paceEvery == 0 {
			c.pace(start, n)
		}
	}
}

// Run checks its pace every paceEvery instructions.
const paceEvery = 1024

func (c *CPU) pace(start time.Time, n int) {
	want := time.Duration(n) * time.Second / time.Duration(c.MaxRate)
	if ahead := want - time.Since(start); ahead > 0 {
		time.Sleep(ahead)
	}
}

// RunFor executes at most budget instructions. It returns StopBudget when
// the budget runs out first. Unlike Run it keeps a pending halt request.
func (c *CPU) RunFor(budget int) Stop {
	for i := 0; i < budget; i++ {
		if c.halt.Swap(false) {
			return c.haltReason()
		}
		if s := c.Step(); s != StopNone {
			return s
		}
	}
	return StopBudget
}

func (c *CPU) haltReason() Stop {
	if c.err != nil {
		return StopInputExhausted
	}
	return StopHalted
}

// Halted reports whether a halt is pending (MCR cleared or Interrupt called).
func (c *CPU) Halted() bool {
	return c.halt.Load()
}

// ClearBreakpoints removes every user breakpoint.
func (c *CPU) ClearBreakpoints() {
	c.Breakpoints = [65536]bool{}
}

// BreakpointList returns the addresses with a user breakpoint, ascending.
func (c *CPU) BreakpointList() []uint16 {
	var out []uint16
	for addr, set := range c.Breakpoints {
		if set {
			out = append(out, uint16(addr))
		}
	}
	return out
}
