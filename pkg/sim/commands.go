package sim

import (
	"fmt"
	"strings"

	"lc3tools/pkg/isa"
)

type cmdFlag int

const (
	flagNone cmdFlag = 0
	// flagRepeat commands run again when an empty line is entered.
	flagRepeat cmdFlag = 1 << iota
	// flagList commands continue where they left off on an empty line.
	flagList
)

type command struct {
	name   string
	minLen int
	flags  cmdFlag
	run    func(s *Simulator, args string) error
}

// Commands are matched in table order; the first name the typed word
// abbreviates (with at least minLen letters) wins.
var commands []command

func init() {
	commands = []command{
		{"break", 1, flagNone, (*Simulator).cmdBreak},
		{"continue", 1, flagRepeat, (*Simulator).cmdContinue},
		{"dump", 1, flagList, (*Simulator).cmdDump},
		{"execute", 1, flagNone, (*Simulator).cmdExecute},
		{"file", 1, flagNone, (*Simulator).cmdFile},
		{"finish", 3, flagRepeat, (*Simulator).cmdFinish},
		{"help", 1, flagNone, (*Simulator).cmdHelp},
		{"list", 1, flagList, (*Simulator).cmdList},
		{"memory", 1, flagNone, (*Simulator).cmdMemory},
		{"next", 1, flagRepeat, (*Simulator).cmdNext},
		{"option", 1, flagNone, (*Simulator).cmdOption},
		{"printregs", 1, flagNone, (*Simulator).cmdPrintRegs},
		{"quit", 4, flagNone, (*Simulator).cmdQuit},
		{"register", 1, flagNone, (*Simulator).cmdRegister},
		{"reset", 5, flagNone, (*Simulator).cmdReset},
		{"snapshot", 2, flagNone, (*Simulator).cmdSnapshot},
		{"step", 1, flagRepeat, (*Simulator).cmdStep},
		{"translate", 1, flagNone, (*Simulator).cmdTranslate},
	}
}

// abbreviates reports whether word is a case-insensitive prefix of name.
func abbreviates(word, name string) bool {
	return len(word) <= len(name) && strings.EqualFold(word, name[:len(word)])
}

func findCommand(word string) *command {
	for i := range commands {
		c := &commands[i]
		if len(word) >= c.minLen && abbreviates(word, c.name) {
			return c
		}
	}
	return nil
}

const helpText = `file <file>           -- file load (also sets PC to start of file)

break ...             -- breakpoint management

continue              -- continue execution
finish                -- execute to end of current subroutine
next                  -- execute next instruction (full subroutine/trap)
step                  -- execute one step (into subroutine/trap)

list ...              -- list instructions at the PC, an address, a label
dump ...              -- dump memory at the PC, an address, a label
translate <addr>      -- show the value of a label and print the contents
printregs             -- print registers and current instruction

memory <addr> <val>   -- set the value held in a memory location
register <reg> <val>  -- set a register to a value

execute <file name>   -- execute a script file

option <opt> on|off   -- change simulator options

snapshot save <file>  -- save the machine state to a file
snapshot load <file>  -- restore a saved machine state

reset                 -- reset LC-3 and reload last file

quit                  -- quit the simulator

help                  -- print this help

All commands except quit can be abbreviated.
`

func (s *Simulator) cmdHelp(string) error {
	s.printf("%s", helpText)
	return nil
}

const breakHelp = `breakpoint options include:
  break clear <addr>|all -- clear one or all breakpoints
  break list             -- list all breakpoints
  break set <addr>       -- set a breakpoint
`

func (s *Simulator) cmdBreak(args string) error {
	fields := strings.Fields(args)
	if len(fields) > 0 {
		opt := fields[0]
		if abbreviates(opt, "list") {
			if len(fields) > 1 {
				s.println(tooManyArgs)
			}
			s.listBreakpoints()
			return nil
		}
		if len(fields) > 1 {
			if len(fields) > 2 {
				s.println(tooManyArgs)
			}
			addr := s.parseAddress(fields[1])
			switch {
			case abbreviates(opt, "clear"):
				if strings.EqualFold(fields[1], "all") {
					s.cpu.ClearBreakpoints()
					s.println("Cleared all breakpoints.")
				} else if addr < 0 {
					s.println(badAddress)
				} else {
					s.clearBreakpoint(uint16(addr))
				}
				return nil
			case abbreviates(opt, "set"):
				if addr < 0 {
					s.println(badAddress)
				} else {
					s.setBreakpoint(uint16(addr))
				}
				return nil
			}
		}
	}
	s.printf("%s", breakHelp)
	return nil
}

func (s *Simulator) setBreakpoint(addr uint16) {
	if s.cpu.Breakpoints[addr] {
		s.println("That breakpoint is already set.")
		return
	}
	s.cpu.Breakpoints[addr] = true
	s.printf("Set breakpoint at x%04X.\n", addr)
}

func (s *Simulator) clearBreakpoint(addr uint16) {
	if !s.cpu.Breakpoints[addr] {
		s.println("No such breakpoint was set.")
		return
	}
	s.cpu.Breakpoints[addr] = false
	s.printf("Cleared breakpoint at x%04X.\n", addr)
}

func (s *Simulator) listBreakpoints() {
	bps := s.cpu.BreakpointList()
	if len(bps) == 0 {
		s.println("No breakpoints are set.")
		return
	}
	s.println("The following instructions are set as breakpoints:")
	for _, addr := range bps {
		s.println(s.Disassemble(addr))
	}
}

func (s *Simulator) cmdContinue(args string) error {
	s.noArgsAllowed(args)
	s.flushConsoleInput()
	return s.runUntilStopped()
}

func (s *Simulator) cmdFinish(args string) error {
	s.noArgsAllowed(args)
	s.flushConsoleInput()
	s.cpu.FinishDepth = 1
	return s.runUntilStopped()
}

func (s *Simulator) cmdStep(args string) error {
	s.noArgsAllowed(args)
	s.flushConsoleInput()
	if _, err := s.step(); err != nil {
		return err
	}
	s.printRegisters()
	return nil
}

// cmdNext steps over subroutine calls and traps by planting a system
// breakpoint after them.
func (s *Simulator) cmdNext(args string) error {
	next := int(s.cpu.PC+1) & 0xFFFF
	s.noArgsAllowed(args)
	s.flushConsoleInput()

	more, err := s.step()
	if err != nil {
		return err
	}
	if more && s.cpu.LastFlags&isa.FlagSubroutine != 0 {
		s.cpu.SysBreakpoint = next
		return s.runUntilStopped()
	}
	s.printRegisters()
	return nil
}

func (s *Simulator) cmdPrintRegs(args string) error {
	s.noArgsAllowed(args)
	s.printRegisters()
	return nil
}

func (s *Simulator) cmdQuit(args string) error {
	s.noArgsAllowed(args)
	return ErrQuit
}

const dumpHelp = `dump options include:
  dump               -- dump memory around PC
  dump <addr>        -- dump memory starting from an address or label
  dump <addr> <addr> -- dump a range of memory
  dump more          -- continue previous dump (or press <Enter>)
`

func (s *Simulator) cmdDump(args string) error {
	start, end, ok := s.parseRange(args, s.lastDump, 48)
	if !ok {
		s.printf("%s", dumpHelp)
		return nil
	}
	s.dumpMemory(start, end)
	s.lastDump = end
	return nil
}

const listHelp = `list options include:
  list               -- list instructions around PC
  list <addr>        -- list instructions starting from an address or label
  list <addr> <addr> -- list a range of instructions
  list more          -- continue previous listing (or press <Enter>)
`

func (s *Simulator) cmdList(args string) error {
	start, end, ok := s.parseRange(args, s.lastList, 10)
	if !ok {
		s.printf("%s", listHelp)
		return nil
	}
	s.disassemble(start, end)
	s.lastList = end
	return nil
}

func (s *Simulator) cmdMemory(args string) error {
	addr, value, ok := s.parseRange(args, -1, -1)
	if !ok {
		s.println("syntax: memory <addr> <value>")
		return nil
	}
	s.cpu.Write(uint16(addr), uint16(value))
	s.printf("Wrote x%04X to address x%04X.\n", value, addr)
	return nil
}

func (s *Simulator) cmdTranslate(args string) error {
	fields := strings.Fields(args)
	if len(fields) > 1 {
		s.println(tooManyArgs)
	}
	if len(fields) < 1 {
		s.println("syntax: translate <addr>")
		return nil
	}
	addr := s.parseAddress(fields[0])
	if addr < 0 {
		s.println(badAddress)
		return nil
	}
	s.printf("Address x%04X has value x%04x.\n", addr, s.cpu.Peek(uint16(addr)))
	return nil
}

var registerNames = []string{"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "PC", "IR", "PSR", "CC"}

// ccValues is indexed so that (index+1)<<9 is the PSR condition code.
var ccValues = []string{"POSITIVE", "ZERO", "", "NEGATIVE"}

func (s *Simulator) cmdRegister(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.println("syntax: register <reg> <value>")
		return nil
	}
	reg := -1
	for i, name := range registerNames {
		if strings.EqualFold(name, fields[0]) {
			reg = i
			break
		}
	}
	if reg < 0 {
		s.println("Registers are R0...R7, PC, IR, PSR, and CC.")
		return nil
	}

	if registerNames[reg] == "CC" {
		for i, name := range ccValues {
			if name != "" && abbreviates(fields[1], name) {
				s.cpu.PSR = (s.cpu.PSR &^ isa.CCMask) | uint16(i+1)<<9
				s.printf("Set CC to %s.\n", name)
				return nil
			}
		}
		s.println("CC can only be set to NEGATIVE, ZERO, or POSITIVE.")
		return nil
	}

	value := s.parseAddress(fields[1])
	if value < 0 {
		s.println("No address or label corresponding to the desired value exists.")
		return nil
	}
	v := uint16(value)
	switch registerNames[reg] {
	case "PC":
		s.cpu.PC = v
	case "IR":
		s.cpu.IR = v
	case "PSR":
		s.cpu.PSR = v
	default:
		s.cpu.Regs[reg] = v
	}
	s.printf("Set %s to x%04X.\n", registerNames[reg], value)
	return nil
}

func (s *Simulator) cmdReset(args string) error {
	if s.scriptDepth > 0 {
		s.println("Cannot reset the LC-3 from within a script.")
		return nil
	}
	s.noArgsAllowed(args)
	s.cpu.ResetDevices()
	s.cpu.SysBreakpoint = -1
	s.cpu.FinishDepth = 0
	return s.initMachine()
}

const optionSyntax = `syntax: option <option> on|off
   options include:
      device -- simulate random device (keyboard/display) timing
      flush  -- flush console input each time LC-3 starts
      keep   -- keep remaining input when the LC-3 stops
      stdin  -- use stdin for LC-3 console input during script execution
NOTE: all options are ON by default
`

func onOff(on bool) string {
	if on {
		return ""
	}
	return "not "
}

func (s *Simulator) cmdOption(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.printf("%s", optionSyntax)
		return nil
	}
	var on bool
	switch {
	case strings.EqualFold(fields[1], "on"):
		on = true
	case strings.EqualFold(fields[1], "off"):
		on = false
	default:
		s.printf("%s", optionSyntax)
		return nil
	}
	if len(fields) > 2 {
		s.println(tooManyArgs)
	}

	opt := fields[0]
	switch {
	case abbreviates(opt, "flush"):
		s.opts.Flush = on
		s.printf("Will %sflush the console input when starting.\n", onOff(on))
	case abbreviates(opt, "keep"):
		s.opts.Keep = on
		s.printf("Will %skeep remaining input when the LC-3 stops.\n", onOff(on))
	case abbreviates(opt, "device"):
		s.opts.Device = on
		s.cpu.RandomDevice = on
		s.printf("Will %srandomize device interactions.\n", onOff(on))
	case abbreviates(opt, "stdin"):
		s.opts.Stdin = on
		s.printf("Will %suse stdin for LC-3 console input during script execution.\n", onOff(on))
		if s.scriptDepth > 0 {
			if on {
				s.setKeyboard(s.stdin)
			} else {
				s.setKeyboard(s.cmdIn)
			}
		}
	default:
		s.printf("%s", optionSyntax)
	}
	return nil
}

// String summarises the option settings for logs.
func (o Options) String() string {
	return fmt.Sprintf("flush=%t keep=%t device=%t stdin=%t", o.Flush, o.Keep, o.Device, o.Stdin)
}
