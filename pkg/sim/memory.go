package sim

import (
	"fmt"
	"strconv"
	"strings"

	"lc3tools/pkg/isa"
)

const (
	tooManyArgs = "WARNING: Ignoring excess arguments."
	badAddress  = "Addresses must be labels or values in the range x0000 to xFFFF."
)

// Rows of a memory dump hold this many words.
const dumpWidth = 12

// parseAddress reads a label, a hex value (optionally prefixed by x) or a
// #decimal value, any of them negated by a leading '-'. It returns -1 when
// text is none of these.
func (s *Simulator) parseAddress(text string) int {
	negated := strings.HasPrefix(text, "-")
	if negated {
		text = text[1:]
	}

	var value int
	if sym, ok := s.syms.Find(text); ok {
		value = int(sym.Addr)
	} else {
		digits, base := text, 16
		switch {
		case strings.HasPrefix(text, "#"):
			digits, base = text[1:], 10
		case strings.HasPrefix(text, "x"), strings.HasPrefix(text, "X"):
			digits = text[1:]
		}
		v, err := strconv.ParseInt(digits, base, 32)
		if err != nil || v > 0xFFFF || (negated && v < 0) || (!negated && v < -0xFFFF) {
			return -1
		}
		value = int(v)
	}
	if negated {
		value = -value
	}
	if value < 0 {
		value += 0x10000
	}
	return value
}

// parseRange turns command arguments into a start and end address. With a
// non-negative scale, missing bounds are filled in around the PC or after
// the start, and "more" continues from lastEnd. A negative scale requires
// both values and leaves the second one as given.
func (s *Simulator) parseRange(args string, lastEnd, scale int) (start, end int, ok bool) {
	fields := strings.Fields(args)
	if scale < 0 && len(fields) < 2 {
		return 0, 0, false
	}
	if len(fields) == 0 {
		pc := int(s.cpu.PC)
		return (pc + 0x10000 - scale) & 0xFFFF, (pc + scale) & 0xFFFF, true
	}
	if lastEnd >= 0 && strings.EqualFold(fields[0], "more") {
		if len(fields) > 1 {
			s.println(tooManyArgs)
		}
		return lastEnd, (lastEnd + 2*scale) & 0xFFFF, true
	}
	if start = s.parseAddress(fields[0]); start < 0 {
		return 0, 0, false
	}
	if len(fields) == 1 {
		return start, (start + 2*scale) & 0xFFFF, true
	}
	if end = s.parseAddress(fields[1]); end < 0 {
		return 0, 0, false
	}
	if scale >= 0 {
		end = (end + 1) & 0xFFFF
	}
	if len(fields) > 2 {
		s.println(tooManyArgs)
	}
	return start, end, true
}

func (s *Simulator) noArgsAllowed(args string) {
	if strings.TrimSpace(args) != "" {
		s.println(tooManyArgs)
	}
}

// dumpMemory prints [start, end) as hex and characters, twelve words a row
// aligned to multiples of twelve. start >= end wraps around memory.
func (s *Simulator) dumpMemory(start, end int) {
	if start >= end {
		end += 0x10000
	}
	var vals [dumpWidth]uint16
	var b strings.Builder
	for row := (start / dumpWidth) * dumpWidth; row < end; row += dumpWidth {
		b.Reset()
		fmt.Fprintf(&b, "%04X: ", row&0xFFFF)
		for i := 0; i < dumpWidth; i++ {
			addr := row + i
			if addr >= start && addr < end {
				vals[i] = s.cpu.Peek(uint16(addr))
				fmt.Fprintf(&b, "%04X ", vals[i])
			} else {
				b.WriteString("     ")
			}
		}
		b.WriteByte(' ')
		for i := 0; i < dumpWidth; i++ {
			addr := row + i
			switch {
			case addr < start || addr >= end:
				b.WriteByte(' ')
			case vals[i] >= 0x20 && vals[i] < 0x7F:
				b.WriteByte(byte(vals[i]))
			default:
				b.WriteByte('.')
			}
		}
		s.println(b.String())
	}
}

// Disassemble renders one line of a listing: breakpoint marker, label,
// address, contents and the decoded instruction.
func (s *Simulator) Disassemble(addr uint16) string {
	mark := ' '
	if s.cpu.Breakpoints[addr] {
		mark = 'B'
	}
	word := s.cpu.Peek(addr)
	var head string
	if name, ok := s.syms.NameAt(addr); ok {
		head = fmt.Sprintf("%c %16.16s x%04X x%04X ", mark, name, addr, word)
	} else {
		head = fmt.Sprintf("%c %17sx%04X x%04X ", mark, "", addr, word)
	}
	return head + isa.Disassemble(addr, word, s.syms)
}

func (s *Simulator) disassemble(start, end int) {
	addr := start
	for {
		s.println(s.Disassemble(uint16(addr)))
		addr = (addr + 1) & 0xFFFF
		if addr == end {
			return
		}
	}
}

// Registers renders the register display shown whenever the LC-3 stops.
func (s *Simulator) Registers() string {
	c := s.cpu
	var b strings.Builder
	fmt.Fprintf(&b, "PC=x%04X IR=x%04X PSR=x%04X (%s)\n", c.PC, c.IR, c.PSR, isa.CCName(c.PSR))
	for i, r := range c.Regs {
		fmt.Fprintf(&b, "R%d=x%04X ", i, r)
	}
	b.WriteByte('\n')
	b.WriteString(s.Disassemble(c.PC))
	return b.String()
}

func (s *Simulator) printRegisters() {
	s.println(s.Registers())
}
