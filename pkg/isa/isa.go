// Package isa holds the LC-3 instruction definitions shared by the
// simulator, the disassembler and the assembler.
package isa

import "strings"

// Op identifies the operation an instruction word performs.
type Op int

const (
	OpIllegal Op = iota
	OpADD
	OpAND
	OpBR
	OpJMP
	OpJMPT
	OpJSR
	OpJSRR
	OpLD
	OpLDI
	OpLDR
	OpLEA
	OpNOT
	OpRTI
	OpST
	OpSTI
	OpSTR
	OpTRAP
)

// Format is a bit set describing which operand fields an instruction prints
// (and, for the assembler, accepts) in order.
type Format uint16

const (
	FmtR1 Format = 1 << iota
	FmtR2
	FmtR3
	FmtCC
	FmtImm5
	FmtImm6
	FmtVec8
	FmtImm9
	FmtImm11

	FmtNone Format = 0
)

// Flags mark instructions that matter to the "next" and "finish" commands.
type Flags uint8

const (
	FlagNone       Flags = 0
	FlagSubroutine Flags = 1 << 0
	FlagReturn     Flags = 1 << 1
)

// Def describes one instruction encoding. A word matches when
// word&Mask == Match. Alias definitions only exist for display and assembly
// (for example GETC is a TRAP x20); execution always uses the base form.
type Def struct {
	Name   string
	Op     Op
	Format Format
	Mask   uint16
	Match  uint16
	Flags  Flags
	Alias  bool
}

// Condition code bits as stored in the PSR and in BR instructions.
const (
	CCPositive uint16 = 0x0200
	CCZero     uint16 = 0x0400
	CCNegative uint16 = 0x0800
	CCMask     uint16 = 0x0E00

	PSRPrivilege uint16 = 0x8000
)

// Trap vectors used by the operating system image.
const (
	TrapGETC  uint16 = 0x20
	TrapOUT   uint16 = 0x21
	TrapPUTS  uint16 = 0x22
	TrapIN    uint16 = 0x23
	TrapPUTSP uint16 = 0x24
	TrapHALT  uint16 = 0x25
)

// defs is ordered: the first matching entry wins, so specific encodings
// (RET, NOP, trap aliases) precede the general ones.
var defs = []Def{
	{Name: "ADD", Op: OpADD, Format: FmtR1 | FmtR2 | FmtR3, Mask: 0xF038, Match: 0x1000},
	{Name: "ADD", Op: OpADD, Format: FmtR1 | FmtR2 | FmtImm5, Mask: 0xF020, Match: 0x1020},
	{Name: "AND", Op: OpAND, Format: FmtR1 | FmtR2 | FmtR3, Mask: 0xF038, Match: 0x5000},
	{Name: "AND", Op: OpAND, Format: FmtR1 | FmtR2 | FmtImm5, Mask: 0xF020, Match: 0x5020},
	{Name: "NOP", Op: OpBR, Format: FmtNone, Mask: 0xFFFF, Match: 0x0000, Alias: true},
	{Name: "BR", Op: OpBR, Format: FmtCC | FmtImm9, Mask: 0xF000, Match: 0x0000},
	{Name: "RET", Op: OpJMP, Format: FmtNone, Mask: 0xFFFF, Match: 0xC1C0, Flags: FlagReturn},
	{Name: "RTT", Op: OpJMPT, Format: FmtNone, Mask: 0xFFFF, Match: 0xC1C1, Flags: FlagReturn},
	{Name: "JMP", Op: OpJMP, Format: FmtR2, Mask: 0xFE3F, Match: 0xC000},
	{Name: "JMPT", Op: OpJMPT, Format: FmtR2, Mask: 0xFE3F, Match: 0xC001},
	{Name: "JSR", Op: OpJSR, Format: FmtImm11, Mask: 0xF800, Match: 0x4800, Flags: FlagSubroutine},
	{Name: "JSRR", Op: OpJSRR, Format: FmtR2, Mask: 0xFE3F, Match: 0x4000, Flags: FlagSubroutine},
	{Name: "LD", Op: OpLD, Format: FmtR1 | FmtImm9, Mask: 0xF000, Match: 0x2000},
	{Name: "LDI", Op: OpLDI, Format: FmtR1 | FmtImm9, Mask: 0xF000, Match: 0xA000},
	{Name: "LDR", Op: OpLDR, Format: FmtR1 | FmtR2 | FmtImm6, Mask: 0xF000, Match: 0x6000},
	{Name: "LEA", Op: OpLEA, Format: FmtR1 | FmtImm9, Mask: 0xF000, Match: 0xE000},
	{Name: "NOT", Op: OpNOT, Format: FmtR1 | FmtR2, Mask: 0xF03F, Match: 0x903F},
	{Name: "RTI", Op: OpRTI, Format: FmtNone, Mask: 0xFFFF, Match: 0x8000, Flags: FlagReturn},
	{Name: "ST", Op: OpST, Format: FmtR1 | FmtImm9, Mask: 0xF000, Match: 0x3000},
	{Name: "STI", Op: OpSTI, Format: FmtR1 | FmtImm9, Mask: 0xF000, Match: 0xB000},
	{Name: "STR", Op: OpSTR, Format: FmtR1 | FmtR2 | FmtImm6, Mask: 0xF000, Match: 0x7000},
	{Name: "GETC", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapGETC, Flags: FlagSubroutine, Alias: true},
	{Name: "OUT", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapOUT, Flags: FlagSubroutine, Alias: true},
	{Name: "PUTS", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapPUTS, Flags: FlagSubroutine, Alias: true},
	{Name: "IN", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapIN, Flags: FlagSubroutine, Alias: true},
	{Name: "PUTSP", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapPUTSP, Flags: FlagSubroutine, Alias: true},
	{Name: "HALT", Op: OpTRAP, Format: FmtNone, Mask: 0xFFFF, Match: 0xF000 | TrapHALT, Flags: FlagSubroutine, Alias: true},
	{Name: "TRAP", Op: OpTRAP, Format: FmtVec8, Mask: 0xFF00, Match: 0xF000, Flags: FlagSubroutine},
}

var illegal = Def{Name: "???", Op: OpIllegal}

// Decode returns the executable definition for word. The reserved opcode
// and malformed encodings (for example JMP with stray bits) decode to an
// OpIllegal definition.
func Decode(word uint16) Def {
	for _, d := range defs {
		if d.Alias {
			continue
		}
		if word&d.Mask == d.Match {
			return d
		}
	}
	return illegal
}

// DecodeDisplay is like Decode but prefers alias names such as HALT.
func DecodeDisplay(word uint16) Def {
	for _, d := range defs {
		if word&d.Mask == d.Match {
			return d
		}
	}
	return illegal
}

// Lookup returns every definition spelled name, in table order.
// The assembler uses it to pick between register and immediate forms.
func Lookup(name string) []Def {
	var out []Def
	for _, d := range defs {
		if strings.EqualFold(d.Name, name) {
			out = append(out, d)
		}
	}
	return out
}

// Mnemonics returns the distinct instruction names known to the table.
func Mnemonics() []string {
	seen := make(map[string]bool, len(defs))
	var out []string
	for _, d := range defs {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d.Name)
		}
	}
	return out
}

// SignExtend widens the low bits of v as a two's complement value.
func SignExtend(v uint16, bits uint) int {
	v &= (1 << bits) - 1
	if v&(1<<(bits-1)) != 0 {
		return int(v) - (1 << bits)
	}
	return int(v)
}

func DR(w uint16) uint16    { return (w >> 9) & 7 }
func SR1(w uint16) uint16   { return (w >> 6) & 7 }
func SR2(w uint16) uint16   { return w & 7 }
func CC(w uint16) uint16    { return w & CCMask }
func Imm5(w uint16) int     { return SignExtend(w, 5) }
func Imm6(w uint16) int     { return SignExtend(w, 6) }
func Vec8(w uint16) uint16  { return w & 0xFF }
func Imm9(w uint16) int     { return SignExtend(w, 9) }
func Imm11(w uint16) int    { return SignExtend(w, 11) }
func UsesImm(w uint16) bool { return w&0x0020 != 0 }

// Offset adds a signed offset to an address with 16-bit wraparound.
func Offset(addr uint16, off int) uint16 {
	return uint16((int(addr) + off) & 0xFFFF)
}

// CCFor returns the condition code that reflects value.
func CCFor(value uint16) uint16 {
	switch {
	case value == 0:
		return CCZero
	case value&0x8000 != 0:
		return CCNegative
	default:
		return CCPositive
	}
}

var ccNames = [8]string{
	"BAD_CC", "POSITIVE", "ZERO", "BAD_CC",
	"NEGATIVE", "BAD_CC", "BAD_CC", "BAD_CC",
}

// CCName names the condition code held in a PSR value.
func CCName(psr uint16) string {
	return ccNames[(psr>>9)&7]
}
