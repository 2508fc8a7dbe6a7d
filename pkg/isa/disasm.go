package isa

import (
	"fmt"
	"strings"
)

// OpcodeWidth is the column width reserved for the mnemonic.
const OpcodeWidth = 6

// Namer resolves an address to a label for display.
type Namer interface {
	NameAt(addr uint16) (string, bool)
}

var ccSuffix = [8]string{"", "P", "Z", "ZP", "N", "NP", "NZ", "NZP"}

// Disassemble renders the word stored at addr, for example
// "BRZ   LOOP" or "ADD   R1,R1,#-1". names may be nil.
func Disassemble(addr, word uint16, names Namer) string {
	d := DecodeDisplay(word)
	name := d.Name
	if d.Format&FmtCC != 0 {
		name += ccSuffix[CC(word)>>9]
	}
	return fmt.Sprintf("%-*s", OpcodeWidth, name) + operands(addr, word, d.Format, names)
}

func operands(addr, word uint16, format Format, names Namer) string {
	var parts []string
	if format&FmtR1 != 0 {
		parts = append(parts, fmt.Sprintf("R%d", DR(word)))
	}
	if format&FmtR2 != 0 {
		parts = append(parts, fmt.Sprintf("R%d", SR1(word)))
	}
	if format&FmtR3 != 0 {
		parts = append(parts, fmt.Sprintf("R%d", SR2(word)))
	}
	if format&FmtImm5 != 0 {
		parts = append(parts, fmt.Sprintf("#%d", Imm5(word)))
	}
	if format&FmtImm6 != 0 {
		parts = append(parts, fmt.Sprintf("#%d", Imm6(word)))
	}
	if format&FmtVec8 != 0 {
		parts = append(parts, fmt.Sprintf("x%02X", Vec8(word)))
	}
	if format&FmtImm9 != 0 {
		parts = append(parts, target(Offset(addr+1, Imm9(word)), names))
	}
	if format&FmtImm11 != 0 {
		parts = append(parts, target(Offset(addr+1, Imm11(word)), names))
	}
	return strings.Join(parts, ",")
}

func target(addr uint16, names Namer) string {
	if names != nil {
		if name, ok := names.NameAt(addr); ok {
			return name
		}
	}
	return fmt.Sprintf("x%04X", addr)
}
