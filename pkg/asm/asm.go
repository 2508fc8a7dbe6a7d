// Package asm is a two-pass LC-3 assembler.
package asm

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"lc3tools/pkg/isa"
	"lc3tools/pkg/obj"
	"lc3tools/pkg/symbol"
)

// Error is one diagnostic tied to a source line.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s on line %d", e.Msg, e.Line)
}

// ErrorList holds every diagnostic produced for a file, in line order.
type ErrorList []*Error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Program is the result of assembling one file.
type Program struct {
	Origin  uint16
	Words   []uint16
	Symbols *symbol.Table
	// SourceMap maps each emitted address to the line that produced it.
	SourceMap map[uint16]int
}

// Image returns the program as a loadable object image.
func (p *Program) Image() obj.Image {
	return obj.Image{Origin: p.Origin, Words: p.Words}
}

type Assembler struct {
	labels *symbol.Table
	errs   ErrorList
}

type parsedLine struct {
	lineNo   int
	label    string
	mnemonic string
	operands []string
	addr     uint16
}

var directives = map[string]bool{
	".ORIG":    true,
	".END":     true,
	".FILL":    true,
	".BLKW":    true,
	".STRINGZ": true,
}

func NewAssembler() *Assembler {
	return &Assembler{labels: symbol.NewTable()}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

// Assemble translates code. On failure the error is an ErrorList naming
// every problem found. Lines that do not parse are skipped by the later
// passes so that their errors are reported too.
func (a *Assembler) Assemble(code string) (*Program, error) {
	lines := a.parse(strings.Split(code, "\n"))
	stmts, origin := a.pass1(lines)
	prog := a.pass2(stmts, origin)
	if len(a.errs) > 0 {
		slices.SortStableFunc(a.errs, func(x, y *Error) int {
			return cmp.Compare(x.Line, y.Line)
		})
		return nil, a.errs
	}
	return prog, nil
}

func (a *Assembler) errorf(lineNo int, format string, args ...any) {
	a.errs = append(a.errs, &Error{Line: lineNo, Msg: fmt.Sprintf(format, args...)})
}

func (a *Assembler) parse(raw []string) []parsedLine {
	var out []parsedLine
	for i, text := range raw {
		p, err := parseLine(text, i+1)
		if err != nil {
			a.errs = append(a.errs, err)
			if p.label != "" {
				out = append(out, parsedLine{lineNo: p.lineNo, label: p.label})
			}
			continue
		}
		if p.label == "" && p.mnemonic == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pass1 assigns addresses and records labels. It returns the statements
// between .ORIG and .END.
func (a *Assembler) pass1(lines []parsedLine) ([]parsedLine, uint16) {
	var (
		stmts   []parsedLine
		origin  uint16
		address int
		started bool
		ended   bool
	)

	for _, p := range lines {
		if ended {
			break
		}
		if !started {
			if p.mnemonic != ".ORIG" {
				a.errorf(p.lineNo, "instruction appears before .ORIG")
				return nil, 0
			}
			if p.label != "" {
				a.errorf(p.lineNo, "label '%s' cannot be placed on .ORIG", p.label)
			}
			if len(p.operands) != 1 {
				a.errorf(p.lineNo, ".ORIG expects exactly one operand")
				return nil, 0
			}
			v, ok := parseNumber(p.operands[0])
			if !ok || v < 0 || v > 0xFFFF {
				a.errorf(p.lineNo, "invalid .ORIG value '%s'", p.operands[0])
				return nil, 0
			}
			origin = uint16(v)
			address = v
			started = true
			continue
		}

		if p.label != "" {
			if address > 0xFFFF {
				a.errorf(p.lineNo, "label '%s' points past addressable memory", p.label)
			} else if !a.labels.Add(p.label, uint16(address), false) {
				a.errorf(p.lineNo, "duplicate label '%s'", p.label)
			}
		}
		if p.mnemonic == "" {
			continue
		}

		p.addr = uint16(address)
		size := 1
		switch p.mnemonic {
		case ".ORIG":
			a.errorf(p.lineNo, "only one .ORIG is allowed per file")
			continue
		case ".END":
			ended = true
			continue
		case ".BLKW":
			if len(p.operands) != 1 {
				a.errorf(p.lineNo, ".BLKW expects exactly one operand")
				continue
			}
			n, ok := parseNumber(p.operands[0])
			if !ok || n < 1 || n > 0xFFFF {
				a.errorf(p.lineNo, "invalid .BLKW count '%s'", p.operands[0])
				continue
			}
			size = n
		case ".STRINGZ":
			if len(p.operands) != 1 || !isQuoted(p.operands[0]) {
				a.errorf(p.lineNo, ".STRINGZ expects exactly one string operand")
				continue
			}
			s, err := unquote(p.operands[0])
			if err != nil {
				a.errorf(p.lineNo, "invalid string literal")
				continue
			}
			size = len(s) + 1
		}

		if address+size > 0x10000 {
			a.errorf(p.lineNo, "program too large")
			return nil, 0
		}
		address += size
		stmts = append(stmts, p)
	}

	if !started {
		a.errorf(len(lines), "file contains no .ORIG")
	} else if !ended {
		last := 0
		if len(lines) > 0 {
			last = lines[len(lines)-1].lineNo
		}
		a.errorf(last, "missing .END")
	}
	return stmts, origin
}

func (a *Assembler) pass2(stmts []parsedLine, origin uint16) *Program {
	prog := &Program{
		Origin:    origin,
		Symbols:   a.labels,
		SourceMap: make(map[uint16]int),
	}

	for _, p := range stmts {
		prog.SourceMap[p.addr] = p.lineNo

		switch p.mnemonic {
		case ".FILL":
			if len(p.operands) != 1 {
				a.errorf(p.lineNo, ".FILL expects exactly one operand")
				prog.Words = append(prog.Words, 0)
				continue
			}
			v, err := a.fillValue(p.operands[0])
			if err != "" {
				a.errorf(p.lineNo, "%s", err)
			}
			prog.Words = append(prog.Words, v)
			continue
		case ".BLKW":
			n, _ := parseNumber(p.operands[0])
			prog.Words = append(prog.Words, make([]uint16, n)...)
			continue
		case ".STRINGZ":
			s, _ := unquote(p.operands[0])
			for i := 0; i < len(s); i++ {
				prog.Words = append(prog.Words, uint16(s[i]))
			}
			prog.Words = append(prog.Words, 0)
			continue
		}

		word, err := a.encode(p)
		if err != "" {
			a.errorf(p.lineNo, "%s", err)
		}
		prog.Words = append(prog.Words, word)
	}
	return prog
}

func (a *Assembler) fillValue(tok string) (uint16, string) {
	if v, ok := parseNumber(tok); ok {
		if v < -0x8000 || v > 0xFFFF {
			return 0, fmt.Sprintf(".FILL value '%s' out of range", tok)
		}
		return uint16(v), ""
	}
	if s, ok := a.labels.Find(tok); ok {
		return s.Addr, ""
	}
	if isIdentifier(tok) {
		return 0, fmt.Sprintf("undefined label '%s'", tok)
	}
	return 0, fmt.Sprintf("invalid operand '%s'", tok)
}

// encode builds one instruction word. The error is returned as text so
// the caller can attach the line number.
func (a *Assembler) encode(p parsedLine) (uint16, string) {
	name, cc := splitBranch(p.mnemonic)
	defs := lookup(name)
	if len(defs) == 0 {
		return 0, fmt.Sprintf("unknown instruction '%s'", p.mnemonic)
	}

	def := defs[0]
	// ADD and AND come in register and immediate forms.
	if len(defs) > 1 && len(p.operands) == 3 {
		if _, err := parseRegister(p.operands[2]); err != "" {
			def = defs[1]
		}
	}

	want := operandCount(def.Format)
	if len(p.operands) != want {
		return 0, fmt.Sprintf("%s expects %d operand%s", name, want, plural(want))
	}

	word := def.Match
	ops := p.operands
	next := func() string {
		tok := ops[0]
		ops = ops[1:]
		return tok
	}

	if def.Format&isa.FmtCC != 0 {
		word |= cc
	}
	if def.Format&isa.FmtR1 != 0 {
		r, err := parseRegister(next())
		if err != "" {
			return 0, err
		}
		word |= r << 9
	}
	if def.Format&isa.FmtR2 != 0 {
		r, err := parseRegister(next())
		if err != "" {
			return 0, err
		}
		word |= r << 6
	}
	if def.Format&isa.FmtR3 != 0 {
		r, err := parseRegister(next())
		if err != "" {
			return 0, err
		}
		word |= r
	}
	if def.Format&isa.FmtImm5 != 0 {
		v, err := immediate(next(), 5)
		if err != "" {
			return 0, err
		}
		word |= v
	}
	if def.Format&isa.FmtImm6 != 0 {
		v, err := immediate(next(), 6)
		if err != "" {
			return 0, err
		}
		word |= v
	}
	if def.Format&isa.FmtVec8 != 0 {
		tok := next()
		v, ok := parseNumber(tok)
		if !ok || v < 0 || v > 0xFF {
			return 0, fmt.Sprintf("invalid trap vector '%s'", tok)
		}
		word |= uint16(v)
	}
	if def.Format&isa.FmtImm9 != 0 {
		v, err := a.pcOffset(next(), p.addr, 9)
		if err != "" {
			return 0, err
		}
		word |= v
	}
	if def.Format&isa.FmtImm11 != 0 {
		v, err := a.pcOffset(next(), p.addr, 11)
		if err != "" {
			return 0, err
		}
		word |= v
	}
	return word, ""
}

// pcOffset resolves a label relative to the incremented PC. A number is
// taken as the offset itself.
func (a *Assembler) pcOffset(tok string, addr uint16, bits uint) (uint16, string) {
	var off int
	if v, ok := parseNumber(tok); ok {
		off = v
	} else if s, ok := a.labels.Find(tok); ok {
		off = int(s.Addr) - (int(addr) + 1)
	} else if isIdentifier(tok) {
		return 0, fmt.Sprintf("undefined label '%s'", tok)
	} else {
		return 0, fmt.Sprintf("invalid operand '%s'", tok)
	}
	limit := 1 << (bits - 1)
	if off < -limit || off >= limit {
		return 0, fmt.Sprintf("PC offset to '%s' does not fit in %d bits", tok, bits)
	}
	return uint16(off) & (1<<bits - 1), ""
}

func immediate(tok string, bits uint) (uint16, string) {
	v, ok := parseNumber(tok)
	if !ok {
		return 0, fmt.Sprintf("invalid immediate '%s'", tok)
	}
	limit := 1 << (bits - 1)
	if v < -limit || v >= limit {
		return 0, fmt.Sprintf("immediate '%s' out of range", tok)
	}
	return uint16(v) & (1<<bits - 1), ""
}

// lookup finds the definitions an assembler mnemonic may use.
func lookup(name string) []isa.Def {
	var out []isa.Def
	for _, d := range isa.Lookup(name) {
		if d.Name == "NOP" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// splitBranch maps BRn, BRzp, ... to BR plus condition bits. Bare BR means
// BRnzp.
func splitBranch(mnemonic string) (string, uint16) {
	if !strings.HasPrefix(mnemonic, "BR") {
		return mnemonic, 0
	}
	flags := mnemonic[2:]
	if flags == "" {
		return "BR", isa.CCMask
	}
	var cc uint16
	rest := flags
	for _, f := range []struct {
		c   byte
		bit uint16
	}{{'N', isa.CCNegative}, {'Z', isa.CCZero}, {'P', isa.CCPositive}} {
		if rest != "" && rest[0] == f.c {
			cc |= f.bit
			rest = rest[1:]
		}
	}
	if rest != "" {
		return mnemonic, 0
	}
	return "BR", cc
}

func isOpcode(tok string) bool {
	up := strings.ToUpper(tok)
	if directives[up] {
		return true
	}
	name, _ := splitBranch(up)
	return len(lookup(name)) > 0
}

func operandCount(f isa.Format) int {
	n := 0
	for _, bit := range []isa.Format{isa.FmtR1, isa.FmtR2, isa.FmtR3, isa.FmtImm5, isa.FmtImm6, isa.FmtVec8, isa.FmtImm9, isa.FmtImm11} {
		if f&bit != 0 {
			n++
		}
	}
	return n
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func parseLine(raw string, lineNo int) (parsedLine, *Error) {
	p := parsedLine{lineNo: lineNo}

	fields, err := tokenize(raw)
	if err != "" {
		return p, &Error{Line: lineNo, Msg: err}
	}
	if len(fields) == 0 {
		return p, nil
	}

	if !isOpcode(fields[0]) {
		label := strings.TrimSuffix(fields[0], ":")
		if !isIdentifier(label) {
			return p, &Error{Line: lineNo, Msg: fmt.Sprintf("invalid label '%s'", fields[0])}
		}
		if _, ok := parseNumber(label); ok {
			return p, &Error{Line: lineNo, Msg: fmt.Sprintf("label '%s' looks like a number", label)}
		}
		if _, err := parseRegister(label); err == "" {
			return p, &Error{Line: lineNo, Msg: fmt.Sprintf("label '%s' is a register name", label)}
		}
		p.label = label
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return p, nil
	}

	if !isOpcode(fields[0]) {
		return p, &Error{Line: lineNo, Msg: fmt.Sprintf("unknown instruction '%s'", fields[0])}
	}
	p.mnemonic = strings.ToUpper(fields[0])
	p.operands = fields[1:]
	return p, nil
}

// tokenize splits a line on whitespace and commas, keeping quoted strings
// whole and dropping a trailing ';' comment.
func tokenize(raw string) ([]string, string) {
	var (
		fields []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == ';':
			flush()
			return fields, ""
		case c == '"':
			flush()
			j := i + 1
			for ; j < len(raw) && raw[j] != '"'; j++ {
				if raw[j] == '\\' {
					j++
				}
			}
			if j >= len(raw) {
				return nil, "unterminated string literal"
			}
			fields = append(fields, raw[i:j+1])
			i = j
		case c == ',' || unicode.IsSpace(rune(c)):
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields, ""
}

func isQuoted(tok string) bool {
	return len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"'
}

func unquote(tok string) (string, error) {
	return strconv.Unquote(tok)
}

func parseRegister(token string) (uint16, string) {
	if len(token) == 2 && (token[0] == 'R' || token[0] == 'r') && token[1] >= '0' && token[1] <= '7' {
		return uint16(token[1] - '0'), ""
	}
	return 0, fmt.Sprintf("invalid register '%s'", token)
}

// parseNumber accepts #decimal, xHEX, bBINARY and bare decimal, each with
// an optional leading minus sign.
func parseNumber(tok string) (int, bool) {
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	base := 10
	switch {
	case tok == "":
		return 0, false
	case tok[0] == '#':
		tok = tok[1:]
	case tok[0] == 'x' || tok[0] == 'X':
		base = 16
		tok = tok[1:]
	case tok[0] == 'b' || tok[0] == 'B':
		base = 2
		tok = tok[1:]
	}
	if strings.HasPrefix(tok, "-") && !neg {
		neg = true
		tok = tok[1:]
	}
	if tok == "" || tok[0] == '+' {
		return 0, false
	}
	v, err := strconv.ParseUint(tok, base, 32)
	if err != nil || v > 0x1FFFF {
		return 0, false
	}
	if neg {
		return -int(v), true
	}
	return int(v), true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
