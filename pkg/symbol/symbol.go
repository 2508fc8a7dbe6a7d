// Package symbol keeps the label table used by the assembler, the
// simulator's address parser and the disassembler.
package symbol

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxNameLen matches the longest label the simulator accepts.
const MaxNameLen = 80

const tableRule = "------------"

// Symbol is a named address.
type Symbol struct {
	Name string
	Addr uint16
}

// Table maps names to addresses. Lookup is case-insensitive; each address
// has at most one display name.
type Table struct {
	byName map[string]*Symbol
	byAddr map[uint16]*Symbol
}

func NewTable() *Table {
	return &Table{
		byName: make(map[string]*Symbol),
		byAddr: make(map[uint16]*Symbol),
	}
}

func key(name string) string {
	return strings.ToLower(name)
}

// Add inserts name at addr. An existing symbol with the same name is only
// replaced when overwrite is set; Add reports whether the table changed.
func (t *Table) Add(name string, addr uint16, overwrite bool) bool {
	k := key(name)
	if old, ok := t.byName[k]; ok {
		if !overwrite {
			return false
		}
		if t.byAddr[old.Addr] == old {
			delete(t.byAddr, old.Addr)
		}
	}
	s := &Symbol{Name: name, Addr: addr}
	t.byName[k] = s
	if _, taken := t.byAddr[addr]; !taken || overwrite {
		t.byAddr[addr] = s
	}
	return true
}

// Find looks a symbol up by name.
func (t *Table) Find(name string) (Symbol, bool) {
	s, ok := t.byName[key(name)]
	if !ok {
		return Symbol{}, false
	}
	return *s, true
}

// NameAt returns the display name for addr.
func (t *Table) NameAt(addr uint16) (string, bool) {
	s, ok := t.byAddr[addr]
	if !ok {
		return "", false
	}
	return s.Name, true
}

// RemoveAt drops the symbol displayed at addr.
func (t *Table) RemoveAt(addr uint16) {
	s, ok := t.byAddr[addr]
	if !ok {
		return
	}
	delete(t.byAddr, addr)
	if t.byName[key(s.Name)] == s {
		delete(t.byName, key(s.Name))
	}
}

// RemoveRange drops every symbol in [start, end), wrapping at x10000.
// start == end clears nothing.
func (t *Table) RemoveRange(start, end uint16) {
	for addr := start; addr != end; addr++ {
		t.RemoveAt(addr)
	}
}

func (t *Table) Clear() {
	t.byName = make(map[string]*Symbol)
	t.byAddr = make(map[uint16]*Symbol)
}

func (t *Table) Len() int {
	return len(t.byName)
}

// Symbols returns every symbol ordered by address, then name.
func (t *Table) Symbols() []Symbol {
	out := make([]Symbol, 0, len(t.byName))
	for _, s := range t.byName {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Addr != out[j].Addr {
			return out[i].Addr < out[j].Addr
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ReadSymFile loads symbols in the layout written by WriteSymFile. Lines
// are skipped until the header rule; the first line after it that does not
// hold a name and a hex address ends the table.
func (t *Table) ReadSymFile(r io.Reader) (int, error) {
	sc := bufio.NewScanner(r)
	adding := false
	n := 0
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if !adding {
			if len(fields) >= 3 && fields[2] == tableRule {
				adding = true
			}
			continue
		}
		if len(fields) < 3 {
			break
		}
		name := fields[1]
		if len(name) > MaxNameLen {
			name = name[:MaxNameLen]
		}
		addr, err := strconv.ParseUint(fields[2], 16, 32)
		if err != nil {
			break
		}
		t.Add(name, uint16(addr), true)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, eris.Wrap(err, "failed to read symbol file")
	}
	return n, nil
}

// WriteSymFile writes the table in the lc3as symbol file layout.
func (t *Table) WriteSymFile(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "// Symbol table\n")
	fmt.Fprintf(bw, "// Scope level 0:\n")
	fmt.Fprintf(bw, "//\tSymbol Name       Page Address\n")
	fmt.Fprintf(bw, "//\t----------------  %s\n", tableRule)
	for _, s := range t.Symbols() {
		fmt.Fprintf(bw, "//\t%-16s  %04X\n", s.Name, s.Addr)
	}
	fmt.Fprintf(bw, "\n")
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "failed to write symbol file")
	}
	return nil
}
