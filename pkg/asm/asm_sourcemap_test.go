package asm

import (
	"testing"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `; Line 1: Comment
        .ORIG x3000     ; Line 2
        AND R0, R0, #0  ; Line 3: x3000
                        ; Line 4: Empty
LABEL                   ; Line 5: Label only
        ADD R0, R0, #1  ; Line 6: x3001, LABEL points here
BUF     .BLKW 2         ; Line 7: x3002..x3003
MSG     .STRINGZ "AB"   ; Line 8: x3004..x3006
        HALT            ; Line 9: x3007
        .END
`
	prog, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	tests := []struct {
		addr uint16
		line int
	}{
		{0x3000, 3},
		{0x3001, 6},
		{0x3002, 7},
		{0x3004, 8},
		{0x3007, 9},
	}

	for _, tc := range tests {
		if got := prog.SourceMap[tc.addr]; got != tc.line {
			t.Errorf("SourceMap[0x%04X] = %d; want %d", tc.addr, got, tc.line)
		}
	}
	if _, ok := prog.SourceMap[0x3003]; ok {
		t.Errorf("SourceMap should only hold the first word of a block")
	}
	if s, _ := prog.Symbols.Find("LABEL"); s.Addr != 0x3001 {
		t.Errorf("LABEL = 0x%04X; want 0x3001", s.Addr)
	}
}
