package lc3os

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lc3tools/pkg/cpu"
	"lc3tools/pkg/obj"
	"lc3tools/pkg/symbol"
)

func symbolAddr(t *testing.T, sys *OS, name string) uint16 {
	t.Helper()
	for _, s := range sys.Symbols {
		if strings.EqualFold(s.Name, name) {
			return s.Addr
		}
	}
	t.Fatalf("symbol %s not found", name)
	return 0
}

func boot(t *testing.T, input string) (*cpu.CPU, *bytes.Buffer) {
	t.Helper()
	sys, err := Builtin()
	require.NoError(t, err)

	c := cpu.NewCPU()
	c.RandomDevice = false
	out := new(bytes.Buffer)
	c.Output = out
	c.Keyboard = cpu.NewBytesKeyboard([]byte(input))
	c.Load(sys.Image)
	c.PC = StartAddr
	require.Equal(t, cpu.StopHalted, c.Run())
	return c, out
}

func TestBuiltinLayout(t *testing.T) {
	sys, err := Builtin()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0000), sys.Image.Origin)
	assert.Equal(t, StartAddr, symbolAddr(t, sys, "OS_START"))

	words := sys.Image.Words
	assert.Equal(t, symbolAddr(t, sys, "TRAP_GETC"), words[0x20])
	assert.Equal(t, symbolAddr(t, sys, "TRAP_HALT"), words[0x25])
	assert.Equal(t, symbolAddr(t, sys, "BAD_TRAP"), words[0x26])
	assert.Equal(t, symbolAddr(t, sys, "BAD_INT"), words[0x180])
}

func TestBootPrintsBannerAndHalts(t *testing.T) {
	_, out := boot(t, "")
	assert.Contains(t, out.String(), "LC-3 simulator ready.")
	assert.True(t, strings.HasSuffix(out.String(), "--- halting the LC-3 ---\n\n"))
}

func TestTrapHandlers(t *testing.T) {
	c, out := boot(t, "q")
	out.Reset()

	// x3000: LEA R0,MSG ; PUTS ; IN ; ST R0,SAVE ; HALT ; SAVE ; MSG "ok"
	prog := []uint16{
		0xE005, // LEA R0,#5 -> x3006
		0xF022, // PUTS
		0xF023, // IN
		0x3001, // ST R0,#1 -> x3005
		0xF025, // HALT
		0x0000, // SAVE
		'o', 'k', 0,
	}
	c.Load(obj.Image{Origin: 0x3000, Words: prog})
	c.PC = 0x3000
	require.Equal(t, cpu.StopHalted, c.Run())

	assert.Equal(t, uint16('q'), c.Memory[0x3005])
	assert.True(t, strings.HasPrefix(out.String(), "ok\nInput a character> q\n"), out.String())
}

func TestPUTSP(t *testing.T) {
	c, out := boot(t, "")
	out.Reset()
	prog := []uint16{
		0xE002, // LEA R0,#2 -> x3003
		0xF024, // PUTSP
		0xF025, // HALT
		'h' | 'i'<<8,
		'!',
		0,
	}
	c.Load(obj.Image{Origin: 0x3000, Words: prog})
	c.PC = 0x3000
	c.Run()
	assert.True(t, strings.HasPrefix(out.String(), "hi!\n"), out.String())
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "os.obj")
	symPath := filepath.Join(dir, "os.sym")

	img := obj.Image{Origin: 0x0200, Words: []uint16{0xF025}}
	require.NoError(t, obj.WriteFile(objPath, img))

	table := symbol.NewTable()
	table.Add("BOOT", 0x0200, false)
	var buf bytes.Buffer
	require.NoError(t, table.WriteSymFile(&buf))
	require.NoError(t, os.WriteFile(symPath, buf.Bytes(), 0644))

	sys, err := LoadFiles(objPath, symPath)
	require.NoError(t, err)
	assert.Equal(t, img, sys.Image)
	require.Len(t, sys.Symbols, 1)
	assert.Equal(t, "BOOT", sys.Symbols[0].Name)

	_, err = LoadFiles(filepath.Join(dir, "missing.obj"), "")
	assert.Error(t, err)
}
