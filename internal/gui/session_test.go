package gui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lc3tools/pkg/asm"
	"lc3tools/pkg/sim"
)

const waitFor = 5 * time.Second

func testOptions() sim.Options {
	opts := sim.DefaultOptions()
	opts.Device = false
	return opts
}

func startSession(t *testing.T, file string, opts sim.Options) *Session {
	t.Helper()
	s, err := Start(Config{Options: opts, File: file, Seed: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	waitIdle(t, s)
	return s
}

func waitIdle(t *testing.T, s *Session) View {
	t.Helper()
	var v View
	require.Eventually(t, func() bool {
		var idle bool
		v, idle = s.View()
		return idle
	}, waitFor, 5*time.Millisecond)
	return v
}

func assembleTo(t *testing.T, dir, src string) string {
	t.Helper()
	path := filepath.Join(dir, "prog.asm")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	out, err := asm.AssembleFile(path)
	require.NoError(t, err)
	return out.Object
}

const countProgram = `	.ORIG x3000
START	ADD R1,R1,#1
	ADD R1,R1,#1
	HALT
	.END
`

func screenText(s *Session) string {
	var lines []string
	for y := 0; y < ConsoleRows; y++ {
		lines = append(lines, s.Screen().Line(y))
	}
	return strings.Join(lines, "\n")
}

func TestSessionBootsWithFile(t *testing.T) {
	file := assembleTo(t, t.TempDir(), countProgram)
	s := startSession(t, file, testOptions())

	v, _ := s.View()
	assert.Equal(t, uint16(0x3000), v.PC)
	assert.Equal(t, file, v.File)
	assert.Len(t, v.Code, codeBefore+codeAfter+1)
	assert.Contains(t, v.Code[v.PCLine], "> ")
	assert.Contains(t, v.Code[v.PCLine], "START")
	assert.True(t, strings.HasPrefix(v.Registers[0], "PC=x3000"))
	assert.Contains(t, screenText(s), "(lc3sim)")
}

func TestSessionStepAndBreakpoint(t *testing.T) {
	file := assembleTo(t, t.TempDir(), countProgram)
	s := startSession(t, file, testOptions())

	require.True(t, s.Command("step"))
	assert.False(t, s.Command("step"), "commands are refused while busy")
	v := waitIdle(t, s)
	assert.Equal(t, uint16(0x3001), v.PC)

	require.True(t, s.ToggleBreakpoint())
	v = waitIdle(t, s)
	assert.True(t, v.BreakAtPC)
	assert.True(t, strings.HasPrefix(v.Code[v.PCLine], "> B"))

	require.True(t, s.ToggleBreakpoint())
	v = waitIdle(t, s)
	assert.False(t, v.BreakAtPC)
}

func TestSessionTypedCommand(t *testing.T) {
	file := assembleTo(t, t.TempDir(), countProgram)
	s := startSession(t, file, testOptions())

	for _, b := range []byte("regx\b R1 x42\n") {
		s.Type(b)
	}
	v := waitIdle(t, s)
	assert.Contains(t, v.Registers[1], "R1=x0042")
	assert.Contains(t, screenText(s), "(lc3sim) reg R1 x42")
}

func TestSessionKeyboardWhileRunning(t *testing.T) {
	file := assembleTo(t, t.TempDir(), `	.ORIG x3000
	GETC
	OUT
	HALT
	.END
`)
	opts := testOptions()
	opts.Flush = false
	s := startSession(t, file, opts)

	require.True(t, s.Command("continue"))
	s.Type('Q')
	waitIdle(t, s)
	assert.Contains(t, screenText(s), "Q")
	assert.Contains(t, screenText(s), "--- halting the LC-3 ---")
}

func TestSessionMarksChangedMemory(t *testing.T) {
	file := assembleTo(t, t.TempDir(), countProgram)
	s := startSession(t, file, testOptions())

	require.True(t, s.Command("memory x3002 x1234"))
	v := waitIdle(t, s)
	assert.True(t, v.Changed[v.PCLine+2])
	assert.False(t, v.Changed[v.PCLine])

	require.True(t, s.Command("printregs"))
	v = waitIdle(t, s)
	assert.NotContains(t, v.Changed, true)
}
