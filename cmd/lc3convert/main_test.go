package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lc3tools/pkg/obj"
)

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("prog.hex", []byte("3000 ; origin\nF025\n"), 0644))
	require.NoError(t, os.WriteFile("bad.bin", []byte("0011000000000000\n0101\n"), 0644))

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"prog.hex", "bad.bin"})
	err := cmd.Execute()
	assert.True(t, errors.Is(err, errConvert))

	assert.Contains(t, out.String(), "converted prog.hex -> prog.obj")
	assert.Contains(t, errOut.String(), "bad.bin:2: expected 16 binary digits, found '0101'")

	img, err := obj.ReadFile(filepath.Join(dir, "prog.obj"))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3000), img.Origin)
	assert.Equal(t, []uint16{0xF025}, img.Words)
	assert.NoFileExists(t, filepath.Join(dir, "bad.obj"))
}
