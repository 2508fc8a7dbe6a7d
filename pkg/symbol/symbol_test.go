package symbol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableAddFind(t *testing.T) {
	tab := NewTable()
	require.True(t, tab.Add("Loop", 0x3005, false))
	assert.False(t, tab.Add("LOOP", 0x3006, false), "duplicate without overwrite")

	s, ok := tab.Find("loop")
	require.True(t, ok)
	assert.Equal(t, uint16(0x3005), s.Addr)
	assert.Equal(t, "Loop", s.Name)

	name, ok := tab.NameAt(0x3005)
	require.True(t, ok)
	assert.Equal(t, "Loop", name)

	require.True(t, tab.Add("loop", 0x3010, true))
	_, ok = tab.NameAt(0x3005)
	assert.False(t, ok, "old address should lose its name")
	s, _ = tab.Find("LOOP")
	assert.Equal(t, uint16(0x3010), s.Addr)
}

func TestTableRemoveRange(t *testing.T) {
	tab := NewTable()
	tab.Add("A", 0xFFFE, false)
	tab.Add("B", 0xFFFF, false)
	tab.Add("C", 0x0000, false)
	tab.Add("D", 0x0001, false)

	tab.RemoveRange(0xFFFF, 0x0001)

	_, ok := tab.Find("A")
	assert.True(t, ok)
	_, ok = tab.Find("B")
	assert.False(t, ok)
	_, ok = tab.Find("C")
	assert.False(t, ok)
	_, ok = tab.Find("D")
	assert.True(t, ok)
	assert.Equal(t, 2, tab.Len())
}

func TestSymFileRoundTrip(t *testing.T) {
	tab := NewTable()
	tab.Add("START", 0x3000, false)
	tab.Add("DATA", 0x3010, false)

	var buf bytes.Buffer
	require.NoError(t, tab.WriteSymFile(&buf))
	assert.Contains(t, buf.String(), "//\tSTART             3000\n")

	loaded := NewTable()
	n, err := loaded.ReadSymFile(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, tab.Symbols(), loaded.Symbols())
}

func TestReadSymFileStopsAtGarbage(t *testing.T) {
	src := strings.Join([]string{
		"// Symbol table",
		"//\tSymbol Name       Page Address",
		"//\t----------------  ------------",
		"//\tFIRST             3000",
		"//\tSECOND            zzzz",
		"//\tTHIRD             3002",
	}, "\n")
	tab := NewTable()
	n, err := tab.ReadSymFile(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := tab.Find("THIRD")
	assert.False(t, ok)
}

func TestReadSymFileWithoutHeader(t *testing.T) {
	tab := NewTable()
	n, err := tab.ReadSymFile(strings.NewReader("//\tFIRST 3000\n"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
