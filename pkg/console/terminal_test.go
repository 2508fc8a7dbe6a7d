package console

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalNotATTY(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	term := NewTerminal(r)
	assert.False(t, term.IsTerminal())
	require.NoError(t, term.EnterRaw())
	require.NoError(t, term.Restore())
}
