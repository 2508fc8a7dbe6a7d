package console

import (
	"os"

	"golang.org/x/term"
)

// Terminal switches the controlling terminal between the debugger's
// line mode and the LC-3's character mode.
type Terminal struct {
	fd      int
	isTTY   bool
	restore func() error
}

// NewTerminal wraps in, the file the pump reads.
func NewTerminal(in *os.File) *Terminal {
	fd := int(in.Fd())
	return &Terminal{fd: fd, isTTY: term.IsTerminal(fd)}
}

func (t *Terminal) IsTerminal() bool {
	return t.isTTY
}

// EnterRaw turns off line buffering and echo. Enter still arrives as a
// newline and Ctrl-C still raises SIGINT. It does nothing when the input
// is not a terminal.
func (t *Terminal) EnterRaw() error {
	if !t.isTTY || t.restore != nil {
		return nil
	}
	restore, err := characterMode(t.fd)
	if err != nil {
		return err
	}
	t.restore = restore
	return nil
}

// Restore returns the terminal to the mode it had before EnterRaw.
func (t *Terminal) Restore() error {
	if t.restore == nil {
		return nil
	}
	err := t.restore()
	t.restore = nil
	return err
}
