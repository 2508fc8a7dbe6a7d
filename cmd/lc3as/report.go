package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"lc3tools/pkg/asm"
)

// reporter prints one line per assembled file and one per diagnostic.
// Colour is used only when the destination is a terminal.
type reporter struct {
	out    io.Writer
	errOut io.Writer

	okLabel  lipgloss.Style
	errLabel lipgloss.Style
	location lipgloss.Style
	dim      lipgloss.Style
}

func newReporter(out, errOut io.Writer) *reporter {
	okR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)
	return &reporter{
		out:      out,
		errOut:   errOut,
		okLabel:  okR.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		errLabel: errR.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		location: errR.NewStyle().Bold(true),
		dim:      okR.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

func (r *reporter) Success(o *asm.Output) {
	fmt.Fprintf(r.out, "%s %s %s\n",
		r.okLabel.Render("assembled"), o.Source,
		r.dim.Render(fmt.Sprintf("-> %s, %s (%d words at x%04X)", o.Object, o.Symbols, len(o.Program.Words), o.Program.Origin)))
}

// Failure prints every assembler diagnostic as "file:line: error: msg",
// or the single error when it is not a diagnostic list.
func (r *reporter) Failure(path string, err error) {
	var list asm.ErrorList
	if !errors.As(err, &list) {
		fmt.Fprintf(r.errOut, "%s %s\n", r.location.Render(path+":"), r.errLabel.Render("error:")+" "+err.Error())
		return
	}
	for _, e := range list {
		fmt.Fprintf(r.errOut, "%s %s %s\n",
			r.location.Render(fmt.Sprintf("%s:%d:", path, e.Line)), r.errLabel.Render("error:"), e.Msg)
	}
	fmt.Fprintf(r.errOut, "%s: %d error%s, no output written\n", path, len(list), plural(len(list)))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
