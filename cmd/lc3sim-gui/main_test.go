package main

import (
	"strings"
	"testing"
)

func TestStatusLine(t *testing.T) {
	idle := statusLine(true)
	for _, want := range []string{"F5 continue", "F6 finish", "F10 next", "F11 step", "F9 breakpoint", "Esc stop"} {
		if !strings.Contains(idle, want) {
			t.Errorf("idle status %q is missing %q", idle, want)
		}
	}
	if got := statusLine(false); !strings.Contains(got, "Esc") {
		t.Errorf("running status %q should say how to stop", got)
	}
}

func TestLayoutFitsConsole(t *testing.T) {
	g := &Game{}
	w, h := g.Layout(0, 0)
	if w < 80*charW || h <= statusTop {
		t.Errorf("Layout() = %dx%d; too small for the console", w, h)
	}
}
