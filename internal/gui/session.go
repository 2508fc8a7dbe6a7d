// Package gui runs the lc3sim debugger behind a window. The simulator reads
// its commands and keystrokes from a pipe, the same way a terminal would
// feed it, and the window shows snapshots taken whenever it is idle.
package gui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"lc3tools/pkg/console"
	"lc3tools/pkg/grid"
	"lc3tools/pkg/lc3os"
	"lc3tools/pkg/sim"
)

// Console size in characters.
const (
	ConsoleCols = 88
	ConsoleRows = 24
)

// Lines of code shown before and after the PC.
const (
	codeBefore = 4
	codeAfter  = 8
)

// View is what the window draws outside the console.
type View struct {
	Registers []string
	Code      []string
	// Changed marks the lines of Code whose memory was written since the
	// previous snapshot.
	Changed []bool
	// PCLine indexes the PC's line in Code.
	PCLine    int
	PC        uint16
	BreakAtPC bool
	File      string
}

// Config selects what the session simulates.
type Config struct {
	Options sim.Options
	OS      *lc3os.OS
	File    string
	Seed    uint64
	// Rate caps the LC-3 at this many instructions a second.
	Rate   int
	Logger zerolog.Logger
}

// Session owns a running simulator and the queue that feeds it.
type Session struct {
	sim    *sim.Simulator
	screen *grid.Screen
	log    zerolog.Logger

	pw    *io.PipeWriter
	queue chan []byte

	// changed is only touched on the simulator goroutine.
	changed map[uint16]bool

	mu   sync.Mutex
	view View
	idle bool
	line []byte

	done chan error
}

// Start boots a simulator in its own goroutine.
func Start(cfg Config) (*Session, error) {
	pr, pw := io.Pipe()
	s := &Session{
		screen: grid.NewScreen(ConsoleCols, ConsoleRows),
		log:    cfg.Logger,
		pw:     pw,
		queue:  make(chan []byte, 256),
		done:   make(chan error, 1),

		changed: make(map[uint16]bool),
	}
	sm, err := sim.New(sim.Config{
		Input:     console.NewPump(pr),
		Output:    s.screen,
		Options:   cfg.Options,
		OS:        cfg.OS,
		StartFile: cfg.File,
		Seed:      cfg.Seed,
		Logger:    cfg.Logger,
		OnPrompt:  s.snapshot,
	})
	if err != nil {
		pw.Close()
		return nil, err
	}
	s.sim = sm
	sm.CPU().MaxRate = cfg.Rate
	sm.CPU().OnChange = func(addr uint16) { s.changed[addr] = true }

	go s.feed()
	go func() {
		err := sm.Boot()
		if err == nil {
			err = sm.Run()
		}
		s.log.Debug().Err(err).Msg("simulator exited")
		s.done <- err
	}()
	return s, nil
}

func (s *Session) feed() {
	for b := range s.queue {
		if _, err := s.pw.Write(b); err != nil {
			return
		}
	}
}

// snapshot runs on the simulator goroutine just before it prompts.
func (s *Session) snapshot() {
	c := s.sim.CPU()
	v := View{
		Registers: strings.Split(s.sim.Registers(), "\n")[:2],
		PC:        c.PC,
		BreakAtPC: c.Breakpoints[c.PC],
		File:      s.sim.LoadedFile(),
		PCLine:    codeBefore,
	}
	for i := -codeBefore; i <= codeAfter; i++ {
		addr := c.PC + uint16(i)
		mark := "  "
		if i == 0 {
			mark = "> "
		}
		v.Code = append(v.Code, mark+s.sim.Disassemble(addr))
		v.Changed = append(v.Changed, s.changed[addr])
	}
	clear(s.changed)

	s.mu.Lock()
	s.view = v
	s.idle = true
	s.mu.Unlock()
}

// Screen is the console the simulator writes to.
func (s *Session) Screen() *grid.Screen {
	return s.screen
}

// View returns the latest idle snapshot and whether the simulator is idle.
func (s *Session) View() (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.idle
}

// Done is sent the simulator's result when its command loop ends.
func (s *Session) Done() <-chan error {
	return s.done
}

// Command sends a debugger command if the simulator is idle and no command
// is being typed. The command is echoed to the console.
func (s *Session) Command(cmd string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idle || len(s.line) > 0 {
		return false
	}
	s.submit(cmd)
	return true
}

// submit must be called with mu held.
func (s *Session) submit(cmd string) {
	s.idle = false
	fmt.Fprintf(s.screen, "%s\n", cmd)
	s.queue <- []byte(cmd + "\n")
}

// ToggleBreakpoint sets or clears a breakpoint at the PC.
func (s *Session) ToggleBreakpoint() bool {
	v, _ := s.View()
	verb := "set"
	if v.BreakAtPC {
		verb = "clear"
	}
	return s.Command(fmt.Sprintf("break %s x%04X", verb, v.PC))
}

// Type handles a typed character. While idle it edits the command line,
// echoing as a terminal would; while the LC-3 runs it goes to the keyboard.
func (s *Session) Type(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.idle {
		s.queue <- []byte{b}
		return
	}
	switch b {
	case '\n', '\r':
		cmd := string(s.line)
		s.line = s.line[:0]
		s.submit(cmd)
	case '\b', 0x7F:
		if len(s.line) > 0 {
			s.line = s.line[:len(s.line)-1]
			s.screen.Write([]byte("\b \b"))
		}
	default:
		if b >= 0x20 && b < 0x7F {
			s.line = append(s.line, b)
			s.screen.Write([]byte{b})
		}
	}
}

// Stop interrupts the running LC-3.
func (s *Session) Stop() {
	s.sim.Interrupt()
}

// Close stops the LC-3 and ends the simulator's input.
func (s *Session) Close() error {
	s.sim.Interrupt()
	close(s.queue)
	return s.pw.Close()
}
