// Package sim is the lc3sim debugger: a command interpreter around a
// cpu.CPU that loads programs, runs them, sets breakpoints and inspects
// machine state.
package sim

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"lc3tools/pkg/console"
	"lc3tools/pkg/cpu"
	"lc3tools/pkg/lc3os"
	"lc3tools/pkg/symbol"
)

// MaxScriptDepth bounds nested "execute" commands.
const MaxScriptDepth = 10

const prompt = "(lc3sim) "

// idleSleep is slept between keyboard polls once the LC-3 has been waiting
// for input for a while.
const idleSleep = time.Millisecond

var (
	// ErrQuit is returned once the "quit" command has run.
	ErrQuit = errors.New("quit")
	// ErrInputExhausted means the LC-3 read past the end of its input.
	// lc3sim exits with status 3 when it sees it.
	ErrInputExhausted = cpu.ErrInputExhausted
)

// Options are the run-time switches changed with the "option" command.
type Options struct {
	// Flush discards pending console input each time the LC-3 starts.
	Flush bool `yaml:"flush"`
	// Keep leaves unread console input in place when the LC-3 stops.
	Keep bool `yaml:"keep"`
	// Device randomises keyboard and display readiness.
	Device bool `yaml:"device"`
	// Stdin feeds the LC-3 from the console, not the script, while a
	// script runs.
	Stdin bool `yaml:"stdin"`
}

// DefaultOptions has every option on.
func DefaultOptions() Options {
	return Options{Flush: true, Keep: true, Device: true, Stdin: true}
}

// Terminal switches the console between line and character mode around
// LC-3 execution. console.Terminal implements it.
type Terminal interface {
	IsTerminal() bool
	EnterRaw() error
	Restore() error
}

// Config wires a Simulator to its surroundings.
type Config struct {
	// Input supplies debugger commands and, outside scripts, LC-3 keyboard
	// input.
	Input console.Source
	// Output receives debugger messages and LC-3 display output.
	Output io.Writer
	// Terminal is optional; without it the console stays in line mode.
	Terminal Terminal
	Options  Options
	// OS is loaded on every reset. Nil selects the built-in OS.
	OS *lc3os.OS
	// StartFile is loaded after each reset.
	StartFile string
	// StartScript is executed after the first reset instead of StartFile.
	StartScript string
	// Seed, when non-zero, makes random device timing reproducible.
	Seed   uint64
	Logger zerolog.Logger
	// OnPrompt is called from the command loop each time the top-level
	// prompt has been shown, that is whenever the simulator is idle.
	OnPrompt func()
}

// Simulator holds the machine and the debugger's own state.
type Simulator struct {
	cpu  *cpu.CPU
	syms *symbol.Table
	os   *lc3os.OS
	opts Options
	log  zerolog.Logger

	out   io.Writer
	term  Terminal
	stdin console.Source

	// cmdIn is where commands come from; lc3In feeds the LC-3 keyboard.
	cmdIn console.Source
	lc3In console.Source

	startFile   string
	startScript string
	onPrompt    func()

	scriptDepth int
	stopScripts bool
	lastCmd     string
	lastDump    int
	lastList    int
}

// New creates a Simulator. Call Boot before issuing commands.
func New(cfg Config) (*Simulator, error) {
	if cfg.Input == nil {
		return nil, eris.New("simulator needs an input source")
	}
	out := cfg.Output
	if out == nil {
		out = io.Discard
	}
	osImage := cfg.OS
	if osImage == nil {
		var err error
		if osImage, err = lc3os.Builtin(); err != nil {
			return nil, err
		}
	}
	s := &Simulator{
		cpu:         cpu.NewCPU(),
		syms:        symbol.NewTable(),
		os:          osImage,
		opts:        cfg.Options,
		log:         cfg.Logger,
		out:         out,
		term:        cfg.Terminal,
		stdin:       cfg.Input,
		cmdIn:       cfg.Input,
		lc3In:       cfg.Input,
		startFile:   cfg.StartFile,
		startScript: cfg.StartScript,
		onPrompt:    cfg.OnPrompt,
	}
	if cfg.Seed != 0 {
		s.cpu.Seed(cfg.Seed)
	}
	s.cpu.Output = out
	s.cpu.Keyboard = s.lc3In
	s.cpu.RandomDevice = s.opts.Device
	s.cpu.IdleSleep = idleSleep
	return s, nil
}

// CPU exposes the machine, for front ends that draw it.
func (s *Simulator) CPU() *cpu.CPU {
	return s.cpu
}

// Symbols exposes the symbol table.
func (s *Simulator) Symbols() *symbol.Table {
	return s.syms
}

// Options returns the current option settings.
func (s *Simulator) Options() Options {
	return s.opts
}

// LoadedFile is the object file reloaded on reset, if any.
func (s *Simulator) LoadedFile() string {
	return s.startFile
}

// Interrupt stops a running LC-3 and reports the stop, as Ctrl-C does.
func (s *Simulator) Interrupt() {
	s.cpu.Interrupt()
}

func (s *Simulator) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Simulator) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

func (s *Simulator) setKeyboard(src console.Source) {
	s.lc3In = src
	s.cpu.Keyboard = src
}

// Boot resets the machine, runs the OS start-up code and then executes the
// start script or loads the start file.
func (s *Simulator) Boot() error {
	s.cpu.ResetDevices()
	return s.initMachine()
}

func (s *Simulator) initMachine() error {
	s.cpu.Reset()
	s.syms.Clear()

	s.cpu.Load(s.os.Image)
	for _, sym := range s.os.Symbols {
		s.syms.Add(sym.Name, sym.Addr, true)
	}
	s.cpu.PC = lc3os.StartAddr
	s.log.Debug().Uint16("origin", s.os.Image.Origin).Int("symbols", len(s.os.Symbols)).Msg("OS loaded")

	if err := s.runUntilStopped(); err != nil {
		return err
	}
	switch {
	case s.startScript != "":
		script := s.startScript
		s.startScript = ""
		return s.cmdExecute(script)
	case s.startFile != "":
		return s.cmdFile(s.startFile)
	}
	return nil
}

// Run reads and executes commands until the input ends or "quit" is given.
// It returns nil on a normal exit.
func (s *Simulator) Run() error {
	err := s.commandLoop()
	if errors.Is(err, ErrQuit) {
		return nil
	}
	if err == nil {
		s.println("")
	}
	return err
}

func (s *Simulator) commandLoop() error {
	for !s.stopScripts {
		if s.scriptDepth == 0 {
			s.printf("%s", prompt)
			if s.onPrompt != nil {
				s.onPrompt()
			}
		}
		line, err := s.cmdIn.ReadLine()
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return eris.Wrap(err, "failed to read command")
		}
		if err := s.Exec(line); err != nil {
			return err
		}
	}
	return nil
}

// Exec runs one command line. An empty line repeats the previous command
// when that command is repeatable.
func (s *Simulator) Exec(line string) error {
	text := strings.TrimLeft(line, " \t")
	if text == "" {
		if s.lastCmd == "" {
			return nil
		}
		text = s.lastCmd
	} else {
		s.lastCmd = ""
	}

	word, args := splitCommand(text)
	c := findCommand(word)
	if c == nil {
		s.println("Unknown command.  Type 'h' for help.")
		s.lastCmd = ""
		return nil
	}
	s.log.Debug().Str("command", c.name).Str("args", args).Int("depth", s.scriptDepth).Msg("exec")

	switch {
	case c.flags&flagList != 0:
		s.lastCmd = word + " more"
	case c.flags&flagRepeat != 0 && s.scriptDepth == 0:
		s.lastCmd = text
	default:
		s.lastCmd = ""
	}
	return c.run(s, args)
}

func splitCommand(text string) (word, args string) {
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return text, ""
	}
	return text[:i], strings.TrimLeft(text[i:], " \t")
}

// runUntilStopped executes until the LC-3 stops, then reports why and
// shows the registers.
func (s *Simulator) runUntilStopped() error {
	raw := s.term != nil && s.term.IsTerminal() && s.lc3In == s.stdin
	if raw {
		if err := s.term.EnterRaw(); err != nil {
			s.log.Warn().Err(err).Msg("could not switch the terminal to character mode")
		}
	}
	stop := s.cpu.Run()
	if raw {
		if err := s.term.Restore(); err != nil {
			s.log.Warn().Err(err).Msg("could not restore the terminal")
		}
		if !s.opts.Keep {
			s.stdin.Flush()
		}
	}
	if err := s.reportStop(stop); err != nil {
		return err
	}
	if s.cpu.TakeStopNotice() {
		s.printf("\nLC-3 stopped.\n\n")
	}
	s.cpu.SysBreakpoint = -1
	s.cpu.FinishDepth = 0
	s.log.Debug().Stringer("reason", stop).Uint16("pc", s.cpu.PC).Msg("LC-3 stopped")
	s.printRegisters()
	return nil
}

// step executes one instruction and reports whether execution may go on.
func (s *Simulator) step() (bool, error) {
	stop := s.cpu.Step()
	if err := s.reportStop(stop); err != nil {
		return false, err
	}
	return stop == cpu.StopNone, nil
}

func (s *Simulator) reportStop(stop cpu.Stop) error {
	switch stop {
	case cpu.StopIllegal:
		s.printf("Illegal instruction at x%04X!\n", s.cpu.PC)
	case cpu.StopBreakpoint:
		s.println("The LC-3 hit a breakpoint...")
	case cpu.StopRecursion:
		s.println("Stopping due to possibly infinite recursion.")
	case cpu.StopInputExhausted:
		s.println("LC-3 read past end of input stream.")
		return ErrInputExhausted
	}
	return nil
}

func (s *Simulator) flushConsoleInput() {
	if !s.opts.Flush || s.scriptDepth > 0 {
		return
	}
	s.lc3In.Flush()
}
