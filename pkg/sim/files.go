package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"lc3tools/pkg/console"
	"lc3tools/pkg/obj"
)

// symbolsEntry is the snapshot entry holding the symbol table.
const symbolsEntry = "symbols.sym"

// LoadFile runs the "file" command for path. Front ends use it to reload a
// program after it has been reassembled.
func (s *Simulator) LoadFile(path string) error {
	return s.cmdFile(path)
}

// cmdFile loads an object file and the symbols next to it, or only a
// symbol file when given one. A name without an extension gets ".obj".
func (s *Simulator) cmdFile(args string) error {
	name := strings.TrimRight(args, " \t")
	if name == "" {
		s.println("syntax: file <file to load>")
		return nil
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	switch {
	case ext == "":
		name += ".obj"
	case strings.EqualFold(ext, ".sym"):
		if err := s.readSymbols(name); err != nil {
			s.log.Debug().Err(err).Msg("symbol load failed")
			s.printf("Failed to read symbols from \"%s.\"\n", name)
		} else {
			s.printf("Read symbols from \"%s.\"\n", name)
		}
		return nil
	case !strings.EqualFold(ext, ".obj"):
		s.println("Only .obj or .sym files can be loaded.")
		return nil
	}

	img, err := obj.ReadFile(name)
	if err != nil {
		s.log.Debug().Err(err).Msg("object load failed")
		s.printf("Failed to load \"%s.\"\n", name)
		return nil
	}
	end := s.cpu.Load(img)
	s.syms.RemoveRange(img.Origin, end)
	s.startFile = name

	warn := false
	if err := s.readSymbols(base + ".sym"); err != nil {
		s.log.Debug().Err(err).Msg("no symbols for object file")
		warn = true
	}
	s.cpu.PC = img.Origin
	s.log.Info().Str("file", name).Uint16("origin", img.Origin).Int("words", len(img.Words)).Msg("program loaded")
	s.printf("Loaded \"%s\" and set PC to x%04X\n", name, img.Origin)
	if warn {
		s.println("WARNING: No symbols are available.")
	}
	return nil
}

func (s *Simulator) readSymbols(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	_, err = s.syms.ReadSymFile(f)
	return err
}

// cmdExecute runs the commands in a script file. Unless the stdin option
// is on, the script also supplies the LC-3's keyboard input.
func (s *Simulator) cmdExecute(args string) error {
	path := strings.TrimRight(args, " \t")
	if s.scriptDepth == MaxScriptDepth {
		s.printf("Cannot execute more than %d levels of scripts!\n", MaxScriptDepth)
		s.stopScripts = true
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		s.log.Debug().Err(eris.Wrap(err, "failed to open script")).Str("script", path).Send()
		s.printf("Cannot open script file \"%s\".\n", path)
		s.stopScripts = s.scriptDepth > 0
		return nil
	}
	defer f.Close()

	script := console.NewScript(f)
	prevCmd, prevKbd := s.cmdIn, s.lc3In
	s.scriptDepth++
	s.cmdIn = script
	if !s.opts.Stdin {
		s.setKeyboard(script)
	}
	s.log.Debug().Str("script", path).Int("depth", s.scriptDepth).Msg("script started")

	err = s.commandLoop()

	s.cmdIn = prevCmd
	s.scriptDepth--
	if s.scriptDepth == 0 {
		s.setKeyboard(s.stdin)
		s.stopScripts = false
	} else if !s.opts.Stdin {
		s.setKeyboard(prevKbd)
	}
	return err
}

const snapshotSyntax = "syntax: snapshot save|load <file>"

// cmdSnapshot saves or restores the whole machine, symbols included.
func (s *Simulator) cmdSnapshot(args string) error {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		s.println(snapshotSyntax)
		return nil
	}
	if len(fields) > 2 {
		s.println(tooManyArgs)
	}
	path := fields[1]
	switch {
	case abbreviates(fields[0], "save"):
		if err := s.SaveSnapshot(path); err != nil {
			s.log.Debug().Err(err).Msg("snapshot save failed")
			s.printf("Failed to save machine state to \"%s\".\n", path)
			return nil
		}
		s.printf("Saved machine state to \"%s\".\n", path)
	case abbreviates(fields[0], "load"):
		if err := s.LoadSnapshot(path); err != nil {
			s.log.Debug().Err(err).Msg("snapshot load failed")
			s.printf("Failed to restore machine state from \"%s\".\n", path)
			return nil
		}
		s.printf("Restored machine state from \"%s\".\n", path)
		s.printRegisters()
	default:
		s.println(snapshotSyntax)
	}
	return nil
}

// SaveSnapshot writes the machine state and symbol table to path.
func (s *Simulator) SaveSnapshot(path string) error {
	var syms bytes.Buffer
	if err := s.syms.WriteSymFile(&syms); err != nil {
		return err
	}
	err := s.cpu.HibernateToFile(path, map[string][]byte{symbolsEntry: syms.Bytes()})
	return eris.Wrapf(err, "failed to save snapshot %s", path)
}

// LoadSnapshot restores a state written by SaveSnapshot.
func (s *Simulator) LoadSnapshot(path string) error {
	extras, err := s.cpu.RestoreFromFile(path)
	if err != nil {
		return eris.Wrapf(err, "failed to restore snapshot %s", path)
	}
	s.cpu.RandomDevice = s.opts.Device
	s.syms.Clear()
	if data, ok := extras[symbolsEntry]; ok {
		if _, err := s.syms.ReadSymFile(bytes.NewReader(data)); err != nil {
			return err
		}
	}
	return nil
}
