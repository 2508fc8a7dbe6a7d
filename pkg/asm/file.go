package asm

import (
	"os"

	"github.com/rotisserie/eris"

	"lc3tools/pkg/obj"
)

// Output names the files written for one assembled source.
type Output struct {
	Source  string
	Object  string
	Symbols string
	Program *Program
}

// AssembleFile assembles the source at path and writes the object and
// symbol files beside it. Assembly errors come back as an ErrorList and
// leave any earlier outputs untouched.
func AssembleFile(path string) (*Output, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}
	prog, err := Assemble(string(src))
	if err != nil {
		return nil, err
	}

	out := &Output{
		Source:  path,
		Object:  obj.SwapExt(path, ".obj"),
		Symbols: obj.SwapExt(path, ".sym"),
		Program: prog,
	}
	if err := obj.WriteFile(out.Object, prog.Image()); err != nil {
		return nil, err
	}
	f, err := os.Create(out.Symbols)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create %s", out.Symbols)
	}
	if err := prog.Symbols.WriteSymFile(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "failed to write %s", out.Symbols)
	}
	return out, nil
}
