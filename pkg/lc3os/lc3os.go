// Package lc3os provides the operating system image the simulator loads on
// every reset: trap vector table, trap handlers and boot code.
package lc3os

import (
	_ "embed"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"lc3tools/pkg/asm"
	"lc3tools/pkg/obj"
	"lc3tools/pkg/symbol"
)

// StartAddr is where the boot code begins.
const StartAddr uint16 = 0x0200

//go:embed lc3os.asm
var Source string

var (
	once     sync.Once
	builtin  *asm.Program
	buildErr error
)

// OS is a loadable operating system image and its symbols.
type OS struct {
	Image   obj.Image
	Symbols []symbol.Symbol
}

// Builtin returns the embedded OS, assembled on first use.
func Builtin() (*OS, error) {
	once.Do(func() {
		builtin, buildErr = asm.Assemble(Source)
	})
	if buildErr != nil {
		return nil, eris.Wrap(buildErr, "failed to assemble the built-in OS")
	}
	return &OS{Image: builtin.Image(), Symbols: builtin.Symbols.Symbols()}, nil
}

// LoadFiles reads an OS from an object file and an optional symbol file.
func LoadFiles(objPath, symPath string) (*OS, error) {
	img, err := obj.ReadFile(objPath)
	if err != nil {
		return nil, err
	}
	out := &OS{Image: img}
	if symPath == "" {
		return out, nil
	}
	f, err := os.Open(symPath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", symPath)
	}
	defer f.Close()
	table := symbol.NewTable()
	if _, err := table.ReadSymFile(f); err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", symPath)
	}
	out.Symbols = table.Symbols()
	return out, nil
}
