// Command lc3tools assembles (or loads) one LC-3 program, runs it to
// completion on the built-in OS with the given keyboard input, and prints
// what it displayed. It is meant for batch runs and grading scripts; use
// lc3sim for interactive debugging.
package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"lc3tools/pkg/cpu"
)

func main() {
	err := newRootCmd().Execute()
	switch {
	case errors.Is(err, cpu.ErrInputExhausted):
		os.Exit(3)
	case err != nil:
		log.Fatal().Err(err).Msg("lc3tools failed")
	}
}
