package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"

	"lc3tools/pkg/sim"
)

// Exit status when the LC-3 reads past the end of its input.
const exitInputExhausted = 3

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, sim.ErrInputExhausted) {
			os.Exit(exitInputExhausted)
		}
		log.Fatal().Err(err).Msg("lc3sim failed")
	}
}
