package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if errors.Is(err, errAssembly) {
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("lc3as failed")
	}
}
