package main

import (
	"errors"
	"os"
	"os/signal"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"lc3tools/internal/cli"
	"lc3tools/pkg/console"
	"lc3tools/pkg/sim"
)

func newRootCmd() *cobra.Command {
	globals := &cli.Globals{}
	var script string

	cmd := &cobra.Command{
		Use:   "lc3sim [<object file>|<symbol file>]",
		Short: "Simulate and debug LC-3 programs",
		Long: `lc3sim boots the LC-3 operating system and then reads debugger commands.
Give an object file to load it at start-up (and on every reset), or run a
script of commands with -s and exit when it ends.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if script != "" && len(args) > 0 {
				return eris.New("give either an object file or a script, not both")
			}
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return run(globals, file, script)
		},
	}
	globals.Bind(cmd)
	cmd.Flags().StringVarP(&script, "script", "s", "", "execute a script file, then exit")
	cmd.AddCommand(cli.VersionCommand("lc3sim"))
	return cmd
}

func run(globals *cli.Globals, file, script string) error {
	cfg, logger, err := globals.Setup()
	if err != nil {
		return err
	}
	osImage, err := cfg.LoadOS()
	if err != nil {
		return eris.Wrap(err, "failed to read LC-3 OS code")
	}

	pump := console.NewPump(os.Stdin)
	term := console.NewTerminal(os.Stdin)
	defer term.Restore()

	s, err := sim.New(sim.Config{
		Input:       pump,
		Output:      os.Stdout,
		Terminal:    term,
		Options:     cfg.Options,
		OS:          osImage,
		StartFile:   file,
		StartScript: script,
		Seed:        cfg.Seed,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			s.Interrupt()
		}
	}()

	if err := s.Boot(); err != nil {
		if errors.Is(err, sim.ErrQuit) {
			return nil
		}
		return err
	}
	if script != "" {
		return nil
	}
	return s.Run()
}
