package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lc3tools/internal/cli"
	"lc3tools/internal/gui"
)

// Frames drawn per second; gui.speed is an instruction budget per frame.
const frameRate = 60

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("lc3sim-gui failed")
	}
}

func newRootCmd() *cobra.Command {
	globals := &cli.Globals{}
	cmd := &cobra.Command{
		Use:   "lc3sim-gui [<object file>]",
		Short: "Simulate and debug LC-3 programs in a window",
		Long: `lc3sim-gui runs the lc3sim debugger in a window. Commands are typed at the
console prompt or sent with function keys (F5 continue, F6 finish, F9 toggle
a breakpoint at the PC, F10 next, F11 step, Esc stop). While the LC-3 runs,
typed characters go to its keyboard. The loaded object file is reloaded when
it changes on disk.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var file string
			if len(args) == 1 {
				file = args[0]
			}
			return run(globals, file)
		},
	}
	globals.Bind(cmd)
	cmd.AddCommand(cli.VersionCommand("lc3sim-gui"))
	return cmd
}

func run(globals *cli.Globals, file string) error {
	cfg, logger, err := globals.Setup()
	if err != nil {
		return err
	}
	osImage, err := cfg.LoadOS()
	if err != nil {
		return eris.Wrap(err, "failed to read LC-3 OS code")
	}

	session, err := gui.Start(gui.Config{
		Options: cfg.Options,
		OS:      osImage,
		File:    file,
		Seed:    cfg.Seed,
		Rate:    cfg.GUI.Speed * frameRate,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	var reload *gui.Reloader
	if cfg.GUI.Reload {
		if reload, err = gui.NewReloader(logger); err != nil {
			return err
		}
		defer reload.Close()
	}

	ebiten.SetWindowSize(width*cfg.GUI.Scale, height*cfg.GUI.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowTitle("lc3sim")
	if err := ebiten.RunGame(newGame(session, reload)); err != nil {
		return eris.Wrap(err, "window closed with an error")
	}
	return nil
}
