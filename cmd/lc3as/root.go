package main

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lc3tools/internal/cli"
	"lc3tools/pkg/asm"
)

// errAssembly is returned once diagnostics for a failed file are printed.
var errAssembly = errors.New("assembly failed")

func newRootCmd() *cobra.Command {
	globals := &cli.Globals{}
	var watch bool

	cmd := &cobra.Command{
		Use:   "lc3as <source file|pattern>...",
		Short: "Assemble LC-3 programs",
		Long: `lc3as assembles each source file into an object file (.obj) and a symbol
file (.sym) written beside it. Arguments may be glob patterns such as
"labs/**/*.asm". With --watch, sources are reassembled whenever they change.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := globals.Setup()
			if err != nil {
				return err
			}
			files, err := expandInputs(args)
			if err != nil {
				return err
			}
			rep := newReporter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			failed := assembleAll(files, rep, logger)
			if watch {
				w, err := newSourceWatcher(files, args, rep, logger)
				if err != nil {
					return err
				}
				defer w.Close()
				return w.Run(cmd.Context())
			}
			if failed > 0 {
				return errAssembly
			}
			return nil
		},
	}
	globals.Bind(cmd)
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reassemble sources when they change")
	cmd.AddCommand(cli.VersionCommand("lc3as"))
	return cmd
}

// assembleAll assembles every file and returns how many failed.
func assembleAll(files []string, rep *reporter, logger zerolog.Logger) int {
	failed := 0
	for _, f := range files {
		if !assembleOne(f, rep, logger) {
			failed++
		}
	}
	return failed
}

func assembleOne(path string, rep *reporter, logger zerolog.Logger) bool {
	out, err := asm.AssembleFile(path)
	if err != nil {
		logger.Debug().Err(err).Str("source", path).Msg("assembly failed")
		rep.Failure(path, err)
		return false
	}
	logger.Debug().Str("source", path).Uint16("origin", out.Program.Origin).
		Int("words", len(out.Program.Words)).Msg("assembled")
	rep.Success(out)
	return true
}
